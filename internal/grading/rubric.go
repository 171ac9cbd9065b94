package grading

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScoringLevel is one discrete achievable score within a category.
type ScoringLevel struct {
	Level       int    `json:"level" yaml:"level"`
	Score       int    `json:"score" yaml:"score"`
	Description string `json:"description" yaml:"description"`
}

// Category is a named, weighted dimension of evaluation. Its maximum
// achievable score equals the number of scoring levels (1-indexed).
type Category struct {
	Name          string         `json:"name" yaml:"name"`
	Weight        float64        `json:"weight" yaml:"weight"`
	ScoringLevels []ScoringLevel `json:"scoring_levels" yaml:"scoring_levels"`
}

// MaxScore returns the highest achievable score for the category.
func (c Category) MaxScore() int {
	return len(c.ScoringLevels)
}

// Rubric is an ordered set of categories. Weights are any positive reals and
// need not sum to 100.
type Rubric struct {
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Categories  []Category `json:"categories" yaml:"categories"`
}

// Category returns the category with the given name, or false.
func (r Rubric) Category(name string) (Category, bool) {
	for _, c := range r.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Validate checks rubric invariants: at least one category, unique non-empty
// category names, positive weights, at least one scoring level each.
func (r Rubric) Validate() error {
	if len(r.Categories) == 0 {
		return fmt.Errorf("rubric has no categories")
	}
	seen := make(map[string]bool, len(r.Categories))
	for _, c := range r.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("rubric category with empty name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate rubric category %q", name)
		}
		seen[name] = true
		if c.Weight <= 0 {
			return fmt.Errorf("category %q: weight must be positive, got %v", name, c.Weight)
		}
		if len(c.ScoringLevels) == 0 {
			return fmt.Errorf("category %q has no scoring levels", name)
		}
	}
	return nil
}

// LoadRubric reads a rubric from a YAML or JSON file and validates it.
func LoadRubric(path string) (Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rubric{}, fmt.Errorf("read rubric: %w", err)
	}

	var rubric Rubric
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &rubric)
	} else {
		err = yaml.Unmarshal(data, &rubric)
	}
	if err != nil {
		return Rubric{}, fmt.Errorf("parse rubric %s: %w", path, err)
	}

	if err := rubric.Validate(); err != nil {
		return Rubric{}, fmt.Errorf("invalid rubric %s: %w", path, err)
	}
	return rubric, nil
}
