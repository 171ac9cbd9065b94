package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"regai/internal/grading"
	"regai/internal/selector"
)

// Prompt construction for the grading agents. Wording is deliberately plain;
// every reply is parsed through the JSON extractor regardless of how well the
// model follows the format.

const graderSystem = "You are a grading assistant. You evaluate student submissions strictly against the provided rubric and reply with JSON only."

func graderPrompt(assignmentDescription string, rubric grading.Rubric, submissionText string, examples []selector.Candidate) string {
	var b strings.Builder
	b.WriteString("Grade the following submission against the rubric.\n\n")
	fmt.Fprintf(&b, "Assignment:\n%s\n\n", assignmentDescription)
	fmt.Fprintf(&b, "Rubric:\n%s\n\n", mustJSON(rubric))
	fmt.Fprintf(&b, "Submission:\n%s\n\n", submissionText)
	writeExamples(&b, examples)
	b.WriteString(`Reply with a JSON object in exactly this form:
{
  "scores": [
    {
      "name": "category name from the rubric",
      "score": "integer corresponding to a scoring level of that category",
      "justification": "detailed justification pointing to specific parts of the submission"
    }
  ]
}
Score every rubric category exactly once.`)
	return b.String()
}

const criticSystem = "You are a grading moderator. You review grades for fairness and rubric alignment and reply with JSON only."

func criticPrompt(rubric grading.Rubric, submissionText string, grade grading.GradeContent, examples []selector.Candidate) string {
	var b strings.Builder
	b.WriteString("Review and critique the following grade against the rubric and submission.\n\n")
	fmt.Fprintf(&b, "Rubric:\n%s\n\n", mustJSON(rubric))
	fmt.Fprintf(&b, "Submission:\n%s\n\n", submissionText)
	fmt.Fprintf(&b, "Grade under review:\n%s\n\n", mustJSON(grade))
	writeExamples(&b, examples)
	b.WriteString(`Assess the fairness and accuracy of each category score, identify potential
biases or oversights, and decide whether the grade needs revision.

Reply with a JSON object in exactly this form:
{
  "overall_assessment": "overall assessment of the grading",
  "category_critiques": [
    {"category": "category name", "critique": "critique for this category"}
  ],
  "potential_biases": ["list of potential biases"],
  "suggestions_for_improvement": ["list of suggestions"],
  "revision_status": "PASS" or "MINOR_REVISION" or "MAJOR_REVISION"
}`)
	return b.String()
}

const reviserSystem = "You are a grading assistant revising a grade to address a critique. Reply with JSON only."

func reviserPrompt(rubric grading.Rubric, submissionText string, original grading.GradeContent, critique grading.CritiqueContent) string {
	var b strings.Builder
	b.WriteString("Revise the following grade based on the critique, staying aligned with the rubric.\n\n")
	fmt.Fprintf(&b, "Rubric:\n%s\n\n", mustJSON(rubric))
	fmt.Fprintf(&b, "Submission:\n%s\n\n", submissionText)
	fmt.Fprintf(&b, "Original grade:\n%s\n\n", mustJSON(original))
	fmt.Fprintf(&b, "Critique:\n%s\n\n", mustJSON(critique))
	b.WriteString(`Reply with the revised grade as a JSON object in the same form as the
original grade ({"scores": [{"name", "score", "justification"}]}). Every score
must be an integer within the category's scoring levels.`)
	return b.String()
}

const overrideCriticSystem = "You write critiques that justify a teacher's grading decision. The teacher's judgment is authoritative. Reply with JSON only."

func overrideCritiquePrompt(assignmentDescription string, rubric grading.Rubric, submissionText string, original, overridden grading.GradeContent) string {
	var b strings.Builder
	b.WriteString("A teacher has replaced a machine-generated grade with their own scores.\n")
	b.WriteString("Produce a critique that argues in favor of the teacher's scores, rationalizing them against the rubric and submission.\n\n")
	fmt.Fprintf(&b, "Assignment:\n%s\n\n", assignmentDescription)
	fmt.Fprintf(&b, "Rubric:\n%s\n\n", mustJSON(rubric))
	fmt.Fprintf(&b, "Submission:\n%s\n\n", submissionText)
	fmt.Fprintf(&b, "Original grade:\n%s\n\n", mustJSON(original))
	fmt.Fprintf(&b, "Teacher's grade:\n%s\n\n", mustJSON(overridden))
	b.WriteString(`If a category's justification is identical in both grades, the teacher only
changed the score and expects the justification to be rewritten; ignore the
stale justification in that case. Do not mention the override: critique the
original grade as if you independently reached the teacher's conclusion, and
support the teacher's scores throughout.

Reply with a JSON object in exactly this form:
{
  "overall_assessment": "overall assessment of the grading",
  "category_critiques": [
    {"category": "category name", "critique": "detailed critique for this category"}
  ],
  "potential_biases": ["list of potential biases"],
  "suggestions_for_improvement": ["list of suggestions"],
  "revision_status": "PASS" or "MINOR_REVISION" or "MAJOR_REVISION"
}`)
	return b.String()
}

const overrideGradeSystem = "You rewrite grade justifications to support a teacher's scores. Reply with JSON only."

func overrideGradePrompt(assignmentDescription string, rubric grading.Rubric, submissionText string, original, overridden grading.GradeContent) string {
	var b strings.Builder
	b.WriteString("A teacher has replaced a machine-generated grade with their own scores.\n")
	b.WriteString("Produce a grade, structured like the original, whose justifications explain why the submission deserves the teacher's scores.\n\n")
	fmt.Fprintf(&b, "Assignment:\n%s\n\n", assignmentDescription)
	fmt.Fprintf(&b, "Rubric:\n%s\n\n", mustJSON(rubric))
	fmt.Fprintf(&b, "Submission:\n%s\n\n", submissionText)
	fmt.Fprintf(&b, "Original grade:\n%s\n\n", mustJSON(original))
	fmt.Fprintf(&b, "Teacher's grade:\n%s\n\n", mustJSON(overridden))
	b.WriteString(`Where the teacher supplied a new justification, reuse their wording heavily.
Where only the score changed, synthesize a fresh justification for the
teacher's score. Do not reference the override.

Reply with a JSON object in exactly this form:
{"scores": [{"name": "category name", "score": "integer", "justification": "detailed justification"}]}`)
	return b.String()
}

// writeExamples appends approved calibration examples spanning the score range.
func writeExamples(b *strings.Builder, examples []selector.Candidate) {
	if len(examples) == 0 {
		return
	}
	b.WriteString("Previously approved grades for similar submissions, as calibration anchors:\n")
	for i, ex := range examples {
		fmt.Fprintf(b, "Example %d (overall score %.2f):\nSubmission excerpt:\n%s\nGrade:\n%s\n\n",
			i+1, ex.Score, excerpt(ex.SubmissionText, 1200), mustJSON(ex.Content))
	}
}

// excerpt truncates to at most limit bytes without splitting a rune.
func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
