package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// DocType tags what kind of entity a document embeds.
type DocType string

const (
	DocGrade      DocType = "grade"
	DocCritique   DocType = "critique"
	DocSubmission DocType = "submission"
)

// Config holds similarity index configuration.
type Config struct {
	PersistPath string // optional on-disk persistence
	Collection  string // collection name (assignment-scoped)
}

// Document is an embedded entity. Documents are immutable once stored; a
// changed source is re-upserted under a new ID, never mutated in place.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result is one similarity match.
type Result struct {
	Document   Document
	Similarity float32
}

// Index is a content-addressable store of embedded documents queryable by
// nearest-neighbor similarity. It holds no grading semantics.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu        sync.Mutex
	seq       int // insertion counter for deterministic tie-breaking
	typeCount map[DocType]int
}

// New creates a similarity index backed by chromem-go. The embedder supplies
// the embedding function for both upserts and queries.
func New(config Config, embedder Embedder) (*Index, error) {
	if config.Collection == "" {
		config.Collection = "default"
	}

	var db *chromem.DB
	var err error
	if config.PersistPath != "" {
		persistFile := filepath.Join(config.PersistPath, "index.gob")
		db, err = chromem.NewPersistentDB(persistFile, false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	idx := &Index{
		db:         db,
		collection: collection,
		typeCount:  make(map[DocType]int),
	}
	idx.restoreCounters()
	return idx, nil
}

// restoreCounters seeds seq from a persisted collection so tie-breaking stays
// stable across restarts.
func (x *Index) restoreCounters() {
	// chromem-go v0.7.0 exposes no iteration API, so per-type counts cannot
	// be rebuilt here; they start at zero and Query falls back to the total
	// collection size when a type has seen no upserts this process.
	x.seq = x.collection.Count()
}

// Upsert embeds and stores a document. Metadata must carry "type"; a
// monotonic insertion sequence is stamped for deterministic ordering.
func (x *Index) Upsert(ctx context.Context, docType DocType, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID required")
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}
	doc.Metadata["type"] = string(docType)

	x.mu.Lock()
	x.seq++
	doc.Metadata["seq"] = strconv.Itoa(x.seq)
	x.typeCount[docType]++
	x.mu.Unlock()

	err := x.collection.AddDocument(ctx, chromem.Document{
		ID:       doc.ID,
		Content:  doc.Content,
		Metadata: doc.Metadata,
	})
	if err != nil {
		return fmt.Errorf("add document %s: %w", doc.ID, err)
	}
	return nil
}

// Query returns up to topK documents of the given type ranked by similarity
// to the query text. Ties are broken deterministically by insertion order.
func (x *Index) Query(ctx context.Context, queryText string, docType DocType, topK int) ([]Result, error) {
	if queryText == "" {
		return nil, fmt.Errorf("empty query")
	}
	if topK <= 0 {
		topK = 5
	}

	x.mu.Lock()
	available := x.typeCount[docType]
	x.mu.Unlock()
	if available == 0 {
		// Counters start empty for persisted collections; fall back to the
		// collection size so restarts still serve queries.
		available = x.collection.Count()
	}
	if available == 0 {
		return nil, nil
	}
	if topK > available {
		topK = available
	}

	where := map[string]string{"type": string(docType)}
	results, err := x.collection.Query(ctx, queryText, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Similarity: r.Similarity,
		})
	}

	// chromem orders by similarity but leaves tie order unspecified; re-sort
	// stably so equal similarities rank by insertion sequence.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return seqOf(out[i].Document) < seqOf(out[j].Document)
	})

	return out, nil
}

// Count returns the total number of stored documents.
func (x *Index) Count() int {
	return x.collection.Count()
}

func seqOf(doc Document) int {
	n, _ := strconv.Atoi(doc.Metadata["seq"])
	return n
}
