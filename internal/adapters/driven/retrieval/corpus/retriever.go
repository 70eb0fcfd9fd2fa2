// Package corpus provides a Retriever over a local directory of source
// files. Files are normalised by extension, split into chunks and ranked
// by term overlap with the query, so no embedding service is needed.
package corpus

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// Ensure Retriever implements the interface.
var _ driven.Retriever = (*Retriever)(nil)

// minTermLength drops short tokens such as "a" and "of".
const minTermLength = 3

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "are": true, "was": true, "will": true, "shall": true,
	"from": true, "have": true, "has": true, "not": true, "all": true,
	"any": true, "its": true, "their": true, "which": true, "into": true,
}

type indexedChunk struct {
	text     string
	sourceID string
	terms    map[string]bool
}

// Retriever ranks corpus chunks against a query. The corpus is loaded on
// the first query and cached until Refresh.
type Retriever struct {
	loader *Loader

	mu     sync.RWMutex
	chunks []indexedChunk
	loaded bool
}

// New creates a retriever reading from loader's directory.
func New(loader *Loader) *Retriever {
	return &Retriever{loader: loader}
}

// Refresh reloads the corpus from disk.
func (r *Retriever) Refresh(ctx context.Context) error {
	docs, err := r.loader.Load(ctx)
	if err != nil {
		return err
	}

	var chunks []indexedChunk
	for _, doc := range docs {
		for _, text := range doc.Chunks {
			chunks = append(chunks, indexedChunk{
				text:     text,
				sourceID: doc.SourceID,
				terms:    termSet(text),
			})
		}
	}

	r.mu.Lock()
	r.chunks = chunks
	r.loaded = true
	r.mu.Unlock()
	return nil
}

// Query returns up to k chunks sharing at least one term with text, ranked
// by the fraction of query terms each contains. Equal scores keep corpus
// order. SimilarityScore is in [0, 1].
func (r *Retriever) Query(ctx context.Context, text string, k int) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []domain.Chunk{}, nil
	}

	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if !loaded {
		if err := r.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	query := termSet(text)
	if len(query) == 0 {
		return []domain.Chunk{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		index int
		score float64
	}
	var hits []scored
	for i, c := range r.chunks {
		shared := 0
		for term := range query {
			if c.terms[term] {
				shared++
			}
		}
		if shared > 0 {
			hits = append(hits, scored{index: i, score: float64(shared) / float64(len(query))})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]domain.Chunk, 0, len(hits))
	for _, h := range hits {
		c := r.chunks[h.index]
		out = append(out, domain.Chunk{Text: c.text, SourceID: c.sourceID, SimilarityScore: h.score})
	}
	return out, nil
}

// Close releases the cached corpus.
func (r *Retriever) Close() error {
	r.mu.Lock()
	r.chunks = nil
	r.loaded = false
	r.mu.Unlock()
	return nil
}

// termSet returns the distinct lower-case terms of s.
func termSet(s string) map[string]bool {
	terms := make(map[string]bool)
	for _, word := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) < minTermLength || stopWords[word] {
			continue
		}
		terms[word] = true
	}
	return terms
}
