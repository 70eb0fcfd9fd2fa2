// Package chunker splits normalised source text into retrieval chunks.
package chunker

import (
	"context"
	"strings"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunker packs paragraphs into chunks of at most chunkSize characters.
// Paragraphs are never split unless a single one exceeds the chunk size,
// in which case it is cut at word boundaries.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Split returns the chunks of text in order. Blank input yields no chunks.
// Each chunk after the first starts with up to overlap characters from the
// end of the previous one, cut at a word boundary.
func (c *Chunker) Split(ctx context.Context, text string) ([]string, error) {
	var units []string
	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		units = append(units, c.splitLong(para)...)
	}
	if len(units) == 0 {
		return nil, nil
	}

	var chunks []string
	var current strings.Builder
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if current.Len() > 0 && current.Len()+1+len(unit) > c.chunkSize {
			prev := current.String()
			chunks = append(chunks, prev)
			current.Reset()
			if tail := c.tail(prev); tail != "" && len(tail)+1+len(unit) <= c.chunkSize {
				current.WriteString(tail)
			}
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(unit)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks, nil
}

// splitLong cuts a paragraph longer than the chunk size into word-bounded
// pieces. A single word longer than the chunk size is kept whole.
func (c *Chunker) splitLong(para string) []string {
	if len(para) <= c.chunkSize {
		return []string{para}
	}
	var pieces []string
	var b strings.Builder
	for _, word := range strings.Fields(para) {
		if b.Len() > 0 && b.Len()+1+len(word) > c.chunkSize {
			pieces = append(pieces, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}

// tail returns the last overlap characters of s starting at a word.
func (c *Chunker) tail(s string) string {
	if c.overlap == 0 {
		return ""
	}
	if len(s) <= c.overlap {
		return s
	}
	cut := s[len(s)-c.overlap:]
	i := strings.IndexAny(cut, " \n")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(cut[i+1:])
}
