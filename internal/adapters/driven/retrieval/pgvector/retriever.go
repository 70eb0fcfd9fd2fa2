// Package pgvector provides a Retriever backed by PostgreSQL with the
// pgvector extension. Queries are embedded and ranked by cosine distance.
package pgvector

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// Ensure Retriever implements the interfaces.
var (
	_ driven.Retriever    = (*Retriever)(nil)
	_ driven.ChunkIndexer = (*Retriever)(nil)
)

// Default configuration values.
const (
	DefaultTable      = "acquisition_chunks"
	DefaultDimensions = 768
)

var identifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Config holds configuration for the pgvector retriever.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// Table holds the chunks (default: acquisition_chunks).
	Table string

	// Dimensions is the embedding size used when creating the table.
	Dimensions int
}

// Retriever queries chunks by embedding similarity.
type Retriever struct {
	pool     *pgxpool.Pool
	table    string
	embedder driven.EmbeddingService
}

// New connects to PostgreSQL and ensures the extension, table and index
// exist.
func New(ctx context.Context, cfg Config, embedder driven.EmbeddingService) (*Retriever, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: pgvector: DSN is required", domain.ErrInvalidInput)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: pgvector: an embedding service is required", domain.ErrInvalidInput)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !identifier.MatchString(cfg.Table) {
		return nil, fmt.Errorf("%w: pgvector: invalid table name %q", domain.ErrInvalidInput, cfg.Table)
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: pgvector: connect: %v", domain.ErrRetrievalUnavailable, err)
	}

	r := &Retriever{pool: pool, table: cfg.Table, embedder: embedder}
	if err := r.initialise(ctx, cfg.Dimensions); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *Retriever) initialise(ctx context.Context, dimensions int) error {
	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, r.table, dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`, r.table, r.table),
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: pgvector: initialise: %v", domain.ErrRetrievalUnavailable, err)
		}
	}
	return nil
}

// Query returns up to k chunks ordered by descending cosine similarity.
func (r *Retriever) Query(ctx context.Context, text string, k int) ([]domain.Chunk, error) {
	if k <= 0 || strings.TrimSpace(text) == "" {
		return []domain.Chunk{}, nil
	}

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrRetrievalUnavailable, err)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT source_id, content, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, r.table), pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks: %v", domain.ErrRetrievalUnavailable, err)
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0, k)
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.SourceID, &c.Text, &c.SimilarityScore); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.SimilarityScore = clampSimilarity(c.SimilarityScore)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate chunks: %v", domain.ErrRetrievalUnavailable, err)
	}
	return chunks, nil
}

// Index embeds and upserts a source's chunks, replacing any chunks the
// source had before.
func (r *Retriever) Index(ctx context.Context, sourceID string, chunks []string) error {
	clean := make([]string, len(chunks))
	for i, c := range chunks {
		clean[i] = sanitizeUTF8(c)
	}
	vectors, err := r.embedder.EmbedBatch(ctx, clean)
	if err != nil {
		return fmt.Errorf("embed %s: %w", sourceID, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE source_id = $1", r.table), sourceID); err != nil {
		return fmt.Errorf("clear %s: %w", sourceID, err)
	}
	insert := fmt.Sprintf(`
		INSERT INTO %s (id, source_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5)`, r.table)
	for i, c := range clean {
		id := fmt.Sprintf("%s_%d", sourceID, i)
		if _, err := tx.Exec(ctx, insert, id, sourceID, i, c, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %s: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}

// Close releases the connection pool.
func (r *Retriever) Close() error {
	r.pool.Close()
	return nil
}

// clampSimilarity keeps scores in [0, 1]; cosine distance ranges to 2.
func clampSimilarity(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
