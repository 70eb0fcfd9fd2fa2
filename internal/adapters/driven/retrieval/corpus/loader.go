package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/logger"
	"github.com/custodia-labs/acqgen/internal/normalisers/html"
	"github.com/custodia-labs/acqgen/internal/normalisers/markdown"
	"github.com/custodia-labs/acqgen/internal/normalisers/plaintext"
	"github.com/custodia-labs/acqgen/internal/postprocessors/chunker"
)

// MaxFileSize is the largest source file read; larger files are skipped.
const MaxFileSize = 10 << 20

// Ensure Loader implements the interface.
var _ driven.CorpusSource = (*Loader)(nil)

// Loader reads a directory of source files into chunked documents.
type Loader struct {
	dir         string
	normalisers map[string]driven.Normaliser
	chunker     *chunker.Chunker
}

// DefaultNormalisers returns the built-in normalisers.
func DefaultNormalisers() []driven.Normaliser {
	return []driven.Normaliser{
		plaintext.New(),
		markdown.New(),
		html.New(),
	}
}

// NewLoader creates a loader for dir. Later normalisers override earlier
// ones that claim the same extension.
func NewLoader(dir string, c *chunker.Chunker, normalisers ...driven.Normaliser) (*Loader, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: corpus directory is required", domain.ErrInvalidInput)
	}
	if c == nil {
		c = chunker.New()
	}
	if len(normalisers) == 0 {
		normalisers = DefaultNormalisers()
	}

	byExt := make(map[string]driven.Normaliser)
	for _, n := range normalisers {
		for _, ext := range n.Extensions() {
			byExt[strings.ToLower(ext)] = n
		}
	}
	return &Loader{dir: dir, normalisers: byExt, chunker: c}, nil
}

// Dir returns the corpus directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Load walks the corpus directory and returns every supported file as a
// chunked document, ordered by SourceID. Hidden files and directories,
// unsupported extensions, oversized files and files a normaliser rejects
// are skipped.
func (l *Loader) Load(ctx context.Context) ([]domain.SourceDocument, error) {
	info, err := os.Stat(l.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus %s: %v", domain.ErrRetrievalUnavailable, l.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: corpus %s is not a directory", domain.ErrRetrievalUnavailable, l.dir)
	}

	var docs []domain.SourceDocument
	err = filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != l.dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		doc, ok, err := l.loadFile(ctx, path)
		if err != nil {
			return err
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceID < docs[j].SourceID })
	logger.Debug("Corpus: loaded %d documents from %s", len(docs), l.dir)
	return docs, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) (domain.SourceDocument, bool, error) {
	normaliser, ok := l.normalisers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return domain.SourceDocument{}, false, nil
	}

	rel, err := filepath.Rel(l.dir, path)
	if err != nil {
		return domain.SourceDocument{}, false, err
	}
	sourceID := filepath.ToSlash(rel)

	info, err := os.Stat(path)
	if err != nil {
		return domain.SourceDocument{}, false, err
	}
	if info.Size() > MaxFileSize {
		logger.Warn("Corpus: skipping %s (%d bytes)", sourceID, info.Size())
		return domain.SourceDocument{}, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceDocument{}, false, err
	}

	text, err := normaliser.Normalise(ctx, sourceID, content)
	if err != nil {
		if ctx.Err() != nil {
			return domain.SourceDocument{}, false, ctx.Err()
		}
		logger.Warn("Corpus: skipping %s: %v", sourceID, err)
		return domain.SourceDocument{}, false, nil
	}

	chunks, err := l.chunker.Split(ctx, text)
	if err != nil {
		return domain.SourceDocument{}, false, err
	}
	if len(chunks) == 0 {
		return domain.SourceDocument{}, false, nil
	}
	return domain.SourceDocument{SourceID: sourceID, Chunks: chunks}, true, nil
}
