// Package artifacts writes rendered documents to the local filesystem.
//
// Documents are stored as <dir>/packages/<program>/<NN>_<type>_<version>.md,
// where NN is the document's position in the generation order and version is
// unique per save. Earlier versions are never overwritten, so a superseded
// record keeps its file. Program names are reduced to a filesystem-safe slug.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ArtifactStore = (*Store)(nil)

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// Store is a file-based ArtifactStore.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. If dir is empty, defaults to
// ~/.acqgen/data.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".acqgen", "data")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	return &Store{dir: abs}, nil
}

// Save writes content to a new file and returns its path.
func (s *Store) Save(_ context.Context, program, documentType string, sequence int, content string) (string, error) {
	slug := Slug(program)
	if slug == "" || documentType == "" {
		return "", domain.ErrInvalidInput
	}

	dir := filepath.Join(s.dir, "packages", slug)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating package directory: %w", err)
	}

	version := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	path := filepath.Join(dir, fmt.Sprintf("%02d_%s_%s.md", sequence, Slug(documentType), version))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("writing %s: %w", documentType, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("writing %s: %w", documentType, err)
	}
	return path, nil
}

// Load reads a document previously returned by Save.
func (s *Store) Load(_ context.Context, reference string) (string, error) {
	if err := s.within(reference); err != nil {
		return "", err
	}
	data, err := os.ReadFile(reference)
	if os.IsNotExist(err) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", reference, err)
	}
	return string(data), nil
}

// Discard removes a document that was saved but never committed.
// Discarding a missing document is not an error.
func (s *Store) Discard(_ context.Context, reference string) error {
	if err := s.within(reference); err != nil {
		return err
	}
	if err := os.Remove(reference); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", reference, err)
	}
	return nil
}

func (s *Store) within(reference string) error {
	rel, err := filepath.Rel(s.dir, reference)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%w: %s is outside %s", domain.ErrInvalidInput, reference, s.dir)
	}
	return nil
}

// Dir returns the store root.
func (s *Store) Dir() string {
	return s.dir
}

// Slug lowercases name and replaces runs of other characters with "_".
func Slug(name string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
