package file

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// Ensure CatalogLoader implements the interface.
var _ driven.CatalogSource = (*CatalogLoader)(nil)

//go:embed catalog/default.yaml
var defaultCatalog []byte

// CatalogLoader reads the document catalogue from a YAML file, or the
// built-in catalogue when no path is set.
type CatalogLoader struct {
	path string
}

// NewCatalogLoader creates a loader for path. An empty path selects the
// built-in catalogue.
func NewCatalogLoader(path string) *CatalogLoader {
	return &CatalogLoader{path: path}
}

// Catalog parses and validates the catalogue.
func (l *CatalogLoader) Catalog() (domain.Catalog, error) {
	data := defaultCatalog
	source := "built-in catalogue"
	if l.path != "" {
		var err error
		data, err = os.ReadFile(l.path)
		if err != nil {
			return domain.Catalog{}, fmt.Errorf("read catalogue: %w", err)
		}
		source = l.path
	}
	return ParseCatalog(data, source)
}

// ParseCatalog decodes and validates a YAML catalogue. Unknown fields are
// rejected.
func ParseCatalog(data []byte, source string) (domain.Catalog, error) {
	var catalog domain.Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		return domain.Catalog{}, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, source, err)
	}
	if err := catalog.Validate(); err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", source, err)
	}
	return catalog, nil
}

// DefaultCatalog returns the built-in catalogue.
func DefaultCatalog() (domain.Catalog, error) {
	return ParseCatalog(defaultCatalog, "built-in catalogue")
}
