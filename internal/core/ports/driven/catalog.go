package driven

import "github.com/custodia-labs/acqgen/internal/core/domain"

// CatalogSource provides the package's document catalogue.
type CatalogSource interface {
	// Catalog returns a validated catalogue.
	Catalog() (domain.Catalog, error)
}
