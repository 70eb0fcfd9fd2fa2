package driving

import (
	"context"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

// PackageService generates acquisition packages and exposes their records.
type PackageService interface {
	// GeneratePackage generates every catalogued document for a program in
	// dependency order. Per-document failures are recorded in the manifest;
	// the error is reserved for invalid requests and cancellation.
	GeneratePackage(ctx context.Context, req domain.PackageRequest) (*domain.PackageManifest, error)

	// GenerateDocument generates a single document whose dependencies are
	// already committed. Returns *domain.DependencyUnresolvedError when they
	// are not.
	GenerateDocument(ctx context.Context, req domain.PackageRequest, documentType string) (*domain.DocumentResult, error)

	// Manifest exports the program's records and quality reports.
	// An empty program exports every record.
	Manifest(ctx context.Context, program string) (*domain.PackageManifest, error)

	// Facts returns the merged facts of kind committed for a program.
	Facts(ctx context.Context, program string, kind domain.FactKind, documentTypes ...string) (domain.FactSet, error)

	// Order returns the document types in generation order, grouped into
	// waves of mutually independent documents.
	Order() ([][]string, error)
}
