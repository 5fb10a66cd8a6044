package driving

import (
	"context"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

// RepositoryService exposes direct repository operations to the CLI.
type RepositoryService interface {
	// TestConnection probes the repository and clears the outage flag on success.
	TestConnection(ctx context.Context) error

	// Search finds documents by attribute.
	Search(ctx context.Context, criteria map[string]string, itemType string) ([]domain.Item, error)

	// Delete removes a document.
	Delete(ctx context.Context, docID string) error
}
