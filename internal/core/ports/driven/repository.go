package driven

import (
	"context"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

// RepositoryClient talks to the remote content-management repository.
//
// Every method may return an error wrapping domain.ErrConnectionBroken when
// the repository is unreachable (transport failure, timeout or 5xx). Callers
// use errors.Is to tell that apart from any other failure.
//
// A false result with a nil error means the repository answered and
// rejected the request.
type RepositoryClient interface {
	// Upload creates a document from the file at path.
	// Returns the new document ID, or "" if the repository rejected it.
	Upload(ctx context.Context, path, itemType string, metadata map[string]any) (string, error)

	// Download streams the document content to targetPath.
	Download(ctx context.Context, docID, targetPath string) (bool, error)

	// DeleteDocument removes a document.
	DeleteDocument(ctx context.Context, docID string) (bool, error)

	// UpdateMetadata replaces document attributes.
	// Documents addressed by alternate ID are resolved by search first.
	UpdateMetadata(ctx context.Context, update domain.MetadataUpdate) (bool, error)

	// Search returns documents whose attributes match all criteria.
	// An empty itemType searches all item types.
	Search(ctx context.Context, criteria map[string]string, itemType string) ([]domain.Item, error)

	// TestConnection probes the repository.
	TestConnection(ctx context.Context) (bool, error)
}
