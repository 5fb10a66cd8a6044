package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
	"github.com/custodia-labs/cmsync/internal/core/ports/driving"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// Ensure RepositoryService implements the interface.
var _ driving.RepositoryService = (*RepositoryService)(nil)

// RepositoryService runs single repository operations outside of a batch.
type RepositoryService struct {
	client driven.RepositoryClient
	outage *domain.OutageFlag
}

// NewRepositoryService creates a repository service.
// client may be nil when no credentials are configured.
func NewRepositoryService(client driven.RepositoryClient, outage *domain.OutageFlag) *RepositoryService {
	if outage == nil {
		outage = &domain.OutageFlag{}
	}
	return &RepositoryService{client: client, outage: outage}
}

// TestConnection probes the repository.
// Success clears the outage flag; failure sets it.
func (s *RepositoryService) TestConnection(ctx context.Context) error {
	if s.client == nil {
		return domain.ErrNoClient
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	ok, err := s.client.TestConnection(probeCtx)
	if err != nil {
		s.outage.Set()
		return fmt.Errorf("test connection: %w", err)
	}
	if !ok {
		s.outage.Set()
		return fmt.Errorf("test connection: %w", domain.ErrConnectionBroken)
	}
	if s.outage.IsSet() {
		logger.Info("repository: connection restored")
	}
	s.outage.Clear()
	return nil
}

// Search finds documents whose attributes match every criterion.
func (s *RepositoryService) Search(ctx context.Context, criteria map[string]string, itemType string) ([]domain.Item, error) {
	if s.client == nil {
		return nil, domain.ErrNoClient
	}
	if len(criteria) == 0 {
		return nil, fmt.Errorf("%w: at least one search criterion is required", domain.ErrInvalidInput)
	}
	for k := range criteria {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: empty attribute name", domain.ErrInvalidInput)
		}
	}

	items, err := s.client.Search(ctx, criteria, itemType)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	logger.Debug("repository: search matched %d items", len(items))
	return items, nil
}

// Delete removes a document.
func (s *RepositoryService) Delete(ctx context.Context, docID string) error {
	if s.client == nil {
		return domain.ErrNoClient
	}
	if docID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	ok, err := s.client.DeleteDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", docID, err)
	}
	if !ok {
		return fmt.Errorf("delete %s: %w", docID, domain.ErrNotFound)
	}
	return nil
}
