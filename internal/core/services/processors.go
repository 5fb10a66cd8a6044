package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// ItemProcessor performs the repository operation for one work item.
//
// Process validates the item locally before touching the repository;
// a validation failure yields a skipped outcome and no client call.
// The only error ever returned wraps domain.ErrConnectionBroken. Every
// other failure, including a panic, is folded into the outcome.
type ItemProcessor interface {
	// Kind returns the work kind the processor handles.
	Kind() domain.WorkKind

	// Process handles a single item.
	Process(ctx context.Context, item domain.WorkItem) (domain.ItemOutcome, error)
}

// Failed archive reasons.
const (
	ArchiveReasonNoDocID    = "upload_failure_no_docid"
	ArchiveReasonUnexpected = "unexpected_processing_error"
)

// UploadProcessor uploads local files.
type UploadProcessor struct {
	client  driven.RepositoryClient
	archive *Archiver
}

var _ ItemProcessor = (*UploadProcessor)(nil)

// NewUploadProcessor creates an upload processor.
// The archiver may be nil, in which case failed files stay in place.
func NewUploadProcessor(client driven.RepositoryClient, archive *Archiver) *UploadProcessor {
	return &UploadProcessor{client: client, archive: archive}
}

// Kind returns domain.WorkUpload.
func (p *UploadProcessor) Kind() domain.WorkKind { return domain.WorkUpload }

// Process uploads one file and applies the post-upload action.
func (p *UploadProcessor) Process(ctx context.Context, item domain.WorkItem) (outcome domain.ItemOutcome, err error) {
	defer recoverOutcome(item, &outcome, &err)

	req := item.Upload
	if item.Kind != domain.WorkUpload || req == nil {
		return domain.NewOutcome(item, domain.OutcomeSkippedInvalidPayload, "not an upload item"), nil
	}
	if req.Path == "" {
		return domain.NewOutcome(item, domain.OutcomeSkippedNoIdentifier, "no file path"), nil
	}
	if req.ItemType == "" {
		return domain.NewOutcome(item, domain.OutcomeSkippedInvalidPayload, "no target item type"), nil
	}
	info, statErr := os.Stat(req.Path)
	if statErr != nil {
		return domain.NewOutcome(item, domain.OutcomeSkippedInvalidPayload,
			fmt.Sprintf("file not accessible: %v", statErr)), nil
	}
	if !info.Mode().IsRegular() {
		return domain.NewOutcome(item, domain.OutcomeSkippedInvalidPayload, "not a regular file"), nil
	}
	if p.client == nil {
		return domain.NewOutcome(item, domain.OutcomeFailedNoClient, domain.ErrNoClient.Error()), nil
	}

	docID, err := p.client.Upload(ctx, req.Path, req.ItemType, uploadMetadata(req))
	if err != nil {
		if errors.Is(err, domain.ErrConnectionBroken) {
			return domain.ItemOutcome{Identifier: item.Identifier()}, err
		}
		logger.Error("upload %s: %v", req.Path, err)
		p.moveToArchive(req.Path, ArchiveReasonUnexpected)
		return domain.NewOutcome(item, domain.OutcomeFailedUnexpected, err.Error()), nil
	}
	if docID == "" {
		logger.Warn("upload %s: repository returned no document id", req.Path)
		p.moveToArchive(req.Path, ArchiveReasonNoDocID)
		return domain.NewOutcome(item, domain.OutcomeFailedBackendRejected, "no document id returned"), nil
	}

	logger.Info("uploaded %s as %s", req.Path, docID)
	outcome = domain.NewOutcome(item, domain.OutcomeSuccess, "")
	outcome.DocumentID = docID
	if warning := p.afterUpload(req); warning != "" {
		logger.Warn("post-upload action for %s: %s", req.Path, warning)
		outcome.Warning = warning
	}
	return outcome, nil
}

// afterUpload applies the configured action and returns a warning on failure.
func (p *UploadProcessor) afterUpload(req *domain.UploadRequest) string {
	switch req.Action {
	case domain.PostUploadDelete:
		if err := os.Remove(req.Path); err != nil {
			return fmt.Sprintf("delete failed: %v", err)
		}
		logger.Debug("deleted %s after upload", req.Path)
	case domain.PostUploadMove:
		if req.MoveTarget == "" {
			return "move requested but no move target directory configured"
		}
		dest, err := moveAfterUpload(req)
		if err != nil {
			return fmt.Sprintf("move failed: %v", err)
		}
		logger.Debug("moved %s to %s", req.Path, dest)
	}
	return ""
}

func (p *UploadProcessor) moveToArchive(path, reason string) {
	if p.archive == nil {
		return
	}
	if dest, err := p.archive.Archive(path, reason); err != nil {
		logger.Error("archive %s: %v", path, err)
	} else {
		logger.Info("moved %s to failed archive %s", path, dest)
	}
}

// uploadMetadata returns the request metadata plus source file attributes.
func uploadMetadata(req *domain.UploadRequest) map[string]any {
	metadata := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["source_filename"] = filepath.Base(req.Path)
	metadata["original_path"] = req.Path
	return metadata
}

// moveAfterUpload moves an uploaded file under the move target. For
// recursive scans the file's directory relative to the scan root is
// mirrored; if that directory cannot be created the target root is used.
func moveAfterUpload(req *domain.UploadRequest) (string, error) {
	destDir := req.MoveTarget
	if req.Recursive && req.ScanRoot != "" {
		if rel, err := filepath.Rel(req.ScanRoot, filepath.Dir(req.Path)); err == nil && rel != "." && filepath.IsLocal(rel) {
			mirrored := filepath.Join(req.MoveTarget, rel)
			if err := os.MkdirAll(mirrored, 0755); err != nil {
				logger.Warn("create %s: %v, moving to %s instead", mirrored, err, req.MoveTarget)
			} else {
				destDir = mirrored
			}
		}
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create move target: %w", err)
	}
	return moveUnique(req.Path, destDir)
}

// DownloadProcessor fetches documents into local files.
type DownloadProcessor struct {
	client driven.RepositoryClient
}

var _ ItemProcessor = (*DownloadProcessor)(nil)

// NewDownloadProcessor creates a download processor.
func NewDownloadProcessor(client driven.RepositoryClient) *DownloadProcessor {
	return &DownloadProcessor{client: client}
}

// Kind returns domain.WorkDownload.
func (p *DownloadProcessor) Kind() domain.WorkKind { return domain.WorkDownload }

// Process downloads one document unless the target already exists.
func (p *DownloadProcessor) Process(ctx context.Context, item domain.WorkItem) (outcome domain.ItemOutcome, err error) {
	defer recoverOutcome(item, &outcome, &err)

	req := item.Download
	if item.Kind != domain.WorkDownload || req == nil {
		return domain.NewOutcome(item, domain.OutcomeSkippedInvalidPayload, "not a download item"), nil
	}
	if req.DocumentID == "" {
		return domain.NewOutcome(item, domain.OutcomeSkippedNoIdentifier, "no doc_id"), nil
	}
	if req.TargetDir == "" {
		return domain.NewOutcome(item, domain.OutcomeSkippedInvalidPayload, "no target directory"), nil
	}
	if !filepath.IsLocal(req.Filename()) {
		return domain.NewOutcome(item, domain.OutcomeSkippedInvalidPayload,
			fmt.Sprintf("target filename %q escapes the target directory", req.Filename())), nil
	}
	target := req.TargetPath()
	if _, statErr := os.Stat(target); statErr == nil {
		logger.Info("skipping download of %s: %s already exists", req.DocumentID, target)
		return domain.NewOutcome(item, domain.OutcomeSkippedAlreadyExists, "target file exists"), nil
	}
	if p.client == nil {
		return domain.NewOutcome(item, domain.OutcomeFailedNoClient, domain.ErrNoClient.Error()), nil
	}

	ok, err := p.client.Download(ctx, req.DocumentID, target)
	if err != nil {
		return callFailure(item, "download "+req.DocumentID, err)
	}
	if !ok {
		return domain.NewOutcome(item, domain.OutcomeFailedBackendRejected, "repository rejected download"), nil
	}
	logger.Info("downloaded %s to %s", req.DocumentID, target)
	return domain.NewOutcome(item, domain.OutcomeSuccess, ""), nil
}

// MetadataProcessor updates document attributes.
type MetadataProcessor struct {
	client driven.RepositoryClient
}

var _ ItemProcessor = (*MetadataProcessor)(nil)

// NewMetadataProcessor creates a metadata update processor.
func NewMetadataProcessor(client driven.RepositoryClient) *MetadataProcessor {
	return &MetadataProcessor{client: client}
}

// Kind returns domain.WorkMetadata.
func (p *MetadataProcessor) Kind() domain.WorkKind { return domain.WorkMetadata }

// Process applies one metadata update.
func (p *MetadataProcessor) Process(ctx context.Context, item domain.WorkItem) (outcome domain.ItemOutcome, err error) {
	defer recoverOutcome(item, &outcome, &err)

	req := item.Metadata
	if item.Kind != domain.WorkMetadata || req == nil {
		return domain.NewOutcome(item, domain.OutcomeSkippedInvalidPayload, "not a metadata item"), nil
	}
	if len(req.Metadata) == 0 {
		return domain.NewOutcome(item, domain.OutcomeSkippedInvalidPayload, "missing or invalid metadata"), nil
	}
	if req.DocumentID == "" && !req.HasAlternateID() {
		return domain.NewOutcome(item, domain.OutcomeSkippedNoIdentifier,
			"no doc_id and incomplete object_id/object_id_field_name/item_type_context"), nil
	}
	if p.client == nil {
		return domain.NewOutcome(item, domain.OutcomeFailedNoClient, domain.ErrNoClient.Error()), nil
	}

	ok, err := p.client.UpdateMetadata(ctx, *req)
	if err != nil {
		return callFailure(item, "update metadata "+item.Identifier(), err)
	}
	if !ok {
		return domain.NewOutcome(item, domain.OutcomeFailedBackendRejected, "repository rejected update"), nil
	}
	logger.Info("updated metadata of %s", item.Identifier())
	return domain.NewOutcome(item, domain.OutcomeSuccess, ""), nil
}

// callFailure classifies a client error: connection outages propagate,
// everything else becomes an unexpected failure.
func callFailure(item domain.WorkItem, op string, err error) (domain.ItemOutcome, error) {
	if errors.Is(err, domain.ErrConnectionBroken) {
		return domain.ItemOutcome{Identifier: item.Identifier()}, err
	}
	logger.Error("%s: %v", op, err)
	return domain.NewOutcome(item, domain.OutcomeFailedUnexpected, err.Error()), nil
}

// recoverOutcome converts a panic in a processor into an unexpected failure.
func recoverOutcome(item domain.WorkItem, outcome *domain.ItemOutcome, err *error) {
	if r := recover(); r != nil {
		logger.Error("panic processing %s %q: %v", item.Kind, item.Identifier(), r)
		*outcome = domain.NewOutcome(item, domain.OutcomeFailedUnexpected, fmt.Sprintf("panic: %v", r))
		*err = nil
	}
}
