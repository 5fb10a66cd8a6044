package domain

import "path/filepath"

// WorkKind identifies which repository operation a WorkItem requires.
type WorkKind string

// Work kinds.
const (
	WorkUpload   WorkKind = "upload"
	WorkDownload WorkKind = "download"
	WorkMetadata WorkKind = "metadata_update"
)

// PostUploadAction is what happens to a source file after a successful upload.
type PostUploadAction string

// Post-upload actions. An empty action leaves the file in place.
const (
	PostUploadNone   PostUploadAction = ""
	PostUploadDelete PostUploadAction = "delete"
	PostUploadMove   PostUploadAction = "move"
)

// Valid reports whether the action is one of the known actions.
func (a PostUploadAction) Valid() bool {
	switch a {
	case PostUploadNone, PostUploadDelete, PostUploadMove:
		return true
	default:
		return false
	}
}

// UploadRequest describes one local file to push into the repository.
type UploadRequest struct {
	// Path is the absolute or scan-relative file path.
	Path string

	// ItemType is the repository item type the document is created as.
	ItemType string

	// Metadata is sent as document attributes.
	Metadata map[string]any

	// ScanRoot is the directory the file was discovered under.
	// Used to mirror sub-directories when moving after upload.
	ScanRoot string

	// Recursive is true when the scan that found the file descended into sub-directories.
	Recursive bool

	// Action is applied to the local file after a successful upload.
	Action PostUploadAction

	// MoveTarget is the destination root for PostUploadMove.
	MoveTarget string
}

// DownloadRequest describes one document to fetch into a local directory.
type DownloadRequest struct {
	// DocumentID is the repository document identifier.
	DocumentID string

	// TargetFilename is the local file name. Defaults to DocumentID.
	TargetFilename string

	// TargetDir is the directory the file is written to.
	TargetDir string
}

// Filename returns the effective local file name.
func (r *DownloadRequest) Filename() string {
	if r.TargetFilename != "" {
		return r.TargetFilename
	}
	return r.DocumentID
}

// TargetPath returns the full local path of the downloaded file.
func (r *DownloadRequest) TargetPath() string {
	return filepath.Join(r.TargetDir, r.Filename())
}

// MetadataUpdate describes an attribute update for one document.
// The document is addressed either by DocumentID or by the
// ObjectID/ObjectIDField/ItemType triple, which is resolved by search.
type MetadataUpdate struct {
	DocumentID    string
	ObjectID      string
	ObjectIDField string
	ItemType      string
	Metadata      map[string]any
}

// HasAlternateID reports whether the full alternate identifier triple is present.
func (u *MetadataUpdate) HasAlternateID() bool {
	return u.ObjectID != "" && u.ObjectIDField != "" && u.ItemType != ""
}

// WorkItem is one unit of work in a batch.
// Exactly one of Upload, Download or Metadata is set, matching Kind.
// Work items are never mutated after dispatch.
type WorkItem struct {
	Kind     WorkKind
	Upload   *UploadRequest
	Download *DownloadRequest
	Metadata *MetadataUpdate
}

// NewUploadItem creates an upload work item.
func NewUploadItem(req UploadRequest) WorkItem {
	return WorkItem{Kind: WorkUpload, Upload: &req}
}

// NewDownloadItem creates a download work item.
func NewDownloadItem(req DownloadRequest) WorkItem {
	return WorkItem{Kind: WorkDownload, Download: &req}
}

// NewMetadataItem creates a metadata update work item.
func NewMetadataItem(req MetadataUpdate) WorkItem {
	return WorkItem{Kind: WorkMetadata, Metadata: &req}
}

// Identifier derives a human-readable identity from the payload.
// Returns an empty string when the payload carries no identity.
func (w WorkItem) Identifier() string {
	switch w.Kind {
	case WorkUpload:
		if w.Upload != nil {
			return w.Upload.Path
		}
	case WorkDownload:
		if w.Download != nil {
			return w.Download.DocumentID
		}
	case WorkMetadata:
		if w.Metadata == nil {
			return ""
		}
		if w.Metadata.DocumentID != "" {
			return w.Metadata.DocumentID
		}
		if w.Metadata.ObjectID != "" {
			return w.Metadata.ObjectIDField + "=" + w.Metadata.ObjectID
		}
	}
	return ""
}

// Item is a document returned by a repository search.
type Item struct {
	ID         string
	ItemType   string
	Attributes map[string]any
}
