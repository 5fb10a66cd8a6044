package services

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

func TestScanDirectory_UploadsMatchingFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "a")
	writeFile(t, filepath.Join(root, "b.pdf"), "b")
	writeFile(t, filepath.Join(root, "notes.txt"), "n")
	writeFile(t, filepath.Join(root, ".hidden.pdf"), "h")
	writeFile(t, filepath.Join(root, "sub", "c.pdf"), "c")

	client := &procMockClient{uploadID: "doc"}
	svc := NewJobService(testConfig(t), client, nil, nil)

	report := svc.ScanDirectory(context.Background(), domain.ScanDirectory{
		Path:        root,
		ItemType:    "Document",
		FilePattern: "*.pdf",
	})

	assert.Equal(t, domain.JobSuccess, report.Status)
	assert.Equal(t, domain.BatchSummary{Successful: 2, Total: 2}, report.Summary)
	uploads := append([]string(nil), client.uploads...)
	sort.Strings(uploads)
	assert.Equal(t, []string{filepath.Join(root, "a.pdf"), filepath.Join(root, "b.pdf")}, uploads)
}

func TestScanDirectory_Recursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "a")
	writeFile(t, filepath.Join(root, "sub", "deeper", "c.pdf"), "c")
	writeFile(t, filepath.Join(root, ".git", "d.pdf"), "d")

	client := &procMockClient{uploadID: "doc"}
	svc := NewJobService(testConfig(t), client, nil, nil)

	report := svc.ScanDirectory(context.Background(), domain.ScanDirectory{
		Path:      root,
		ItemType:  "Document",
		Recursive: true,
	})

	assert.Equal(t, 2, report.Summary.Successful)
	assert.Len(t, client.uploads, 2)
}

func TestScanDirectory_EmptyDirectory(t *testing.T) {
	svc := NewJobService(testConfig(t), &procMockClient{}, nil, nil)

	report := svc.ScanDirectory(context.Background(), domain.ScanDirectory{Path: t.TempDir(), ItemType: "Document"})

	assert.Equal(t, domain.JobSuccess, report.Status)
	assert.Zero(t, report.Summary.Total)
}

func TestScanDirectory_ConfigErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, file, "x")

	tests := []struct {
		name string
		dir  domain.ScanDirectory
	}{
		{"missing directory", domain.ScanDirectory{Path: filepath.Join(t.TempDir(), "nope"), ItemType: "Doc"}},
		{"path is a file", domain.ScanDirectory{Path: file, ItemType: "Doc"}},
		{"no item type", domain.ScanDirectory{Path: t.TempDir()}},
		{"bad pattern", domain.ScanDirectory{Path: t.TempDir(), ItemType: "Doc", FilePattern: "[a-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &procMockClient{uploadID: "doc"}
			report := NewJobService(testConfig(t), client, nil, nil).ScanDirectory(context.Background(), tt.dir)

			assert.Equal(t, domain.JobErrorConfig, report.Status)
			assert.Zero(t, client.callCount())
		})
	}
}

func TestScanDirectory_DeleteAfterUpload(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "a")
	svc := NewJobService(testConfig(t), &procMockClient{uploadID: "doc"}, nil, nil)

	report := svc.ScanDirectory(context.Background(), domain.ScanDirectory{
		Path:     root,
		ItemType: "Document",
		Action:   domain.PostUploadDelete,
	})

	require.Equal(t, domain.JobSuccess, report.Status)
	assert.NoFileExists(t, filepath.Join(root, "a.pdf"))
}

func TestScanDirectory_OutageSkipsEnumeration(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "b.txt"), "b")
	flag := &domain.OutageFlag{}
	flag.Set()
	client := &procMockClient{uploadID: "doc"}
	svc := NewJobService(testConfig(t), client, NewBatchRunner(flag), nil)

	report := svc.ScanDirectory(context.Background(), domain.ScanDirectory{Path: root, ItemType: "Document"})

	assert.Zero(t, client.callCount())
	assert.Zero(t, report.Summary.Total)
	assert.True(t, report.Summary.OutageInterrupted)
	assert.Equal(t, domain.JobPartialOutage, report.Status)
	assert.FileExists(t, filepath.Join(root, "a.txt"))
	assert.FileExists(t, filepath.Join(root, "b.txt"))
}
