package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// collisionTimeFormat is appended to a file name that already exists at the destination.
const collisionTimeFormat = "20060102150405"

// timeNow is replaced in tests.
var timeNow = time.Now

// Archiver moves files that could not be uploaded into a failed archive.
// Files are grouped by reason in sub-directories of the archive root.
type Archiver struct {
	root string
}

// NewArchiver creates an archiver rooted at dir.
func NewArchiver(dir string) *Archiver {
	return &Archiver{root: dir}
}

// Root returns the archive root directory.
func (a *Archiver) Root() string {
	return a.root
}

// Archive moves path into root/reason and returns the new location.
// An existing file of the same name is never overwritten.
func (a *Archiver) Archive(path, reason string) (string, error) {
	if a.root == "" {
		return "", errors.New("failed archive directory not configured")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	dir := filepath.Join(a.root, reason)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	return moveUnique(path, dir)
}

// maxCollisions bounds the numbered names tried after the timestamped one.
const maxCollisions = 1000

// moveUnique moves src into dir under a name that no other file holds and
// returns the new path. The name is the source base name, then the base name
// with a timestamp, then the timestamped name with a counter.
func moveUnique(src, dir string) (string, error) {
	dest, err := reservePath(filepath.Join(dir, filepath.Base(src)), timeNow())
	if err != nil {
		return "", err
	}
	if err := moveFile(src, dest); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// reservePath creates an empty placeholder at the first free candidate name
// for path and returns it. Creation is exclusive, so concurrent callers
// never receive the same name.
func reservePath(path string, now time.Time) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	stamped := base + "_" + now.Format(collisionTimeFormat)

	for i := 0; i <= maxCollisions+1; i++ {
		candidate := path
		switch {
		case i == 1:
			candidate = stamped + ext
		case i > 1:
			candidate = fmt.Sprintf("%s_%d%s", stamped, i, ext)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			f.Close()
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("reserve destination: %w", err)
		}
	}
	return "", fmt.Errorf("reserve destination: no free name for %s", path)
}

// moveFile renames src onto the reserved path dst, falling back to copy and
// delete when the paths are on different file systems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	in.Close()
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}
