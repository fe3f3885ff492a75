package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage abstracts the archive/file-system collaborator. Ingestion depends
// only on these operations, not on a specific archive implementation.
type Storage interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	ExtractArchive(src, dst string) error
	RemoveAll(path string) error
}

// maxEntrySize caps a single archive entry copy to guard against zip bombs.
const maxEntrySize = 256 << 20

// OSStorage implements Storage on the local filesystem with archive/zip
// extraction.
type OSStorage struct{}

func (OSStorage) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSStorage) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSStorage) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// ExtractArchive unzips src into dst. Entries that would escape dst are
// rejected.
func (OSStorage) ExtractArchive(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	dstRoot := filepath.Clean(dst)
	if err := os.MkdirAll(dstRoot, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(dstRoot, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(filepath.Clean(target), dstRoot+string(os.PathSeparator)) {
			return fmt.Errorf("illegal entry path: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if err := extractEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(rc, maxEntrySize)); err != nil {
		return err
	}
	return nil
}
