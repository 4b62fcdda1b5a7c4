// Package storage provides the object-storage collaborator used for
// message attachments. The delivery core persists only the returned
// reference, never the bytes.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"linkup/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Ref identifies a stored blob.
type Ref struct {
	StorageID string
	URL       string
}

type IObjectStorage interface {
	Upload(data []byte) (Ref, error)
}

// allowed image types, matching what clients can render inline
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DiskStorage keeps attachment blobs on the local filesystem and serves
// them back under baseURL. It stands in for a hosted object store in
// single-node deployments.
type DiskStorage struct {
	dir     string
	baseURL string
}

func NewDiskStorage(dir, baseURL string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("attachment directory: %w", err)
	}
	return &DiskStorage{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload sniffs the content type from the actual bytes (the declared
// filename is ignored), rejects anything outside the image allow-list,
// and writes the blob under a fresh storage ID.
func (s *DiskStorage) Upload(data []byte) (Ref, error) {
	detected := mimetype.Detect(data)
	ext, ok := allowedTypes[detected.String()]
	if !ok {
		return Ref{}, fmt.Errorf("%w: %s", errors.ErrUnsupportedAttachment, detected.String())
	}

	storageID := uuid.New().String()
	filename := storageID + ext
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return Ref{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}

	return Ref{
		StorageID: storageID,
		URL:       s.baseURL + "/" + filename,
	}, nil
}

// Dir exposes the blob directory so the HTTP layer can serve it.
func (s *DiskStorage) Dir() string {
	return s.dir
}
