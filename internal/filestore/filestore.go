package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"group-chat-service/internal/models"
)

// Store persists message attachments and returns a stable retrievable URL.
// The engine keeps only the returned url/name/size tuple.
type Store interface {
	Save(ctx context.Context, groupID int, name string, r io.Reader) (models.FileMeta, error)
}

// DiskStore writes attachments to a local directory served as static files.
type DiskStore struct {
	dir        string
	publicBase string
}

func NewDiskStore(dir, publicBase string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// Save streams the upload to disk under a collision-free name.
func (s *DiskStore) Save(ctx context.Context, groupID int, name string, r io.Reader) (models.FileMeta, error) {
	filename := fmt.Sprintf("group-%d-%s%s", groupID, uuid.NewString(), filepath.Ext(name))
	path := filepath.Join(s.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return models.FileMeta{}, err
	}

	written, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return models.FileMeta{}, err
	}

	return models.FileMeta{
		URL:  s.publicBase + "/" + filename,
		Name: name,
		Size: written,
	}, nil
}

// KindFromContentType maps a MIME type to a message kind.
func KindFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.KindImage
	case strings.HasPrefix(contentType, "video/"):
		return models.KindVideo
	case contentType == "application/pdf":
		return models.KindPDF
	default:
		return models.KindFile
	}
}

// AllowedContentType reports whether uploads of this MIME type are accepted.
func AllowedContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") ||
		strings.HasPrefix(contentType, "video/") ||
		contentType == "application/pdf"
}
