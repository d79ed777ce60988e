package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/historiar/monument-assets/pkg/assetversion"
)

// Backend is a filesystem implementation of the assetversion.BlobStore
// interface.
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // Optional URL prefix for download URLs
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
	}, nil
}

func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(objectKey))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params assetversion.UploadParams) error {
	// The filesystem backend does not store MIME types; they are detected
	// on read.
	return b.Upload(ctx, params.ObjectKey, reader)
}

func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(objectKey))

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, assetversion.ErrKeyNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(objectKey))

	err := os.Remove(filePath)
	if os.IsNotExist(err) {
		return assetversion.ErrKeyNotFound
	} else if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, objectKey string) bool {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(objectKey))
	info, err := os.Stat(filePath)
	// Any stat failure reads as absent; availability over accuracy here.
	return err == nil && !info.IsDir()
}

func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*assetversion.ObjectMeta, error) {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(objectKey))

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, assetversion.ErrKeyNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}

	return &assetversion.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
		Metadata:    map[string]string{"content_type": contentType},
	}, nil
}

func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	if b.urlPrefix == "" {
		return "", errors.New("direct download required for filesystem backend")
	}
	return fmt.Sprintf("%s/%s", b.urlPrefix, objectKey), nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]*assetversion.ObjectMeta, error) {
	var result []*assetversion.ObjectMeta

	err := filepath.WalkDir(b.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		result = append(result, &assetversion.ObjectMeta{
			Key:       key,
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return result, nil
}
