package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/historiar/monument-assets/pkg/assetversion"
)

// Backend is an in-memory implementation of the assetversion.BlobStore
// interface, used in tests and development.
type Backend struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	mimeTypes map[string]string
	updatedAt map[string]time.Time
	urlPrefix string
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects:   make(map[string][]byte),
		mimeTypes: make(map[string]string),
		updatedAt: make(map[string]time.Time),
		urlPrefix: "memory://",
	}
}

func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = data
	b.updatedAt[objectKey] = time.Now().UTC()
	if _, exists := b.mimeTypes[objectKey]; !exists {
		b.mimeTypes[objectKey] = "application/octet-stream"
	}
	return nil
}

func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params assetversion.UploadParams) error {
	if err := b.Upload(ctx, params.ObjectKey, reader); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mimeTypes[params.ObjectKey] = params.MimeType
	return nil
}

func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, assetversion.ErrKeyNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return assetversion.ErrKeyNotFound
	}

	delete(b.objects, objectKey)
	delete(b.mimeTypes, objectKey)
	delete(b.updatedAt, objectKey)
	return nil
}

func (b *Backend) Exists(ctx context.Context, objectKey string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.objects[objectKey]
	return exists
}

func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*assetversion.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, assetversion.ErrKeyNotFound
	}

	return &assetversion.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(data)),
		ContentType: b.mimeTypes[objectKey],
		UpdatedAt:   b.updatedAt[objectKey],
		Metadata:    map[string]string{"mime_type": b.mimeTypes[objectKey]},
	}, nil
}

func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	return fmt.Sprintf("%s%s", b.urlPrefix, objectKey), nil
}

func (b *Backend) List(ctx context.Context, prefix string) ([]*assetversion.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*assetversion.ObjectMeta
	for key, data := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		result = append(result, &assetversion.ObjectMeta{
			Key:         key,
			Size:        int64(len(data)),
			ContentType: b.mimeTypes[key],
			UpdatedAt:   b.updatedAt[key],
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}
