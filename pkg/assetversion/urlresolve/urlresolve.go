// Package urlresolve provides strategies for deriving the public URL stored
// on a version record from its storage key.
package urlresolve

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// CDNResolver builds public URLs that point directly at a CDN in front of
// the storage bucket.
type CDNResolver struct {
	BaseURL string // e.g. "https://cdn.example.com"
}

// NewCDNResolver creates a CDN URL resolver
func NewCDNResolver(baseURL string) *CDNResolver {
	return &CDNResolver{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (r *CDNResolver) ResolveDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	if r.BaseURL == "" {
		return "", fmt.Errorf("CDN base URL not configured")
	}
	u := fmt.Sprintf("%s/%s", r.BaseURL, objectKey)
	if downloadFilename != "" {
		u = fmt.Sprintf("%s?filename=%s", u, url.QueryEscape(downloadFilename))
	}
	return u, nil
}

// DownloadURLProvider is the subset of a blob store needed for delegated
// resolution.
type DownloadURLProvider interface {
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)
}

// StorageDelegatedResolver asks the storage backend itself for the URL
// (presigned GET on S3, path URL on the filesystem backend).
type StorageDelegatedResolver struct {
	Store DownloadURLProvider
}

// NewStorageDelegatedResolver creates a resolver that delegates to a backend
func NewStorageDelegatedResolver(store DownloadURLProvider) *StorageDelegatedResolver {
	return &StorageDelegatedResolver{Store: store}
}

func (r *StorageDelegatedResolver) ResolveDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	if r.Store == nil {
		return "", fmt.Errorf("no storage backend configured for URL resolution")
	}
	return r.Store.GetDownloadURL(ctx, objectKey, downloadFilename)
}
