// Package sweep reconciles blob storage against the version record store:
// blobs whose keys no live record references are orphans (left behind by
// failed uploads or partial cascade deletes) and get removed once they are
// older than a grace period.
package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/historiar/monument-assets/pkg/assetversion"
)

// KeyLister is the subset of the repository the sweeper needs.
type KeyLister interface {
	ListStorageKeys(ctx context.Context) ([]string, error)
}

// Sweeper deletes orphaned blobs from one storage backend.
type Sweeper struct {
	store assetversion.BlobStore
	repo  KeyLister
}

// New creates a new Sweeper instance
func New(store assetversion.BlobStore, repo KeyLister) *Sweeper {
	return &Sweeper{store: store, repo: repo}
}

// Options configures a sweep run.
type Options struct {
	// Prefix limits the sweep to keys under this prefix (empty = whole bucket)
	Prefix string

	// GracePeriod protects recent blobs: an upload in flight has a blob
	// before its record exists, and must not be swept (default: 24h)
	GracePeriod time.Duration

	// Parallelism caps concurrent deletes (default: 10)
	Parallelism int

	// DryRun reports what would be deleted without deleting
	DryRun bool
}

// Result contains statistics about a sweep run.
type Result struct {
	BlobsScanned int
	OrphansFound int
	Deleted      int
	Failed       int
	FailedKeys   []string
	SkippedYoung int
}

// Sweep lists blobs under the prefix, diffs them against the keys referenced
// by live records, and deletes the orphans. Individual delete failures are
// recorded and do not stop the run.
func (s *Sweeper) Sweep(ctx context.Context, opts Options) (*Result, error) {
	if opts.GracePeriod == 0 {
		opts.GracePeriod = 24 * time.Hour
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 10
	}

	keys, err := s.repo.ListStorageKeys(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]bool, len(keys))
	for _, key := range keys {
		referenced[key] = true
	}

	blobs, err := s.store.List(ctx, opts.Prefix)
	if err != nil {
		return nil, err
	}

	result := &Result{BlobsScanned: len(blobs)}
	cutoff := time.Now().Add(-opts.GracePeriod)

	var orphans []string
	for _, blob := range blobs {
		if referenced[blob.Key] {
			continue
		}
		if blob.UpdatedAt.After(cutoff) {
			result.SkippedYoung++
			continue
		}
		orphans = append(orphans, blob.Key)
	}
	result.OrphansFound = len(orphans)

	if opts.DryRun {
		return result, nil
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(opts.Parallelism)
	for _, key := range orphans {
		g.Go(func() error {
			err := s.store.Delete(ctx, key)

			mu.Lock()
			defer mu.Unlock()
			if err != nil && !errors.Is(err, assetversion.ErrKeyNotFound) {
				result.Failed++
				result.FailedKeys = append(result.FailedKeys, key)
			} else {
				result.Deleted++
			}
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}
