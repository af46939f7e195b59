package provider

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/temirov/ctrlcv/internal/metrics"
	"github.com/temirov/ctrlcv/internal/types"
)

const (
	cacheKeySeparator = "@"
	latestCommitKey   = "latest"
	contentKeyMarker  = "#"
)

// Cache stores tree listings and file contents by key.
type Cache interface {
	GetListing(key string) (types.TreeListing, bool)
	PutListing(key string, listing types.TreeListing)
	GetContent(key string) (string, bool)
	PutContent(key string, content string)
}

// MemoryCache is an unbounded in-process Cache safe for concurrent use.
type MemoryCache struct {
	mutex    sync.RWMutex
	listings map[string]types.TreeListing
	contents map[string]string
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		listings: make(map[string]types.TreeListing),
		contents: make(map[string]string),
	}
}

func (cache *MemoryCache) GetListing(key string) (types.TreeListing, bool) {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	listing, found := cache.listings[key]
	return listing, found
}

func (cache *MemoryCache) PutListing(key string, listing types.TreeListing) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.listings[key] = listing
}

func (cache *MemoryCache) GetContent(key string) (string, bool) {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	content, found := cache.contents[key]
	return content, found
}

func (cache *MemoryCache) PutContent(key string, content string) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.contents[key] = content
}

// CachingProvider serves repeated fetches from a Cache and collapses
// concurrent identical listing fetches into one upstream call. Failed
// fetches are never stored.
type CachingProvider struct {
	upstream Provider
	cache    Cache
	group    singleflight.Group
	logger   *zap.Logger
}

// NewCachingProvider wraps upstream with cache.
func NewCachingProvider(upstream Provider, cache Cache, logger *zap.Logger) *CachingProvider {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingProvider{upstream: upstream, cache: cache, logger: logger}
}

// FetchTreeListing implements Provider. The shared upstream fetch ignores
// the cancellation of whichever caller started it; each caller stops
// waiting when its own ctx ends.
func (cachingProvider *CachingProvider) FetchTreeListing(ctx context.Context, reference Reference, commit string) (types.TreeListing, error) {
	key := listingKey(reference, commit)
	if listing, found := cachingProvider.cache.GetListing(key); found {
		metrics.RecordCacheLookup(true)
		cachingProvider.logger.Debug("tree listing served from cache", zap.String("key", key))
		return listing, nil
	}
	metrics.RecordCacheLookup(false)
	shared := cachingProvider.group.DoChan(key, func() (interface{}, error) {
		listing, upstreamError := cachingProvider.upstream.FetchTreeListing(context.WithoutCancel(ctx), reference, commit)
		if upstreamError != nil {
			return types.TreeListing{}, upstreamError
		}
		cachingProvider.cache.PutListing(key, listing)
		if commit == "" && listing.CommitHash != "" {
			cachingProvider.cache.PutListing(listingKey(reference, listing.CommitHash), listing)
		}
		return listing, nil
	})
	select {
	case <-ctx.Done():
		return types.TreeListing{}, ctx.Err()
	case result := <-shared:
		if result.Err != nil {
			return types.TreeListing{}, result.Err
		}
		return result.Val.(types.TreeListing), nil
	}
}

// FetchFileContent implements Provider. Content is only cached for pinned
// commits.
func (cachingProvider *CachingProvider) FetchFileContent(ctx context.Context, reference Reference, path string, commit string) (string, error) {
	if commit == "" {
		return cachingProvider.upstream.FetchFileContent(ctx, reference, path, commit)
	}
	key := listingKey(reference, commit) + contentKeyMarker + path
	if content, found := cachingProvider.cache.GetContent(key); found {
		metrics.RecordCacheLookup(true)
		return content, nil
	}
	metrics.RecordCacheLookup(false)
	content, fetchError := cachingProvider.upstream.FetchFileContent(ctx, reference, path, commit)
	if fetchError != nil {
		return "", fetchError
	}
	cachingProvider.cache.PutContent(key, content)
	return content, nil
}

func listingKey(reference Reference, commit string) string {
	if commit == "" {
		commit = latestCommitKey
		if reference.Ref != "" {
			commit += ":" + reference.Ref
		}
	}
	return reference.Identifier() + cacheKeySeparator + commit
}
