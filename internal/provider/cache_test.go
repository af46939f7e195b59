package provider_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/temirov/ctrlcv/internal/provider"
	"github.com/temirov/ctrlcv/internal/types"
)

type countingProvider struct {
	listingCalls atomic.Int32
	contentCalls atomic.Int32
	failListing  atomic.Bool
	delay        time.Duration
}

func (stub *countingProvider) FetchTreeListing(ctx context.Context, reference provider.Reference, commit string) (types.TreeListing, error) {
	stub.listingCalls.Add(1)
	if stub.delay > 0 {
		time.Sleep(stub.delay)
	}
	if stub.failListing.Load() {
		return types.TreeListing{}, errors.New("upstream unavailable")
	}
	return types.TreeListing{
		Entries:    []types.ProviderEntry{{Name: "a.go", Kind: types.NodeTypeFile}},
		CommitHash: "abc123",
	}, nil
}

func (stub *countingProvider) FetchFileContent(ctx context.Context, reference provider.Reference, path string, commit string) (string, error) {
	stub.contentCalls.Add(1)
	if path == "missing" {
		return "", provider.ErrNotFound
	}
	return "content of " + path, nil
}

type gatedListingProvider struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (stub *gatedListingProvider) FetchTreeListing(ctx context.Context, reference provider.Reference, commit string) (types.TreeListing, error) {
	stub.calls.Add(1)
	stub.entered <- struct{}{}
	<-stub.release
	if ctx.Err() != nil {
		return types.TreeListing{}, ctx.Err()
	}
	return types.TreeListing{CommitHash: "abc123"}, nil
}

func (stub *gatedListingProvider) FetchFileContent(ctx context.Context, reference provider.Reference, path string, commit string) (string, error) {
	return "", provider.ErrNotFound
}

var octoReference = provider.Reference{Owner: "octo", Repository: "repo"}

func TestCachingProviderServesRepeatedListings(t *testing.T) {
	upstream := &countingProvider{}
	caching := provider.NewCachingProvider(upstream, provider.NewMemoryCache(), nil)
	for attempt := 0; attempt < 3; attempt++ {
		listing, err := caching.FetchTreeListing(context.Background(), octoReference, "")
		if err != nil {
			t.Fatalf("FetchTreeListing error: %v", err)
		}
		if listing.CommitHash != "abc123" {
			t.Fatalf("unexpected commit %s", listing.CommitHash)
		}
	}
	if _, err := caching.FetchTreeListing(context.Background(), octoReference, "abc123"); err != nil {
		t.Fatalf("FetchTreeListing error: %v", err)
	}
	if calls := upstream.listingCalls.Load(); calls != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}
}

func TestCachingProviderCollapsesConcurrentListings(t *testing.T) {
	upstream := &countingProvider{delay: 50 * time.Millisecond}
	caching := provider.NewCachingProvider(upstream, nil, nil)
	var waitGroup sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if _, err := caching.FetchTreeListing(context.Background(), octoReference, "pinned"); err != nil {
				t.Errorf("FetchTreeListing error: %v", err)
			}
		}()
	}
	waitGroup.Wait()
	if calls := upstream.listingCalls.Load(); calls != 1 {
		t.Fatalf("expected concurrent fetches to collapse, got %d upstream calls", calls)
	}
}

func TestCachingProviderDoesNotCacheFailures(t *testing.T) {
	upstream := &countingProvider{}
	upstream.failListing.Store(true)
	caching := provider.NewCachingProvider(upstream, provider.NewMemoryCache(), nil)
	if _, err := caching.FetchTreeListing(context.Background(), octoReference, ""); err == nil {
		t.Fatalf("expected upstream failure")
	}
	upstream.failListing.Store(false)
	if _, err := caching.FetchTreeListing(context.Background(), octoReference, ""); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls := upstream.listingCalls.Load(); calls != 2 {
		t.Fatalf("expected failure to bypass the cache, got %d calls", calls)
	}
}

func TestCachingProviderContent(t *testing.T) {
	upstream := &countingProvider{}
	caching := provider.NewCachingProvider(upstream, provider.NewMemoryCache(), nil)
	for attempt := 0; attempt < 2; attempt++ {
		content, err := caching.FetchFileContent(context.Background(), octoReference, "a.go", "abc123")
		if err != nil || content != "content of a.go" {
			t.Fatalf("unexpected content %q, err %v", content, err)
		}
	}
	if calls := upstream.contentCalls.Load(); calls != 1 {
		t.Fatalf("expected pinned content cached, got %d calls", calls)
	}
	for attempt := 0; attempt < 2; attempt++ {
		if _, err := caching.FetchFileContent(context.Background(), octoReference, "missing", "abc123"); !errors.Is(err, provider.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if calls := upstream.contentCalls.Load(); calls != 3 {
		t.Fatalf("expected missing content to reach upstream each time, got %d calls", calls)
	}
}

func TestCachingProviderSharedListingOutlivesCanceledCaller(t *testing.T) {
	upstream := &gatedListingProvider{entered: make(chan struct{}, 1), release: make(chan struct{})}
	caching := provider.NewCachingProvider(upstream, provider.NewMemoryCache(), nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErrCh := make(chan error, 1)
	go func() {
		_, err := caching.FetchTreeListing(firstCtx, octoReference, "pinned")
		firstErrCh <- err
	}()
	select {
	case <-upstream.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("upstream fetch did not start")
	}
	cancelFirst()
	select {
	case err := <-firstErrCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled caller to stop waiting, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("canceled caller kept waiting on the shared fetch")
	}

	type listingResult struct {
		listing types.TreeListing
		err     error
	}
	secondCh := make(chan listingResult, 1)
	go func() {
		listing, err := caching.FetchTreeListing(context.Background(), octoReference, "pinned")
		secondCh <- listingResult{listing: listing, err: err}
	}()
	close(upstream.release)

	select {
	case result := <-secondCh:
		if result.err != nil {
			t.Fatalf("expected shared fetch to succeed, got %v", result.err)
		}
		if result.listing.CommitHash != "abc123" {
			t.Fatalf("unexpected listing %+v", result.listing)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("second caller did not receive the listing")
	}
	if calls := upstream.calls.Load(); calls != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}
}
