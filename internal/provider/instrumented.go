package provider

import (
	"context"
	"time"

	"github.com/temirov/ctrlcv/internal/metrics"
	"github.com/temirov/ctrlcv/internal/types"
)

// InstrumentedProvider records fetch counts and latency for an upstream Provider.
type InstrumentedProvider struct {
	upstream Provider
}

// NewInstrumentedProvider wraps upstream.
func NewInstrumentedProvider(upstream Provider) InstrumentedProvider {
	return InstrumentedProvider{upstream: upstream}
}

// FetchTreeListing implements Provider.
func (instrumented InstrumentedProvider) FetchTreeListing(ctx context.Context, reference Reference, commit string) (types.TreeListing, error) {
	startTime := time.Now()
	listing, fetchError := instrumented.upstream.FetchTreeListing(ctx, reference, commit)
	metrics.RecordProviderFetch(metrics.OperationTreeListing, time.Since(startTime), fetchError == nil)
	return listing, fetchError
}

// FetchFileContent implements Provider.
func (instrumented InstrumentedProvider) FetchFileContent(ctx context.Context, reference Reference, path string, commit string) (string, error) {
	startTime := time.Now()
	content, fetchError := instrumented.upstream.FetchFileContent(ctx, reference, path, commit)
	metrics.RecordProviderFetch(metrics.OperationFileContent, time.Since(startTime), fetchError == nil)
	return content, fetchError
}
