// Package provider defines the boundary to the hosted repository service
// and the wrappers layered on top of it.
package provider

import (
	"context"

	"github.com/temirov/ctrlcv/internal/types"
)

// Provider supplies repository structure and file content.
type Provider interface {
	// FetchTreeListing returns the nested listing of the repository at commit
	// together with the resolved commit hash. An empty commit means the
	// reference's branch head.
	FetchTreeListing(ctx context.Context, reference Reference, commit string) (types.TreeListing, error)
	// FetchFileContent returns the content of path at commit. Missing paths
	// yield an error wrapping ErrNotFound.
	FetchFileContent(ctx context.Context, reference Reference, path string, commit string) (string, error)
}
