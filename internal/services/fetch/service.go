// Package fetch retrieves the content of selected files concurrently.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/ctrlcv/internal/metrics"
	"github.com/temirov/ctrlcv/internal/provider"
	"github.com/temirov/ctrlcv/internal/types"
	"github.com/temirov/ctrlcv/internal/utils"
)

const (
	// DefaultConcurrency bounds simultaneous content requests.
	DefaultConcurrency = 8
	// DefaultMaxFileSize is the largest file included in the output.
	DefaultMaxFileSize int64 = 1024 * 1024

	// SkipReasonOversize marks files larger than the configured limit.
	SkipReasonOversize = "oversize"
	skipReasonBinary   = "binary"

	binaryPlaceholderFormat = "Binary file: %s (size: %d bytes)"
)

// Options configures a Service.
type Options struct {
	Concurrency int
	MaxFileSize int64
	Logger      *zap.Logger
}

// SkippedFile is a selected file left out of the result.
type SkippedFile struct {
	Path   string
	Reason string
}

// Result holds fetched files in request order.
type Result struct {
	Files   []types.FileContent
	Skipped []SkippedFile
}

// Service fans content requests out to a Provider.
type Service struct {
	provider    provider.Provider
	concurrency int
	maxFileSize int64
	logger      *zap.Logger
}

// NewService returns a Service reading from contentProvider.
func NewService(contentProvider provider.Provider, options Options) Service {
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}
	if options.MaxFileSize <= 0 {
		options.MaxFileSize = DefaultMaxFileSize
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return Service{
		provider:    contentProvider,
		concurrency: options.Concurrency,
		maxFileSize: options.MaxFileSize,
		logger:      options.Logger,
	}
}

// FetchContents fetches every file node at commit. The result keeps the order
// of files regardless of completion order. Files above the size limit are
// skipped and binary content is replaced by a placeholder. Any failure aborts
// the whole fetch; a missing path yields provider.ErrPathNotFound.
func (service Service) FetchContents(ctx context.Context, reference provider.Reference, commit string, files []*types.Node) (Result, error) {
	contents := make([]*types.FileContent, len(files))
	skipped := make([]*SkippedFile, len(files))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(service.concurrency)
	for index, file := range files {
		if file == nil || file.IsDirectory() {
			continue
		}
		if file.Size > service.maxFileSize {
			skipped[index] = service.skip(file.Path, file.Size)
			continue
		}
		index, file := index, file
		group.Go(func() error {
			content, fetchError := service.provider.FetchFileContent(groupCtx, reference, file.Path, commit)
			if fetchError != nil {
				if errors.Is(fetchError, provider.ErrNotFound) {
					return fmt.Errorf("%s: %w", file.Path, provider.ErrPathNotFound)
				}
				return fetchError
			}
			size := int64(len(content))
			if size > service.maxFileSize {
				skipped[index] = service.skip(file.Path, size)
				return nil
			}
			if utils.IsBinary([]byte(content)) {
				metrics.RecordSkippedFile(skipReasonBinary)
				content = fmt.Sprintf(binaryPlaceholderFormat, file.Path, size)
			}
			service.logger.Debug("fetched selected file", zap.String("path", file.Path), zap.Int64("bytes", size))
			contents[index] = &types.FileContent{Path: file.Path, Content: content}
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return Result{}, waitError
	}

	var result Result
	for index := range files {
		if contents[index] != nil {
			result.Files = append(result.Files, *contents[index])
		}
		if skipped[index] != nil {
			result.Skipped = append(result.Skipped, *skipped[index])
		}
	}
	return result, nil
}

func (service Service) skip(path string, size int64) *SkippedFile {
	service.logger.Warn("skipping oversized file",
		zap.String("path", path),
		zap.String("size", utils.FormatFileSize(size)),
		zap.String("limit", utils.FormatFileSize(service.maxFileSize)))
	metrics.RecordSkippedFile(SkipReasonOversize)
	return &SkippedFile{Path: path, Reason: SkipReasonOversize}
}
