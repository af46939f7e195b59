// Package commands orchestrates provider fetches, selection, and
// aggregation for the command surfaces.
package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/ctrlcv/internal/metrics"
	"github.com/temirov/ctrlcv/internal/output"
	"github.com/temirov/ctrlcv/internal/provider"
	"github.com/temirov/ctrlcv/internal/selection"
	"github.com/temirov/ctrlcv/internal/services/fetch"
	"github.com/temirov/ctrlcv/internal/tokenizer"
	"github.com/temirov/ctrlcv/internal/types"
	"github.com/temirov/ctrlcv/internal/utils"
)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Provider   provider.Provider
	Fetch      fetch.Options
	Classifier selection.Classifier
	Logger     *zap.Logger
}

// Pipeline loads repository trees and turns selections into documents.
type Pipeline struct {
	provider   provider.Provider
	fetcher    fetch.Service
	classifier selection.Classifier
	logger     *zap.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(options PipelineOptions) Pipeline {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fetchOptions := options.Fetch
	if fetchOptions.Logger == nil {
		fetchOptions.Logger = logger
	}
	return Pipeline{
		provider:   options.Provider,
		fetcher:    fetch.NewService(options.Provider, fetchOptions),
		classifier: options.Classifier,
		logger:     logger,
	}
}

// Classifier returns the extension classifier of the pipeline.
func (pipeline Pipeline) Classifier() selection.Classifier {
	return pipeline.classifier
}

// LoadedTree is a fetched listing turned into a tree.
type LoadedTree struct {
	Reference  provider.Reference
	CommitHash string
	Listing    types.TreeListing
	Tree       types.Tree
}

// LoadTree parses repository, fetches its listing at commit, and builds the tree.
func (pipeline Pipeline) LoadTree(ctx context.Context, repository string, commit string) (LoadedTree, error) {
	reference, parseError := provider.ParseReference(repository)
	if parseError != nil {
		return LoadedTree{}, parseError
	}
	listing, fetchError := pipeline.provider.FetchTreeListing(ctx, reference, commit)
	if fetchError != nil {
		return LoadedTree{}, fetchError
	}
	tree := selection.BuildTree(listing.Entries)
	files, directories := selection.CountNodes(tree)
	metrics.RecordTreeBuilt(files + directories)
	pipeline.logger.Info("built repository tree",
		zap.String("repository", reference.Identifier()),
		zap.String("commit", listing.CommitHash),
		zap.Int("files", files),
		zap.Int("directories", directories))
	return LoadedTree{Reference: reference, CommitHash: listing.CommitHash, Listing: listing, Tree: tree}, nil
}

// PathToggle is a direct selection override applied after the rule recompute.
type PathToggle struct {
	Path     string
	Selected bool
}

// SelectionRequest describes a tree load followed by rule and path selection.
type SelectionRequest struct {
	Repository string
	Commit     string
	Extensions types.ExtensionSet
	Toggles    []PathToggle
}

// SelectionResult is a loaded tree with its computed selection.
type SelectionResult struct {
	LoadedTree
	Extensions types.ExtensionSet
	Selection  types.SelectionMap
	Available  []string
}

// Select loads the tree, recomputes the selection from the extension rules,
// and applies the path toggles in order.
func (pipeline Pipeline) Select(ctx context.Context, request SelectionRequest) (SelectionResult, error) {
	loaded, loadError := pipeline.LoadTree(ctx, request.Repository, request.Commit)
	if loadError != nil {
		return SelectionResult{}, loadError
	}
	extensions := selection.NewExtensionSet(request.Extensions.Include, request.Extensions.Exclude)
	selectionMap := selection.RecomputeWith(loaded.Tree, extensions, pipeline.classifier)
	index := selection.Index(loaded.Tree)
	for _, toggle := range request.Toggles {
		if _, known := index[toggle.Path]; !known {
			return SelectionResult{}, fmt.Errorf("%w: %q", selection.ErrUnknownPath, toggle.Path)
		}
		selectionMap = selection.SetSelected(selectionMap, loaded.Tree, toggle.Path, toggle.Selected)
	}
	return SelectionResult{
		LoadedTree: loaded,
		Extensions: extensions,
		Selection:  selectionMap,
		Available:  selection.AvailableExtensions(loaded.Tree, pipeline.classifier),
	}, nil
}

// TreeView returns the renderable view of the result.
func (result SelectionResult) TreeView(classifier selection.Classifier) output.TreeView {
	return output.TreeView{Tree: result.Tree, Selection: result.Selection, Classifier: classifier}
}

// TokenOptions requests a token estimate of the aggregated document.
type TokenOptions struct {
	Counter tokenizer.Counter
	Model   string
}

// AggregateRequest names the selection to turn into a document.
type AggregateRequest struct {
	Reference  provider.Reference
	CommitHash string
	Tree       types.Tree
	Selection  types.SelectionMap
	Extensions types.ExtensionSet
	Tokens     TokenOptions
}

// FetchSelected fetches the content of every selected, non-excluded file in
// traversal order.
func (pipeline Pipeline) FetchSelected(ctx context.Context, request AggregateRequest) (fetch.Result, error) {
	selectedPaths := selection.SelectedFilePaths(request.Selection, request.Tree, request.Extensions, pipeline.classifier)
	index := selection.Index(request.Tree)
	nodes := make([]*types.Node, 0, len(selectedPaths))
	for _, path := range selectedPaths {
		nodes = append(nodes, index[path])
	}
	return pipeline.fetcher.FetchContents(ctx, request.Reference, request.CommitHash, nodes)
}

// Aggregate fetches the selected files and concatenates them. A failed
// fetch yields no document.
func (pipeline Pipeline) Aggregate(ctx context.Context, request AggregateRequest) (types.ConvertOutput, error) {
	fetched, fetchError := pipeline.FetchSelected(ctx, request)
	if fetchError != nil {
		return types.ConvertOutput{}, fetchError
	}
	document := output.AggregateWith(fetched.Files, request.Extensions, pipeline.classifier)
	metrics.RecordAggregatedBytes(len(document))

	result := types.ConvertOutput{
		Repository: request.Reference.Identifier(),
		CommitHash: request.CommitHash,
		Files:      make([]string, 0, len(fetched.Files)),
		Extensions: request.Extensions,
		Content:    document,
		TotalSize:  utils.FormatFileSize(int64(len(document))),
	}
	for _, file := range fetched.Files {
		result.Files = append(result.Files, file.Path)
	}
	for _, skipped := range fetched.Skipped {
		result.Skipped = append(result.Skipped, skipped.Path)
	}
	if request.Tokens.Counter != nil {
		counted, countError := tokenizer.CountText(request.Tokens.Counter, document)
		if countError != nil {
			pipeline.logger.Warn("failed to count tokens", zap.Error(countError))
		} else if counted.Counted {
			result.Tokens = counted.Tokens
			result.Model = request.Tokens.Model
		}
	}
	pipeline.logger.Info("aggregated selection",
		zap.String("repository", result.Repository),
		zap.Int("files", len(result.Files)),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("size", result.TotalSize))
	return result, nil
}

// ConvertRequest combines a selection request with aggregation options.
type ConvertRequest struct {
	SelectionRequest
	Tokens TokenOptions
}

// Convert runs the whole pipeline: load, select, fetch, aggregate.
func (pipeline Pipeline) Convert(ctx context.Context, request ConvertRequest) (types.ConvertOutput, error) {
	selected, selectError := pipeline.Select(ctx, request.SelectionRequest)
	if selectError != nil {
		return types.ConvertOutput{}, selectError
	}
	return pipeline.Aggregate(ctx, AggregateRequest{
		Reference:  selected.Reference,
		CommitHash: selected.CommitHash,
		Tree:       selected.Tree,
		Selection:  selected.Selection,
		Extensions: selected.Extensions,
		Tokens:     request.Tokens,
	})
}
