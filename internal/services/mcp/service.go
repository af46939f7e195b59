// Package mcp exposes an interactive selection session as Model Context
// Protocol tools over stdio.
package mcp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/temirov/ctrlcv/internal/commands"
	"github.com/temirov/ctrlcv/internal/output"
	"github.com/temirov/ctrlcv/internal/provider"
	"github.com/temirov/ctrlcv/internal/selection"
	"github.com/temirov/ctrlcv/internal/tokenizer"
	"github.com/temirov/ctrlcv/internal/types"
)

const implementationName = "ctrlcv"

// TokenCounterFactory builds a token counter for a model.
type TokenCounterFactory func(model string) (tokenizer.Counter, string, error)

// Config defines the dependencies of a Service.
type Config struct {
	Pipeline      commands.Pipeline
	TokenCounters TokenCounterFactory
	Version       string
	Logger        *zap.Logger
}

// Service owns one selection session and serves it as MCP tools.
type Service struct {
	pipeline      commands.Pipeline
	session       *selection.Session
	tokenCounters TokenCounterFactory
	version       string
	logger        *zap.Logger
}

// NewService creates a Service with an empty session.
func NewService(config Config) *Service {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	counters := config.TokenCounters
	if counters == nil {
		counters = func(model string) (tokenizer.Counter, string, error) {
			return tokenizer.NewCounter(tokenizer.Config{Model: model})
		}
	}
	return &Service{
		pipeline:      config.Pipeline,
		session:       selection.NewSession(config.Pipeline.Classifier()),
		tokenCounters: counters,
		version:       config.Version,
		logger:        logger,
	}
}

// Server builds an MCP server with every tool registered.
func (service *Service) Server() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: implementationName, Version: service.version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_repository",
		Description: "Fetch a GitHub repository tree into the session. Resets the selection and, unless preserveRules is set, the file type rules.",
	}, service.LoadRepository)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "toggle_extension",
		Description: "Cycle a file extension: absent to include, include to exclude, exclude to absent. Recomputes the selection.",
	}, service.ToggleExtension)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_extension",
		Description: "Add an extension to the include or exclude rules. Recomputes the selection.",
	}, service.AddExtension)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_file_types",
		Description: "Replace the include and exclude rules. Recomputes the selection.",
	}, service.SetFileTypes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_selected",
		Description: "Select or deselect a file or a directory with all its descendants.",
	}, service.SetSelected)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "selection_tree",
		Description: "Render the loaded tree with selected, indeterminate, and unselected markers.",
	}, service.SelectionTree)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "aggregate",
		Description: "Fetch the selected files and concatenate them into one document.",
	}, service.Aggregate)

	return server
}

// Run serves the tools over stdio until ctx is canceled or the client disconnects.
func (service *Service) Run(ctx context.Context) error {
	service.logger.Info("mcp server starting", zap.String("transport", "stdio"))
	if runErr := service.Server().Run(ctx, &mcp.StdioTransport{}); runErr != nil {
		return fmt.Errorf("run mcp server: %w", runErr)
	}
	return nil
}

// LoadRepository fetches and installs a tree. A load that completes after a
// newer load has installed reports Superseded and leaves the session
// untouched.
func (service *Service) LoadRepository(ctx context.Context, request *mcp.CallToolRequest, input LoadRepositoryInput) (*mcp.CallToolResult, LoadRepositoryOutput, error) {
	generation := service.session.BeginLoad()
	loaded, loadErr := service.pipeline.LoadTree(ctx, input.Repository, input.Commit)
	if loadErr != nil {
		return nil, LoadRepositoryOutput{}, loadErr
	}
	files, directories := selection.CountNodes(loaded.Tree)
	result := LoadRepositoryOutput{
		Repository:     loaded.Reference.Identifier(),
		CommitHash:     loaded.CommitHash,
		Files:          files,
		Directories:    directories,
		AvailableTypes: selection.AvailableExtensions(loaded.Tree, service.pipeline.Classifier()),
	}
	if !service.session.Install(generation, loaded.Reference.Identifier(), loaded.Listing, input.PreserveRules) {
		service.logger.Debug("dropped superseded tree load", zap.String("repository", result.Repository))
		result.Superseded = true
	}
	return nil, result, nil
}

// ToggleExtension cycles an extension through the rule sets.
func (service *Service) ToggleExtension(ctx context.Context, request *mcp.CallToolRequest, input ToggleExtensionInput) (*mcp.CallToolResult, FileTypesOutput, error) {
	extensions, toggleErr := service.session.ToggleExtension(selection.NormalizeExtension(input.Extension))
	if toggleErr != nil {
		return nil, FileTypesOutput{}, toggleErr
	}
	return nil, FileTypesOutput{FileTypes: extensions, SelectedFiles: service.session.SelectedPaths()}, nil
}

// AddExtension adds a typed extension to a rule set.
func (service *Service) AddExtension(ctx context.Context, request *mcp.CallToolRequest, input AddExtensionInput) (*mcp.CallToolResult, FileTypesOutput, error) {
	extensions, addErr := service.session.AddCustomExtension(input.Extension, input.Include)
	if addErr != nil {
		return nil, FileTypesOutput{}, addErr
	}
	return nil, FileTypesOutput{FileTypes: extensions, SelectedFiles: service.session.SelectedPaths()}, nil
}

// SetFileTypes replaces both rule sets.
func (service *Service) SetFileTypes(ctx context.Context, request *mcp.CallToolRequest, input SetFileTypesInput) (*mcp.CallToolResult, FileTypesOutput, error) {
	extensions := selection.NewExtensionSet(input.Include, input.Exclude)
	if setErr := service.session.SetExtensions(extensions); setErr != nil {
		return nil, FileTypesOutput{}, setErr
	}
	return nil, FileTypesOutput{FileTypes: extensions, SelectedFiles: service.session.SelectedPaths()}, nil
}

// SetSelected applies a direct toggle.
func (service *Service) SetSelected(ctx context.Context, request *mcp.CallToolRequest, input SetSelectedInput) (*mcp.CallToolResult, SetSelectedOutput, error) {
	if setErr := service.session.SetSelected(input.Path, input.Selected); setErr != nil {
		return nil, SetSelectedOutput{}, setErr
	}
	state, stateErr := service.session.DisplayState(input.Path)
	if stateErr != nil {
		return nil, SetSelectedOutput{}, stateErr
	}
	return nil, SetSelectedOutput{Path: input.Path, State: state.String(), SelectedFiles: service.session.SelectedPaths()}, nil
}

// SelectionTree renders the current tree.
func (service *Service) SelectionTree(ctx context.Context, request *mcp.CallToolRequest, input SelectionTreeInput) (*mcp.CallToolResult, SelectionTreeOutput, error) {
	snapshot, snapshotErr := service.session.Snapshot()
	if snapshotErr != nil {
		return nil, SelectionTreeOutput{}, snapshotErr
	}
	nodes := output.BuildTreeOutput(output.TreeView{Tree: snapshot.Tree, Selection: snapshot.Selection, Classifier: service.session.Classifier()})
	var rendered string
	switch input.Format {
	case "", types.FormatRaw:
		var buffer bytes.Buffer
		output.WriteTreeRaw(&buffer, nodes, selection.AvailableExtensions(snapshot.Tree, service.session.Classifier()), false)
		rendered = buffer.String()
	case types.FormatJSON:
		encoded, renderErr := output.RenderTreeJSON(nodes)
		if renderErr != nil {
			return nil, SelectionTreeOutput{}, renderErr
		}
		rendered = encoded
	default:
		return nil, SelectionTreeOutput{}, fmt.Errorf("unsupported tree format %q", input.Format)
	}
	return nil, SelectionTreeOutput{Repository: snapshot.Repository, CommitHash: snapshot.CommitHash, Tree: rendered}, nil
}

// Aggregate fetches the selected files of the current snapshot.
func (service *Service) Aggregate(ctx context.Context, request *mcp.CallToolRequest, input AggregateInput) (*mcp.CallToolResult, AggregateOutput, error) {
	snapshot, snapshotErr := service.session.Snapshot()
	if snapshotErr != nil {
		return nil, AggregateOutput{}, snapshotErr
	}
	reference, parseErr := provider.ParseReference(snapshot.Repository)
	if parseErr != nil {
		return nil, AggregateOutput{}, parseErr
	}
	aggregateRequest := commands.AggregateRequest{
		Reference:  reference,
		CommitHash: snapshot.CommitHash,
		Tree:       snapshot.Tree,
		Selection:  snapshot.Selection,
		Extensions: snapshot.Extensions,
	}
	if input.Tokens {
		counter, model, counterErr := service.tokenCounters(input.Model)
		if counterErr != nil {
			return nil, AggregateOutput{}, counterErr
		}
		aggregateRequest.Tokens = commands.TokenOptions{Counter: counter, Model: model}
	}
	converted, aggregateErr := service.pipeline.Aggregate(ctx, aggregateRequest)
	if aggregateErr != nil {
		return nil, AggregateOutput{}, aggregateErr
	}
	return nil, AggregateOutput{
		Repository: converted.Repository,
		CommitHash: converted.CommitHash,
		Files:      converted.Files,
		Skipped:    converted.Skipped,
		Content:    converted.Content,
		TotalSize:  converted.TotalSize,
		Tokens:     converted.Tokens,
		Model:      converted.Model,
	}, nil
}
