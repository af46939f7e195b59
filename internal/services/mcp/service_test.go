package mcp_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/temirov/ctrlcv/internal/commands"
	"github.com/temirov/ctrlcv/internal/provider"
	"github.com/temirov/ctrlcv/internal/selection"
	"github.com/temirov/ctrlcv/internal/services/mcp"
	"github.com/temirov/ctrlcv/internal/tokenizer"
	"github.com/temirov/ctrlcv/internal/types"
)

type gatedProvider struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (stub *gatedProvider) FetchTreeListing(ctx context.Context, reference provider.Reference, commit string) (types.TreeListing, error) {
	if reference.Repository == "slow" {
		stub.entered <- struct{}{}
		<-stub.release
		return types.TreeListing{CommitHash: "slow", Entries: []types.ProviderEntry{{Name: "old.txt", Kind: types.NodeTypeFile}}}, nil
	}
	if reference.Repository == "missing" {
		return types.TreeListing{}, &provider.FetchError{Operation: "tree", Repository: reference.Identifier(), StatusCode: 404, Err: provider.ErrNotFound}
	}
	return types.TreeListing{
		CommitHash: "abc123",
		Entries: []types.ProviderEntry{
			{Name: "a.py", Kind: types.NodeTypeFile, Size: 3},
			{Name: "src", Kind: types.NodeTypeDirectory, Children: []types.ProviderEntry{
				{Name: "b.js", Kind: types.NodeTypeFile, Size: 5},
			}},
		},
	}, nil
}

func (stub *gatedProvider) FetchFileContent(ctx context.Context, reference provider.Reference, path string, commit string) (string, error) {
	contents := map[string]string{"a.py": "x=1", "src/b.js": "let b"}
	content, found := contents[path]
	if !found {
		return "", provider.ErrNotFound
	}
	return content, nil
}

type fixedCounter struct{}

func (fixedCounter) Name() string { return "fixed" }

func (fixedCounter) CountString(input string) (int, error) { return 3, nil }

func newTestService(stub provider.Provider) *mcp.Service {
	return mcp.NewService(mcp.Config{
		Pipeline: commands.NewPipeline(commands.PipelineOptions{Provider: stub, Classifier: selection.DefaultClassifier}),
		TokenCounters: func(model string) (tokenizer.Counter, string, error) {
			return fixedCounter{}, "fixed", nil
		},
		Version: "test",
	})
}

func TestToolsRequireLoadedRepository(t *testing.T) {
	service := newTestService(newGatedProvider())
	ctx := context.Background()
	if _, _, err := service.ToggleExtension(ctx, nil, mcp.ToggleExtensionInput{Extension: ".py"}); !errors.Is(err, selection.ErrNoTree) {
		t.Fatalf("expected ErrNoTree, got %v", err)
	}
	if _, _, err := service.Aggregate(ctx, nil, mcp.AggregateInput{}); !errors.Is(err, selection.ErrNoTree) {
		t.Fatalf("expected ErrNoTree, got %v", err)
	}
}

func TestSessionWorkflow(t *testing.T) {
	service := newTestService(newGatedProvider())
	ctx := context.Background()

	_, loaded, err := service.LoadRepository(ctx, nil, mcp.LoadRepositoryInput{Repository: "https://github.com/octo/repo"})
	if err != nil {
		t.Fatalf("LoadRepository error: %v", err)
	}
	if loaded.Repository != "octo/repo" || loaded.CommitHash != "abc123" || loaded.Files != 2 || loaded.Directories != 1 {
		t.Fatalf("unexpected load output %+v", loaded)
	}

	_, toggled, err := service.ToggleExtension(ctx, nil, mcp.ToggleExtensionInput{Extension: "py"})
	if err != nil {
		t.Fatalf("ToggleExtension error: %v", err)
	}
	if !slices.Equal(toggled.FileTypes.Include, []string{".py"}) || !slices.Equal(toggled.SelectedFiles, []string{"a.py"}) {
		t.Fatalf("unexpected toggle output %+v", toggled)
	}

	_, selected, err := service.SetSelected(ctx, nil, mcp.SetSelectedInput{Path: "src", Selected: true})
	if err != nil {
		t.Fatalf("SetSelected error: %v", err)
	}
	if selected.State != "selected" || !slices.Equal(selected.SelectedFiles, []string{"a.py", "src/b.js"}) {
		t.Fatalf("unexpected set output %+v", selected)
	}

	_, tree, err := service.SelectionTree(ctx, nil, mcp.SelectionTreeInput{})
	if err != nil {
		t.Fatalf("SelectionTree error: %v", err)
	}
	if !strings.Contains(tree.Tree, "[x] src/") {
		t.Fatalf("expected selected src marker in %q", tree.Tree)
	}

	_, aggregated, err := service.Aggregate(ctx, nil, mcp.AggregateInput{Tokens: true})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	expected := "File: a.py\n\nx=1\n\n\nFile: src/b.js\n\nlet b\n\n"
	if aggregated.Content != expected {
		t.Fatalf("expected %q, got %q", expected, aggregated.Content)
	}
	if aggregated.Tokens != 3 || aggregated.Model != "fixed" {
		t.Fatalf("unexpected token metadata %+v", aggregated)
	}

	if _, _, err := service.SetSelected(ctx, nil, mcp.SetSelectedInput{Path: "missing"}); !errors.Is(err, selection.ErrUnknownPath) {
		t.Fatalf("expected ErrUnknownPath, got %v", err)
	}
}

func TestSetFileTypesExcludeVetoesSelection(t *testing.T) {
	service := newTestService(newGatedProvider())
	ctx := context.Background()
	if _, _, err := service.LoadRepository(ctx, nil, mcp.LoadRepositoryInput{Repository: "octo/repo"}); err != nil {
		t.Fatalf("LoadRepository error: %v", err)
	}
	_, output, err := service.SetFileTypes(ctx, nil, mcp.SetFileTypesInput{Exclude: []string{".js"}})
	if err != nil {
		t.Fatalf("SetFileTypes error: %v", err)
	}
	if !slices.Equal(output.SelectedFiles, []string{"a.py"}) {
		t.Fatalf("unexpected selection %v", output.SelectedFiles)
	}
	if _, _, err := service.SetSelected(ctx, nil, mcp.SetSelectedInput{Path: "src/b.js", Selected: true}); err != nil {
		t.Fatalf("SetSelected error: %v", err)
	}
	_, aggregated, err := service.Aggregate(ctx, nil, mcp.AggregateInput{})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if aggregated.Content != "File: a.py\n\nx=1\n\n" {
		t.Fatalf("expected excluded file dropped, got %q", aggregated.Content)
	}
}

func TestStaleLoadIsDropped(t *testing.T) {
	stub := newGatedProvider()
	service := newTestService(stub)
	ctx := context.Background()

	type loadResult struct {
		output mcp.LoadRepositoryOutput
		err    error
	}
	slowCh := make(chan loadResult, 1)
	go func() {
		_, output, err := service.LoadRepository(ctx, nil, mcp.LoadRepositoryInput{Repository: "octo/slow"})
		slowCh <- loadResult{output: output, err: err}
	}()

	select {
	case <-stub.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow load did not start")
	}
	if _, _, err := service.LoadRepository(ctx, nil, mcp.LoadRepositoryInput{Repository: "octo/repo"}); err != nil {
		t.Fatalf("LoadRepository error: %v", err)
	}
	close(stub.release)

	result := <-slowCh
	if result.err != nil {
		t.Fatalf("slow load error: %v", result.err)
	}
	if !result.output.Superseded {
		t.Fatalf("expected slow load to be superseded")
	}
	_, tree, err := service.SelectionTree(ctx, nil, mcp.SelectionTreeInput{Format: "json"})
	if err != nil {
		t.Fatalf("SelectionTree error: %v", err)
	}
	if tree.CommitHash != "abc123" || strings.Contains(tree.Tree, "old.txt") {
		t.Fatalf("stale tree was installed: %+v", tree)
	}
}

func TestLoadSurvivesFailedNewerLoad(t *testing.T) {
	stub := newGatedProvider()
	service := newTestService(stub)
	ctx := context.Background()

	type loadResult struct {
		output mcp.LoadRepositoryOutput
		err    error
	}
	slowCh := make(chan loadResult, 1)
	go func() {
		_, output, err := service.LoadRepository(ctx, nil, mcp.LoadRepositoryInput{Repository: "octo/slow"})
		slowCh <- loadResult{output: output, err: err}
	}()

	select {
	case <-stub.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("slow load did not start")
	}
	if _, _, err := service.LoadRepository(ctx, nil, mcp.LoadRepositoryInput{Repository: "octo/missing"}); !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from failing load, got %v", err)
	}
	close(stub.release)

	result := <-slowCh
	if result.err != nil {
		t.Fatalf("slow load error: %v", result.err)
	}
	if result.output.Superseded {
		t.Fatalf("expected slow load to install after the newer load failed")
	}
	_, tree, err := service.SelectionTree(ctx, nil, mcp.SelectionTreeInput{Format: "json"})
	if err != nil {
		t.Fatalf("SelectionTree error: %v", err)
	}
	if tree.CommitHash != "slow" || !strings.Contains(tree.Tree, "old.txt") {
		t.Fatalf("expected the slow tree installed: %+v", tree)
	}
}

func TestServerListsTools(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := newTestService(newGatedProvider()).Server()
	clientTransport, serverTransport := sdk.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "client", Version: "test"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer clientSession.Close()

	listed, err := clientSession.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	names := make([]string, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	expected := []string{"add_extension", "aggregate", "load_repository", "selection_tree", "set_file_types", "set_selected", "toggle_extension"}
	if !slices.Equal(names, expected) {
		t.Fatalf("expected tools %v, got %v", expected, names)
	}

	called, err := clientSession.CallTool(ctx, &sdk.CallToolParams{
		Name:      "load_repository",
		Arguments: map[string]any{"repository": "octo/repo"},
	})
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	if called.IsError {
		t.Fatalf("load_repository reported an error: %+v", called.Content)
	}
}
