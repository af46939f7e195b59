package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/temirov/ctrlcv/internal/provider"
	"github.com/temirov/ctrlcv/internal/types"
)

const testCommitHash = "0123456789abcdef"

func newTestServer(t *testing.T, treeBody string) (*httptest.Server, *[]string) {
	t.Helper()
	var requested []string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/repo", func(writer http.ResponseWriter, request *http.Request) {
		requested = append(requested, request.URL.Path)
		fmt.Fprint(writer, `{"default_branch":"main"}`)
	})
	mux.HandleFunc("/repos/octo/repo/commits/", func(writer http.ResponseWriter, request *http.Request) {
		requested = append(requested, request.URL.Path)
		fmt.Fprintf(writer, `{"sha":%q}`, testCommitHash)
	})
	mux.HandleFunc("/repos/octo/repo/git/trees/", func(writer http.ResponseWriter, request *http.Request) {
		requested = append(requested, request.URL.Path)
		if request.URL.Query().Get("recursive") != "1" {
			t.Errorf("expected recursive listing")
		}
		fmt.Fprint(writer, treeBody)
	})
	mux.HandleFunc("/repos/octo/repo/contents/", func(writer http.ResponseWriter, request *http.Request) {
		requested = append(requested, request.URL.Path)
		if request.Header.Get(headerAccept) != acceptGitHubRaw {
			t.Errorf("expected raw accept header, got %s", request.Header.Get(headerAccept))
		}
		if request.URL.Path != "/repos/octo/repo/contents/src/b.js" {
			http.NotFound(writer, request)
			return
		}
		fmt.Fprintf(writer, "ref=%s", request.URL.Query().Get("ref"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &requested
}

const sampleTreeBody = `{"sha":"0123456789abcdef","truncated":false,"tree":[
{"path":"a.py","type":"blob","size":3},
{"path":"src","type":"tree"},
{"path":"src/b.js","type":"blob","size":5},
{"path":"src/empty","type":"tree"},
{"path":"vendor-mod","type":"commit"}
]}`

func TestFetchTreeListingResolvesDefaultBranch(t *testing.T) {
	server, requested := newTestServer(t, sampleTreeBody)
	client := NewClient(server.Client()).WithAPIBase(server.URL)
	listing, err := client.FetchTreeListing(context.Background(), provider.Reference{Owner: "octo", Repository: "repo"}, "")
	if err != nil {
		t.Fatalf("FetchTreeListing error: %v", err)
	}
	if listing.CommitHash != testCommitHash {
		t.Fatalf("unexpected commit %s", listing.CommitHash)
	}
	expected := []types.ProviderEntry{
		{Name: "a.py", Kind: types.NodeTypeFile, Size: 3},
		{Name: "src", Kind: types.NodeTypeDirectory, Children: []types.ProviderEntry{
			{Name: "b.js", Kind: types.NodeTypeFile, Size: 5},
			{Name: "empty", Kind: types.NodeTypeDirectory, Children: []types.ProviderEntry{}},
		}},
	}
	if !reflect.DeepEqual(listing.Entries, expected) {
		t.Fatalf("expected %+v, got %+v", expected, listing.Entries)
	}
	expectedRequests := []string{"/repos/octo/repo", "/repos/octo/repo/commits/main", "/repos/octo/repo/git/trees/" + testCommitHash}
	if !reflect.DeepEqual(*requested, expectedRequests) {
		t.Fatalf("expected requests %v, got %v", expectedRequests, *requested)
	}
}

func TestFetchTreeListingUsesExplicitCommit(t *testing.T) {
	server, requested := newTestServer(t, sampleTreeBody)
	client := NewClient(server.Client()).WithAPIBase(server.URL)
	if _, err := client.FetchTreeListing(context.Background(), provider.Reference{Owner: "octo", Repository: "repo", Ref: "dev"}, "feedface"); err != nil {
		t.Fatalf("FetchTreeListing error: %v", err)
	}
	if (*requested)[0] != "/repos/octo/repo/commits/feedface" {
		t.Fatalf("expected explicit commit to be resolved first, got %v", *requested)
	}
}

func TestFetchTreeListingMissingRepository(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)
	client := NewClient(server.Client()).WithAPIBase(server.URL)
	_, err := client.FetchTreeListing(context.Background(), provider.Reference{Owner: "octo", Repository: "gone"}, "")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var fetchError *provider.FetchError
	if !errors.As(err, &fetchError) || fetchError.StatusCode != http.StatusNotFound {
		t.Fatalf("expected FetchError with 404, got %v", err)
	}
}

func TestFetchTreeListingServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, "rate limited", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)
	client := NewClient(server.Client()).WithAPIBase(server.URL)
	_, err := client.FetchTreeListing(context.Background(), provider.Reference{Owner: "octo", Repository: "repo"}, "abc")
	var fetchError *provider.FetchError
	if !errors.As(err, &fetchError) || fetchError.StatusCode != http.StatusForbidden {
		t.Fatalf("expected FetchError with 403, got %v", err)
	}
	if errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("did not expect ErrNotFound for 403")
	}
}

func TestFetchFileContent(t *testing.T) {
	server, _ := newTestServer(t, sampleTreeBody)
	client := NewClient(server.Client()).WithAPIBase(server.URL)
	reference := provider.Reference{Owner: "octo", Repository: "repo", Ref: "main"}
	content, err := client.FetchFileContent(context.Background(), reference, "src/b.js", testCommitHash)
	if err != nil {
		t.Fatalf("FetchFileContent error: %v", err)
	}
	if content != "ref="+testCommitHash {
		t.Fatalf("unexpected content %q", content)
	}
	content, err = client.FetchFileContent(context.Background(), reference, "src/b.js", "")
	if err != nil || content != "ref=main" {
		t.Fatalf("expected branch ref fallback, got %q (%v)", content, err)
	}
	if _, err := client.FetchFileContent(context.Background(), reference, "src/missing.js", testCommitHash); !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNestEntries(t *testing.T) {
	flat := []treeEntryPayload{
		{Path: "z.md", Type: entryTypeBlob, Size: 1},
		{Path: "pkg", Type: entryTypeTree},
		{Path: "pkg/inner", Type: entryTypeTree},
		{Path: "pkg/inner/deep.go", Type: entryTypeBlob, Size: 2},
		{Path: "pkg/util.go", Type: entryTypeBlob, Size: 3},
		{Path: "orphan/file.go", Type: entryTypeBlob, Size: 4},
	}
	testCases := []struct {
		name      string
		truncated bool
		maxDepth  int
		expected  []types.ProviderEntry
	}{
		{
			name: "full depth",
			expected: []types.ProviderEntry{
				{Name: "z.md", Kind: types.NodeTypeFile, Size: 1},
				{Name: "pkg", Kind: types.NodeTypeDirectory, Children: []types.ProviderEntry{
					{Name: "inner", Kind: types.NodeTypeDirectory, Children: []types.ProviderEntry{
						{Name: "deep.go", Kind: types.NodeTypeFile, Size: 2},
					}},
					{Name: "util.go", Kind: types.NodeTypeFile, Size: 3},
				}},
				{Name: "orphan", Kind: types.NodeTypeDirectory, Children: []types.ProviderEntry{
					{Name: "file.go", Kind: types.NodeTypeFile, Size: 4},
				}},
			},
		},
		{
			name:     "depth limited",
			maxDepth: 2,
			expected: []types.ProviderEntry{
				{Name: "z.md", Kind: types.NodeTypeFile, Size: 1},
				{Name: "pkg", Kind: types.NodeTypeDirectory, Children: []types.ProviderEntry{
					{Name: "inner", Kind: types.NodeTypeDirectory},
					{Name: "util.go", Kind: types.NodeTypeFile, Size: 3},
				}},
				{Name: "orphan", Kind: types.NodeTypeDirectory, Children: []types.ProviderEntry{
					{Name: "file.go", Kind: types.NodeTypeFile, Size: 4},
				}},
			},
		},
		{
			name:     "top level only",
			maxDepth: 1,
			expected: []types.ProviderEntry{
				{Name: "z.md", Kind: types.NodeTypeFile, Size: 1},
				{Name: "pkg", Kind: types.NodeTypeDirectory},
			},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			actual := nestEntries(flat, testCase.truncated, testCase.maxDepth)
			if !reflect.DeepEqual(actual, testCase.expected) {
				t.Fatalf("expected %+v, got %+v", testCase.expected, actual)
			}
		})
	}
}

func TestNestEntriesTruncatedLeavesEmptyDirectoriesUnexpanded(t *testing.T) {
	flat := []treeEntryPayload{{Path: "big", Type: entryTypeTree}}
	actual := nestEntries(flat, true, 0)
	if len(actual) != 1 || actual[0].Children != nil {
		t.Fatalf("expected unexpanded directory, got %+v", actual)
	}
}

func TestClientBuildRequestAppliesHeaders(t *testing.T) {
	testCases := []struct {
		name                  string
		token                 string
		expectedAuthorization string
	}{
		{name: "personal access token", token: "abc123", expectedAuthorization: authorizationTokenPrefix + "abc123"},
		{name: "explicit bearer prefix retained", token: "Bearer prefixed", expectedAuthorization: "Bearer prefixed"},
		{name: "explicit token prefix retained", token: "token prefixed", expectedAuthorization: "token prefixed"},
		{name: "jwt token defaults to bearer", token: "a.b.c", expectedAuthorization: authorizationBearerPrefix + "a.b.c"},
		{name: "without token", token: ""},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			client := NewClient(nil).WithAuthorizationToken(testCase.token)
			request, err := client.buildRequest(context.Background(), "https://example.com", acceptGitHubJSON)
			if err != nil {
				t.Fatalf("buildRequest error: %v", err)
			}
			if request.Header.Get(headerAccept) != acceptGitHubJSON {
				t.Fatalf("expected accept header %s, got %s", acceptGitHubJSON, request.Header.Get(headerAccept))
			}
			if request.Header.Get(headerGitHubAPIVersion) != githubAPIVersionValue {
				t.Fatalf("expected API version header %s", githubAPIVersionValue)
			}
			if request.Header.Get(headerUserAgent) != defaultUserAgent {
				t.Fatalf("expected user agent header to be set")
			}
			if authorization := request.Header.Get(headerAuthorization); authorization != testCase.expectedAuthorization {
				t.Fatalf("expected authorization %q, got %q", testCase.expectedAuthorization, authorization)
			}
		})
	}
}
