// Package github implements provider.Provider on top of the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/ctrlcv/internal/provider"
	"github.com/temirov/ctrlcv/internal/types"
)

const (
	defaultAPITimeout         = 30 * time.Second
	defaultAPIBaseURL         = "https://api.github.com"
	defaultUserAgent          = "ctrlcv-github-provider"
	headerAuthorization       = "Authorization"
	headerAccept              = "Accept"
	headerUserAgent           = "User-Agent"
	headerGitHubAPIVersion    = "X-GitHub-Api-Version"
	acceptGitHubJSON          = "application/vnd.github+json"
	acceptGitHubRaw           = "application/vnd.github.raw"
	githubAPIVersionValue     = "2022-11-28"
	authorizationBearerPrefix = "Bearer "
	authorizationTokenPrefix  = "token "
	errorBodyLimit            = 8 * 1024

	entryTypeBlob = "blob"
	entryTypeTree = "tree"

	operationResolveCommit = "resolve commit"
	operationListTree      = "list tree"
	operationFetchContent  = "fetch content"
)

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

type repositoryPayload struct {
	DefaultBranch string `json:"default_branch"`
}

type commitPayload struct {
	SHA string `json:"sha"`
}

type treePayload struct {
	SHA       string             `json:"sha"`
	Tree      []treeEntryPayload `json:"tree"`
	Truncated bool               `json:"truncated"`
}

type treeEntryPayload struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Client talks to the GitHub REST API.
type Client struct {
	client                   httpClient
	apiBase                  string
	userAgent                string
	timeout                  time.Duration
	authorizationHeaderValue string
	maxDepth                 int
	logger                   *zap.Logger
}

// NewClient returns a Client using client, or a default http.Client when nil.
func NewClient(client httpClient) Client {
	if client == nil {
		client = &http.Client{Timeout: defaultAPITimeout}
	}
	return Client{
		client:    client,
		apiBase:   defaultAPIBaseURL,
		userAgent: defaultUserAgent,
		timeout:   defaultAPITimeout,
		logger:    zap.NewNop(),
	}
}

// WithAPIBase overrides the REST API root. An empty base keeps the default.
func (githubClient Client) WithAPIBase(base string) Client {
	if base == "" {
		return githubClient
	}
	githubClient.apiBase = strings.TrimRight(base, "/")
	return githubClient
}

// WithUserAgent sets the User-Agent header sent with every request.
func (githubClient Client) WithUserAgent(agent string) Client {
	if agent == "" {
		return githubClient
	}
	githubClient.userAgent = agent
	return githubClient
}

// WithTimeout bounds each API request. Non-positive durations are ignored.
func (githubClient Client) WithTimeout(duration time.Duration) Client {
	if duration <= 0 {
		return githubClient
	}
	githubClient.timeout = duration
	if clientWithTimeout, ok := githubClient.client.(*http.Client); ok {
		clientWithTimeout.Timeout = duration
	}
	return githubClient
}

// WithAuthorizationToken configures the client to authenticate API calls.
func (githubClient Client) WithAuthorizationToken(token string) Client {
	githubClient.authorizationHeaderValue = formatAuthorizationHeaderValue(token)
	return githubClient
}

// WithMaxDepth limits how many directory levels are expanded. Zero means unlimited.
func (githubClient Client) WithMaxDepth(depth int) Client {
	if depth < 0 {
		depth = 0
	}
	githubClient.maxDepth = depth
	return githubClient
}

// WithLogger attaches a logger. A nil logger keeps the current one.
func (githubClient Client) WithLogger(logger *zap.Logger) Client {
	if logger == nil {
		return githubClient
	}
	githubClient.logger = logger
	return githubClient
}

// FetchTreeListing implements provider.Provider.
func (githubClient Client) FetchTreeListing(ctx context.Context, reference provider.Reference, commit string) (types.TreeListing, error) {
	commitHash, resolveError := githubClient.resolveCommit(ctx, reference, commit)
	if resolveError != nil {
		return types.TreeListing{}, resolveError
	}
	apiURL, buildError := githubClient.buildURL(reference, []string{"git", "trees", commitHash}, url.Values{"recursive": []string{"1"}})
	if buildError != nil {
		return types.TreeListing{}, buildError
	}
	var payload treePayload
	if fetchError := githubClient.getJSON(ctx, apiURL, &payload); fetchError != nil {
		return types.TreeListing{}, wrapFetchError(fetchError, operationListTree, reference, "")
	}
	if payload.Truncated {
		githubClient.logger.Warn("tree listing truncated by provider",
			zap.String("repository", reference.Identifier()),
			zap.Int("entries", len(payload.Tree)))
	}
	return types.TreeListing{
		Entries:    nestEntries(payload.Tree, payload.Truncated, githubClient.maxDepth),
		CommitHash: commitHash,
	}, nil
}

// FetchFileContent implements provider.Provider.
func (githubClient Client) FetchFileContent(ctx context.Context, reference provider.Reference, path string, commit string) (string, error) {
	cleanedPath := strings.Trim(strings.TrimSpace(path), types.PathSeparator)
	if cleanedPath == "" {
		return "", &provider.FetchError{Operation: operationFetchContent, Repository: reference.Identifier(), Path: path, Err: provider.ErrNotFound}
	}
	query := url.Values{}
	if commit == "" {
		commit = reference.Ref
	}
	if commit != "" {
		query.Set("ref", commit)
	}
	segments := append([]string{"contents"}, strings.Split(cleanedPath, types.PathSeparator)...)
	apiURL, buildError := githubClient.buildURL(reference, segments, query)
	if buildError != nil {
		return "", buildError
	}
	request, requestError := githubClient.buildRequest(ctx, apiURL, acceptGitHubRaw)
	if requestError != nil {
		return "", requestError
	}
	body, fetchError := githubClient.do(request)
	if fetchError != nil {
		return "", wrapFetchError(fetchError, operationFetchContent, reference, cleanedPath)
	}
	githubClient.logger.Debug("fetched file content",
		zap.String("repository", reference.Identifier()),
		zap.String("path", cleanedPath),
		zap.Int("bytes", len(body)))
	return string(body), nil
}

func (githubClient Client) resolveCommit(ctx context.Context, reference provider.Reference, commit string) (string, error) {
	target := strings.TrimSpace(commit)
	if target == "" {
		target = reference.Ref
	}
	if target == "" {
		apiURL, buildError := githubClient.buildURL(reference, nil, nil)
		if buildError != nil {
			return "", buildError
		}
		var repository repositoryPayload
		if fetchError := githubClient.getJSON(ctx, apiURL, &repository); fetchError != nil {
			return "", wrapFetchError(fetchError, operationResolveCommit, reference, "")
		}
		if repository.DefaultBranch == "" {
			return "", &provider.FetchError{Operation: operationResolveCommit, Repository: reference.Identifier(), Err: errors.New("repository has no default branch")}
		}
		target = repository.DefaultBranch
	}
	apiURL, buildError := githubClient.buildURL(reference, []string{"commits", target}, nil)
	if buildError != nil {
		return "", buildError
	}
	var resolved commitPayload
	if fetchError := githubClient.getJSON(ctx, apiURL, &resolved); fetchError != nil {
		return "", wrapFetchError(fetchError, operationResolveCommit, reference, "")
	}
	if resolved.SHA == "" {
		return "", &provider.FetchError{Operation: operationResolveCommit, Repository: reference.Identifier(), Err: fmt.Errorf("no commit for %q", target)}
	}
	return resolved.SHA, nil
}

func (githubClient Client) getJSON(ctx context.Context, apiURL string, target interface{}) error {
	request, requestError := githubClient.buildRequest(ctx, apiURL, acceptGitHubJSON)
	if requestError != nil {
		return requestError
	}
	body, fetchError := githubClient.do(request)
	if fetchError != nil {
		return fetchError
	}
	if decodeError := json.Unmarshal(body, target); decodeError != nil {
		return fmt.Errorf("decode %s: %w", apiURL, decodeError)
	}
	return nil
}

type statusError struct {
	statusCode int
	err        error
}

func (err *statusError) Error() string { return err.err.Error() }

func (err *statusError) Unwrap() error { return err.err }

func (githubClient Client) do(request *http.Request) ([]byte, error) {
	response, responseError := githubClient.client.Do(request)
	if responseError != nil {
		return nil, responseError
	}
	defer response.Body.Close()
	if response.StatusCode == http.StatusNotFound {
		return nil, &statusError{statusCode: response.StatusCode, err: provider.ErrNotFound}
	}
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyLimit))
		return nil, &statusError{
			statusCode: response.StatusCode,
			err:        fmt.Errorf("unexpected status for %s: %s", request.URL.Path, strings.TrimSpace(string(body))),
		}
	}
	return io.ReadAll(response.Body)
}

func wrapFetchError(err error, operation string, reference provider.Reference, path string) error {
	fetchError := &provider.FetchError{Operation: operation, Repository: reference.Identifier(), Path: path, Err: err}
	var withStatus *statusError
	if errors.As(err, &withStatus) {
		fetchError.StatusCode = withStatus.statusCode
		fetchError.Err = withStatus.err
	}
	return fetchError
}

func (githubClient Client) buildRequest(ctx context.Context, rawURL string, accept string) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	request, requestError := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if requestError != nil {
		return nil, requestError
	}
	if githubClient.userAgent != "" {
		request.Header.Set(headerUserAgent, githubClient.userAgent)
	}
	if githubClient.authorizationHeaderValue != "" {
		request.Header.Set(headerAuthorization, githubClient.authorizationHeaderValue)
	}
	request.Header.Set(headerAccept, accept)
	request.Header.Set(headerGitHubAPIVersion, githubAPIVersionValue)
	return request, nil
}

func (githubClient Client) buildURL(reference provider.Reference, segments []string, query url.Values) (string, error) {
	parsedURL, parseError := url.Parse(githubClient.apiBase)
	if parseError != nil {
		return "", parseError
	}
	var builder strings.Builder
	builder.WriteString(strings.TrimSuffix(parsedURL.Path, "/"))
	builder.WriteString("/repos/")
	builder.WriteString(url.PathEscape(reference.Owner))
	builder.WriteByte('/')
	builder.WriteString(url.PathEscape(reference.Repository))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		builder.WriteByte('/')
		builder.WriteString(url.PathEscape(segment))
	}
	parsedURL.RawPath = builder.String()
	parsedURL.Path, _ = url.PathUnescape(parsedURL.RawPath)
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

func formatAuthorizationHeaderValue(rawToken string) string {
	trimmed := strings.TrimSpace(rawToken)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	bearerLower := strings.ToLower(authorizationBearerPrefix)
	tokenLower := strings.ToLower(authorizationTokenPrefix)
	if strings.HasPrefix(lower, bearerLower) || strings.HasPrefix(lower, tokenLower) {
		return trimmed
	}
	if strings.Contains(trimmed, ".") {
		return authorizationBearerPrefix + trimmed
	}
	return authorizationTokenPrefix + trimmed
}
