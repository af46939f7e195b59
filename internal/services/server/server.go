// Package server exposes the conversion pipeline as a small HTTP JSON API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/ctrlcv/internal/commands"
	"github.com/temirov/ctrlcv/internal/metrics"
	"github.com/temirov/ctrlcv/internal/output"
	"github.com/temirov/ctrlcv/internal/tokenizer"
	"github.com/temirov/ctrlcv/internal/types"
	"github.com/temirov/ctrlcv/internal/utils"
)

const (
	defaultListenAddress    = "127.0.0.1:0"
	defaultShutdownDuration = 5 * time.Second
	defaultCORSOrigin       = "http://localhost:3000"
	maxRequestBodyBytes     = 1 << 20
	headerContentType       = "Content-Type"
	mimeTypeJSON            = "application/json"
	mimeTypeText            = "text/plain; charset=utf-8"
	rootPath                = "/"
	treePath                = "/api/tree"
	convertPath             = "/api/convert"
	fetchRepositoryPath     = "/api/fetch_repo"
	metricsPath             = "/metrics"
	errorFieldName          = "error"
	welcomeMessage          = "Welcome to ctrl.cv API"
)

var errRepositoryRequired = errors.New("Repository URL is required")

// TokenCounterFactory builds a token counter for a model.
type TokenCounterFactory func(model string) (tokenizer.Counter, string, error)

// Config defines runtime options for the server.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
	Pipeline        commands.Pipeline
	TokenCounters   TokenCounterFactory
	CORSOrigins     []string
	Logger          *zap.Logger
}

// Server serves the tree and convert endpoints over HTTP.
type Server struct {
	config Config
}

type fileTypesRequest struct {
	IncludeTypes []string `json:"includeTypes"`
	ExcludeTypes []string `json:"excludeTypes"`
}

type toggleRequest struct {
	Path     string `json:"path"`
	Selected bool   `json:"selected"`
}

type tokensRequest struct {
	Enabled bool   `json:"enabled"`
	Model   string `json:"model"`
}

type repositoryRequest struct {
	RepositoryURL string           `json:"repo_url"`
	Commit        string           `json:"commit"`
	FileTypes     fileTypesRequest `json:"fileTypes"`
	Toggles       []toggleRequest  `json:"toggles"`
	Tokens        tokensRequest    `json:"tokens"`
}

type treeResponse struct {
	Repository     string                  `json:"repository"`
	CommitHash     string                  `json:"commitHash"`
	AvailableTypes []string                `json:"availableTypes"`
	FileTypes      types.ExtensionSet      `json:"fileTypes"`
	Tree           []*types.TreeOutputNode `json:"tree"`
}

type fetchedFile struct {
	Content  string `json:"content"`
	Type     string `json:"type"`
	MimeType string `json:"mimeType"`
}

type fetchRepositoryResponse struct {
	CommitHash string                 `json:"commitHash"`
	Files      map[string]fetchedFile `json:"files"`
	Skipped    []string               `json:"skipped,omitempty"`
}

// NewServer creates a new Server with defaults applied.
func NewServer(config Config) Server {
	normalized := config
	if normalized.Address == "" {
		normalized.Address = defaultListenAddress
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = defaultShutdownDuration
	}
	if normalized.TokenCounters == nil {
		normalized.TokenCounters = func(model string) (tokenizer.Counter, string, error) {
			return tokenizer.NewCounter(tokenizer.Config{Model: model})
		}
	}
	if normalized.CORSOrigins == nil {
		normalized.CORSOrigins = []string{defaultCORSOrigin}
	}
	if normalized.Logger == nil {
		normalized.Logger = zap.NewNop()
	}
	return Server{config: normalized}
}

// Handler returns the routed and instrumented HTTP handler.
func (server Server) Handler() http.Handler {
	router := http.NewServeMux()
	router.HandleFunc(rootPath, server.handleRoot)
	crossOrigin := allowCrossOrigin(server.config.CORSOrigins)
	router.Handle(treePath, crossOrigin(http.HandlerFunc(server.handleTree)))
	router.Handle(convertPath, crossOrigin(http.HandlerFunc(server.handleConvert)))
	router.Handle(fetchRepositoryPath, crossOrigin(http.HandlerFunc(server.handleFetchRepository)))
	router.Handle(metricsPath, metrics.Handler())
	return instrument(router)
}

// Run starts the server and blocks until the provided context is canceled.
// The notify callback receives the bound address once the listener is active.
func (server Server) Run(ctx context.Context, notify func(string)) error {
	listener, listenErr := net.Listen("tcp", server.config.Address)
	if listenErr != nil {
		return fmt.Errorf("listen on %s: %w", server.config.Address, listenErr)
	}
	actualAddress := listener.Addr().String()

	httpServer := &http.Server{Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", serveErr)
		}
		return nil
	})

	server.config.Logger.Info("server listening", zap.String("address", actualAddress))
	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf("shutdown HTTP: %w", shutdownErr)
		}
		server.config.Logger.Info("server stopped", zap.String("address", actualAddress))
		return nil
	})

	return group.Wait()
}

func (server Server) handleRoot(writer http.ResponseWriter, request *http.Request) {
	if request.URL.Path != rootPath {
		server.writeJSON(writer, http.StatusNotFound, map[string]string{errorFieldName: "not found"})
		return
	}
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeText)
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte(welcomeMessage))
}

func (server Server) handleTree(writer http.ResponseWriter, request *http.Request) {
	payload, ok := server.decodeRequest(writer, request)
	if !ok {
		return
	}
	selected, selectErr := server.config.Pipeline.Select(request.Context(), payload.selectionRequest())
	if selectErr != nil {
		server.writeError(writer, selectErr)
		return
	}
	server.writeJSON(writer, http.StatusOK, treeResponse{
		Repository:     selected.Reference.Identifier(),
		CommitHash:     selected.CommitHash,
		AvailableTypes: selected.Available,
		FileTypes:      selected.Extensions,
		Tree:           output.BuildTreeOutput(selected.TreeView(server.config.Pipeline.Classifier())),
	})
}

func (server Server) handleConvert(writer http.ResponseWriter, request *http.Request) {
	payload, ok := server.decodeRequest(writer, request)
	if !ok {
		return
	}
	convertRequest := commands.ConvertRequest{SelectionRequest: payload.selectionRequest()}
	if payload.Tokens.Enabled {
		counter, model, counterErr := server.config.TokenCounters(payload.Tokens.Model)
		if counterErr != nil {
			server.writeError(writer, counterErr)
			return
		}
		convertRequest.Tokens = commands.TokenOptions{Counter: counter, Model: model}
	}
	converted, convertErr := server.config.Pipeline.Convert(request.Context(), convertRequest)
	if convertErr != nil {
		server.writeError(writer, convertErr)
		return
	}
	server.writeJSON(writer, http.StatusOK, converted)
}

func (server Server) handleFetchRepository(writer http.ResponseWriter, request *http.Request) {
	payload, ok := server.decodeRequest(writer, request)
	if !ok {
		return
	}
	selected, selectErr := server.config.Pipeline.Select(request.Context(), payload.selectionRequest())
	if selectErr != nil {
		server.writeError(writer, selectErr)
		return
	}
	fetched, fetchErr := server.config.Pipeline.FetchSelected(request.Context(), commands.AggregateRequest{
		Reference:  selected.Reference,
		CommitHash: selected.CommitHash,
		Tree:       selected.Tree,
		Selection:  selected.Selection,
		Extensions: selected.Extensions,
	})
	if fetchErr != nil {
		server.writeError(writer, fetchErr)
		return
	}
	response := fetchRepositoryResponse{CommitHash: selected.CommitHash, Files: make(map[string]fetchedFile, len(fetched.Files))}
	classifier := server.config.Pipeline.Classifier()
	for _, file := range fetched.Files {
		response.Files[file.Path] = fetchedFile{
			Content:  file.Content,
			Type:     classifier.Classify(path.Base(file.Path)),
			MimeType: utils.DetectMimeType(file.Path, []byte(file.Content)),
		}
	}
	for _, skipped := range fetched.Skipped {
		response.Skipped = append(response.Skipped, skipped.Path)
	}
	server.writeJSON(writer, http.StatusOK, response)
}

func (server Server) decodeRequest(writer http.ResponseWriter, request *http.Request) (repositoryRequest, bool) {
	if request.Method == http.MethodOptions {
		writer.WriteHeader(http.StatusOK)
		return repositoryRequest{}, false
	}
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return repositoryRequest{}, false
	}
	var payload repositoryRequest
	decoder := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxRequestBodyBytes))
	if decodeErr := decoder.Decode(&payload); decodeErr != nil {
		server.writeJSON(writer, http.StatusBadRequest, map[string]string{errorFieldName: fmt.Sprintf("decode request body: %v", decodeErr)})
		return repositoryRequest{}, false
	}
	if strings.TrimSpace(payload.RepositoryURL) == "" {
		server.writeJSON(writer, http.StatusBadRequest, map[string]string{errorFieldName: errRepositoryRequired.Error()})
		return repositoryRequest{}, false
	}
	return payload, true
}

func (payload repositoryRequest) selectionRequest() commands.SelectionRequest {
	toggles := make([]commands.PathToggle, 0, len(payload.Toggles))
	for _, toggle := range payload.Toggles {
		toggles = append(toggles, commands.PathToggle{Path: toggle.Path, Selected: toggle.Selected})
	}
	return commands.SelectionRequest{
		Repository: payload.RepositoryURL,
		Commit:     payload.Commit,
		Extensions: types.ExtensionSet{Include: payload.FileTypes.IncludeTypes, Exclude: payload.FileTypes.ExcludeTypes},
		Toggles:    toggles,
	}
}

func (server Server) writeError(writer http.ResponseWriter, err error) {
	statusCode := statusCodeFromError(err)
	if statusCode >= http.StatusInternalServerError {
		server.config.Logger.Warn("request failed", zap.Int("status", statusCode), zap.Error(err))
	}
	server.writeJSON(writer, statusCode, map[string]string{errorFieldName: err.Error()})
}

func (server Server) writeJSON(writer http.ResponseWriter, statusCode int, payload interface{}) {
	var buffer bytes.Buffer
	if encodeErr := json.NewEncoder(&buffer).Encode(payload); encodeErr != nil {
		fallback := map[string]string{errorFieldName: fmt.Sprintf("encode response: %v", encodeErr)}
		writer.Header().Set(headerContentType, mimeTypeJSON)
		writer.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(writer).Encode(fallback)
		return
	}
	writer.Header().Set(headerContentType, mimeTypeJSON)
	writer.WriteHeader(statusCode)
	_, _ = writer.Write(buffer.Bytes())
}
