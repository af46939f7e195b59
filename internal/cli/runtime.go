package cli

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/temirov/ctrlcv/internal/commands"
	"github.com/temirov/ctrlcv/internal/config"
	"github.com/temirov/ctrlcv/internal/provider"
	"github.com/temirov/ctrlcv/internal/provider/github"
	"github.com/temirov/ctrlcv/internal/selection"
	"github.com/temirov/ctrlcv/internal/services/fetch"
	"github.com/temirov/ctrlcv/internal/tokenizer"
)

// runtimeOptions selects optional layers of the provider chain.
type runtimeOptions struct {
	cache bool
}

// buildPipeline wires the GitHub client, metrics, and optional cache into a
// Pipeline configured from configuration.
func buildPipeline(configuration config.ApplicationConfiguration, options runtimeOptions, logger *zap.Logger) (commands.Pipeline, error) {
	timeout, timeoutErr := configuration.GitHub.RequestTimeout()
	if timeoutErr != nil {
		return commands.Pipeline{}, timeoutErr
	}
	dotfiles, dotfilesErr := selection.ParseDotfilePolicy(configuration.Selection.Dotfiles)
	if dotfilesErr != nil {
		return commands.Pipeline{}, fmt.Errorf("selection.dotfiles: %w", dotfilesErr)
	}

	client := github.NewClient(&http.Client{}).
		WithAPIBase(configuration.GitHub.APIBase).
		WithUserAgent(configuration.GitHub.UserAgent).
		WithTimeout(timeout).
		WithAuthorizationToken(configuration.GitHub.Token).
		WithMaxDepth(valueOrZero(configuration.Fetch.MaxDepth)).
		WithLogger(logger)

	var chain provider.Provider = provider.NewInstrumentedProvider(client)
	if options.cache {
		chain = provider.NewCachingProvider(chain, provider.NewMemoryCache(), logger)
	}

	fetchOptions := fetch.Options{Logger: logger}
	if configuration.Fetch.Concurrency != nil {
		fetchOptions.Concurrency = *configuration.Fetch.Concurrency
	}
	if configuration.Fetch.MaxFileSize != nil {
		fetchOptions.MaxFileSize = *configuration.Fetch.MaxFileSize
	}

	return commands.NewPipeline(commands.PipelineOptions{
		Provider:   chain,
		Fetch:      fetchOptions,
		Classifier: selection.Classifier{Dotfiles: dotfiles},
		Logger:     logger,
	}), nil
}

func newTokenCounter(model string) (tokenizer.Counter, string, error) {
	return tokenizer.NewCounter(tokenizer.Config{Model: model})
}

func valueOrZero(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func valueOrFalse(value *bool) bool {
	return value != nil && *value
}
