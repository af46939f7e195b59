package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/ctrlcv/internal/utils"
)

const (
	// TokenEnvironmentVariable overrides the GitHub token when the configuration omits it.
	TokenEnvironmentVariable = "CTRLCV_GITHUB_TOKEN"
	// FallbackTokenEnvironmentVariable is consulted after TokenEnvironmentVariable.
	FallbackTokenEnvironmentVariable = "GITHUB_TOKEN"

	defaultAPIBase       = "https://api.github.com"
	defaultTimeout       = "30s"
	defaultUserAgent     = "ctrlcv"
	defaultConcurrency   = 8
	defaultMaxFileSize   = int64(1024 * 1024)
	defaultMaxDepth      = 0
	defaultDotfiles      = "empty"
	defaultFormat        = "raw"
	defaultTokenModel    = "gpt-4o"
	defaultServerAddress = "127.0.0.1:8080"
	defaultCORSOrigin    = "http://localhost:3000"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds every configurable default.
type ApplicationConfiguration struct {
	GitHub    GitHubConfiguration    `mapstructure:"github" yaml:"github"`
	Fetch     FetchConfiguration     `mapstructure:"fetch" yaml:"fetch"`
	Selection SelectionConfiguration `mapstructure:"selection" yaml:"selection"`
	Output    OutputConfiguration    `mapstructure:"output" yaml:"output"`
	Server    ServerConfiguration    `mapstructure:"server" yaml:"server"`
}

// GitHubConfiguration configures the repository provider.
type GitHubConfiguration struct {
	APIBase   string `mapstructure:"api_base" yaml:"api_base"`
	Token     string `mapstructure:"token" yaml:"token"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// FetchConfiguration bounds tree listing and content retrieval.
type FetchConfiguration struct {
	Concurrency *int   `mapstructure:"concurrency" yaml:"concurrency,omitempty"`
	MaxFileSize *int64 `mapstructure:"max_file_size" yaml:"max_file_size,omitempty"`
	MaxDepth    *int   `mapstructure:"max_depth" yaml:"max_depth,omitempty"`
}

// SelectionConfiguration holds the default extension rules.
type SelectionConfiguration struct {
	Include  []string `mapstructure:"include" yaml:"include"`
	Exclude  []string `mapstructure:"exclude" yaml:"exclude"`
	Dotfiles string   `mapstructure:"dotfiles" yaml:"dotfiles"`
}

// OutputConfiguration controls rendering of command results.
type OutputConfiguration struct {
	Format    string             `mapstructure:"format" yaml:"format"`
	Tokens    TokenConfiguration `mapstructure:"tokens" yaml:"tokens"`
	Clipboard *bool              `mapstructure:"clipboard" yaml:"clipboard,omitempty"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled" yaml:"enabled,omitempty"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// ServerConfiguration configures the HTTP proxy.
type ServerConfiguration struct {
	Address     string   `mapstructure:"address" yaml:"address"`
	Cache       *bool    `mapstructure:"cache" yaml:"cache,omitempty"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Defaults returns the built-in configuration every file overlays.
func Defaults() ApplicationConfiguration {
	return ApplicationConfiguration{
		GitHub: GitHubConfiguration{
			APIBase:   defaultAPIBase,
			Timeout:   defaultTimeout,
			UserAgent: defaultUserAgent,
		},
		Fetch: FetchConfiguration{
			Concurrency: intPointer(defaultConcurrency),
			MaxFileSize: int64Pointer(defaultMaxFileSize),
			MaxDepth:    intPointer(defaultMaxDepth),
		},
		Selection: SelectionConfiguration{
			Include:  []string{},
			Exclude:  []string{},
			Dotfiles: defaultDotfiles,
		},
		Output: OutputConfiguration{
			Format:    defaultFormat,
			Tokens:    TokenConfiguration{Enabled: boolPointer(false), Model: defaultTokenModel},
			Clipboard: boolPointer(false),
		},
		Server: ServerConfiguration{
			Address:     defaultServerAddress,
			Cache:       boolPointer(true),
			CORSOrigins: []string{defaultCORSOrigin},
		},
	}
}

// LoadApplicationConfiguration overlays the global file, then the local or
// explicit file, onto Defaults.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	merged := Defaults()

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	if strings.TrimSpace(merged.GitHub.Token) == "" {
		merged.GitHub.Token = firstEnvironmentValue(TokenEnvironmentVariable, FallbackTokenEnvironmentVariable)
	}
	merged.Selection.Include = utils.DeduplicatePatterns(merged.Selection.Include)
	merged.Selection.Exclude = utils.DeduplicatePatterns(merged.Selection.Exclude)

	return merged, nil
}

// RequestTimeout parses the configured GitHub timeout.
func (config GitHubConfiguration) RequestTimeout() (time.Duration, error) {
	if strings.TrimSpace(config.Timeout) == "" {
		return 0, nil
	}
	duration, parseErr := time.ParseDuration(config.Timeout)
	if parseErr != nil {
		return 0, fmt.Errorf("parse github.timeout %q: %w", config.Timeout, parseErr)
	}
	return duration, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.LocalConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined
// configuration. Unset values in override keep the receiver's value.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.GitHub = result.GitHub.merge(override.GitHub)
	result.Fetch = result.Fetch.merge(override.Fetch)
	result.Selection = result.Selection.merge(override.Selection)
	result.Output = result.Output.merge(override.Output)
	result.Server = result.Server.merge(override.Server)
	return result
}

func (config GitHubConfiguration) merge(override GitHubConfiguration) GitHubConfiguration {
	result := config
	if override.APIBase != "" {
		result.APIBase = override.APIBase
	}
	if override.Token != "" {
		result.Token = override.Token
	}
	if override.Timeout != "" {
		result.Timeout = override.Timeout
	}
	if override.UserAgent != "" {
		result.UserAgent = override.UserAgent
	}
	return result
}

func (config FetchConfiguration) merge(override FetchConfiguration) FetchConfiguration {
	result := config
	if override.Concurrency != nil {
		result.Concurrency = cloneInt(override.Concurrency)
	}
	if override.MaxFileSize != nil {
		result.MaxFileSize = int64Pointer(*override.MaxFileSize)
	}
	if override.MaxDepth != nil {
		result.MaxDepth = cloneInt(override.MaxDepth)
	}
	return result
}

func (config SelectionConfiguration) merge(override SelectionConfiguration) SelectionConfiguration {
	result := config
	if override.Include != nil {
		result.Include = append([]string{}, override.Include...)
	}
	if override.Exclude != nil {
		result.Exclude = append([]string{}, override.Exclude...)
	}
	if override.Dotfiles != "" {
		result.Dotfiles = override.Dotfiles
	}
	return result
}

func (config OutputConfiguration) merge(override OutputConfiguration) OutputConfiguration {
	result := config
	if override.Format != "" {
		result.Format = override.Format
	}
	result.Tokens = result.Tokens.merge(override.Tokens)
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

func (config ServerConfiguration) merge(override ServerConfiguration) ServerConfiguration {
	result := config
	if override.Address != "" {
		result.Address = override.Address
	}
	if override.Cache != nil {
		result.Cache = cloneBool(override.Cache)
	}
	if override.CORSOrigins != nil {
		result.CORSOrigins = append([]string{}, override.CORSOrigins...)
	}
	return result
}

func firstEnvironmentValue(names ...string) string {
	for _, name := range names {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return ""
}

func boolPointer(value bool) *bool {
	return &value
}

func intPointer(value int) *int {
	return &value
}

func int64Pointer(value int64) *int64 {
	return &value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
