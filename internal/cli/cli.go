// Package cli provides the command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/ctrlcv/internal/commands"
	"github.com/temirov/ctrlcv/internal/config"
	"github.com/temirov/ctrlcv/internal/output"
	"github.com/temirov/ctrlcv/internal/services/clipboard"
	"github.com/temirov/ctrlcv/internal/services/mcp"
	"github.com/temirov/ctrlcv/internal/services/server"
	"github.com/temirov/ctrlcv/internal/types"
	"github.com/temirov/ctrlcv/internal/utils"
)

const (
	includeFlagName            = "include"
	includeFlagShorthand       = "i"
	excludeFlagName            = "exclude"
	excludeFlagShorthand       = "x"
	commitFlagName             = "commit"
	selectFlagName             = "select"
	deselectFlagName           = "deselect"
	formatFlagName             = "format"
	tokensFlagName             = "tokens"
	modelFlagName              = "model"
	copyFlagName               = "copy"
	styledFlagName             = "styled"
	addressFlagName            = "address"
	cacheFlagName              = "cache"
	globalFlagName             = "global"
	forceFlagName              = "force"
	configFlagName             = "config"
	verboseFlagName            = "verbose"
	versionFlagName            = "version"
	versionTemplate            = "ctrlcv version: %s\n"
	rootUse                    = "ctrlcv"
	rootShortDescription       = "turn GitHub repositories into LLM prompts"
	treeUse                    = "tree <repository>"
	convertUse                 = "convert <repository>"
	serveUse                   = "serve"
	mcpUse                     = "mcp"
	initUse                    = "init"
	treeAlias                  = "t"
	convertAlias               = "c"
	treeShortDescription       = "display the repository tree with selection markers (" + treeAlias + ")"
	convertShortDescription    = "aggregate the selected files into one document (" + convertAlias + ")"
	serveShortDescription      = "run the HTTP API"
	mcpShortDescription        = "serve a selection session as MCP tools over stdio"
	initShortDescription       = "write a default configuration file"
	includeFlagDescription     = "include file extensions (repeatable, comma separated)"
	excludeFlagDescription     = "exclude file extensions (repeatable, comma separated)"
	commitFlagDescription      = "commit, branch, or tag to read"
	selectFlagDescription      = "select a file or directory after applying the rules (repeatable)"
	deselectFlagDescription    = "deselect a file or directory after applying the rules (repeatable)"
	formatFlagDescription      = "output format: raw, json, or xml"
	tokensFlagDescription      = "estimate the token count of the document"
	modelFlagDescription       = "tokenizer model to use for token counting"
	copyFlagDescription        = "copy the output to the system clipboard"
	styledFlagDescription      = "color the selection markers"
	addressFlagDescription     = "listen address"
	cacheFlagDescription       = "cache tree listings and pinned file contents in memory"
	globalFlagDescription      = "write the global configuration instead of the local one"
	forceFlagDescription       = "overwrite an existing configuration file"
	configFlagDescription      = "configuration file to read instead of ./" + utils.LocalConfigFileName
	verboseFlagDescription     = "log progress at info level"
	versionFlagDescription     = "display application version"
	invalidFormatMessage       = "Invalid format value '%s'"
	clipboardWarningMessage    = "could not copy output to clipboard"
	configurationWrittenFormat = "configuration written to %s\n"
	serverAddressMessage       = "listening"
)

const (
	rootLongDescription = `ctrlcv fetches a GitHub repository tree, selects files by extension rules and
explicit path toggles, and concatenates the selected files into one document.
Use tree to inspect the selection, convert to produce the document, serve to run
the HTTP API, and mcp to expose an interactive selection session to MCP clients.`
	treeUsageExample = `  # Show which files a Go-only selection picks
  ctrlcv tree octo/repo -i go

  # Inspect a tag as JSON
  ctrlcv tree https://github.com/octo/repo/tree/v1.2.0 --format json`
	convertUsageExample = `  # Python files plus everything under docs, copied to the clipboard
  ctrlcv convert octo/repo -i py --select docs --copy

  # Everything except lock files, with a token estimate
  ctrlcv convert octo/repo -x lock --tokens --format json`
)

// dependencies are the process-level collaborators of the commands.
type dependencies struct {
	logger *zap.Logger
	level  zap.AtomicLevel
	copier clipboard.Copier
}

// rootOptions are the persistent flags of the root command.
type rootOptions struct {
	configPath  string
	verbose     bool
	showVersion bool
}

// selectionFlags are shared by the tree and convert commands.
type selectionFlags struct {
	include []string
	exclude []string
	commit  string
	toggles []commands.PathToggle
	format  string
}

// Execute runs the ctrlcv application.
func Execute(logger *zap.Logger, level zap.AtomicLevel) error {
	rootCommand := createRootCommand(dependencies{logger: logger, level: level, copier: clipboard.NewService()})
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCommand.ExecuteContext(ctx)
}

// createRootCommand builds the root Cobra command.
func createRootCommand(deps dependencies) *cobra.Command {
	options := &rootOptions{}

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if options.showVersion {
				fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
			if options.verbose {
				deps.level.SetLevel(zapcore.InfoLevel)
			}
		},
	}
	rootCommand.PersistentFlags().StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	registerBooleanFlag(rootCommand.PersistentFlags(), &options.verbose, verboseFlagName, false, verboseFlagDescription)
	registerBooleanFlag(rootCommand.PersistentFlags(), &options.showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.AddCommand(
		createTreeCommand(deps, options),
		createConvertCommand(deps, options),
		createServeCommand(deps, options),
		createMCPCommand(deps, options),
		createInitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

func addSelectionFlags(command *cobra.Command, flags *selectionFlags) {
	command.Flags().StringArrayVarP(&flags.include, includeFlagName, includeFlagShorthand, nil, includeFlagDescription)
	command.Flags().StringArrayVarP(&flags.exclude, excludeFlagName, excludeFlagShorthand, nil, excludeFlagDescription)
	command.Flags().StringVar(&flags.commit, commitFlagName, "", commitFlagDescription)
	command.Flags().StringVar(&flags.format, formatFlagName, "", formatFlagDescription)
	registerPathToggleFlags(command.Flags(), &flags.toggles)
}

// selectionRequest merges the flags over the configured default rules.
func (flags selectionFlags) selectionRequest(command *cobra.Command, repository string, configuration config.ApplicationConfiguration) commands.SelectionRequest {
	include := configuration.Selection.Include
	if command.Flags().Changed(includeFlagName) {
		include = utils.SplitCommaSeparated(flags.include)
	}
	exclude := configuration.Selection.Exclude
	if command.Flags().Changed(excludeFlagName) {
		exclude = utils.SplitCommaSeparated(flags.exclude)
	}
	return commands.SelectionRequest{
		Repository: repository,
		Commit:     flags.commit,
		Extensions: types.ExtensionSet{Include: include, Exclude: exclude},
		Toggles:    flags.toggles,
	}
}

func (flags selectionFlags) resolvedFormat(configuration config.ApplicationConfiguration) (string, error) {
	format := strings.ToLower(strings.TrimSpace(flags.format))
	if format == "" {
		format = strings.ToLower(configuration.Output.Format)
	}
	switch format {
	case types.FormatRaw, types.FormatJSON, types.FormatXML:
		return format, nil
	default:
		return "", fmt.Errorf(invalidFormatMessage, format)
	}
}

func loadConfiguration(options *rootOptions) (config.ApplicationConfiguration, error) {
	return config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: options.configPath})
}

// createTreeCommand returns the tree subcommand.
func createTreeCommand(deps dependencies, options *rootOptions) *cobra.Command {
	var flags selectionFlags
	var styled bool

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Example: treeUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, configErr := loadConfiguration(options)
			if configErr != nil {
				return configErr
			}
			format, formatErr := flags.resolvedFormat(configuration)
			if formatErr != nil {
				return formatErr
			}
			pipeline, pipelineErr := buildPipeline(configuration, runtimeOptions{}, deps.logger)
			if pipelineErr != nil {
				return pipelineErr
			}
			selected, selectErr := pipeline.Select(command.Context(), flags.selectionRequest(command, arguments[0], configuration))
			if selectErr != nil {
				return selectErr
			}
			nodes := output.BuildTreeOutput(selected.TreeView(pipeline.Classifier()))
			switch format {
			case types.FormatRaw:
				output.WriteTreeRaw(command.OutOrStdout(), nodes, selected.Available, styled)
				return nil
			case types.FormatJSON:
				rendered, renderErr := output.RenderTreeJSON(nodes)
				if renderErr != nil {
					return renderErr
				}
				fmt.Fprintln(command.OutOrStdout(), rendered)
				return nil
			case types.FormatXML:
				rendered, renderErr := output.RenderTreeXML(nodes)
				if renderErr != nil {
					return renderErr
				}
				fmt.Fprintln(command.OutOrStdout(), rendered)
				return nil
			default:
				return fmt.Errorf(invalidFormatMessage, format)
			}
		},
	}
	addSelectionFlags(treeCommand, &flags)
	registerBooleanFlag(treeCommand.Flags(), &styled, styledFlagName, false, styledFlagDescription)
	return treeCommand
}

// createConvertCommand returns the convert subcommand.
func createConvertCommand(deps dependencies, options *rootOptions) *cobra.Command {
	var flags selectionFlags
	var tokensEnabled bool
	var tokenModel string
	var copyEnabled bool

	convertCommand := &cobra.Command{
		Use:     convertUse,
		Aliases: []string{convertAlias},
		Short:   convertShortDescription,
		Example: convertUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, configErr := loadConfiguration(options)
			if configErr != nil {
				return configErr
			}
			format, formatErr := flags.resolvedFormat(configuration)
			if formatErr != nil {
				return formatErr
			}
			pipeline, pipelineErr := buildPipeline(configuration, runtimeOptions{}, deps.logger)
			if pipelineErr != nil {
				return pipelineErr
			}
			request := commands.ConvertRequest{SelectionRequest: flags.selectionRequest(command, arguments[0], configuration)}
			if !command.Flags().Changed(tokensFlagName) {
				tokensEnabled = valueOrFalse(configuration.Output.Tokens.Enabled)
			}
			if tokensEnabled {
				if !command.Flags().Changed(modelFlagName) {
					tokenModel = configuration.Output.Tokens.Model
				}
				counter, model, counterErr := newTokenCounter(tokenModel)
				if counterErr != nil {
					return counterErr
				}
				request.Tokens = commands.TokenOptions{Counter: counter, Model: model}
			}
			converted, convertErr := pipeline.Convert(command.Context(), request)
			if convertErr != nil {
				return convertErr
			}
			rendered, renderErr := output.RenderConvert(format, converted)
			if renderErr != nil {
				return renderErr
			}
			fmt.Fprint(command.OutOrStdout(), rendered)
			if format != types.FormatRaw {
				fmt.Fprintln(command.OutOrStdout())
			}
			if !command.Flags().Changed(copyFlagName) {
				copyEnabled = valueOrFalse(configuration.Output.Clipboard)
			}
			if copyEnabled && deps.copier != nil {
				if copyErr := deps.copier.Copy(rendered); copyErr != nil {
					deps.logger.Warn(clipboardWarningMessage, zap.Error(copyErr))
				}
			}
			return nil
		},
	}
	addSelectionFlags(convertCommand, &flags)
	registerBooleanFlag(convertCommand.Flags(), &tokensEnabled, tokensFlagName, false, tokensFlagDescription)
	convertCommand.Flags().StringVar(&tokenModel, modelFlagName, "", modelFlagDescription)
	registerBooleanFlag(convertCommand.Flags(), &copyEnabled, copyFlagName, false, copyFlagDescription)
	return convertCommand
}

// createServeCommand returns the serve subcommand.
func createServeCommand(deps dependencies, options *rootOptions) *cobra.Command {
	var address string
	var cacheEnabled bool

	serveCommand := &cobra.Command{
		Use:   serveUse,
		Short: serveShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, configErr := loadConfiguration(options)
			if configErr != nil {
				return configErr
			}
			if !command.Flags().Changed(addressFlagName) {
				address = configuration.Server.Address
			}
			if !command.Flags().Changed(cacheFlagName) {
				cacheEnabled = valueOrFalse(configuration.Server.Cache)
			}
			pipeline, pipelineErr := buildPipeline(configuration, runtimeOptions{cache: cacheEnabled}, deps.logger)
			if pipelineErr != nil {
				return pipelineErr
			}
			httpServer := server.NewServer(server.Config{
				Address:       address,
				Pipeline:      pipeline,
				TokenCounters: newTokenCounter,
				CORSOrigins:   configuration.Server.CORSOrigins,
				Logger:        deps.logger,
			})
			runErr := httpServer.Run(command.Context(), func(boundAddress string) {
				fmt.Fprintln(command.ErrOrStderr(), serverAddressMessage, boundAddress)
			})
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}
			return nil
		},
	}
	serveCommand.Flags().StringVar(&address, addressFlagName, "", addressFlagDescription)
	registerBooleanFlag(serveCommand.Flags(), &cacheEnabled, cacheFlagName, true, cacheFlagDescription)
	return serveCommand
}

// createMCPCommand returns the mcp subcommand.
func createMCPCommand(deps dependencies, options *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   mcpUse,
		Short: mcpShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration, configErr := loadConfiguration(options)
			if configErr != nil {
				return configErr
			}
			pipeline, pipelineErr := buildPipeline(configuration, runtimeOptions{cache: valueOrFalse(configuration.Server.Cache)}, deps.logger)
			if pipelineErr != nil {
				return pipelineErr
			}
			service := mcp.NewService(mcp.Config{
				Pipeline:      pipeline,
				TokenCounters: newTokenCounter,
				Version:       utils.GetApplicationVersion(),
				Logger:        deps.logger,
			})
			return service.Run(command.Context())
		},
	}
}

// createInitCommand returns the init subcommand.
func createInitCommand() *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			writtenPath, initErr := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if initErr != nil {
				return initErr
			}
			fmt.Fprintf(command.OutOrStdout(), configurationWrittenFormat, writtenPath)
			return nil
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	return initCommand
}
