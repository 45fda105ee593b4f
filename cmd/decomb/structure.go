package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ludo-technologies/decomb/app"
	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/service"
)

// StructureCommand represents the structure command
type StructureCommand struct {
	// Output format flags
	json bool
	yaml bool
	csv  bool
	dot  bool

	outputPath string
	showAST    bool
	sortBy     string
	noColor    bool

	// Function selection and algorithm options
	functions               []string
	noUntangle              bool
	maxRefinementIterations int
	maxCombIterations       int

	// Side outputs
	metricsDir string
	dotDir     string

	// File selection options
	recursive       bool
	includePatterns []string
	excludePatterns []string
	maxFileSize     string

	// Execution options
	jobs    int
	timeout int
	watch   bool

	configFile string
	verbose    bool
}

// NewStructureCommand creates a new structure command
func NewStructureCommand() *StructureCommand {
	return &StructureCommand{
		sortBy:    string(domain.DefaultSortBy),
		recursive: domain.DefaultRecursive,
	}
}

// CreateCobraCommand creates the cobra command for structuring
func (c *StructureCommand) CreateCobraCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "structure [paths...]",
		Short: "Structure the control-flow graphs of lifted functions",
		Long: `Structure every function found in the given CFG files or directories.

CFG files are JSON, YAML or msgpack documents holding either a whole program
or a single function, optionally compressed with gzip (.gz) or xz (.xz).

The text report is printed to stdout. JSON, YAML, CSV and DOT reports are
written to a timestamped file under output.directory (default .decomb/reports)
unless --output is given.

Examples:
  decomb structure firmware/
  decomb structure --functions 'sub_40*' main.json
  decomb structure --json --metrics-dir metrics/ cfgs/
  decomb structure --dot -o main.dot main.msgpack.xz
  decomb structure --watch --show-ast main.yaml

Sort options:
  location     - File order (default)
  name         - Alphabetically by function name
  duplication  - Most duplicated blocks first
  growth       - Highest final/initial weight first
  size         - Largest initial weight first`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.runStructure,
	}

	// Output options
	cmd.Flags().BoolVar(&c.json, "json", false, "Generate JSON report file")
	cmd.Flags().BoolVar(&c.yaml, "yaml", false, "Generate YAML report file")
	cmd.Flags().BoolVar(&c.csv, "csv", false, "Generate CSV report file")
	cmd.Flags().BoolVar(&c.dot, "dot", false, "Generate graphviz DOT report file")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml", "csv", "dot")
	cmd.Flags().StringVarP(&c.outputPath, "output", "o", "", "Write the report to this file ('-' for stdout)")
	cmd.Flags().BoolVar(&c.showAST, "show-ast", false, "Print the structured tree in the text report")
	cmd.Flags().StringVar(&c.sortBy, "sort", string(domain.DefaultSortBy), "Sort criteria (location|name|duplication|growth|size)")
	cmd.Flags().BoolVar(&c.noColor, "no-color", false, "Disable colors in the text report")

	// Structuring options
	cmd.Flags().StringSliceVar(&c.functions, "functions", []string{}, "Only structure functions matching these glob patterns")
	cmd.Flags().BoolVar(&c.noUntangle, "no-untangle", false, "Do not duplicate short conditional tails")
	cmd.Flags().IntVar(&c.maxRefinementIterations, "max-refinement-iterations", domain.DefaultMaxRefinementIterations, "Successor refinement limit per region (0 = automatic)")
	cmd.Flags().IntVar(&c.maxCombIterations, "max-comb-iterations", domain.DefaultMaxCombIterations, "Node split limit per graph (0 = automatic)")
	cmd.Flags().StringVar(&c.metricsDir, "metrics-dir", "", "Write one metrics CSV per function into this directory")
	cmd.Flags().StringVar(&c.dotDir, "dot-dir", "", "Write graphviz dumps of every function into this directory")

	// File selection options
	cmd.Flags().BoolVar(&c.recursive, "recursive", domain.DefaultRecursive, "Recursively search subdirectories")
	cmd.Flags().StringSliceVar(&c.includePatterns, "include", domain.DefaultIncludePatterns, "Include file patterns")
	cmd.Flags().StringSliceVar(&c.excludePatterns, "exclude", domain.DefaultExcludePatterns, "Exclude file patterns")
	cmd.Flags().StringVar(&c.maxFileSize, "max-file-size", domain.DefaultMaxFileSize, "Largest CFG file accepted (e.g. 64MB, 0 = no limit)")

	// Execution options
	cmd.Flags().IntVarP(&c.jobs, "jobs", "j", domain.DefaultMaxConcurrency, "Functions structured in parallel (0 = unlimited)")
	cmd.Flags().IntVar(&c.timeout, "timeout", domain.DefaultTimeoutSeconds, "Timeout in seconds for a whole run")
	cmd.Flags().BoolVarP(&c.watch, "watch", "w", false, "Re-run whenever an input file changes")

	cmd.Flags().StringVarP(&c.configFile, "config", "c", "", "Configuration file path")

	return cmd
}

// determineOutputFormat returns the selected format and its file extension
func (c *StructureCommand) determineOutputFormat() (domain.OutputFormat, string) {
	switch {
	case c.json:
		return domain.OutputFormatJSON, "json"
	case c.yaml:
		return domain.OutputFormatYAML, "yaml"
	case c.csv:
		return domain.OutputFormatCSV, "csv"
	case c.dot:
		return domain.OutputFormatDOT, "dot"
	default:
		return domain.OutputFormatText, "txt"
	}
}

// buildRequest maps the command line onto a structuring request
func (c *StructureCommand) buildRequest(cmd *cobra.Command, args []string) (domain.StructureRequest, error) {
	format, extension := c.determineOutputFormat()

	maxFileSize, err := units.RAMInBytes(c.maxFileSize)
	if err != nil {
		return domain.StructureRequest{}, fmt.Errorf("invalid --max-file-size '%s': %w", c.maxFileSize, err)
	}

	sortBy := domain.SortCriteria(c.sortBy)
	if !sortBy.IsValid() {
		return domain.StructureRequest{}, fmt.Errorf("unsupported sort criteria '%s'. Valid options: location, name, duplication, growth, size", c.sortBy)
	}

	req := domain.StructureRequest{
		Paths:                   args,
		OutputFormat:            format,
		OutputWriter:            cmd.OutOrStdout(),
		ShowAST:                 c.showAST,
		SortBy:                  sortBy,
		FunctionPatterns:        c.functions,
		Untangle:                domain.BoolPtr(!c.noUntangle),
		MaxRefinementIterations: c.maxRefinementIterations,
		MaxCombIterations:       c.maxCombIterations,
		MetricsDir:              c.metricsDir,
		DotDir:                  c.dotDir,
		ConfigPath:              c.configFile,
		Recursive:               domain.BoolPtr(c.recursive),
		IncludePatterns:         c.includePatterns,
		ExcludePatterns:         c.excludePatterns,
		MaxFileSize:             maxFileSize,
		MaxConcurrency:          c.jobs,
		TimeoutSeconds:          c.timeout,
	}

	switch {
	case c.outputPath == "-":
		// stdout
	case c.outputPath != "":
		req.OutputPath = c.outputPath
	case format != domain.OutputFormatText && !c.watch:
		path, err := generateOutputFilePath("structure", extension, c.configFile, getTargetPathFromArgs(args))
		if err != nil {
			return domain.StructureRequest{}, err
		}
		req.OutputPath = path
	}

	return req, nil
}

// shouldUseProgressBars returns true when stderr is an interactive terminal
// and no verbose log is interleaved with the bar
func (c *StructureCommand) shouldUseProgressBars(cmd *cobra.Command) bool {
	if c.verbose || !service.IsInteractiveEnvironment() {
		return false
	}
	if errWriter, ok := cmd.ErrOrStderr().(*os.File); ok {
		return term.IsTerminal(int(errWriter.Fd()))
	}
	return false
}

// useColor reports whether the text report goes to a color terminal
func (c *StructureCommand) useColor(cmd *cobra.Command) bool {
	if c.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if out, ok := cmd.OutOrStdout().(*os.File); ok {
		return term.IsTerminal(int(out.Fd()))
	}
	return false
}

// createUseCase wires the structuring use case
func (c *StructureCommand) createUseCase(cmd *cobra.Command, args []string) (*app.StructureUseCase, error) {
	structureService := service.NewStructureService()
	if c.verbose {
		structureService.SetLogger(log.New(cmd.ErrOrStderr(), "[decomb] ", 0))
	}
	if c.shouldUseProgressBars(cmd) {
		pm := service.NewProgressManager()
		pm.SetWriter(cmd.ErrOrStderr())
		structureService.SetProgressManager(pm)
	}

	configLoader := service.NewStructureConfigurationLoaderFromFlagSet(cmd.Flags())
	configLoader.SetTargetPath(getTargetPathFromArgs(args))

	return app.NewStructureUseCaseBuilder().
		WithService(structureService).
		WithCFGReader(service.NewCFGReader()).
		WithFormatter(service.NewStructureFormatter().WithColor(c.useColor(cmd))).
		WithConfigLoader(configLoader).
		WithOutputWriter(service.NewFileOutputWriter(cmd.ErrOrStderr())).
		Build()
}

func (c *StructureCommand) runStructure(cmd *cobra.Command, args []string) error {
	if cmd.Parent() != nil {
		c.verbose, _ = cmd.Parent().PersistentFlags().GetBool("verbose")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	request, err := c.buildRequest(cmd, args)
	if err != nil {
		return err
	}

	useCase, err := c.createUseCase(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to create structure use case: %w", err)
	}

	start := time.Now()
	response, err := useCase.ExecuteAndReturn(ctx, request)
	if err != nil {
		c.printCategorizedError(cmd.ErrOrStderr(), err)
		if !c.watch {
			return err
		}
	} else if c.verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[decomb] structured %d function(s) in %v\n",
			response.Summary.TotalFunctions, time.Since(start).Round(time.Millisecond))
	}

	if c.watch {
		return c.runWatch(ctx, cmd, args, useCase, request)
	}

	if response != nil && response.Summary.FailedFunctions > 0 {
		return fmt.Errorf("%d of %d function(s) could not be structured",
			response.Summary.FailedFunctions, response.Summary.TotalFunctions)
	}
	return nil
}

// runWatch re-runs the use case on every change until interrupted
func (c *StructureCommand) runWatch(ctx context.Context, cmd *cobra.Command, args []string, useCase *app.StructureUseCase, request domain.StructureRequest) error {
	watcher := service.NewWatcher(args, c.recursive)
	logger := log.New(cmd.ErrOrStderr(), "[decomb] ", 0)
	watcher.SetLogger(logger)

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d path(s) for changes, press Ctrl+C to stop\n", len(args))
	return watcher.Run(ctx, func(ctx context.Context) error {
		logger.Printf("change detected, structuring again")
		if _, err := useCase.ExecuteAndReturn(ctx, request); err != nil {
			c.printCategorizedError(cmd.ErrOrStderr(), err)
		}
		return nil
	})
}

// printCategorizedError prints the error category and recovery suggestions
func (c *StructureCommand) printCategorizedError(w io.Writer, err error) {
	categorizer := service.NewErrorCategorizer()
	categorized := categorizer.Categorize(err)

	fmt.Fprintf(w, "%s: %s\n", categorized.Category, categorized.Message)
	if c.verbose || categorized.Category == domain.ErrorCategoryUnknown {
		fmt.Fprintf(w, "  %v\n", err)
	}
	for _, suggestion := range categorizer.GetRecoverySuggestions(categorized.Category) {
		fmt.Fprintf(w, "  - %s\n", suggestion)
	}
}

// NewStructureCmd creates and returns the structure cobra command
func NewStructureCmd() *cobra.Command {
	return NewStructureCommand().CreateCobraCommand()
}
