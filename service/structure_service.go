package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/internal/analyzer"
	"github.com/ludo-technologies/decomb/internal/ir"
	"github.com/ludo-technologies/decomb/internal/version"
)

// StructureServiceImpl implements the StructureService interface
type StructureServiceImpl struct {
	progress domain.ProgressManager
	logger   *log.Logger
}

// NewStructureService creates a new structuring service
func NewStructureService() *StructureServiceImpl {
	return &StructureServiceImpl{}
}

// SetProgressManager enables progress reporting; nil disables it
func (s *StructureServiceImpl) SetProgressManager(pm domain.ProgressManager) {
	s.progress = pm
}

// SetLogger sets an optional logger passed down to the structurer
func (s *StructureServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// programSource is a decoded program and the file it came from
type programSource struct {
	path    string
	program *ir.Program
}

// functionJob is one function selected for structuring
type functionJob struct {
	path  string
	index int
	fn    *ir.Function
}

// Structure structures every selected function of the requested files
func (s *StructureServiceImpl) Structure(ctx context.Context, req domain.StructureRequest) (*domain.StructureResponse, error) {
	var sources []programSource
	var errors []string

	reader := newSizedReader(req)
	for _, path := range req.Paths {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("structuring cancelled: %w", ctx.Err())
		default:
		}

		program, err := reader.ReadProgram(path)
		if err != nil {
			errors = append(errors, fmt.Sprintf("[%s] %v", path, err))
			continue
		}
		sources = append(sources, programSource{path: path, program: program})
	}

	if len(sources) == 0 && len(errors) > 0 {
		return nil, domain.NewInvalidInputError("no CFG file could be read", fmt.Errorf("%s", errors[0]))
	}

	return s.structureSources(ctx, sources, errors, req)
}

// StructureFile structures a single CFG file
func (s *StructureServiceImpl) StructureFile(ctx context.Context, filePath string, req domain.StructureRequest) (*domain.StructureResponse, error) {
	singleFileReq := req
	singleFileReq.Paths = []string{filePath}

	program, err := newSizedReader(req).ReadProgram(filePath)
	if err != nil {
		return nil, err
	}
	return s.structureSources(ctx, []programSource{{path: filePath, program: program}}, nil, singleFileReq)
}

// StructureContent structures an in-memory CFG document
func (s *StructureServiceImpl) StructureContent(ctx context.Context, name string, content []byte, req domain.StructureRequest) (*domain.StructureResponse, error) {
	if req.MaxFileSize > 0 && int64(len(content)) > req.MaxFileSize {
		return nil, domain.NewInvalidInputError(
			fmt.Sprintf("document %s is %d bytes, larger than the %d byte limit", name, len(content), req.MaxFileSize), nil)
	}
	program, err := newSizedReader(req).DecodeProgram(name, content)
	if err != nil {
		return nil, err
	}
	return s.structureSources(ctx, []programSource{{path: name, program: program}}, nil, req)
}

func newSizedReader(req domain.StructureRequest) *CFGReaderImpl {
	reader := NewCFGReader()
	reader.SetMaxFileSize(req.MaxFileSize)
	return reader
}

func (s *StructureServiceImpl) structureSources(ctx context.Context, sources []programSource, errors []string, req domain.StructureRequest) (*domain.StructureResponse, error) {
	var warnings []string

	jobs, err := s.selectFunctions(sources, req.FunctionPatterns)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if len(src.program.Functions) == 0 {
			warnings = append(warnings, fmt.Sprintf("[%s] No functions found in file", src.path))
		}
	}
	if len(jobs) == 0 {
		return nil, domain.NewAnalysisError("no functions found to structure", nil)
	}

	functions, results, taskErrors := s.runJobs(ctx, jobs, req)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("structuring cancelled: %w", ctx.Err())
	}
	errors = append(errors, taskErrors...)

	sideOutput := NewSideOutputWriter(req.MetricsDir, req.DotDir)
	if sideOutput.Enabled() {
		for _, res := range results {
			if res == nil {
				continue
			}
			if _, err := sideOutput.WriteFunction(res); err != nil {
				warnings = append(warnings, fmt.Sprintf("[%s] %v", res.Function, err))
			}
		}
	}

	sorted := s.sortFunctions(functions, req.SortBy)
	summary := s.generateSummary(sorted, len(sources))

	return &domain.StructureResponse{
		RunID:       newRunID(),
		Functions:   sorted,
		Summary:     summary,
		Warnings:    warnings,
		Errors:      errors,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Version:     version.Version,
		Config:      s.buildConfigForResponse(req),
	}, nil
}

// selectFunctions lists the functions of every source matching one of the
// name patterns; no patterns selects all
func (s *StructureServiceImpl) selectFunctions(sources []programSource, patterns []string) ([]functionJob, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, domain.NewInvalidInputError(fmt.Sprintf("invalid function pattern: %s", p), nil)
		}
	}

	var jobs []functionJob
	for _, src := range sources {
		for i, fn := range src.program.Functions {
			if fn == nil || !matchesAnyFunction(fn.Name, patterns) {
				continue
			}
			jobs = append(jobs, functionJob{path: src.path, index: i, fn: fn})
		}
	}
	return jobs, nil
}

func matchesAnyFunction(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// runJobs structures every job through the parallel executor. Failures are
// recorded per function; only cancellation aborts the batch.
func (s *StructureServiceImpl) runJobs(ctx context.Context, jobs []functionJob, req domain.StructureRequest) ([]domain.FunctionStructure, []*analyzer.Result, []string) {
	functions := make([]domain.FunctionStructure, len(jobs))
	results := make([]*analyzer.Result, len(jobs))
	var errors []string
	var mu sync.Mutex
	closed := false

	options := buildOptions(req)

	if s.progress != nil {
		s.progress.Initialize(len(jobs))
		s.progress.Start()
	}

	tasks := make([]domain.ExecutableTask, len(jobs))
	for i, job := range jobs {
		i, job := i, job
		tasks[i] = NewSimpleTask(job.fn.Name, true, func(ctx context.Context) (interface{}, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			restructurer := analyzer.NewRestructurer(options)
			restructurer.SetLogger(s.logger)
			result, err := restructurer.Restructure(job.fn)

			mu.Lock()
			defer mu.Unlock()
			if closed {
				return nil, nil
			}
			if err != nil {
				structErr := domain.NewStructuringError(job.fn.Name, err)
				functions[i] = domain.FunctionStructure{
					Name:     job.fn.Name,
					FilePath: job.path,
					Index:    job.index,
					Blocks:   len(job.fn.Blocks),
					Error:    structErr.Error(),
				}
				errors = append(errors, fmt.Sprintf("[%s:%s] %v", job.path, job.fn.Name, structErr))
			} else {
				functions[i] = toFunctionStructure(job, result, req.ShowAST || req.OutputFormat != domain.OutputFormatText)
				results[i] = result
			}
			if s.progress != nil {
				s.progress.Increment()
			}
			return nil, nil
		})
	}

	executor := NewParallelExecutor()
	executor.SetMaxConcurrency(req.MaxConcurrency)
	if req.TimeoutSeconds > 0 {
		executor.SetTimeout(time.Duration(req.TimeoutSeconds) * time.Second)
	}
	execErr := executor.Execute(ctx, tasks)

	if s.progress != nil {
		s.progress.Complete(execErr == nil)
	}

	// Tasks still running after a deadline must not touch the results
	mu.Lock()
	defer mu.Unlock()
	closed = true

	if execErr != nil && ctx.Err() == nil {
		// The executor deadline expired; unfinished functions are reported as failed
		for i, job := range jobs {
			if functions[i].Name == "" {
				functions[i] = domain.FunctionStructure{
					Name:     job.fn.Name,
					FilePath: job.path,
					Index:    job.index,
					Blocks:   len(job.fn.Blocks),
					Error:    execErr.Error(),
				}
			}
		}
		errors = append(errors, execErr.Error())
	}

	sort.Strings(errors)
	return functions, results, errors
}

func buildOptions(req domain.StructureRequest) analyzer.Options {
	options := analyzer.DefaultOptions()
	options.Untangle = domain.BoolValue(req.Untangle, domain.DefaultUntangle)
	options.MaxRefinementIterations = req.MaxRefinementIterations
	options.MaxCombIterations = req.MaxCombIterations
	return options
}

// toFunctionStructure converts an analyzer result to its domain form
func toFunctionStructure(job functionJob, result *analyzer.Result, withAST bool) domain.FunctionStructure {
	fs := domain.FunctionStructure{
		Name:            job.fn.Name,
		FilePath:        job.path,
		Index:           job.index,
		Blocks:          len(job.fn.Blocks),
		ReachableBlocks: len(job.fn.Blocks) - len(result.Unreachable),
		Backedges:       result.Backedges,
		Metrics: domain.StructureMetrics{
			Duplications:      result.Metrics.Duplications,
			InitialWeight:     result.Metrics.InitialWeight,
			FinalWeight:       result.Metrics.FinalWeight,
			Percentage:        result.Metrics.Percentage,
			TentativeUntangle: result.Metrics.TentativeUntangle,
			PerformedUntangle: result.Metrics.PerformedUntangle,
			CombSplits:        result.Metrics.CombSplits,
		},
	}

	for _, b := range result.Unreachable {
		fs.UnreachableBlocks = append(fs.UnreachableBlocks, b.Label())
	}

	for _, r := range result.Regions {
		fs.Regions = append(fs.Regions, domain.RegionSummary{
			Index:           r.Index,
			Size:            r.Size,
			Head:            r.Head,
			Retreatings:     r.Retreatings,
			EntryDispatcher: r.NewHeadNeeded,
			ExitDispatcher:  r.NewExitNeeded,
			Successors:      r.Successors,
			Refinements:     r.Refinements,
			OutlinedNodes:   r.OutlinedNodes,
		})
	}

	for b, n := range result.Duplicates {
		if n > 1 {
			if fs.Duplicates == nil {
				fs.Duplicates = make(map[string]int)
			}
			fs.Duplicates[b.Label()] = n
		}
	}

	if withAST {
		fs.AST = ConvertAST(result.Root)
		fs.ASTDot = astDot(result)
		fs.GraphDot = result.Graph.Dot()
	}
	return fs
}

// sortFunctions sorts functions based on the specified criteria
func (s *StructureServiceImpl) sortFunctions(functions []domain.FunctionStructure, sortBy domain.SortCriteria) []domain.FunctionStructure {
	sorted := make([]domain.FunctionStructure, len(functions))
	copy(sorted, functions)

	byLocation := func(a, b domain.FunctionStructure) bool {
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.Index < b.Index
	}

	var less func(a, b domain.FunctionStructure) bool
	switch sortBy {
	case domain.SortByName:
		less = func(a, b domain.FunctionStructure) bool {
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return byLocation(a, b)
		}
	case domain.SortByDuplication:
		less = func(a, b domain.FunctionStructure) bool {
			if a.Metrics.Duplications != b.Metrics.Duplications {
				return a.Metrics.Duplications > b.Metrics.Duplications
			}
			return byLocation(a, b)
		}
	case domain.SortByGrowth:
		less = func(a, b domain.FunctionStructure) bool {
			if a.Metrics.Percentage != b.Metrics.Percentage {
				return a.Metrics.Percentage > b.Metrics.Percentage
			}
			return byLocation(a, b)
		}
	case domain.SortBySize:
		less = func(a, b domain.FunctionStructure) bool {
			if a.Metrics.InitialWeight != b.Metrics.InitialWeight {
				return a.Metrics.InitialWeight > b.Metrics.InitialWeight
			}
			return byLocation(a, b)
		}
	default:
		less = byLocation
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})
	return sorted
}

// generateSummary creates summary statistics
func (s *StructureServiceImpl) generateSummary(functions []domain.FunctionStructure, filesAnalyzed int) domain.StructureSummary {
	summary := domain.StructureSummary{
		FilesAnalyzed:  filesAnalyzed,
		TotalFunctions: len(functions),
	}

	var growthSum float64
	for _, f := range functions {
		if !f.Succeeded() {
			summary.FailedFunctions++
			continue
		}
		summary.StructuredFunctions++
		summary.TotalRegions += len(f.Regions)
		for _, r := range f.Regions {
			if r.EntryDispatcher {
				summary.EntryDispatchers++
			}
			if r.ExitDispatcher {
				summary.ExitDispatchers++
			}
		}
		summary.TotalDuplications += f.Metrics.Duplications
		growthSum += f.Metrics.Percentage
		if f.Metrics.Percentage > summary.MaxGrowth {
			summary.MaxGrowth = f.Metrics.Percentage
		}
	}

	if summary.StructuredFunctions > 0 {
		summary.AverageGrowth = growthSum / float64(summary.StructuredFunctions)
	}
	return summary
}

func (s *StructureServiceImpl) buildConfigForResponse(req domain.StructureRequest) interface{} {
	return map[string]interface{}{
		"output_format":             string(req.OutputFormat),
		"sort_by":                   string(req.SortBy),
		"untangle":                  domain.BoolValue(req.Untangle, domain.DefaultUntangle),
		"max_refinement_iterations": req.MaxRefinementIterations,
		"max_comb_iterations":       req.MaxCombIterations,
		"function_patterns":         req.FunctionPatterns,
		"max_concurrency":           req.MaxConcurrency,
	}
}

func newRunID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return id.String()
}
