package app

import (
	"context"
	"fmt"
	"io"

	"github.com/ludo-technologies/decomb/domain"
	svc "github.com/ludo-technologies/decomb/service"
)

// StructureUseCase orchestrates the control-flow structuring workflow
type StructureUseCase struct {
	service      domain.StructureService
	cfgReader    domain.CFGReader
	formatter    domain.StructureOutputFormatter
	configLoader domain.StructureConfigurationLoader
	output       domain.ReportWriter
}

// NewStructureUseCase creates a new structuring use case
func NewStructureUseCase(
	service domain.StructureService,
	cfgReader domain.CFGReader,
	formatter domain.StructureOutputFormatter,
	configLoader domain.StructureConfigurationLoader,
) *StructureUseCase {
	return &StructureUseCase{
		service:      service,
		cfgReader:    cfgReader,
		formatter:    formatter,
		configLoader: configLoader,
		output:       svc.NewFileOutputWriter(nil),
	}
}

// prepare validates the request, merges the configuration and expands the
// input paths into CFG files
func (uc *StructureUseCase) prepare(req domain.StructureRequest) (domain.StructureRequest, error) {
	if err := uc.validateRequest(req); err != nil {
		return req, domain.NewInvalidInputError("invalid request", err)
	}

	finalReq, err := uc.loadAndMergeConfig(req)
	if err != nil {
		return req, domain.NewConfigError("failed to load configuration", err)
	}

	files, err := uc.cfgReader.CollectCFGFiles(
		finalReq.Paths,
		domain.BoolValue(finalReq.Recursive, domain.DefaultRecursive),
		finalReq.IncludePatterns,
		finalReq.ExcludePatterns,
	)
	if err != nil {
		return req, domain.NewFileNotFoundError("failed to collect files", err)
	}

	if len(files) == 0 {
		return req, domain.NewInvalidInputError("no CFG files found in the specified paths", nil)
	}

	finalReq.Paths = files
	return finalReq, nil
}

// Execute performs the complete structuring workflow and writes the report
func (uc *StructureUseCase) Execute(ctx context.Context, req domain.StructureRequest) error {
	_, err := uc.ExecuteAndReturn(ctx, req)
	return err
}

// ExecuteAndReturn runs the workflow, writes the report and returns the response
func (uc *StructureUseCase) ExecuteAndReturn(ctx context.Context, req domain.StructureRequest) (*domain.StructureResponse, error) {
	finalReq, err := uc.prepare(req)
	if err != nil {
		return nil, err
	}

	response, err := uc.service.Structure(ctx, finalReq)
	if err != nil {
		return nil, domain.NewAnalysisError("structuring failed", err)
	}

	if err := uc.write(response, finalReq); err != nil {
		return response, err
	}
	return response, nil
}

// StructureAndReturn runs the workflow without writing any report
func (uc *StructureUseCase) StructureAndReturn(ctx context.Context, req domain.StructureRequest) (*domain.StructureResponse, error) {
	finalReq, err := uc.prepare(req)
	if err != nil {
		return nil, err
	}

	response, err := uc.service.Structure(ctx, finalReq)
	if err != nil {
		return nil, domain.NewAnalysisError("structuring failed", err)
	}
	return response, nil
}

// StructureFile structures a single file and writes the report
func (uc *StructureUseCase) StructureFile(ctx context.Context, filePath string, req domain.StructureRequest) error {
	if !uc.cfgReader.IsValidCFGFile(filePath) {
		return domain.NewInvalidInputError(fmt.Sprintf("not a supported CFG file: %s", filePath), nil)
	}
	if _, err := uc.cfgReader.FileExists(filePath); err != nil {
		return err
	}

	req.Paths = []string{filePath}
	if err := uc.validateRequest(req); err != nil {
		return domain.NewInvalidInputError("invalid request", err)
	}

	finalReq, err := uc.loadAndMergeConfig(req)
	if err != nil {
		return domain.NewConfigError("failed to load configuration", err)
	}

	response, err := uc.service.StructureFile(ctx, filePath, finalReq)
	if err != nil {
		return domain.NewAnalysisError("file structuring failed", err)
	}

	return uc.write(response, finalReq)
}

// write delegates output handling to the ReportWriter
func (uc *StructureUseCase) write(response *domain.StructureResponse, req domain.StructureRequest) error {
	var out io.Writer
	if req.OutputPath == "" {
		out = req.OutputWriter
	}
	if err := uc.output.Write(out, req.OutputPath, req.OutputFormat, func(w io.Writer) error {
		return uc.formatter.Write(response, req.OutputFormat, w)
	}); err != nil {
		return domain.NewOutputError("failed to write output", err)
	}
	return nil
}

// validatePaths validates input paths
func (uc *StructureUseCase) validatePaths(req domain.StructureRequest) error {
	if len(req.Paths) == 0 {
		return fmt.Errorf("no input paths specified")
	}
	return nil
}

// validateOutput validates output configuration
func (uc *StructureUseCase) validateOutput(req domain.StructureRequest) error {
	if req.OutputWriter == nil && req.OutputPath == "" {
		return fmt.Errorf("output writer or output path is required")
	}
	return nil
}

// validateLimits validates the iteration and execution limits
func (uc *StructureUseCase) validateLimits(req domain.StructureRequest) error {
	if req.MaxRefinementIterations < 0 {
		return fmt.Errorf("max refinement iterations cannot be negative")
	}
	if req.MaxCombIterations < 0 {
		return fmt.Errorf("max comb iterations cannot be negative")
	}
	if req.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency cannot be negative")
	}
	if req.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}

// validateFormats validates output format and sort criteria
func (uc *StructureUseCase) validateFormats(req domain.StructureRequest) error {
	if req.OutputFormat != "" && !req.OutputFormat.IsValid() {
		return fmt.Errorf("unsupported output format: %s", req.OutputFormat)
	}
	if req.SortBy != "" && !req.SortBy.IsValid() {
		return fmt.Errorf("unsupported sort criteria: %s", req.SortBy)
	}
	return nil
}

// validateRequest validates the structuring request
func (uc *StructureUseCase) validateRequest(req domain.StructureRequest) error {
	validators := []func(domain.StructureRequest) error{
		uc.validatePaths,
		uc.validateOutput,
		uc.validateLimits,
		uc.validateFormats,
	}

	for _, validator := range validators {
		if err := validator(req); err != nil {
			return err
		}
	}

	return nil
}

// loadAndMergeConfig loads configuration from file and merges with request
func (uc *StructureUseCase) loadAndMergeConfig(req domain.StructureRequest) (domain.StructureRequest, error) {
	if uc.configLoader == nil {
		return req, nil
	}

	var configReq *domain.StructureRequest
	var err error

	if req.ConfigPath != "" {
		configReq, err = uc.configLoader.LoadConfig(req.ConfigPath)
		if err != nil {
			return req, fmt.Errorf("failed to load config from %s: %w", req.ConfigPath, err)
		}
	} else {
		configReq = uc.configLoader.LoadDefaultConfig()
	}

	if configReq != nil {
		// Merge config with request (request takes precedence)
		merged := uc.configLoader.MergeConfig(configReq, &req)
		return *merged, nil
	}

	return req, nil
}

// StructureUseCaseBuilder provides a builder pattern for creating StructureUseCase
type StructureUseCaseBuilder struct {
	service      domain.StructureService
	cfgReader    domain.CFGReader
	formatter    domain.StructureOutputFormatter
	configLoader domain.StructureConfigurationLoader
	output       domain.ReportWriter
}

// NewStructureUseCaseBuilder creates a new builder
func NewStructureUseCaseBuilder() *StructureUseCaseBuilder {
	return &StructureUseCaseBuilder{}
}

// WithService sets the structuring service
func (b *StructureUseCaseBuilder) WithService(service domain.StructureService) *StructureUseCaseBuilder {
	b.service = service
	return b
}

// WithCFGReader sets the CFG file reader
func (b *StructureUseCaseBuilder) WithCFGReader(cfgReader domain.CFGReader) *StructureUseCaseBuilder {
	b.cfgReader = cfgReader
	return b
}

// WithFormatter sets the output formatter
func (b *StructureUseCaseBuilder) WithFormatter(formatter domain.StructureOutputFormatter) *StructureUseCaseBuilder {
	b.formatter = formatter
	return b
}

// WithConfigLoader sets the configuration loader
func (b *StructureUseCaseBuilder) WithConfigLoader(configLoader domain.StructureConfigurationLoader) *StructureUseCaseBuilder {
	b.configLoader = configLoader
	return b
}

// WithOutputWriter sets the report writer
func (b *StructureUseCaseBuilder) WithOutputWriter(output domain.ReportWriter) *StructureUseCaseBuilder {
	b.output = output
	return b
}

// Build creates the StructureUseCase with the configured dependencies.
// The configuration loader is optional; without it no config is merged.
func (b *StructureUseCaseBuilder) Build() (*StructureUseCase, error) {
	if b.service == nil {
		return nil, fmt.Errorf("structure service is required")
	}
	if b.cfgReader == nil {
		return nil, fmt.Errorf("CFG reader is required")
	}
	if b.formatter == nil {
		return nil, fmt.Errorf("output formatter is required")
	}

	uc := NewStructureUseCase(b.service, b.cfgReader, b.formatter, b.configLoader)
	if b.output != nil {
		uc.output = b.output
	}
	return uc, nil
}
