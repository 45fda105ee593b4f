package mcp

import (
	"github.com/ludo-technologies/decomb/app"
	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/service"
)

// Dependencies aggregates the shared services required by MCP handlers.
type Dependencies struct {
	service    domain.StructureService
	cfgReader  domain.CFGReader
	configPath string
}

// NewDependencies constructs the dependency set with sane defaults.
func NewDependencies(configPath string) *Dependencies {
	return &Dependencies{
		service:    service.NewStructureService(),
		cfgReader:  service.NewCFGReader(),
		configPath: configPath,
	}
}

// ConfigPath returns the configured config file path (may be empty to trigger discovery).
func (d *Dependencies) ConfigPath() string {
	return d.configPath
}

// Service exposes the structuring service used for inline documents.
func (d *Dependencies) Service() domain.StructureService {
	return d.service
}

// newConfigLoader returns a loader for which the given tool arguments
// override the configuration file
func (d *Dependencies) newConfigLoader(explicit map[string]bool, targetPath string) *service.StructureConfigurationLoaderImpl {
	loader := service.NewStructureConfigurationLoaderWithFlags(explicit)
	loader.SetTargetPath(targetPath)
	return loader
}

// BuildStructureUseCase assembles a fresh StructureUseCase with injected dependencies.
func (d *Dependencies) BuildStructureUseCase(explicit map[string]bool, targetPath string) (*app.StructureUseCase, error) {
	return app.NewStructureUseCaseBuilder().
		WithService(d.service).
		WithCFGReader(d.cfgReader).
		WithFormatter(service.NewStructureFormatter()).
		WithConfigLoader(d.newConfigLoader(explicit, targetPath)).
		Build()
}
