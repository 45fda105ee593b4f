package mcp

import (
	"github.com/ludo-technologies/decomb/domain"
)

func NewTestDependencies(svc domain.StructureService, reader domain.CFGReader, path string) *Dependencies {
	return &Dependencies{
		service:    svc,
		cfgReader:  reader,
		configPath: path,
	}
}
