package service

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ulikunitz/xz"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/internal/ir"
)

// cfgEncoding identifies the serialization of a CFG document
type cfgEncoding int

const (
	encodingUnknown cfgEncoding = iota
	encodingJSON
	encodingYAML
	encodingMsgpack
)

// cfgCompression identifies the outer compression of a CFG document
type cfgCompression int

const (
	compressionNone cfgCompression = iota
	compressionGzip
	compressionXZ
)

// cfgDocument accepts either a whole program or a single function at the top level
type cfgDocument struct {
	Binary    string         `json:"binary" yaml:"binary" msgpack:"binary"`
	Functions []*ir.Function `json:"functions" yaml:"functions" msgpack:"functions"`

	Name   string      `json:"name" yaml:"name" msgpack:"name"`
	Entry  uint64      `json:"entry" yaml:"entry" msgpack:"entry"`
	Blocks []*ir.Block `json:"blocks" yaml:"blocks" msgpack:"blocks"`
}

func (d *cfgDocument) program(fallbackName string) *ir.Program {
	if len(d.Functions) > 0 || (len(d.Blocks) == 0 && d.Name == "") {
		return &ir.Program{Binary: d.Binary, Functions: d.Functions}
	}
	name := d.Name
	if name == "" {
		name = fallbackName
	}
	return &ir.Program{
		Binary:    d.Binary,
		Functions: []*ir.Function{{Name: name, Entry: d.Entry, Blocks: d.Blocks}},
	}
}

// CFGReaderImpl implements the CFGReader interface and decodes CFG documents
type CFGReaderImpl struct {
	maxFileSize int64
}

// NewCFGReader creates a new CFG reader service
func NewCFGReader() *CFGReaderImpl {
	return &CFGReaderImpl{}
}

// SetMaxFileSize limits the decoded size of a document; 0 disables the limit
func (r *CFGReaderImpl) SetMaxFileSize(size int64) {
	r.maxFileSize = size
}

// CollectCFGFiles finds all CFG files in the given paths
func (r *CFGReaderImpl) CollectCFGFiles(paths []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, domain.NewFileNotFoundError(path, err)
		}

		if info.IsDir() {
			dirFiles, err := r.collectFromDirectory(path, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			files = append(files, dirFiles...)
			continue
		}

		// Explicit files only need a known encoding
		if r.IsValidCFGFile(path) && !r.isExcluded(path, excludePatterns) {
			files = append(files, path)
		}
	}

	return files, nil
}

// IsValidCFGFile checks if a path has a supported CFG extension
func (r *CFGReaderImpl) IsValidCFGFile(path string) bool {
	enc, _ := detectEncoding(path)
	return enc != encodingUnknown
}

// FileExists checks if a file exists
func (r *CFGReaderImpl) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// ReadProgram reads and decodes the CFG file at path
func (r *CFGReaderImpl) ReadProgram(path string) (*ir.Program, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.NewFileNotFoundError(path, err)
	}
	if r.maxFileSize > 0 && info.Size() > r.maxFileSize {
		return nil, domain.NewInvalidInputError(
			fmt.Sprintf("file %s is %d bytes, larger than the %d byte limit", path, info.Size(), r.maxFileSize), nil)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewFileNotFoundError(path, err)
	}
	return r.DecodeProgram(path, content)
}

// DecodeProgram decodes an in-memory CFG document. The name selects the
// encoding and compression by extension.
func (r *CFGReaderImpl) DecodeProgram(name string, content []byte) (*ir.Program, error) {
	enc, comp := detectEncoding(name)
	if enc == encodingUnknown {
		return nil, domain.NewUnsupportedFormatError(filepath.Ext(name))
	}

	data, err := r.decompress(content, comp)
	if err != nil {
		return nil, domain.NewParseError(name, err)
	}

	var doc cfgDocument
	switch enc {
	case encodingJSON:
		err = json.Unmarshal(data, &doc)
	case encodingYAML:
		err = yaml.Unmarshal(data, &doc)
	case encodingMsgpack:
		err = msgpack.NewDecoder(bytes.NewReader(data)).Decode(&doc)
	}
	if err != nil {
		return nil, domain.NewParseError(name, err)
	}

	base := filepath.Base(name)
	return doc.program(strings.TrimSuffix(base, filepath.Ext(base))), nil
}

func (r *CFGReaderImpl) decompress(content []byte, comp cfgCompression) ([]byte, error) {
	var reader io.Reader
	switch comp {
	case compressionNone:
		return content, nil
	case compressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	case compressionXZ:
		xr, err := xz.NewReader(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		reader = xr
	}

	if r.maxFileSize > 0 {
		reader = io.LimitReader(reader, r.maxFileSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if r.maxFileSize > 0 && int64(len(data)) > r.maxFileSize {
		return nil, fmt.Errorf("decompressed document exceeds the %d byte limit", r.maxFileSize)
	}
	return data, nil
}

// detectEncoding maps a file name to its encoding, looking through one
// compression suffix
func detectEncoding(path string) (cfgEncoding, cfgCompression) {
	name := strings.ToLower(filepath.Base(path))
	comp := compressionNone
	switch {
	case strings.HasSuffix(name, ".gz"):
		comp = compressionGzip
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".xz"):
		comp = compressionXZ
		name = strings.TrimSuffix(name, ".xz")
	}

	switch filepath.Ext(name) {
	case ".json":
		return encodingJSON, comp
	case ".yaml", ".yml":
		return encodingYAML, comp
	case ".msgpack", ".mpk":
		return encodingMsgpack, comp
	}
	return encodingUnknown, comp
}

// collectFromDirectory collects CFG files from a directory
func (r *CFGReaderImpl) collectFromDirectory(dirPath string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFunc := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped
			return nil
		}

		if d.IsDir() {
			if path == dirPath {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") || r.isExcluded(path, excludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") || !r.IsValidCFGFile(path) {
			return nil
		}
		if r.shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFunc); err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	return files, nil
}

// shouldIncludeFile checks if a file should be included based on patterns
func (r *CFGReaderImpl) shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if r.isExcluded(path, excludePatterns) {
		return false
	}

	// If no include patterns specified, include by default
	if len(includePatterns) == 0 {
		return true
	}

	for _, pattern := range includePatterns {
		if r.matchesPattern(pattern, path) {
			return true
		}
	}
	return false
}

func (r *CFGReaderImpl) isExcluded(path string, excludePatterns []string) bool {
	for _, pattern := range excludePatterns {
		if r.matchesPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchesPattern matches a glob against a path. Patterns without a leading
// slash or globstar match at any depth, and bare file patterns also match
// the base name.
func (r *CFGReaderImpl) matchesPattern(pattern, path string) bool {
	pattern = filepath.ToSlash(pattern)
	path = filepath.ToSlash(path)

	if ok, _ := doublestar.Match(pattern, path); ok {
		return true
	}
	if ok, _ := doublestar.Match(pattern, filepath.Base(path)); ok {
		return true
	}
	if !strings.HasPrefix(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		if ok, _ := doublestar.Match("**/"+pattern, strings.TrimPrefix(path, "/")); ok {
			return true
		}
	}
	return false
}
