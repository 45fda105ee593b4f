package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ludo-technologies/decomb/domain"
)

// categoryPatterns pairs a category with message fragments that identify it
type categoryPatterns struct {
	category domain.ErrorCategory
	patterns []string
}

// ErrorCategorizerImpl implements the ErrorCategorizer interface
type ErrorCategorizerImpl struct {
	patterns []categoryPatterns
}

// NewErrorCategorizer creates a new error categorizer
func NewErrorCategorizer() domain.ErrorCategorizer {
	return &ErrorCategorizerImpl{
		patterns: initializeErrorPatterns(),
	}
}

// initializeErrorPatterns lists the message patterns in matching order
func initializeErrorPatterns() []categoryPatterns {
	return []categoryPatterns{
		{domain.ErrorCategoryTimeout, []string{
			"timed out",
			"timeout",
			"deadline",
			"context canceled",
		}},
		{domain.ErrorCategoryStructuring, []string{
			"invariant",
			"structuring",
			"backedge",
			"region",
			"unknown successor",
		}},
		{domain.ErrorCategoryConfig, []string{
			"config",
			"toml",
			"invalid settings",
		}},
		{domain.ErrorCategoryInput, []string{
			"invalid input",
			"no cfg files",
			"no functions",
			"file not found",
			"no such file",
			"cannot access",
			"permission denied",
		}},
		{domain.ErrorCategoryOutput, []string{
			"output",
			"write",
			"cannot create",
			"report generation",
		}},
		{domain.ErrorCategoryProcessing, []string{
			"parse",
			"decode",
			"unmarshal",
			"msgpack",
			"gzip",
			"xz",
		}},
	}
}

// codeCategories maps domain error codes onto categories
var codeCategories = map[string]domain.ErrorCategory{
	domain.ErrCodeInvalidInput:      domain.ErrorCategoryInput,
	domain.ErrCodeFileNotFound:      domain.ErrorCategoryInput,
	domain.ErrCodeParseError:        domain.ErrorCategoryProcessing,
	domain.ErrCodeAnalysisError:     domain.ErrorCategoryProcessing,
	domain.ErrCodeStructuringError:  domain.ErrorCategoryStructuring,
	domain.ErrCodeConfigError:       domain.ErrorCategoryConfig,
	domain.ErrCodeOutputError:       domain.ErrorCategoryOutput,
	domain.ErrCodeUnsupportedFormat: domain.ErrorCategoryInput,
}

// Categorize determines the category of an error. Context errors and
// domain error codes win over message patterns.
func (ec *ErrorCategorizerImpl) Categorize(err error) *domain.CategorizedError {
	if err == nil {
		return nil
	}

	category := domain.ErrorCategoryUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		category = domain.ErrorCategoryTimeout
	default:
		if c, ok := codeCategories[domain.ErrorCode(err)]; ok {
			category = c
			break
		}
		errMsg := strings.ToLower(err.Error())
		for _, cp := range ec.patterns {
			if containsAnyPattern(errMsg, cp.patterns) {
				category = cp.category
				break
			}
		}
	}

	message := err.Error()
	if category != domain.ErrorCategoryUnknown {
		message = ec.getCategoryMessage(category)
	}
	return &domain.CategorizedError{
		Category: category,
		Message:  message,
		Original: err,
	}
}

// GetRecoverySuggestions returns recovery suggestions for an error category
func (ec *ErrorCategorizerImpl) GetRecoverySuggestions(category domain.ErrorCategory) []string {
	suggestions := map[domain.ErrorCategory][]string{
		domain.ErrorCategoryInput: {
			"Check that the paths exist and contain .json, .yaml or .msgpack CFG files",
			"Compressed inputs need a .gz or .xz suffix after the encoding extension",
			"Try: decomb structure <path> --verbose to see file discovery",
		},
		domain.ErrorCategoryConfig: {
			"Verify the values in .decomb.toml",
			"Try: decomb init to generate a valid config file",
		},
		domain.ErrorCategoryTimeout: {
			"Increase performance.timeout_seconds in .decomb.toml",
			"Select fewer functions with --functions",
		},
		domain.ErrorCategoryOutput: {
			"Check write permissions for the output directory",
			"Try writing to a different location",
		},
		domain.ErrorCategoryProcessing: {
			"The CFG document could not be decoded; check its encoding and extension",
			"Validate the document against the lifter's export format",
		},
		domain.ErrorCategoryStructuring: {
			"Run with --verbose to trace the structuring passes",
			"Try --no-untangle or lower --max-comb-iterations to isolate the failing pass",
			"Structure the failing function alone with --functions <name>",
		},
		domain.ErrorCategoryUnknown: {
			"Run with --verbose for detailed error information",
			"Report the issue with the CFG file attached if it persists",
		},
	}

	if sug, ok := suggestions[category]; ok {
		return sug
	}
	return []string{"Check the error message for more details"}
}

// getCategoryMessage returns a user-friendly message for an error category
func (ec *ErrorCategorizerImpl) getCategoryMessage(category domain.ErrorCategory) string {
	messages := map[domain.ErrorCategory]string{
		domain.ErrorCategoryInput:       "Failed to process input files or directories",
		domain.ErrorCategoryConfig:      "Configuration file or settings error",
		domain.ErrorCategoryTimeout:     "Structuring timed out",
		domain.ErrorCategoryOutput:      "Failed to generate or write output",
		domain.ErrorCategoryProcessing:  "Failed to decode a CFG document",
		domain.ErrorCategoryStructuring: "A function could not be structured",
		domain.ErrorCategoryUnknown:     "An unexpected error occurred",
	}

	if msg, ok := messages[category]; ok {
		return msg
	}
	return "An error occurred"
}

// containsAnyPattern checks if a string contains any of the given patterns
func containsAnyPattern(str string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(str, pattern) {
			return true
		}
	}
	return false
}
