package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultValueConsistency(t *testing.T) {
	t.Run("Default format and sort are supported", func(t *testing.T) {
		if !DefaultOutputFormat.IsValid() {
			t.Errorf("default output format %q is not supported", DefaultOutputFormat)
		}
		if !DefaultSortBy.IsValid() {
			t.Errorf("default sort criteria %q is not supported", DefaultSortBy)
		}
	})

	t.Run("Limits are non-negative", func(t *testing.T) {
		if DefaultMaxRefinementIterations < 0 || DefaultMaxCombIterations < 0 {
			t.Error("iteration limits must be >= 0")
		}
		if DefaultMaxConcurrency < 0 {
			t.Error("concurrency must be >= 0")
		}
		if DefaultTimeoutSeconds <= 0 {
			t.Error("the run timeout must be positive")
		}
	})

	t.Run("Include patterns cover every encoding", func(t *testing.T) {
		joined := strings.Join(DefaultIncludePatterns, " ")
		for _, ext := range []string{".json", ".yaml", ".msgpack", ".gz", ".xz"} {
			if !strings.Contains(joined, ext) {
				t.Errorf("no include pattern for %s", ext)
			}
		}
	})
}

func TestOutputFormatIsValid(t *testing.T) {
	for _, f := range SupportedOutputFormats() {
		if !f.IsValid() {
			t.Errorf("%s should be valid", f)
		}
	}
	if OutputFormat("html").IsValid() {
		t.Error("html is not a supported format")
	}
}

func TestSortCriteriaIsValid(t *testing.T) {
	for _, s := range []SortCriteria{SortByName, SortByDuplication, SortByGrowth, SortBySize, SortByLocation} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if SortCriteria("complexity").IsValid() {
		t.Error("complexity is not a structuring sort criteria")
	}
}

func TestErrorCode(t *testing.T) {
	cause := errors.New("boom")
	err := NewStructuringError("main", cause)

	if got := ErrorCode(err); got != ErrCodeStructuringError {
		t.Errorf("ErrorCode = %q, want %q", got, ErrCodeStructuringError)
	}
	if !errors.Is(err, cause) {
		t.Error("the cause must stay reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "main") {
		t.Errorf("message %q should name the function", err.Error())
	}
	if ErrorCode(cause) != "" {
		t.Error("plain errors carry no code")
	}
}

func TestBoolValue(t *testing.T) {
	if !BoolValue(nil, true) || BoolValue(nil, false) {
		t.Error("nil must yield the default")
	}
	if BoolValue(BoolPtr(false), true) {
		t.Error("an explicit false must win over the default")
	}
}
