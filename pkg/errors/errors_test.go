// pkg/errors/errors_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test error creation, wrapping, and code matching

package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/kfxtools/keyfinder/pkg/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    errors.ErrorCode
		message string
		wantStr string
	}{
		{
			name:    "path_not_found_error",
			code:    errors.ErrPathNotFound,
			message: "content directory missing",
			wantStr: "[PATH_NOT_FOUND] content directory missing",
		},
		{
			name:    "process_timeout_error",
			code:    errors.ErrProcessTimeout,
			message: "extractor exceeded 60s",
			wantStr: "[PROCESS_TIMEOUT] extractor exceeded 60s",
		},
		{
			name:    "config_invalid_error",
			code:    errors.ErrConfigInvalid,
			message: "library path lacks metadata.db",
			wantStr: "[CONFIG_INVALID] library path lacks metadata.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.code, tt.message)

			if err.Code != tt.code {
				t.Errorf("New() code = %v, want %v", err.Code, tt.code)
			}
			if err.Message != tt.message {
				t.Errorf("New() message = %q, want %q", err.Message, tt.message)
			}
			if err.Details == nil {
				t.Error("New() details should be initialized")
			}
			if got := err.Error(); got != tt.wantStr {
				t.Errorf("Error() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	inner := stderrors.New("boom")
	err := errors.Wrap(inner, errors.ErrProcessFailure, "calibredb add failed")

	if !stderrors.Is(err, inner) {
		t.Error("Wrap() should preserve the wrapped error for errors.Is")
	}
	if got := err.Error(); got != "[PROCESS_FAILURE] calibredb add failed: boom" {
		t.Errorf("Error() = %q", got)
	}

	if errors.Wrap(nil, errors.ErrProcessFailure, "nope") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestIsCode(t *testing.T) {
	err := errors.Newf(errors.ErrDuplicate, "book %q already in database", "The Sunken")
	wrapped := errors.Wrap(err, errors.ErrInternal, "import phase")

	if !errors.IsCode(err, errors.ErrDuplicate) {
		t.Error("IsCode should match direct code")
	}
	if errors.IsCode(err, errors.ErrProcessTimeout) {
		t.Error("IsCode should not match a different code")
	}
	// Outermost code wins for wrapped chains.
	if !errors.IsCode(wrapped, errors.ErrInternal) {
		t.Error("IsCode should match the outer code of a wrapped chain")
	}
}

func TestWithDetail(t *testing.T) {
	err := errors.New(errors.ErrProcessFailure, "exit code 2").
		WithDetail("asin", "B00N17VVZC").
		WithDetail("elapsed", "4.2s")

	if err.Details["asin"] != "B00N17VVZC" {
		t.Errorf("Details[asin] = %v", err.Details["asin"])
	}
	if len(err.Details) != 2 {
		t.Errorf("len(Details) = %d, want 2", len(err.Details))
	}
}
