/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package exitcode

import (
	"errors"
	"testing"
)

func TestExitCodeConstants(t *testing.T) {
	if Success != 0 {
		t.Errorf("Success = %v, expected 0", Success)
	}
	if FilesFailed != 1 {
		t.Errorf("FilesFailed = %v, expected 1", FilesFailed)
	}
	if RunFailed != 4 {
		t.Errorf("RunFailed = %v, expected 4", RunFailed)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{FilesFailed, "One or more files failed"},
		{ConfigError, "Configuration error"},
		{LedgerDrift, "Hash ledger out of date"},
		{RunFailed, "Run could not enumerate the root"},
		{Interrupted, "Interrupted"},
		{42, "Unknown error"},
	}

	for _, tt := range tests {
		if got := String(tt.code); got != tt.expected {
			t.Errorf("String(%d) = %q, expected %q", tt.code, got, tt.expected)
		}
	}
}

func TestError(t *testing.T) {
	cause := errors.New("bad flag")
	err := New(ConfigError, cause)

	if err.Error() != "bad flag" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Error should unwrap to its cause")
	}

	var ee *Error
	if !errors.As(error(New(FilesFailed, nil)), &ee) || ee.Code != FilesFailed {
		t.Errorf("errors.As did not find the exit code")
	}
	if ee.Error() != "One or more files failed" {
		t.Errorf("nil cause should use the description, got %q", ee.Error())
	}
}
