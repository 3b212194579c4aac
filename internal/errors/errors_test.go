package errors

import (
	"errors"
	"io"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "simple error",
			err:      errors.New("something went wrong"),
			expected: "Error: something went wrong",
		},
		{
			name:     "validation error",
			err:      Validationf("invalid reminder time %q", "25:00"),
			expected: `Error: validation failed: invalid reminder time "25:00"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.err)
			if result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatf(t *testing.T) {
	got := Formatf("user %s not found", "42")
	if got != "Error: user 42 not found" {
		t.Errorf("Formatf() = %q", got)
	}
}

func TestSentinelWrapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"validation", Validationf("bad %s", "input"), ErrValidation},
		{"not found", NotFoundf("quest %d", 3), ErrNotFound},
		{"storage", Storage("write", io.ErrUnexpectedEOF), ErrStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
		})
	}
}

func TestStorageKeepsCause(t *testing.T) {
	err := Storage("read", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Storage() lost the underlying cause: %v", err)
	}

	// Wrapping twice must not stack the prefix
	again := Storage("outer", err)
	if again != err {
		t.Errorf("Storage() rewrapped an existing storage error: %v", again)
	}

	if Storage("noop", nil) != nil {
		t.Error("Storage(nil) should return nil")
	}
}
