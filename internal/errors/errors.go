package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/questbot/internal/logger"
)

// Error taxonomy shared by the store, repository and scheduler. Callers match
// with errors.Is; concrete errors wrap one of these.
var (
	// ErrValidation marks input rejected before any write (bad reminder time, empty quest text)
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing record or one not owned by the caller
	ErrNotFound = errors.New("not found")
	// ErrAlreadyDone is returned when completing a quest that is already done
	ErrAlreadyDone = errors.New("already done")
	// ErrStorage marks I/O, lock or transaction failures
	ErrStorage = errors.New("storage failure")
	// ErrDelivery marks a failed notification send
	ErrDelivery = errors.New("delivery failed")
	// ErrCorruptData marks a persisted document that could not be decoded
	ErrCorruptData = errors.New("corrupt data")
)

// Validationf returns an ErrValidation-wrapped error with a formatted message
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound-wrapped error with a formatted message
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Storage wraps err with ErrStorage and the failed operation name
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
