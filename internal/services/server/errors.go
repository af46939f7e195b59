package server

import (
	"errors"
	"net/http"

	"github.com/temirov/ctrlcv/internal/provider"
	"github.com/temirov/ctrlcv/internal/selection"
)

// CommandExecutionError represents a failure accompanied by an HTTP status code.
type CommandExecutionError struct {
	statusCode int
	err        error
}

// Error returns the error string.
func (executionError CommandExecutionError) Error() string {
	return executionError.err.Error()
}

// Unwrap exposes the wrapped error.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.err
}

// StatusCode reports the associated HTTP status code.
func (executionError CommandExecutionError) StatusCode() int {
	return executionError.statusCode
}

// NewCommandExecutionError creates a new CommandExecutionError.
func NewCommandExecutionError(statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return CommandExecutionError{statusCode: statusCode, err: err}
}

// classifyError attaches the HTTP status of a pipeline failure.
func classifyError(err error) error {
	var executionError CommandExecutionError
	if err == nil || errors.As(err, &executionError) {
		return err
	}
	var fetchError *provider.FetchError
	switch {
	case errors.Is(err, provider.ErrInvalidRepositoryReference):
		return NewCommandExecutionError(http.StatusBadRequest, err)
	case errors.Is(err, provider.ErrNotFound), errors.Is(err, selection.ErrUnknownPath):
		return NewCommandExecutionError(http.StatusNotFound, err)
	case errors.As(err, &fetchError):
		return NewCommandExecutionError(http.StatusBadGateway, err)
	default:
		return NewCommandExecutionError(http.StatusInternalServerError, err)
	}
}

func statusCodeFromError(err error) int {
	var executionError CommandExecutionError
	if errors.As(classifyError(err), &executionError) {
		return executionError.StatusCode()
	}
	return http.StatusInternalServerError
}
