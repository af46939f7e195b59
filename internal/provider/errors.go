package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRepositoryReference reports input that does not name a repository.
	ErrInvalidRepositoryReference = errors.New("invalid repository reference")
	// ErrNotFound reports a repository, commit or path the provider does not know.
	ErrNotFound = errors.New("not found")
	// ErrPathNotFound reports a selected path that has no content at aggregation time.
	ErrPathNotFound = fmt.Errorf("selected path %w", ErrNotFound)
)

// FetchError describes a failed provider call.
type FetchError struct {
	Operation  string
	Repository string
	Path       string
	StatusCode int
	Err        error
}

func (fetchError *FetchError) Error() string {
	target := fetchError.Repository
	if fetchError.Path != "" {
		target += ":" + fetchError.Path
	}
	if fetchError.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", fetchError.Operation, target, fetchError.StatusCode, fetchError.Err)
	}
	return fmt.Sprintf("%s %s: %v", fetchError.Operation, target, fetchError.Err)
}

func (fetchError *FetchError) Unwrap() error {
	return fetchError.Err
}
