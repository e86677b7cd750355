package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFunction is returned when the model asks for a tool that is
	// not registered. The model and the registry have diverged, so the query
	// cannot continue.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrInvalidArguments is reported when the arguments are not valid JSON or
	// do not satisfy the tool's request schema.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrNoResults is reported when a search returns no organic results.
	ErrNoResults = errors.New("no results found")
	// ErrFetch is reported on network or HTTP failures.
	ErrFetch = errors.New("fetch failed")
	// ErrParse is reported when the page has no content container.
	ErrParse = errors.New("no content found")
)

// ToolError wraps failures that the model should see and may recover from.
// Errors not wrapped in ToolError abort the current query.
type ToolError struct {
	err error
}

func NewToolError(err error) *ToolError {
	return &ToolError{err}
}

func (e *ToolError) Error() string {
	return e.err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.err
}

func toolErrorf(sentinel error, format string, args ...any) *ToolError {
	return &ToolError{fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}
