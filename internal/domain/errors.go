package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks malformed pagination parameters. It is reported
	// synchronously and the request is never sent.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrScopeRequired is returned for queries whose scope ids are not known yet.
	ErrScopeRequired = errors.New("query scope is required")

	// ErrReportNotFound is returned when the API has no report with the given id.
	ErrReportNotFound = errors.New("compliance report not found")

	// ErrUnknownResource is returned for resource names missing from the registry.
	ErrUnknownResource = errors.New("unknown resource")
)

// NetworkError is a transport failure or a non-2xx answer from the API.
type NetworkError struct {
	Op         string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Path, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s %s: status %d", e.Op, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NetworkError carrying a 404.
func IsNotFound(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.StatusCode == 404
}
