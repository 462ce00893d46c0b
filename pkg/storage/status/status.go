// Copyright © 2018 One Concern

// Package status declares error constants returned by
// implementations of the FileStore interface.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/storage and one
// of its implementations.
package status

import (
	"fmt"
	"net/http"

	"github.com/oneconcern/slides/pkg/errors"
)

var (
	// Sentinel errors returned by implementations of the interface defined by storage

	// ErrNotExists indicates that the fetched file does not exist on the branch
	ErrNotExists = errors.New("file doesn't exist")

	// ErrUnauthorized indicates that you don't provided correct credentials to the API
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates that the backend API forbids access to the target resource
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates that the version token sent on write does not match the current file
	ErrConflict = errors.New("version conflict")

	// ErrInvalidResource indicates that the path or branch is not valid for the backend
	ErrInvalidResource = errors.New("invalid repository resource")

	// ErrUnknownEncoding indicates that a remote file uses a content encoding we can't decode
	ErrUnknownEncoding = errors.New("unknown content encoding")

	// ErrStorageAPI indicates any other repository API error
	ErrStorageAPI = errors.New("repository API error")
)

// APIError carries the status code and body of a non-success response
// from the repository API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// FromStatus qualifies an API failure with the matching sentinel error.
//
// The returned error matches both the sentinel and *APIError.
func FromStatus(code int, body string) error {
	apiErr := &APIError{StatusCode: code, Body: body}
	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized.Wrap(apiErr)
	case http.StatusForbidden:
		return ErrForbidden.Wrap(apiErr)
	case http.StatusNotFound:
		return ErrNotExists.Wrap(apiErr)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return ErrConflict.Wrap(apiErr)
	case http.StatusBadRequest:
		return ErrInvalidResource.Wrap(apiErr)
	default:
		return ErrStorageAPI.Wrap(apiErr)
	}
}

// IsNotExists tells if the error reports a missing file
func IsNotExists(err error) bool {
	return errors.Is(err, ErrNotExists)
}
