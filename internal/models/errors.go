package models

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrExtraction        = errors.New("text extraction failed")
	ErrNotFound          = errors.New("snapshot artifact not found")
	ErrCorruptData       = errors.New("corrupt snapshot data")
	ErrEmptyIndex        = errors.New("index is empty")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmbedding         = errors.New("embedding failed")
	ErrRemoteGeneration  = errors.New("remote generation failed")
)

// RemoteError describes a failure of one of the two network capabilities
// (embedding or generation). Kind is ErrEmbedding or ErrRemoteGeneration.
// StatusCode is zero when the request never got an HTTP response.
type RemoteError struct {
	Kind       error
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%v: status %d: %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsAuth reports whether the remote side rejected the credentials.
func (e *RemoteError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Temporary reports whether a caller-level retry may succeed.
func (e *RemoteError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}
