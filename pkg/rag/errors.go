package rag

import (
	"errors"
	"fmt"
)

// Client errors: bad input, surfaced immediately and never retried.
var (
	ErrEmptyQuery   = errors.New("missing 'query' parameter")
	ErrQueryTooLong = fmt.Errorf("query too long (max %d chars)", MaxQueryChars)
)

// StageError marks a dependency failure inside the pipeline and names the
// stage that triggered it, so the caller can report which collaborator broke.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err is bad input rather than a pipeline
// failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyQuery) || errors.Is(err, ErrQueryTooLong)
}
