package ingest

import (
	"errors"
	"fmt"
)

// ErrNoCaptioner is returned when an image upload arrives but no vision
// model is configured.
var ErrNoCaptioner = errors.New("no captioner configured")

// ExtractionError reports a file that could not be reduced to content chunks.
// Callers treat it as non-fatal: the file is skipped and the turn continues.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %q: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
