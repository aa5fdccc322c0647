package services

import "errors"

// Error kinds surfaced by the ingestion and annotation services. Handlers map
// these to HTTP statuses with errors.Is; layers in between add context with
// fmt.Errorf and %w.
var (
	// ErrInvalidFormat means the upload is not a recognizable DICOM payload.
	ErrInvalidFormat = errors.New("invalid file format")

	// ErrExtractionFailed means metadata parsing failed; no state was created.
	ErrExtractionFailed = errors.New("metadata extraction failed")

	// ErrStorageFailure means a blob write or read failed.
	ErrStorageFailure = errors.New("content storage failure")

	// ErrIllegalTransition means a status update was requested against a
	// state with no such outgoing transition.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrIncompleteAnnotation means the annotation payload is internally
	// inconsistent (shape without coordinates, value without unit).
	ErrIncompleteAnnotation = errors.New("incomplete annotation payload")

	// ErrNotFound means a lookup by id or UID matched nothing.
	ErrNotFound = errors.New("not found")
)
