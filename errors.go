package arena

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("arena: no store configured")
	ErrStoreClosed = errors.New("arena: store closed")

	// Not found errors.
	ErrJobNotFound      = errors.New("arena: job not found")
	ErrDocumentNotFound = errors.New("arena: document not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("arena: job already exists")

	// Request errors.
	ErrValidation = errors.New("arena: invalid input")
	ErrNotReady   = errors.New("arena: job result not ready")

	// Upload errors.
	ErrDocumentTooLarge = errors.New("arena: document exceeds size limit")
)
