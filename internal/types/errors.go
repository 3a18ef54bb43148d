package types

import "errors"

var (
	// ErrExtraction means upstream text extraction failed.
	ErrExtraction = errors.New("text extraction failed")
	// ErrEmbeddingProvider covers unreachable providers, malformed responses
	// and vectors of the wrong length.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrCollectionCreation is fatal at startup.
	ErrCollectionCreation = errors.New("collection creation failed")
	// ErrSearchBackend is a query-time backend failure. It is never reported
	// as an empty result.
	ErrSearchBackend = errors.New("search backend error")
	// ErrDimensionMismatch means a vector does not match the collection size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidChunkSize  = errors.New("chunk size must be positive")
	// ErrInvalidPointID means an explicit id does not fit a signed 64-bit
	// point id.
	ErrInvalidPointID = errors.New("point id out of range")
	ErrBlankText      = errors.New("text is blank")
)
