package match

import "errors"

var (
	// ErrEmbedderRequired indicates a Fuzzy matcher was created without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrDimensionMismatch indicates the query vector cannot be compared
	// with the cached vectors.
	ErrDimensionMismatch = errors.New("query embedding dimension mismatch")
)
