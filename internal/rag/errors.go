package rag

import "errors"

// Stage errors. Callers wrap these with %w and the HTTP boundary matches them
// with errors.Is to pick a status code.
var (
	// ErrUnsupportedFormat is returned by the loader for unrecognised file
	// extensions. The wrapping message names the extension.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrRead is returned when a file cannot be opened or decoded.
	ErrRead = errors.New("read failed")

	// ErrEmbedding is returned when vectorisation fails on either the insert
	// or the query side.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration is returned when the language model fails, is rate
	// limited, or times out.
	ErrGeneration = errors.New("generation failed")

	// ErrDimensionMismatch is returned by a store when a vector's length
	// differs from the dimension the index was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
