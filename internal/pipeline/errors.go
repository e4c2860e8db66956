package pipeline

import "errors"

var (
	// ErrEmptyImage means a file decoded to no pixels.
	ErrEmptyImage = errors.New("image is empty or could not be decoded")
	// ErrWriteFailed means a preview could not be encoded or written.
	ErrWriteFailed = errors.New("failed to write preview")
)
