package extract

import "errors"

var (
	// ErrNoText is returned when a document yields no usable text after cleaning.
	ErrNoText = errors.New("no text could be extracted")
)
