package dictionary

import "errors"

// Error kinds surfaced by Registry/loader operations, per the core's
// dictionary error taxonomy.
var (
	ErrNotFound          = errors.New("dictionary: not found")
	ErrUnsupportedFormat = errors.New("dictionary: unsupported format")
	ErrParseFailed       = errors.New("dictionary: parse failed")
	ErrEmptyDictionary   = errors.New("dictionary: empty dictionary")
	ErrCancelled         = errors.New("dictionary: load cancelled")
)
