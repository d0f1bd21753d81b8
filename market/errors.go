package market

import "errors"

var (
	// ErrInvalidTimestamp marks a time value that is not a usable instant.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrMalformedRecord marks a trade whose price or volume is unusable.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnsupportedGranularity marks a width outside the closed set.
	ErrUnsupportedGranularity = errors.New("unsupported granularity")
)
