package external

import "errors"

var (
	// ErrToolUnavailable means an external binary is missing, failed to
	// start or exited with a non-zero status. There is no fallback.
	ErrToolUnavailable = errors.New("external tool unavailable")

	// ErrCountMismatch means a tool returned a different number of output
	// lines than it was given input lines.
	ErrCountMismatch = errors.New("output count does not match input count")

	// ErrMalformedAlignment means an alignment link could not be parsed or
	// points outside its sentence pair.
	ErrMalformedAlignment = errors.New("malformed alignment")
)
