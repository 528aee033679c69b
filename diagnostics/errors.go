package diagnostics

import "errors"

// Error kinds returned by the statistic functions. Callers match them with
// errors.Is; the wrapped message carries the offending values.
var (
	// ErrInvalidParameter: k-w+1 <= 0, lag out of range, d outside [0, n)
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInsufficientData: series too short for the requested test
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNumericDegeneracy: zero variance or a zero sum of squares in a denominator
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
)
