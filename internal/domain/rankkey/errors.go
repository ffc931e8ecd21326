package rankkey

import "errors"

// Sentinel kinds for codec errors.
var (
	ErrNegativePoints = errors.New("points must not be negative")
	ErrAboveCeiling   = errors.New("points above codec ceiling")
	ErrMalformedKey   = errors.New("malformed rank key")
)
