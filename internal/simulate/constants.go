package simulate

import "time"

// Timing and status constants.
const (
	ProcessingDelay      = 2 * time.Second
	StatusOK             = 200
	PercentageMultiplier = 100.0
)
