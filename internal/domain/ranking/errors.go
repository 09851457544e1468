package ranking

import "errors"

// Sentinel errors for this package.
var (
	ErrUnknownOrder = errors.New("unknown rank order")
)
