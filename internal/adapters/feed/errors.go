package feed

import "errors"

// Sentinel errors for feed validation.
var (
	ErrInvalidPayload = errors.New("invalid feed payload")
	ErrInvalidFixture = errors.New("invalid fixture")
)
