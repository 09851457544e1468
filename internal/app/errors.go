package service

import "errors"

// Sentinel error kinds returned by Service operations.
var (
	ErrForbidden         = errors.New("forbidden")
	ErrDeadlinePassed    = errors.New("prediction deadline passed")
	ErrInvalidPrediction = errors.New("invalid prediction")
	ErrInvalidFeed       = errors.New("invalid feed update")
	ErrBackpressure      = errors.New("ingestion queue full")
	ErrNotStarted        = errors.New("service not started")
)
