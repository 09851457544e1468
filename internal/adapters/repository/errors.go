package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("prediction already exists for user and round")
	ErrInvalidArg = errors.New("invalid argument")
)
