package repository

import "errors"

// Sentinel kinds for datastore errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrStorage      = errors.New("storage failure")
	ErrInvalidLimit = errors.New("invalid history limit")
)
