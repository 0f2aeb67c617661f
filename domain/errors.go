package domain

import "errors"

// ErrNotFound also covers records that exist but belong to another
// organization; callers must not reveal which case applies.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidState = errors.New("invalid state")
)
