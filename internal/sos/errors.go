package sos

import "errors"

var (
	// ErrInvalidArgument means a required field was missing or malformed.
	// The store is never touched and nothing is broadcast.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEventNotFound means no event exists for the given id.
	ErrEventNotFound = errors.New("sos event not found")
	// ErrEventConflict means an accept lost the race: the event exists but
	// is no longer pending.
	ErrEventConflict = errors.New("sos event already claimed or ended")
)
