package service

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrBuildingNotFound = errors.New("building not found")
	ErrToiletNotFound   = errors.New("toilet not found in this building")
	ErrPasswordNotFound = errors.New("password not found")

	// ErrTargetLimited means the per-target policy denied the attempt: this
	// identity already acted on this resource inside the window.
	ErrTargetLimited = errors.New("already performed this action on this target")

	// ErrGlobalLimited means the identity-wide policy denied the attempt.
	ErrGlobalLimited = errors.New("too many requests")
)
