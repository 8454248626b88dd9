package guestlist

import "errors"

var (
	ErrValidation      = errors.New("invalid input")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("admin access required")
	ErrNotFound        = errors.New("guest not found")
	ErrRateLimited     = errors.New("only one guest can be added every 24 hours")
	ErrInternal        = errors.New("internal error")
)
