package domain

import "errors"

var (
	// ErrLocationUnavailable covers permission denied, timeout and unsupported geolocation.
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrFetchFailed         = errors.New("fetch failed")
	ErrSubscriptionFailed  = errors.New("subscription failed")
	ErrWriteFailed         = errors.New("write failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid screen transition")
	ErrInvalidCoordinate   = errors.New("invalid coordinate")
	ErrAccessDenied        = errors.New("outside service area")
)
