package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrLockHeld         = errors.New("lock already held")
	ErrRunInProgress    = errors.New("detection run already in progress")
	ErrFeeConfigMissing = errors.New("fee config missing for platform")
	ErrUnknownPlatform  = errors.New("unknown platform")
)
