package service

import "errors"

var (
	// ErrUnknownWebsite maps to a 400: the hit referenced a website id that
	// is not registered. No writes happen.
	ErrUnknownWebsite = errors.New("website not found")

	// ErrBlockedIP maps to a 403. Not an anomaly; just a refusal.
	ErrBlockedIP = errors.New("ip address is blocked")
)
