package domain

import "errors"

var (
	ErrNoAgentsAvailable  = errors.New("no agents available")
	ErrSessionNotFound    = errors.New("session not found")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)
