package config

import "errors"

// Flag and struct validation errors.
var (
	ErrNoSafekeepers     = errors.New("config: at least one safekeeper address is required")
	ErrInvalidSafekeeper = errors.New("config: safekeeper address must be host:port")
	ErrInvalidQuorum     = errors.New("config: quorum must be between a majority of the safekeepers and the number of safekeepers")
	ErrMissingDBName     = errors.New("config: database name is required")
	ErrMissingHost       = errors.New("config: primary host is required")
	ErrInvalidPort       = errors.New("config: port must be between 1 and 65535")
	ErrMissingUsername   = errors.New("config: username is required")
	ErrConflictingAuth   = errors.New("config: -w and -W are mutually exclusive")
)

// Sentinel errors surfaced by flag parsing itself, distinguished from
// business-rule validation so main can map them to the right exit path.
var (
	ErrHelpRequested    = errors.New("config: help requested")
	ErrVersionRequested = errors.New("config: version requested")
)
