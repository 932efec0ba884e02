package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Weather provider errors
	ErrCityNotFound        = errors.New("city not found")
	ErrInvalidAPIKey       = errors.New("weather provider rejected the api key")
	ErrMissingAPIKey       = errors.New("weather provider api key is not configured")
	ErrMalformedPayload    = errors.New("weather provider returned a malformed payload")
	ErrUpstreamUnavailable = errors.New("weather provider is unavailable")

	// Delivery and coordination errors
	ErrRecipientUnreachable = errors.New("recipient cannot be reached")
	ErrLockHeld             = errors.New("lock is held by another worker")

	// Storage errors
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
