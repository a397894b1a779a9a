package ai

import "errors"

var (
	// ErrMissingCredentials indicates no API key was configured.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrResultMismatch indicates a response cannot be paired with its inputs.
	ErrResultMismatch = errors.New("embedding result does not match input")
)
