package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("request not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTerminalState   = errors.New("request already reached a terminal state")

	// Validation errors surfaced directly to callers (400 class).
	ErrMessageRequired = errors.New("Message is required in request body")
	ErrMessageTooLong  = errors.New("Message too long (max 200 characters)")

	// Upstream completion failures, classified by the processor.
	// The error text doubles as the user-visible reason stored on the record.
	ErrUpstreamTimeout   = errors.New("The AI service is taking too long to respond. Please try a shorter message or try again later.")
	ErrInsufficientQuota = errors.New("Account has insufficient balance. Please contact the administrator.")
	ErrRateLimited       = errors.New("Too many requests. Please try again later.")
	ErrMalformedResponse = errors.New("The AI service returned an empty or malformed response.")
)
