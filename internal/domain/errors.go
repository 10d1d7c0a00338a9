package domain

import "errors"

// ErrNotFound is returned by repo functions when the requested record does not
// exist in the database.
var ErrNotFound = errors.New("not found")

// Rejection kinds. Every *Problem wraps exactly one of these so callers can
// classify a rejection with errors.Is without inspecting the problem body.
var (
	// ErrInvalidSchema marks a payload with missing or malformed required fields.
	// Handlers map this to HTTP 400.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrInvalidDate marks a submission for a date outside the accepted window.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidData marks a submission whose values break a business rule.
	ErrInvalidData = errors.New("invalid data")

	// ErrDuplicate marks a second submission for an already stored
	// (installation, date) pair. Handlers map this to HTTP 409.
	ErrDuplicate = errors.New("duplicate")
)

// ErrIssuance is wrapped around any failure returned by the voucher issuer.
// Handlers map this to HTTP 502.
var ErrIssuance = errors.New("voucher issuance failed")
