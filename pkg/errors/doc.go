// Package errors provides the structured error type shared by all service
// packages. Business-rule violations (bad credentials, insufficient balance,
// invalid verification code) carry a specific code surfaced verbatim to the
// caller; everything else maps to a generic internal failure.
package errors
