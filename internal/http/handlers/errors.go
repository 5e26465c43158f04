// Package handlers defines the HTTP-layer error codes used by the webhook
// API. Codes are lowercase snake_case and stable; clients and dashboards can
// branch on them without parsing messages.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
