package api

import (
	"github.com/danielgtaylor/huma/v2"
)

// envelopeVersion is the wire format version clients negotiate against.
const envelopeVersion = 1

// Envelope is the uniform response wrapper for every API endpoint.
// Success responses carry `data`, error responses carry `error` plus
// the machine-readable `code` and optional `details`.
type Envelope struct {
	V       int    `json:"v" doc:"Envelope format version"`
	Success bool   `json:"success" doc:"Whether the request succeeded"`
	Data    any    `json:"data,omitempty" doc:"Response payload on success"`
	Error   string `json:"error,omitempty" doc:"Human-readable error message"`
	Code    string `json:"code,omitempty" doc:"Machine-readable error code"`
	Message string `json:"message,omitempty" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// EnvelopeTransformer wraps every response body in the Envelope format.
// Registered as a huma transformer so handlers return plain DTOs and the
// wrapping stays in one place.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	if apiErr, ok := v.(*APIError); ok {
		return &Envelope{
			V:       envelopeVersion,
			Success: false,
			Error:   apiErr.Message,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		}, nil
	}

	// Any other huma.StatusError (e.g. built-in 404 for unknown routes).
	if statusErr, ok := v.(huma.StatusError); ok {
		return &Envelope{
			V:       envelopeVersion,
			Success: false,
			Error:   statusErr.Error(),
			Code:    statusToCode(statusErr.GetStatus()),
			Message: statusErr.Error(),
		}, nil
	}

	return &Envelope{
		V:       envelopeVersion,
		Success: true,
		Data:    v,
	}, nil
}
