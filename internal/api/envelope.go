package api

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the response envelope format version clients check.
const EnvelopeVersion = 1

// Envelope wraps every JSON response body.
type Envelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`

	Retryable bool `json:"retryable,omitempty"`
}

// EnvelopeTransformer wraps huma response bodies in an Envelope.
// Error bodies keep their code and details next to the human-readable message.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if _, ok := v.(Envelope); ok {
		return v, nil
	}

	if apiErr, ok := v.(*APIError); ok {
		return Envelope{
			Version: EnvelopeVersion,
			Error:   apiErr.Message,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,

			Retryable: apiErr.Retryable,
		}, nil
	}

	if err, ok := v.(error); ok {
		return Envelope{
			Version: EnvelopeVersion,
			Error:   err.Error(),
		}, nil
	}

	if strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5") {
		return Envelope{Version: EnvelopeVersion, Data: v}, nil
	}

	return Envelope{
		Version: EnvelopeVersion,
		Success: true,
		Data:    v,
	}, nil
}
