package server

import (
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/inesosoares6/shopping-list-v2/internal/errors"
)

// newAPI mounts the typed operations on router. Their bodies use the same
// envelope as the hand-written tree routes.
func newAPI(router chi.Router) huma.API {
	config := huma.DefaultConfig("Shopping List Store", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	// No $schema links: clients decode plain envelopes.
	config.CreateHooks = nil
	config.Transformers = append(config.Transformers, EnvelopeTransformer)

	api := humachi.New(router, config)
	registerErrorHandler()
	return api
}

// EnvelopeTransformer wraps every operation body in an Envelope.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return Envelope{Error: &errors.Error{Code: body.Code, Message: body.Message, Details: body.Details}}, nil
	case Envelope:
		return body, nil
	}
	return Envelope{Success: true, Data: v}, nil
}

// APIError implements huma.StatusError for domain errors.
type APIError struct { //nolint:revive // reads better than server.Error next to errors.Error
	status  int
	Code    errors.Code `json:"code" doc:"Machine-readable error code"`
	Message string      `json:"message" doc:"Human-readable error message"`
	Details any         `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// toAPIError converts err for huma. Internal causes never reach the body.
func toAPIError(err error) *APIError {
	var e *errors.Error
	if !errors.As(err, &e) {
		e = errors.ErrInternal
	}
	return &APIError{status: e.HTTPStatus(), Code: e.Code, Message: e.Message, Details: e.Details}
}

var errorHandlerOnce sync.Once

// registerErrorHandler makes huma's own failures, such as an unreadable or
// invalid body, carry domain codes.
func registerErrorHandler() {
	errorHandlerOnce.Do(func() {
		huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
			var details []string
			for _, err := range errs {
				var domainErr *errors.Error
				if errors.As(err, &domainErr) {
					return toAPIError(domainErr)
				}
				if err != nil {
					details = append(details, err.Error())
				}
			}

			out := &APIError{status: status, Code: errors.CodeFromStatus(status), Message: message}
			if len(details) > 0 {
				out.Details = details
			}
			return out
		}
	})
}
