// Package problem renders RFC 7807 problem+json responses. Raw error
// detail is only exposed in development and test; production responses
// carry the generic status text so internals never leak to clients.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

const marshalFallback = `{"type":"about:blank","title":"Internal Server Error","status":500}`

// ProblemDetails is the wire form of an API error.
type ProblemDetails struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Errors   map[string]any `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

// WithDetail overrides the detail that would otherwise be derived from
// the error.
func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

func WithInstance(instance string) Option {
	return func(p *ProblemDetails) {
		p.Instance = instance
	}
}

// WithErrors attaches per-field validation errors.
func WithErrors(errs map[string]any) Option {
	return func(p *ProblemDetails) {
		p.Errors = errs
	}
}

// Write renders err as a problem response and logs it through the
// request-scoped logger, which already carries the correlation id.
// Client errors log at warn, server errors at error.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	p := ProblemDetails{
		Type:     typ,
		Title:    title,
		Status:   status,
		Instance: r.URL.Path,
	}
	for _, opt := range opts {
		opt(&p)
	}

	if p.Detail == "" && err != nil {
		p.Detail = http.StatusText(status)
		if detailAllowed(env) {
			p.Detail = err.Error()
		}
	}

	if err != nil {
		logger := zerolog.Ctx(r.Context())
		event := logger.Warn()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Err(err).
			Int("status", status).
			Str("type", typ).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(title)
	}

	WriteProblem(w, p)
}

// WriteProblem writes an already-built problem document.
func WriteProblem(w http.ResponseWriter, p ProblemDetails) {
	w.Header().Set("Content-Type", contentType)

	payload, err := json.Marshal(p)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(marshalFallback))
		return
	}

	w.WriteHeader(p.Status)
	_, _ = w.Write(payload)
}

// detailAllowed reports whether raw error text may reach the client.
func detailAllowed(env string) bool {
	return env == "development" || env == "test"
}

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)
