package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/orderlens/internal/store"
	"github.com/Additional-Code/orderlens/pkg/errorbank"
)

// Envelope is the body of every JSON response. Data is raw so clients and
// tests can decode it into the type they expect.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
	Meta    map[string]any  `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Builder helps construct consistent HTTP responses.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build writes the response. The database round trips the request has
// cost so far are reported as meta.round_trips, on errors too.
func (b *Builder) Build() error {
	if tally := store.TallyFrom(b.ctx.Request().Context()); tally != nil {
		b.WithMeta("round_trips", tally.Calls())
	}
	if b.err != nil {
		appErr := errorbank.From(b.err)
		status := b.status
		if status < 400 {
			status = appErr.StatusCode()
		}
		return b.write(status, Envelope{Error: errorBody(appErr), Meta: b.meta})
	}

	env := Envelope{Success: true, Meta: b.meta}
	if b.data != nil {
		raw, err := json.Marshal(b.data)
		if err != nil {
			return b.write(http.StatusInternalServerError, Envelope{
				Error: errorBody(errorbank.Internal("failed to encode response", errorbank.WithCause(err))),
			})
		}
		env.Data = raw
	}
	return b.write(b.status, env)
}

func (b *Builder) write(status int, env Envelope) error {
	return b.ctx.JSON(status, env)
}

// errorBody renders an AppError, adding a field → failed-rule map when the
// cause is a validation failure.
func errorBody(appErr *errorbank.AppError) *ErrorBody {
	body := &ErrorBody{
		Kind:    string(appErr.Kind()),
		Message: appErr.Message(),
		Details: appErr.Details(),
	}

	var verrs validator.ValidationErrors
	if errors.As(appErr, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		details := make(map[string]any, len(body.Details)+1)
		for k, v := range body.Details {
			details[k] = v
		}
		details["fields"] = fields
		body.Details = details
	}
	return body
}
