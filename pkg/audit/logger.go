package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/leveledu/pkg/clientip"
	"github.com/dmitrymomot/leveledu/pkg/jwt"
	"github.com/dmitrymomot/leveledu/pkg/requestid"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// Extractor copies request metadata from ctx into e.
type Extractor func(ctx context.Context, e *Event)

// DefaultExtractors fill request id, client address, tenant and user.
func DefaultExtractors() []Extractor {
	return []Extractor{
		func(ctx context.Context, e *Event) { e.RequestID = requestid.FromContext(ctx) },
		func(ctx context.Context, e *Event) { e.ClientIP = clientip.FromContext(ctx) },
		func(ctx context.Context, e *Event) {
			if info, ok := tenant.FromContext(ctx); ok {
				e.TenantID = info.ID.Hex()
			} else if p, ok := tenant.PrincipalFromContext(ctx); ok && !p.TenantID.IsZero() {
				e.TenantID = p.TenantID.Hex()
			}
		},
		func(ctx context.Context, e *Event) {
			if claims, ok := jwt.ClaimsFromContext(ctx); ok {
				e.UserID = claims.UserID()
			}
		},
	}
}

// Logger builds events and stores them.
type Logger struct {
	storage    Storage
	extractors []Extractor
	now        func() time.Time
}

type Option func(*Logger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// NewLogger panics on a nil storage.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{storage: storage, extractors: DefaultExtractors(), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EventOption adjusts an event after extraction.
type EventOption func(*Event)

// WithUser sets the acting user, e.g. on login where no token exists yet.
func WithUser(id string) EventOption {
	return func(e *Event) { e.UserID = id }
}

// WithTenant overrides the extracted tenant.
func WithTenant(id string) EventOption {
	return func(e *Event) { e.TenantID = id }
}

func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// Log records a successful action.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	return l.storage.Store(ctx, l.event(ctx, action, ResultSuccess, nil, opts))
}

// LogError records a failed action with err's message.
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	return l.storage.Store(ctx, l.event(ctx, action, ResultFailure, err, opts))
}

// Find returns stored events matching c.
func (l *Logger) Find(ctx context.Context, c Criteria) ([]Event, error) {
	return l.storage.Query(ctx, c)
}

func (l *Logger) event(ctx context.Context, action string, result Result, err error, opts []EventOption) Event {
	e := Event{
		ID:        uuid.NewString(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	for _, ex := range l.extractors {
		ex(ctx, &e)
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}
