package audit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrStorageFailure = errors.New("audit: storage failure")
	ErrInvalidEvent   = errors.New("audit: invalid event")
)

// Result is the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actions recorded by the auth service.
const (
	ActionLogin             = "auth.login"
	ActionLogout            = "auth.logout"
	ActionRegister          = "auth.register"
	ActionPasswordReset     = "auth.password_reset"
	ActionSuperAdminCreated = "auth.super_admin_created"
)

// Event is one audit record.
type Event struct {
	ID         string         `bson:"_id" json:"id"`
	Action     string         `bson:"action" json:"action"`
	Result     Result         `bson:"result" json:"result"`
	TenantID   string         `bson:"tenantId,omitempty" json:"tenantId,omitempty"`
	UserID     string         `bson:"userId,omitempty" json:"userId,omitempty"`
	RequestID  string         `bson:"requestId,omitempty" json:"requestId,omitempty"`
	ClientIP   string         `bson:"clientIp,omitempty" json:"clientIp,omitempty"`
	Resource   string         `bson:"resource,omitempty" json:"resource,omitempty"`
	ResourceID string         `bson:"resourceId,omitempty" json:"resourceId,omitempty"`
	Error      string         `bson:"error,omitempty" json:"error,omitempty"`
	Metadata   map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt  time.Time      `bson:"createdAt" json:"createdAt"`
}

func (e Event) validate() error {
	switch {
	case e.ID == "":
		return errors.Join(ErrInvalidEvent, errors.New("missing id"))
	case e.Action == "":
		return errors.Join(ErrInvalidEvent, errors.New("missing action"))
	case e.Result != ResultSuccess && e.Result != ResultFailure:
		return errors.Join(ErrInvalidEvent, errors.New("unknown result "+string(e.Result)))
	}
	return nil
}

// Criteria filters a query. Zero fields match everything. Results are
// newest first.
type Criteria struct {
	TenantID string
	UserID   string
	Action   string
	Since    time.Time
	Limit    int
}

// DefaultQueryLimit caps queries that set no Limit.
const DefaultQueryLimit = 100

func (c Criteria) limit() int {
	if c.Limit <= 0 || c.Limit > DefaultQueryLimit {
		return DefaultQueryLimit
	}
	return c.Limit
}

func (c Criteria) matches(e Event) bool {
	return (c.TenantID == "" || e.TenantID == c.TenantID) &&
		(c.UserID == "" || e.UserID == c.UserID) &&
		(c.Action == "" || e.Action == c.Action) &&
		(c.Since.IsZero() || !e.CreatedAt.Before(c.Since))
}

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, events ...Event) error
	Query(ctx context.Context, c Criteria) ([]Event, error)
}
