package school

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/logger"
)

// Quota guards creations with the tenant's plan limits.
type Quota interface {
	Reserve(ctx context.Context, tenantID bson.ObjectID, res limits.Resource, create func(ctx context.Context) error) error
}

type unlimited struct{}

func (unlimited) Reserve(ctx context.Context, _ bson.ObjectID, _ limits.Resource, create func(context.Context) error) error {
	return create(ctx)
}

// Service implements the classroom operations of one tenant at a time.
type Service struct {
	store  Store
	quota  Quota
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

// WithQuota enforces plan limits on creations.
func WithQuota(q Quota) Option {
	return func(s *Service) {
		if q != nil {
			s.quota = q
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		quota:  unlimited{},
		now:    time.Now,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Counters returns the usage counters of the resources stored here.
func (s *Service) Counters() limits.CounterRegistry {
	return limits.CounterRegistry{
		limits.ResourceStudent:  limits.CounterFunc(s.store.Students.Count),
		limits.ResourceClass:    limits.CounterFunc(s.store.Classes.Count),
		limits.ResourceMission:  limits.CounterFunc(s.store.Missions.Count),
		limits.ResourceProduct:  limits.CounterFunc(s.store.Products.Count),
		limits.ResourceAttitude: limits.CounterFunc(s.store.Attitudes.Count),
	}
}

// ExistAll reports whether every id is a class of the tenant.
func (s *Service) ExistAll(ctx context.Context, tenantID bson.ObjectID, ids []bson.ObjectID) (bool, error) {
	ids = unique(ids)
	if len(ids) == 0 {
		return true, nil
	}
	n, err := s.store.Classes.CountIDs(ctx, tenantID, ids)
	if err != nil {
		return false, err
	}
	return n == int64(len(ids)), nil
}

func (s *Service) studentsExist(ctx context.Context, tenantID bson.ObjectID, ids []bson.ObjectID) error {
	n, err := s.store.Students.CountIDs(ctx, tenantID, ids)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return ErrStudentNotFound
	}
	return nil
}

// requireClass checks that a referenced class belongs to the tenant.
func (s *Service) requireClass(ctx context.Context, tenantID, classID bson.ObjectID) error {
	_, err := s.store.Classes.Get(ctx, tenantID, classID)
	return err
}

// ParseID parses a hex object id, reporting ErrInvalidID.
func ParseID(hex string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.NilObjectID, errors.Join(ErrInvalidID, err)
	}
	return id, nil
}

// ParseIDs parses hex ids, dropping duplicates.
func ParseIDs(hexes []string) ([]bson.ObjectID, error) {
	out := make([]bson.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := ParseID(h)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return unique(out), nil
}

// optionalID parses hex, treating an empty string as no id.
func optionalID(hex string) (bson.ObjectID, error) {
	if hex == "" {
		return bson.NilObjectID, nil
	}
	return ParseID(hex)
}

func unique(ids []bson.ObjectID) []bson.ObjectID {
	out := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
