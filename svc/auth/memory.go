package auth

import (
	"context"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/rbac"
)

// MemoryRepository is an in-process Repository for tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[bson.ObjectID]User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[bson.ObjectID]User)}
}

func (r *MemoryRepository) Insert(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return ErrEmailAlreadyExists
		}
	}
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	cp := *u
	cp.Classrooms = slices.Clone(u.Classrooms)
	r.users[u.ID] = cp
	return nil
}

func (r *MemoryRepository) find(match func(User) bool) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			u.Classrooms = slices.Clone(u.Classrooms)
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryRepository) FindByID(_ context.Context, id bson.ObjectID) (*User, error) {
	return r.find(func(u User) bool { return u.ID == id })
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	return r.find(func(u User) bool { return u.Email == email })
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id bson.ObjectID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u
	return nil
}

func (r *MemoryRepository) CountByRole(_ context.Context, tenantID bson.ObjectID, role rbac.Role) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.users {
		if u.TenantID == tenantID && u.Role == role {
			n++
		}
	}
	return n, nil
}
