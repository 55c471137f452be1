package auth

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/rbac"
)

// Repository persists admin users. Finders return ErrUserNotFound and
// Insert returns ErrEmailAlreadyExists on a duplicate email.
type Repository interface {
	Insert(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id bson.ObjectID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id bson.ObjectID, hash string) error
	CountByRole(ctx context.Context, tenantID bson.ObjectID, role rbac.Role) (int64, error)
}
