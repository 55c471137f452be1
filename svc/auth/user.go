package auth

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/rbac"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// Collection holds admin users.
const Collection = "admin_users"

// User is a platform user. Email is globally unique and stored lowercased.
type User struct {
	ID           bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string          `bson:"name" json:"name"`
	Email        string          `bson:"email" json:"email"`
	PasswordHash string          `bson:"password" json:"-"`
	Role         rbac.Role       `bson:"role" json:"role"`
	TenantID     bson.ObjectID   `bson:"tenantId,omitempty" json:"tenantId,omitzero"`
	Classrooms   []bson.ObjectID `bson:"classrooms" json:"classrooms"`
	CreatedAt    time.Time       `bson:"createdAt" json:"createdAt"`
}

// SuperAdmin reports whether the user has platform-wide access.
func (u *User) SuperAdmin() bool { return u.Role == rbac.RoleSuperAdmin }

// Principal returns the tenant affiliation used for isolation checks.
func (u *User) Principal() tenant.Principal {
	return tenant.Principal{TenantID: u.TenantID, SuperAdmin: u.SuperAdmin()}
}

// Profile is the user as returned by login and /me.
type Profile struct {
	ID              bson.ObjectID `json:"id"`
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Role            rbac.Role     `json:"role"`
	TenantID        bson.ObjectID `json:"tenantId,omitzero"`
	TenantSubdomain string        `json:"tenantSubdomain,omitempty"`
	TenantName      string        `json:"tenantName,omitempty"`
}
