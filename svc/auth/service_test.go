package auth_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/leveledu/pkg/audit"
	"github.com/dmitrymomot/leveledu/pkg/email"
	"github.com/dmitrymomot/leveledu/pkg/jwt"
	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/rbac"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/svc/auth"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendWelcome(ctx context.Context, data email.WelcomeData) error {
	return m.Called(ctx, data).Error(0)
}

func (m *mockMailer) SendPasswordReset(ctx context.Context, data email.PasswordResetData) error {
	return m.Called(ctx, data).Error(0)
}

type tenants map[bson.ObjectID]*tenant.Info

func (t tenants) GetByID(_ context.Context, id bson.ObjectID) (*tenant.Info, error) {
	if info, ok := t[id]; ok {
		return info, nil
	}
	return nil, tenant.ErrTenantNotFound
}

func (t tenants) GetBySubdomain(_ context.Context, sub string) (*tenant.Info, error) {
	for _, info := range t {
		if info.Subdomain == sub {
			return info, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

type quotaFunc func(ctx context.Context, tenantID bson.ObjectID, res limits.Resource, create func(context.Context) error) error

func (f quotaFunc) Reserve(ctx context.Context, tenantID bson.ObjectID, res limits.Resource, create func(context.Context) error) error {
	return f(ctx, tenantID, res, create)
}

type fixture struct {
	svc    *auth.Service
	repo   *auth.MemoryRepository
	tokens *jwt.Service
	mailer *mockMailer
	school *tenant.Info
}

func newFixture(t *testing.T, opts ...auth.Option) *fixture {
	t.Helper()
	tokens, err := jwt.New(jwt.Config{Secret: "test-secret-with-enough-length"})
	require.NoError(t, err)

	school := &tenant.Info{ID: bson.NewObjectID(), Subdomain: "escola", Name: "Escola Azul", Status: tenant.StatusActive}
	f := &fixture{
		repo:   auth.NewMemoryRepository(),
		tokens: tokens,
		mailer: &mockMailer{},
		school: school,
	}
	opts = append([]auth.Option{
		auth.WithBcryptCost(bcrypt.MinCost),
		auth.WithMailer(f.mailer),
		auth.WithLoginURL("https://app.example.com/login"),
	}, opts...)
	f.svc = auth.NewService(f.repo, tokens, tenants{school.ID: school}, opts...)
	return f
}

func (f *fixture) register(t *testing.T, addr, password string, role rbac.Role) *auth.Registration {
	t.Helper()
	reg, err := f.svc.Register(context.Background(), f.school.ID, auth.RegisterInput{
		Name: "Staff", Email: addr, Password: password, Role: role,
	})
	require.NoError(t, err)
	return reg
}

func TestService_Login(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "Admin@School.com", "secret123", rbac.RoleTenantAdmin)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		sess, err := f.svc.Login(ctx, "admin@school.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "admin@school.com", sess.User.Email)
		assert.Equal(t, rbac.RoleTenantAdmin, sess.User.Role)
		assert.Equal(t, "escola", sess.User.TenantSubdomain)
		assert.Equal(t, "Escola Azul", sess.User.TenantName)

		claims, err := f.tokens.Parse(ctx, sess.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, sess.User.ID.Hex(), claims.UserID())
		assert.Equal(t, f.school.ID.Hex(), claims.TenantID)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		_, err := f.svc.Login(ctx, "nobody@school.com", "secret123")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		_, err := f.svc.Login(ctx, "admin@school.com", "wrong-pass")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestService_AuditTrail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := audit.NewMemoryStorage()
	f := newFixture(t, auth.WithAudit(audit.NewLogger(store)))
	reg := f.register(t, "admin@school.com", "secret123", rbac.RoleTenantAdmin)
	userID := reg.User.ID.Hex()

	_, err := f.svc.Login(ctx, "admin@school.com", "wrong-pass")
	require.Error(t, err)
	sess, err := f.svc.Login(ctx, "admin@school.com", "secret123")
	require.NoError(t, err)
	claims, err := f.tokens.Parse(ctx, sess.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, claims))

	events, err := store.Query(ctx, audit.Criteria{UserID: userID})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, audit.ActionLogout, events[0].Action)
	assert.Equal(t, audit.ActionLogin, events[1].Action)
	assert.Equal(t, audit.ResultSuccess, events[1].Result)
	assert.Equal(t, audit.ActionLogin, events[2].Action)
	assert.Equal(t, audit.ResultFailure, events[2].Result)
	assert.Equal(t, f.school.ID.Hex(), events[2].TenantID)

	registered, err := store.Query(ctx, audit.Criteria{Action: audit.ActionRegister})
	require.NoError(t, err)
	require.Len(t, registered, 1)
	assert.Equal(t, userID, registered[0].ResourceID)
	assert.Equal(t, "tenant_admin", registered[0].Metadata["role"])
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	t.Run("generated password is emailed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		var sent email.WelcomeData
		f.mailer.On("SendWelcome", mock.Anything, mock.MatchedBy(func(d email.WelcomeData) bool {
			sent = d
			return d.To == "teacher@school.com"
		})).Return(nil).Once()

		reg := f.register(t, "teacher@school.com", "", rbac.RoleTeacher)
		assert.True(t, reg.EmailSent)
		assert.Equal(t, rbac.RoleTeacher, reg.User.Role)
		assert.Equal(t, "Escola Azul", sent.SchoolName)
		assert.Len(t, sent.TemporaryPassword, 12)

		_, err := f.svc.Login(context.Background(), "teacher@school.com", sent.TemporaryPassword)
		assert.NoError(t, err)
		f.mailer.AssertExpectations(t)
	})

	t.Run("email failure is reported", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.mailer.On("SendWelcome", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		reg := f.register(t, "teacher@school.com", "", rbac.RoleTeacher)
		assert.False(t, reg.EmailSent)
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.register(t, "dup@school.com", "secret123", rbac.RoleTeacher)
		_, err := f.svc.Register(context.Background(), f.school.ID, auth.RegisterInput{
			Name: "Other", Email: "DUP@school.com", Password: "secret123", Role: rbac.RoleTeacher,
		})
		assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
	})

	t.Run("super admin role rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.Register(context.Background(), f.school.ID, auth.RegisterInput{
			Name: "Root", Email: "root@school.com", Password: "secret123", Role: rbac.RoleSuperAdmin,
		})
		assert.ErrorIs(t, err, auth.ErrInvalidRole)
	})

	t.Run("quota by role", func(t *testing.T) {
		t.Parallel()
		var reserved []limits.Resource
		f := newFixture(t, auth.WithQuota(quotaFunc(func(ctx context.Context, _ bson.ObjectID, res limits.Resource, create func(context.Context) error) error {
			reserved = append(reserved, res)
			if res == limits.ResourceAdmin {
				return &limits.LimitError{Resource: res, Current: 1, Limit: 1, Plan: "trial"}
			}
			return create(ctx)
		})))

		f.register(t, "t@school.com", "secret123", rbac.RoleTeacher)
		_, err := f.svc.Register(context.Background(), f.school.ID, auth.RegisterInput{
			Name: "Admin", Email: "a@school.com", Password: "secret123", Role: rbac.RoleTenantAdmin,
		})
		assert.ErrorIs(t, err, limits.ErrLimitExceeded)
		assert.Equal(t, []limits.Resource{limits.ResourceTeacher, limits.ResourceAdmin}, reserved)

		_, err = f.repo.FindByEmail(context.Background(), "a@school.com")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})

	t.Run("unknown classroom", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.Register(context.Background(), f.school.ID, auth.RegisterInput{
			Name: "T", Email: "t@school.com", Password: "secret123", Role: rbac.RoleTeacher,
			Classrooms: []string{"not-an-id"},
		})
		assert.ErrorIs(t, err, auth.ErrUnknownClassroom)
	})
}

func TestService_ResetPassword(t *testing.T) {
	t.Parallel()

	t.Run("new password works after email", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.register(t, "admin@school.com", "secret123", rbac.RoleTenantAdmin)

		var sent email.PasswordResetData
		f.mailer.On("SendPasswordReset", mock.Anything, mock.MatchedBy(func(d email.PasswordResetData) bool {
			sent = d
			return true
		})).Return(nil).Once()

		require.NoError(t, f.svc.ResetPassword(context.Background(), "admin@school.com"))
		_, err := f.svc.Login(context.Background(), "admin@school.com", sent.NewPassword)
		assert.NoError(t, err)
		_, err = f.svc.Login(context.Background(), "admin@school.com", "secret123")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("email failure keeps old password", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.register(t, "admin@school.com", "secret123", rbac.RoleTenantAdmin)
		f.mailer.On("SendPasswordReset", mock.Anything, mock.Anything).Return(errors.New("down")).Once()

		err := f.svc.ResetPassword(context.Background(), "admin@school.com")
		assert.ErrorIs(t, err, auth.ErrEmailDelivery)
		_, err = f.svc.Login(context.Background(), "admin@school.com", "secret123")
		assert.NoError(t, err)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.ResetPassword(context.Background(), "x@y.com"), auth.ErrUserNotFound)
	})
}

func TestService_ProvisionTenantAdmin(t *testing.T) {
	t.Parallel()

	t.Run("creates once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.mailer.On("SendWelcome", mock.Anything, mock.Anything).Return(nil).Once()
		ctx := context.Background()

		first, err := f.svc.ProvisionTenantAdmin(ctx, f.school, "A@B.com", "")
		require.NoError(t, err)
		assert.True(t, first.Created)
		assert.True(t, first.EmailSent)
		assert.Equal(t, rbac.RoleTenantAdmin, first.User.Role)
		assert.Equal(t, "a@b.com", first.User.Email)

		again, err := f.svc.ProvisionTenantAdmin(ctx, f.school, "a@b.com", "")
		require.NoError(t, err)
		assert.False(t, again.Created)
		assert.Equal(t, first.User.ID, again.User.ID)
		f.mailer.AssertExpectations(t)
	})

	t.Run("email failure requires a reset", func(t *testing.T) {
		t.Parallel()
		var logs bytes.Buffer
		f := newFixture(t, auth.WithLogger(logger.New(logger.WithOutput(&logs), logger.WithFormat(logger.FormatJSON))))
		var emailed string
		f.mailer.On("SendWelcome", mock.Anything, mock.MatchedBy(func(d email.WelcomeData) bool {
			emailed = d.TemporaryPassword
			return true
		})).Return(errors.New("down")).Once()

		res, err := f.svc.ProvisionTenantAdmin(context.Background(), f.school, "a@b.com", "Ana")
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.False(t, res.EmailSent)
		assert.True(t, res.PasswordResetRequired)

		_, err = f.svc.Login(context.Background(), "a@b.com", emailed)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		out := logs.String()
		assert.Contains(t, out, `"password_reset_required":true`)
		assert.NotContains(t, out, emailed)
		assert.NotContains(t, out, "temporary_password")
	})

	t.Run("email owned by another tenant", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		other := &tenant.Info{ID: bson.NewObjectID(), Subdomain: "outra", Name: "Outra"}
		f.register(t, "a@b.com", "secret123", rbac.RoleTeacher)
		_, err := f.svc.ProvisionTenantAdmin(context.Background(), other, "a@b.com", "")
		assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
	})
}

func TestService_CreateSuperAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.CreateSuperAdmin(ctx, auth.CreateSuperAdminInput{Email: "root@leveledu.com", Name: "Root", Password: "supersecret"})
	require.NoError(t, err)
	assert.True(t, u.SuperAdmin())
	assert.True(t, u.TenantID.IsZero())

	sess, err := f.svc.Login(ctx, "root@leveledu.com", "supersecret")
	require.NoError(t, err)
	assert.Empty(t, sess.User.TenantSubdomain)

	_, err = f.svc.CreateSuperAdmin(ctx, auth.CreateSuperAdminInput{Email: "x@leveledu.com", Name: "X", Password: "short"})
	assert.ErrorIs(t, err, auth.ErrWeakPassword)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "admin@school.com", "secret123", rbac.RoleTenantAdmin)
	sess, err := f.svc.Login(context.Background(), "admin@school.com", "secret123")
	require.NoError(t, err)

	var gotErr error
	errorHandler := func(w http.ResponseWriter, _ *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	var (
		gotUser      *auth.User
		gotRole      rbac.Role
		gotPrincipal tenant.Principal
	)
	h := auth.Middleware(f.svc, f.tokens, errorHandler)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = auth.GetUserFromContext(r.Context())
		gotRole, _ = rbac.GetRoleFromContext(r.Context())
		gotPrincipal, _ = tenant.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, gotUser)
	assert.Equal(t, sess.User.ID, gotUser.ID)
	assert.Equal(t, rbac.RoleTenantAdmin, gotRole)
	assert.Equal(t, f.school.ID, gotPrincipal.TenantID)

	stranger, _, err := f.tokens.Issue(bson.NewObjectID().Hex(), "", "teacher")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+stranger)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.ErrorIs(t, gotErr, auth.ErrUnauthenticated)

	claims, err := f.tokens.Parse(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(context.Background(), claims))
	req = httptest.NewRequest(http.MethodGet, "/admin/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.ErrorIs(t, gotErr, jwt.ErrRevokedToken)
}
