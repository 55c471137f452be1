package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/leveledu/pkg/audit"
	"github.com/dmitrymomot/leveledu/pkg/email"
	"github.com/dmitrymomot/leveledu/pkg/jwt"
	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/rbac"
	"github.com/dmitrymomot/leveledu/pkg/sanitizer"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// Mailer delivers account emails.
type Mailer interface {
	SendWelcome(ctx context.Context, data email.WelcomeData) error
	SendPasswordReset(ctx context.Context, data email.PasswordResetData) error
}

// Quota guards creation of staff accounts under the tenant plan.
type Quota interface {
	Reserve(ctx context.Context, tenantID bson.ObjectID, res limits.Resource, create func(ctx context.Context) error) error
}

// Classrooms checks that class IDs belong to a tenant.
type Classrooms interface {
	ExistAll(ctx context.Context, tenantID bson.ObjectID, ids []bson.ObjectID) (bool, error)
}

// Service implements admin user authentication and management.
type Service struct {
	repo       Repository
	tokens     *jwt.Service
	tenants    tenant.Provider
	mailer     Mailer
	quota      Quota
	classrooms Classrooms
	loginURL   string
	bcryptCost int
	now        func() time.Time
	logger     *slog.Logger
	trail      *audit.Logger
}

type Option func(*Service)

func WithMailer(m Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithQuota enforces the plan's admin and teacher limits on Register.
func WithQuota(q Quota) Option {
	return func(s *Service) { s.quota = q }
}

func WithClassrooms(c Classrooms) Option {
	return func(s *Service) { s.classrooms = c }
}

// WithLoginURL sets the link included in account emails.
func WithLoginURL(url string) Option {
	return func(s *Service) { s.loginURL = url }
}

// WithBcryptCost sets the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
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

// WithAudit records logins, logouts, registrations and password resets.
func WithAudit(trail *audit.Logger) Option {
	return func(s *Service) { s.trail = trail }
}

func NewService(repo Repository, tokens *jwt.Service, tenants tenant.Provider, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		tokens:     tokens,
		tenants:    tenants,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is the result of a successful login.
type Session struct {
	User        Profile   `json:"user"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Login verifies credentials. An unknown email yields ErrUserNotFound and
// a wrong password ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*Session, error) {
	u, err := s.repo.FindByEmail(ctx, sanitizer.NormalizeEmail(emailAddr))
	if err != nil {
		s.record(ctx, audit.ActionLogin, err, audit.WithMetadata("email", sanitizer.MaskEmail(emailAddr)))
		return nil, err
	}
	if !checkPassword(u.PasswordHash, password) {
		s.logger.WarnContext(ctx, "admin login failed",
			logger.UserID(u.ID.Hex()),
			slog.String("email", sanitizer.MaskEmail(u.Email)))
		s.record(ctx, audit.ActionLogin, ErrInvalidCredentials, actor(u)...)
		return nil, ErrInvalidCredentials
	}

	profile, err := s.profile(ctx, u)
	if err != nil {
		return nil, err
	}
	var tenantID string
	if !u.TenantID.IsZero() {
		tenantID = u.TenantID.Hex()
	}
	token, claims, err := s.tokens.Issue(u.ID.Hex(), tenantID, u.Role.String())
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "admin logged in",
		logger.UserID(u.ID.Hex()),
		logger.Role(u.Role.String()))
	s.record(ctx, audit.ActionLogin, nil, actor(u)...)
	return &Session{User: *profile, AccessToken: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout revokes the token until it expires.
func (s *Service) Logout(ctx context.Context, claims *jwt.Claims) error {
	err := s.tokens.Revoke(ctx, claims)
	s.record(ctx, audit.ActionLogout, err, audit.WithUser(claims.UserID()))
	return err
}

// Me returns the profile of the authenticated user.
func (s *Service) Me(ctx context.Context, id bson.ObjectID) (*Profile, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, u)
}

// Authenticate loads the user a verified token refers to.
func (s *Service) Authenticate(ctx context.Context, claims *jwt.Claims) (*User, error) {
	id, err := bson.ObjectIDFromHex(claims.UserID())
	if err != nil {
		return nil, ErrUnauthenticated
	}
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUnauthenticated
	}
	return u, err
}

// RegisterInput creates a tenant admin or teacher. A missing password is
// replaced by a generated one sent by email.
type RegisterInput struct {
	Name       string    `json:"name" validate:"required,min=2,max=100"`
	Email      string    `json:"email" validate:"required,email"`
	Password   string    `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
	Role       rbac.Role `json:"role" validate:"required,oneof=tenant_admin teacher"`
	Classrooms []string  `json:"classrooms,omitempty" validate:"omitempty,dive,objectid"`
}

// Registration is the outcome of Register.
type Registration struct {
	User      Profile `json:"user"`
	EmailSent bool    `json:"emailSent"`
}

// Register creates a staff account in tenantID. The quota counted is admin
// for tenant admins and teacher for teachers.
func (s *Service) Register(ctx context.Context, tenantID bson.ObjectID, in RegisterInput) (*Registration, error) {
	var res limits.Resource
	switch in.Role {
	case rbac.RoleTenantAdmin:
		res = limits.ResourceAdmin
	case rbac.RoleTeacher:
		res = limits.ResourceTeacher
	default:
		return nil, ErrInvalidRole
	}
	if tenantID.IsZero() {
		return nil, ErrTenantRequired
	}

	addr := sanitizer.NormalizeEmail(in.Email)
	switch _, err := s.repo.FindByEmail(ctx, addr); {
	case err == nil:
		return nil, ErrEmailAlreadyExists
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	classrooms, err := s.resolveClassrooms(ctx, tenantID, in.Classrooms)
	if err != nil {
		return nil, err
	}

	password := in.Password
	generated := password == ""
	if generated {
		if password, err = GeneratePassword(); err != nil {
			return nil, err
		}
	} else if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := hashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         sanitizer.SingleLine(in.Name),
		Email:        addr,
		PasswordHash: hash,
		Role:         in.Role,
		TenantID:     tenantID,
		Classrooms:   classrooms,
		CreatedAt:    s.now().UTC(),
	}
	insert := func(ctx context.Context) error { return s.repo.Insert(ctx, u) }
	if s.quota != nil {
		err = s.quota.Reserve(ctx, tenantID, res, insert)
	} else {
		err = insert(ctx)
	}
	if err != nil {
		return nil, err
	}

	profile, err := s.profile(ctx, u)
	if err != nil {
		return nil, err
	}
	out := &Registration{User: *profile}
	if generated {
		out.EmailSent = s.sendWelcome(ctx, u, profile.TenantName, password) == nil
	}
	s.logger.InfoContext(ctx, "admin user registered",
		logger.UserID(u.ID.Hex()),
		logger.TenantID(tenantID.Hex()),
		logger.Role(u.Role.String()),
		slog.Bool("email_sent", out.EmailSent))
	s.record(ctx, audit.ActionRegister, nil,
		audit.WithTenant(tenantID.Hex()),
		audit.WithResource("user", u.ID.Hex()),
		audit.WithMetadata("role", u.Role.String()))
	return out, nil
}

// ResetPassword emails a new password to the user and stores it only after
// the email was accepted.
func (s *Service) ResetPassword(ctx context.Context, emailAddr string) error {
	u, err := s.repo.FindByEmail(ctx, sanitizer.NormalizeEmail(emailAddr))
	if err != nil {
		return err
	}
	password, err := GeneratePassword()
	if err != nil {
		return err
	}
	if s.mailer == nil {
		return ErrEmailDelivery
	}

	schoolName := s.schoolName(ctx, u)
	if err := s.mailer.SendPasswordReset(ctx, email.PasswordResetData{
		To:          u.Email,
		UserName:    u.Name,
		SchoolName:  schoolName,
		NewPassword: password,
		LoginURL:    s.loginURL,
	}); err != nil {
		s.logger.ErrorContext(ctx, "password reset email failed",
			logger.UserID(u.ID.Hex()),
			logger.Error(err))
		err = errors.Join(ErrEmailDelivery, err)
		s.record(ctx, audit.ActionPasswordReset, err, actor(u)...)
		return err
	}

	hash, err := hashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	err = s.repo.UpdatePassword(ctx, u.ID, hash)
	s.record(ctx, audit.ActionPasswordReset, err, actor(u)...)
	return err
}

// CreateSuperAdminInput describes a platform operator.
type CreateSuperAdminInput struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"required,min=2,max=100"`
	Password string `validate:"required,min=8,max=72"`
}

// CreateSuperAdmin creates a user with unrestricted access.
func (s *Service) CreateSuperAdmin(ctx context.Context, in CreateSuperAdminInput) (*User, error) {
	if len(in.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := hashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:         sanitizer.SingleLine(in.Name),
		Email:        sanitizer.NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         rbac.RoleSuperAdmin,
		Classrooms:   []bson.ObjectID{},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "super admin created", logger.UserID(u.ID.Hex()))
	s.record(ctx, audit.ActionSuperAdminCreated, nil, audit.WithResource("user", u.ID.Hex()))
	return u, nil
}

// actor names u as the acting user of an audit event.
func actor(u *User) []audit.EventOption {
	opts := []audit.EventOption{audit.WithUser(u.ID.Hex())}
	if !u.TenantID.IsZero() {
		opts = append(opts, audit.WithTenant(u.TenantID.Hex()))
	}
	return opts
}

// record writes an audit event when a trail is configured. Storage errors
// are logged, never returned.
func (s *Service) record(ctx context.Context, action string, err error, opts ...audit.EventOption) {
	if s.trail == nil {
		return
	}
	var werr error
	if err != nil {
		werr = s.trail.LogError(ctx, action, err, opts...)
	} else {
		werr = s.trail.Log(ctx, action, opts...)
	}
	if werr != nil {
		s.logger.WarnContext(ctx, "audit event not stored",
			logger.Event(action),
			logger.Error(werr))
	}
}

// Provisioned is the outcome of ProvisionTenantAdmin.
type Provisioned struct {
	User                  *User
	Created               bool
	EmailSent             bool
	PasswordResetRequired bool
}

// ProvisionTenantAdmin finds or creates the tenant_admin for emailAddr in
// the tenant. A new account gets a temporary password that is emailed; when
// the email fails the account is locked behind a password reset.
func (s *Service) ProvisionTenantAdmin(ctx context.Context, info *tenant.Info, emailAddr, name string) (*Provisioned, error) {
	addr := sanitizer.NormalizeEmail(emailAddr)
	existing, err := s.repo.FindByEmail(ctx, addr)
	switch {
	case err == nil && existing.TenantID == info.ID:
		return &Provisioned{User: existing}, nil
	case err == nil:
		return nil, ErrEmailAlreadyExists
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	password, err := GeneratePassword()
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "Administrador"
	}
	u := &User{
		Name:         sanitizer.SingleLine(name),
		Email:        addr,
		PasswordHash: hash,
		Role:         rbac.RoleTenantAdmin,
		TenantID:     info.ID,
		Classrooms:   []bson.ObjectID{},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			// concurrent delivery created it first
			if again, ferr := s.repo.FindByEmail(ctx, addr); ferr == nil && again.TenantID == info.ID {
				return &Provisioned{User: again}, nil
			}
		}
		return nil, err
	}

	out := &Provisioned{User: u, Created: true}
	if err := s.sendWelcome(ctx, u, info.Name, password); err == nil {
		out.EmailSent = true
		return out, nil
	}

	// The undelivered password may still sit in a mail queue; replace it
	// with one nobody knows. The admin recovers through reset-password.
	locked, err := GeneratePassword()
	if err != nil {
		return nil, err
	}
	if hash, err = hashPassword(locked, s.bcryptCost); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		return nil, err
	}
	out.PasswordResetRequired = true
	s.logger.WarnContext(ctx, "welcome email not delivered, password reset required",
		logger.UserID(u.ID.Hex()),
		logger.TenantID(info.ID.Hex()),
		slog.String("email", sanitizer.MaskEmail(addr)),
		slog.Bool("password_reset_required", true))
	return out, nil
}

// CountRole counts a tenant's users with role, for plan usage.
func (s *Service) CountRole(role rbac.Role) limits.Counter {
	return limits.CounterFunc(func(ctx context.Context, tenantID bson.ObjectID) (int64, error) {
		return s.repo.CountByRole(ctx, tenantID, role)
	})
}

func (s *Service) sendWelcome(ctx context.Context, u *User, schoolName, password string) error {
	if s.mailer == nil {
		return ErrEmailDelivery
	}
	err := s.mailer.SendWelcome(ctx, email.WelcomeData{
		To:                u.Email,
		UserName:          u.Name,
		SchoolName:        schoolName,
		TemporaryPassword: password,
		LoginURL:          s.loginURL,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "welcome email failed",
			logger.UserID(u.ID.Hex()),
			logger.Error(err))
		return errors.Join(ErrEmailDelivery, err)
	}
	return nil
}

func (s *Service) resolveClassrooms(ctx context.Context, tenantID bson.ObjectID, raw []string) ([]bson.ObjectID, error) {
	ids := make([]bson.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := bson.ObjectIDFromHex(r)
		if err != nil {
			return nil, ErrUnknownClassroom
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 || s.classrooms == nil {
		return ids, nil
	}
	ok, err := s.classrooms.ExistAll(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("check classrooms: %w", err)
	}
	if !ok {
		return nil, ErrUnknownClassroom
	}
	return ids, nil
}

func (s *Service) profile(ctx context.Context, u *User) (*Profile, error) {
	p := &Profile{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		TenantID: u.TenantID,
	}
	if u.TenantID.IsZero() {
		return p, nil
	}
	info, err := s.tenants.GetByID(ctx, u.TenantID)
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return p, nil
	case err != nil:
		return nil, err
	}
	p.TenantSubdomain = info.Subdomain
	p.TenantName = info.Name
	return p, nil
}

func (s *Service) schoolName(ctx context.Context, u *User) string {
	if u.TenantID.IsZero() {
		return "LevelEdu"
	}
	info, err := s.tenants.GetByID(ctx, u.TenantID)
	if err != nil {
		return "LevelEdu"
	}
	return info.Name
}
