package admin

import (
	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/rest"
	"github.com/dmitrymomot/leveledu/pkg/jwt"
	"github.com/dmitrymomot/leveledu/svc/auth"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (a *api) login(ctx handler.Context, req loginRequest) handler.Response {
	session, err := a.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(session)
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (a *api) resetPassword(ctx handler.Context, req resetRequest) handler.Response {
	if err := a.auth.ResetPassword(ctx, req.Email); err != nil {
		return a.kit.Fail(err)
	}
	return rest.Message("A new password was sent to your email")
}

func (a *api) logout(ctx handler.Context, _ rest.Empty) handler.Response {
	claims, ok := jwt.ClaimsFromContext(ctx)
	if !ok {
		return a.kit.Fail(jwt.ErrMissingToken)
	}
	if err := a.auth.Logout(ctx, claims); err != nil {
		return a.kit.Fail(err)
	}
	return rest.Message("Logged out")
}

func (a *api) me(ctx handler.Context, _ rest.Empty) handler.Response {
	user := auth.GetUserFromContext(ctx)
	if user == nil {
		return a.kit.Fail(auth.ErrUnauthenticated)
	}
	profile, err := a.auth.Me(ctx, user.ID)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.OK(profile)
}

func (a *api) register(ctx handler.Context, req auth.RegisterInput) handler.Response {
	tenantID, err := rest.TenantID(ctx)
	if err != nil {
		return a.kit.Fail(err)
	}
	reg, err := a.auth.Register(ctx, tenantID, req)
	if err != nil {
		return a.kit.Fail(err)
	}
	return rest.Created(reg)
}
