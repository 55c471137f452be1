// Package rest holds the plumbing shared by the API modules: typed handler
// wrapping, request binding, validation and error rendering.
package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/modules/apierr"
	"github.com/dmitrymomot/leveledu/pkg/binder"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
	"github.com/dmitrymomot/leveledu/pkg/validator"
)

// ErrInvalidID is returned for path identifiers that are not ObjectIDs.
var ErrInvalidID = handler.ErrBadRequest.WithMessage("Invalid id")

// Kit renders errors and validates requests for a module.
type Kit struct {
	Errors    *handler.ErrorResponder
	Validator *validator.Validator
}

// NewKit builds a Kit that maps domain errors with apierr.
func NewKit(log *slog.Logger) Kit {
	return Kit{Errors: apierr.NewResponder(log), Validator: validator.New()}
}

// Fail renders err through the kit's responder.
func (k Kit) Fail(err error) handler.Response {
	return k.Errors.Response(err)
}

// Write is the error callback for plain middleware.
func (k Kit) Write(w http.ResponseWriter, r *http.Request, err error) {
	k.Errors.Write(w, r, err)
}

// Handle wraps a typed handler. R is bound from the JSON body, chi path
// parameters and the query string, then validated.
func Handle[R any](k Kit, h handler.HandlerFunc[handler.Context, R]) http.HandlerFunc {
	return handler.Wrap(h,
		handler.WithBinders[handler.Context, R](binder.JSON(), binder.Path(chi.URLParam), binder.Query()),
		handler.WithValidation[handler.Context, R](k.Validator.Validate),
		handler.WithErrorHandler[handler.Context, R](k.Errors.Handle),
	)
}

// OK renders v as data with status 200.
func OK(v any) handler.Response { return handler.JSON(v) }

// Created renders v as data with status 201.
func Created(v any) handler.Response {
	return handler.JSON(v, handler.WithJSONStatus(http.StatusCreated))
}

// Message renders {"data":{"message":msg}}.
func Message(msg string) handler.Response {
	return handler.JSON(map[string]string{"message": msg})
}

// ID parses the named chi path parameter as an ObjectID.
func ID(ctx handler.Context, key string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(chi.URLParam(ctx.Request(), key))
	if err != nil {
		return bson.ObjectID{}, ErrInvalidID
	}
	return id, nil
}

// TenantID returns the tenant the request writes to.
func TenantID(ctx handler.Context) (bson.ObjectID, error) {
	scope, err := tenant.ScopeFrom(ctx)
	if err != nil {
		return bson.ObjectID{}, err
	}
	return scope.Tenant()
}

// Empty is the request type of handlers without input.
type Empty struct{}
