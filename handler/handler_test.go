package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/leveledu/handler"
	"github.com/dmitrymomot/leveledu/pkg/binder"
)

type createClassRequest struct {
	Name string `json:"name"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) handler.JSONResponse {
	t.Helper()
	var body handler.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("binds and renders", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(ctx handler.Context, req createClassRequest) handler.Response {
			return handler.JSON(map[string]string{"name": req.Name}, handler.WithJSONStatus(http.StatusCreated))
		}, handler.WithBinders[handler.Context, createClassRequest](binder.JSON()))

		r := httptest.NewRequest(http.MethodPost, "/admin/classes", strings.NewReader(`{"name":"5A"}`))
		r.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, map[string]any{"name": "5A"}, decode(t, rec).Data)
	})

	t.Run("binder error renders bad request", func(t *testing.T) {
		t.Parallel()
		called := false
		h := handler.Wrap(func(ctx handler.Context, req createClassRequest) handler.Response {
			called = true
			return handler.Empty()
		}, handler.WithBinders[handler.Context, createClassRequest](binder.JSON()))

		r := httptest.NewRequest(http.MethodPost, "/admin/classes", strings.NewReader(`{"name":`))
		r.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		assert.False(t, called)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "BAD_REQUEST", decode(t, rec).Error.Code)
	})

	t.Run("validation failure skips handler", func(t *testing.T) {
		t.Parallel()
		called := false
		validate := func(v any) error {
			if v.(*createClassRequest).Name == "" {
				verr := handler.NewValidationError()
				verr.Add("name", "is required")
				return verr
			}
			return nil
		}
		h := handler.Wrap(func(ctx handler.Context, req createClassRequest) handler.Response {
			called = true
			return handler.Empty()
		},
			handler.WithBinders[handler.Context, createClassRequest](binder.JSON()),
			handler.WithValidation[handler.Context, createClassRequest](validate),
		)

		r := httptest.NewRequest(http.MethodPost, "/admin/classes", strings.NewReader(`{}`))
		r.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		assert.False(t, called)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error.Code)
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		var got error
		h := handler.Wrap(func(ctx handler.Context, req struct{}) handler.Response { return nil },
			handler.WithErrorHandler[handler.Context, struct{}](func(ctx handler.Context, err error) { got = err }),
		)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, got, handler.ErrNilResponse)
	})

	t.Run("decorators run outermost first", func(t *testing.T) {
		t.Parallel()
		var order []string
		deco := func(name string) handler.Decorator[handler.Context, struct{}] {
			return func(next handler.HandlerFunc[handler.Context, struct{}]) handler.HandlerFunc[handler.Context, struct{}] {
				return func(ctx handler.Context, req struct{}) handler.Response {
					order = append(order, name)
					return next(ctx, req)
				}
			}
		}
		h := handler.Wrap(func(ctx handler.Context, req struct{}) handler.Response {
			order = append(order, "handler")
			return handler.Empty()
		}, handler.WithDecorators(deco("outer"), deco("inner")))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []string{"outer", "inner", "handler"}, order)
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "business error keeps code and data",
			err:     handler.NewHTTPError(http.StatusForbidden, "RESOURCE_LIMIT_EXCEEDED", "Plan limit reached").WithData(map[string]int{"current": 50, "limit": 50}),
			status:  http.StatusForbidden,
			code:    "RESOURCE_LIMIT_EXCEEDED",
			message: "Plan limit reached",
		},
		{
			name:    "wrapped http error",
			err:     errors.Join(errors.New("lookup"), handler.ErrNotFound),
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
			message: "Resource not found",
		},
		{
			name:    "unknown error is hidden",
			err:     errors.New("mongo: connection refused"),
			status:  http.StatusInternalServerError,
			code:    "INTERNAL_ERROR",
			message: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			require.NoError(t, handler.JSONError(tt.err).Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	ve := handler.NewValidationError()
	assert.NoError(t, ve.OrNil())

	ve.Add("subdomain", "must be 3 to 30 characters")
	ve.Add("name", "is required")
	assert.True(t, ve.Has("name"))
	assert.Equal(t, "validation failed: name: is required, subdomain: must be 3 to 30 characters", ve.Error())

	rec := httptest.NewRecorder()
	require.NoError(t, handler.JSONError(ve).Render(rec, httptest.NewRequest(http.MethodPost, "/", nil)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, map[string]any{
		"name":      []any{"is required"},
		"subdomain": []any{"must be 3 to 30 characters"},
	}, body.Error.Details)
}

func TestErrorResponder(t *testing.T) {
	t.Parallel()

	errQuota := errors.New("quota reached")
	responder := handler.NewErrorResponder(nil, func(err error) (handler.HTTPError, bool) {
		if errors.Is(err, errQuota) {
			return handler.NewHTTPError(http.StatusForbidden, "RESOURCE_LIMIT_EXCEEDED", "quota"), true
		}
		return handler.HTTPError{}, false
	})

	rec := httptest.NewRecorder()
	responder.Write(rec, httptest.NewRequest(http.MethodPost, "/admin/users", nil), errors.Join(errQuota, errors.New("ctx")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "RESOURCE_LIMIT_EXCEEDED", decode(t, rec).Error.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, responder.Response(errors.New("boom")).Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHTTPErrorIs(t *testing.T) {
	t.Parallel()
	err := handler.ErrNotFound.WithMessage("Student not found")
	assert.ErrorIs(t, err, handler.ErrNotFound)
	assert.NotErrorIs(t, err, handler.ErrForbidden)
}
