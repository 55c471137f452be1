package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/leveledu/pkg/jwt"
)

func TestBearerTokenExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"valid", "Bearer abc", "abc", nil},
		{"lowercase scheme", "bearer abc", "abc", nil},
		{"missing", "", "", jwt.ErrMissingToken},
		{"wrong scheme", "Basic abc", "", jwt.ErrInvalidToken},
		{"no token", "Bearer ", "", jwt.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := jwt.BearerTokenExtractor(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	token, _, err := svc.Issue("user-1", "tenant-1", "teacher")
	require.NoError(t, err)

	var seen *jwt.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = jwt.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		jwt.Middleware(svc)(next).ServeHTTP(rec, r)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "user-1", seen.Subject)
	})

	t.Run("missing token", func(t *testing.T) {
		var gotErr error
		mw := jwt.Middleware(svc, jwt.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			gotErr = err
			w.WriteHeader(http.StatusUnauthorized)
		}))
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.ErrorIs(t, gotErr, jwt.ErrMissingToken)
	})
}
