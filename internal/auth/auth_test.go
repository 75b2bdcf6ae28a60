package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/pantry/internal/domain"
)

type resolverFunc func(ctx context.Context, key string) (*domain.User, error)

func (f resolverFunc) ResolveToken(ctx context.Context, key string) (*domain.User, error) {
	return f(ctx, key)
}

func TestParseAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "token scheme", header: "Token abc123", want: "abc123"},
		{name: "bearer scheme", header: "Bearer abc123", want: "abc123"},
		{name: "lowercase scheme", header: "token abc123", want: "abc123"},
		{name: "empty", header: "", wantErr: ErrMissingCredentials},
		{name: "other scheme", header: "Basic dXNlcjpwYXNz", wantErr: ErrMissingCredentials},
		{name: "no key", header: "Token", wantErr: ErrEmptyToken},
		{name: "spaces", header: "Token abc 123", wantErr: ErrTokenHasSpaces},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAuthorization(tt.header)
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
	alice := &domain.User{ID: 1, Email: "alice@example.com", IsActive: true}

	resolver := resolverFunc(func(ctx context.Context, key string) (*domain.User, error) {
		switch key {
		case "good":
			return alice, nil
		case "inactive":
			return nil, domain.ErrUserInactive
		case "broken":
			return nil, errors.New("connection refused")
		default:
			return nil, domain.ErrTokenNotFound
		}
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, alice.ID, user.ID)
		w.WriteHeader(http.StatusNoContent)
	})

	handler := Middleware(resolver, zerolog.Nop())(next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantDetail string
	}{
		{name: "valid", header: "Token good", wantStatus: http.StatusNoContent},
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized, wantDetail: "Authentication credentials were not provided."},
		{name: "unknown", header: "Token nope", wantStatus: http.StatusUnauthorized, wantDetail: "Invalid token."},
		{name: "inactive", header: "Bearer inactive", wantStatus: http.StatusUnauthorized, wantDetail: "User inactive or deleted."},
		{name: "backend failure", header: "Token broken", wantStatus: http.StatusInternalServerError, wantDetail: "A server error occurred."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/recipe/tags", nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantDetail == "" {
				return
			}

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantDetail, body["detail"])
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "Token", rec.Header().Get(WWWAuthenticateHeader))
			}
		})
	}
}

func TestUserFromContext_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserFromContext(WithUser(context.Background(), nil))
	assert.False(t, ok)
}
