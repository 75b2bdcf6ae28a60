package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/pantry/internal/domain"
)

// TokenResolver maps a plain token key to its active owner.
//
// Implementations return domain.ErrTokenNotFound for unknown keys and
// domain.ErrUserInactive for deactivated owners.
type TokenResolver interface {
	ResolveToken(ctx context.Context, key string) (*domain.User, error)
}

// Middleware rejects requests without a valid token and stores the
// resolved user in the request context.
func Middleware(resolver TokenResolver, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := TokenFromRequest(r)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			user, err := resolver.ResolveToken(r.Context(), key)
			if err != nil {
				authErr := classify(err)
				if errors.Is(authErr, ErrServer) {
					logger.Error().Err(err).Str("path", r.URL.Path).Msg("failed to resolve token")
				} else {
					logger.Debug().Err(err).Str("path", r.URL.Path).Msg("token authentication failed")
				}
				writeAuthError(w, authErr)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrUserNotFound):
		return ErrInvalidToken
	case errors.Is(err, domain.ErrUserInactive):
		return ErrInactiveUser
	default:
		return ErrServer
	}
}

// writeAuthError writes a {"detail": "..."} response.
func writeAuthError(w http.ResponseWriter, err error) {
	authErr := NewAuthError(err)

	w.Header().Set("Content-Type", "application/json")
	if authErr.HTTPStatus == http.StatusUnauthorized {
		w.Header().Set(WWWAuthenticateHeader, SchemeToken)
	}
	w.WriteHeader(authErr.HTTPStatus)

	_ = json.NewEncoder(w).Encode(map[string]string{"detail": authErr.Error()})
}
