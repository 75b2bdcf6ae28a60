package auth

import (
	"net/http"
	"strings"
)

// =============================================================================
// Authorization Header Parsing
// =============================================================================

// ParseAuthorization extracts the token key from an Authorization header
// value. A header with another scheme is treated as absent.
//
// Examples:
//
//	"Token 9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b" -> key
//	"Bearer 9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b" -> key
//	"Token"                                           -> ErrEmptyToken
//	"Basic dXNlcjpwYXNz"                              -> ErrMissingCredentials
func ParseAuthorization(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) == 0 || !isTokenScheme(parts[0]) {
		return "", ErrMissingCredentials
	}

	switch len(parts) {
	case 1:
		return "", ErrEmptyToken
	case 2:
		return parts[1], nil
	default:
		return "", ErrTokenHasSpaces
	}
}

// TokenFromRequest extracts the token key from r.
func TokenFromRequest(r *http.Request) (string, error) {
	return ParseAuthorization(r.Header.Get(AuthorizationHeader))
}

func isTokenScheme(s string) bool {
	return strings.EqualFold(s, SchemeToken) || strings.EqualFold(s, SchemeBearer)
}
