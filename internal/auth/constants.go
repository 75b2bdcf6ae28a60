// Package auth implements opaque token authentication for the pantry API.
package auth

// =============================================================================
// Header Constants
// =============================================================================

const (
	// AuthorizationHeader carries "<scheme> <key>".
	AuthorizationHeader = "Authorization"

	// WWWAuthenticateHeader is sent with every 401 response.
	WWWAuthenticateHeader = "WWW-Authenticate"

	// SchemeToken is the primary scheme, "Authorization: Token <key>".
	SchemeToken = "Token"

	// SchemeBearer is accepted as an alias of SchemeToken.
	SchemeBearer = "Bearer"
)

