package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/prn-tf/pantry/internal/auth"
	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/service"
)

// Client-facing detail messages.
const (
	msgNotFound         = "Not found."
	msgMethodNotAllowed = "Method \"%s\" not allowed."
	msgTooLarge         = "Request body too large."
	msgServerError      = "A server error occurred."
	msgUnsupportedMedia = "Unsupported media type \"%s\" in request."
	msgNotAFile         = "The submitted data was not a file. Check the encoding type on the form."
	msgInvalidDict      = "Invalid data. Expected a dictionary, but got %s."
	msgMaxValue         = "Ensure this value is less than or equal to %d."
)

// detailResponse is the body of every non-validation error.
type detailResponse struct {
	Detail string `json:"detail"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes {"detail": message}.
func writeDetail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, detailResponse{Detail: message})
}

// writeError maps err to an HTTP response. Unexpected errors are logged
// with the request logger and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *domain.ValidationError
		parseErr *parseError
		mediaErr *unsupportedMediaError
		maxErr   *http.MaxBytesError
		authErr  *auth.AuthError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr.Fields)
		return

	case errors.As(err, &parseErr):
		writeDetail(w, http.StatusBadRequest, parseErr.Error())
		return

	case errors.As(err, &mediaErr):
		writeDetail(w, http.StatusUnsupportedMediaType, fmt.Sprintf(msgUnsupportedMedia, mediaErr.mediaType))
		return

	case errors.As(err, &maxErr), errors.Is(err, service.ErrImageTooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return

	case errors.As(err, &authErr):
		if authErr.HTTPStatus == http.StatusUnauthorized {
			w.Header().Set(auth.WWWAuthenticateHeader, auth.SchemeToken)
		}
		writeDetail(w, authErr.HTTPStatus, authErr.Error())
		return

	case errors.Is(err, service.ErrRecipeNotFound), errors.Is(err, service.ErrUserNotFound):
		writeDetail(w, http.StatusNotFound, msgNotFound)
		return
	}

	hlog.FromRequest(r).Error().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeDetail(w, http.StatusInternalServerError, msgServerError)
}

// notFound answers unknown routes.
func notFound(w http.ResponseWriter, _ *http.Request) {
	writeDetail(w, http.StatusNotFound, msgNotFound)
}

// methodNotAllowed answers known routes hit with an unsupported verb.
func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusMethodNotAllowed, fmt.Sprintf(msgMethodNotAllowed, r.Method))
}
