package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prn-tf/pantry/internal/auth"
	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/service"
)

// UserHandler serves registration, token issue and the caller's profile.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// userResponse is the public view of a user.
type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{Email: u.Email, Name: u.Name}
}

// RegisterRoutes registers the user routes. authenticate guards the
// profile endpoint.
func (h *UserHandler) RegisterRoutes(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Post("/create", h.handleCreate)
	r.Post("/token", h.handleToken)

	r.With(authenticate).Get("/me", h.handleGetMe)
	r.With(authenticate).Put("/me", h.handleUpdateMe(domain.UpdateFull))
	r.With(authenticate).Patch("/me", h.handleUpdateMe(domain.UpdatePartial))
}

func userInput(p payload, mode domain.UpdateMode, minPassword int) (domain.UserInput, error) {
	verr := &domain.ValidationError{}
	input := domain.UserInput{
		Email:    p.String("email", verr),
		Password: p.String("password", verr),
		Name:     p.String("name", verr),
	}
	if verr.Empty() {
		return input, nil
	}
	mergeMissing(verr, input.Validate(mode, minPassword))
	return input, verr
}

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	input, err := userInput(p, domain.UpdateFull, h.users.MinPasswordLength())
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (h *UserHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	verr := &domain.ValidationError{}
	input := service.IssueTokenInput{
		Email:    p.String("email", verr),
		Password: p.String("password", verr),
	}
	if err := verr.ErrOrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	token, err := h.users.IssueToken(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token.Key})
}

func (h *UserHandler) handleGetMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, auth.NewAuthError(auth.ErrMissingCredentials))
		return
	}

	user, err := h.users.GetProfile(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *UserHandler) handleUpdateMe(mode domain.UpdateMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.UserFromContext(r.Context())
		if !ok {
			writeError(w, r, auth.NewAuthError(auth.ErrMissingCredentials))
			return
		}

		p, err := decodePayload(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		input, err := userInput(p, mode, h.users.MinPasswordLength())
		if err != nil {
			writeError(w, r, err)
			return
		}

		user, err := h.users.UpdateProfile(r.Context(), caller, input, mode)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, newUserResponse(user))
	}
}
