package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/service"
)

// AttributeHandler serves the tag or ingredient catalog of the caller.
type AttributeHandler struct {
	attrs *service.AttributeService
}

// NewAttributeHandler creates a handler for the catalog served by attrs.
func NewAttributeHandler(attrs *service.AttributeService) *AttributeHandler {
	return &AttributeHandler{attrs: attrs}
}

type attributeResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newAttributeResponse(a domain.Attribute) attributeResponse {
	return attributeResponse{ID: a.ID, Name: a.Name}
}

// RegisterRoutes registers list and create on r.
func (h *AttributeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
}

func (h *AttributeHandler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	attrs, err := h.attrs.List(r.Context(), scope, parseFlag(r.URL.Query().Get("assigned_only")))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]attributeResponse, 0, len(attrs))
	for _, a := range attrs {
		resp = append(resp, newAttributeResponse(*a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AttributeHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	p, err := decodePayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	verr := &domain.ValidationError{}
	name := p.String("name", verr)
	if err := verr.ErrOrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	attr, err := h.attrs.Create(r.Context(), scope, name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAttributeResponse(*attr))
}
