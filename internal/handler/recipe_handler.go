package handler

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/metrics"
	"github.com/prn-tf/pantry/internal/service"
)

// imageField is the multipart field carrying an uploaded recipe image.
const imageField = "image"

// RecipeHandler serves the caller's recipes.
type RecipeHandler struct {
	recipes *service.RecipeService
	metrics *metrics.Metrics
}

// NewRecipeHandler creates a new RecipeHandler. m may be nil.
func NewRecipeHandler(recipes *service.RecipeService, m *metrics.Metrics) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, metrics: m}
}

// recipeResponse is the list and write view of a recipe: links are IDs.
type recipeResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Ingredients []int64 `json:"ingredients"`
	Tags        []int64 `json:"tags"`
	TimeMinutes int     `json:"time_minutes"`
	Price       string  `json:"price"`
	Link        string  `json:"link"`
	Image       *string `json:"image"`
}

// recipeDetailResponse is the retrieve view: links are nested objects.
type recipeDetailResponse struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	Ingredients []attributeResponse `json:"ingredients"`
	Tags        []attributeResponse `json:"tags"`
	TimeMinutes int                 `json:"time_minutes"`
	Price       string              `json:"price"`
	Link        string              `json:"link"`
	Image       *string             `json:"image"`
}

type recipeImageResponse struct {
	ID    int64   `json:"id"`
	Image *string `json:"image"`
}

// RegisterRoutes registers the recipe routes on r.
func (h *RecipeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Put("/", h.handleUpdate(domain.UpdateFull))
		r.Patch("/", h.handleUpdate(domain.UpdatePartial))
		r.Delete("/", h.handleDelete)
		r.Post("/upload-image", h.handleUploadImage)
	})
}

func (h *RecipeHandler) newResponse(r *http.Request, recipe *domain.Recipe) recipeResponse {
	return recipeResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		Ingredients: recipe.IngredientIDs(),
		Tags:        recipe.TagIDs(),
		TimeMinutes: recipe.TimeMinutes,
		Price:       recipe.Price.StringFixed(domain.PriceDecimalPlaces),
		Link:        recipe.Link,
		Image:       h.imageURL(r, recipe),
	}
}

func (h *RecipeHandler) newDetailResponse(r *http.Request, recipe *domain.Recipe) recipeDetailResponse {
	return recipeDetailResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		Ingredients: attributeResponses(recipe.Ingredients),
		Tags:        attributeResponses(recipe.Tags),
		TimeMinutes: recipe.TimeMinutes,
		Price:       recipe.Price.StringFixed(domain.PriceDecimalPlaces),
		Link:        recipe.Link,
		Image:       h.imageURL(r, recipe),
	}
}

func attributeResponses(attrs []domain.Attribute) []attributeResponse {
	resp := make([]attributeResponse, 0, len(attrs))
	for _, a := range attrs {
		resp = append(resp, newAttributeResponse(a))
	}
	return resp
}

// imageURL returns the absolute URL of the recipe image, or nil.
func (h *RecipeHandler) imageURL(r *http.Request, recipe *domain.Recipe) *string {
	if !recipe.HasImage() {
		return nil
	}
	u := absoluteURL(r, h.recipes.ImageURL(recipe.Image))
	return &u
}

// absoluteURL prefixes a host-relative URL with the request's scheme and host.
func absoluteURL(r *http.Request, u string) string {
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") {
		return u
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + u
}

// recipeID parses the {id} URL parameter. A malformed ID is reported as
// not found.
func recipeID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.ErrRecipeNotFound
	}
	return id, nil
}

func recipeInput(p payload, mode domain.UpdateMode) (domain.RecipeInput, error) {
	verr := &domain.ValidationError{}
	input := domain.RecipeInput{
		Title:         p.String("title", verr),
		TimeMinutes:   p.Int("time_minutes", verr),
		Price:         p.Decimal("price", verr),
		Link:          p.String("link", verr),
		TagIDs:        p.IDs("tags", verr),
		IngredientIDs: p.IDs("ingredients", verr),
	}
	if verr.Empty() {
		return input, nil
	}
	mergeMissing(verr, input.Validate(mode))
	return input, verr
}

func (h *RecipeHandler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	tagIDs, err := parseIDList("tags", query.Get("tags"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ingredientIDs, err := parseIDList("ingredients", query.Get("ingredients"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	recipes, err := h.recipes.List(r.Context(), scope, domain.RecipeFilter{
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]recipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		resp = append(resp, h.newResponse(r, recipe))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RecipeHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	p, err := decodePayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	input, err := recipeInput(p, domain.UpdateFull)
	if err != nil {
		writeError(w, r, err)
		return
	}

	recipe, err := h.recipes.Create(r.Context(), scope, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.newResponse(r, recipe))
}

func (h *RecipeHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	id, err := recipeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	recipe, err := h.recipes.Get(r.Context(), scope, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.newDetailResponse(r, recipe))
}

func (h *RecipeHandler) handleUpdate(mode domain.UpdateMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := scopeFromRequest(w, r)
		if !ok {
			return
		}

		id, err := recipeID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		p, err := decodePayload(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		input, err := recipeInput(p, mode)
		if err != nil {
			writeError(w, r, err)
			return
		}

		recipe, err := h.recipes.Update(r.Context(), scope, id, input, mode)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, h.newResponse(r, recipe))
	}
}

func (h *RecipeHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	id, err := recipeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.recipes.Delete(r.Context(), scope, id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RecipeHandler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	id, err := recipeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		writeError(w, r, domain.NewValidationError(imageField, domain.MsgNoFile))
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) && h.metrics != nil {
			h.metrics.RecordImageUploadFailure(metrics.ReasonTooLarge)
		}
		writeError(w, r, formError("Multipart form", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(imageField)
	if err != nil {
		msg := domain.MsgNoFile
		if _, sent := r.MultipartForm.Value[imageField]; sent {
			msg = msgNotAFile
		}
		writeError(w, r, domain.NewValidationError(imageField, msg))
		return
	}
	defer file.Close()

	recipe, err := h.recipes.AttachImage(r.Context(), scope, id, service.ImageUpload{
		Filename: header.Filename,
		Reader:   file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recipeImageResponse{
		ID:    recipe.ID,
		Image: h.imageURL(r, recipe),
	})
}
