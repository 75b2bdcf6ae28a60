package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/pantry/internal/config"
	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/metrics"
	"github.com/prn-tf/pantry/internal/repository/store"
	"github.com/prn-tf/pantry/internal/service"
	"github.com/prn-tf/pantry/internal/storage"
	"github.com/prn-tf/pantry/internal/storage/filesystem"
)

const (
	testHost     = "http://example.com"
	testPassword = "testpass123"
)

type testAPI struct {
	handler http.Handler
	metrics *metrics.Metrics
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	repos, err := store.Open(ctx, &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"},
		Auth:     config.AuthConfig{TokenStore: config.TokenStoreDatabase},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	backend, err := filesystem.New(filesystem.Config{DataDir: t.TempDir(), MediaURL: "/media/"}, logger)
	require.NoError(t, err)

	m := metrics.New("pantry_test")

	users := service.NewUserService(repos.Users, repos.Tokens, service.UserServiceConfig{
		BcryptCost:        bcrypt.MinCost,
		MinPasswordLength: 5,
	}, m, logger)
	tags := service.NewAttributeService(repos.Attributes(domain.KindTag), logger)
	ingredients := service.NewAttributeService(repos.Attributes(domain.KindIngredient), logger)
	recipes := service.NewRecipeService(repos.Recipes, tags, ingredients, backend, service.RecipeServiceConfig{
		Keys:           storage.DefaultKeyConfig(),
		MaxUploadSize:  1 << 20,
		MaxImagePixels: storage.DefaultMaxImagePixels,
	}, m, logger)

	router := NewRouter(RouterConfig{
		UserService:       users,
		TagService:        tags,
		IngredientService: ingredients,
		RecipeService:     recipes,
		Database:          repos.Database,
		Media:             backend,
		MediaPath:         "/media/",
		Metrics:           m,
		CORS:              config.CORSConfig{AllowedOrigins: []string{"*"}, MaxAge: 300},
		MaxBodySize:       1 << 20,
		MaxUploadSize:     1 << 20,
		Logger:            logger,
	})

	return &testAPI{handler: router.Handler(), metrics: m}
}

// do sends body as JSON unless it is an io.Reader, which is sent as is.
func (a *testAPI) do(t *testing.T, method, path, token string, body any, contentType ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, testHost+path, reader)
	switch {
	case len(contentType) > 0:
		req.Header.Set("Content-Type", contentType[0])
	case body != nil:
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// login registers email and returns a fresh token for it.
func (a *testAPI) login(t *testing.T, email string) string {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/user/create/", "", map[string]any{
		"email": email, "password": testPassword, "name": "Test",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/user/token/", "", map[string]any{
		"email": email, "password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[tokenResponse](t, rec).Token
}

func (a *testAPI) createAttr(t *testing.T, token, kind, name string) attributeResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/recipe/"+kind+"/", token, map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[attributeResponse](t, rec)
}

func (a *testAPI) createRecipe(t *testing.T, token string, fields map[string]any) recipeResponse {
	t.Helper()
	payload := map[string]any{"title": "Sample recipe", "time_minutes": 10, "price": "5.00"}
	for k, v := range fields {
		payload[k] = v
	}
	rec := a.do(t, http.MethodPost, "/api/recipe/recipes/", token, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[recipeResponse](t, rec)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename == "" {
		require.NoError(t, w.WriteField(field, string(content)))
	} else {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// =============================================================================
// Health
// =============================================================================

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	assert.Equal(t, float64(1), testutil.ToFloat64(
		api.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200")))
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not found."}`, rec.Body.String())
}

// =============================================================================
// Users
// =============================================================================

func TestCreateUser(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/user/create/", "", map[string]any{
		"email": "test@example.com", "password": testPassword, "name": "Test name",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"email":"test@example.com","name":"Test name"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestCreateUser_PluralAlias(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/users", "", map[string]any{
		"email": "alias@example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"email":"alias@example.com","name":""}`, rec.Body.String())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	api := newTestAPI(t)
	api.login(t, "dup@example.com")

	rec := api.do(t, http.MethodPost, "/api/user/create/", "", map[string]any{
		"email": "dup@EXAMPLE.COM", "password": testPassword,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{domain.MsgEmailTaken}, body["email"])
}

func TestCreateUser_Validation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name    string
		payload map[string]any
		field   string
		message string
	}{
		{"empty email", map[string]any{"email": "", "password": testPassword}, "email", domain.MsgBlank},
		{"null email", map[string]any{"email": nil, "password": testPassword}, "email", domain.MsgNull},
		{"missing email", map[string]any{"password": testPassword}, "email", domain.MsgRequired},
		{"malformed email", map[string]any{"email": "not-an-email", "password": testPassword}, "email", domain.MsgInvalidEmail},
		{"short password", map[string]any{"email": "short@example.com", "password": "pw"}, "password", fmt.Sprintf(domain.MsgMinLength, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/user/create/", "", tt.payload)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decodeBody[map[string][]string](t, rec)
			assert.Contains(t, body[tt.field], tt.message)
		})
	}

	rec := api.do(t, http.MethodPost, "/api/user/token/", "", map[string]any{
		"email": "short@example.com", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "user with a short password must not exist")
}

func TestCreateUser_MalformedJSON(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/user/create/", "", strings.NewReader(`{"email":`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(decodeBody[detailResponse](t, rec).Detail, "JSON parse error - "))

	rec = api.do(t, http.MethodPost, "/api/user/create/", "", strings.NewReader(`["a"]`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{fmt.Sprintf(msgInvalidDict, "array")}, body[domain.NonFieldErrors])

	rec = api.do(t, http.MethodPost, "/api/user/create/", "", strings.NewReader(`email=x`), "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCreateUser_FormEncoded(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/user/create/", "",
		strings.NewReader("email=form%40example.com&password="+testPassword+"&name=Form"),
		"application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"email":"form@example.com","name":"Form"}`, rec.Body.String())
}

func TestCreateUser_LongPassword(t *testing.T) {
	api := newTestAPI(t)
	password := strings.Repeat("a", 80)

	rec := api.do(t, http.MethodPost, "/api/user/create/", "", map[string]any{
		"email": "long@example.com", "password": password, "name": "Long",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		name     string
		password string
		want     int
	}{
		{"full password", password, http.StatusOK},
		{"first 72 bytes only", password[:72], http.StatusBadRequest},
		{"different tail", password[:79] + "b", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/user/token/", "", map[string]any{
				"email": "long@example.com", "password": tt.password,
			})
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	t.Run("update to another long password", func(t *testing.T) {
		token := decodeBody[tokenResponse](t, api.do(t, http.MethodPost, "/api/user/token/", "", map[string]any{
			"email": "long@example.com", "password": password,
		})).Token

		changed := strings.Repeat("b", 80)
		rec := api.do(t, http.MethodPatch, "/api/user/me/", token, map[string]any{"password": changed})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = api.do(t, http.MethodPost, "/api/user/token/", "", map[string]any{
			"email": "long@example.com", "password": changed,
		})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func TestToken(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "token@example.com")
	assert.Len(t, token, 40)

	t.Run("reissue rotates", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/user/token/", "", map[string]any{
			"email": "token@example.com", "password": testPassword,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		fresh := decodeBody[tokenResponse](t, rec).Token
		assert.NotEqual(t, token, fresh)

		assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodGet, "/api/user/me/", token, nil).Code)
		assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/user/me/", fresh, nil).Code)
	})

	t.Run("bad credentials", func(t *testing.T) {
		for _, payload := range []map[string]any{
			{"email": "token@example.com", "password": "wrong"},
			{"email": "nobody@example.com", "password": testPassword},
		} {
			rec := api.do(t, http.MethodPost, "/api/user/token/", "", payload)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody[map[string][]string](t, rec)
			assert.Equal(t, []string{domain.MsgBadCredentials}, body[domain.NonFieldErrors])
			assert.NotContains(t, rec.Body.String(), "token\"")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/user/token/", "", map[string]any{"email": "token@example.com", "password": ""})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[map[string][]string](t, rec)
		assert.Equal(t, []string{domain.MsgBlank}, body["password"])
	})
}

func TestMe(t *testing.T) {
	api := newTestAPI(t)

	t.Run("unauthenticated", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/user/me/", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Token", rec.Header().Get("WWW-Authenticate"))
		assert.JSONEq(t, `{"detail":"Authentication credentials were not provided."}`, rec.Body.String())

		rec = api.do(t, http.MethodGet, "/api/user/me/", strings.Repeat("a", 40), nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"detail":"Invalid token."}`, rec.Body.String())
	})

	token := api.login(t, "me@example.com")

	t.Run("profile", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/user/me/", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"email":"me@example.com","name":"Test"}`, rec.Body.String())
	})

	t.Run("bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, testHost+"/api/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("post not allowed", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/user/me/", token, map[string]any{})
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.JSONEq(t, `{"detail":"Method \"POST\" not allowed."}`, rec.Body.String())
	})

	t.Run("partial update", func(t *testing.T) {
		rec := api.do(t, http.MethodPatch, "/api/user/me/", token, map[string]any{
			"name": "New name", "password": "newpassword123",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"email":"me@example.com","name":"New name"}`, rec.Body.String())

		rec = api.do(t, http.MethodPost, "/api/user/token/", "", map[string]any{
			"email": "me@example.com", "password": "newpassword123",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("short password rejected", func(t *testing.T) {
		rec := api.do(t, http.MethodPatch, "/api/user/me/", token, map[string]any{"password": "abc"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[map[string][]string](t, rec)
		assert.Equal(t, []string{fmt.Sprintf(domain.MsgMinLength, 5)}, body["password"])
	})

	t.Run("full update requires password", func(t *testing.T) {
		rec := api.do(t, http.MethodPut, "/api/user/me/", token, map[string]any{"email": "me@example.com"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[map[string][]string](t, rec)
		assert.Equal(t, []string{domain.MsgRequired}, body["password"])
	})
}

// =============================================================================
// Tags and ingredients
// =============================================================================

func TestAttributes(t *testing.T) {
	for _, kind := range []string{"tags", "ingredients"} {
		t.Run(kind, func(t *testing.T) {
			api := newTestAPI(t)

			rec := api.do(t, http.MethodGet, "/api/recipe/"+kind+"/", "", nil)
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			u1 := api.login(t, "one@example.com")
			u2 := api.login(t, "two@example.com")

			api.createAttr(t, u1, kind, "Salt")
			api.createAttr(t, u1, kind, "Kale")
			api.createAttr(t, u2, kind, "Other")

			rec = api.do(t, http.MethodGet, "/api/recipe/"+kind+"/", u1, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			list := decodeBody[[]attributeResponse](t, rec)
			require.Len(t, list, 2)
			assert.Equal(t, "Salt", list[0].Name)
			assert.Equal(t, "Kale", list[1].Name)

			rec = api.do(t, http.MethodPost, "/api/recipe/"+kind+"/", u1, map[string]any{"name": ""})
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody[map[string][]string](t, rec)
			assert.Equal(t, []string{domain.MsgBlank}, body["name"])

			rec = api.do(t, http.MethodDelete, "/api/recipe/"+kind+"/", u1, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestAttributes_AssignedOnly(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "assigned@example.com")

	eggs := api.createAttr(t, token, "ingredients", "Eggs")
	api.createAttr(t, token, "ingredients", "Cheese")
	breakfast := api.createAttr(t, token, "tags", "Breakfast")
	api.createAttr(t, token, "tags", "Lunch")

	api.createRecipe(t, token, map[string]any{
		"title": "Eggs benedict", "ingredients": []int64{eggs.ID}, "tags": []int64{breakfast.ID},
	})
	api.createRecipe(t, token, map[string]any{
		"title": "Coriander eggs", "ingredients": []int64{eggs.ID}, "tags": []int64{breakfast.ID},
	})

	for kind, want := range map[string]string{"ingredients": "Eggs", "tags": "Breakfast"} {
		rec := api.do(t, http.MethodGet, "/api/recipe/"+kind+"/?assigned_only=1", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decodeBody[[]attributeResponse](t, rec)
		require.Len(t, list, 1, "assigned attributes must be distinct")
		assert.Equal(t, want, list[0].Name)

		rec = api.do(t, http.MethodGet, "/api/recipe/"+kind+"/?assigned_only=0", token, nil)
		assert.Len(t, decodeBody[[]attributeResponse](t, rec), 2)
	}
}

// =============================================================================
// Recipes
// =============================================================================

func TestRecipes_OwnerScoping(t *testing.T) {
	api := newTestAPI(t)
	u1 := api.login(t, "u1@example.com")
	u2 := api.login(t, "u2@example.com")

	created := api.createRecipe(t, u1, map[string]any{"title": "Borscht", "time_minutes": 5, "price": 25})
	assert.Equal(t, "25.00", created.Price)
	assert.Nil(t, created.Image)

	rec := api.do(t, http.MethodGet, "/api/recipe/recipes/", u1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]recipeResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Borscht", list[0].Title)

	rec = api.do(t, http.MethodGet, "/api/recipe/recipes/", u2, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	path := fmt.Sprintf("/api/recipe/recipes/%d/", created.ID)
	missing := "/api/recipe/recipes/999999/"
	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete} {
		foreign := api.do(t, method, path, u2, map[string]any{"title": "Stolen"})
		absent := api.do(t, method, missing, u1, map[string]any{"title": "Stolen"})
		assert.Equal(t, http.StatusNotFound, foreign.Code, method)
		assert.Equal(t, absent.Code, foreign.Code, method)
		assert.Equal(t, absent.Body.String(), foreign.Body.String(), method)
	}

	rec = api.do(t, http.MethodGet, "/api/recipe/recipes/abc/", u1, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, path, u1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Borscht", decodeBody[recipeDetailResponse](t, rec).Title)
}

func TestRecipes_DetailNestsTags(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "detail@example.com")

	vegan := api.createAttr(t, token, "tags", "Vegan")
	spicy := api.createAttr(t, token, "tags", "Spicy")
	salt := api.createAttr(t, token, "ingredients", "Salt")

	created := api.createRecipe(t, token, map[string]any{
		"title":       "Avocado lime cheesecake",
		"tags":        []int64{vegan.ID, spicy.ID},
		"ingredients": []int64{salt.ID},
		"link":        "https://example.com/cheesecake",
	})
	assert.Equal(t, []int64{vegan.ID, spicy.ID}, created.Tags)
	assert.Equal(t, []int64{salt.ID}, created.Ingredients)

	rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/recipe/recipes/%d/", created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[recipeDetailResponse](t, rec)
	assert.Equal(t, []attributeResponse{{ID: vegan.ID, Name: "Vegan"}, {ID: spicy.ID, Name: "Spicy"}}, detail.Tags)
	assert.Equal(t, []attributeResponse{{ID: salt.ID, Name: "Salt"}}, detail.Ingredients)
	assert.Equal(t, "https://example.com/cheesecake", detail.Link)
}

func TestRecipes_CreateValidation(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "invalid@example.com")
	other := api.login(t, "other@example.com")
	foreign := api.createAttr(t, other, "tags", "Foreign")

	rec := api.do(t, http.MethodPost, "/api/recipe/recipes/", token, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string][]string](t, rec)
	for _, field := range []string{"title", "time_minutes", "price"} {
		assert.Equal(t, []string{domain.MsgRequired}, body[field], field)
	}

	rec = api.do(t, http.MethodPost, "/api/recipe/recipes/", token, map[string]any{
		"title": "Soup", "time_minutes": "ten", "price": "cheap",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{domain.MsgInvalidInteger}, body["time_minutes"])
	assert.Equal(t, []string{domain.MsgInvalidNumber}, body["price"])

	rec = api.do(t, http.MethodPost, "/api/recipe/recipes/", token, map[string]any{
		"title": "Soup", "time_minutes": 5, "price": "5.00", "tags": []int64{foreign.ID},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{fmt.Sprintf(domain.MsgInvalidPK, foreign.ID)}, body["tags"])

	rec = api.do(t, http.MethodPost, "/api/recipe/recipes/", token, map[string]any{
		"title": "Soup", "time_minutes": 5, "price": "5.00", "tags": "1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{fmt.Sprintf(domain.MsgInvalidList, "string")}, body["tags"])

	rec = api.do(t, http.MethodPost, "/api/recipe/recipes/", token, map[string]any{
		"title": "Soup", "time_minutes": 5, "price": "1234.5",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeBody[map[string][]string](t, rec)
	assert.NotEmpty(t, body["price"])

	rec = api.do(t, http.MethodGet, "/api/recipe/recipes/", token, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRecipes_PartialAndFullUpdate(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "update@example.com")

	curry := api.createAttr(t, token, "tags", "Curry")
	created := api.createRecipe(t, token, map[string]any{
		"title": "Chicken tikka", "tags": []int64{curry.ID}, "link": "https://example.com/tikka",
	})
	path := fmt.Sprintf("/api/recipe/recipes/%d/", created.ID)

	spicy := api.createAttr(t, token, "tags", "Spicy")
	rec := api.do(t, http.MethodPatch, path, token, map[string]any{"title": "Chicken tikka masala"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decodeBody[recipeResponse](t, rec)
	assert.Equal(t, "Chicken tikka masala", patched.Title)
	assert.Equal(t, []int64{curry.ID}, patched.Tags, "partial update keeps omitted tags")
	assert.Equal(t, "https://example.com/tikka", patched.Link)

	rec = api.do(t, http.MethodPatch, path, token, map[string]any{"tags": []int64{spicy.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{spicy.ID}, decodeBody[recipeResponse](t, rec).Tags)

	rec = api.do(t, http.MethodPut, path, token, map[string]any{
		"title": "Spaghetti carbonara", "time_minutes": 25, "price": "5.00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	full := decodeBody[recipeResponse](t, rec)
	assert.Equal(t, "Spaghetti carbonara", full.Title)
	assert.Equal(t, 25, full.TimeMinutes)
	assert.Equal(t, "5.00", full.Price)
	assert.Empty(t, full.Tags, "full update clears omitted tags")
	assert.Empty(t, full.Link)

	rec = api.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[recipeDetailResponse](t, rec).Tags)

	rec = api.do(t, http.MethodPut, path, token, map[string]any{"title": "Incomplete"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{domain.MsgRequired}, body["price"])
}

func TestRecipes_Filter(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "filter@example.com")

	vegan := api.createAttr(t, token, "tags", "Vegan")
	vegetarian := api.createAttr(t, token, "tags", "Vegetarian")
	feta := api.createAttr(t, token, "ingredients", "Feta cheese")

	r1 := api.createRecipe(t, token, map[string]any{"title": "Thai vegetable curry", "tags": []int64{vegan.ID}})
	r2 := api.createRecipe(t, token, map[string]any{
		"title": "Aubergine with tahini", "tags": []int64{vegetarian.ID}, "ingredients": []int64{feta.ID},
	})
	r3 := api.createRecipe(t, token, map[string]any{"title": "Fish and chips"})

	ids := func(rec *httptest.ResponseRecorder) []int64 {
		var out []int64
		for _, r := range decodeBody[[]recipeResponse](t, rec) {
			out = append(out, r.ID)
		}
		return out
	}

	rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/recipe/recipes/?tags=%d,%d", vegan.ID, vegetarian.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{r2.ID, r1.ID}, ids(rec))

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/recipe/recipes/?ingredients=%d", feta.ID), token, nil)
	assert.Equal(t, []int64{r2.ID}, ids(rec))

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/recipe/recipes/?tags=%d&ingredients=%d", vegan.ID, feta.ID), token, nil)
	assert.Empty(t, ids(rec))

	rec = api.do(t, http.MethodGet, "/api/recipe/recipes/", token, nil)
	assert.Equal(t, []int64{r3.ID, r2.ID, r1.ID}, ids(rec))

	rec = api.do(t, http.MethodGet, "/api/recipe/recipes/?tags=1,abc", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string][]string](t, rec)
	assert.Equal(t, []string{domain.MsgInvalidInteger}, body["tags"])
}

func TestRecipes_Delete(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "delete@example.com")
	created := api.createRecipe(t, token, nil)
	path := fmt.Sprintf("/api/recipe/recipes/%d/", created.ID)

	rec := api.do(t, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, path, token, nil).Code)
}

// =============================================================================
// Images
// =============================================================================

func TestUploadImage(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "image@example.com")
	created := api.createRecipe(t, token, nil)
	path := fmt.Sprintf("/api/recipe/recipes/%d/upload-image/", created.ID)
	content := pngBytes(t)

	body, contentType := multipartBody(t, "image", "photo.png", content)
	rec := api.do(t, http.MethodPost, path, token, body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	first := decodeBody[recipeImageResponse](t, rec)
	assert.Equal(t, created.ID, first.ID)
	require.NotNil(t, first.Image)
	assert.True(t, strings.HasPrefix(*first.Image, testHost+"/media/uploads/recipe/"), *first.Image)
	assert.True(t, strings.HasSuffix(*first.Image, ".png"))
	assert.NotContains(t, *first.Image, "photo")

	media := api.do(t, http.MethodGet, strings.TrimPrefix(*first.Image, testHost), "", nil)
	require.Equal(t, http.StatusOK, media.Code)
	assert.Equal(t, "image/png", media.Header().Get("Content-Type"))
	assert.Equal(t, content, media.Body.Bytes())

	body, contentType = multipartBody(t, "image", "photo.png", content)
	rec = api.do(t, http.MethodPost, path, token, body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[recipeImageResponse](t, rec)
	require.NotNil(t, second.Image)
	assert.NotEqual(t, *first.Image, *second.Image)

	old := api.do(t, http.MethodGet, strings.TrimPrefix(*first.Image, testHost), "", nil)
	assert.Equal(t, http.StatusNotFound, old.Code, "replaced image is removed")

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/recipe/recipes/%d/", created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, second.Image, decodeBody[recipeDetailResponse](t, rec).Image)

	assert.Equal(t, float64(2), testutil.ToFloat64(api.metrics.ImagesUploaded))
}

func TestUploadImage_Invalid(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "badimage@example.com")
	created := api.createRecipe(t, token, nil)
	path := fmt.Sprintf("/api/recipe/recipes/%d/upload-image/", created.ID)

	tests := []struct {
		name     string
		field    string
		filename string
		content  []byte
		message  string
	}{
		{"not an image", "image", "notimage.png", []byte("notimage"), domain.MsgInvalidImage},
		{"plain field", "image", "", []byte("notimage"), msgNotAFile},
		{"no file", "photo", "photo.png", []byte("x"), domain.MsgNoFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.field, tt.filename, tt.content)
			rec := api.do(t, http.MethodPost, path, token, body, contentType)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeBody[map[string][]string](t, rec)
			assert.Equal(t, []string{tt.message}, resp["image"])
		})
	}

	rec := api.do(t, http.MethodPost, path, token, map[string]any{"image": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/recipe/recipes/%d/", created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeBody[recipeDetailResponse](t, rec).Image)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		api.metrics.ImageUploadFailures.WithLabelValues(metrics.ReasonInvalidImage)))
}

func TestUploadImage_TooLarge(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, "large@example.com")
	created := api.createRecipe(t, token, nil)

	body, contentType := multipartBody(t, "image", "big.png", bytes.Repeat([]byte{0}, 2<<20))
	rec := api.do(t, http.MethodPost, fmt.Sprintf("/api/recipe/recipes/%d/upload-image/", created.ID), token, body, contentType)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
