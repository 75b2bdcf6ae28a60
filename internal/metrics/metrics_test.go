package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New("pantry")

	m.RecordHTTPRequest(http.MethodGet, "/api/recipe/recipes", http.StatusOK, 20*time.Millisecond)
	m.RecordHTTPRequest(http.MethodGet, "/api/recipe/recipes", http.StatusOK, 30*time.Millisecond)
	m.RecordImageUpload(2048)
	m.RecordImageUploadFailure(ReasonInvalidImage)
	m.UsersRegistered.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/recipe/recipes", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesUploaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageUploadFailures.WithLabelValues(ReasonInvalidImage)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsersRegistered))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("pantry")
	m.TokensIssued.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "pantry_tokens_issued_total 1"), body)
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New("pantry")
		New("pantry")
	})
}
