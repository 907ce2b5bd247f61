package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"digital-will/controller/handler"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRouterServesHealthWithCors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupDistributorRouter(handler.NewDistributionQueryHandler(nil, nil, nil, nil, nil), "localhost:7391")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://ops.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterSchedulersWithoutLoops(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupDistributorRouter(handler.NewDistributionQueryHandler(nil, nil, nil, nil, nil), "localhost:7391")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schedulers", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"schedulers":[]`)
	assert.Contains(t, w.Body.String(), `"processingTime"`)
}

func TestRouterPreflightCachesForTwelveHours(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupDistributorRouter(handler.NewDistributionQueryHandler(nil, nil, nil, nil, nil), "localhost:7391")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/schedulers", nil)
	req.Header.Set("Origin", "http://ops.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
}

func TestRouterServesSwaggerDoc(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupDistributorRouter(handler.NewDistributionQueryHandler(nil, nil, nil, nil, nil), "ops.example:7391")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"/assets/due"`)
	assert.Contains(t, body, `"/assets/{id}/receipt"`)
	assert.Contains(t, body, `"host": "ops.example:7391"`)
}
