package identify_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcomm/comm-server/internal/identify"
	"github.com/agentcomm/comm-server/internal/project"
)

func newRouter(t *testing.T, resolver identify.Resolver) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(identify.Middleware(resolver, nil))
	r.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"project_id": identify.ProjectID(c)})
	})
	return r
}

func TestMiddleware_UsesXProjectIDHeader(t *testing.T) {
	registry := project.NewRegistry(nil)
	_, _, err := registry.CreateProject("acme", "Acme", "", nil, project.Config{})
	require.NoError(t, err)

	r := newRouter(t, registry)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("X-Project-ID", "acme")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acme")
}

func TestMiddleware_FallsBackToDefaultProject(t *testing.T) {
	registry := project.NewRegistry(nil)

	r := newRouter(t, registry)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), project.DefaultProjectID)
}

func TestMiddleware_UnknownProjectIs404(t *testing.T) {
	registry := project.NewRegistry(nil)

	r := newRouter(t, registry)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("X-Project-ID", "nonexistent")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMiddleware_PublicPathSkipsResolution(t *testing.T) {
	registry := project.NewRegistry(nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(identify.Middleware(registry, nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
