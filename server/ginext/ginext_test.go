package ginext

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmjones1979/ampersend-sdk/a2a"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Extensions())
	r.POST("/", h)
	return r
}

func TestExtensionsEchoesActivated(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		call, ok := a2a.CallContextFrom(c.Request.Context())
		require.True(t, ok)
		if call.IsRequested(a2a.X402ExtensionURI) {
			call.Activate(a2a.X402ExtensionURI)
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(a2a.HeaderExtensions, "https://other.example/ext, "+a2a.X402ExtensionURI)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, a2a.X402ExtensionURI, w.Header().Get(a2a.HeaderExtensions))
}

func TestExtensionsWithoutActivation(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		call, ok := CallContext(c)
		require.True(t, ok)
		assert.True(t, call.IsRequested(a2a.X402ExtensionURI))
		c.String(http.StatusAccepted, "queued")
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(a2a.HeaderExtensions, a2a.X402ExtensionURI)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Header().Get(a2a.HeaderExtensions))
	assert.Equal(t, "queued", w.Body.String())
}

func TestCallContextMissing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := CallContext(c)
	assert.False(t, ok)
}
