package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/resilience-layer/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// backend answers every path with "value:<path>" and reports itself healthy.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte("value:" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Metrics.PruneInterval = 0
	cfg.Cache.CleanupInterval = 0
	cfg.Router.Targets = []config.TargetConfig{{ID: "api-1", Address: newBackend(t).URL}}
	return cfg
}

func startApp(t *testing.T, cfg config.Config) *App {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	a, err := InitializeApp(ctx, cfg)
	require.NoError(t, err)
	a.Start(ctx)
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, a.Shutdown(context.Background()))
	})
	return a
}

func serve(a *App, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.Engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}
