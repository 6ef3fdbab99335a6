//go:build integration

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/resilience-layer/config"
	"github.com/guttosm/resilience-layer/internal/repository"
	"github.com/guttosm/resilience-layer/internal/service"
	"github.com/guttosm/resilience-layer/internal/testutil"
)

func mongoConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.Database.Enabled = true
	cfg.Database.URI = testutil.GetSharedContainerURI()
	cfg.Database.DatabaseName = testutil.SanitizeDBName(t.Name())
	t.Cleanup(func() {
		db, err := repository.NewMongoDB(cfg.Database.URI, cfg.Database.DatabaseName)
		if err == nil {
			_ = db.Database.Drop(context.Background())
			_ = db.Close(context.Background())
		}
	})
	return cfg
}

func TestInitializeApp_MongoL2(t *testing.T) {
	cfg := mongoConfig(t)
	cfg.Cache.L2Backend = "mongo"
	a := startApp(t, cfg)
	require.NotNil(t, a.Database)

	w := serve(a, http.MethodGet, "/api/lookup/catalog/42")
	require.Equal(t, http.StatusOK, w.Code)

	value, ttl, found, err := a.Database.CacheEntries.Get(context.Background(), "lookup:/catalog/42")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "value:/catalog/42", string(value))
	assert.Positive(t, ttl)

	w = serve(a, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInitializeApp_AlertsAreArchived(t *testing.T) {
	cfg := mongoConfig(t)
	a := startApp(t, cfg)
	require.NotNil(t, a.Database)

	a.Services.Sink.Record("router.response_time_ms", 9000, map[string]string{"target": "api-1"})

	require.Eventually(t, func() bool {
		w := serve(a, http.MethodGet, "/api/queues/"+service.AlertsQueue+"/history?status=completed")
		if w.Code != http.StatusOK {
			return false
		}
		var body struct {
			Data struct {
				Total int64 `json:"total"`
			} `json:"data"`
		}
		return json.Unmarshal(w.Body.Bytes(), &body) == nil && body.Data.Total == 1
	}, 5*time.Second, 50*time.Millisecond)

	w := serve(a, http.MethodGet, "/api/monitoring/alerts/history?metric=router.response_time_ms")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Alerts     []repository.AlertDocument `json:"alerts"`
			BySeverity map[string]int64           `json:"by_severity"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Alerts, 1)
	assert.Equal(t, "critical", body.Data.Alerts[0].Severity)
	assert.Equal(t, int64(1), body.Data.BySeverity["critical"])
}

func TestInitializeApp_UnreachableMongoRunsWithoutArchives(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Enabled = true
	cfg.Database.URI = "mongodb://127.0.0.1:1"
	a := startApp(t, cfg)

	assert.Nil(t, a.Database)
	w := serve(a, http.MethodGet, "/api/lookup/users/1")
	assert.Equal(t, http.StatusOK, w.Code)
}
