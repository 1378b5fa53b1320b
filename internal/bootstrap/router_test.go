package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally-backend/config"
	"github.com/tallyhq/tally-backend/internal/docstore"
	"github.com/tallyhq/tally-backend/internal/logging"
	"github.com/tallyhq/tally-backend/internal/testutil"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rdb, _ := testutil.NewRedis(t)
	cfg := &config.Config{
		Stripe: config.StripeConfig{PriceIDs: map[string]string{}},
		Portal: config.PortalConfig{SigningKey: "k", TokenTTL: time.Hour},
		App:    config.AppConfig{FrontendURL: "http://localhost:3000"},
	}
	svcs, err := NewServices(context.Background(), Infra{
		Config: cfg,
		Log:    logging.Nop(),
		SQL:    db,
		Store:  docstore.NewRedisStore(rdb, "test:"),
		Redis:  rdb,
	})
	require.NoError(t, err)

	return BuildRouter(RouterDeps{
		ServiceName: "tally-api",
		Version:     "test",
		CORSOrigins: []string{"http://localhost:3000"},
		Redis:       rdb,
		Services:    svcs,
		Log:         logging.Nop(),
	})
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t)
	rr := get(r, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
	assert.Contains(t, rr.Body.String(), `"redis":"up"`)
}

func TestRouter_APIRequiresIdentity(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/api/v1/projects").Code)
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/portal/not-a-token").Code)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_PublicRoutesAreRateLimited(t *testing.T) {
	r := newTestRouter(t)
	var limited bool
	for i := 0; i < publicRateBurst+5; i++ {
		if get(r, "/portal/x").Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited)
}
