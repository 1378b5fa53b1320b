package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	activityrepo "github.com/tallyhq/tally-backend/internal/activity/repository"
	activitysvc "github.com/tallyhq/tally-backend/internal/activity/service"
	"github.com/tallyhq/tally-backend/internal/auth"
	"github.com/tallyhq/tally-backend/internal/changes"
	clientsrepo "github.com/tallyhq/tally-backend/internal/clients/repository"
	"github.com/tallyhq/tally-backend/internal/invoices/repository"
	"github.com/tallyhq/tally-backend/internal/invoices/service"
	"github.com/tallyhq/tally-backend/internal/logging"
	"github.com/tallyhq/tally-backend/internal/mailer"
	"github.com/tallyhq/tally-backend/internal/testutil"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.NewStore(t)
	svc := service.NewInvoiceService(
		repository.NewInvoiceRepository(store),
		clientsrepo.NewClientRepository(store),
		nil,
		mailer.NewLogMailer(logging.Nop()),
		activitysvc.NewActivityService(activityrepo.NewActivityRepository(store), logging.Nop()),
		changes.Nop{},
		logging.Nop(),
	)

	r := gin.New()
	g := r.Group("/invoices", func(c *gin.Context) {
		auth.SetUser(c, "u1", "")
		c.Next()
	})
	New(svc).Register(g)
	return r
}

func call(t *testing.T, r *gin.Engine, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return rr.Code, out
}

func TestInvoiceHandlers(t *testing.T) {
	r := newRouter(t)

	code, body := call(t, r, http.MethodPost, "/invoices", map[string]any{
		"clientName":  "Acme",
		"clientEmail": "ap@acme.test",
		"items":       []map[string]any{{"description": "Work", "quantity": 3, "unitPrice": 40}},
	})
	require.Equal(t, http.StatusCreated, code)
	inv := body["invoice"].(map[string]any)
	id := inv["id"].(string)
	assert.Equal(t, "draft", inv["status"])
	assert.Equal(t, 120.0, inv["total"])

	code, _ = call(t, r, http.MethodPost, "/invoices", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, http.MethodPut, "/invoices/"+id+"/status", map[string]any{"status": "paid"})
	assert.Equal(t, http.StatusConflict, code)

	code, body = call(t, r, http.MethodPost, "/invoices/"+id+"/send", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sent", body["invoice"].(map[string]any)["status"])

	code, _ = call(t, r, http.MethodDelete, "/invoices/"+id, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = call(t, r, http.MethodPost, "/invoices/"+id+"/payment-intent", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = call(t, r, http.MethodGet, "/invoices/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = call(t, r, http.MethodGet, "/invoices", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["invoices"].([]any), 1)
}
