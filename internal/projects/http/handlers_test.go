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
	"github.com/tallyhq/tally-backend/internal/logging"
	"github.com/tallyhq/tally-backend/internal/projects/repository"
	"github.com/tallyhq/tally-backend/internal/projects/service"
	"github.com/tallyhq/tally-backend/internal/testutil"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.NewStore(t)
	svc := service.NewProjectService(
		repository.NewProjectRepository(store),
		repository.NewTaskRepository(store),
		repository.NewTimeEntryRepository(store),
		activitysvc.NewActivityService(activityrepo.NewActivityRepository(store), logging.Nop()),
		changes.Nop{},
		logging.Nop(),
	)
	h := New(svc)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			auth.SetUser(c, uid, "")
		}
		c.Next()
	})
	h.Register(api.Group("/projects"))
	h.RegisterTimeEntries(api.Group("/time-entries"))
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	out := map[string]any{}
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out
}

func TestProjectHandlers_Flow(t *testing.T) {
	r := newRouter(t)

	rr, body := do(t, r, http.MethodPost, "/api/v1/projects", "u1", map[string]any{"name": "Website"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	project := body["project"].(map[string]any)
	pid := project["id"].(string)

	rr, _ = do(t, r, http.MethodPost, "/api/v1/projects/"+pid+"/tasks", "u1", map[string]any{"name": "Design"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr, body = do(t, r, http.MethodGet, "/api/v1/projects/"+pid, "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	tasks := body["project"].(map[string]any)["tasks"].([]any)
	assert.Len(t, tasks, 1)

	rr, body = do(t, r, http.MethodPost, "/api/v1/time-entries/start", "u1", map[string]any{"projectId": pid})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	eid := body["timeEntry"].(map[string]any)["id"].(string)

	rr, _ = do(t, r, http.MethodPost, "/api/v1/projects/"+pid+"/time-entries/"+eid+"/stop", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, _ = do(t, r, http.MethodPost, "/api/v1/projects/"+pid+"/time-entries/"+eid+"/stop", "u1", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, body = do(t, r, http.MethodGet, "/api/v1/time-entries", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, body["timeEntries"].([]any), 1)

	rr, _ = do(t, r, http.MethodDelete, "/api/v1/projects/"+pid, "u1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = do(t, r, http.MethodGet, "/api/v1/projects/"+pid, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProjectHandlers_Errors(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		want   int
	}{
		{"no user", http.MethodGet, "/api/v1/projects", "", nil, http.StatusUnauthorized},
		{"empty name", http.MethodPost, "/api/v1/projects", "u1", map[string]any{"name": " "}, http.StatusBadRequest},
		{"bad status", http.MethodPost, "/api/v1/projects", "u1", map[string]any{"name": "x", "status": "nope"}, http.StatusBadRequest},
		{"missing project", http.MethodGet, "/api/v1/projects/missing", "u1", nil, http.StatusNotFound},
		{"timer without project", http.MethodPost, "/api/v1/time-entries/start", "u1", map[string]any{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := do(t, r, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.want, rr.Code)
			assert.Equal(t, false, body["ok"])
		})
	}
}
