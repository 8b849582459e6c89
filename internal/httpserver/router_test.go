package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"milletsmon/internal/backend"
	"milletsmon/internal/handler"
	"milletsmon/internal/model"
	"milletsmon/internal/report"
	"milletsmon/internal/store"
	"milletsmon/internal/upload"
	"milletsmon/internal/validation"
	"milletsmon/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend 模拟外部监测后端，记录收到的请求路径
type fakeBackend struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeBackend) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/api/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		role, id := "staff", "u7"
		if strings.HasPrefix(body["email"], "admin") {
			role, id = "admin", "u1"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": "backend-" + id,
			"user":  model.User{ID: id, Name: "Test", Email: body["email"], Role: role},
		})
	case r.URL.Path == "/api/public/projects":
		_ = json.NewEncoder(w).Encode([]model.Project{{ID: "pub1", Title: "Public millet mission"}})
	case r.URL.Path == "/api/projects/user/u7", r.URL.Path == "/api/projects" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode([]model.Project{{ID: "p1", Title: "Ragi revival"}})
	case r.URL.Path == "/api/projects" && r.Method == http.MethodPost:
		var p model.Project
		_ = json.NewDecoder(r.Body).Decode(&p)
		p.ID = "p2"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(p)
	case strings.HasPrefix(r.URL.Path, "/api/projects/") && r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/api/public/events":
		now := time.Now()
		_ = json.NewEncoder(w).Encode([]model.UpcomingEvent{
			{ID: "later", Title: "Seed fair", EventDate: now.Add(72 * time.Hour)},
			{ID: "past", Title: "Old fair", EventDate: now.Add(-72 * time.Hour)},
			{ID: "soon", Title: "Field day", EventDate: now.Add(24 * time.Hour)},
		})
	case r.URL.Path == "/api/users":
		_ = json.NewEncoder(w).Encode([]model.User{{ID: "u1"}, {ID: "u7"}})
	default:
		w.Write([]byte(`[]`))
	}
}

type testEnv struct {
	router  *gin.Engine
	backend *fakeBackend
}

func newTestEnv(t *testing.T, checks ...ReadinessCheck) *testEnv {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	log := zap.NewNop()
	client := backend.NewClient(config.BackendConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}, log)
	opts := store.Options{TTL: time.Minute, Logger: log}
	v := validation.New()

	auth := store.NewAuthStore(client, nil, store.AuthConfig{JWTSecret: "router-test-secret-0123"}, log)
	projects := store.NewProjectStore(client, opts, nil)
	activities := store.NewActivityStores(client, opts, nil)
	content := store.NewContentStores(client, opts, nil)
	categories := store.NewCategoryStore(client, opts)
	registry := store.NewRegistry()
	activities.Register(registry)
	content.Register(registry)

	h := Handlers{
		Auth:     handler.NewAuthHandler(auth, v, log),
		Projects: handler.NewProjectHandler(projects, v, log),
		Public:   handler.NewPublicHandler(projects, content, activities, log),
		Activities: map[model.Kind]CRUD{
			model.KindTraining: handler.NewResourceHandler(activities.Trainings, v, log),
		},
		Content: map[string]CRUD{
			model.ResourceEvents: handler.NewResourceHandler(content.Events, v, log),
		},
		Categories: handler.NewCategoryHandler(categories),
		Dashboard:  handler.NewDashboardHandler(projects, activities, content, categories, log),
		Uploads:    handler.NewUploadHandler(upload.NewUploader(client, log), log),
		Reports:    handler.NewReportHandler(report.NewBuilder(activities, log), report.NewRepository(nil, log), v, log),
		Admin:      handler.NewAdminHandler(client, registry, nil, nil, log),
	}
	return &testEnv{router: NewRouter(h, auth, log, checks...), backend: fb}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, ReadinessCheck{Name: "db", Check: func(context.Context) error {
		return errors.New("connection refused")
	}})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "", nil).Code)

	w := env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "db_not_ready")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/admin/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/admin/projects", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, env.backend.seen())
}

func TestStaffProjectsRoutedToUserEndpoint(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t, "staff@example.in")

	w := env.do(t, http.MethodGet, "/admin/projects", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Ragi revival")
	assert.Contains(t, env.backend.seen(), "GET /api/projects/user/u7")
}

func TestLoginRejectsInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "email")
	assert.Contains(t, resp.Fields, "password")
}

func TestDeleteRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	staff := env.login(t, "staff@example.in")
	w := env.do(t, http.MethodDelete, "/admin/projects/p1", staff, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := env.login(t, "admin@example.in")
	w = env.do(t, http.MethodDelete, "/admin/projects/p1", admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, env.backend.seen(), "DELETE /api/projects/p1")
}

func TestCreateProjectValidatesAndForwards(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t, "staff@example.in")

	w := env.do(t, http.MethodPost, "/admin/projects", tok, map[string]any{"title": "ab"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	start := time.Now().Add(24 * time.Hour)
	w = env.do(t, http.MethodPost, "/admin/projects", tok, model.Project{
		Title:     "Millet value chain",
		State:     "Odisha",
		District:  "Koraput",
		StartDate: start,
		EndDate:   start.Add(90 * 24 * time.Hour),
		Status:    model.ProjectPlanned,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"id":"p2"`)
	assert.Contains(t, w.Body.String(), `"created_by":"u7"`)
}

func TestPublicEventsUpcomingOnly(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/public/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []model.UpcomingEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "soon", resp.Data[0].ID)
	assert.Equal(t, "later", resp.Data[1].ID)
}

func TestPublicProjectsAnonymous(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/public/projects", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pub1")
	assert.Equal(t, []string{"GET /api/public/projects"}, env.backend.seen())
}

func TestCacheRefreshAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	staff := env.login(t, "staff@example.in")
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/admin/cache/refresh", staff, nil).Code)

	admin := env.login(t, "admin@example.in")
	w := env.do(t, http.MethodPost, "/admin/cache/refresh", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), model.ResourceEvents)
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	tok := env.login(t, "staff@example.in")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/auth/me", tok, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/auth/logout", tok, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/auth/me", tok, nil).Code)
}

func TestPublicStatsUsesCachedActivitiesOnly(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/public/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Projects int                          `json:"projects"`
		Totals   handler.KindStats            `json:"totals"`
		Kinds    map[string]handler.KindStats `json:"activities"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Projects)
	assert.Zero(t, resp.Totals.Count)
	assert.Len(t, resp.Kinds, len(model.ActivityKinds))
	assert.Equal(t, []string{"GET /api/public/projects"}, env.backend.seen())
}
