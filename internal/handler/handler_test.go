package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
	"milletsmon/internal/report"
	"milletsmon/internal/store"
	"milletsmon/internal/upload"
	"milletsmon/internal/validation"
	"milletsmon/pkg/circuitbreaker"
	"milletsmon/pkg/rbac"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestUpcomingEventsFiltersAndSorts(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	items := []model.UpcomingEvent{
		{ID: "c", EventDate: now.Add(48 * time.Hour)},
		{ID: "yesterday", EventDate: now.Add(-9*time.Hour - time.Minute)},
		{ID: "b", EventDate: now.Add(time.Hour)},
		{ID: "a", EventDate: now.Add(-2 * time.Hour)},
		{ID: "midnight", EventDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
	}

	got := UpcomingEvents(items, now)
	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"midnight", "a", "b", "c"}, ids)
	assert.Len(t, items, 5)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", validation.FieldErrors{"title": "required"}, http.StatusBadRequest},
		{"not found", fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound},
		{"report not found", report.ErrReportNotFound, http.StatusNotFound},
		{"expired", store.ErrSessionExpired, http.StatusUnauthorized},
		{"rbac", rbac.CheckPermission("staff", rbac.PermissionDeleteProject), http.StatusForbidden},
		{"too large", upload.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"bad type", fmt.Errorf("%w: text/html", upload.ErrUnsupportedType), http.StatusBadRequest},
		{"breaker", circuitbreaker.ErrCircuitBreakerOpen, http.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"backend conflict", &backend.APIError{Status: http.StatusConflict, Message: "duplicate"}, http.StatusConflict},
		{"backend 401", &backend.APIError{Status: http.StatusUnauthorized}, http.StatusUnauthorized},
		{"backend 500", &backend.APIError{Status: http.StatusInternalServerError}, http.StatusBadGateway},
		{"storage", &upload.PutError{Status: http.StatusForbidden}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := classify(tc.err)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestListResponseServesStaleItems(t *testing.T) {
	r := gin.New()
	r.GET("/stale", func(c *gin.Context) {
		listResponse(c, zap.NewNop(), []model.Project{{ID: "p1"}}, errors.New("backend down"))
	})
	r.GET("/empty", func(c *gin.Context) {
		listResponse[model.Project](c, zap.NewNop(), nil, &backend.APIError{Status: http.StatusBadGateway})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stale", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stale":true`)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/empty", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

// fakeSigner 把直传地址指向测试服务器
type fakeSigner struct {
	putURL  string
	deleted []string
}

func (s *fakeSigner) SignUpload(_ context.Context, _ string, req model.UploadRequest) (*model.SignedUpload, error) {
	key := req.Folder + "/obj.png"
	return &model.SignedUpload{UploadURL: s.putURL + "/" + key, FileURL: "https://cdn.example.in/" + key, Key: key}, nil
}

func (s *fakeSigner) DeleteObject(_ context.Context, _ string, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func multipartBody(t *testing.T, field, name, contentType string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newUploadRouter(t *testing.T, maxBytes int64) (*gin.Engine, *fakeSigner, *atomic.Int32) {
	t.Helper()
	var puts atomic.Int32
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		_, _ = io.Copy(io.Discard, r.Body)
		puts.Add(1)
	}))
	t.Cleanup(storage.Close)

	signer := &fakeSigner{putURL: storage.URL}
	h := NewUploadHandler(upload.NewUploader(signer, zap.NewNop(), upload.WithMaxBytes(maxBytes)), zap.NewNop())
	r := gin.New()
	r.POST("/admin/uploads", h.Upload)
	r.DELETE("/admin/uploads/*key", h.Delete)
	return r, signer, &puts
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestUploadStoresFile(t *testing.T) {
	r, _, puts := newUploadRouter(t, 1<<20)
	body, ct := multipartBody(t, "file", "field.png", "image/png", pngHeader, map[string]string{"folder": "gallery"})

	req := httptest.NewRequest(http.MethodPost, "/admin/uploads", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"key":"gallery/obj.png"`)
	assert.Equal(t, int32(1), puts.Load())
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	r, _, puts := newUploadRouter(t, 1<<20)
	body, ct := multipartBody(t, "file", "page.html", "text/html", []byte("<html></html>"), nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/uploads", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, puts.Load())
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	r, _, puts := newUploadRouter(t, 8)
	body, ct := multipartBody(t, "file", "big.png", "image/png", pngHeader, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/uploads", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, puts.Load())
}

func TestUploadRequiresFile(t *testing.T) {
	r, _, _ := newUploadRouter(t, 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/admin/uploads", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteUploadStripsLeadingSlash(t *testing.T) {
	r, signer, _ := newUploadRouter(t, 1<<20)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/uploads/gallery/obj.png", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"gallery/obj.png"}, signer.deleted)
}

func TestReportCreateRejectsInvertedRange(t *testing.T) {
	h := NewReportHandler(nil, nil, validation.New(), zap.NewNop())
	r := gin.New()
	r.POST("/admin/reports", h.Create)

	req := httptest.NewRequest(http.MethodPost, "/admin/reports", bytes.NewBufferString(
		`{"title":"Quarterly","from":"2026-06-01T00:00:00Z","to":"2026-01-01T00:00:00Z"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"to"`)
}

func TestReportCreateRejectsUnknownKind(t *testing.T) {
	h := NewReportHandler(nil, nil, validation.New(), zap.NewNop())
	r := gin.New()
	r.POST("/admin/reports", h.Create)

	req := httptest.NewRequest(http.MethodPost, "/admin/reports", bytes.NewBufferString(`{"title":"Quarterly","kind":"yoga"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"kind"`)
}
