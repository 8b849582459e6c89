package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milletsmon/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() { token = "" })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestProjectsUsesRoleRouting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			_ = json.NewEncoder(w).Encode(model.User{ID: "u7", Role: "staff"})
		case "/api/projects/user/u7":
			_ = json.NewEncoder(w).Encode([]model.Project{{ID: "p1", Title: "Ragi revival", District: "Koraput", Status: "ongoing"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "projects", "--backend", srv.URL, "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "Ragi revival")
	assert.Contains(t, out, "Koraput")
}

func TestLoginPrintsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"token":"backend-tok","user":{"id":"u1","email":"a@example.in","role":"admin"}}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "login", "--backend", srv.URL, "--email", "a@example.in", "--password", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "backend-tok", strings.TrimSpace(out))
}

func TestReportPrintsCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			_ = json.NewEncoder(w).Encode(model.User{ID: "u1", Role: "admin"})
		case "/api/trainings":
			_ = json.NewEncoder(w).Encode([]model.TrainingProgram{{ActivityBase: model.ActivityBase{
				ID: "t1", District: "Koraput", Date: time.Date(2026, 2, 1, 15, 30, 0, 0, time.UTC), Target: 10, Achieved: 5,
			}}})
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	out, err := execute(t, "report", "--backend", srv.URL, "--token", "tok", "--kind", "trainings", "--to", "2026-02-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Koraput")
	assert.Contains(t, out, "50.0")
}

func TestReportRequiresToken(t *testing.T) {
	_, err := execute(t, "report", "--backend", "http://127.0.0.1:1", "--token", "")
	assert.Error(t, err)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	_, err := execute(t, "upload", filepath.Join(t.TempDir(), "missing.png"), "--token", "tok")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
