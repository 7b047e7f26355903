package sidecarimpl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipworks/clipfarm/internal/poster"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

func newClient(t *testing.T, url string) *SidecarImpl {
	t.Helper()
	cfg := &config.Config{}
	cfg.Scheduler.SidecarURL = url
	cfg.Scheduler.SidecarToken = "secret"
	cfg.Scheduler.PostTimeout = 5 * time.Second

	return New(Opts{Config: cfg, Logger: logger.New(logger.Opts{})})
}

func TestPostSuccess(t *testing.T) {
	var gotAuth string
	var gotReq poster.Request

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]string{"post_id": "tt-123"})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	receipt, err := client.Post(context.Background(), poster.Request{
		ClipID:   "video42:0",
		Platform: "tiktok",
		Caption:  "hook first",
	})
	require.NoError(t, err)
	assert.Equal(t, "tt-123", receipt.PostID)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "video42:0", gotReq.ClipID)
}

func TestPostRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "session expired"})
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	_, err := client.Post(context.Background(), poster.Request{ClipID: "video42:0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
}

func TestPostUnreachableSidecar(t *testing.T) {
	client := newClient(t, "http://127.0.0.1:1")
	_, err := client.Post(context.Background(), poster.Request{ClipID: "video42:0"})
	assert.Error(t, err)
}
