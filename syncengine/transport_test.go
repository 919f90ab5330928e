package syncengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"notesync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": status < 300, "data": data, "error": msg})
}

func TestTransportReloginOnceOn401(t *testing.T) {
	var logins, pulls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			n := logins.Add(1)
			writeEnvelope(w, 200, map[string]any{
				"token": "tok-" + string(rune('0'+n)),
				"user":  map[string]any{"guid": "user-1"},
			}, "")
		case "/api/v1/sync/pull":
			pulls.Add(1)
			// The first token has "expired"
			if r.Header.Get("Authorization") != "Bearer tok-2" {
				writeEnvelope(w, 401, nil, "authentication required")
				return
			}
			assert.Equal(t, "2026-03-01T12:02:30Z", r.URL.Query().Get("since"))
			writeEnvelope(w, 200, models.PullResponse{ServerTime: at(160)}, "")
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "alice", "password123", time.Second)
	require.NoError(t, tr.Login(context.Background()))
	assert.Equal(t, "user-1", tr.UserGUID())

	resp, err := tr.Pull(context.Background(), at(150))
	require.NoError(t, err)
	assert.Equal(t, at(160), resp.ServerTime)
	assert.Equal(t, int32(2), logins.Load())
	assert.Equal(t, int32(2), pulls.Load())
}

func TestTransportPersistent401IsAuthError(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/login" {
			logins.Add(1)
			writeEnvelope(w, 200, map[string]any{"token": "tok", "user": map[string]any{"guid": "u"}}, "")
			return
		}
		writeEnvelope(w, 401, nil, "authentication required")
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "alice", "password123", time.Second)
	_, err := tr.PushNotes(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Equal(t, int32(1), logins.Load(), "a freshly issued token is not retried")
}

func TestTransportClassifiesStatuses(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/login" {
			writeEnvelope(w, 200, map[string]any{"token": "tok", "user": map[string]any{"guid": "u"}}, "")
			return
		}
		assert.Equal(t, "/api/v1/sync/notes/a%2Fb/content", r.URL.EscapedPath())
		writeEnvelope(w, int(status.Load()), nil, "nope")
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "alice", "password123", time.Second)
	cases := map[int]ErrorKind{
		400: KindMalformed,
		403: KindAuth,
		404: KindNotFound,
		429: KindTransient,
		500: KindTransient,
		503: KindTransient,
	}
	for code, want := range cases {
		status.Store(int32(code))
		_, err := tr.PushContent(context.Background(), "a/b", models.ContentPushRequest{})
		require.Error(t, err, "status %d", code)
		assert.Equal(t, want, KindOf(err), "status %d", code)
	}
}

func TestTransportUnreachableHubIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := NewHTTPTransport(url, "alice", "password123", time.Second)
	_, err := tr.Pull(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
}
