package api_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"notesync/models"
)

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	status, resp := ts.request("GET", "/api/v1/health", nil)
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	data := dataMap(t, resp)
	if data["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", data["status"])
	}
	if _, err := time.Parse(time.RFC3339Nano, data["server_time"].(string)); err != nil {
		t.Errorf("server_time is not RFC3339: %v", data["server_time"])
	}
}

func TestSyncRequiresIdentity(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	paths := []struct{ method, path string }{
		{"POST", "/api/v1/sync/notes"},
		{"GET", "/api/v1/sync/pull"},
		{"PUT", "/api/v1/sync/notes/n1/content"},
		{"GET", "/api/v1/sync/pages/book/0"},
		{"POST", "/api/v1/notes/n1/trash"},
	}
	for _, p := range paths {
		if status, _ := ts.request(p.method, p.path, map[string]any{}); status != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status %d, want 401", p.method, p.path, status)
		}
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	ts.authToken, _ = ts.registerUser("syncuser")

	status, resp := ts.request("GET", "/api/v1/sync/pull", nil)
	if status != http.StatusOK {
		t.Fatalf("initial pull status %d: %v", status, resp)
	}
	if notes := dataMap(t, resp)["notes"].([]interface{}); len(notes) != 0 {
		t.Fatalf("expected empty pull on fresh hub, got %d", len(notes))
	}

	updated := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	status, resp = ts.request("POST", "/api/v1/sync/notes", map[string]any{
		"notes": []map[string]any{{
			"id": "note-1", "title": "First", "type": "structured-text",
			"updated_at": updated, "created_at": updated,
		}},
	})
	if status != http.StatusOK {
		t.Fatalf("push notes status %d: %v", status, resp)
	}
	push := dataMap(t, resp)
	if written := push["written"].([]interface{}); len(written) != 1 || written[0] != "note-1" {
		t.Fatalf("written = %v", push["written"])
	}
	serverTime := push["server_time"].(string)

	// Content as a delta, stored paginated
	status, resp = ts.request("PUT", "/api/v1/sync/notes/note-1/content", map[string]any{
		"type":       "structured-text",
		"data":       map[string]any{"ops": []map[string]any{{"insert": "line1\nline2\n"}}},
		"updated_at": updated,
	})
	if status != http.StatusOK || dataMap(t, resp)["status"] != "synced" {
		t.Fatalf("content push = %d %v", status, resp)
	}

	// Same push again is ignored
	status, resp = ts.request("PUT", "/api/v1/sync/notes/note-1/content", map[string]any{
		"type":       "structured-text",
		"data":       map[string]any{"ops": []map[string]any{{"insert": "line1\nline2\n"}}},
		"updated_at": updated,
	})
	data := dataMap(t, resp)
	if status != http.StatusOK || data["status"] != "ignored" || data["reason"] != "stale" {
		t.Errorf("replayed content push = %d %v", status, resp)
	}

	status, resp = ts.request("GET", "/api/v1/sync/notes/note-1/content", nil)
	if status != http.StatusOK {
		t.Fatalf("get content status %d: %v", status, resp)
	}
	pages := dataMap(t, resp)["data"].(map[string]interface{})["pages"].([]interface{})
	if len(pages) != 2 {
		t.Errorf("expected 2 pages, got %d", len(pages))
	}

	// Nothing new since the push
	status, resp = ts.request("GET", "/api/v1/sync/pull?since="+url.QueryEscape(serverTime), nil)
	if status != http.StatusOK {
		t.Fatalf("pull status %d: %v", status, resp)
	}
	if notes := dataMap(t, resp)["notes"].([]interface{}); len(notes) != 0 {
		t.Errorf("expected no notes since the push, got %d", len(notes))
	}

	status, _ = ts.request("GET", "/api/v1/sync/pull?since=yesterday", nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad since: status %d, want 400", status)
	}
}

func TestContentPushMalformed(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	ts.authToken, _ = ts.registerUser("malformed")

	cases := []map[string]any{
		{"type": "spreadsheet", "data": map[string]any{}, "updated_at": time.Now()},
		{"type": "freeform-canvas", "data": map[string]any{"pages": []any{}}, "updated_at": time.Now()},
		{"type": "structured-text", "data": nil, "updated_at": time.Now()},
	}
	for i, body := range cases {
		if status, resp := ts.request("PUT", "/api/v1/sync/notes/n1/content", body); status != http.StatusBadRequest {
			t.Errorf("case %d: status %d, want 400 (%v)", i, status, resp)
		}
	}
}

func TestStoreFailureReturns500(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	ts.authToken, _ = ts.registerUser("storefail")
	models.CloseDB()

	status, resp := ts.request("GET", "/api/v1/sync/pull", nil)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d (%v)", status, resp)
	}
	if resp["success"] != false {
		t.Errorf("expected success=false, got %v", resp["success"])
	}
	if resp["error"] != "failed to pull notes" {
		t.Errorf("unexpected error message %v", resp["error"])
	}
}

func TestSharingAndLifecycle(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	ownerToken, _ := ts.registerUser("owner")
	otherToken, otherGUID := ts.registerUser("other")

	now := time.Now().UTC()
	ts.as(ownerToken, func() {
		status, resp := ts.request("POST", "/api/v1/sync/notes", map[string]any{
			"notes": []map[string]any{{"id": "book", "title": "Sketches", "type": "freeform-canvas", "updated_at": now}},
		})
		if status != http.StatusOK {
			t.Fatalf("push status %d: %v", status, resp)
		}

		status, resp = ts.request("PUT", "/api/v1/sync/pages/book/0", map[string]any{
			"layers":     []map[string]any{{"id": "ink", "visible": true, "strokes": []any{}}},
			"updated_at": now,
		})
		if status != http.StatusOK || dataMap(t, resp)["status"] != "synced" {
			t.Fatalf("page push = %d %v", status, resp)
		}
	})

	ts.as(otherToken, func() {
		if status, _ := ts.request("GET", "/api/v1/sync/pages/book/0", nil); status != http.StatusForbidden {
			t.Errorf("unshared page read: status %d, want 403", status)
		}
		if status, _ := ts.request("POST", "/api/v1/notes/book/trash", nil); status != http.StatusForbidden {
			t.Errorf("non-owner trash: status %d, want 403", status)
		}
	})

	ts.as(ownerToken, func() {
		status, resp := ts.request("POST", "/api/v1/notes/book/shares", map[string]any{
			"grantee_guid": otherGUID, "permission": "view",
		})
		if status != http.StatusOK {
			t.Fatalf("share status %d: %v", status, resp)
		}
		if status, _ := ts.request("POST", "/api/v1/notes/book/shares", map[string]any{
			"grantee_guid": otherGUID, "permission": "admin",
		}); status != http.StatusBadRequest {
			t.Errorf("bad permission: status %d, want 400", status)
		}
	})

	ts.as(otherToken, func() {
		status, resp := ts.request("GET", "/api/v1/sync/pull", nil)
		if status != http.StatusOK {
			t.Fatalf("pull status %d", status)
		}
		notes := dataMap(t, resp)["notes"].([]interface{})
		if len(notes) != 1 || notes[0].(map[string]interface{})["id"] != "book" {
			t.Errorf("grantee pull = %v", notes)
		}
		if status, _ := ts.request("GET", "/api/v1/sync/pages/book/0", nil); status != http.StatusOK {
			t.Errorf("shared page read: status %d, want 200", status)
		}
	})

	ts.as(ownerToken, func() {
		for i := 0; i < 2; i++ {
			status, resp := ts.request("POST", "/api/v1/notes/book/trash", nil)
			if status != http.StatusOK || dataMap(t, resp)["is_deleted"] != true {
				t.Errorf("trash #%d = %d %v", i+1, status, resp)
			}
		}
		status, resp := ts.request("POST", "/api/v1/notes/book/restore", nil)
		if status != http.StatusOK || dataMap(t, resp)["is_deleted"] != false {
			t.Errorf("restore = %d %v", status, resp)
		}

		if status, _ := ts.request("DELETE", "/api/v1/notes/book/shares/"+otherGUID, nil); status != http.StatusOK {
			t.Errorf("revoke status %d", status)
		}

		if status, _ := ts.request("DELETE", "/api/v1/notes/book", nil); status != http.StatusOK {
			t.Errorf("permanent delete status %d", status)
		}
		if status, _ := ts.request("GET", "/api/v1/sync/pages/book/0", nil); status != http.StatusNotFound {
			t.Errorf("page after delete: status %d, want 404", status)
		}
	})
}

func TestStatusPage(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	resp, err := ts.client.Get(ts.baseURL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status page returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct == "" {
		t.Error("status page should set a content type")
	}
}
