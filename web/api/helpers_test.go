package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohanthewiz/rweb"

	"notesync/models"
	"notesync/web"
)

// testServer is a running hub with a fresh database.
type testServer struct {
	t         *testing.T
	baseURL   string
	client    *http.Client
	server    *rweb.Server
	authToken string // sent as a Bearer token when set
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	if err := models.InitTestDB(filepath.Join(t.TempDir(), "test_api.ddb")); err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}
	if err := models.InitJWT("test-secret-key-for-jwt-testing-32chars"); err != nil {
		t.Fatalf("failed to initialize JWT: %v", err)
	}

	readyChan := make(chan struct{}, 1)
	srv := web.NewTestServer(rweb.ServerOptions{
		Verbose:   true,
		ReadyChan: readyChan,
		Address:   "localhost:", // Dynamic port
	})

	go func() {
		_ = srv.Run()
	}()
	<-readyChan

	return &testServer{
		t:       t,
		baseURL: fmt.Sprintf("http://localhost:%s", srv.GetListenPort()),
		client:  &http.Client{Timeout: 5 * time.Second},
		server:  srv,
	}
}

func (ts *testServer) cleanup() {
	models.CloseDB()
}

// request sends a JSON request and decodes the envelope into a map.
func (ts *testServer) request(method, path string, body interface{}) (int, map[string]interface{}) {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.baseURL+path, reader)
	if err != nil {
		ts.t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ts.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+ts.authToken)
	}

	resp, err := ts.client.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			ts.t.Fatalf("%s %s returned non-JSON body: %s", method, path, string(raw))
		}
	}
	return resp.StatusCode, result
}

// registerUser creates a user and returns its token and GUID.
func (ts *testServer) registerUser(username string) (token, guid string) {
	ts.t.Helper()

	status, resp := ts.request("POST", "/api/v1/auth/register", map[string]string{
		"username": username,
		"password": "testpassword123",
	})
	if status != http.StatusCreated {
		ts.t.Fatalf("failed to register %s, status %d: %v", username, status, resp)
	}
	data := resp["data"].(map[string]interface{})
	user := data["user"].(map[string]interface{})
	return data["token"].(string), user["guid"].(string)
}

// as runs fn with the given token installed.
func (ts *testServer) as(token string, fn func()) {
	orig := ts.authToken
	ts.authToken = token
	defer func() { ts.authToken = orig }()
	fn()
}

func dataMap(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := resp["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", resp)
	}
	return data
}
