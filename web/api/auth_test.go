package api_test

import (
	"net/http"
	"testing"
)

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	ts.registerUser("taken")

	cases := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{"missing username", map[string]string{"password": "securepass123"}, http.StatusBadRequest},
		{"missing password", map[string]string{"username": "nopass"}, http.StatusBadRequest},
		{"short password", map[string]string{"username": "shorty", "password": "abc"}, http.StatusBadRequest},
		{"bad characters", map[string]string{"username": "no spaces!", "password": "securepass123"}, http.StatusBadRequest},
		{"duplicate", map[string]string{"username": "taken", "password": "anotherpass123"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := ts.request("POST", "/api/v1/auth/register", tc.body)
			if status != tc.wantStatus {
				t.Errorf("status %d, want %d (%v)", status, tc.wantStatus, resp)
			}
			if resp["success"] != false {
				t.Errorf("expected success=false, got %v", resp["success"])
			}
		})
	}
}

func TestLoginIssuesUsableToken(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	_, guid := ts.registerUser("device_owner")

	status, _ := ts.request("POST", "/api/v1/auth/login", map[string]string{
		"username": "device_owner", "password": "wrongpassword",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want 401", status)
	}
	status, _ = ts.request("POST", "/api/v1/auth/login", map[string]string{
		"username": "nobody_here", "password": "testpassword123",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("unknown user: status %d, want 401", status)
	}

	status, resp := ts.request("POST", "/api/v1/auth/login", map[string]string{
		"username": "device_owner", "password": "testpassword123",
	})
	if status != http.StatusOK {
		t.Fatalf("login status %d: %v", status, resp)
	}
	ts.authToken = dataMap(t, resp)["token"].(string)

	status, resp = ts.request("GET", "/api/v1/auth/me", nil)
	if status != http.StatusOK {
		t.Fatalf("/me status %d: %v", status, resp)
	}
	if me := dataMap(t, resp); me["guid"] != guid || me["username"] != "device_owner" {
		t.Errorf("/me = %v", me)
	}
	if _, leaked := dataMap(t, resp)["password_hash"]; leaked {
		t.Error("/me must not expose the password hash")
	}

	// The same token reaches the sync API
	if status, _ := ts.request("GET", "/api/v1/sync/pull", nil); status != http.StatusOK {
		t.Errorf("pull with login token: status %d", status)
	}

	status, resp = ts.request("POST", "/api/v1/auth/refresh", nil)
	if status != http.StatusOK {
		t.Fatalf("refresh status %d: %v", status, resp)
	}
	if tok, _ := dataMap(t, resp)["token"].(string); tok == "" {
		t.Error("refresh should return a token")
	}
}

func TestRejectsBadTokens(t *testing.T) {
	ts := newTestServer(t)
	defer ts.cleanup()

	for _, token := range []string{"garbage", "eyJhbGciOiJIUzI1NiJ9.e30.invalid"} {
		ts.authToken = token
		if status, _ := ts.request("GET", "/api/v1/auth/me", nil); status != http.StatusUnauthorized {
			t.Errorf("token %q: status %d, want 401", token, status)
		}
		if status, _ := ts.request("POST", "/api/v1/auth/refresh", nil); status != http.StatusUnauthorized {
			t.Errorf("refresh with %q: status %d, want 401", token, status)
		}
	}
}
