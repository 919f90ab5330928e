package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"notesync/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Transport is the engine's view of the hub.
type Transport interface {
	PushNotes(ctx context.Context, notes []models.NoteMetadataInput) (*models.PushNotesResponse, error)
	PushContent(ctx context.Context, noteID string, req models.ContentPushRequest) (*models.ContentPushResponse, error)
	FetchContent(ctx context.Context, noteID string) (*models.ContentOutput, error)
	Pull(ctx context.Context, since time.Time) (*models.PullResponse, error)
	PushPage(ctx context.Context, key PageKey, req models.PagePushRequest) (*models.ContentPushResponse, error)
	FetchPage(ctx context.Context, key PageKey) (*models.Page, error)
}

// HTTPTransport talks to the hub's JSON API. It logs in with a username and
// password, caches the token, and logs in again once when a call gets 401.
type HTTPTransport struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu       sync.Mutex
	token    string
	userGUID string
}

func NewHTTPTransport(baseURL, username, password string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UserGUID is the identity of the last successful login, so the transport
// can serve as the engine's Identity.
func (t *HTTPTransport) UserGUID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userGUID
}

// envelope is the hub's {success, data, error} wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Login authenticates and caches the bearer token.
func (t *HTTPTransport) Login(ctx context.Context) error {
	var out struct {
		Token string `json:"token"`
		User  struct {
			GUID string `json:"guid"`
		} `json:"user"`
	}
	creds := map[string]string{"username": t.username, "password": t.password}
	if err := t.send(ctx, http.MethodPost, "/api/v1/auth/login", creds, "", &out); err != nil {
		return err
	}
	if out.Token == "" {
		return serr.New("login response missing token")
	}

	t.mu.Lock()
	t.token = out.Token
	t.userGUID = out.User.GUID
	t.mu.Unlock()

	logger.Debug("Logged in to hub", "hub", t.baseURL, "user_guid", out.User.GUID)
	return nil
}

// Health checks the hub without credentials.
func (t *HTTPTransport) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := t.send(ctx, http.MethodGet, "/api/v1/health", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) PushNotes(ctx context.Context, notes []models.NoteMetadataInput) (*models.PushNotesResponse, error) {
	var out models.PushNotesResponse
	err := t.do(ctx, http.MethodPost, "/api/v1/sync/notes", models.PushNotesRequest{Notes: notes}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) PushContent(ctx context.Context, noteID string, req models.ContentPushRequest) (*models.ContentPushResponse, error) {
	var out models.ContentPushResponse
	if err := t.do(ctx, http.MethodPut, contentPath(noteID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) FetchContent(ctx context.Context, noteID string) (*models.ContentOutput, error) {
	var out models.ContentOutput
	if err := t.do(ctx, http.MethodGet, contentPath(noteID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pull asks for everything changed after since. A zero since pulls all.
func (t *HTTPTransport) Pull(ctx context.Context, since time.Time) (*models.PullResponse, error) {
	path := "/api/v1/sync/pull"
	if !since.IsZero() {
		q := url.Values{}
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
		path += "?" + q.Encode()
	}

	var out models.PullResponse
	if err := t.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) PushPage(ctx context.Context, key PageKey, req models.PagePushRequest) (*models.ContentPushResponse, error) {
	var out models.ContentPushResponse
	if err := t.do(ctx, http.MethodPut, pagePath(key), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) FetchPage(ctx context.Context, key PageKey) (*models.Page, error) {
	var out models.Page
	if err := t.do(ctx, http.MethodGet, pagePath(key), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func contentPath(noteID string) string {
	return "/api/v1/sync/notes/" + url.PathEscape(noteID) + "/content"
}

func pagePath(key PageKey) string {
	return fmt.Sprintf("/api/v1/sync/pages/%s/%d", url.PathEscape(key.NotebookID), key.Index)
}

// do sends an authenticated request. A 401 on a cached token triggers one
// fresh login and a single retry; any other 401 is returned as an auth error.
func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	token := t.currentToken()
	fresh := false
	if token == "" {
		if err := t.Login(ctx); err != nil {
			return err
		}
		token, fresh = t.currentToken(), true
	}

	err := t.send(ctx, method, path, body, token, out)
	reqErr, ok := err.(*RequestError)
	if !ok || reqErr.Status != http.StatusUnauthorized || fresh {
		return err
	}

	logger.Debug("Token rejected, logging in again", "path", path)
	if err := t.Login(ctx); err != nil {
		return err
	}
	return t.send(ctx, method, path, body, t.currentToken(), out)
}

func (t *HTTPTransport) currentToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// send performs one round trip and unwraps the envelope into out. The body
// is marshaled per call so a retry resends it in full.
func (t *HTTPTransport) send(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return serr.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return serr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Method: method, Path: path, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &RequestError{Method: method, Path: path, Status: resp.StatusCode, Msg: msg}
	}
	if decodeErr != nil {
		return &RequestError{Method: method, Path: path, Status: resp.StatusCode,
			Msg: "undecodable response", Err: decodeErr}
	}
	if !env.Success {
		return &RequestError{Method: method, Path: path, Status: http.StatusInternalServerError, Msg: env.Error}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return serr.Wrap(err, "failed to decode response data")
		}
	}
	return nil
}
