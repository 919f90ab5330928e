package syncengine

import (
	"context"
	"sync"
	"time"

	"notesync/models"
)

// fakeTransport records calls and answers from overridable hooks.
type fakeTransport struct {
	mu sync.Mutex

	notesCalls   [][]models.NoteMetadataInput
	contentCalls []string
	pullSince    []time.Time
	pageCalls    []PageKey

	onPushNotes   func(notes []models.NoteMetadataInput) (*models.PushNotesResponse, error)
	onPushContent func(id string, req models.ContentPushRequest) (*models.ContentPushResponse, error)
	onFetch       func(id string) (*models.ContentOutput, error)
	onPull        func(since time.Time) (*models.PullResponse, error)
	onPushPage    func(key PageKey) (*models.ContentPushResponse, error)
	onFetchPage   func(key PageKey) (*models.Page, error)
}

func (f *fakeTransport) PushNotes(_ context.Context, notes []models.NoteMetadataInput) (*models.PushNotesResponse, error) {
	f.mu.Lock()
	f.notesCalls = append(f.notesCalls, notes)
	hook := f.onPushNotes
	f.mu.Unlock()

	if hook != nil {
		return hook(notes)
	}
	resp := &models.PushNotesResponse{ServerTime: at(200)}
	for _, n := range notes {
		resp.Written = append(resp.Written, n.ID)
	}
	return resp, nil
}

func (f *fakeTransport) PushContent(_ context.Context, id string, req models.ContentPushRequest) (*models.ContentPushResponse, error) {
	f.mu.Lock()
	f.contentCalls = append(f.contentCalls, id)
	hook := f.onPushContent
	f.mu.Unlock()

	if hook != nil {
		return hook(id, req)
	}
	return &models.ContentPushResponse{Status: models.ContentStatusSynced}, nil
}

func (f *fakeTransport) FetchContent(_ context.Context, id string) (*models.ContentOutput, error) {
	if f.onFetch != nil {
		return f.onFetch(id)
	}
	return nil, &RequestError{Method: "GET", Path: id, Status: 404, Msg: "not found"}
}

func (f *fakeTransport) Pull(_ context.Context, since time.Time) (*models.PullResponse, error) {
	f.mu.Lock()
	f.pullSince = append(f.pullSince, since)
	hook := f.onPull
	f.mu.Unlock()

	if hook != nil {
		return hook(since)
	}
	return &models.PullResponse{ServerTime: since}, nil
}

func (f *fakeTransport) PushPage(_ context.Context, key PageKey, _ models.PagePushRequest) (*models.ContentPushResponse, error) {
	f.mu.Lock()
	f.pageCalls = append(f.pageCalls, key)
	hook := f.onPushPage
	f.mu.Unlock()

	if hook != nil {
		return hook(key)
	}
	return &models.ContentPushResponse{Status: models.ContentStatusSynced}, nil
}

func (f *fakeTransport) FetchPage(_ context.Context, key PageKey) (*models.Page, error) {
	if f.onFetchPage != nil {
		return f.onFetchPage(key)
	}
	return nil, &RequestError{Method: "GET", Path: key.String(), Status: 404, Msg: "not found"}
}

func (f *fakeTransport) notesCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notesCalls)
}

// at returns a fixed instant sec seconds after a base time.
func at(sec int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second)
}

func textNote(id string, updated time.Time) models.NoteMetadata {
	return models.NoteMetadata{
		ID:        id,
		Title:     "Note " + id,
		Type:      models.NoteTypeStructuredText,
		UpdatedAt: updated,
		CreatedAt: updated,
	}
}

func textContent(lines ...string) models.StructuredText {
	var st models.StructuredText
	for _, l := range lines {
		st.Pages = append(st.Pages, models.TextPage{
			Lines: []models.TextLine{{Text: l, Format: models.DefaultLineFormat()}},
		})
	}
	return st
}

var transientErr = &RequestError{Method: "PUT", Path: "/x", Status: 503, Msg: "unavailable"}
