package syncengine

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"notesync/models"
)

// LocalContent is a note body as the device holds it.
type LocalContent struct {
	Type      models.NoteType
	Content   models.Content
	UpdatedAt time.Time
}

// LocalPage is one canvas page as the device holds it.
type LocalPage struct {
	Layers    []models.Layer
	UpdatedAt time.Time
}

// LocalStore is what the engine needs from the device's note store.
// Merge calls apply the shared conflict policy and report the outcome.
type LocalStore interface {
	Note(id string) (models.NoteMetadata, bool)
	Content(id string) (LocalContent, bool)
	MergeNote(meta models.NoteMetadata) models.Resolution
	MergeContent(id string, content LocalContent) models.Resolution
}

// PageStore is the page variant of LocalStore.
type PageStore interface {
	Page(key PageKey) (LocalPage, bool)
	MergePage(key PageKey, page LocalPage) models.Resolution
}

// MemoryStore keeps notes, contents and pages in maps. It backs the CLI
// and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	notes    map[string]models.NoteMetadata
	contents map[string]LocalContent
	pages    map[PageKey]LocalPage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notes:    make(map[string]models.NoteMetadata),
		contents: make(map[string]LocalContent),
		pages:    make(map[PageKey]LocalPage),
	}
}

// SaveNote records a local edit unconditionally.
func (s *MemoryStore) SaveNote(meta models.NoteMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[meta.ID] = meta
}

// SaveContent records a local body edit unconditionally.
func (s *MemoryStore) SaveContent(id string, content models.Content, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[id] = LocalContent{Type: content.NoteType(), Content: content, UpdatedAt: updatedAt}
}

// SavePage records a local page edit unconditionally.
func (s *MemoryStore) SavePage(key PageKey, layers []models.Layer, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[key] = LocalPage{Layers: layers, UpdatedAt: updatedAt}
}

func (s *MemoryStore) Note(id string) (models.NoteMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.notes[id]
	return meta, ok
}

// Notes lists every note sorted by id.
func (s *MemoryStore) Notes() []models.NoteMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.NoteMetadata, 0, len(s.notes))
	for _, m := range s.notes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) Content(id string) (LocalContent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contents[id]
	return c, ok
}

func (s *MemoryStore) Page(key PageKey) (LocalPage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[key]
	return p, ok
}

// MergeNote applies hub metadata. On a duplicate the hub-owned fields are
// still refreshed, since a share change bumps only server_updated_at.
func (s *MemoryStore) MergeNote(meta models.NoteMetadata) models.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, has := s.notes[meta.ID]
	same := has && stored.Title == meta.Title && stored.Type == meta.Type && stored.IsDeleted == meta.IsDeleted
	res := models.Decide(stored.UpdatedAt, has, meta.UpdatedAt, same)

	switch res {
	case models.ResolutionApply:
		s.notes[meta.ID] = meta
	case models.ResolutionDuplicate:
		stored.OwnerGUID = meta.OwnerGUID
		stored.ServerUpdatedAt = meta.ServerUpdatedAt
		stored.Shares = meta.Shares
		s.notes[meta.ID] = stored
	}
	return res
}

// MergeContent applies a hub body. Payloads compare by their stored
// encoding.
func (s *MemoryStore) MergeContent(id string, content LocalContent) models.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, has := s.contents[id]
	same := has && stored.Type == content.Type && samePayload(stored.Content, content.Content)
	res := models.Decide(stored.UpdatedAt, has, content.UpdatedAt, same)
	if res == models.ResolutionApply {
		s.contents[id] = content
	}
	return res
}

func (s *MemoryStore) MergePage(key PageKey, page LocalPage) models.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, has := s.pages[key]
	same := has && sameLayers(stored.Layers, page.Layers)
	res := models.Decide(stored.UpdatedAt, has, page.UpdatedAt, same)
	if res == models.ResolutionApply {
		s.pages[key] = page
	}
	return res
}

func samePayload(a, b models.Content) bool {
	ea, errA := models.EncodeContentPayload(a)
	eb, errB := models.EncodeContentPayload(b)
	return errA == nil && errB == nil && bytes.Equal(ea, eb)
}

func sameLayers(a, b []models.Layer) bool {
	ea, errA := models.EncodeLayers(a)
	eb, errB := models.EncodeLayers(b)
	return errA == nil && errB == nil && bytes.Equal(ea, eb)
}
