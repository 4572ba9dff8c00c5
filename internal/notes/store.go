package notes

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a note id does not exist.
var ErrNotFound = errors.New("notes: note not found")

// Store persists generated notes. The web layer reads them back for display;
// the assistant core only ever writes.
type Store interface {
	// Save persists n, assigning n.ID when empty, and returns the stored note.
	Save(ctx context.Context, n *Note) (*Note, error)

	// Get returns the note with the given id, or [ErrNotFound].
	Get(ctx context.Context, id string) (*Note, error)

	// ListBySession returns all notes for a session, newest first.
	ListBySession(ctx context.Context, sessionID string) ([]*Note, error)
}

// MemStore is an in-memory [Store] for tests and storage-less deployments.
// All methods are safe for concurrent use.
type MemStore struct {
	mu    sync.RWMutex
	notes map[string]*Note
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{notes: make(map[string]*Note)}
}

// Save implements Store.
func (s *MemStore) Save(_ context.Context, n *Note) (*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *n
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.notes[stored.ID] = &stored

	out := stored
	return &out, nil
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, id string) (*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *n
	return &out, nil
}

// ListBySession implements Store.
func (s *MemStore) ListBySession(_ context.Context, sessionID string) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Note
	for _, n := range s.notes {
		if n.SessionID == sessionID {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
