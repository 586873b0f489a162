package session

import (
	stdimage "image"
	"sync"
	"time"

	"github.com/dmorgan81/imagegen/internal/image"
	"github.com/google/uuid"
	"github.com/samber/do"
)

// State is what one browser session remembers between requests: the last
// generated image or the last failure, never both.
type State struct {
	Image  stdimage.Image
	URL    string
	Params image.Params
	Error  string
}

func (s State) HasImage() bool {
	return s.Image != nil
}

type entry struct {
	state State
	seen  time.Time
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{sessions: map[string]*entry{}, now: time.Now}
}

func NewSessionStore(*do.Injector) (*Store, error) {
	return NewStore(), nil
}

func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &entry{seen: s.now()}
	return id
}

func (s *Store) Get(id string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return State{}, false
	}
	e.seen = s.now()
	return e.state, true
}

// Put replaces the session's state. The API key is never retained.
func (s *Store) Put(id string, state State) {
	state.Params.APIKey = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &entry{state: state, seen: s.now()}
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Expire drops sessions idle for longer than ttl and reports how many went.
func (s *Store) Expire(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	n := 0
	for id, e := range s.sessions {
		if e.seen.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
