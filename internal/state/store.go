// Package state holds per-user profile data and per-conversation request
// state across chat turns.
package state

import (
	"container/list"
	"log"
	"sync"
)

// DefaultCapacity bounds how many conversations the store keeps before the
// least recently used one is evicted.
const DefaultCapacity = 512

// UserProfile is the rolling profile the assistant maintains about a user.
type UserProfile struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
}

// ProfileStore holds the single user's profile.
type ProfileStore struct {
	mu      sync.RWMutex
	profile UserProfile
}

func NewProfileStore(name string) *ProfileStore {
	return &ProfileStore{profile: UserProfile{Name: name}}
}

// User returns a copy of the current profile.
func (p *ProfileStore) User() UserProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

// SetProfile replaces the rolling profile text.
func (p *ProfileStore) SetProfile(text string) {
	p.mu.Lock()
	p.profile.Profile = text
	p.mu.Unlock()
}

// UserRequest is the condensed request state of one conversation. Nil
// fields serialize as JSON null, which is how a fresh conversation reads.
type UserRequest struct {
	Content               *string `json:"content"`
	LastAssistantResponse *string `json:"lastAssistantResponse"`
}

// Conversation is one conversation's request state. BeginTurn serializes
// turns on the same conversation; the inner mutex guards reads that happen
// while a turn is in flight.
type Conversation struct {
	id     string
	turnMu sync.Mutex
	mu     sync.RWMutex
	req    UserRequest
}

// BeginTurn blocks until no other turn is running on this conversation.
func (c *Conversation) BeginTurn() {
	c.turnMu.Lock()
}

// EndTurn releases the turn lock taken by BeginTurn.
func (c *Conversation) EndTurn() {
	c.turnMu.Unlock()
}

// Content returns the condensed request, or "" and false when the
// conversation has no committed turn yet.
func (c *Conversation) Content() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.req.Content == nil {
		return "", false
	}
	return *c.req.Content, true
}

// LastResponse returns the last assistant answer, or "" and false when
// none has been committed.
func (c *Conversation) LastResponse() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.req.LastAssistantResponse == nil {
		return "", false
	}
	return *c.req.LastAssistantResponse, true
}

// Snapshot returns a copy of the request state as it would serialize.
func (c *Conversation) Snapshot() UserRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	req := UserRequest{}
	if c.req.Content != nil {
		content := *c.req.Content
		req.Content = &content
	}
	if c.req.LastAssistantResponse != nil {
		last := *c.req.LastAssistantResponse
		req.LastAssistantResponse = &last
	}
	return req
}

// Commit records the outcome of a completed turn.
func (c *Conversation) Commit(content, lastResponse string) {
	c.mu.Lock()
	c.req.Content = &content
	c.req.LastAssistantResponse = &lastResponse
	c.mu.Unlock()
}

// Store keeps conversations keyed by request ID with LRU eviction.
type Store struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// GetOrCreate returns the conversation for the given request ID, creating
// it if unseen, and marks it most recently used.
func (s *Store) GetOrCreate(requestID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[requestID]; ok {
		s.order.MoveToFront(el)
		return el.Value.(*Conversation)
	}

	conv := &Conversation{id: requestID}
	s.entries[requestID] = s.order.PushFront(conv)

	if s.order.Len() > s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			evicted := oldest.Value.(*Conversation)
			s.order.Remove(oldest)
			delete(s.entries, evicted.id)
			log.Printf("Evicted conversation state for %s", evicted.id)
		}
	}

	return conv
}

// Get returns the conversation for the given request ID without creating
// one.
func (s *Store) Get(requestID string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[requestID]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*Conversation), true
}

// Len reports how many conversations are held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
