package session

import (
	"sync"
	"time"

	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/transport"
)

// Session is one isolated bot instance: its conversation flow, its exclusive
// transport provider handle, and its per-tenant store. Created once at
// bootstrap and never mutated afterwards.
type Session struct {
	Name      string
	Flow      *Flow
	Provider  transport.Provider
	Store     *Store
	CreatedAt time.Time
}

// Info is a read-only session snapshot for monitoring endpoints
type Info struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Connected bool      `json:"connected"`
}

// GetInfo returns a monitoring snapshot of the session
func (s *Session) GetInfo() Info {
	_, err := s.Provider.Instance()
	return Info{
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
		Connected: err == nil,
	}
}

// Rule maps an inbound keyword to a canned reply
type Rule struct {
	Keyword string
	Reply   string
}

// Flow is the conversation-routing definition bound to a session at creation.
// Sessions currently start with an empty flow; inbound routing happens on the
// bridge side.
type Flow struct {
	rules []Rule
}

// NewFlow builds a flow from zero or more keyword rules
func NewFlow(rules ...Rule) *Flow {
	return &Flow{rules: rules}
}

// Rules returns a copy of the flow's keyword rules
func (f *Flow) Rules() []Rule {
	out := make([]Rule, len(f.rules))
	copy(out, f.rules)
	return out
}

// Store is the per-tenant data store handle, an in-memory key/value map.
// Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewStore creates an empty per-tenant store
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// Get returns the value for a key and whether it was present
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return v, ok
}

// Set stores a value under a key
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Len returns the number of stored keys
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
