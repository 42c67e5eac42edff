package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/transport"
)

// Registry owns all bot sessions. Lookups run under a read lock; creation is
// serialized per bot name so concurrent bootstrap calls for the same tenant
// settle on exactly one session, while distinct tenants bootstrap in
// parallel. Only fully-built sessions are published.
type Registry struct {
	sessions map[string]*Session
	creating map[string]*sync.Mutex
	mu       sync.RWMutex

	factory transport.Factory
	logger  *slog.Logger
}

// NewRegistry creates an empty registry bootstrapping providers through the
// given factory
func NewRegistry(logger *slog.Logger, factory transport.Factory) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		creating: make(map[string]*sync.Mutex),
		factory:  factory,
		logger:   logger,
	}
}

// EnsureSession returns the session registered under name, creating and
// connecting it first if needed. A second call for an existing name is a
// no-op returning the original session.
func (r *Registry) EnsureSession(ctx context.Context, name string) (*Session, error) {
	if name == "" {
		return nil, fmt.Errorf("bot name cannot be empty")
	}

	if existing, ok := r.Get(name); ok {
		return existing, nil
	}

	nameMu := r.creationLock(name)
	nameMu.Lock()
	defer nameMu.Unlock()

	// Re-check under the per-name lock: another caller may have finished
	// bootstrapping while we waited.
	if existing, ok := r.Get(name); ok {
		return existing, nil
	}

	provider, err := r.factory(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider for %s: %w", name, err)
	}

	if err := provider.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect provider for %s: %w", name, err)
	}

	sess := &Session{
		Name:      name,
		Flow:      NewFlow(),
		Provider:  provider,
		Store:     NewStore(),
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.sessions[name] = sess
	r.mu.Unlock()

	r.logger.Info("Bot session created",
		slog.String("bot", name),
	)

	return sess, nil
}

// creationLock returns the per-name mutex, allocating it on first use
func (r *Registry) creationLock(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mu, ok := r.creating[name]; ok {
		return mu
	}

	mu := &sync.Mutex{}
	r.creating[name] = mu
	return mu
}

// Get retrieves a registered session
func (r *Registry) Get(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[name]
	return sess, ok
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Names returns the registered bot names, in no particular order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}

	return names
}

// All returns a snapshot of all sessions (for monitoring)
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}

	return sessions
}

// Close shuts down every session's provider. Called once at process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, sess := range r.sessions {
		if err := sess.Provider.Close(); err != nil {
			r.logger.Warn("Error closing provider",
				slog.String("bot", name),
				slog.String("error", err.Error()),
			)
		}
	}
}
