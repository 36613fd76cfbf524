package session

import (
	"context"
	"sync"

	"github.com/telhawk-systems/vibration-stack/relay/internal/metrics"
)

// Registry tracks live sessions so the server can report and close them.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Serve registers s, runs it and deregisters it when it ends.
func (r *Registry) Serve(ctx context.Context, s *Session) error {
	r.add(s)
	defer r.remove(s)
	return s.Run(ctx)
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s.id)
	r.mu.Unlock()
	metrics.ActiveSessions.Dec()
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every session's transport concurrently and returns once
// all closes finish. Each Run observes the closure on its next receive.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range live {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.transport.Close()
		}()
	}
	wg.Wait()
}
