package resilience

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one provider.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Status is "healthy" while closed, "degraded" while probing and
// "unhealthy" while open.
func (h *ProviderHealth) Status() string {
	switch h.CircuitState {
	case gobreaker.StateClosed:
		return "healthy"
	case gobreaker.StateHalfOpen:
		return "degraded"
	}
	return "unhealthy"
}

func (h *ProviderHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

type outcome struct {
	client    *Client
	succeeded time.Time
	failed    time.Time
	lastErr   string
}

// Registry collects the clients of one process and the outcome of their
// latest calls for the ops endpoints.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*outcome
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*outcome{}, now: time.Now}
}

// Register adds c under its name, replacing any client of the same name.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	r.entries[c.Name()] = &outcome{client: c}
	r.mu.Unlock()
}

// RecordSuccess and RecordFailure ignore names never registered.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(o *outcome) { o.succeeded = r.now() })
}

func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(o *outcome) {
		o.failed = r.now()
		if err != nil {
			o.lastErr = err.Error()
		}
	})
}

func (r *Registry) update(name string, fn func(*outcome)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.entries[name]; ok {
		fn(o)
	}
}

// GetHealth returns nil for unknown providers.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.entries[name]
	if !ok {
		return nil
	}
	return o.snapshot(name)
}

// GetAllHealth returns every provider ordered by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	all := make([]*ProviderHealth, 0, len(r.entries))
	for name, o := range r.entries {
		all = append(all, o.snapshot(name))
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b *ProviderHealth) int { return strings.Compare(a.Name, b.Name) })
	return all
}

func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (o *outcome) snapshot(name string) *ProviderHealth {
	state, counts := o.client.State()
	return &ProviderHealth{
		Name:          name,
		CircuitState:  state,
		Counts:        counts,
		LastSuccessAt: timePtr(o.succeeded),
		LastFailureAt: timePtr(o.failed),
		LastError:     o.lastErr,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
