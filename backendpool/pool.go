package backendpool

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"poc-router/apiconfig"
	"poc-router/backendclient"
	"poc-router/logging"
)

var ErrNoBackendsAvailable = errors.New("no backends available")

// BusyState tracks the last observed work state of a backend.
type BusyState int

const (
	BusyUnknown BusyState = iota
	BusyIdle
	BusyGenerating
	BusyError
)

func (s BusyState) String() string {
	switch s {
	case BusyIdle:
		return "idle"
	case BusyGenerating:
		return "generating"
	case BusyError:
		return "error"
	default:
		return "unknown"
	}
}

// Backend is a single compute node reachable over its PoC endpoint.
type Backend struct {
	Id     string
	PocUrl string
	Client backendclient.BackendClient

	busy     BusyState
	inFlight int
	healthy  bool
}

// Pool holds the registered backends and tracks their health and load.
// All state transitions go through the pool mutex.
type Pool struct {
	mu       sync.Mutex
	backends map[string]*Backend
}

func NewPool(configs []apiconfig.BackendConfig, factory backendclient.ClientFactory) (*Pool, error) {
	if problems := apiconfig.ValidateBackends(configs); len(problems) > 0 {
		return nil, errors.Errorf("invalid backend config: %s", strings.Join(problems, "; "))
	}
	backends := make(map[string]*Backend, len(configs))
	for _, cfg := range configs {
		url := cfg.PoCUrl()
		backends[cfg.Id] = &Backend{
			Id:      cfg.Id,
			PocUrl:  url,
			Client:  factory.CreateClient(url),
			busy:    BusyUnknown,
			healthy: true,
		}
	}
	logging.Info("Backend pool created", logging.Nodes, "count", len(backends))
	return &Pool{backends: backends}, nil
}

// Get returns the backend with the given id, or nil.
func (p *Pool) Get(id string) *Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backends[id]
}

// Has reports whether id names a registered backend.
func (p *Pool) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.backends[id]
	return ok
}

// HealthyBackends returns the healthy backends sorted by id. The order is
// stable so that fan-out operations inject deterministic group indices.
func (p *Pool) HealthyBackends() []*Backend {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]*Backend, 0, len(p.backends))
	for _, b := range p.backends {
		if b.healthy {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Id < result[j].Id
	})
	return result
}

// AllBackends returns every registered backend sorted by id, healthy or not.
func (p *Pool) AllBackends() []*Backend {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]*Backend, 0, len(p.backends))
	for _, b := range p.backends {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Id < result[j].Id
	})
	return result
}

// Acquire picks a backend for a generate request and bumps its in-flight
// count. Backends not currently generating are preferred; ties break on the
// lowest in-flight count, then lexicographically smallest id.
func (p *Pool) Acquire() (*Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *Backend
	for _, id := range p.sortedIdsLocked() {
		b := p.backends[id]
		if !b.healthy || b.busy == BusyError {
			continue
		}
		if best == nil {
			best = b
			continue
		}
		if betterCandidate(b, best) {
			best = b
		}
	}
	if best == nil {
		return nil, ErrNoBackendsAvailable
	}
	best.inFlight++
	return best, nil
}

// betterCandidate reports whether a should be picked over current b.
func betterCandidate(a, current *Backend) bool {
	aIdle := a.busy != BusyGenerating
	curIdle := current.busy != BusyGenerating
	if aIdle != curIdle {
		return aIdle
	}
	if a.inFlight != current.inFlight {
		return a.inFlight < current.inFlight
	}
	return false // sorted iteration keeps the smallest id
}

// Release returns a backend previously handed out by Acquire. Calling it
// for a backend with no in-flight work is a no-op.
func (p *Pool) Release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.backends[id]
	if !ok {
		return
	}
	if b.inFlight > 0 {
		b.inFlight--
	}
}

// InFlight returns the current in-flight count for a backend.
func (p *Pool) InFlight(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.backends[id]; ok {
		return b.inFlight
	}
	return 0
}

// SetBusyState records the observed work state for a backend. Entering or
// leaving the error state also flips health.
func (p *Pool) SetBusyState(id string, state BusyState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.backends[id]
	if !ok {
		return
	}
	if b.busy != state {
		logging.Debug("Backend state changed", logging.Nodes,
			"backend", id, "from", b.busy.String(), "to", state.String())
	}
	b.busy = state
	b.healthy = state != BusyError
}

// BusyState returns the last observed work state for a backend.
func (p *Pool) BusyState(id string) BusyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.backends[id]; ok {
		return b.busy
	}
	return BusyUnknown
}

func (p *Pool) sortedIdsLocked() []string {
	ids := make([]string, 0, len(p.backends))
	for id := range p.backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
