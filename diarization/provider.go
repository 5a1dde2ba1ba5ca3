package diarization

import (
	"context"
	"sort"
	"sync"

	"github.com/kbukum/diarkit/errors"
)

// Request describes one diarization call.
type Request struct {
	AudioPath string `json:"audio_path"`
	// NumSpeakers fixes the speaker count; zero lets the backend decide.
	NumSpeakers int    `json:"num_speakers,omitempty"`
	MinSpeakers int    `json:"min_speakers,omitempty"`
	MaxSpeakers int    `json:"max_speakers,omitempty"`
	Language    string `json:"language,omitempty"`
}

// Response is the backend's answer.
type Response struct {
	// Format names the normalize adapter for Payload.
	Format  string `json:"format"`
	Payload []byte `json:"-"`
}

// Provider is implemented by diarization backends.
type Provider interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	Diarize(ctx context.Context, req Request) (*Response, error)
}

// Registry holds providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding ps.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds or replaces p.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider called name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.UnsupportedFormat("diarization provider", name)
	}
	return p, nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
