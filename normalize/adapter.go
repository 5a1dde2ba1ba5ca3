package normalize

import (
	"net/http"
	"sort"
	"sync"

	"github.com/kbukum/diarkit/errors"
)

// Adapter decodes one backend's native payload into Raw records.
// Adapters never validate timestamps; that is the Normalizer's job.
type Adapter interface {
	Name() string
	Decode(data []byte) (Raw, error)
}

// Registry holds adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// DefaultRegistry returns a registry with every built-in adapter.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Canonical{},
		Pyannote{},
		RTTM{},
		Whisper{},
		WhisperX{},
		VerboseJSON{},
		AssemblyAI{},
	)
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, errors.UnsupportedFormat("input format", name).
			WithDetail("available", r.namesLocked())
	}
	return a, nil
}

// Names returns the registered adapter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode looks up the named adapter and decodes data with it.
func (r *Registry) Decode(name string, data []byte) (Raw, error) {
	a, err := r.Get(name)
	if err != nil {
		return Raw{}, err
	}
	return a.Decode(data)
}

func decodeError(adapter string, cause error) *errors.AppError {
	return errors.New(errors.ErrCodeInvalidInput, adapter+" payload could not be decoded", http.StatusBadRequest).
		WithDetail("format", adapter).
		WithCause(cause)
}
