package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/diarkit/logger"
)

// Factory creates a Storage from the shared Config.
type Factory func(ctx context.Context, cfg Config, log *logger.Logger) (Storage, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterFactory registers a backend factory for the given provider name.
// Backend packages call it from init.
func RegisterFactory(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates the Storage selected by cfg.Provider. The provider package
// must have been imported so its factory is registered.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mu.RLock()
	f, ok := factories[cfg.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported provider %q (not registered)", cfg.Provider)
	}

	l := log.WithComponent("storage")
	l.Info("initializing storage", logger.Fields(logger.FieldBackend, cfg.Provider))
	return f(ctx, cfg, l)
}
