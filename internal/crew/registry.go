package crew

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/gosuda/crewdeck/internal/domain"
)

// ErrInstanceNotFound is returned when a requested instance key is not cached.
var ErrInstanceNotFound = errors.New("crew: instance not found") //nolint:gochecknoglobals // sentinel error

// InstanceFactory constructs a new instance for a key. Creation may block
// (sandbox provisioning), so it runs outside the registry lock.
type InstanceFactory func(ctx context.Context, key domain.InstanceKey, cfg InstanceConfig) (*Instance, error)

// Registry is the process-wide cache of live agent instances keyed by
// workspace+project. It is an explicit object owned by the crew service —
// no ambient global state — and it is the only shared mutable resource of
// the core, so all mutation is serialized per key.
type Registry struct {
	mu      sync.Mutex
	entries map[domain.InstanceKey]*registryEntry
	factory InstanceFactory
}

// registryEntry single-flights creation: concurrent GetOrCreate callers for
// the same key block on one construction and observe the same instance.
type registryEntry struct {
	once sync.Once
	inst *Instance
	err  error
}

func NewRegistry(factory InstanceFactory) *Registry {
	return &Registry{
		entries: make(map[domain.InstanceKey]*registryEntry),
		factory: factory,
	}
}

// GetOrCreate returns the live instance for the key, constructing and
// caching one on first use. Two simultaneous callers for the same key
// observe the same single instance, never two.
func (r *Registry) GetOrCreate(ctx context.Context, key domain.InstanceKey, cfg InstanceConfig) (*Instance, error) {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = &registryEntry{}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.inst, entry.err = r.factory(ctx, key, cfg)
	})

	if entry.err != nil {
		// Failed construction must not poison the key forever; the next
		// caller retries with a fresh entry.
		r.mu.Lock()
		if r.entries[key] == entry {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		return nil, fmt.Errorf("crew.Registry.GetOrCreate(%s): %w", key, entry.err)
	}

	return entry.inst, nil
}

// Has reports whether a live instance exists for the key.
func (r *Registry) Has(key domain.InstanceKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	return ok && entry.inst != nil
}

// Remove evicts and disposes the instance for the key. Returns false when
// no instance was cached.
func (r *Registry) Remove(ctx context.Context, key domain.InstanceKey) bool {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if !ok || entry.inst == nil {
		return false
	}
	if err := entry.inst.Close(ctx); err != nil {
		// Disposal failure is logged by the sandbox runtime; eviction holds.
		return true
	}
	return true
}

// Keys returns the cached instance keys in sorted order.
func (r *Registry) Keys() []domain.InstanceKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := slices.Collect(func(yield func(domain.InstanceKey) bool) {
		for key, entry := range r.entries {
			if entry.inst == nil {
				continue
			}
			if !yield(key) {
				return
			}
		}
	})
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	return keys
}

// Clear evicts and disposes every cached instance.
func (r *Registry) Clear(ctx context.Context) {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[domain.InstanceKey]*registryEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		if entry.inst != nil {
			_ = entry.inst.Close(ctx)
		}
	}
}

// Len returns the number of cached instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, entry := range r.entries {
		if entry.inst != nil {
			n++
		}
	}
	return n
}
