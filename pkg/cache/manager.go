package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/aigenflow/pipeline/pkg/cachekey"
	"github.com/aigenflow/pipeline/pkg/logging"
)

const (
	defaultTTL        = 24 * time.Hour
	defaultByteBudget = 500 * 1024 * 1024 // 500 MiB
)

// DefaultRoot returns ~/.aigenflow/cache, falling back to a relative path
// when the home directory can't be resolved.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".aigenflow", "cache")
	}
	return filepath.Join(home, ".aigenflow", "cache")
}

// Backend is the storage contract Manager drives: a filesystem Store or a
// RedisStore both satisfy it, so GetOrCompute is agnostic to where entries
// actually live.
type Backend interface {
	Get(key string) ([]byte, bool)
	Save(key string, payload []byte, ttl time.Duration) error
	Delete(key string)
	Clear()
	Stats() Stats
}

// Manager coordinates key generation, lookup and get-or-compute over a
// Backend.
type Manager struct {
	keygen *cachekey.Generator
	store  Backend
	ttl    time.Duration
}

// ManagerOption configures a Manager at construction.
type ManagerOption func(*Manager)

// WithTTL overrides the default 24h TTL applied by GetOrCompute.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// NewManager returns a Manager rooted at root (DefaultRoot() if empty).
func NewManager(root string, logger logging.Logger, opts ...ManagerOption) *Manager {
	if root == "" {
		root = DefaultRoot()
	}
	m := &Manager{
		keygen: cachekey.NewGenerator(),
		store:  NewStore(root, defaultByteBudget, logger),
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerWithBackend returns a Manager driving an arbitrary Backend
// instead of the default filesystem Store — used to point the response
// cache at Redis for deployments sharing one cache across multiple
// pipeline instances.
func NewManagerWithBackend(backend Backend, opts ...ManagerOption) *Manager {
	m := &Manager{
		keygen: cachekey.NewGenerator(),
		store:  backend,
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key builds the deterministic cache key for a request.
func (m *Manager) Key(prompt string, context map[string]interface{}, provider string, phase int, modelVersion string) string {
	return m.keygen.Generate(prompt, context, provider, phase, modelVersion)
}

// Compute is the caller-supplied recomputation function for a cache miss.
type Compute func(ctx context.Context) ([]byte, error)

// GetOrCompute returns the cached payload for key on hit. On miss it awaits
// compute, stores the result with the manager's default TTL, and returns it.
// Failed computations are never cached.
func (m *Manager) GetOrCompute(ctx context.Context, key string, compute Compute) ([]byte, bool, error) {
	if payload, ok := m.store.Get(key); ok {
		return payload, true, nil
	}

	payload, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := m.store.Save(key, payload, m.ttl); err != nil {
		return payload, false, nil
	}
	return payload, false, nil
}

// Stats exposes the underlying store's aggregate counters.
func (m *Manager) Stats() Stats { return m.store.Stats() }

// Backend exposes the underlying storage backend for callers that need
// direct access (Delete, Clear).
func (m *Manager) Backend() Backend { return m.store }
