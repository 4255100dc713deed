package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/medspa-concierge/internal/kv"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

// DefaultKey is the well-known key the policy document lives under.
const DefaultKey = "policy:config"

// Source supplies the current policy. Implementations never fail: a missing or
// broken document yields the defaults.
type Source interface {
	Load(ctx context.Context) *Config
}

// Store loads and saves the policy document through a key-value backend. Saves
// serialize within the process so each one gets its own version.
type Store struct {
	saveMu  sync.Mutex
	backend kv.Backend
	key     string
	logger  *logging.Logger
	now     func() time.Time
}

var _ Source = (*Store)(nil)

// NewStore creates a policy store. An empty key selects DefaultKey.
func NewStore(backend kv.Backend, key string, logger *logging.Logger) *Store {
	if backend == nil {
		backend = kv.NewMemory()
	}
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{backend: backend, key: key, logger: logger, now: time.Now}
}

// Load returns the stored policy or the defaults when absent or invalid.
func (s *Store) Load(ctx context.Context) *Config {
	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("policy backend unavailable, using defaults", "key", s.key, "error", err)
		return Default()
	}
	if data == nil {
		return Default()
	}
	cfg, err := Decode(data)
	if err != nil {
		s.logger.Warn("stored policy invalid, using defaults", "key", s.key, "error", err)
		return Default()
	}
	return cfg
}

// Save validates cfg, bumps its version past the stored one and persists it.
func (s *Store) Save(ctx context.Context, cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config required", ErrInvalidConfig)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	current := s.Load(ctx)
	if cfg.Version <= current.Version {
		cfg.Version = current.Version + 1
	}
	cfg.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("policy: marshal config: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return nil, fmt.Errorf("policy: save config: %w", err)
	}
	s.logger.Info("policy saved", "key", s.key, "version", cfg.Version)
	return cfg, nil
}

// Static is a fixed Source, handy for tests and single-tenant setups.
type Static struct {
	Config *Config
}

// Load returns the wrapped config, or the defaults when nil.
func (s Static) Load(context.Context) *Config {
	if s.Config == nil {
		return Default()
	}
	return s.Config
}

// ProviderResolver maps names onto canonical providers using whatever policy
// src holds at call time.
func ProviderResolver(src Source) func(string) string {
	return func(name string) string {
		return src.Load(context.Background()).ResolveProvider(name)
	}
}
