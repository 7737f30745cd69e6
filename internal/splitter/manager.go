package splitter

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tickloop/autosplit/internal/config"
	"github.com/tickloop/autosplit/internal/wasm"
)

// Manager manages splitter lifecycle.
type Manager struct {
	cfg         *config.HostConfig
	runtime     *wasm.Runtime
	loader      *Loader
	registry    *Registry
	instanceMgr *wasm.InstanceManager
	logger      *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new splitter manager.
func NewManager(
	cfg *config.HostConfig,
	runtime *wasm.Runtime,
	host *wasm.HostState,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:         cfg,
		runtime:     runtime,
		loader:      NewLoader(runtime, logger),
		registry:    NewRegistry(logger),
		instanceMgr: wasm.NewInstanceManager(runtime, host, logger),
		logger:      logger.With(zap.String("component", "splitter-manager")),
	}
}

// LoadAll discovers and loads all splitters from configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("splitters already loaded")
	}

	m.logger.Info("Loading splitters",
		zap.Strings("paths", m.cfg.SplitterPaths),
	)

	splitters, err := m.loader.DiscoverSplitters(ctx, m.cfg.SplitterPaths)
	if err != nil {
		// An empty splitter directory is a valid (if useless) configuration.
		if _, ok := err.(*NoSplittersFoundError); ok {
			m.logger.Warn("No splitters found in configured paths",
				zap.Strings("paths", m.cfg.SplitterPaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, s := range splitters {
		if err := m.registry.Register(s); err != nil {
			m.logger.Error("Failed to register splitter",
				zap.String("name", s.Manifest.Name),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Splitters loaded successfully",
		zap.Int("count", len(splitters)),
	)

	return nil
}

// GetSplitter retrieves a splitter by name.
func (m *Manager) GetSplitter(name string) (*Splitter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.registry.Get(name)
	if !ok {
		return nil, &NotFoundError{SplitterName: name}
	}

	return s, nil
}

// FindSplitterForGame finds a splitter for a game.
func (m *Manager) FindSplitterForGame(game string) (*Splitter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	splitters := m.registry.LookupByGame(game)
	if len(splitters) == 0 {
		return nil, fmt.Errorf("no splitter found for game '%s'", game)
	}

	// Return first match (future: support version selection)
	return splitters[0], nil
}

// Instantiate creates a new instance of a splitter.
func (m *Manager) Instantiate(ctx context.Context, name string) (*wasm.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.registry.Get(name)
	if !ok {
		return nil, &NotFoundError{SplitterName: name}
	}

	// The compiled-module cache is keyed by the wasm file path the loader
	// compiled from.
	instanceConfig := &wasm.InstanceConfig{
		ModuleName: s.Compiled.Name,
	}

	instance, err := m.instanceMgr.Instantiate(ctx, instanceConfig)
	if err != nil {
		return nil, err
	}

	return instance, nil
}

// Shutdown gracefully shuts down all splitters.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down splitter manager")

	// Runtime close handles instance cleanup
	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Splitter manager shutdown complete")
	return nil
}

// Registry returns the splitter registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether splitters have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}
