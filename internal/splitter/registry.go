package splitter

import (
	"sync"

	"go.uber.org/zap"
)

// Registry manages loaded splitters.
type Registry struct {
	sync.RWMutex
	splitters map[string]*Splitter   // name -> splitter
	byGame    map[string][]*Splitter // game -> splitters
	logger    *zap.Logger
}

// NewRegistry creates a new splitter registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		splitters: make(map[string]*Splitter),
		byGame:    make(map[string][]*Splitter),
		logger:    logger.With(zap.String("component", "splitter-registry")),
	}
}

// Register adds a splitter to the registry.
func (r *Registry) Register(s *Splitter) error {
	r.Lock()
	defer r.Unlock()

	name := s.Manifest.Name

	if _, exists := r.splitters[name]; exists {
		return &AlreadyRegisteredError{SplitterName: name}
	}

	r.splitters[name] = s

	// Index by game
	game := s.Manifest.Game
	r.byGame[game] = append(r.byGame[game], s)

	r.logger.Info("Splitter registered",
		zap.String("name", name),
		zap.String("game", game),
	)

	return nil
}

// Get retrieves a splitter by name.
func (r *Registry) Get(name string) (*Splitter, bool) {
	r.RLock()
	defer r.RUnlock()

	s, ok := r.splitters[name]
	return s, ok
}

// LookupByGame finds splitters for a game.
func (r *Registry) LookupByGame(game string) []*Splitter {
	r.RLock()
	defer r.RUnlock()

	splitters, ok := r.byGame[game]
	if !ok || len(splitters) == 0 {
		return []*Splitter{}
	}
	// Return copy to avoid race conditions
	result := make([]*Splitter, len(splitters))
	copy(result, splitters)
	return result
}

// List returns all registered splitters.
func (r *Registry) List() []*Splitter {
	r.RLock()
	defer r.RUnlock()

	result := make([]*Splitter, 0, len(r.splitters))
	for _, s := range r.splitters {
		result = append(result, s)
	}
	return result
}

// Unregister removes a splitter from the registry.
func (r *Registry) Unregister(name string) {
	r.Lock()
	defer r.Unlock()

	s, ok := r.splitters[name]
	if !ok {
		return
	}

	// Remove from game index
	game := s.Manifest.Game
	splitters := r.byGame[game]
	for i, candidate := range splitters {
		if candidate.Manifest.Name == name {
			r.byGame[game] = append(splitters[:i], splitters[i+1:]...)
			break
		}
	}

	delete(r.splitters, name)

	r.logger.Info("Splitter unregistered", zap.String("name", name))
}

// Count returns the number of registered splitters.
func (r *Registry) Count() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.splitters)
}
