package splitter

import (
	"time"

	"github.com/tickloop/autosplit/internal/wasm"
)

// Splitter represents a loaded auto splitter with its manifest and compiled
// Wasm module.
type Splitter struct {
	// Manifest is the parsed splitter metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the splitter was loaded
	LoadedAt time.Time
}

// Name returns the splitter name.
func (s *Splitter) Name() string {
	return s.Manifest.Name
}

// Game returns the game this splitter supports.
func (s *Splitter) Game() string {
	return s.Manifest.Game
}

// Version returns the splitter version.
func (s *Splitter) Version() string {
	return s.Manifest.Version
}

// ProcessNames returns the executable names the splitter attaches to.
func (s *Splitter) ProcessNames() []string {
	return s.Manifest.ProcessNames
}

// MatchesProcess checks if the splitter targets a specific executable.
func (s *Splitter) MatchesProcess(name string) bool {
	for _, p := range s.Manifest.ProcessNames {
		if p == name {
			return true
		}
	}
	return false
}
