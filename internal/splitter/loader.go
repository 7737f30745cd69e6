package splitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/tickloop/autosplit/internal/wasm"
)

// Loader handles loading splitters from disk.
type Loader struct {
	runtime      *wasm.Runtime
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new splitter loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		runtime:      runtime,
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "splitter-loader")),
	}
}

// LoadSplitter loads a single splitter from a directory.
func (l *Loader) LoadSplitter(ctx context.Context, dir string) (*Splitter, error) {
	l.logger.Debug("Loading splitter", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading splitter",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("game", manifest.Game),
	)

	// Compile Wasm module (uses internal caching)
	wasmPath := manifest.WasmPath()
	compiled, err := l.moduleLoader.LoadModuleFromFile(ctx, wasmPath)
	if err != nil {
		return nil, &LoadError{
			SplitterName: manifest.Name,
			Err:          err,
		}
	}

	splitter := &Splitter{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Splitter loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
	)

	return splitter, nil
}

// DiscoverSplitters scans directories for splitters.
func (l *Loader) DiscoverSplitters(ctx context.Context, paths []string) ([]*Splitter, error) {
	var splitters []*Splitter
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning splitter directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Splitter path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		// Try to load each subdirectory as a splitter
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			splitterDir := filepath.Join(basePath, entry.Name())

			s, err := l.LoadSplitter(ctx, splitterDir)
			if err != nil {
				l.logger.Error("Failed to load splitter",
					zap.String("dir", splitterDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			splitters = append(splitters, s)
		}
	}

	// If we found some splitters but had errors, log warning but continue
	if len(splitters) > 0 && len(errs) > 0 {
		l.logger.Warn("Some splitters failed to load",
			zap.Int("loaded", len(splitters)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(splitters) == 0 {
		return nil, &NoSplittersFoundError{Paths: paths}
	}

	return splitters, nil
}
