package splitter

import (
	"fmt"
)

// ManifestNotFoundError occurs when manifest.yaml is not found in a directory.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("manifest not found at '%s': %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError occurs when manifest.yaml cannot be parsed as valid YAML.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("failed to parse manifest at '%s': %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError occurs when manifest.yaml fails validation.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("manifest validation failed at '%s': %s (field: %s)",
			e.Path, e.Message, e.Field)
	}
	return fmt.Sprintf("manifest validation failed at '%s': %s", e.Path, e.Message)
}

// WasmNotFoundError occurs when the Wasm file referenced in manifest doesn't exist.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("Wasm file '%s' not found (referenced in manifest '%s')",
		e.WasmFile, e.ManifestPath)
}

// LoadError occurs when splitter loading fails.
type LoadError struct {
	SplitterName string
	Err          error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load splitter '%s': %v", e.SplitterName, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NotFoundError occurs when a splitter is not found in the registry.
type NotFoundError struct {
	SplitterName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("splitter '%s' not found", e.SplitterName)
}

// AlreadyRegisteredError occurs when attempting to register a duplicate splitter.
type AlreadyRegisteredError struct {
	SplitterName string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("splitter '%s' is already registered", e.SplitterName)
}

// NoSplittersFoundError occurs when no splitters are found in the configured paths.
type NoSplittersFoundError struct {
	Paths []string
}

func (e *NoSplittersFoundError) Error() string {
	return fmt.Sprintf("no splitters found in paths: %v", e.Paths)
}
