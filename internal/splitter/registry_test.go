package splitter

import (
	"testing"

	"go.uber.org/zap"
)

func TestRegistry_Register(t *testing.T) {
	logger := zap.NewNop()
	registry := NewRegistry(logger)

	manifest := &Manifest{
		Name: "test-splitter",
		Game: "Hollow Knight",
		dir:  "/tmp/test",
	}

	s := &Splitter{
		Manifest: manifest,
	}

	err := registry.Register(s)
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if registry.Count() != 1 {
		t.Errorf("expected count 1, got %d", registry.Count())
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	logger := zap.NewNop()
	registry := NewRegistry(logger)

	manifest := &Manifest{
		Name: "test-splitter",
		Game: "Hollow Knight",
		dir:  "/tmp/test",
	}

	first := &Splitter{
		Manifest: manifest,
	}

	second := &Splitter{
		Manifest: manifest,
	}

	err := registry.Register(first)
	if err != nil {
		t.Fatalf("First Register() failed: %v", err)
	}

	err = registry.Register(second)
	if err == nil {
		t.Fatal("Register() should fail for duplicate splitter")
	}

	_, ok := err.(*AlreadyRegisteredError)
	if !ok {
		t.Errorf("expected AlreadyRegisteredError, got %T", err)
	}
}

func TestRegistry_Get(t *testing.T) {
	logger := zap.NewNop()
	registry := NewRegistry(logger)

	manifest := &Manifest{
		Name: "test-splitter",
		Game: "Hollow Knight",
		dir:  "/tmp/test",
	}

	s := &Splitter{
		Manifest: manifest,
	}

	_, ok := registry.Get("test-splitter")
	if ok {
		t.Error("Get() should return false for non-existent splitter")
	}

	registry.Register(s)

	retrieved, ok := registry.Get("test-splitter")
	if !ok {
		t.Fatal("Get() should return true for existing splitter")
	}

	if retrieved.Name() != "test-splitter" {
		t.Errorf("expected name 'test-splitter', got '%s'", retrieved.Name())
	}
}

func TestRegistry_LookupByGame(t *testing.T) {
	logger := zap.NewNop()
	registry := NewRegistry(logger)

	hollowKnight := &Splitter{
		Manifest: &Manifest{
			Name: "hollow-knight",
			Game: "Hollow Knight",
			dir:  "/tmp/hk",
		},
	}

	celeste := &Splitter{
		Manifest: &Manifest{
			Name: "celeste",
			Game: "Celeste",
			dir:  "/tmp/celeste",
		},
	}

	registry.Register(hollowKnight)
	registry.Register(celeste)

	hkSplitters := registry.LookupByGame("Hollow Knight")
	if len(hkSplitters) != 1 {
		t.Errorf("expected 1 Hollow Knight splitter, got %d", len(hkSplitters))
	}

	if len(hkSplitters) > 0 && hkSplitters[0].Name() != "hollow-knight" {
		t.Errorf("expected name 'hollow-knight', got '%s'", hkSplitters[0].Name())
	}

	celesteSplitters := registry.LookupByGame("Celeste")
	if len(celesteSplitters) != 1 {
		t.Errorf("expected 1 Celeste splitter, got %d", len(celesteSplitters))
	}

	unknown := registry.LookupByGame("Unknown Game")
	if len(unknown) != 0 {
		t.Errorf("expected 0 splitters for unknown game, got %d", len(unknown))
	}
}

func TestRegistry_List(t *testing.T) {
	logger := zap.NewNop()
	registry := NewRegistry(logger)

	list := registry.List()
	if len(list) != 0 {
		t.Errorf("expected 0 splitters, got %d", len(list))
	}

	registry.Register(&Splitter{
		Manifest: &Manifest{
			Name: "splitter1",
			Game: "Game One",
			dir:  "/tmp/s1",
		},
	})

	registry.Register(&Splitter{
		Manifest: &Manifest{
			Name: "splitter2",
			Game: "Game Two",
			dir:  "/tmp/s2",
		},
	})

	list = registry.List()
	if len(list) != 2 {
		t.Errorf("expected 2 splitters, got %d", len(list))
	}
}

func TestRegistry_Unregister(t *testing.T) {
	logger := zap.NewNop()
	registry := NewRegistry(logger)

	manifest := &Manifest{
		Name: "test-splitter",
		Game: "Hollow Knight",
		dir:  "/tmp/test",
	}

	s := &Splitter{
		Manifest: manifest,
	}

	registry.Register(s)

	if registry.Count() != 1 {
		t.Errorf("expected count 1, got %d", registry.Count())
	}

	registry.Unregister("test-splitter")

	if registry.Count() != 0 {
		t.Errorf("expected count 0, got %d", registry.Count())
	}

	_, ok := registry.Get("test-splitter")
	if ok {
		t.Error("Get() should return false after unregister")
	}

	if len(registry.LookupByGame("Hollow Knight")) != 0 {
		t.Error("game index should be empty after unregister")
	}
}
