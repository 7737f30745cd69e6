package wasm

import (
	"context"
	"testing"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap/zaptest"

	"github.com/tickloop/autosplit/pkg/mem"
	"github.com/tickloop/autosplit/pkg/timer"
)

// newGuest instantiates the memory-exporting module so host functions have
// real guest memory to read arguments from.
func newGuest(t *testing.T, mgr *InstanceManager) api.Module {
	t.Helper()
	ctx := context.Background()

	loader := NewModuleLoader(mgr.runtime, zaptest.NewLogger(t))
	if _, err := loader.LoadModuleFromMemory(ctx, "guest", memoryModule); err != nil {
		t.Fatal(err)
	}
	instance, err := mgr.Instantiate(ctx, &InstanceConfig{ModuleName: "guest"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { instance.Close(context.Background()) })
	return instance.module
}

// writeGuest places s into guest memory at ptr and returns its length.
func writeGuest(t *testing.T, mod api.Module, ptr uint32, s string) uint32 {
	t.Helper()
	if !mod.Memory().Write(ptr, []byte(s)) {
		t.Fatalf("failed to write %q into guest memory at %d", s, ptr)
	}
	return uint32(len(s))
}

func TestHostTimerControls(t *testing.T) {
	ctx := context.Background()
	mgr, tm, _ := newTestManager(t, &fakeProvider{})
	guest := newGuest(t, mgr)
	h := mgr.host

	if got := h.timerGetState(ctx, guest); got != uint32(timer.NotRunning) {
		t.Fatalf("initial state = %d, want not-running", got)
	}

	h.timerStart(ctx, guest)
	if tm.Phase() != timer.Running {
		t.Fatalf("phase = %s after timer_start", tm.Phase())
	}

	h.timerSetGameTime(ctx, guest, 90, 500_000_000)
	gt, ok := tm.GameTime()
	if !ok || gt != 90*time.Second+500*time.Millisecond {
		t.Errorf("game time = %v, %v", gt, ok)
	}

	h.timerPauseGameTime(ctx, guest)
	if !tm.GameTimePaused() {
		t.Error("game time not paused")
	}
	h.timerResumeGameTime(ctx, guest)
	if tm.GameTimePaused() {
		t.Error("game time still paused")
	}

	h.timerSplit(ctx, guest)
	if tm.SplitIndex() != 1 {
		t.Errorf("split index = %d, want 1", tm.SplitIndex())
	}

	h.timerReset(ctx, guest)
	if got := h.timerGetState(ctx, guest); got != uint32(timer.NotRunning) {
		t.Errorf("state after reset = %d, want not-running", got)
	}
}

func TestHostSetVariable(t *testing.T) {
	ctx := context.Background()
	mgr, tm, _ := newTestManager(t, &fakeProvider{})
	guest := newGuest(t, mgr)
	h := mgr.host

	keyLen := writeGuest(t, guest, 16, "chapter")
	valLen := writeGuest(t, guest, 64, "3")
	h.timerSetVariable(ctx, guest, 16, keyLen, 64, valLen)

	v, ok := tm.Variable("chapter")
	if !ok || v != "3" {
		t.Errorf("Variable = %q, %v, want \"3\", true", v, ok)
	}

	// Out-of-bounds key pointer must be rejected, not panic.
	h.timerSetVariable(ctx, guest, 0xFFFF0000, 8, 64, valLen)
}

func TestHostProcessSurface(t *testing.T) {
	ctx := context.Background()

	target := mem.NewMapProcess()
	game := make([]byte, 0x100)
	game[0x40] = 0x2A
	target.MapModule("game.exe", 0x400000, game)

	provider := &fakeProvider{procs: map[string]mem.Process{"game.exe": target}}
	mgr, _, _ := newTestManager(t, provider)
	guest := newGuest(t, mgr)
	h := mgr.host

	nameLen := writeGuest(t, guest, 16, "game.exe")

	// Attach to a process that is not running yet.
	missingLen := writeGuest(t, guest, 128, "other.exe")
	if handle := h.processAttach(ctx, guest, 128, missingLen); handle != 0 {
		t.Errorf("attach to missing target returned handle %d", handle)
	}

	handle := h.processAttach(ctx, guest, 16, nameLen)
	if handle == 0 {
		t.Fatal("attach to running target failed")
	}

	if h.processIsOpen(ctx, guest, handle) != 1 {
		t.Error("attached target should be open")
	}

	if addr := h.processGetModuleAddress(ctx, guest, handle, 16, nameLen); addr != 0x400000 {
		t.Errorf("module address = %#x, want 0x400000", addr)
	}
	if size := h.processGetModuleSize(ctx, guest, handle, 16, nameLen); size != 0x100 {
		t.Errorf("module size = %#x, want 0x100", size)
	}

	// Read target memory into a guest buffer.
	if ok := h.processRead(ctx, guest, handle, 0x400040, 256, 1); ok != 1 {
		t.Fatal("process_read failed")
	}
	got, ok := guest.Memory().ReadByte(256)
	if !ok || got != 0x2A {
		t.Errorf("guest buffer byte = %#x, %v, want 0x2A", got, ok)
	}

	// Unmapped target address fails cleanly.
	if ok := h.processRead(ctx, guest, handle, 0x500000, 256, 4); ok != 0 {
		t.Error("read of unmapped target memory should fail")
	}

	// Guest-supplied lengths are rejected before anything is allocated.
	if ok := h.processRead(ctx, guest, handle, 0x400000, 0, 0xFFFFFFFF); ok != 0 {
		t.Error("oversized read length should fail")
	}
	memSize := guest.Memory().Size()
	if ok := h.processRead(ctx, guest, handle, 0x400000, memSize-1, 2); ok != 0 {
		t.Error("read past the end of guest memory should fail")
	}
	if len(h.scratch) >= 1<<20 {
		t.Errorf("scratch buffer grew to %d bytes from rejected lengths", len(h.scratch))
	}

	// Target exit flips is_open.
	target.Close()
	if h.processIsOpen(ctx, guest, handle) != 0 {
		t.Error("exited target should not be open")
	}

	h.processDetach(ctx, guest, handle)
	if h.processIsOpen(ctx, guest, handle) != 0 {
		t.Error("detached handle should not be open")
	}
	if ok := h.processRead(ctx, guest, handle, 0x400040, 256, 1); ok != 0 {
		t.Error("read through a detached handle should fail")
	}
}

func TestHostUserSettings(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t, &fakeProvider{})
	guest := newGuest(t, mgr)
	h := mgr.host

	keyLen := writeGuest(t, guest, 16, "il_mode")
	descLen := writeGuest(t, guest, 64, "Individual level mode")

	// First registration takes the declared default.
	if got := h.userSettingsAddBool(ctx, guest, 16, keyLen, 64, descLen, 1); got != 1 {
		t.Errorf("setting value = %d, want default 1", got)
	}

	// Configuration preset wins over the default on re-registration.
	h.SetSetting("il_mode", false)
	if got := h.userSettingsAddBool(ctx, guest, 16, keyLen, 64, descLen, 1); got != 0 {
		t.Errorf("setting value = %d, want preset 0", got)
	}

	s, ok := h.Settings()["il_mode"]
	if !ok {
		t.Fatal("setting not registered")
	}
	if s.Description != "Individual level mode" || !s.Default {
		t.Errorf("setting metadata = %+v", s)
	}
}

func TestHostTickRate(t *testing.T) {
	ctx := context.Background()
	mgr, _, ticks := newTestManager(t, &fakeProvider{})
	guest := newGuest(t, mgr)
	h := mgr.host

	h.runtimeSetTickRate(ctx, guest, 120)
	if ticks.rate != 120 {
		t.Errorf("tick rate = %v, want 120", ticks.rate)
	}

	h.runtimeSetTickRate(ctx, guest, -1)
	if ticks.rate != 120 {
		t.Errorf("non-positive rate must be ignored, got %v", ticks.rate)
	}
}

func TestHostPrintMessage(t *testing.T) {
	ctx := context.Background()
	mgr, _, _ := newTestManager(t, &fakeProvider{})
	guest := newGuest(t, mgr)
	h := mgr.host

	msgLen := writeGuest(t, guest, 16, "entered boss room")
	h.runtimePrintMessage(ctx, guest, 16, msgLen)

	// Out of bounds is rejected, not a panic.
	h.runtimePrintMessage(ctx, guest, 0xFFFF0000, 32)
}
