package wasm

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/tickloop/autosplit/pkg/mem"
	"github.com/tickloop/autosplit/pkg/timer"
)

// ProcessProvider opens target processes by executable name. The host
// daemon plugs in the platform backend; tests plug in MapProcess factories.
type ProcessProvider interface {
	Open(name string) (mem.Process, error)
}

// TickController lets splitters adjust how often the host calls their
// update export.
type TickController interface {
	SetTickRate(hz float64)
}

// BoolSetting is a user-facing toggle a splitter registered.
type BoolSetting struct {
	Key         string
	Description string
	Default     bool
	Value       bool
}

// HostState implements the host side of the splitter ABI: the timer
// controls, the target-process surface, and the runtime controls splitters
// import. One HostState is shared by every instance; the tick loop is
// single-threaded, so there is no locking here.
type HostState struct {
	logger   *zap.Logger
	timer    *timer.Timer
	provider ProcessProvider
	ticks    TickController

	// Attached target processes, keyed by non-zero handle. Handle 0 is
	// the ABI's invalid value.
	processes  map[uint64]*attachedProcess
	nextHandle uint64

	settings map[string]*BoolSetting

	// scratch holds bytes in flight between a target read and the guest's
	// linear memory.
	scratch []byte
}

type attachedProcess struct {
	name string
	proc mem.Process
}

// NewHostState wires the ABI implementation to a timer, a process provider,
// and a tick controller.
func NewHostState(logger *zap.Logger, tm *timer.Timer, provider ProcessProvider, ticks TickController) *HostState {
	return &HostState{
		logger:     logger.With(zap.String("component", "wasm-host")),
		timer:      tm,
		provider:   provider,
		ticks:      ticks,
		processes:  make(map[uint64]*attachedProcess),
		nextHandle: 1,
		settings:   make(map[string]*BoolSetting),
	}
}

// Process returns the target process behind a handle. The host tick loop
// uses it to check liveness of what splitters attached to.
func (h *HostState) Process(handle uint64) (mem.Process, bool) {
	ap, ok := h.processes[handle]
	if !ok {
		return nil, false
	}
	return ap.proc, true
}

// Settings returns the registered user settings, keyed by setting key.
func (h *HostState) Settings() map[string]*BoolSetting {
	return h.settings
}

// SetSetting overrides a setting's value, creating it if the splitter has
// not registered it yet (configuration loads before instantiation).
func (h *HostState) SetSetting(key string, value bool) {
	if s, ok := h.settings[key]; ok {
		s.Value = value
		return
	}
	h.settings[key] = &BoolSetting{Key: key, Value: value}
}

// timer_start()
func (h *HostState) timerStart(ctx context.Context, mod api.Module) {
	h.timer.Start()
}

// timer_split()
func (h *HostState) timerSplit(ctx context.Context, mod api.Module) {
	h.timer.Split()
}

// timer_reset()
func (h *HostState) timerReset(ctx context.Context, mod api.Module) {
	h.timer.Reset()
}

// timer_pause_game_time()
func (h *HostState) timerPauseGameTime(ctx context.Context, mod api.Module) {
	h.timer.PauseGameTime()
}

// timer_resume_game_time()
func (h *HostState) timerResumeGameTime(ctx context.Context, mod api.Module) {
	h.timer.ResumeGameTime()
}

// timer_set_game_time(secs, nanos)
func (h *HostState) timerSetGameTime(ctx context.Context, mod api.Module, secs uint64, nanos uint32) {
	h.timer.SetGameTime(time.Duration(secs)*time.Second + time.Duration(nanos))
}

// timer_get_state() -> state
func (h *HostState) timerGetState(ctx context.Context, mod api.Module) uint32 {
	return uint32(h.timer.Phase())
}

// timer_set_variable(key_ptr, key_len, value_ptr, value_len)
func (h *HostState) timerSetVariable(ctx context.Context, mod api.Module, keyPtr, keyLen, valPtr, valLen uint32) {
	key, ok := guestString(mod, keyPtr, keyLen)
	if !ok {
		h.logger.Error("timer_set_variable: key out of guest memory bounds",
			zap.Uint32("ptr", keyPtr), zap.Uint32("len", keyLen))
		return
	}
	val, ok := guestString(mod, valPtr, valLen)
	if !ok {
		h.logger.Error("timer_set_variable: value out of guest memory bounds",
			zap.Uint32("ptr", valPtr), zap.Uint32("len", valLen))
		return
	}
	h.timer.SetVariable(key, val)
}

// process_attach(name_ptr, name_len) -> handle (0 on failure)
func (h *HostState) processAttach(ctx context.Context, mod api.Module, namePtr, nameLen uint32) uint64 {
	name, ok := guestString(mod, namePtr, nameLen)
	if !ok {
		h.logger.Error("process_attach: name out of guest memory bounds")
		return 0
	}

	proc, err := h.provider.Open(name)
	if err != nil {
		h.logger.Debug("process_attach: target not available",
			zap.String("process", name), zap.Error(err))
		return 0
	}

	handle := h.nextHandle
	h.nextHandle++
	h.processes[handle] = &attachedProcess{name: name, proc: proc}

	h.logger.Info("splitter attached to target",
		zap.String("process", name), zap.Uint64("handle", handle))
	return handle
}

// process_detach(handle)
func (h *HostState) processDetach(ctx context.Context, mod api.Module, handle uint64) {
	ap, ok := h.processes[handle]
	if !ok {
		return
	}
	delete(h.processes, handle)
	if closer, ok := ap.proc.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			h.logger.Warn("failed to close detached target",
				zap.String("process", ap.name), zap.Error(err))
		}
	}
	h.logger.Info("splitter detached from target",
		zap.String("process", ap.name), zap.Uint64("handle", handle))
}

// process_is_open(handle) -> bool
func (h *HostState) processIsOpen(ctx context.Context, mod api.Module, handle uint64) uint32 {
	ap, ok := h.processes[handle]
	if !ok {
		return 0
	}
	if probe, ok := ap.proc.(interface{ IsOpen() bool }); ok && !probe.IsOpen() {
		return 0
	}
	return 1
}

// process_read(handle, address, buf_ptr, buf_len) -> bool
func (h *HostState) processRead(ctx context.Context, mod api.Module, handle, addr uint64, bufPtr, bufLen uint32) uint32 {
	ap, ok := h.processes[handle]
	if !ok {
		return 0
	}

	// bufLen is guest controlled; validate the destination range before
	// sizing the scratch buffer, so a bad length cannot balloon the host.
	memSize := mod.Memory().Size()
	if bufLen > memSize || bufPtr > memSize-bufLen {
		h.logger.Error("process_read: destination out of guest memory bounds",
			zap.Uint32("ptr", bufPtr), zap.Uint32("len", bufLen))
		return 0
	}

	if uint32(len(h.scratch)) < bufLen {
		h.scratch = make([]byte, bufLen)
	}
	buf := h.scratch[:bufLen]

	if err := ap.proc.ReadInto(mem.Address(addr), buf); err != nil {
		return 0
	}
	if !guestWrite(mod, bufPtr, buf) {
		h.logger.Error("process_read: destination out of guest memory bounds",
			zap.Uint32("ptr", bufPtr), zap.Uint32("len", bufLen))
		return 0
	}
	return 1
}

// process_get_module_address(handle, name_ptr, name_len) -> address (0 on failure)
func (h *HostState) processGetModuleAddress(ctx context.Context, mod api.Module, handle uint64, namePtr, nameLen uint32) uint64 {
	base, _, ok := h.moduleRange(mod, handle, namePtr, nameLen)
	if !ok {
		return 0
	}
	return uint64(base)
}

// process_get_module_size(handle, name_ptr, name_len) -> size (0 on failure)
func (h *HostState) processGetModuleSize(ctx context.Context, mod api.Module, handle uint64, namePtr, nameLen uint32) uint64 {
	_, size, ok := h.moduleRange(mod, handle, namePtr, nameLen)
	if !ok {
		return 0
	}
	return size
}

func (h *HostState) moduleRange(mod api.Module, handle uint64, namePtr, nameLen uint32) (mem.Address, uint64, bool) {
	ap, ok := h.processes[handle]
	if !ok {
		return mem.Null, 0, false
	}
	name, ok := guestString(mod, namePtr, nameLen)
	if !ok {
		return mem.Null, 0, false
	}
	base, size, err := ap.proc.ModuleRange(name)
	if err != nil {
		return mem.Null, 0, false
	}
	return base, size, true
}

// runtime_set_tick_rate(rate)
func (h *HostState) runtimeSetTickRate(ctx context.Context, mod api.Module, rate float64) {
	if rate <= 0 {
		h.logger.Warn("runtime_set_tick_rate: ignoring non-positive rate",
			zap.Float64("rate", rate))
		return
	}
	h.ticks.SetTickRate(rate)
}

// runtime_print_message(ptr, len)
func (h *HostState) runtimePrintMessage(ctx context.Context, mod api.Module, ptr, length uint32) {
	msg, ok := guestString(mod, ptr, length)
	if !ok {
		h.logger.Error("runtime_print_message: message out of guest memory bounds",
			zap.Uint32("ptr", ptr), zap.Uint32("len", length))
		return
	}
	h.logger.Info("splitter: " + msg)
}

// user_settings_add_bool(key_ptr, key_len, desc_ptr, desc_len, default) -> value
func (h *HostState) userSettingsAddBool(ctx context.Context, mod api.Module, keyPtr, keyLen, descPtr, descLen, defaultValue uint32) uint32 {
	key, ok := guestString(mod, keyPtr, keyLen)
	if !ok {
		return 0
	}
	desc, _ := guestString(mod, descPtr, descLen)

	if s, ok := h.settings[key]; ok {
		// Registered before (or preset by configuration); keep the stored
		// value, refresh the metadata.
		s.Description = desc
		s.Default = defaultValue != 0
		if s.Value {
			return 1
		}
		return 0
	}

	s := &BoolSetting{
		Key:         key,
		Description: desc,
		Default:     defaultValue != 0,
		Value:       defaultValue != 0,
	}
	h.settings[key] = s
	if s.Value {
		return 1
	}
	return 0
}
