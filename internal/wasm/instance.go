package wasm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// hostModuleName is the import namespace splitters link against.
const hostModuleName = "env"

// InstanceManager creates and manages splitter instances.
type InstanceManager struct {
	runtime *Runtime
	logger  *zap.Logger
	host    *HostState

	hostOnce sync.Once
	hostErr  error
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, host *HostState, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime: runtime,
		host:    host,
		logger:  logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, one is generated).
	InstanceID string
}

// Instance represents an instantiated splitter.
type Instance struct {
	// wazero module instance.
	module api.Module

	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached, looked up once at instantiation).
	exports map[string]api.Function
}

// Instantiate creates a new instance from a compiled module.
// The host ABI is registered on first use and shared by every instance.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	if max := m.runtime.config.MaxInstances; max > 0 && m.runtime.InstanceCount() >= max {
		return nil, fmt.Errorf("instance limit of %d reached", max)
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateInstanceID()
	}

	m.logger.Info("Instantiating splitter",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	// Instantiate the host ABI module once; its exports resolve the guest's
	// imports for every instance after.
	m.hostOnce.Do(func() {
		m.hostErr = m.instantiateHostModule(ctx)
	})
	if m.hostErr != nil {
		return nil, fmt.Errorf("failed to register host ABI: %w", m.hostErr)
	}

	// Instantiate the guest module. This creates a sandboxed execution
	// environment with its own linear memory.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions() // splitters initialize lazily from update

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	exports := cacheExportedFunctions(module)

	instance := &Instance{
		module:    module,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   exports,
	}

	m.runtime.StoreInstance(instanceID, module)

	m.logger.Info("Splitter instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
	)

	return instance, nil
}

// Update runs one tick of the splitter's logic.
func (i *Instance) Update(ctx context.Context) error {
	fn, ok := i.exports["update"]
	if !ok {
		return &FunctionNotFoundError{ModuleName: i.Name, FunctionName: "update"}
	}
	if _, err := fn.Call(ctx); err != nil {
		return fmt.Errorf("update of instance %s failed: %w", i.ID, err)
	}
	return nil
}

// Configure runs the splitter's optional configure export, which registers
// user settings before the first update. A splitter without one is fine.
func (i *Instance) Configure(ctx context.Context) error {
	fn, ok := i.exports["configure"]
	if !ok {
		return nil
	}
	if _, err := fn.Call(ctx); err != nil {
		return fmt.Errorf("configure of instance %s failed: %w", i.ID, err)
	}
	return nil
}

// HasUpdate reports whether the splitter exports the required entry point.
func (i *Instance) HasUpdate() bool {
	_, ok := i.exports["update"]
	return ok
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

// cacheExportedFunctions caches references to exported ABI entry points.
// This avoids a lookup on every tick.
func cacheExportedFunctions(module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)

	for _, name := range []string{"update", "configure"} {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	return exports
}

// instantiateHostModule registers the splitter ABI under the "env"
// namespace: timer controls, target-process access, and runtime controls.
func (m *InstanceManager) instantiateHostModule(ctx context.Context) error {
	h := m.host
	builder := m.runtime.runtime.NewHostModuleBuilder(hostModuleName)

	builder.NewFunctionBuilder().
		WithFunc(h.timerStart).
		Export("timer_start")

	builder.NewFunctionBuilder().
		WithFunc(h.timerSplit).
		Export("timer_split")

	builder.NewFunctionBuilder().
		WithFunc(h.timerReset).
		Export("timer_reset")

	builder.NewFunctionBuilder().
		WithFunc(h.timerPauseGameTime).
		Export("timer_pause_game_time")

	builder.NewFunctionBuilder().
		WithFunc(h.timerResumeGameTime).
		Export("timer_resume_game_time")

	builder.NewFunctionBuilder().
		WithFunc(h.timerSetGameTime).
		WithParameterNames("secs", "nanos").
		Export("timer_set_game_time")

	builder.NewFunctionBuilder().
		WithFunc(h.timerGetState).
		Export("timer_get_state")

	builder.NewFunctionBuilder().
		WithFunc(h.timerSetVariable).
		WithParameterNames("key_ptr", "key_len", "value_ptr", "value_len").
		Export("timer_set_variable")

	builder.NewFunctionBuilder().
		WithFunc(h.processAttach).
		WithParameterNames("name_ptr", "name_len").
		Export("process_attach")

	builder.NewFunctionBuilder().
		WithFunc(h.processDetach).
		WithParameterNames("handle").
		Export("process_detach")

	builder.NewFunctionBuilder().
		WithFunc(h.processIsOpen).
		WithParameterNames("handle").
		Export("process_is_open")

	builder.NewFunctionBuilder().
		WithFunc(h.processRead).
		WithParameterNames("handle", "address", "buf_ptr", "buf_len").
		Export("process_read")

	builder.NewFunctionBuilder().
		WithFunc(h.processGetModuleAddress).
		WithParameterNames("handle", "name_ptr", "name_len").
		Export("process_get_module_address")

	builder.NewFunctionBuilder().
		WithFunc(h.processGetModuleSize).
		WithParameterNames("handle", "name_ptr", "name_len").
		Export("process_get_module_size")

	builder.NewFunctionBuilder().
		WithFunc(h.runtimeSetTickRate).
		WithParameterNames("rate").
		Export("runtime_set_tick_rate")

	builder.NewFunctionBuilder().
		WithFunc(h.runtimePrintMessage).
		WithParameterNames("ptr", "len").
		Export("runtime_print_message")

	builder.NewFunctionBuilder().
		WithFunc(h.userSettingsAddBool).
		WithParameterNames("key_ptr", "key_len", "description_ptr", "description_len", "default_value").
		Export("user_settings_add_bool")

	_, err := builder.Instantiate(ctx)
	return err
}

var instanceCounter atomic.Uint64

// generateInstanceID generates a unique instance ID. The counter keeps IDs
// distinct even when two instantiations land in the same nanosecond, since
// the ID doubles as the wazero module name.
func generateInstanceID() string {
	return fmt.Sprintf("splitter-%d-%d", time.Now().UnixNano(), instanceCounter.Add(1))
}
