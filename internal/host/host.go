package host

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tickloop/autosplit/internal/config"
	"github.com/tickloop/autosplit/internal/splitter"
	"github.com/tickloop/autosplit/internal/wasm"
	"github.com/tickloop/autosplit/pkg/timer"
)

// maxConsecutiveFailures is how many ticks in a row a splitter may fail
// before the host deactivates it. Transient failures (target not started
// yet, a read racing a level load) are expected and retried.
const maxConsecutiveFailures = 60

// Host is the autosplit daemon: it owns the Wasm runtime, the shared
// timer, and the tick loop that drives every active splitter.
type Host struct {
	cfg     *config.HostConfig
	logger  *zap.Logger
	runtime *wasm.Runtime
	state   *wasm.HostState
	manager *splitter.Manager
	timer   *timer.Timer

	// Tick interval in nanoseconds. Splitters adjust it through
	// runtime_set_tick_rate, so the loop re-reads it every tick.
	intervalNs atomic.Int64

	tickTimeout time.Duration

	active []*activeSplitter
}

// activeSplitter is an instantiated splitter the tick loop drives.
type activeSplitter struct {
	name     string
	instance *wasm.Instance
	failures int
}

// New builds a host from configuration. The process provider is the
// platform backend splitters attach to targets through.
func New(ctx context.Context, cfg *config.HostConfig, provider wasm.ProcessProvider, logger *zap.Logger) (*Host, error) {
	runtimeConfig := &wasm.RuntimeConfig{
		MemoryPages:  cfg.Wasm.MemoryPages,
		DebugEnabled: cfg.Wasm.Debug,
		CacheDir:     cfg.Wasm.CacheDir,
		MaxInstances: cfg.Wasm.MaxInstances,
	}

	runtime, err := wasm.NewRuntime(ctx, logger, runtimeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	tm := timer.New(logger)

	h := &Host{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "host")),
		runtime: runtime,
		timer:   tm,
	}

	h.SetTickRate(cfg.TickRate)
	if h.intervalNs.Load() == 0 {
		h.SetTickRate(120)
	}

	h.tickTimeout = time.Duration(cfg.Wasm.TickTimeout) * time.Millisecond
	if h.tickTimeout <= 0 {
		h.tickTimeout = time.Second
	}

	h.state = wasm.NewHostState(logger, tm, provider, h)
	h.manager = splitter.NewManager(cfg, runtime, h.state, logger)

	logger.Info("Autosplit host initialized",
		zap.Float64("tick_rate", cfg.TickRate),
		zap.Duration("tick_timeout", h.tickTimeout),
		zap.Uint32("wasm_memory_pages", cfg.Wasm.MemoryPages),
	)

	return h, nil
}

// Timer returns the shared run timer.
func (h *Host) Timer() *timer.Timer {
	return h.timer
}

// Manager returns the splitter manager.
func (h *Host) Manager() *splitter.Manager {
	return h.manager
}

// SetTickRate changes how often the tick loop runs, in updates per
// second. Non-positive rates are ignored.
func (h *Host) SetTickRate(hz float64) {
	if hz <= 0 {
		return
	}
	h.intervalNs.Store(int64(float64(time.Second) / hz))
}

// TickInterval returns the current tick interval.
func (h *Host) TickInterval() time.Duration {
	return time.Duration(h.intervalNs.Load())
}

// Pause pauses the run timer. Wired to a host-side control, not the
// splitter ABI.
func (h *Host) Pause() {
	if h.timer.Pause() {
		h.logger.Info("Timer paused")
	}
}

// Resume resumes a paused run timer.
func (h *Host) Resume() {
	if h.timer.Resume() {
		h.logger.Info("Timer resumed")
	}
}

// Run loads splitters, activates every one with an update export, and
// drives the tick loop until the context is cancelled.
func (h *Host) Run(ctx context.Context) error {
	if err := h.manager.LoadAll(ctx); err != nil {
		return err
	}

	// Configuration presets win over the defaults splitters register.
	for key, value := range h.cfg.Settings {
		h.state.SetSetting(key, value)
	}

	for _, s := range h.manager.Registry().List() {
		h.activate(ctx, s)
	}

	interval := h.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info("Tick loop started",
		zap.Duration("interval", interval),
		zap.Int("active_splitters", len(h.active)),
	)

	for {
		select {
		case <-ctx.Done():
			return h.shutdown()
		case <-ticker.C:
			h.tick(ctx)
			if next := h.TickInterval(); next != interval {
				h.logger.Info("Tick rate changed",
					zap.Duration("interval", next))
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// activate instantiates a loaded splitter and adds it to the tick loop.
func (h *Host) activate(ctx context.Context, s *splitter.Splitter) {
	instance, err := h.manager.Instantiate(ctx, s.Name())
	if err != nil {
		h.logger.Error("Failed to instantiate splitter",
			zap.String("splitter", s.Name()),
			zap.Error(err),
		)
		return
	}

	if !instance.HasUpdate() {
		h.logger.Warn("Splitter has no update export, skipping",
			zap.String("splitter", s.Name()),
		)
		instance.Close(ctx)
		return
	}

	// Settings registration happens before the first update. A failing
	// configure is not fatal; the splitter runs with defaults.
	if err := instance.Configure(ctx); err != nil {
		h.logger.Warn("Splitter configure failed",
			zap.String("splitter", s.Name()),
			zap.Error(err),
		)
	}

	if n := s.Manifest.Segments; n > 0 {
		h.timer.SetSegments(n)
	}

	h.active = append(h.active, &activeSplitter{
		name:     s.Name(),
		instance: instance,
	})

	h.logger.Info("Splitter activated",
		zap.String("splitter", s.Name()),
		zap.String("game", s.Game()),
		zap.String("instance_id", instance.ID),
	)
}

// tick runs one update of every active splitter.
func (h *Host) tick(ctx context.Context) {
	removed := false

	for _, a := range h.active {
		if a == nil {
			continue
		}
		if err := h.updateOne(ctx, a); err != nil {
			a.failures++
			h.logger.Warn("Splitter update failed",
				zap.String("splitter", a.name),
				zap.Int("consecutive_failures", a.failures),
				zap.Error(err),
			)
			if a.failures >= maxConsecutiveFailures {
				h.logger.Error("Deactivating splitter after repeated failures",
					zap.String("splitter", a.name),
				)
				a.instance.Close(ctx)
				removed = true
				for i := range h.active {
					if h.active[i] == a {
						h.active[i] = nil
					}
				}
			}
			continue
		}
		a.failures = 0
	}

	if removed {
		kept := h.active[:0]
		for _, a := range h.active {
			if a != nil {
				kept = append(kept, a)
			}
		}
		h.active = kept
	}
}

// updateOne runs a single splitter's update with the per-tick deadline.
func (h *Host) updateOne(ctx context.Context, a *activeSplitter) error {
	tickCtx, cancel := context.WithTimeout(ctx, h.tickTimeout)
	defer cancel()

	start := time.Now()
	err := a.instance.Update(tickCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return &wasm.TimeoutError{
			InstanceID: a.instance.ID,
			Duration:   time.Since(start),
		}
	}
	return err
}

// shutdown closes every active instance and the runtime.
func (h *Host) shutdown() error {
	h.logger.Info("Shutting down host")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, a := range h.active {
		if err := a.instance.Close(shutdownCtx); err != nil {
			h.logger.Warn("Failed to close instance",
				zap.String("splitter", a.name),
				zap.Error(err),
			)
		}
	}
	h.active = nil

	if err := h.manager.Shutdown(shutdownCtx); err != nil {
		return err
	}

	h.logger.Info("Host shutdown complete")
	return nil
}
