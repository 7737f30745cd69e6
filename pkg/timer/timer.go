// Package timer implements the run timer an auto splitter drives: a small
// phase machine with a game-time clock and attempt-scoped variables.
package timer

import (
	"time"

	"go.uber.org/zap"
)

// Phase is the timer's lifecycle state as splitters observe it.
type Phase int32

const (
	NotRunning Phase = iota
	Running
	Paused
	Ended
)

func (p Phase) String() string {
	switch p {
	case NotRunning:
		return "not-running"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Timer is the run timer. It follows the same single-threaded cooperative
// model as the rest of the system: the host tick loop is the only caller,
// so there is no internal locking.
type Timer struct {
	logger *zap.Logger

	phase      Phase
	splitIndex int
	// segments is the number of splits that ends a run; zero means the run
	// is open ended and only Reset leaves the Running phase.
	segments int

	startedAt time.Time
	pausedAt  time.Time
	pausedFor time.Duration

	gameTime       time.Duration
	gameTimeSet    bool
	gameTimePaused bool

	variables map[string]string
}

// New creates a timer in the NotRunning phase.
func New(logger *zap.Logger) *Timer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timer{
		logger:    logger,
		variables: make(map[string]string),
	}
}

// SetSegments declares how many splits complete a run. The final split moves
// the timer to Ended. Zero keeps the run open ended.
func (t *Timer) SetSegments(n int) {
	if n < 0 {
		n = 0
	}
	t.segments = n
}

// Phase returns the current lifecycle state.
func (t *Timer) Phase() Phase {
	return t.phase
}

// SplitIndex returns the number of splits taken in the current attempt.
func (t *Timer) SplitIndex() int {
	return t.splitIndex
}

// Start begins a new attempt. It only acts in the NotRunning phase and
// reports whether the attempt started.
func (t *Timer) Start() bool {
	if t.phase != NotRunning {
		return false
	}
	t.phase = Running
	t.splitIndex = 0
	t.startedAt = time.Now()
	t.pausedFor = 0
	t.gameTime = 0
	t.gameTimeSet = false
	t.gameTimePaused = false
	clear(t.variables)
	t.logger.Info("attempt started")
	return true
}

// Split completes the current segment. It only acts while Running; the final
// segment ends the run.
func (t *Timer) Split() bool {
	if t.phase != Running {
		return false
	}
	t.splitIndex++
	if t.segments > 0 && t.splitIndex >= t.segments {
		t.phase = Ended
		t.logger.Info("run ended",
			zap.Int("splits", t.splitIndex),
			zap.Duration("real_time", t.RealTime()))
		return true
	}
	t.logger.Info("split",
		zap.Int("index", t.splitIndex),
		zap.Duration("real_time", t.RealTime()))
	return true
}

// Reset abandons the current attempt from any phase.
func (t *Timer) Reset() {
	if t.phase == NotRunning {
		return
	}
	t.logger.Info("attempt reset",
		zap.Stringer("phase", t.phase),
		zap.Int("splits", t.splitIndex))
	t.phase = NotRunning
	t.splitIndex = 0
	t.gameTime = 0
	t.gameTimeSet = false
	t.gameTimePaused = false
}

// Pause freezes real time. This is a host-side control, not part of the
// splitter ABI.
func (t *Timer) Pause() bool {
	if t.phase != Running {
		return false
	}
	t.phase = Paused
	t.pausedAt = time.Now()
	t.logger.Info("timer paused", zap.Duration("real_time", t.RealTime()))
	return true
}

// Resume continues a paused attempt.
func (t *Timer) Resume() bool {
	if t.phase != Paused {
		return false
	}
	t.pausedFor += time.Since(t.pausedAt)
	t.phase = Running
	t.logger.Info("timer resumed")
	return true
}

// RealTime returns wall time elapsed in the current attempt, excluding
// paused stretches.
func (t *Timer) RealTime() time.Duration {
	switch t.phase {
	case NotRunning:
		return 0
	case Paused:
		return t.pausedAt.Sub(t.startedAt) - t.pausedFor
	default:
		return time.Since(t.startedAt) - t.pausedFor
	}
}

// SetGameTime sets the game-time clock. Splitters that read an in-game
// timer call this every tick.
func (t *Timer) SetGameTime(d time.Duration) {
	t.gameTime = d
	t.gameTimeSet = true
}

// GameTime returns the game-time clock and whether it has ever been set
// this attempt.
func (t *Timer) GameTime() (time.Duration, bool) {
	return t.gameTime, t.gameTimeSet
}

// PauseGameTime marks the game-time clock as paused (loading screens).
// Idempotent.
func (t *Timer) PauseGameTime() {
	if !t.gameTimePaused {
		t.gameTimePaused = true
		t.logger.Debug("game time paused")
	}
}

// ResumeGameTime unmarks the game-time pause. Idempotent.
func (t *Timer) ResumeGameTime() {
	if t.gameTimePaused {
		t.gameTimePaused = false
		t.logger.Debug("game time resumed")
	}
}

// GameTimePaused reports whether the game-time clock is currently paused.
func (t *Timer) GameTimePaused() bool {
	return t.gameTimePaused
}

// SetVariable publishes an attempt-scoped key/value pair. Variables are
// cleared when a new attempt starts.
func (t *Timer) SetVariable(key, value string) {
	t.variables[key] = value
}

// Variable reads back a published variable.
func (t *Timer) Variable(key string) (string, bool) {
	v, ok := t.variables[key]
	return v, ok
}
