package timer

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestLifecycle(t *testing.T) {
	tm := New(zaptest.NewLogger(t))

	if tm.Phase() != NotRunning {
		t.Fatalf("initial phase = %s, want not-running", tm.Phase())
	}
	if tm.Split() {
		t.Error("Split must not act before the attempt starts")
	}

	if !tm.Start() {
		t.Fatal("Start failed from not-running")
	}
	if tm.Phase() != Running {
		t.Fatalf("phase after Start = %s, want running", tm.Phase())
	}
	if tm.Start() {
		t.Error("Start must not act while an attempt is running")
	}

	if !tm.Split() {
		t.Fatal("Split failed while running")
	}
	if tm.SplitIndex() != 1 {
		t.Errorf("SplitIndex = %d, want 1", tm.SplitIndex())
	}

	tm.Reset()
	if tm.Phase() != NotRunning || tm.SplitIndex() != 0 {
		t.Errorf("after Reset: phase = %s, splits = %d", tm.Phase(), tm.SplitIndex())
	}
}

func TestFinalSplitEndsRun(t *testing.T) {
	tm := New(zaptest.NewLogger(t))
	tm.SetSegments(2)
	tm.Start()

	tm.Split()
	if tm.Phase() != Running {
		t.Fatalf("phase after first split = %s, want running", tm.Phase())
	}
	tm.Split()
	if tm.Phase() != Ended {
		t.Fatalf("phase after final split = %s, want ended", tm.Phase())
	}

	if tm.Split() {
		t.Error("Split must not act after the run ended")
	}
	if tm.Start() {
		t.Error("Start must not act from ended; Reset first")
	}
	tm.Reset()
	if !tm.Start() {
		t.Error("Start failed after Reset")
	}
}

func TestPauseResume(t *testing.T) {
	tm := New(zaptest.NewLogger(t))

	if tm.Pause() {
		t.Error("Pause must not act before the attempt starts")
	}
	tm.Start()
	if !tm.Pause() {
		t.Fatal("Pause failed while running")
	}
	if tm.Phase() != Paused {
		t.Fatalf("phase = %s, want paused", tm.Phase())
	}

	frozen := tm.RealTime()
	time.Sleep(10 * time.Millisecond)
	if tm.RealTime() != frozen {
		t.Error("real time advanced while paused")
	}

	if !tm.Resume() {
		t.Fatal("Resume failed from paused")
	}
	if tm.Phase() != Running {
		t.Fatalf("phase = %s, want running", tm.Phase())
	}
}

func TestGameTime(t *testing.T) {
	tm := New(zaptest.NewLogger(t))
	tm.Start()

	if _, ok := tm.GameTime(); ok {
		t.Error("game time must be unset at attempt start")
	}

	tm.SetGameTime(90 * time.Second)
	gt, ok := tm.GameTime()
	if !ok || gt != 90*time.Second {
		t.Errorf("GameTime = %v, %v, want 90s, true", gt, ok)
	}

	tm.PauseGameTime()
	tm.PauseGameTime()
	if !tm.GameTimePaused() {
		t.Error("game time not paused")
	}
	tm.ResumeGameTime()
	if tm.GameTimePaused() {
		t.Error("game time still paused after resume")
	}

	tm.Reset()
	if _, ok := tm.GameTime(); ok {
		t.Error("game time must clear on reset")
	}
}

func TestVariablesClearPerAttempt(t *testing.T) {
	tm := New(zaptest.NewLogger(t))
	tm.Start()
	tm.SetVariable("chapter", "3")

	v, ok := tm.Variable("chapter")
	if !ok || v != "3" {
		t.Errorf("Variable = %q, %v, want \"3\", true", v, ok)
	}

	tm.Reset()
	tm.Start()
	if _, ok := tm.Variable("chapter"); ok {
		t.Error("variables must not survive into a new attempt")
	}
}

func TestNilLogger(t *testing.T) {
	tm := New(nil)
	tm.Start()
	tm.Split()
}
