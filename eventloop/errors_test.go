package eventloop

import (
	"errors"
	"fmt"
	"testing"
)

func TestFatal(t *testing.T) {
	if Fatal(KindIO, nil) != nil {
		t.Error("expected nil for nil error")
	}

	cause := errors.New("socket closed")
	err := Fatal(KindIO, cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be unwrapped")
	}
	if !IsFatalKind(err, KindIO) || IsFatalKind(err, KindGPU) {
		t.Errorf("unexpected kind for %v", err)
	}
	if got, want := err.Error(), "eventloop: fatal io error: socket closed"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// the innermost classification wins
	wrapped := fmt.Errorf("context: %w", err)
	if again := Fatal(KindProtocol, wrapped); again != wrapped || !IsFatalKind(again, KindIO) {
		t.Errorf("expected existing fatal error to be kept, got %v", again)
	}
}

func TestFatalKind_String(t *testing.T) {
	for kind, want := range map[FatalKind]string{
		KindSetup:     "setup",
		KindProtocol:  "protocol",
		KindGPU:       "gpu",
		KindIO:        "io",
		FatalKind(99): "FatalKind(99)",
	} {
		if got := kind.String(); got != want {
			t.Errorf("%d: got %q, want %q", int(kind), got, want)
		}
	}
}

func TestPanicError(t *testing.T) {
	cause := errors.New("nil context")
	err := error(PanicError{Value: cause})
	if !errors.Is(err, cause) {
		t.Error("expected error panic value to unwrap")
	}
	if errors.Unwrap(PanicError{Value: "boom"}) != nil {
		t.Error("expected non-error panic value not to unwrap")
	}
	if got := (PanicError{Value: "boom"}).Error(); got != "eventloop: task panicked: boom" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestLoopState_String(t *testing.T) {
	for state, want := range map[LoopState]string{
		StateAwake:       "Awake",
		StateRunning:     "Running",
		StateSleeping:    "Sleeping",
		StateTerminating: "Terminating",
		StateTerminated:  "Terminated",
		LoopState(42):    "Unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestFastState_TransitionAny(t *testing.T) {
	s := NewFastState()
	from, ok := s.TransitionAny([]LoopState{StateRunning, StateSleeping}, StateTerminating)
	if ok || from != StateAwake {
		t.Fatalf("unexpected transition from %s", from)
	}
	from, ok = s.TransitionAny([]LoopState{StateAwake}, StateRunning)
	if !ok || from != StateAwake || !s.IsRunning() {
		t.Fatalf("expected Awake to Running, got %s %v", from, ok)
	}
	if s.Stopping() {
		t.Error("running is not stopping")
	}
	s.Store(StateTerminating)
	if !s.Stopping() || s.IsTerminal() {
		t.Error("expected stopping but not terminal")
	}
	s.Store(StateTerminated)
	if !s.Stopping() || !s.IsTerminal() {
		t.Error("expected terminal")
	}
}
