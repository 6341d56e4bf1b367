package domain

import "testing"

func expectInvariantPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic")
		}
		if _, ok := r.(InvariantViolation); !ok {
			t.Fatalf("expected InvariantViolation, got %T: %v", r, r)
		}
	}()
	fn()
}

func TestTicksArithmetic(t *testing.T) {
	if got := Ticks(480).Add(240); got != 720 {
		t.Fatalf("add: got %d", got)
	}
	if got := Ticks(480).Sub(480); got != 0 {
		t.Fatalf("sub: got %d", got)
	}
	if got, ok := (MaxTicks - 1).CheckedAdd(1); !ok || got != MaxTicks {
		t.Fatalf("checked add at boundary: %d %v", got, ok)
	}
	if _, ok := MaxTicks.CheckedAdd(1); ok {
		t.Fatalf("expected overflow")
	}
}

func TestTicksOverflowPanics(t *testing.T) {
	expectInvariantPanic(t, func() { MaxTicks.Add(1) })
	expectInvariantPanic(t, func() { Ticks(1).Sub(2) })
}
