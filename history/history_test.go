package history

import (
	"bytes"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func snap(s string) Snapshot { return Snapshot(s) }

func TestUndoEmptyIsNoop(t *testing.T) {
	s := New()
	if _, ok := s.Undo(snap("current")); ok {
		t.Fatal("Undo on empty stack should report false")
	}
	if s.UndoDepth() != 0 || s.RedoDepth() != 0 {
		t.Errorf("stacks changed: undo=%d redo=%d", s.UndoDepth(), s.RedoDepth())
	}
}

func TestRedoEmptyIsNoop(t *testing.T) {
	s := New()
	if _, ok := s.Redo(snap("current")); ok {
		t.Fatal("Redo on empty stack should report false")
	}
}

func TestPushClearsRedo(t *testing.T) {
	s := New()
	s.Push(snap("s1"))
	s.Push(snap("s2"))
	if _, ok := s.Undo(snap("cur")); !ok {
		t.Fatal("Undo failed")
	}
	if !s.CanRedo() {
		t.Fatal("expected redo available after undo")
	}
	// A fresh mutation invalidates the redo branch.
	s.Push(snap("s3"))
	if s.CanRedo() {
		t.Error("redo stack should be empty after a fresh mutation")
	}
	if _, ok := s.Redo(snap("cur")); ok {
		t.Error("Redo after fresh mutation should report false")
	}
}

func TestUndoRedoSequence(t *testing.T) {
	s := New()
	// Push S1, mutate, push S2, mutate. Current state is "final".
	s.Push(snap("s1"))
	s.Push(snap("s2"))

	got, ok := s.Undo(snap("final"))
	if !ok || !bytes.Equal(got, snap("s2")) {
		t.Fatalf("first Undo = %q, %v; want s2", got, ok)
	}
	got, ok = s.Undo(snap("s2"))
	if !ok || !bytes.Equal(got, snap("s1")) {
		t.Fatalf("second Undo = %q, %v; want s1", got, ok)
	}

	got, ok = s.Redo(snap("s1"))
	if !ok || !bytes.Equal(got, snap("s2")) {
		t.Fatalf("first Redo = %q, %v; want s2", got, ok)
	}
	got, ok = s.Redo(snap("s2"))
	if !ok || !bytes.Equal(got, snap("final")) {
		t.Fatalf("second Redo = %q, %v; want final", got, ok)
	}
}

func TestDepthCapDropsOldest(t *testing.T) {
	s := NewWithDepth(3)
	for i := 0; i < 5; i++ {
		s.Push(snap(fmt.Sprintf("s%d", i)))
	}
	if s.UndoDepth() != 3 {
		t.Fatalf("UndoDepth = %d, want 3", s.UndoDepth())
	}
	// Most recent entries survive.
	for _, want := range []string{"s4", "s3", "s2"} {
		got, ok := s.Undo(snap("cur"))
		if !ok || string(got) != want {
			t.Fatalf("Undo = %q, %v; want %q", got, ok, want)
		}
	}
	if s.CanUndo() {
		t.Error("oldest snapshots should have been dropped")
	}
}

// Round-trip law: N mutations each preceded by Push, then N undos return to
// the pre-sequence state and N redos replay forward to the final state.
func TestRoundTripLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")

		states := make([]Snapshot, n+1)
		for i := range states {
			states[i] = snap(fmt.Sprintf("state-%d", i))
		}

		s := NewWithDepth(n + 1)
		current := states[0]
		for i := 1; i <= n; i++ {
			s.Push(current) // pre-image of the mutation
			current = states[i]
		}

		for i := n - 1; i >= 0; i-- {
			got, ok := s.Undo(current)
			if !ok {
				t.Fatalf("Undo %d failed", n-1-i)
			}
			current = got
		}
		if !bytes.Equal(current, states[0]) {
			t.Fatalf("after %d undos: %q, want %q", n, current, states[0])
		}

		for i := 1; i <= n; i++ {
			got, ok := s.Redo(current)
			if !ok {
				t.Fatalf("Redo %d failed", i)
			}
			current = got
		}
		if !bytes.Equal(current, states[n]) {
			t.Fatalf("after %d redos: %q, want %q", n, current, states[n])
		}
	})
}
