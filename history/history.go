// Package history keeps bounded undo/redo stacks of canvas snapshots.
// It never touches pixels; snapshots are opaque blobs ordered by push time.
package history

// Snapshot is an immutable serialized canvas state. Once pushed it is owned
// by the stacks; callers must not mutate the backing slice.
type Snapshot []byte

// DefaultDepth caps the undo stack. Raster snapshots are large, so the
// oldest entry is dropped once the cap is reached.
const DefaultDepth = 50

type Stacks struct {
	undo  []Snapshot
	redo  []Snapshot
	depth int
}

func New() *Stacks {
	return NewWithDepth(DefaultDepth)
}

func NewWithDepth(depth int) *Stacks {
	if depth < 1 {
		depth = 1
	}
	return &Stacks{depth: depth}
}

// Push records the pre-image of a mutation. Any mutation that is not itself
// an undo/redo clears the redo stack. When the undo stack is at capacity the
// oldest snapshot is dropped.
func (s *Stacks) Push(snap Snapshot) {
	if len(s.undo) >= s.depth {
		n := copy(s.undo, s.undo[len(s.undo)-s.depth+1:])
		s.undo = s.undo[:n]
	}
	s.undo = append(s.undo, snap)
	s.redo = s.redo[:0]
}

// Undo pops the most recent pre-image and pushes current onto the redo
// stack. Returns false with both stacks unchanged when there is nothing to
// undo. Restoring the returned snapshot onto the canvas is the caller's job.
func (s *Stacks) Undo(current Snapshot) (Snapshot, bool) {
	if len(s.undo) == 0 {
		return nil, false
	}
	top := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, current)
	return top, true
}

// Redo is symmetric to Undo.
func (s *Stacks) Redo(current Snapshot) (Snapshot, bool) {
	if len(s.redo) == 0 {
		return nil, false
	}
	top := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, current)
	return top, true
}

func (s *Stacks) UndoDepth() int { return len(s.undo) }
func (s *Stacks) RedoDepth() int { return len(s.redo) }

func (s *Stacks) CanUndo() bool { return len(s.undo) > 0 }
func (s *Stacks) CanRedo() bool { return len(s.redo) > 0 }
