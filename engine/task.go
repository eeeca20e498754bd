// Package engine implements the per-task interpreter: the bit-addressed
// register file, the frame stack, and the instruction dispatch loop
// described in spec.md §4.1, §4.4 and §4.5. It has no notion of a
// World or of multiple concurrently attached contexts; that belongs to
// package runtime, which drives a Task's exported methods under its
// own mutex discipline.
package engine

import (
	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/regview"
)

// State is a task's coarse lifecycle state. The interpreter sets
// StateDone when the task halts; runtime sets it when it drops a
// killed task's frames.
type State int

const (
	StateReady State = iota
	StateRunning
	StateWaiting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ModuleMapEntry binds a task-local module-map slot to a loaded module,
// so instructions can reference other modules without carrying a full
// module pointer in every operand (spec.md §4.6's module map).
type ModuleMapEntry struct {
	Module *module.Module
	Anchor uint64
}

// Frame is one activation record on a task's frame stack: the proc
// being executed, the local cursor into its instruction slice, and the
// byte offset into the task's register buffer this frame's registers
// are based at.
type Frame struct {
	Mod       *module.Module
	ProcIdx   uint32
	Proc      *module.Proc
	Cursor    uint32
	RegBase   uint32
	ModMapIdx uint32
}

// Stats counts the growth events a task's buffers have gone through,
// exposed for tests that exercise spec.md §8 scenario 6 (frame/register
// growth-by-doubling).
type Stats struct {
	FrameGrowths uint32
	RegGrowths   uint32
	MemGrowths   uint32
}

// Task owns one register buffer, one frame stack, one linear memory
// region, and a task-local module map. Run and Enter mutate the
// registers, frames, memory and State; runtime appends to ModuleMap,
// sets Kill, and drops the frames of a killed task, and serializes
// concurrent access per spec.md §5's task mutex.
type Task struct {
	Id uint64

	Reg      []byte
	RegLimit uint32

	Frames []Frame

	Mem []byte

	ModuleMap []ModuleMapEntry

	State State

	// Kill is set by runtime's task_kill and observed only between
	// bursts (Run's caller re-invokes Run; it never checks mid-burst),
	// per spec.md §5's cooperative-cancellation note.
	Kill bool

	Stats Stats
}

// NewTask allocates a task with the given initial register buffer and
// frame-stack capacity. Both grow by doubling as Enter demands more
// (spec.md §4.5); initialRegSize and initialFrameCap of 0 fall back to
// small defaults rather than degenerate empty buffers.
func NewTask(id uint64, initialRegSize, initialFrameCap uint32) *Task {
	if initialRegSize == 0 {
		initialRegSize = 64
	}
	if initialFrameCap == 0 {
		initialFrameCap = 8
	}
	return &Task{
		Id:     id,
		Reg:    make([]byte, initialRegSize),
		RegLimit: initialRegSize,
		Frames: make([]Frame, 0, initialFrameCap),
		State:  StateReady,
	}
}

// View returns a bit-addressed view over the register bytes owned by
// the given frame, i.e. the bytes starting at frame.RegBase.
func (t *Task) View(f *Frame) regview.View {
	return regview.View{Buf: t.Reg[f.RegBase:]}
}

// Top returns the active frame, or nil if the task's frame stack is
// empty (it has returned out of its entry procedure).
func (t *Task) Top() *Frame {
	if len(t.Frames) == 0 {
		return nil
	}
	return &t.Frames[len(t.Frames)-1]
}

// ensureRegCapacity doubles the register buffer until it can hold
// `needed` bytes, copying the old contents forward. Frames address
// their registers by byte offset, not by pointer, so this never
// invalidates a live Frame.
func (t *Task) ensureRegCapacity(needed uint32) {
	if needed <= t.RegLimit {
		return
	}
	newLimit := t.RegLimit
	if newLimit == 0 {
		newLimit = 64
	}
	for newLimit < needed {
		newLimit *= 2
	}
	grown := make([]byte, newLimit)
	copy(grown, t.Reg)
	t.Reg = grown
	t.RegLimit = newLimit
	t.Stats.RegGrowths++
}

// ensureFrameCapacity doubles the frame stack's backing array until it
// can hold nextLen frames.
func (t *Task) ensureFrameCapacity(nextLen int) {
	if nextLen <= cap(t.Frames) {
		return
	}
	newCap := cap(t.Frames) * 2
	if newCap < nextLen {
		newCap = nextLen
	}
	if newCap == 0 {
		newCap = 1
	}
	grown := make([]Frame, len(t.Frames), newCap)
	copy(grown, t.Frames)
	t.Frames = grown
	t.Stats.FrameGrowths++
}

// ensureMemCapacity doubles the task's linear memory until it can hold
// `needed` bytes. Memory is addressed by the 64-bit value in an address
// register; it is a separate region from the register file (spec.md
// does not name it, but §4.4's RAN/RAA/RA4/RA5/RA6 classes need
// somewhere to load from and store to other than the register file
// itself, so this is the engine's concrete resolution of that gap).
func (t *Task) ensureMemCapacity(needed uint64) {
	if needed <= uint64(len(t.Mem)) {
		return
	}
	newLen := uint64(len(t.Mem))
	if newLen == 0 {
		newLen = 256
	}
	for newLen < needed {
		newLen *= 2
	}
	grown := make([]byte, newLen)
	copy(grown, t.Mem)
	t.Mem = grown
	t.Stats.MemGrowths++
}
