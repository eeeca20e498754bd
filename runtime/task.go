package runtime

import (
	"github.com/hazna-vm/hazna/engine"
	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/status"
)

// TaskState is the attach-lifecycle state spec.md §4.7 tracks per task,
// distinct from engine.State: engine.State says what the interpreter
// itself is doing (ready/running/waiting/done), while TaskState says
// where the task sits from the world's point of view (has it been
// claimed by a context, is it runnable, is something waiting on it).
type TaskState int

const (
	TaskSuspended TaskState = iota // unattached, or out of frames after a burst or kill
	TaskReady                      // attached, not currently being run
	TaskWaiting                    // attached, context blocked elsewhere
	TaskRunning                    // attached and inside a Run burst
)

func (s TaskState) String() string {
	switch s {
	case TaskSuspended:
		return "suspended"
	case TaskReady:
		return "ready"
	case TaskWaiting:
		return "waiting"
	case TaskRunning:
		return "running"
	default:
		return "unknown"
	}
}

// TaskEntry is a task as the world tracks it: the interpreter state
// engine.Task owns, plus the ownership/refcount/waiter bookkeeping
// spec.md §4.7 layers on top. These fields live here rather than on
// engine.Task itself because engine has no notion of a Context or of
// contention between them; keeping the split means engine.Task stays
// usable standalone (as the interpreter-level tests already do).
type TaskEntry struct {
	Task *engine.Task

	owner    *Context
	refcount int
	waiters  []*Context
	state    TaskState
}

// Owner reports the context currently attached to this task, or nil.
func (te *TaskEntry) Owner() *Context { return te.owner }

// State reports the task's current attach-lifecycle state.
func (te *TaskEntry) State() TaskState { return te.state }

// TaskCreate is the Core API's task_create: allocate a task with a
// fresh id, pre-map the world's core module (if any) into module-map
// slot 0, and register it Suspended in the world's task table with a
// starting refcount of one (spec.md §4.7).
func (w *World) TaskCreate(initialRegSize, initialFrameCap uint32) (*TaskEntry, *status.Status) {
	w.worldMu.Lock()
	w.alloc.TasksCreated++
	w.worldMu.Unlock()

	// moduleMu is acquired (and released) before taskMu, honoring the
	// world -> module -> task lock order even though this call also
	// needs the task table a moment later.
	w.moduleMu.Lock()
	core := w.core
	if core != nil {
		if rec, ok := w.modules[core.Id]; ok {
			rec.refcount++
		}
	}
	w.moduleMu.Unlock()

	w.taskMu.Lock()
	defer w.taskMu.Unlock()

	w.nextTaskID++
	id := w.nextTaskID
	t := engine.NewTask(id, initialRegSize, initialFrameCap)
	if core != nil {
		t.ModuleMap = append(t.ModuleMap, engine.ModuleMapEntry{Module: core})
	}

	te := &TaskEntry{Task: t, refcount: 1, state: TaskSuspended}
	w.tasks[id] = te
	w.queues[TaskSuspended] = append(w.queues[TaskSuspended], te)
	return te, nil
}

// TaskRef is task_ref: bump a task's reference count. Every holder of
// a *TaskEntry that outlives the call that obtained it (e.g. storing
// it for later attach) must hold its own reference.
func (w *World) TaskRef(te *TaskEntry) {
	w.taskMu.Lock()
	te.refcount++
	w.taskMu.Unlock()
}

// TaskDeref is task_deref: drop a reference, tearing the task down
// once the count reaches zero. A task with an attached owner cannot be
// torn down (status.State); the caller must detach first.
func (w *World) TaskDeref(te *TaskEntry) *status.Status {
	w.taskMu.Lock()
	te.refcount--
	if te.refcount > 0 {
		w.taskMu.Unlock()
		return nil
	}
	if te.owner != nil {
		// refcount hit zero while still attached: resurrect the single
		// reference the owner implicitly holds rather than freeing a
		// task out from under its current context.
		te.refcount = 1
		w.taskMu.Unlock()
		return status.New(status.State, "task still attached")
	}
	w.removeFromQueueLocked(te)
	delete(w.tasks, te.Task.Id)
	imported := append([]engine.ModuleMapEntry(nil), te.Task.ModuleMap...)
	w.taskMu.Unlock()

	// moduleDeref acquires moduleMu; done only after taskMu is released,
	// honoring the world -> module -> task lock order (never acquire an
	// earlier-listed mutex while holding a later one).
	for _, m := range imported {
		if m.Module != nil {
			w.moduleDeref(m.Module)
		}
	}

	w.worldMu.Lock()
	w.alloc.TasksFreed++
	w.worldMu.Unlock()
	return nil
}

func (w *World) removeFromQueueLocked(te *TaskEntry) {
	q := w.queues[te.state]
	for i, e := range q {
		if e == te {
			w.queues[te.state] = append(q[:i], q[i+1:]...)
			break
		}
	}
}

func (w *World) moveQueueLocked(te *TaskEntry, next TaskState) {
	w.removeFromQueueLocked(te)
	te.state = next
	w.queues[next] = append(w.queues[next], te)
}

// TaskAttach is task_attach: bind ctx to te. If te is unowned, ctx
// becomes the owner immediately; otherwise ctx enqueues on te's waiter
// list and blocks on its own condition variable until te is handed to
// it by a concurrent TaskDetach (spec.md §4.7's exact two-branch
// protocol).
func (w *World) TaskAttach(ctx *Context, te *TaskEntry) {
	w.taskMu.Lock()
	defer w.taskMu.Unlock()

	if te.owner == nil {
		te.owner = ctx
		te.refcount++
		w.moveQueueLocked(te, TaskReady)
		ctx.current = te
		return
	}

	ctx.eng.Wait = engine.WaitForTask
	te.waiters = append(te.waiters, ctx)
	for te.owner != ctx {
		ctx.eng.Cond.Wait()
	}
	ctx.eng.Wait = engine.WaitNone
	ctx.current = te
}

// TaskDetach is task_detach: release ctx's ownership of te. If any
// context is waiting, ownership transfers directly to the head of the
// waiter queue and that context's condition variable is signaled;
// otherwise the task returns to Suspended.
func (w *World) TaskDetach(ctx *Context, te *TaskEntry) {
	w.taskMu.Lock()
	defer w.taskMu.Unlock()

	if te.owner != ctx {
		return
	}
	ctx.current = nil
	te.owner = nil

	if len(te.waiters) > 0 {
		next := te.waiters[0]
		te.waiters = te.waiters[1:]
		te.owner = next
		te.refcount++
		next.eng.Cond.Signal()
		return
	}
	w.moveQueueLocked(te, TaskSuspended)
}

// TaskImport is task_import: bind a loaded module into te's task-local
// module map, bumping that module's refcount, and return the new
// slot's index (spec.md §4.6's module map: task-local indices resolve
// to a module pointer plus an anchor word instructions can use as a
// base for further addressing).
func (w *World) TaskImport(te *TaskEntry, m *module.Module, anchor uint64) uint32 {
	w.moduleRef(m)
	idx := uint32(len(te.Task.ModuleMap))
	te.Task.ModuleMap = append(te.Task.ModuleMap, engine.ModuleMapEntry{Module: m, Anchor: anchor})
	return idx
}

// TaskKill sets the cooperative kill flag that runTask observes at the
// start of the next burst. It can be called by any context, attached or not; the
// world's task mutex is enough to make the write visible to whichever
// context next calls Run.
func (w *World) TaskKill(te *TaskEntry) {
	w.taskMu.Lock()
	te.Task.Kill = true
	w.taskMu.Unlock()
}

// Enter is the Core API's enter(context, module_index, proc_index,
// reg_shift_bytes): push a new frame in the context's currently
// attached task, resolving module_index through that task's own
// module map (spec.md §4.6) rather than taking a module pointer
// directly, matching the Core API signature exactly.
func (ctx *Context) Enter(moduleIndex uint32, procIndex int, regShiftBytes uint32) *status.Status {
	te := ctx.current
	if te == nil {
		return status.New(status.State, "enter called with no task attached")
	}
	if int(moduleIndex) >= len(te.Task.ModuleMap) {
		return status.New(status.ProcIndex, "module index out of range")
	}
	mod := te.Task.ModuleMap[moduleIndex].Module
	return engine.Enter(te.Task, mod, procIndex, moduleIndex, regShiftBytes)
}

// Run is the Core API's run(context, frame_stop, iter_limit): execute
// one burst of the context's attached task.
func (ctx *Context) Run(frameStop int, iterLimit uint64, debug engine.DebugFunc) (uint64, *status.Status) {
	te := ctx.current
	if te == nil {
		return 0, status.New(status.State, "run called with no task attached")
	}
	return ctx.world.runTask(te, frameStop, iterLimit, debug)
}

// runTask executes one burst of te's task, marking it Running for the
// duration and Ready (or Suspended, if it ran out of frames) once the
// burst returns.
func (w *World) runTask(te *TaskEntry, frameStop int, iterLimit uint64, debug engine.DebugFunc) (uint64, *status.Status) {
	w.taskMu.Lock()
	if te.Task.Kill {
		// Cooperative cancellation: the kill flag is only ever observed
		// here, between bursts, never mid-instruction (spec.md §5).
		te.Task.Frames = te.Task.Frames[:0]
		te.Task.State = engine.StateDone
		w.moveQueueLocked(te, TaskSuspended)
		w.taskMu.Unlock()
		return 0, status.New(status.State, "task killed")
	}
	w.moveQueueLocked(te, TaskRunning)
	w.taskMu.Unlock()

	n, st := engine.Run(te.Task, frameStop, iterLimit, debug)

	w.taskMu.Lock()
	if te.state == TaskRunning {
		if len(te.Task.Frames) == 0 {
			w.moveQueueLocked(te, TaskSuspended)
		} else {
			w.moveQueueLocked(te, TaskReady)
		}
	}
	w.taskMu.Unlock()
	return n, st
}
