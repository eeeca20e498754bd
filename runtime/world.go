// Package runtime implements the Core API of spec.md §6: the World
// that owns every module and task, the Context that binds a host
// thread to at most one task at a time, and the attach/detach protocol
// of spec.md §4.7 that arbitrates contention between them. Package
// engine supplies the per-task interpreter this package drives; it has
// no notion of concurrency of its own.
package runtime

import (
	"io"
	"sync"

	"github.com/hazna-vm/hazna/hostlog"
	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/status"
)

// Allocator is the world's best-effort leak counter, mirroring the
// live-allocation counter original_source's allocator keeps purely for
// teardown reporting. The host language here is garbage collected, so
// there is no malloc/free pair to balance the way a native build
// would; instead this counts task and module records the world has
// created against ones it has torn down through the Core API, so a
// caller that leaks a reference (never calling task_deref or letting a
// module go unbound) is still flagged at world_finish without
// requiring manual frees.
type Allocator struct {
	TasksCreated   int
	TasksFreed     int
	ModulesLoaded  int
	ModulesDropped int
}

// Leaked reports whether any record created through this world was
// never torn down.
func (a Allocator) Leaked() bool {
	return a.TasksCreated != a.TasksFreed || a.ModulesLoaded != a.ModulesDropped
}

// moduleRecord pairs a loaded module with the refcount spec.md §4.6
// assigns it: one for the world's own module list, plus one per task
// that has imported it via task_import.
type moduleRecord struct {
	mod      *module.Module
	refcount int
}

// World is the top-level shared-resource container of spec.md §3: one
// set of modules, one set of tasks, one log sink, guarded by four
// mutexes acquired in a single fixed order (world, module, task, log)
// so no two contexts can deadlock against each other.
type World struct {
	// worldMu guards fields below that describe the world itself:
	// attached-context bookkeeping and the allocation-leak counters.
	// Acquired first, and never while holding moduleMu/taskMu/logMu.
	worldMu sync.Mutex

	attachedContexts int
	nextContextID    uint64
	alloc            Allocator

	// moduleMu guards the module list, the id counter, and the name
	// index. Acquired second.
	moduleMu     sync.Mutex
	nextModuleID uint64
	modules      map[uint64]*moduleRecord
	names        NameIndex
	core         *module.Module

	// taskMu guards the task table and every task's owner/refcount/
	// waiter-queue/state-queue membership. Acquired third; this is also
	// the lock every Context's sync.Cond is built on, so Wait() here
	// correctly interleaves with Attach/Detach performed by other
	// contexts.
	taskMu     sync.Mutex
	nextTaskID uint64
	tasks      map[uint64]*TaskEntry
	queues     map[TaskState][]*TaskEntry

	// logMu is acquired last, and only ever while already holding
	// nothing else the log sink itself needs (hostlog.Logger has its
	// own internal mutex; this field exists so spec.md's four-mutex
	// ordering has a concrete fourth lock for callers that want to
	// serialize a log write against a world-state snapshot together).
	logMu sync.Mutex
	log   *hostlog.Logger
}

// New builds an empty World, logging at level to w.
func New(w io.Writer, level hostlog.Level) *World {
	return &World{
		modules: make(map[uint64]*moduleRecord),
		tasks:   make(map[uint64]*TaskEntry),
		queues:  make(map[TaskState][]*TaskEntry),
		log:     hostlog.New(w, level),
	}
}

// Log returns the world's log sink, for callers that want to write
// outside the Core API proper (e.g. cmd/hza's own startup messages).
func (w *World) Log() *hostlog.Logger { return w.log }

// Logf serializes a formatted log line through the world's log mutex
// before handing it to the sink. Snapshot does not take logMu.
func (w *World) Logf(level hostlog.Level, format string, args ...interface{}) {
	w.logMu.Lock()
	defer w.logMu.Unlock()
	switch level {
	case hostlog.Fatal:
		w.log.Fatalf(format, args...)
	case hostlog.Error:
		w.log.Errorf(format, args...)
	case hostlog.Warning:
		w.log.Warningf(format, args...)
	case hostlog.Info:
		w.log.Infof(format, args...)
	case hostlog.Debug:
		w.log.Debugf(format, args...)
	}
}

// SetCore registers the module pre-mapped into every new task's
// module-map slot 0 (spec.md §8 scenario 2's bundled "core" module).
// Must be called before any TaskCreate.
func (w *World) SetCore(m *module.Module) {
	w.moduleMu.Lock()
	defer w.moduleMu.Unlock()
	w.core = m
}

// Init is world_init: the Core API entry point that constructs a
// fresh World. Kept as a package-level constructor wrapper, matching
// the naming the rest of the Core API functions use; Attach and Finish
// are then called on the returned World.
func Init(w io.Writer, level hostlog.Level) (*World, *status.Status) {
	return New(w, level), nil
}

// Attach is world_attach: binds a new Context to this world, bumping
// the attached-context counter spec.md §5 requires Finish to check.
func (w *World) Attach() *Context {
	w.worldMu.Lock()
	w.attachedContexts++
	w.nextContextID++
	id := w.nextContextID
	w.worldMu.Unlock()
	return newContext(w, id)
}

// Finish is world_finish: the Core API's teardown entry point. It
// fails with status.State if any context is still attached, and logs
// (but does not fail on) a leaked allocation count, per spec.md §5's
// "a non-zero leak counter is logged as an error but does not abort."
func (w *World) Finish() *status.Status {
	w.worldMu.Lock()
	defer w.worldMu.Unlock()
	if w.attachedContexts > 0 {
		return status.New(status.State, "world still has attached contexts")
	}
	if w.alloc.Leaked() {
		w.log.Errorf("world finish: leaked allocations: tasks %d/%d modules %d/%d",
			w.alloc.TasksFreed, w.alloc.TasksCreated, w.alloc.ModulesDropped, w.alloc.ModulesLoaded)
	}
	return nil
}

// detachContext is called by Context.Finish to release the world's
// attached-context slot.
func (w *World) detachContext() {
	w.worldMu.Lock()
	w.attachedContexts--
	w.worldMu.Unlock()
}

// Snapshot is a point-in-time, read-only view of a world's module and
// task tables, for observability surfaces (monitor, inspector) that
// have no business holding any of the four Core API mutexes
// themselves. Each lock is acquired and released independently, in
// world -> module -> task order, so the snapshot is assembled without
// ever holding two of them at once; the result can therefore be
// slightly inconsistent across sections (e.g. a task counted may have
// already detached by the time TaskSnapshot entries are read), which
// is acceptable for a display-only view.
type Snapshot struct {
	AttachedContexts int
	Alloc            Allocator
	Modules          []ModuleSnapshot
	Tasks            []TaskSnapshot
}

// ModuleSnapshot describes one loaded module as the world sees it.
type ModuleSnapshot struct {
	ID       uint64
	Name     string
	Refcount int
}

// TaskSnapshot describes one task as the world sees it.
type TaskSnapshot struct {
	ID         uint64
	State      TaskState
	OwnerID    uint64
	HasOwner   bool
	Waiters    int
	Refcount   int
	FrameDepth int
}

// Snapshot assembles a Snapshot of the world's current state.
func (w *World) Snapshot() Snapshot {
	w.worldMu.Lock()
	snap := Snapshot{AttachedContexts: w.attachedContexts, Alloc: w.alloc}
	w.worldMu.Unlock()

	w.moduleMu.Lock()
	snap.Modules = make([]ModuleSnapshot, 0, len(w.modules))
	for id, rec := range w.modules {
		name := ""
		if rec.mod.Name != 0 {
			name = string(rec.mod.DataBlock(rec.mod.Name))
		}
		snap.Modules = append(snap.Modules, ModuleSnapshot{ID: id, Name: name, Refcount: rec.refcount})
	}
	w.moduleMu.Unlock()

	w.taskMu.Lock()
	snap.Tasks = make([]TaskSnapshot, 0, len(w.tasks))
	for id, te := range w.tasks {
		ts := TaskSnapshot{
			ID:         id,
			State:      te.state,
			Waiters:    len(te.waiters),
			Refcount:   te.refcount,
			FrameDepth: len(te.Task.Frames),
		}
		if te.owner != nil {
			ts.HasOwner = true
			ts.OwnerID = te.owner.id
		}
		snap.Tasks = append(snap.Tasks, ts)
	}
	w.taskMu.Unlock()

	return snap
}
