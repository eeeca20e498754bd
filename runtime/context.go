package runtime

import (
	"github.com/hazna-vm/hazna/engine"
	"github.com/hazna-vm/hazna/status"
)

// Context is one host-thread binding into a World: at most one task
// attached at a time, the condition variable it parks on while
// contending for a task, and the scratch result fields the Core API's
// per-context operations (enter/run) fill in. It wraps an
// engine.Context for the condition variable and the wait reason; the
// attached task is tracked here in current, as a *TaskEntry, and the
// wrapped engine.Context's Task field is left unset.
type Context struct {
	world *World
	eng   *engine.Context

	id uint64

	current *TaskEntry
}

func newContext(w *World, id uint64) *Context {
	ec := engine.NewContext(id, &w.taskMu)
	return &Context{world: w, eng: ec, id: id}
}

// ID returns the context's identifier, unique within its world.
func (c *Context) ID() uint64 { return c.id }

// WaitReason reports why a context is currently blocked, for
// observability surfaces (inspector, monitor) that want to show a
// live world snapshot; it never drives any blocking decision itself.
func (c *Context) WaitReason() engine.WaitReason { return c.eng.Wait }

// AttachedTask reports the task entry currently owned by this
// context, or nil.
func (c *Context) AttachedTask() *TaskEntry { return c.current }

// Finish is the per-context teardown half of world_finish: it detaches
// from any still-attached task and releases the world's attached-
// context slot. Safe to call once; spec.md does not define a separate
// "context_finish" operation, so this is invoked by cmd/hza right
// before world_finish for every context it created.
func (c *Context) Finish() *status.Status {
	if c.current != nil {
		c.world.TaskDetach(c, c.current)
	}
	c.world.detachContext()
	return nil
}
