package runtime

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hazna-vm/hazna/engine"
	"github.com/hazna-vm/hazna/hostlog"
	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/regview"
	"github.com/hazna-vm/hazna/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildModule(t *testing.T, fn func(p *module.ProcBuilder)) *module.Module {
	t.Helper()
	b := module.NewBuilder()
	p := b.NewProc("main")
	fn(p)
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestTaskCreateStartsSuspended(t *testing.T) {
	w := New(io.Discard, hostlog.None)
	te, st := w.TaskCreate(0, 0)
	require.Nil(t, st)
	assert.Equal(t, TaskSuspended, te.State())
	assert.Nil(t, te.Owner())
}

func TestTaskAttachDetachSimple(t *testing.T) {
	w := New(io.Discard, hostlog.None)
	te, st := w.TaskCreate(0, 0)
	require.Nil(t, st)

	ctx := w.Attach()
	w.TaskAttach(ctx, te)
	assert.Same(t, ctx, te.Owner())
	assert.Equal(t, TaskReady, te.State())

	w.TaskDetach(ctx, te)
	assert.Nil(t, te.Owner())
	assert.Equal(t, TaskSuspended, te.State())
}

// TestTaskAttachContention exercises spec.md §4.7's attach/detach
// handoff: a second context blocked on an owned task is woken and
// becomes the new owner the instant the first detaches, with no
// window where the task is unowned and up for grabs by a third party.
func TestTaskAttachContention(t *testing.T) {
	w := New(io.Discard, hostlog.None)
	te, st := w.TaskCreate(0, 0)
	require.Nil(t, st)
	startingRefcount := te.refcount

	ctx1 := w.Attach()
	ctx2 := w.Attach()

	w.TaskAttach(ctx1, te)
	assert.Same(t, ctx1, te.Owner())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.TaskAttach(ctx2, te)
	}()

	require.Eventually(t, func() bool {
		w.taskMu.Lock()
		defer w.taskMu.Unlock()
		return len(te.waiters) == 1
	}, time.Second, time.Millisecond)

	w.TaskDetach(ctx1, te)
	wg.Wait()

	assert.Same(t, ctx2, te.Owner())
	assert.Equal(t, startingRefcount+2, te.refcount)
}

func TestTaskDerefWhileAttachedFails(t *testing.T) {
	w := New(io.Discard, hostlog.None)
	te, _ := w.TaskCreate(0, 0) // refcount 1
	ctx := w.Attach()
	w.TaskAttach(ctx, te) // refcount 2

	require.Nil(t, w.TaskDeref(te)) // refcount 1, not yet torn down
	st := w.TaskDeref(te)           // would hit 0 while still attached
	require.NotNil(t, st)
	assert.Equal(t, 1, te.refcount) // resurrected, not torn down
}

func TestRunBurstTracksQueueState(t *testing.T) {
	w := New(io.Discard, hostlog.None)
	m := buildModule(t, func(p *module.ProcBuilder) {
		p.InitInline(regview.Width8, 0, 9)
		p.DebugOut(regview.Width8, 0)
		p.Halt()
	})
	te, _ := w.TaskCreate(0, 0)
	ctx := w.Attach()
	w.TaskAttach(ctx, te)
	te.Task.ModuleMap = append(te.Task.ModuleMap, engine.ModuleMapEntry{Module: m})
	require.Nil(t, ctx.Enter(uint32(len(te.Task.ModuleMap)-1), 0, 0))

	var out []byte
	n, st := ctx.Run(0, 0, func(width regview.Width, v uint64) { out = append(out, byte(v)) })
	require.Nil(t, st)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, []byte{9}, out)
	assert.Equal(t, TaskSuspended, te.State())
}

func TestTaskKillObservedBetweenBursts(t *testing.T) {
	w := New(io.Discard, hostlog.None)
	m := buildModule(t, func(p *module.ProcBuilder) {
		// Infinite loop: only the kill flag can stop it.
		p.InitInline(regview.Width8, 0, 1)
		loopStart := p.NextInsnIndex()
		pairIdx := p.AddTargetPair(loopStart, loopStart)
		p.BranchZeroNonzero(regview.Width8, 0, pairIdx)
		p.Halt()
	})
	te, _ := w.TaskCreate(0, 0)
	ctx := w.Attach()
	w.TaskAttach(ctx, te)
	te.Task.ModuleMap = append(te.Task.ModuleMap, engine.ModuleMapEntry{Module: m})
	require.Nil(t, ctx.Enter(uint32(len(te.Task.ModuleMap)-1), 0, 0))

	n, st := ctx.Run(0, 5, nil)
	require.Nil(t, st)
	assert.NotZero(t, n)
	assert.NotEmpty(t, te.Task.Frames)

	w.TaskKill(te)
	_, st = ctx.Run(0, 5, nil)
	require.NotNil(t, st)
	assert.Equal(t, status.State, st.Kind)
	assert.Empty(t, te.Task.Frames)
	assert.Equal(t, TaskSuspended, te.State())
}

func TestModuleLoadBindFind(t *testing.T) {
	w := New(io.Discard, hostlog.None)
	m := buildModule(t, func(p *module.ProcBuilder) { p.Halt() })
	data := m.Encode()

	loaded, st := w.ModuleLoad(data)
	require.Nil(t, st)
	assert.NotZero(t, loaded.Id)

	require.Nil(t, w.ModuleBindName([]byte("core"), loaded))
	found, ok := w.ModuleFind([]byte("core"))
	assert.True(t, ok)
	assert.Same(t, loaded, found)

	_, ok = w.ModuleFind([]byte("missing"))
	assert.False(t, ok)
}

func TestWorldFinishRejectsAttachedContext(t *testing.T) {
	w := New(io.Discard, hostlog.None)
	_ = w.Attach()
	st := w.Finish()
	require.NotNil(t, st)
}

func TestWorldFinishSucceedsAfterContextFinish(t *testing.T) {
	w := New(io.Discard, hostlog.None)
	ctx := w.Attach()
	require.Nil(t, ctx.Finish())
	assert.Nil(t, w.Finish())
}
