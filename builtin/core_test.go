package builtin_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hazna-vm/hazna/builtin"
	"github.com/hazna-vm/hazna/engine"
	"github.com/hazna-vm/hazna/hostlog"
	"github.com/hazna-vm/hazna/regview"
	"github.com/hazna-vm/hazna/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelloLoopEngine exercises the hello loop directly against the
// engine, without a World in the loop: 10 iterations of a 7-character
// message is 70 debug-out entries. The loop lives at proc index 1;
// proc 0 is the module's reserved do-nothing entry.
func TestHelloLoopEngine(t *testing.T) {
	m, err := builtin.Build()
	require.NoError(t, err)

	idx, ok := m.FindExport([]byte("hello_loop"))
	require.True(t, ok)
	require.Equal(t, 1, idx)

	task := engine.NewTask(1, 0, 0)
	require.Nil(t, engine.Enter(task, m, idx, 0, 0))

	var out []byte
	_, st := engine.Run(task, 0, 1000, func(w regview.Width, v uint64) { out = append(out, byte(v)) })
	require.Nil(t, st)

	assert.Len(t, out, 70)
	assert.Equal(t, []byte("hello!\n"), out[:7])
	assert.Equal(t, []byte("hello!\n"), out[63:70])
}

// TestHelloLoopCoreAPI drives the documented scenario through the Core
// API verbatim: task_create; enter(0, 1, 0); run(0, 1000) against a
// world whose core module is pre-mapped at module-map slot 0, leaving
// 70 debug-out entries in the log at Info.
func TestHelloLoopCoreAPI(t *testing.T) {
	var logBuf bytes.Buffer
	w := runtime.New(&logBuf, hostlog.Info)

	core, err := builtin.Build()
	require.NoError(t, err)
	loaded, st := w.ModuleLoad(core.Encode())
	require.Nil(t, st)
	w.SetCore(loaded)

	ctx := w.Attach()
	te, st := w.TaskCreate(0, 0)
	require.Nil(t, st)
	w.TaskAttach(ctx, te)

	require.Nil(t, ctx.Enter(0, 1, 0))

	debugOuts := 0
	_, st = ctx.Run(0, 1000, func(width regview.Width, v uint64) {
		debugOuts++
		w.Logf(hostlog.Info, "debug-out(%d): %c", width, rune(v))
	})
	require.Nil(t, st)

	assert.Equal(t, 70, debugOuts)
	assert.Equal(t, 70, strings.Count(logBuf.String(), "debug-out"))
	assert.Empty(t, te.Task.Frames)

	w.TaskDetach(ctx, te)
	require.Nil(t, w.TaskDeref(te))
	require.Nil(t, ctx.Finish())
}
