package engine_test

import (
	"testing"

	"github.com/hazna-vm/hazna/engine"
	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/regview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAndEnter(t *testing.T, b *module.Builder, procIdx int) (*module.Module, *engine.Task) {
	t.Helper()
	m, err := b.Build()
	require.NoError(t, err)
	task := engine.NewTask(1, 0, 0)
	require.Nil(t, engine.Enter(task, m, procIdx, 0, 0))
	return m, task
}

func TestInitAndHalt(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("main")
	p.InitInline(regview.Width32, 0, 42)
	p.Halt()
	_, task := buildAndEnter(t, b, 0)

	n, st := engine.Run(task, 0, 0, nil)
	require.Nil(t, st)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, engine.StateDone, task.State)
	assert.EqualValues(t, 42, regview.View{Buf: task.Reg}.ReadUint(0, regview.Width32))
}

func TestArithmeticAdd(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("main")
	p.InitInline(regview.Width32, 0, 2)
	p.InitInline(regview.Width32, 32, 40)
	p.Add(regview.Width32, 64, 0, 32)
	p.Halt()
	_, task := buildAndEnter(t, b, 0)

	_, st := engine.Run(task, 0, 0, nil)
	require.Nil(t, st)
	assert.EqualValues(t, 42, regview.View{Buf: task.Reg}.ReadUint(64, regview.Width32))
}

func TestWideningAddProducesFullWidthResult(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("main")
	p.InitInline(regview.Width16, 0, 0xFFFF)
	p.InitInline(regview.Width16, 16, 0x0002)
	p.AddQ(regview.Width16, 32, 0, 16)
	p.Halt()
	_, task := buildAndEnter(t, b, 0)

	_, st := engine.Run(task, 0, 0, nil)
	require.Nil(t, st)
	assert.EqualValues(t, 0x10001, regview.View{Buf: task.Reg}.ReadUint(32, regview.Width32))
}

func TestDebugOutStream(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("main")
	p.InitInline(regview.Width8, 0, 'h')
	p.DebugOut(regview.Width8, 0)
	p.InitInline(regview.Width8, 0, 'i')
	p.DebugOut(regview.Width8, 0)
	p.Halt()
	_, task := buildAndEnter(t, b, 0)

	var out []byte
	_, st := engine.Run(task, 0, 0, func(w regview.Width, v uint64) { out = append(out, byte(v)) })
	require.Nil(t, st)
	assert.Equal(t, []byte("hi"), out)
}

func TestBranchZeroNonzeroLoop(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("countdown")
	p.InitInline(regview.Width8, 0, 3) // counter
	p.InitInline(regview.Width8, 8, 1) // decrement amount
	loopStart := p.NextInsnIndex()
	p.DebugOut(regview.Width8, 0)
	p.Sub(regview.Width8, 0, 0, 8)
	doneIdx := p.NextInsnIndex() + 1 // the Halt right after the branch below
	pairIdx := p.AddTargetPair(doneIdx, loopStart)
	p.BranchZeroNonzero(regview.Width8, 0, pairIdx)
	p.Halt()

	_, task := buildAndEnter(t, b, 0)
	var out []byte
	_, st := engine.Run(task, 0, 0, func(w regview.Width, v uint64) { out = append(out, byte(v)) })
	require.Nil(t, st)
	assert.Equal(t, []byte{3, 2, 1}, out)
}

func TestTableJumpOutOfRangeFallsThrough(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("main")
	p.InitInline(regview.Width32, 0, 99) // idx register, never a valid table index
	p.TableJump(regview.Width32, 0, 0, 0)
	p.Halt()
	_, task := buildAndEnter(t, b, 0)

	n, st := engine.Run(task, 0, 0, nil)
	require.Nil(t, st)
	assert.EqualValues(t, 3, n)
}

func TestLoadStoreRoundTrip(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("main")
	p.InitInline(regview.Width64, 0, 0) // address register: byte 0
	p.InitInline(regview.Width32, 64, 0xBEEF)
	p.Store(regview.Width32, 64, 0)
	p.Load(regview.Width32, 96, 0)
	p.Halt()
	_, task := buildAndEnter(t, b, 0)

	_, st := engine.Run(task, 0, 0, nil)
	require.Nil(t, st)
	assert.EqualValues(t, 0xBEEF, regview.View{Buf: task.Reg}.ReadUint(96, regview.Width32))
}

func TestIterationBudgetBoundsBurst(t *testing.T) {
	// A countdown long enough that one burst cannot finish it: the
	// budget is checked at each branch, so a burst with budget N runs
	// between 1 and N + (longest linear run - 1) instructions and the
	// next call picks up exactly where the last one stopped.
	b := module.NewBuilder()
	p := b.NewProc("countdown")
	p.InitInline(regview.Width32, 0, 1000)
	p.InitInline(regview.Width32, 32, 1)
	loopStart := p.NextInsnIndex()
	p.Sub(regview.Width32, 0, 0, 32)
	doneIdx := p.NextInsnIndex() + 1
	pairIdx := p.AddTargetPair(doneIdx, loopStart)
	p.BranchZeroNonzero(regview.Width32, 0, pairIdx)
	p.Halt()
	_, task := buildAndEnter(t, b, 0)

	const budget = 10
	const longestRun = 4 // init, init, sub, branch
	var total uint64
	bursts := 0
	for task.State != engine.StateDone {
		n, st := engine.Run(task, 0, budget, nil)
		require.Nil(t, st)
		require.GreaterOrEqual(t, n, uint64(1))
		require.LessOrEqual(t, n, uint64(budget+longestRun-1))
		total += n
		bursts++
	}
	assert.EqualValues(t, 2+1000*2+1, total)
	assert.Greater(t, bursts, 1)
}

func TestFrameGrowthOnDeepEnter(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("leaf")
	p.Return()
	m, err := b.Build()
	require.NoError(t, err)

	task := engine.NewTask(1, 16, 1)
	for i := 0; i < 20; i++ {
		require.Nil(t, engine.Enter(task, m, 0, 0, 16))
	}
	assert.Greater(t, task.Stats.FrameGrowths, uint32(0))

	n, st := engine.Run(task, 0, 0, nil)
	require.Nil(t, st)
	assert.EqualValues(t, 20, n)
	assert.Empty(t, task.Frames)
}
