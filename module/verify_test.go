package module_test

import (
	"testing"

	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/regview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorruptTargetRejected(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("bad")
	// branch_zero_8 a=0 c=2 but the proc only has 2 targets (pair index 2
	// needs targets[2] and targets[3], i.e. target_count >= 4).
	p.AddTargetPair(0, 0)
	p.BranchZeroNonzero(regview.Width8, 0, 2)
	_, err := b.Build()
	require.Error(t, err)
	var verr *module.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, module.ErrModuleCorrupt, verr.Kind)
}

func TestWideningAdd(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("widen")
	p.InitInline(regview.Width16, 0, 0xFFFF)
	p.InitInline(regview.Width16, 16, 0x0002)
	p.AddQ(regview.Width16, 32, 0, 16)
	p.Halt()
	m, err := b.Build()
	require.NoError(t, err)
	assert.EqualValues(t, 8, m.Procs[0].RegSize) // bytes: widest access is the 32-bit double-width destination at bit offset 32
}

func TestMisalignedRegisterRejected(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("misaligned")
	p.InitInline(regview.Width32, 1, 0) // offset 1 is not a multiple of 32
	p.Halt()
	_, err := b.Build()
	require.Error(t, err)
	var verr *module.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, module.ErrModuleCorrupt, verr.Kind)
}

func TestNonTerminatingLastInstructionRejected(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("noterm")
	p.InitInline(regview.Width32, 0, 1)
	_, err := b.Build()
	require.Error(t, err)
	var verr *module.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, module.ErrModuleCorrupt, verr.Kind)
}

func TestOutOfRangeConstIndexRejected(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("badconst")
	p.AddConst32(1)
	p.AddC(regview.Width32, 0, 0, 5) // only one const32 entry exists
	p.Halt()
	_, err := b.Build()
	require.Error(t, err)
}

func TestExportLookup(t *testing.T) {
	b := module.NewBuilder()
	p := b.NewProc("entry")
	p.Halt()
	m, err := b.Build()
	require.NoError(t, err)
	idx, ok := m.FindExport([]byte("entry"))
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	_, ok = m.FindExport([]byte("missing"))
	assert.False(t, ok)
}
