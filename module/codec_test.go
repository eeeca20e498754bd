package module_test

import (
	"testing"

	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/regview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSimpleModule(t *testing.T) *module.Module {
	t.Helper()
	b := module.NewBuilder()
	p := b.NewProc("main")
	p.InitInline(regview.Width32, 0, 7)
	p.Halt()
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestMagicRejection(t *testing.T) {
	bad := append([]byte("[hza99]\n"), make([]byte, 64)...)
	_, err := module.Decode(bad)
	require.Error(t, err)
	var verr *module.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, module.ErrModuleMagic, verr.Kind)
}

func TestTruncatedRejection(t *testing.T) {
	m := buildSimpleModule(t)
	enc := m.Encode()
	_, err := module.Decode(enc[:len(enc)-4])
	require.Error(t, err)
	var verr *module.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, module.ErrModuleTruncated, verr.Kind)
}

func TestRoundTrip(t *testing.T) {
	m := buildSimpleModule(t)
	enc := m.Encode()
	got, err := module.Decode(enc)
	require.NoError(t, err)

	require.NoError(t, module.Verify(got))

	assert.Equal(t, m.Const32, got.Const32)
	assert.Equal(t, m.Const64, got.Const64)
	assert.Equal(t, m.Const128, got.Const128)
	assert.Equal(t, m.Instructions, got.Instructions)
	assert.Equal(t, m.Targets, got.Targets)
	assert.Equal(t, m.DataBlockOffsets, got.DataBlockOffsets)
	assert.Equal(t, m.Data, got.Data)
	assert.Equal(t, m.Procs, got.Procs)
}

func TestImportModuleCountRejected(t *testing.T) {
	m := buildSimpleModule(t)
	enc := m.Encode()
	// Header: 8 bytes magic + 14 uint32 fields; reserved0 is field index 11.
	off := 8 + 11*4
	enc[off] = 0
	enc[off+1] = 0
	enc[off+2] = 0
	enc[off+3] = 1
	_, err := module.Decode(enc)
	require.Error(t, err)
	var verr *module.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, module.ErrModuleCorrupt, verr.Kind)
}
