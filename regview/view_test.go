package regview_test

import (
	"testing"

	"github.com/hazna-vm/hazna/regview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignedByteWidths(t *testing.T) {
	buf := make([]byte, 16)
	v := regview.View{Buf: buf}

	v.WriteUint(0, regview.Width8, 0xAB)
	assert.Equal(t, uint64(0xAB), v.ReadUint(0, regview.Width8))

	v.WriteUint(16, regview.Width16, 0x1234)
	assert.Equal(t, uint64(0x1234), v.ReadUint(16, regview.Width16))

	v.WriteUint(32, regview.Width32, 0xFFFF0001)
	assert.Equal(t, uint64(0xFFFF0001), v.ReadUint(32, regview.Width32))

	v.WriteUint(64, regview.Width64, 0x0102030405060708)
	assert.Equal(t, uint64(0x0102030405060708), v.ReadUint(64, regview.Width64))
}

func TestLittleEndianLayout(t *testing.T) {
	buf := make([]byte, 8)
	v := regview.View{Buf: buf}
	v.WriteUint(0, regview.Width32, 0x00010001)
	require.Equal(t, byte(0x01), buf[0])
	require.Equal(t, byte(0x00), buf[1])
	require.Equal(t, byte(0x01), buf[2])
	require.Equal(t, byte(0x00), buf[3])
}

func TestSubByteFields(t *testing.T) {
	buf := make([]byte, 1)
	v := regview.View{Buf: buf}

	v.WriteUint(0, regview.Width4, 0xF)
	assert.Equal(t, uint64(0xF), v.ReadUint(0, regview.Width4))
	assert.Equal(t, byte(0x0F), buf[0])

	v.WriteUint(4, regview.Width4, 0xA)
	assert.Equal(t, uint64(0xA), v.ReadUint(4, regview.Width4))
	assert.Equal(t, byte(0xAF), buf[0])

	// Overwriting one nibble must not disturb the other.
	v.WriteUint(0, regview.Width4, 0x3)
	assert.Equal(t, byte(0xA3), buf[0])
}

func TestSubByteBitFields(t *testing.T) {
	buf := make([]byte, 1)
	v := regview.View{Buf: buf}
	for i := uint32(0); i < 8; i++ {
		v.WriteUint(i, regview.Width1, uint64(i%2))
	}
	assert.Equal(t, byte(0xAA), buf[0])
	for i := uint32(0); i < 8; i++ {
		assert.Equal(t, uint64(i%2), v.ReadUint(i, regview.Width1))
	}
}

func TestUint128(t *testing.T) {
	buf := make([]byte, 16)
	v := regview.View{Buf: buf}
	v.WriteUint128(0, regview.Value128{Lo: 0x0102030405060708, Hi: 0x1122334455667788})
	got := v.ReadUint128(0)
	assert.Equal(t, uint64(0x0102030405060708), got.Lo)
	assert.Equal(t, uint64(0x1122334455667788), got.Hi)
}

func TestZeroAndSignExtend(t *testing.T) {
	assert.Equal(t, uint64(0x00FF), regview.ZeroExtend(0xFF, regview.Width8))
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), regview.SignExtend(0xFF, regview.Width8))
	assert.Equal(t, uint64(0x000000FF), regview.SignExtend(0xFF, regview.Width16))
}

func TestAligned(t *testing.T) {
	assert.True(t, regview.Aligned(0, regview.Width32))
	assert.True(t, regview.Aligned(32, regview.Width32))
	assert.False(t, regview.Aligned(16, regview.Width32))
	assert.True(t, regview.Aligned(4, regview.Width4))
	assert.False(t, regview.Aligned(5, regview.Width4))
}
