package regview_test

import (
	"testing"

	"github.com/hazna-vm/hazna/regview"
	"github.com/stretchr/testify/assert"
)

func TestAdd128Carries(t *testing.T) {
	a := regview.Value128{Lo: ^uint64(0), Hi: 0}
	b := regview.Value128{Lo: 1, Hi: 0}
	got := regview.Add128(a, b)
	assert.Equal(t, regview.Value128{Lo: 0, Hi: 1}, got)
}

func TestSub128Borrows(t *testing.T) {
	a := regview.Value128{Lo: 0, Hi: 1}
	b := regview.Value128{Lo: 1, Hi: 0}
	got := regview.Sub128(a, b)
	assert.Equal(t, regview.Value128{Lo: ^uint64(0), Hi: 0}, got)
}

func TestMul128LowBits(t *testing.T) {
	a := regview.Value128{Lo: 1 << 32, Hi: 0}
	b := regview.Value128{Lo: 1 << 32, Hi: 0}
	got := regview.Mul128(a, b)
	assert.Equal(t, regview.Value128{Lo: 0, Hi: 1}, got)
}

func TestShl128AcrossHalves(t *testing.T) {
	v := regview.Value128{Lo: 1, Hi: 0}
	got := regview.Shl128(v, 64)
	assert.Equal(t, regview.Value128{Lo: 0, Hi: 1}, got)
}

func TestShr128Logical(t *testing.T) {
	v := regview.Value128{Lo: 0, Hi: 1}
	got := regview.Shr128(v, 1)
	assert.Equal(t, regview.Value128{Lo: 1 << 63, Hi: 0}, got)
}

func TestSar128SignExtends(t *testing.T) {
	v := regview.Value128{Lo: 0, Hi: 1 << 63} // negative
	got := regview.Sar128(v, 1)
	assert.Equal(t, regview.Value128{Lo: 0, Hi: 0xC000000000000000}, got)
}

func TestNot128AndNeg128(t *testing.T) {
	v := regview.Value128{Lo: 0, Hi: 0}
	assert.Equal(t, regview.Value128{Lo: ^uint64(0), Hi: ^uint64(0)}, regview.Not128(v))
	one := regview.Value128{Lo: 1, Hi: 0}
	assert.Equal(t, regview.Value128{Lo: ^uint64(0), Hi: ^uint64(0)}, regview.Neg128(one))
}
