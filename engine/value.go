package engine

import (
	"math/bits"

	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/regview"
	"github.com/hazna-vm/hazna/status"
)

// wideVal holds one register value read at some width. lo carries
// widths up to 64 bits; wide marks a 128-bit value, with hi carrying
// its upper half. Keeping one shape for both avoids threading two
// separate code paths through every arithmetic class.
type wideVal struct {
	lo, hi uint64
	wide   bool
}

func (v wideVal) value128() regview.Value128 { return regview.Value128{Lo: v.lo, Hi: v.hi} }

func fromValue128(v regview.Value128) wideVal { return wideVal{lo: v.Lo, hi: v.Hi, wide: true} }

func (v wideVal) not() wideVal {
	if v.wide {
		return fromValue128(regview.Not128(v.value128()))
	}
	return wideVal{lo: ^v.lo}
}

func (v wideVal) neg() wideVal {
	if v.wide {
		return fromValue128(regview.Neg128(v.value128()))
	}
	return wideVal{lo: -v.lo}
}

func (v wideVal) isZero() bool {
	if v.wide {
		return v.lo == 0 && v.hi == 0
	}
	return v.lo == 0
}

func (v wideVal) equals(o wideVal) bool {
	return v.lo == o.lo && v.hi == o.hi
}

// compare treats both operands as unsigned; the instruction set carries
// no separate signed-compare function (spec.md §4.4 names one register
// comparison per class), so registers compare as raw bit patterns.
func (v wideVal) compare(o wideVal) int {
	if v.wide || o.wide {
		if v.hi != o.hi {
			if v.hi < o.hi {
				return -1
			}
			return 1
		}
	}
	if v.lo != o.lo {
		if v.lo < o.lo {
			return -1
		}
		return 1
	}
	return 0
}

func readAny(view regview.View, field uint16, w regview.Width) wideVal {
	return readAnyView(view, uint32(field), w)
}

func readAnyView(view regview.View, bitOff uint32, w regview.Width) wideVal {
	if w == regview.Width128 {
		return fromValue128(view.ReadUint128(bitOff))
	}
	return wideVal{lo: view.ReadUint(bitOff, w)}
}

func writeAny(view regview.View, field uint16, w regview.Width, v wideVal) {
	writeAnyView(view, uint32(field), w, v)
}

func writeAnyView(view regview.View, bitOff uint32, w regview.Width, v wideVal) {
	if w == regview.Width128 {
		view.WriteUint128(bitOff, v.value128())
		return
	}
	view.WriteUint(bitOff, w, v.lo)
}

func constOperand(mod *module.Module, proc *module.Proc, w regview.Width, idx uint16) wideVal {
	switch w {
	case regview.Width32:
		return wideVal{lo: uint64(proc.Const32Pool(mod)[idx])}
	case regview.Width64:
		return wideVal{lo: proc.Const64Pool(mod)[idx]}
	case regview.Width128:
		return fromValue128(proc.Const128Pool(mod)[idx])
	default:
		return wideVal{}
	}
}

func doubleWidth(pw regview.Width) regview.Width {
	return regview.Width(int(pw) * 2)
}

// extendTo128 widens srcLo (held at width pw) into a full 128-bit value,
// used by SRN when the destination width is 128.
func extendTo128(fn module.Func, srcLo uint64, pw regview.Width) wideVal {
	if fn == module.FuncZeroExtend {
		return wideVal{lo: regview.ZeroExtend(srcLo, pw), wide: true}
	}
	se := regview.SignExtend(srcLo, pw)
	hi := uint64(0)
	if int64(se) < 0 {
		hi = ^uint64(0)
	}
	return wideVal{lo: se, hi: hi, wide: true}
}

// binOp implements the RRR/RRC arithmetic family: add/sub/or/xor/and/mul,
// truncating mod 2^w on write (WriteUint does the truncation; 128-bit
// destinations go through the regview.*128 helpers explicitly).
func binOp(fn module.Func, a, b wideVal, w regview.Width) (wideVal, *status.Status) {
	if w == regview.Width128 {
		av, bv := a.value128(), b.value128()
		var r regview.Value128
		switch fn {
		case module.FuncAdd:
			r = regview.Add128(av, bv)
		case module.FuncSub:
			r = regview.Sub128(av, bv)
		case module.FuncOr:
			r = regview.Or128(av, bv)
		case module.FuncXor:
			r = regview.Xor128(av, bv)
		case module.FuncAnd:
			r = regview.And128(av, bv)
		case module.FuncMul:
			r = regview.Mul128(av, bv)
		default:
			return wideVal{}, status.New(status.Bug, "unknown arithmetic function")
		}
		return fromValue128(r), nil
	}

	var r uint64
	switch fn {
	case module.FuncAdd:
		r = a.lo + b.lo
	case module.FuncSub:
		r = a.lo - b.lo
	case module.FuncOr:
		r = a.lo | b.lo
	case module.FuncXor:
		r = a.lo ^ b.lo
	case module.FuncAnd:
		r = a.lo & b.lo
	case module.FuncMul:
		r = a.lo * b.lo
	default:
		return wideVal{}, status.New(status.Bug, "unknown arithmetic function")
	}
	return wideVal{lo: r}, nil
}

// widenOp implements QRR/QRC: the destination is double pw's width, and
// the result is never truncated (that's the point of widening add/mul).
// pw is at most Width64 (the verifier rejects any wider primary for
// these classes, since there is no 256-bit register width).
func widenOp(fn module.Func, a, b wideVal, pw regview.Width) wideVal {
	if pw < regview.Width64 {
		switch fn {
		case module.FuncAddQ:
			return wideVal{lo: a.lo + b.lo}
		case module.FuncMulQ:
			return wideVal{lo: a.lo * b.lo}
		}
		return wideVal{}
	}
	switch fn {
	case module.FuncAddQ:
		lo, carry := bits.Add64(a.lo, b.lo, 0)
		return wideVal{lo: lo, hi: carry, wide: true}
	case module.FuncMulQ:
		hi, lo := bits.Mul64(a.lo, b.lo)
		return wideVal{lo: lo, hi: hi, wide: true}
	}
	return wideVal{}
}

// shiftOp implements RRS/RR4: shl/shr (logical) and sar (arithmetic,
// sign-extended from bit w-1). The shift distance is taken mod w, same
// convention most ISAs use for in-register shifts.
func shiftOp(fn module.Func, a wideVal, n uint, w regview.Width) wideVal {
	if w == regview.Width128 {
		v := a.value128()
		var r regview.Value128
		switch fn {
		case module.FuncShl:
			r = regview.Shl128(v, n)
		case module.FuncShr:
			r = regview.Shr128(v, n)
		case module.FuncSar:
			r = regview.Sar128(v, n)
		}
		return fromValue128(r)
	}

	n %= uint(w)
	var r uint64
	switch fn {
	case module.FuncShl:
		r = a.lo << n
	case module.FuncShr:
		r = a.lo >> n
	case module.FuncSar:
		se := regview.SignExtend(a.lo, w)
		r = uint64(int64(se) >> n)
	}
	return wideVal{lo: r}
}
