package engine

import (
	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/regview"
	"github.com/hazna-vm/hazna/status"
)

// DebugFunc receives one debug-out value, already read at its register
// width. runtime wires this to the log sink at Info level.
type DebugFunc func(w regview.Width, value uint64)

// Enter pushes a new frame for procIdx of mod onto t, growing the
// register buffer and frame stack as needed (spec.md §4.5). regShift is
// the byte distance from the caller frame's register base to the
// callee's (0 for the task's first frame).
func Enter(t *Task, mod *module.Module, procIdx int, modMapIdx uint32, regShift uint32) *status.Status {
	if procIdx < 0 || procIdx >= mod.ProcCount() {
		return status.New(status.ProcIndex, "procedure index out of range")
	}
	if regShift%16 != 0 {
		return status.New(status.Bug, "register shift is not 16-byte aligned")
	}
	proc := &mod.Procs[procIdx]

	var base uint32
	if top := t.Top(); top != nil {
		base = top.RegBase + regShift
	}
	needed := base + proc.RegSize
	t.ensureRegCapacity(needed)
	t.ensureFrameCapacity(len(t.Frames) + 1)

	t.Frames = t.Frames[:len(t.Frames)+1]
	t.Frames[len(t.Frames)-1] = Frame{
		Mod:       mod,
		ProcIdx:   uint32(procIdx),
		Proc:      proc,
		RegBase:   base,
		ModMapIdx: modMapIdx,
	}
	return nil
}

// stepResult tells Run what happened to the frame stack.
type stepResult int

const (
	stepContinue stepResult = iota
	stepJumped
	stepReturned
	stepHalted
)

func isBranchClass(c module.Class) bool {
	switch c {
	case module.ClassRNP, module.ClassRRP, module.ClassRCP, module.ClassRRG, module.ClassRCG, module.ClassRLT:
		return true
	default:
		return false
	}
}

// Run drives t's top frame until either: the frame stack depth reaches
// frameStop, the task halts, the iteration budget is spent, or a fatal
// status occurs. It returns the number of instructions actually
// executed this call.
//
// The budget is only checked at branch-class instructions, so a burst
// with budget N executes between 1 and N plus the longest linear run
// between two branches, minus one. Branches leave the frame cursor on
// the taken target, so the caller can simply invoke Run again to
// resume where the burst left off.
//
// iterLimit == 0 means unbounded: the burst ends only at frameStop, a
// halt, or a fatal status.
func Run(t *Task, frameStop int, iterLimit uint64, debug DebugFunc) (uint64, *status.Status) {
	var executed uint64
	for {
		if len(t.Frames) <= frameStop {
			return executed, nil
		}
		f := &t.Frames[len(t.Frames)-1]
		insns := f.Proc.Instructions(f.Mod)
		if f.Cursor >= uint32(len(insns)) {
			return executed, status.New(status.Bug, "frame cursor past end of procedure")
		}
		insn := insns[f.Cursor]
		class, _, _, _ := insn.Decode()

		res, st := t.step(f, insn, debug)
		if st != nil {
			return executed, st
		}
		executed++

		if res == stepHalted {
			return executed, nil
		}

		if isBranchClass(class) && iterLimit > 0 && executed >= iterLimit {
			return executed, nil
		}

		if res == stepContinue {
			f.Cursor++
		}
	}
}

// step executes exactly one instruction against frame f, mutating f's
// cursor (for linear/jump flow) or t.Frames (for return/halt).
func (t *Task) step(f *Frame, insn module.Instruction, debug DebugFunc) (stepResult, *status.Status) {
	class, primaryIdx, secondaryIdx, fn := insn.Decode()
	pw := primaryIdx.Width()
	sw := secondaryIdx.Width()
	view := t.View(f)
	proc := f.Proc
	mod := f.Mod

	switch class {
	case module.ClassNNN:
		switch fn {
		case module.FuncNop:
			return stepContinue, nil
		case module.FuncHalt:
			t.Frames = t.Frames[:0]
			t.State = StateDone
			return stepHalted, nil
		case module.FuncReturn:
			t.Frames = t.Frames[:len(t.Frames)-1]
			return stepReturned, nil
		}
		return 0, status.New(status.Bug, "unreachable NNN function")

	case module.ClassRNN: // debug-out
		v := readAny(view, insn.A, pw)
		if debug != nil {
			debug(pw, v.lo)
		}
		return stepContinue, nil

	case module.ClassRRN: // not/neg
		a := readAny(view, insn.B, pw)
		var r wideVal
		switch fn {
		case module.FuncNot:
			r = a.not()
		case module.FuncNeg:
			r = a.neg()
		default:
			return 0, status.New(status.Bug, "unknown RRN function")
		}
		writeAny(view, insn.A, pw, r)
		return stepContinue, nil

	case module.ClassRRR:
		a := readAny(view, insn.B, pw)
		b := readAny(view, insn.C, pw)
		r, err := binOp(fn, a, b, pw)
		if err != nil {
			return 0, err
		}
		writeAny(view, insn.A, pw, r)
		return stepContinue, nil

	case module.ClassRRC:
		a := readAny(view, insn.B, pw)
		b := constOperand(mod, proc, pw, insn.C)
		r, err := binOp(fn, a, b, pw)
		if err != nil {
			return 0, err
		}
		writeAny(view, insn.A, pw, r)
		return stepContinue, nil

	case module.ClassQRR:
		a := readAny(view, insn.B, pw)
		b := readAny(view, insn.C, pw)
		r := widenOp(fn, a, b, pw)
		writeAny(view, insn.A, doubleWidth(pw), r)
		return stepContinue, nil

	case module.ClassQRC:
		a := readAny(view, insn.B, pw)
		b := constOperand(mod, proc, pw, insn.C)
		r := widenOp(fn, a, b, pw)
		writeAny(view, insn.A, doubleWidth(pw), r)
		return stepContinue, nil

	case module.ClassRRS:
		a := readAny(view, insn.B, pw)
		n := uint(readAny(view, insn.C, sw).lo)
		r := shiftOp(fn, a, n, pw)
		writeAny(view, insn.A, pw, r)
		return stepContinue, nil

	case module.ClassRR4:
		a := readAny(view, insn.B, pw)
		r := shiftOp(fn, a, uint(insn.C), pw)
		writeAny(view, insn.A, pw, r)
		return stepContinue, nil

	case module.ClassSRN:
		src := readAny(view, insn.B, pw)
		var r wideVal
		if sw == regview.Width128 {
			r = extendTo128(fn, src.lo, pw)
		} else if fn == module.FuncSignExtend {
			r = wideVal{lo: regview.SignExtend(src.lo, pw)}
		} else {
			r = wideVal{lo: regview.ZeroExtend(src.lo, pw)}
		}
		writeAny(view, insn.A, sw, r)
		return stepContinue, nil

	case module.ClassRCN:
		var v wideVal
		switch {
		case pw < regview.Width32:
			v = wideVal{lo: uint64(insn.C)}
		default:
			v = constOperand(mod, proc, pw, insn.C)
		}
		writeAny(view, insn.A, pw, v)
		return stepContinue, nil

	case module.ClassRNP:
		zero := readAny(view, insn.A, pw).isZero()
		return t.branchPair(f, zero, insn.B)

	case module.ClassRRP:
		a := readAny(view, insn.A, pw)
		b := readAny(view, insn.B, pw)
		return t.branchPair(f, a.equals(b), insn.C)

	case module.ClassRCP:
		a := readAny(view, insn.A, pw)
		c := constOperand(mod, proc, pw, insn.B)
		return t.branchPair(f, a.equals(c), insn.C)

	case module.ClassRRG:
		a := readAny(view, insn.A, pw)
		b := readAny(view, insn.B, pw)
		return t.branchTriplet(f, a.compare(b), insn.C)

	case module.ClassRCG:
		a := readAny(view, insn.A, pw)
		c := constOperand(mod, proc, pw, insn.B)
		return t.branchTriplet(f, a.compare(c), insn.C)

	case module.ClassRLT:
		idx := readAny(view, insn.A, pw).lo
		targets := proc.Targets(mod)
		length := uint64(insn.C)
		if idx >= length {
			return stepContinue, nil // out-of-range index: fall through
		}
		tgt := targets[int(insn.B)+int(idx)]
		f.Cursor = uint32(tgt)
		return stepJumped, nil

	case module.ClassRAN:
		return t.memAccess(view, fn, insn.A, pw, readAny(view, insn.B, regview.Width64).lo, 0)
	case module.ClassRAA:
		off := readAny(view, insn.C, regview.Width64).lo
		return t.memAccess(view, fn, insn.A, pw, readAny(view, insn.B, regview.Width64).lo, off)
	case module.ClassRA4:
		return t.memAccess(view, fn, insn.A, pw, readAny(view, insn.B, regview.Width64).lo, uint64(insn.C))
	case module.ClassRA5:
		return t.memAccess(view, fn, insn.A, pw, readAny(view, insn.B, regview.Width64).lo, uint64(insn.C))
	case module.ClassRA6:
		off := constOperand(mod, proc, sw, insn.C).lo
		return t.memAccess(view, fn, insn.A, pw, readAny(view, insn.B, regview.Width64).lo, off)

	default:
		return 0, status.New(status.UnsupportedOpcode, "unhandled instruction class")
	}
}

// memAccess loads from or stores to the task's linear memory (the
// engine's concrete memory model: a separate byte-addressable region
// indexed by a 64-bit address register plus offset, distinct from the
// register file, growing by doubling like Reg and Frames).
func (t *Task) memAccess(regView regview.View, fn module.Func, valueField uint16, w regview.Width, addr, off uint64) (stepResult, *status.Status) {
	addr += off
	needed := addr + uint64(w.Bytes())
	t.ensureMemCapacity(needed)
	memView := regview.View{Buf: t.Mem}
	bitOff := addr * 8
	switch fn {
	case module.FuncLoad:
		v := readAnyView(memView, uint32(bitOff), w)
		writeAny(regView, valueField, w, v)
	case module.FuncStore:
		v := readAny(regView, valueField, w)
		writeAnyView(memView, uint32(bitOff), w, v)
	default:
		return stepContinue, status.New(status.Bug, "unknown memory function")
	}
	return stepContinue, nil
}

// branchPair resolves an RNP/RRP/RCP branch: targets[pairIdx] is taken
// when cond is true (zero, or equal), targets[pairIdx+1] otherwise.
func (t *Task) branchPair(f *Frame, cond bool, pairIdx uint16) (stepResult, *status.Status) {
	targets := f.Proc.Targets(f.Mod)
	i := int(pairIdx)
	if cond {
		f.Cursor = uint32(targets[i])
	} else {
		f.Cursor = uint32(targets[i+1])
	}
	return stepJumped, nil
}

// branchTriplet resolves an RRG/RCG three-way branch: cmp < 0 takes
// targets[i], cmp == 0 takes targets[i+1], cmp > 0 takes targets[i+2].
func (t *Task) branchTriplet(f *Frame, cmp int, tripletIdx uint16) (stepResult, *status.Status) {
	targets := f.Proc.Targets(f.Mod)
	i := int(tripletIdx)
	switch {
	case cmp < 0:
		f.Cursor = uint32(targets[i])
	case cmp == 0:
		f.Cursor = uint32(targets[i+1])
	default:
		f.Cursor = uint32(targets[i+2])
	}
	return stepJumped, nil
}

