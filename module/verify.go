package module

import "github.com/hazna-vm/hazna/regview"

// Verify performs the structural checks of spec.md §4.3 (proc-table and
// data-block monotonicity/sentinels, name indices in range) and the
// per-instruction operand checks, computing each Proc's RegSize along
// the way. A module must pass Verify before it is trusted by the
// interpreter.
func Verify(m *Module) error {
	if err := verifyProcTable(m); err != nil {
		return err
	}
	if err := verifyDataBlocks(m); err != nil {
		return err
	}
	if err := verifyNames(m); err != nil {
		return err
	}
	for pi := 0; pi < m.ProcCount(); pi++ {
		if err := verifyProc(m, pi); err != nil {
			return err
		}
	}
	return nil
}

func verifyProcTable(m *Module) error {
	n := len(m.Procs)
	if n == 0 {
		return newErr(ErrModuleCorrupt, "empty proc table: missing sentinel")
	}
	for i := 0; i+1 < n; i++ {
		a, b := m.Procs[i], m.Procs[i+1]
		if b.InsnStart < a.InsnStart || b.TargetStart < a.TargetStart ||
			b.Const128Start < a.Const128Start || b.Const64Start < a.Const64Start ||
			b.Const32Start < a.Const32Start {
			return newErr(ErrModuleCorrupt, "proc %d start indices are not non-decreasing", i+1)
		}
	}
	s := m.Procs[n-1]
	if s.InsnStart != uint32(len(m.Instructions)) ||
		s.TargetStart != uint32(len(m.Targets)) ||
		s.Const128Start != uint32(len(m.Const128)) ||
		s.Const64Start != uint32(len(m.Const64)) ||
		s.Const32Start != uint32(len(m.Const32)) ||
		s.Name != 0 {
		return newErr(ErrModuleCorrupt, "sentinel proc entry does not equal pool sizes")
	}
	return nil
}

func verifyDataBlocks(m *Module) error {
	offs := m.DataBlockOffsets
	if len(offs) == 0 {
		return newErr(ErrModuleCorrupt, "missing data-block sentinel")
	}
	if offs[0] != 0 {
		return newErr(ErrModuleCorrupt, "first data-block offset must be 0")
	}
	for i := 0; i+1 < len(offs); i++ {
		if offs[i+1] <= offs[i] {
			return newErr(ErrModuleCorrupt, "data-block offsets must strictly increase at index %d", i)
		}
	}
	if offs[len(offs)-1] != uint32(len(m.Data)) {
		return newErr(ErrModuleCorrupt, "final data-block offset must equal data size")
	}
	return nil
}

func verifyNames(m *Module) error {
	blocks := len(m.DataBlockOffsets) - 1
	check := func(idx uint32) error {
		if idx == 0 {
			return nil
		}
		if int(idx) >= blocks {
			return newErr(ErrModuleCorrupt, "name data-block index %d out of range (%d blocks)", idx, blocks)
		}
		return nil
	}
	if err := check(m.Name); err != nil {
		return err
	}
	for i := 0; i < m.ProcCount(); i++ {
		if err := check(m.Procs[i].Name); err != nil {
			return err
		}
	}
	return nil
}

func verifyProc(m *Module, pi int) error {
	p := &m.Procs[pi]
	insns := p.Instructions(m)
	if len(insns) == 0 {
		return newInsnErr(ErrModuleCorrupt, pi, -1, "procedure has no instructions")
	}

	var maxBits uint32
	targetCount := int(p.TargetEnd - p.TargetStart)
	const128Len := int(p.Const128End - p.Const128Start)
	const64Len := int(p.Const64End - p.Const64Start)
	const32Len := int(p.Const32End - p.Const32Start)

	for ii, insn := range insns {
		bits, err := verifyInstruction(m, pi, ii, insn, targetCount, const32Len, const64Len, const128Len)
		if err != nil {
			return err
		}
		if bits > maxBits {
			maxBits = bits
		}
	}
	p.RegSize = (maxBits + 7) / 8

	last := insns[len(insns)-1]
	class, _, _, fn := last.Decode()
	if !isTerminating(class, fn) {
		return newInsnErr(ErrModuleCorrupt, pi, len(insns)-1, "procedure's last instruction is not a terminating instruction")
	}
	return nil
}

func isTerminating(c Class, fn Func) bool {
	switch c {
	case ClassNNN:
		return fn == FuncHalt || fn == FuncReturn
	case ClassRNP, ClassRRP, ClassRCP, ClassRRG, ClassRCG, ClassRLT:
		return true
	default:
		return false
	}
}

// verifyInstruction validates the operands of one instruction against
// its class, returning the highest bit offset any register operand
// reached (offset + width), for the RegSize computation.
func verifyInstruction(m *Module, pi, ii int, insn Instruction, targetCount, const32Len, const64Len, const128Len int) (uint32, error) {
	class, primary, secondary, fn := insn.Decode()
	if !class.Valid() {
		return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "invalid class %d", class)
	}
	pw := primary.Width()
	sw := secondary.Width()

	reg := func(field uint16, w regview.Width) (uint32, error) {
		off := uint32(field)
		if !regview.Aligned(off, w) {
			return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "register operand offset %d misaligned for width %d", off, w)
		}
		return off + uint32(w), nil
	}
	constIdx := func(field uint16, poolLen int) error {
		if int(field) >= poolLen {
			return newInsnErr(ErrModuleCorrupt, pi, ii, "constant index %d out of range (pool has %d entries)", field, poolLen)
		}
		return nil
	}
	poolFor := func(w regview.Width) (int, error) {
		switch w {
		case regview.Width32:
			return const32Len, nil
		case regview.Width64:
			return const64Len, nil
		case regview.Width128:
			return const128Len, nil
		default:
			return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "width %d has no constant pool", w)
		}
	}
	targetPair := func(field uint16) error {
		if int(field)+1 >= targetCount {
			return newInsnErr(ErrModuleCorrupt, pi, ii, "target-pair index %d out of range (%d targets)", field, targetCount)
		}
		return nil
	}
	targetTriplet := func(field uint16) error {
		if int(field)+2 >= targetCount {
			return newInsnErr(ErrModuleCorrupt, pi, ii, "target-triplet index %d out of range (%d targets)", field, targetCount)
		}
		return nil
	}
	targetTable := func(start, length uint16) error {
		if int(start)+int(length) > targetCount {
			return newInsnErr(ErrModuleCorrupt, pi, ii, "target-table [%d,+%d) out of range (%d targets)", start, length, targetCount)
		}
		return nil
	}

	var maxBits uint32
	bump := func(b uint32, err error) error {
		if err != nil {
			return err
		}
		if b > maxBits {
			maxBits = b
		}
		return nil
	}

	switch class {
	case ClassNNN:
		if fn != FuncNop && fn != FuncHalt && fn != FuncReturn {
			return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "unknown NNN function %d", fn)
		}

	case ClassRNN:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}

	case ClassRRN:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, pw)); err != nil {
			return 0, err
		}

	case ClassRRR:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.C, pw)); err != nil {
			return 0, err
		}

	case ClassQRR, ClassQRC:
		dwInt := int(pw) * 2
		if dwInt > 128 {
			return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "primary width %d has no double-width destination", pw)
		}
		dw := regview.Width(dwInt)
		if err := bump(reg(insn.A, dw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, pw)); err != nil {
			return 0, err
		}
		if class == ClassQRR {
			if err := bump(reg(insn.C, pw)); err != nil {
				return 0, err
			}
		} else {
			plen, err := poolFor(pw)
			if err != nil {
				return 0, err
			}
			if err := constIdx(insn.C, plen); err != nil {
				return 0, err
			}
		}

	case ClassRRC:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, pw)); err != nil {
			return 0, err
		}
		plen, err := poolFor(pw)
		if err != nil {
			return 0, err
		}
		if err := constIdx(insn.C, plen); err != nil {
			return 0, err
		}

	case ClassRRS:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.C, sw)); err != nil {
			return 0, err
		}

	case ClassRR4:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, pw)); err != nil {
			return 0, err
		}
		if insn.C > 0xF {
			return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "4-bit immediate %d out of range", insn.C)
		}

	case ClassSRN:
		if err := bump(reg(insn.A, sw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, pw)); err != nil {
			return 0, err
		}

	case ClassRCN:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		switch {
		case pw < regview.Width32:
			// Fits inline in the 16-bit operand field.
		case pw == regview.Width32, pw == regview.Width64:
			plen, err := poolFor(pw)
			if err != nil {
				return 0, err
			}
			if err := constIdx(insn.C, plen); err != nil {
				return 0, err
			}
		default:
			return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "init does not support width %d", pw)
		}

	case ClassRNP:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := targetPair(insn.B); err != nil {
			return 0, err
		}

	case ClassRRP:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, pw)); err != nil {
			return 0, err
		}
		if err := targetPair(insn.C); err != nil {
			return 0, err
		}

	case ClassRCP:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		plen, err := poolFor(pw)
		if err != nil {
			return 0, err
		}
		if err := constIdx(insn.B, plen); err != nil {
			return 0, err
		}
		if err := targetPair(insn.C); err != nil {
			return 0, err
		}

	case ClassRRG:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, pw)); err != nil {
			return 0, err
		}
		if err := targetTriplet(insn.C); err != nil {
			return 0, err
		}

	case ClassRCG:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		plen, err := poolFor(pw)
		if err != nil {
			return 0, err
		}
		if err := constIdx(insn.B, plen); err != nil {
			return 0, err
		}
		if err := targetTriplet(insn.C); err != nil {
			return 0, err
		}

	case ClassRLT:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := targetTable(insn.B, insn.C); err != nil {
			return 0, err
		}

	case ClassRAN:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, regview.Width64)); err != nil {
			return 0, err
		}
		if fn != FuncLoad && fn != FuncStore {
			return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "unknown memory function %d", fn)
		}

	case ClassRAA:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, regview.Width64)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.C, regview.Width64)); err != nil {
			return 0, err
		}

	case ClassRA4:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, regview.Width64)); err != nil {
			return 0, err
		}
		if insn.C > 0xF {
			return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "4-bit offset %d out of range", insn.C)
		}

	case ClassRA5:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, regview.Width64)); err != nil {
			return 0, err
		}
		// insn.C is a 16-bit immediate offset, any value is valid.

	case ClassRA6:
		if err := bump(reg(insn.A, pw)); err != nil {
			return 0, err
		}
		if err := bump(reg(insn.B, regview.Width64)); err != nil {
			return 0, err
		}
		if sw != regview.Width32 && sw != regview.Width64 {
			return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "RA6 secondary size must select the const32 or const64 pool")
		}
		plen, err := poolFor(sw)
		if err != nil {
			return 0, err
		}
		if err := constIdx(insn.C, plen); err != nil {
			return 0, err
		}

	default:
		return 0, newInsnErr(ErrModuleCorrupt, pi, ii, "unhandled class %d", class)
	}

	return maxBits, nil
}
