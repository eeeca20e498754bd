package module

import "github.com/hazna-vm/hazna/regview"

// Builder assembles a Module in memory from already-resolved opcodes
// and operands. It is not a compiler or assembler (those are out of
// scope per spec.md §1): it never parses symbolic source, it only
// linearizes proc/instruction/target/constant data the caller already
// decided on. It is used by tests and by the bundled core module.
type Builder struct {
	name       uint32
	dataBlocks [][]byte // index 0 is always the empty block
	procs      []*ProcBuilder
}

// ProcBuilder accumulates one procedure's pools.
type ProcBuilder struct {
	b        *Builder
	name     uint32
	insns    []Instruction
	targets  []Target
	const32  []uint32
	const64  []uint64
	const128 []regview.Value128
}

// NewBuilder creates an empty module builder. Data block 0 is a
// reserved one-byte placeholder: Name == 0 means "unnamed" by
// convention and DataBlock(0) is never meant to be dereferenced, but
// every block (including block 0) still needs at least one byte so the
// strictly-increasing offset-table invariant holds trivially.
func NewBuilder() *Builder {
	return &Builder{dataBlocks: [][]byte{{0}}}
}

// SetName gives the module itself a name, stored as a new data block.
func (b *Builder) SetName(name string) {
	b.name = b.addData(name)
}

func (b *Builder) addData(s string) uint32 {
	if s == "" {
		return 0
	}
	return b.AddDataBlock([]byte(s))
}

// AddDataBlock adds an arbitrary data block (e.g. a string a DebugOut
// loop walks) and returns its index. An empty slice is padded to one
// byte to preserve the strictly-increasing offset invariant.
func (b *Builder) AddDataBlock(data []byte) uint32 {
	if len(data) == 0 {
		data = []byte{0}
	}
	idx := uint32(len(b.dataBlocks))
	b.dataBlocks = append(b.dataBlocks, append([]byte(nil), data...))
	return idx
}

// NewProc starts a new procedure. name == "" leaves it unexported.
func (b *Builder) NewProc(name string) *ProcBuilder {
	pb := &ProcBuilder{b: b, name: b.addData(name)}
	b.procs = append(b.procs, pb)
	return pb
}

// Build assembles and verifies the module, returning the verify error
// (if any) so callers never receive an unverified Module.
func (b *Builder) Build() (*Module, error) {
	m := &Module{Name: b.name}

	for _, p := range b.procs {
		m.Procs = append(m.Procs, Proc{
			Name:          p.name,
			InsnStart:     uint32(len(m.Instructions)),
			TargetStart:   uint32(len(m.Targets)),
			Const128Start: uint32(len(m.Const128)),
			Const64Start:  uint32(len(m.Const64)),
			Const32Start:  uint32(len(m.Const32)),
		})
		m.Instructions = append(m.Instructions, p.insns...)
		m.Targets = append(m.Targets, p.targets...)
		m.Const128 = append(m.Const128, p.const128...)
		m.Const64 = append(m.Const64, p.const64...)
		m.Const32 = append(m.Const32, p.const32...)
	}
	// Sentinel.
	m.Procs = append(m.Procs, Proc{
		InsnStart:     uint32(len(m.Instructions)),
		TargetStart:   uint32(len(m.Targets)),
		Const128Start: uint32(len(m.Const128)),
		Const64Start:  uint32(len(m.Const64)),
		Const32Start:  uint32(len(m.Const32)),
	})
	fillProcEnds(m)

	offs := make([]uint32, 1, len(b.dataBlocks)+1)
	offs[0] = 0
	var data []byte
	for _, blk := range b.dataBlocks {
		data = append(data, blk...)
		offs = append(offs, uint32(len(data)))
	}
	m.DataBlockOffsets = offs
	m.Data = data

	if err := Verify(m); err != nil {
		return nil, err
	}
	buildExports(m)
	return m, nil
}

func mustSizeIndex(w regview.Width) SizeIndex {
	si, ok := SizeIndexOf(w)
	if !ok {
		panic("module: unsupported width")
	}
	return si
}

func (p *ProcBuilder) emit(class Class, primary, secondary regview.Width, fn Func, a, b, c uint16) *ProcBuilder {
	op := EncodeOpcode(class, mustSizeIndex(primary), mustSizeIndex(secondary), fn)
	p.insns = append(p.insns, Instruction{Opcode: op, A: a, B: b, C: c})
	return p
}

// AddConst32/64/128 append a constant and return its pool index.
func (p *ProcBuilder) AddConst32(v uint32) uint16 {
	p.const32 = append(p.const32, v)
	return uint16(len(p.const32) - 1)
}
func (p *ProcBuilder) AddConst64(v uint64) uint16 {
	p.const64 = append(p.const64, v)
	return uint16(len(p.const64) - 1)
}
func (p *ProcBuilder) AddConst128(v regview.Value128) uint16 {
	p.const128 = append(p.const128, v)
	return uint16(len(p.const128) - 1)
}

// AddTargetPair/Triplet/Table append local instruction indices to the
// proc's target table and return the base index operands reference.
func (p *ProcBuilder) AddTargetPair(t0, t1 uint32) uint16 {
	base := uint16(len(p.targets))
	p.targets = append(p.targets, Target(t0), Target(t1))
	return base
}
func (p *ProcBuilder) AddTargetTriplet(t0, t1, t2 uint32) uint16 {
	base := uint16(len(p.targets))
	p.targets = append(p.targets, Target(t0), Target(t1), Target(t2))
	return base
}
func (p *ProcBuilder) AddTargetTable(ts ...uint32) (start, length uint16) {
	start = uint16(len(p.targets))
	for _, t := range ts {
		p.targets = append(p.targets, Target(t))
	}
	return start, uint16(len(ts))
}

// NextInsnIndex returns the local index the next emitted instruction
// will receive — useful for wiring up branch targets before or after
// emitting the branch itself.
func (p *ProcBuilder) NextInsnIndex() uint32 { return uint32(len(p.insns)) }

func (p *ProcBuilder) Nop() *ProcBuilder    { return p.emit(ClassNNN, regview.Width8, regview.Width8, FuncNop, 0, 0, 0) }
func (p *ProcBuilder) Halt() *ProcBuilder   { return p.emit(ClassNNN, regview.Width8, regview.Width8, FuncHalt, 0, 0, 0) }
func (p *ProcBuilder) Return() *ProcBuilder { return p.emit(ClassNNN, regview.Width8, regview.Width8, FuncReturn, 0, 0, 0) }

func (p *ProcBuilder) DebugOut(w regview.Width, regOff uint32) *ProcBuilder {
	return p.emit(ClassRNN, w, w, FuncDebugOut, uint16(regOff), 0, 0)
}

func (p *ProcBuilder) Not(w regview.Width, dst, src uint32) *ProcBuilder {
	return p.emit(ClassRRN, w, w, FuncNot, uint16(dst), uint16(src), 0)
}
func (p *ProcBuilder) Neg(w regview.Width, dst, src uint32) *ProcBuilder {
	return p.emit(ClassRRN, w, w, FuncNeg, uint16(dst), uint16(src), 0)
}

func (p *ProcBuilder) binR(w regview.Width, fn Func, dst, src1, src2 uint32) *ProcBuilder {
	return p.emit(ClassRRR, w, w, fn, uint16(dst), uint16(src1), uint16(src2))
}
func (p *ProcBuilder) Add(w regview.Width, dst, s1, s2 uint32) *ProcBuilder { return p.binR(w, FuncAdd, dst, s1, s2) }
func (p *ProcBuilder) Sub(w regview.Width, dst, s1, s2 uint32) *ProcBuilder { return p.binR(w, FuncSub, dst, s1, s2) }
func (p *ProcBuilder) Or(w regview.Width, dst, s1, s2 uint32) *ProcBuilder { return p.binR(w, FuncOr, dst, s1, s2) }
func (p *ProcBuilder) Xor(w regview.Width, dst, s1, s2 uint32) *ProcBuilder { return p.binR(w, FuncXor, dst, s1, s2) }
func (p *ProcBuilder) And(w regview.Width, dst, s1, s2 uint32) *ProcBuilder { return p.binR(w, FuncAnd, dst, s1, s2) }
func (p *ProcBuilder) Mul(w regview.Width, dst, s1, s2 uint32) *ProcBuilder { return p.binR(w, FuncMul, dst, s1, s2) }

func (p *ProcBuilder) AddQ(w regview.Width, dst, s1, s2 uint32) *ProcBuilder {
	return p.emit(ClassQRR, w, w, FuncAddQ, uint16(dst), uint16(s1), uint16(s2))
}
func (p *ProcBuilder) MulQ(w regview.Width, dst, s1, s2 uint32) *ProcBuilder {
	return p.emit(ClassQRR, w, w, FuncMulQ, uint16(dst), uint16(s1), uint16(s2))
}
func (p *ProcBuilder) AddQC(w regview.Width, dst, src uint32, constIdx uint16) *ProcBuilder {
	return p.emit(ClassQRC, w, w, FuncAddQ, uint16(dst), uint16(src), constIdx)
}

func (p *ProcBuilder) binC(w regview.Width, fn Func, dst, src uint32, constIdx uint16) *ProcBuilder {
	return p.emit(ClassRRC, w, w, fn, uint16(dst), uint16(src), constIdx)
}
func (p *ProcBuilder) AddC(w regview.Width, dst, src uint32, c uint16) *ProcBuilder { return p.binC(w, FuncAdd, dst, src, c) }
func (p *ProcBuilder) SubC(w regview.Width, dst, src uint32, c uint16) *ProcBuilder { return p.binC(w, FuncSub, dst, src, c) }
func (p *ProcBuilder) MulC(w regview.Width, dst, src uint32, c uint16) *ProcBuilder { return p.binC(w, FuncMul, dst, src, c) }

func (p *ProcBuilder) shiftReg(w, sw regview.Width, fn Func, dst, src, shiftReg uint32) *ProcBuilder {
	return p.emit(ClassRRS, w, sw, fn, uint16(dst), uint16(src), uint16(shiftReg))
}
func (p *ProcBuilder) Shl(w, sw regview.Width, dst, src, shiftReg uint32) *ProcBuilder {
	return p.shiftReg(w, sw, FuncShl, dst, src, shiftReg)
}
func (p *ProcBuilder) Shr(w, sw regview.Width, dst, src, shiftReg uint32) *ProcBuilder {
	return p.shiftReg(w, sw, FuncShr, dst, src, shiftReg)
}
func (p *ProcBuilder) Sar(w, sw regview.Width, dst, src, shiftReg uint32) *ProcBuilder {
	return p.shiftReg(w, sw, FuncSar, dst, src, shiftReg)
}

func (p *ProcBuilder) Shl4(w regview.Width, dst, src uint32, imm4 uint16) *ProcBuilder {
	return p.emit(ClassRR4, w, w, FuncShl, uint16(dst), uint16(src), imm4)
}
func (p *ProcBuilder) Shr4(w regview.Width, dst, src uint32, imm4 uint16) *ProcBuilder {
	return p.emit(ClassRR4, w, w, FuncShr, uint16(dst), uint16(src), imm4)
}
func (p *ProcBuilder) Sar4(w regview.Width, dst, src uint32, imm4 uint16) *ProcBuilder {
	return p.emit(ClassRR4, w, w, FuncSar, uint16(dst), uint16(src), imm4)
}

func (p *ProcBuilder) ZeroExtend(srcW, dstW regview.Width, dst, src uint32) *ProcBuilder {
	return p.emit(ClassSRN, srcW, dstW, FuncZeroExtend, uint16(dst), uint16(src), 0)
}
func (p *ProcBuilder) SignExtend(srcW, dstW regview.Width, dst, src uint32) *ProcBuilder {
	return p.emit(ClassSRN, srcW, dstW, FuncSignExtend, uint16(dst), uint16(src), 0)
}

// InitInline sets dst to imm. Widths below 32 bits carry imm directly
// in operand C; for 32- and 64-bit widths, whose init operand is a
// constant-pool index, imm is appended to the matching pool first.
func (p *ProcBuilder) InitInline(w regview.Width, dst uint32, imm uint16) *ProcBuilder {
	switch w {
	case regview.Width32:
		return p.InitConst(w, dst, p.AddConst32(uint32(imm)))
	case regview.Width64:
		return p.InitConst(w, dst, p.AddConst64(uint64(imm)))
	}
	return p.emit(ClassRCN, w, w, FuncInit, uint16(dst), 0, imm)
}
func (p *ProcBuilder) InitConst(w regview.Width, dst uint32, constIdx uint16) *ProcBuilder {
	return p.emit(ClassRCN, w, w, FuncInit, uint16(dst), 0, constIdx)
}

func (p *ProcBuilder) BranchZeroNonzero(w regview.Width, reg uint32, pairIdx uint16) *ProcBuilder {
	return p.emit(ClassRNP, w, w, FuncBranch, uint16(reg), pairIdx, 0)
}
func (p *ProcBuilder) BranchRegPair(w regview.Width, r1, r2 uint32, pairIdx uint16) *ProcBuilder {
	return p.emit(ClassRRP, w, w, FuncBranch, uint16(r1), uint16(r2), pairIdx)
}
func (p *ProcBuilder) BranchConstPair(w regview.Width, reg uint32, constIdx, pairIdx uint16) *ProcBuilder {
	return p.emit(ClassRCP, w, w, FuncBranch, uint16(reg), constIdx, pairIdx)
}
func (p *ProcBuilder) BranchRegTriplet(w regview.Width, r1, r2 uint32, tripletIdx uint16) *ProcBuilder {
	return p.emit(ClassRRG, w, w, FuncBranch, uint16(r1), uint16(r2), tripletIdx)
}
func (p *ProcBuilder) BranchConstTriplet(w regview.Width, reg uint32, constIdx, tripletIdx uint16) *ProcBuilder {
	return p.emit(ClassRCG, w, w, FuncBranch, uint16(reg), constIdx, tripletIdx)
}
func (p *ProcBuilder) TableJump(w regview.Width, reg uint32, start, length uint16) *ProcBuilder {
	return p.emit(ClassRLT, w, w, FuncTableJump, uint16(reg), start, length)
}

func (p *ProcBuilder) Load(w regview.Width, valueReg, addrReg uint32) *ProcBuilder {
	return p.emit(ClassRAN, w, w, FuncLoad, uint16(valueReg), uint16(addrReg), 0)
}
func (p *ProcBuilder) Store(w regview.Width, valueReg, addrReg uint32) *ProcBuilder {
	return p.emit(ClassRAN, w, w, FuncStore, uint16(valueReg), uint16(addrReg), 0)
}
func (p *ProcBuilder) LoadOff(w regview.Width, valueReg, addrReg, offReg uint32) *ProcBuilder {
	return p.emit(ClassRAA, w, w, FuncLoad, uint16(valueReg), uint16(addrReg), uint16(offReg))
}
func (p *ProcBuilder) StoreOff(w regview.Width, valueReg, addrReg, offReg uint32) *ProcBuilder {
	return p.emit(ClassRAA, w, w, FuncStore, uint16(valueReg), uint16(addrReg), uint16(offReg))
}
func (p *ProcBuilder) LoadImm4(w regview.Width, valueReg, addrReg uint32, imm4 uint16) *ProcBuilder {
	return p.emit(ClassRA4, w, w, FuncLoad, uint16(valueReg), uint16(addrReg), imm4)
}
func (p *ProcBuilder) StoreImm4(w regview.Width, valueReg, addrReg uint32, imm4 uint16) *ProcBuilder {
	return p.emit(ClassRA4, w, w, FuncStore, uint16(valueReg), uint16(addrReg), imm4)
}
func (p *ProcBuilder) LoadImm16(w regview.Width, valueReg, addrReg uint32, imm16 uint16) *ProcBuilder {
	return p.emit(ClassRA5, w, w, FuncLoad, uint16(valueReg), uint16(addrReg), imm16)
}
func (p *ProcBuilder) StoreImm16(w regview.Width, valueReg, addrReg uint32, imm16 uint16) *ProcBuilder {
	return p.emit(ClassRA5, w, w, FuncStore, uint16(valueReg), uint16(addrReg), imm16)
}
func (p *ProcBuilder) LoadConstOff(w, offW regview.Width, valueReg, addrReg uint32, constIdx uint16) *ProcBuilder {
	return p.emit(ClassRA6, w, offW, FuncLoad, uint16(valueReg), uint16(addrReg), constIdx)
}
func (p *ProcBuilder) StoreConstOff(w, offW regview.Width, valueReg, addrReg uint32, constIdx uint16) *ProcBuilder {
	return p.emit(ClassRA6, w, offW, FuncStore, uint16(valueReg), uint16(addrReg), constIdx)
}
