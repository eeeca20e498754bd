// Package module implements the hazna module binary format: the
// decoder/encoder for the on-wire layout described in spec.md §4.2 and
// the structural + per-instruction verifier described in §4.3. A
// Module is immutable once it passes Verify.
package module

import "github.com/hazna-vm/hazna/regview"

// Magic is the fixed 8-byte prefix of every module.
var Magic = [8]byte{'[', 'h', 'z', 'a', '0', '0', ']', '\n'}

// HeaderFields is the count of uint32 fields in the fixed header,
// not counting the magic.
const HeaderFields = 14

// Class identifies an instruction's operand shape (spec.md §4.4).
type Class uint8

const (
	ClassNNN Class = iota // no operands: nop, halt, return
	ClassRNN               // one register: debug-out
	ClassRRN               // unary over registers: not, neg
	ClassRRR               // binary over registers: add/sub/or/xor/and
	ClassQRR               // binary, double-width register destination
	ClassQRC               // binary with const, double-width destination
	ClassRRC               // binary with const operand
	ClassRRS               // shift by register (secondary size)
	ClassRR4               // shift by 4-bit immediate
	ClassSRN               // zero/sign extend: secondary dest <- primary src
	ClassRCN               // register <- immediate (init)
	ClassRNP               // branch pair on zero/nonzero
	ClassRRP               // branch pair on register comparison
	ClassRCP               // branch pair on register-vs-const comparison
	ClassRRG               // three-way branch on register comparison
	ClassRCG               // three-way branch on register-vs-const comparison
	ClassRLT               // table-switch
	ClassRAN               // load/store, address register only
	ClassRAA               // load/store, address + register offset
	ClassRA4               // load/store, address + 4-bit immediate offset
	ClassRA5               // load/store, address + 16-bit immediate offset
	ClassRA6               // load/store, address + 32/64-bit pool offset
	classCount
)

func (c Class) Valid() bool { return c < classCount }

// Func is a class-scoped sub-opcode (the operation within a class).
type Func uint8

// NNN functions.
const (
	FuncNop Func = iota
	FuncHalt
	FuncReturn
)

// RNN functions.
const FuncDebugOut Func = 0

// RRN functions.
const (
	FuncNot Func = iota
	FuncNeg
)

// RRR / RRC arithmetic functions (shared numbering).
const (
	FuncAdd Func = iota
	FuncSub
	FuncOr
	FuncXor
	FuncAnd
	FuncMul
)

// QRR / QRC widening functions.
const (
	FuncAddQ Func = iota
	FuncMulQ
)

// RRS / RR4 shift functions.
const (
	FuncShl Func = iota
	FuncShr
	FuncSar
)

// SRN functions.
const (
	FuncZeroExtend Func = iota
	FuncSignExtend
)

// RCN functions.
const FuncInit Func = 0

// RNP / RRP / RCP / RRG / RCG functions.
const FuncBranch Func = 0

// RLT functions.
const FuncTableJump Func = 0

// RAN / RAA / RA4 / RA5 / RA6 functions.
const (
	FuncLoad Func = iota
	FuncStore
)

// sizeTable maps a 3-bit size index to its register width.
var sizeTable = [8]regview.Width{
	regview.Width1, regview.Width2, regview.Width4, regview.Width8,
	regview.Width16, regview.Width32, regview.Width64, regview.Width128,
}

// SizeIndex is the 3-bit index into sizeTable carried by an opcode.
type SizeIndex uint8

func (s SizeIndex) Width() regview.Width { return sizeTable[s&7] }

// SizeIndexOf returns the index for a given width, and false if w is
// not one of the eight supported widths.
func SizeIndexOf(w regview.Width) (SizeIndex, bool) {
	for i, sw := range sizeTable {
		if sw == w {
			return SizeIndex(i), true
		}
	}
	return 0, false
}

// Opcode bit layout (16 bits): class[15:11] | primary[10:8] | secondary[7:5] | func[4:0].
const (
	classShift     = 11
	primaryShift   = 8
	secondaryShift = 5
	funcMask       = 0x1F
	classMask5     = 0x1F
	sizeMask3      = 0x7
)

// EncodeOpcode packs a class/size/func triple into the 16-bit opcode.
func EncodeOpcode(c Class, primary, secondary SizeIndex, fn Func) uint16 {
	return uint16(c&classMask5)<<classShift |
		uint16(primary&sizeMask3)<<primaryShift |
		uint16(secondary&sizeMask3)<<secondaryShift |
		uint16(fn&funcMask)
}

// DecodeOpcode unpacks the 16-bit opcode into its fields.
func DecodeOpcode(op uint16) (c Class, primary, secondary SizeIndex, fn Func) {
	c = Class((op >> classShift) & classMask5)
	primary = SizeIndex((op >> primaryShift) & sizeMask3)
	secondary = SizeIndex((op >> secondaryShift) & sizeMask3)
	fn = Func(op & funcMask)
	return
}

// Instruction is the fixed 64-bit record: a 16-bit opcode and three
// 16-bit operand fields.
type Instruction struct {
	Opcode uint16
	A, B, C uint16
}

func (i Instruction) Decode() (Class, SizeIndex, SizeIndex, Func) {
	return DecodeOpcode(i.Opcode)
}

// Target is an instruction index within the enclosing procedure's
// instruction slice.
type Target uint32

// Proc is a view into its module: slices of the four pools plus the
// local target table, and the computed register footprint.
type Proc struct {
	Name         uint32 // data-block index, 0 if unexported/unnamed
	InsnStart    uint32
	TargetStart  uint32
	Const128Start uint32
	Const64Start uint32
	Const32Start uint32

	// Populated by the owning Module at decode time: the slice ends,
	// taken from the next proc table record (or the sentinel).
	InsnEnd       uint32
	TargetEnd     uint32
	Const128End   uint32
	Const64End    uint32
	Const32End    uint32

	// RegSize is computed by Verify: the minimum register footprint in
	// bytes needed to execute any instruction in this procedure.
	RegSize uint32
}

func (p *Proc) Instructions(m *Module) []Instruction {
	return m.Instructions[p.InsnStart:p.InsnEnd]
}
func (p *Proc) Targets(m *Module) []Target {
	return m.Targets[p.TargetStart:p.TargetEnd]
}
func (p *Proc) Const128Pool(m *Module) []regview.Value128 {
	return m.Const128[p.Const128Start:p.Const128End]
}
func (p *Proc) Const64Pool(m *Module) []uint64 {
	return m.Const64[p.Const64Start:p.Const64End]
}
func (p *Proc) Const32Pool(m *Module) []uint32 {
	return m.Const32[p.Const32Start:p.Const32End]
}

// Module is an immutable-after-load aggregate: a procedure table, an
// instruction pool, a target pool, three constant pools, a data blob
// plus its block index, and optionally export/import tables.
type Module struct {
	// Id is a monotonically assigned module id, unique for the lifetime
	// of the world that loaded it. Zero until the module is loaded into
	// a runtime.World.
	Id uint64

	Name uint32 // data-block index naming this module, 0 if unnamed

	Const32  []uint32
	Const64  []uint64
	Const128 []regview.Value128

	Procs        []Proc // length proc_count+1, last is the sentinel
	Targets      []Target
	Instructions []Instruction

	DataBlockOffsets []uint32 // length data_block_count+1
	Data             []byte

	// Exports maps an exported name (data-block index) to a proc index.
	Exports map[uint32]uint32

	// ImportModuleCount is read from the reserved header section. The
	// decoder rejects any nonzero value (spec.md §9 open question: the
	// import-module section is reserved, resolution semantics are not
	// implemented here).
	ImportModuleCount uint32
}

// ProcCount returns the number of real (non-sentinel) procedures.
func (m *Module) ProcCount() int {
	if len(m.Procs) == 0 {
		return 0
	}
	return len(m.Procs) - 1
}

// DataBlock returns the raw bytes of data block index i.
func (m *Module) DataBlock(i uint32) []byte {
	start := m.DataBlockOffsets[i]
	end := m.DataBlockOffsets[i+1]
	return m.Data[start:end]
}

// FindExport looks up an exported procedure by name, returning its
// procedure index. Corresponds to the Core API's export_index.
func (m *Module) FindExport(name []byte) (int, bool) {
	for nameIdx, procIdx := range m.Exports {
		if string(m.DataBlock(nameIdx)) == string(name) {
			return int(procIdx), true
		}
	}
	return 0, false
}
