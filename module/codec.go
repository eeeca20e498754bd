package module

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/hazna-vm/hazna/regview"
)

const headerBytes = 8 + HeaderFields*4 // magic + 14 uint32 fields

// header field indices, see spec.md §4.2.
const (
	hTotalSize = iota
	hChecksum
	hName
	hConst128Count
	hConst64Count
	hConst32Count
	hProcCount
	hDataBlockCount
	hTargetCount
	hInsnCount
	hDataSize
	hReserved0 // import-module count (spec.md §9 open question)
	hReserved1
	hReserved2
)

// Decode parses a module from its on-wire binary form. It performs the
// layout checks of spec.md §4.2 (bounds, magic, size), rejects a
// non-zero import-module count and a checksum mismatch with
// ErrModuleCorrupt; Verify does the structural and per-instruction
// checks of §4.3.
func Decode(b []byte) (*Module, error) {
	if len(b) < headerBytes {
		return nil, newErr(ErrModuleTruncated, "file shorter than header (%d bytes)", len(b))
	}
	for i := 0; i < 8; i++ {
		if b[i] != Magic[i] {
			return nil, newErr(ErrModuleMagic, "bad magic")
		}
	}

	var h [HeaderFields]uint32
	for i := range h {
		off := 8 + i*4
		h[i] = binary.BigEndian.Uint32(b[off : off+4])
	}

	totalSize := int(h[hTotalSize])
	if totalSize < headerBytes || totalSize > len(b) {
		return nil, newErr(ErrModuleTruncated, "declared size %d out of range (have %d bytes)", totalSize, len(b))
	}
	if h[hReserved0] != 0 {
		return nil, newErr(ErrModuleCorrupt, "non-zero import-module count %d: import resolution is not implemented", h[hReserved0])
	}

	m := &Module{
		Name:              h[hName],
		ImportModuleCount: h[hReserved0],
	}

	cur := headerBytes
	need := func(n int) error {
		if cur+n > totalSize {
			return newErr(ErrModuleTruncated, "section at offset %d (len %d) extends past declared size %d", cur, n, totalSize)
		}
		return nil
	}

	// Constant pools, declared order: 128-bit, 64-bit, 32-bit.
	n128 := int(h[hConst128Count])
	if err := need(n128 * 16); err != nil {
		return nil, err
	}
	m.Const128 = make([]regview.Value128, n128)
	for i := 0; i < n128; i++ {
		hi := binary.BigEndian.Uint64(b[cur : cur+8])
		lo := binary.BigEndian.Uint64(b[cur+8 : cur+16])
		m.Const128[i] = regview.Value128{Hi: hi, Lo: lo}
		cur += 16
	}

	n64 := int(h[hConst64Count])
	if err := need(n64 * 8); err != nil {
		return nil, err
	}
	m.Const64 = make([]uint64, n64)
	for i := 0; i < n64; i++ {
		m.Const64[i] = binary.BigEndian.Uint64(b[cur : cur+8])
		cur += 8
	}

	n32 := int(h[hConst32Count])
	if err := need(n32 * 4); err != nil {
		return nil, err
	}
	m.Const32 = make([]uint32, n32)
	for i := 0; i < n32; i++ {
		m.Const32[i] = binary.BigEndian.Uint32(b[cur : cur+4])
		cur += 4
	}

	// Procedure table: proc_count+1 records of 6 uint32 each.
	procCount := int(h[hProcCount])
	if err := need((procCount + 1) * 6 * 4); err != nil {
		return nil, err
	}
	m.Procs = make([]Proc, procCount+1)
	for i := 0; i <= procCount; i++ {
		fields := [6]uint32{}
		for j := 0; j < 6; j++ {
			fields[j] = binary.BigEndian.Uint32(b[cur : cur+4])
			cur += 4
		}
		m.Procs[i] = Proc{
			InsnStart:     fields[0],
			TargetStart:   fields[1],
			Const128Start: fields[2],
			Const64Start:  fields[3],
			Const32Start:  fields[4],
			Name:          fields[5],
		}
	}
	fillProcEnds(m)

	// Data-block offset table: data_block_count+1 uint32.
	dbCount := int(h[hDataBlockCount])
	if err := need((dbCount + 1) * 4); err != nil {
		return nil, err
	}
	m.DataBlockOffsets = make([]uint32, dbCount+1)
	for i := 0; i <= dbCount; i++ {
		m.DataBlockOffsets[i] = binary.BigEndian.Uint32(b[cur : cur+4])
		cur += 4
	}

	// Target table.
	targetCount := int(h[hTargetCount])
	if err := need(targetCount * 4); err != nil {
		return nil, err
	}
	m.Targets = make([]Target, targetCount)
	for i := 0; i < targetCount; i++ {
		m.Targets[i] = Target(binary.BigEndian.Uint32(b[cur : cur+4]))
		cur += 4
	}

	// Instruction table: insn_count records of 4 uint16.
	insnCount := int(h[hInsnCount])
	if err := need(insnCount * 8); err != nil {
		return nil, err
	}
	m.Instructions = make([]Instruction, insnCount)
	for i := 0; i < insnCount; i++ {
		m.Instructions[i] = Instruction{
			Opcode: binary.BigEndian.Uint16(b[cur : cur+2]),
			A:      binary.BigEndian.Uint16(b[cur+2 : cur+4]),
			B:      binary.BigEndian.Uint16(b[cur+4 : cur+6]),
			C:      binary.BigEndian.Uint16(b[cur+6 : cur+8]),
		}
		cur += 8
	}

	// Data blob.
	dataSize := int(h[hDataSize])
	if err := need(dataSize); err != nil {
		return nil, err
	}
	m.Data = append([]byte(nil), b[cur:cur+dataSize]...)
	cur += dataSize

	if cur != totalSize {
		return nil, newErr(ErrModuleTruncated, "computed end offset %d does not match declared size %d", cur, totalSize)
	}

	gotSum := crc32.ChecksumIEEE(b[headerBytes:totalSize])
	if gotSum != h[hChecksum] {
		return nil, newErr(ErrModuleCorrupt, "checksum mismatch: header says %08x, computed %08x", h[hChecksum], gotSum)
	}

	buildExports(m)
	return m, nil
}

// fillProcEnds propagates each proc's end indices from the next
// record's start indices (the sentinel supplies the final ends).
func fillProcEnds(m *Module) {
	for i := 0; i+1 < len(m.Procs); i++ {
		p := &m.Procs[i]
		next := m.Procs[i+1]
		p.InsnEnd = next.InsnStart
		p.TargetEnd = next.TargetStart
		p.Const128End = next.Const128Start
		p.Const64End = next.Const64Start
		p.Const32End = next.Const32Start
	}
}

func buildExports(m *Module) {
	m.Exports = make(map[uint32]uint32)
	for i := 0; i < m.ProcCount(); i++ {
		if m.Procs[i].Name != 0 {
			m.Exports[m.Procs[i].Name] = uint32(i)
		}
	}
}

// Encode serializes m into its on-wire binary form. Encode(Decode(b))
// round-trips for any module that passed Verify.
func (m *Module) Encode() []byte {
	body := encodeBody(m)
	checksum := crc32.ChecksumIEEE(body)
	total := headerBytes + len(body)

	out := make([]byte, 0, total)
	out = append(out, Magic[:]...)

	h := [HeaderFields]uint32{
		hTotalSize:      uint32(total),
		hChecksum:       checksum,
		hName:           m.Name,
		hConst128Count:  uint32(len(m.Const128)),
		hConst64Count:   uint32(len(m.Const64)),
		hConst32Count:   uint32(len(m.Const32)),
		hProcCount:      uint32(m.ProcCount()),
		hDataBlockCount: uint32(len(m.DataBlockOffsets) - 1),
		hTargetCount:    uint32(len(m.Targets)),
		hInsnCount:      uint32(len(m.Instructions)),
		hDataSize:       uint32(len(m.Data)),
	}
	for _, f := range h {
		out = binary.BigEndian.AppendUint32(out, f)
	}
	out = append(out, body...)
	return out
}

func encodeBody(m *Module) []byte {
	var out []byte
	for _, v := range m.Const128 {
		out = binary.BigEndian.AppendUint64(out, v.Hi)
		out = binary.BigEndian.AppendUint64(out, v.Lo)
	}
	for _, v := range m.Const64 {
		out = binary.BigEndian.AppendUint64(out, v)
	}
	for _, v := range m.Const32 {
		out = binary.BigEndian.AppendUint32(out, v)
	}
	for _, p := range m.Procs {
		out = binary.BigEndian.AppendUint32(out, p.InsnStart)
		out = binary.BigEndian.AppendUint32(out, p.TargetStart)
		out = binary.BigEndian.AppendUint32(out, p.Const128Start)
		out = binary.BigEndian.AppendUint32(out, p.Const64Start)
		out = binary.BigEndian.AppendUint32(out, p.Const32Start)
		out = binary.BigEndian.AppendUint32(out, p.Name)
	}
	for _, off := range m.DataBlockOffsets {
		out = binary.BigEndian.AppendUint32(out, off)
	}
	for _, t := range m.Targets {
		out = binary.BigEndian.AppendUint32(out, uint32(t))
	}
	for _, insn := range m.Instructions {
		out = binary.BigEndian.AppendUint16(out, insn.Opcode)
		out = binary.BigEndian.AppendUint16(out, insn.A)
		out = binary.BigEndian.AppendUint16(out, insn.B)
		out = binary.BigEndian.AppendUint16(out, insn.C)
	}
	out = append(out, m.Data...)
	return out
}
