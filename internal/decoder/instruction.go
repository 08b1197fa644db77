package decoder

import (
	"fmt"

	"github.com/wippyai/wasmc/internal/opcode"
)

// Instr is one decoded instruction: its opcode and a type-specific immediate.
// Imm is nil for opcodes that carry none (end, else, drop, arithmetic ops...).
type Instr struct {
	Imm    interface{}
	Pos    int // byte offset of the opcode byte within the function body
	Opcode byte
}

// BlockImm holds the block type for block/loop/if/try/try_table.
// Type is the raw s33 value: -64 void, -1..-5 numeric/vector/ref sentinels,
// >=0 a type-section index (spec §3 "Block type").
type BlockImm struct {
	Type int64
}

// BranchImm holds a label index, used by br, br_if, delegate.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm holds the jump table for br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm holds the callee's function index.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm holds the callee signature and table to call through.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// CallRefImm holds the callee signature for call_ref/return_call_ref.
type CallRefImm struct {
	TypeIdx uint32
}

// LocalImm holds a local index for local.get/set/tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds a global index for global.get/set.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm holds a table index for table.get/table.set.
type TableImm struct {
	TableIdx uint32
}

// MemArg holds the alignment/offset pair shared by all load/store opcodes,
// plus the memory index carried by the multi-memory encoding's high bit
// (spec §3, "memarg... multi-memory bit 0x40 on the align field").
type MemArg struct {
	Offset uint64
	Align  uint32
	MemIdx uint32
}

// MemoryIdxImm holds a bare memory index, for memory.size/memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm, I64Imm, F32Imm, F64Imm hold the literal constant operands.
type I32Imm struct{ Value int32 }
type I64Imm struct{ Value int64 }
type F32Imm struct{ Value float32 }
type F64Imm struct{ Value float64 }

// RefNullImm holds the heap type operand of ref.null.
type RefNullImm struct {
	HeapType int64
}

// RefFuncImm holds the referenced function index for ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm holds the explicit result type(s) of typed select.
type SelectTypeImm struct {
	Types []byte
}

// MiscImm holds the sub-opcode and raw LEB operands of a 0xFC-prefixed
// instruction (truncation saturation, bulk memory, table ops).
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
	MemArgs   []MemArg // for the two memarg-bearing misc ops: memory.copy, memory.fill read none; reserved for future growth
}

// SIMDImm holds the sub-opcode and immediate payload for a 0xFD-prefixed
// (SIMD) instruction.
type SIMDImm struct {
	MemArg    *MemArg
	LaneIdx   *byte
	V128      []byte // 16-byte immediate, only for v128.const
	Lanes     []byte // shuffle lane indices, only for i8x16.shuffle
	SubOpcode uint32
}

// AtomicImm holds the sub-opcode and memarg for a 0xFE-prefixed instruction.
type AtomicImm struct {
	MemArg    MemArg
	SubOpcode uint32
}

// GCImm holds the sub-opcode and operand indices for a 0xFB-prefixed
// instruction (struct/array/ref operations).
type GCImm struct {
	SubOpcode uint32
	TypeIdx   uint32
	FieldIdx  uint32
	TypeIdx2  uint32
	DataIdx   uint32
	Size      uint32
	HeapType  int64
	HeapType2 int64
	CastFlags byte
}

// ThrowImm holds the tag index thrown by throw.
type ThrowImm struct {
	TagIdx uint32
}

// CatchClause is one arm of a try_table instruction.
type CatchClause struct {
	Kind     byte // 0 catch, 1 catch_ref, 2 catch_all, 3 catch_all_ref
	TagIdx   uint32
	LabelIdx uint32
}

// TryTableImm holds the catch clauses and block type of try_table.
type TryTableImm struct {
	Catches   []CatchClause
	BlockType int64
}

// DecodeOne decodes the single instruction starting at r's current position
// and advances r past it. It is the unit the emitter drives one call at a
// time, interleaved with operand-stack and block-stack updates, rather than
// decoding a whole function body up front (spec §4, "single forward pass").
func DecodeOne(r *Reader) (Instr, error) {
	pos := r.Position()
	op, err := r.ReadByte()
	if err != nil {
		return Instr{}, err
	}
	instr := Instr{Opcode: op, Pos: pos}

	switch op {
	case opcode.Block, opcode.Loop, opcode.If, opcode.Try:
		bt, err := r.ReadS33()
		if err != nil {
			return instr, err
		}
		instr.Imm = BlockImm{Type: bt}

	case opcode.Br, opcode.BrIf, opcode.Delegate, opcode.BrOnNull, opcode.BrOnNonNull:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = BranchImm{LabelIdx: idx}

	case opcode.BrTable:
		n, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		labels := make([]uint32, n)
		for i := range labels {
			if labels[i], err = r.ReadU32(); err != nil {
				return instr, err
			}
		}
		def, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = BrTableImm{Labels: labels, Default: def}

	case opcode.Call, opcode.ReturnCall:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = CallImm{FuncIdx: idx}

	case opcode.CallIndirect, opcode.ReturnCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		tableIdx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}

	case opcode.CallRef, opcode.ReturnCallRef:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = CallRefImm{TypeIdx: typeIdx}

	case opcode.LocalGet, opcode.LocalSet, opcode.LocalTee:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = LocalImm{LocalIdx: idx}

	case opcode.GlobalGet, opcode.GlobalSet:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = GlobalImm{GlobalIdx: idx}

	case opcode.TableGet, opcode.TableSet:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = TableImm{TableIdx: idx}

	case opcode.I32Load, opcode.I64Load, opcode.F32Load, opcode.F64Load,
		opcode.I32Load8S, opcode.I32Load8U, opcode.I32Load16S, opcode.I32Load16U,
		opcode.I64Load8S, opcode.I64Load8U, opcode.I64Load16S, opcode.I64Load16U,
		opcode.I64Load32S, opcode.I64Load32U,
		opcode.I32Store, opcode.I64Store, opcode.F32Store, opcode.F64Store,
		opcode.I32Store8, opcode.I32Store16, opcode.I64Store8, opcode.I64Store16, opcode.I64Store32:
		m, err := readMemArg(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = m

	case opcode.MemorySize, opcode.MemoryGrow:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = MemoryIdxImm{MemIdx: idx}

	case opcode.I32Const:
		v, err := r.ReadS32()
		if err != nil {
			return instr, err
		}
		instr.Imm = I32Imm{Value: v}

	case opcode.I64Const:
		v, err := r.ReadS64()
		if err != nil {
			return instr, err
		}
		instr.Imm = I64Imm{Value: v}

	case opcode.F32Const:
		v, err := r.ReadF32()
		if err != nil {
			return instr, err
		}
		instr.Imm = F32Imm{Value: v}

	case opcode.F64Const:
		v, err := r.ReadF64()
		if err != nil {
			return instr, err
		}
		instr.Imm = F64Imm{Value: v}

	case opcode.RefNull:
		ht, err := r.ReadS33()
		if err != nil {
			return instr, err
		}
		instr.Imm = RefNullImm{HeapType: ht}

	case opcode.RefFunc:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = RefFuncImm{FuncIdx: idx}

	case opcode.SelectType:
		n, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		types := make([]byte, n)
		for i := range types {
			b, err := r.ReadByte()
			if err != nil {
				return instr, err
			}
			types[i] = b
		}
		instr.Imm = SelectTypeImm{Types: types}

	case opcode.Throw, opcode.Catch:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = ThrowImm{TagIdx: idx}

	case opcode.Rethrow:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = BranchImm{LabelIdx: idx}

	case opcode.TryTable:
		imm, err := decodeTryTable(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = imm

	case opcode.PrefixMisc:
		imm, err := decodeMisc(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = imm

	case opcode.PrefixSIMD:
		imm, err := decodeSIMD(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = imm

	case opcode.PrefixAtomic:
		imm, err := decodeAtomic(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = imm

	case opcode.PrefixGC:
		imm, err := decodeGC(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = imm

	default:
		// no immediate: unreachable, nop, else, end, return, drop, select,
		// comparisons, numeric ops, conversions, ref.is_null, ref.eq,
		// ref.as_non_null, throw_ref, catch_all.
	}

	return instr, nil
}

// readMemArg reads the flags/align byte (with the multi-memory bit 0x40) and
// the offset, in the order the binary format defines them.
func readMemArg(r *Reader) (MemArg, error) {
	flags, err := r.ReadU32()
	if err != nil {
		return MemArg{}, err
	}
	memIdx := uint32(0)
	align := flags
	if flags&0x40 != 0 {
		align = flags &^ 0x40
		memIdx, err = r.ReadU32()
		if err != nil {
			return MemArg{}, err
		}
	}
	offset, err := r.ReadU32()
	if err != nil {
		return MemArg{}, err
	}
	return MemArg{Offset: uint64(offset), Align: align, MemIdx: memIdx}, nil
}

func decodeTryTable(r *Reader) (TryTableImm, error) {
	bt, err := r.ReadS33()
	if err != nil {
		return TryTableImm{}, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return TryTableImm{}, err
	}
	clauses := make([]CatchClause, n)
	for i := range clauses {
		kind, err := r.ReadByte()
		if err != nil {
			return TryTableImm{}, err
		}
		c := CatchClause{Kind: kind}
		if kind == 0 || kind == 1 {
			if c.TagIdx, err = r.ReadU32(); err != nil {
				return TryTableImm{}, err
			}
		}
		if c.LabelIdx, err = r.ReadU32(); err != nil {
			return TryTableImm{}, err
		}
		clauses[i] = c
	}
	return TryTableImm{Catches: clauses, BlockType: bt}, nil
}

// decodeMisc decodes a 0xFC-prefixed instruction. Sub-opcodes 0x00-0x07 are
// the saturating truncation family (no operands beyond the sub-opcode);
// 0x08-0x11 are the bulk-memory/table family, whose operand shapes vary.
func decodeMisc(r *Reader) (MiscImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return MiscImm{}, err
	}
	imm := MiscImm{SubOpcode: sub}
	switch sub {
	case 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07:
		// truncation saturation family: no operands
	case 0x08: // memory.init
		dataIdx, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		memIdx, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = []uint32{dataIdx, memIdx}
	case 0x09: // data.drop
		idx, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = []uint32{idx}
	case 0x0A: // memory.copy
		dst, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		src, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = []uint32{dst, src}
	case 0x0B: // memory.fill
		idx, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = []uint32{idx}
	case 0x0C: // table.init
		elemIdx, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		tableIdx, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = []uint32{elemIdx, tableIdx}
	case 0x0D: // elem.drop
		idx, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = []uint32{idx}
	case 0x0E: // table.copy
		dst, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		src, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = []uint32{dst, src}
	case 0x0F, 0x10, 0x11: // table.grow, table.size, table.fill
		idx, err := r.ReadU32()
		if err != nil {
			return imm, err
		}
		imm.Operands = []uint32{idx}
	default:
		return imm, fmt.Errorf("decoder: unsupported misc sub-opcode 0x%02x", sub)
	}
	return imm, nil
}

// decodeSIMD decodes a 0xFD-prefixed instruction. Only the memarg-bearing
// loads/stores, v128.const, i8x16.shuffle, and the lane access family carry
// operands beyond the sub-opcode; the large majority of SIMD opcodes (binary
// and unary lane-wise ops) do not.
func decodeSIMD(r *Reader) (SIMDImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return SIMDImm{}, err
	}
	imm := SIMDImm{SubOpcode: sub}
	switch {
	case sub <= 0x0B, sub >= 0x54 && sub <= 0x5D: // v128 load/store family, load_lane/store_lane (0x54-0x5B, memarg plus lane), load32/64_zero (0x5C/0x5D)
		m, err := readMemArg(r)
		if err != nil {
			return imm, err
		}
		imm.MemArg = &m
		if sub >= 0x54 && sub <= 0x5B {
			lane, err := r.ReadByte()
			if err != nil {
				return imm, err
			}
			imm.LaneIdx = &lane
		}
	case sub == 0x0C: // v128.const
		b, err := r.ReadBytes(16)
		if err != nil {
			return imm, err
		}
		imm.V128 = append([]byte(nil), b...)
	case sub == 0x0D: // i8x16.shuffle
		b, err := r.ReadBytes(16)
		if err != nil {
			return imm, err
		}
		imm.Lanes = append([]byte(nil), b...)
	case sub >= 0x15 && sub <= 0x22: // extract_lane/replace_lane family
		lane, err := r.ReadByte()
		if err != nil {
			return imm, err
		}
		imm.LaneIdx = &lane
	default:
		// binary/unary lane-wise ops: no operands
	}
	return imm, nil
}

func decodeAtomic(r *Reader) (AtomicImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return AtomicImm{}, err
	}
	if sub == 0x03 { // atomic.fence carries a reserved zero byte, not a memarg
		if _, err := r.ReadByte(); err != nil {
			return AtomicImm{}, err
		}
		return AtomicImm{SubOpcode: sub}, nil
	}
	m, err := readMemArg(r)
	if err != nil {
		return AtomicImm{}, err
	}
	return AtomicImm{SubOpcode: sub, MemArg: m}, nil
}

// decodeGC decodes a 0xFB-prefixed instruction, covering the struct/array
// family's common operand shapes (type index, optional field index).
func decodeGC(r *Reader) (GCImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return GCImm{}, err
	}
	imm := GCImm{SubOpcode: sub}
	switch sub {
	case 0x01, 0x02, 0x03, 0x04: // struct.new, struct.new_default, and variants
		if imm.TypeIdx, err = r.ReadU32(); err != nil {
			return imm, err
		}
	case 0x05, 0x06, 0x07, 0x08, 0x09: // struct.get/get_s/get_u/set
		if imm.TypeIdx, err = r.ReadU32(); err != nil {
			return imm, err
		}
		if imm.FieldIdx, err = r.ReadU32(); err != nil {
			return imm, err
		}
	case 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10, 0x11, 0x12: // array family
		if imm.TypeIdx, err = r.ReadU32(); err != nil {
			return imm, err
		}
		if sub == 0x10 { // array.new_fixed carries a size operand too
			if imm.Size, err = r.ReadU32(); err != nil {
				return imm, err
			}
		}
		if sub == 0x12 { // array.copy reads a second type index
			if imm.TypeIdx2, err = r.ReadU32(); err != nil {
				return imm, err
			}
		}
	case 0x14, 0x15, 0x16, 0x17: // ref.test/ref.cast (+null variants)
		if imm.HeapType, err = r.ReadS33(); err != nil {
			return imm, err
		}
	case 0x18, 0x19: // br_on_cast, br_on_cast_fail
		if imm.CastFlags, err = r.ReadByte(); err != nil {
			return imm, err
		}
		if imm.HeapType, err = r.ReadS33(); err != nil {
			return imm, err
		}
		if imm.HeapType2, err = r.ReadS33(); err != nil {
			return imm, err
		}
	case 0x1A, 0x1B: // any.convert_extern, extern.convert_any: no operands
	case 0x1C: // ref.i31: no operands
	case 0x1D, 0x1E: // i31.get_s/u: no operands
	default:
		return imm, fmt.Errorf("decoder: unsupported GC sub-opcode 0x%02x", sub)
	}
	return imm, nil
}
