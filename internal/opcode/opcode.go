// Package opcode holds the static per-opcode metadata table the rest of the
// compiler is driven by: mnemonic, result kind, and up to three operand
// kinds per opcode (spec §4, "Opcode table"). It mirrors the shape of
// asyncify/internal/handler.Registry's [256]Handler dispatch array, but
// instead of a behavior table it is a pure data table consulted by the
// emitter's operand-stack handlers and by the decoder.
package opcode

import "github.com/wippyai/wasmc/internal/valtype"

// Control flow opcodes.
const (
	Unreachable        byte = 0x00
	Nop                byte = 0x01
	Block              byte = 0x02
	Loop               byte = 0x03
	If                 byte = 0x04
	Else               byte = 0x05
	Try                byte = 0x06
	Catch              byte = 0x07
	Throw              byte = 0x08
	Rethrow            byte = 0x09
	ThrowRef           byte = 0x0A
	End                byte = 0x0B
	Br                 byte = 0x0C
	BrIf               byte = 0x0D
	BrTable            byte = 0x0E
	Return             byte = 0x0F
	Call               byte = 0x10
	CallIndirect       byte = 0x11
	ReturnCall         byte = 0x12
	ReturnCallIndirect byte = 0x13
	CallRef            byte = 0x14
	ReturnCallRef      byte = 0x15
	Delegate           byte = 0x18
	CatchAll           byte = 0x19
	TryTable           byte = 0x1F
)

// Parametric opcodes.
const (
	Drop       byte = 0x1A
	Select     byte = 0x1B
	SelectType byte = 0x1C
)

// Reference type opcodes.
const (
	RefNull      byte = 0xD0
	RefIsNull    byte = 0xD1
	RefFunc      byte = 0xD2
	RefAsNonNull byte = 0xD3
	RefEq        byte = 0xD4
	BrOnNull     byte = 0xD5
	BrOnNonNull  byte = 0xD6
)

// Variable access opcodes.
const (
	LocalGet  byte = 0x20
	LocalSet  byte = 0x21
	LocalTee  byte = 0x22
	GlobalGet byte = 0x23
	GlobalSet byte = 0x24
)

// Table opcodes.
const (
	TableGet byte = 0x25
	TableSet byte = 0x26
)

// Memory load opcodes.
const (
	I32Load    byte = 0x28
	I64Load    byte = 0x29
	F32Load    byte = 0x2A
	F64Load    byte = 0x2B
	I32Load8S  byte = 0x2C
	I32Load8U  byte = 0x2D
	I32Load16S byte = 0x2E
	I32Load16U byte = 0x2F
	I64Load8S  byte = 0x30
	I64Load8U  byte = 0x31
	I64Load16S byte = 0x32
	I64Load16U byte = 0x33
	I64Load32S byte = 0x34
	I64Load32U byte = 0x35
)

// Memory store opcodes.
const (
	I32Store   byte = 0x36
	I64Store   byte = 0x37
	F32Store   byte = 0x38
	F64Store   byte = 0x39
	I32Store8  byte = 0x3A
	I32Store16 byte = 0x3B
	I64Store8  byte = 0x3C
	I64Store16 byte = 0x3D
	I64Store32 byte = 0x3E
)

// Memory size/grow opcodes.
const (
	MemorySize byte = 0x3F
	MemoryGrow byte = 0x40
)

// Constant opcodes.
const (
	I32Const byte = 0x41
	I64Const byte = 0x42
	F32Const byte = 0x43
	F64Const byte = 0x44
)

// i32 comparisons.
const (
	I32Eqz byte = 0x45
	I32Eq  byte = 0x46
	I32Ne  byte = 0x47
	I32LtS byte = 0x48
	I32LtU byte = 0x49
	I32GtS byte = 0x4A
	I32GtU byte = 0x4B
	I32LeS byte = 0x4C
	I32LeU byte = 0x4D
	I32GeS byte = 0x4E
	I32GeU byte = 0x4F
)

// i64 comparisons.
const (
	I64Eqz byte = 0x50
	I64Eq  byte = 0x51
	I64Ne  byte = 0x52
	I64LtS byte = 0x53
	I64LtU byte = 0x54
	I64GtS byte = 0x55
	I64GtU byte = 0x56
	I64LeS byte = 0x57
	I64LeU byte = 0x58
	I64GeS byte = 0x59
	I64GeU byte = 0x5A
)

// f32/f64 comparisons.
const (
	F32Eq byte = 0x5B
	F32Ne byte = 0x5C
	F32Lt byte = 0x5D
	F32Gt byte = 0x5E
	F32Le byte = 0x5F
	F32Ge byte = 0x60
	F64Eq byte = 0x61
	F64Ne byte = 0x62
	F64Lt byte = 0x63
	F64Gt byte = 0x64
	F64Le byte = 0x65
	F64Ge byte = 0x66
)

// i32 numeric ops.
const (
	I32Clz    byte = 0x67
	I32Ctz    byte = 0x68
	I32Popcnt byte = 0x69
	I32Add    byte = 0x6A
	I32Sub    byte = 0x6B
	I32Mul    byte = 0x6C
	I32DivS   byte = 0x6D
	I32DivU   byte = 0x6E
	I32RemS   byte = 0x6F
	I32RemU   byte = 0x70
	I32And    byte = 0x71
	I32Or     byte = 0x72
	I32Xor    byte = 0x73
	I32Shl    byte = 0x74
	I32ShrS   byte = 0x75
	I32ShrU   byte = 0x76
	I32Rotl   byte = 0x77
	I32Rotr   byte = 0x78
)

// i64 numeric ops.
const (
	I64Clz    byte = 0x79
	I64Ctz    byte = 0x7A
	I64Popcnt byte = 0x7B
	I64Add    byte = 0x7C
	I64Sub    byte = 0x7D
	I64Mul    byte = 0x7E
	I64DivS   byte = 0x7F
	I64DivU   byte = 0x80
	I64RemS   byte = 0x81
	I64RemU   byte = 0x82
	I64And    byte = 0x83
	I64Or     byte = 0x84
	I64Xor    byte = 0x85
	I64Shl    byte = 0x86
	I64ShrS   byte = 0x87
	I64ShrU   byte = 0x88
	I64Rotl   byte = 0x89
	I64Rotr   byte = 0x8A
)

// f32 numeric ops.
const (
	F32Abs      byte = 0x8B
	F32Neg      byte = 0x8C
	F32Ceil     byte = 0x8D
	F32Floor    byte = 0x8E
	F32Trunc    byte = 0x8F
	F32Nearest  byte = 0x90
	F32Sqrt     byte = 0x91
	F32Add      byte = 0x92
	F32Sub      byte = 0x93
	F32Mul      byte = 0x94
	F32Div      byte = 0x95
	F32Min      byte = 0x96
	F32Max      byte = 0x97
	F32Copysign byte = 0x98
)

// f64 numeric ops.
const (
	F64Abs      byte = 0x99
	F64Neg      byte = 0x9A
	F64Ceil     byte = 0x9B
	F64Floor    byte = 0x9C
	F64Trunc    byte = 0x9D
	F64Nearest  byte = 0x9E
	F64Sqrt     byte = 0x9F
	F64Add      byte = 0xA0
	F64Sub      byte = 0xA1
	F64Mul      byte = 0xA2
	F64Div      byte = 0xA3
	F64Min      byte = 0xA4
	F64Max      byte = 0xA5
	F64Copysign byte = 0xA6
)

// Conversion opcodes.
const (
	I32WrapI64        byte = 0xA7
	I32TruncF32S      byte = 0xA8
	I32TruncF32U      byte = 0xA9
	I32TruncF64S      byte = 0xAA
	I32TruncF64U      byte = 0xAB
	I64ExtendI32S     byte = 0xAC
	I64ExtendI32U     byte = 0xAD
	I64TruncF32S      byte = 0xAE
	I64TruncF32U      byte = 0xAF
	I64TruncF64S      byte = 0xB0
	I64TruncF64U      byte = 0xB1
	F32ConvertI32S    byte = 0xB2
	F32ConvertI32U    byte = 0xB3
	F32ConvertI64S    byte = 0xB4
	F32ConvertI64U    byte = 0xB5
	F32DemoteF64      byte = 0xB6
	F64ConvertI32S    byte = 0xB7
	F64ConvertI32U    byte = 0xB8
	F64ConvertI64S    byte = 0xB9
	F64ConvertI64U    byte = 0xBA
	F64PromoteF32     byte = 0xBB
	I32ReinterpretF32 byte = 0xBC
	I64ReinterpretF64 byte = 0xBD
	F32ReinterpretI32 byte = 0xBE
	F64ReinterpretI64 byte = 0xBF
)

// Sign extension opcodes.
const (
	I32Extend8S  byte = 0xC0
	I32Extend16S byte = 0xC1
	I64Extend8S  byte = 0xC2
	I64Extend16S byte = 0xC3
	I64Extend32S byte = 0xC4
)

// Multi-byte opcode prefixes.
const (
	PrefixGC     byte = 0xFB
	PrefixMisc   byte = 0xFC
	PrefixSIMD   byte = 0xFD
	PrefixAtomic byte = 0xFE
)

// Info is the static metadata for one opcode: its mnemonic, the kind it
// pushes (Void if none), and up to three kinds it pops, in operand order
// (ParamKinds[0] is the deepest operand, the last one popped).
type Info struct {
	Mnemonic   string
	ResultKind valtype.Kind
	ParamKinds [3]valtype.Kind
	NumParams  int
	HasResult  bool
}

var table [256]Info

func reg(op byte, mnemonic string, result valtype.Kind, hasResult bool, params ...valtype.Kind) {
	info := Info{Mnemonic: mnemonic, ResultKind: result, HasResult: hasResult, NumParams: len(params)}
	copy(info.ParamKinds[:], params)
	table[op] = info
}

// Lookup returns the static metadata for op. Prefixed opcodes (0xFC/FD/FE/FB)
// return a stub entry with HasResult=false and NumParams=0; their real stack
// effect is instruction-dependent and resolved by the emitter's sub-opcode
// handlers instead (spec §4.1, "every pop must observe the kind predicted by
// the current opcode's metadata" — prefixed ops predict via their handler).
func Lookup(op byte) Info {
	return table[op]
}

func init() {
	v := valtype.Void
	i32, i64, f32, f64, v128 := valtype.I32, valtype.I64, valtype.F32, valtype.F64, valtype.V128
	funcref, externref := valtype.FuncRef, valtype.ExternRef

	reg(Unreachable, "unreachable", v, false)
	reg(Nop, "nop", v, false)
	reg(Drop, "drop", v, false, i32) // actual kind resolved from operand-stack entry at pop time

	reg(I32Eqz, "i32.eqz", i32, true, i32)
	reg(I32Eq, "i32.eq", i32, true, i32, i32)
	reg(I32Ne, "i32.ne", i32, true, i32, i32)
	reg(I32LtS, "i32.lt_s", i32, true, i32, i32)
	reg(I32LtU, "i32.lt_u", i32, true, i32, i32)
	reg(I32GtS, "i32.gt_s", i32, true, i32, i32)
	reg(I32GtU, "i32.gt_u", i32, true, i32, i32)
	reg(I32LeS, "i32.le_s", i32, true, i32, i32)
	reg(I32LeU, "i32.le_u", i32, true, i32, i32)
	reg(I32GeS, "i32.ge_s", i32, true, i32, i32)
	reg(I32GeU, "i32.ge_u", i32, true, i32, i32)

	reg(I64Eqz, "i64.eqz", i32, true, i64)
	reg(I64Eq, "i64.eq", i32, true, i64, i64)
	reg(I64Ne, "i64.ne", i32, true, i64, i64)
	reg(I64LtS, "i64.lt_s", i32, true, i64, i64)
	reg(I64LtU, "i64.lt_u", i32, true, i64, i64)
	reg(I64GtS, "i64.gt_s", i32, true, i64, i64)
	reg(I64GtU, "i64.gt_u", i32, true, i64, i64)
	reg(I64LeS, "i64.le_s", i32, true, i64, i64)
	reg(I64LeU, "i64.le_u", i32, true, i64, i64)
	reg(I64GeS, "i64.ge_s", i32, true, i64, i64)
	reg(I64GeU, "i64.ge_u", i32, true, i64, i64)

	reg(F32Eq, "f32.eq", i32, true, f32, f32)
	reg(F32Ne, "f32.ne", i32, true, f32, f32)
	reg(F32Lt, "f32.lt", i32, true, f32, f32)
	reg(F32Gt, "f32.gt", i32, true, f32, f32)
	reg(F32Le, "f32.le", i32, true, f32, f32)
	reg(F32Ge, "f32.ge", i32, true, f32, f32)

	reg(F64Eq, "f64.eq", i32, true, f64, f64)
	reg(F64Ne, "f64.ne", i32, true, f64, f64)
	reg(F64Lt, "f64.lt", i32, true, f64, f64)
	reg(F64Gt, "f64.gt", i32, true, f64, f64)
	reg(F64Le, "f64.le", i32, true, f64, f64)
	reg(F64Ge, "f64.ge", i32, true, f64, f64)

	for _, op := range []byte{I32Clz, I32Ctz, I32Popcnt} {
		reg(op, "i32.unop", i32, true, i32)
	}
	for _, op := range []byte{I32Add, I32Sub, I32Mul, I32DivS, I32DivU, I32RemS, I32RemU,
		I32And, I32Or, I32Xor, I32Shl, I32ShrS, I32ShrU, I32Rotl, I32Rotr} {
		reg(op, "i32.binop", i32, true, i32, i32)
	}
	for _, op := range []byte{I64Clz, I64Ctz, I64Popcnt} {
		reg(op, "i64.unop", i64, true, i64)
	}
	for _, op := range []byte{I64Add, I64Sub, I64Mul, I64DivS, I64DivU, I64RemS, I64RemU,
		I64And, I64Or, I64Xor, I64Shl, I64ShrS, I64ShrU, I64Rotl, I64Rotr} {
		reg(op, "i64.binop", i64, true, i64, i64)
	}
	for _, op := range []byte{F32Abs, F32Neg, F32Ceil, F32Floor, F32Trunc, F32Nearest, F32Sqrt} {
		reg(op, "f32.unop", f32, true, f32)
	}
	for _, op := range []byte{F32Add, F32Sub, F32Mul, F32Div, F32Min, F32Max, F32Copysign} {
		reg(op, "f32.binop", f32, true, f32, f32)
	}
	for _, op := range []byte{F64Abs, F64Neg, F64Ceil, F64Floor, F64Trunc, F64Nearest, F64Sqrt} {
		reg(op, "f64.unop", f64, true, f64)
	}
	for _, op := range []byte{F64Add, F64Sub, F64Mul, F64Div, F64Min, F64Max, F64Copysign} {
		reg(op, "f64.binop", f64, true, f64, f64)
	}

	reg(I32WrapI64, "i32.wrap_i64", i32, true, i64)
	for _, op := range []byte{I32TruncF32S, I32TruncF32U} {
		reg(op, "i32.trunc_f32", i32, true, f32)
	}
	for _, op := range []byte{I32TruncF64S, I32TruncF64U} {
		reg(op, "i32.trunc_f64", i32, true, f64)
	}
	for _, op := range []byte{I64ExtendI32S, I64ExtendI32U} {
		reg(op, "i64.extend_i32", i64, true, i32)
	}
	for _, op := range []byte{I64TruncF32S, I64TruncF32U} {
		reg(op, "i64.trunc_f32", i64, true, f32)
	}
	for _, op := range []byte{I64TruncF64S, I64TruncF64U} {
		reg(op, "i64.trunc_f64", i64, true, f64)
	}
	for _, op := range []byte{F32ConvertI32S, F32ConvertI32U} {
		reg(op, "f32.convert_i32", f32, true, i32)
	}
	for _, op := range []byte{F32ConvertI64S, F32ConvertI64U} {
		reg(op, "f32.convert_i64", f32, true, i64)
	}
	reg(F32DemoteF64, "f32.demote_f64", f32, true, f64)
	for _, op := range []byte{F64ConvertI32S, F64ConvertI32U} {
		reg(op, "f64.convert_i32", f64, true, i32)
	}
	for _, op := range []byte{F64ConvertI64S, F64ConvertI64U} {
		reg(op, "f64.convert_i64", f64, true, i64)
	}
	reg(F64PromoteF32, "f64.promote_f32", f64, true, f32)
	reg(I32ReinterpretF32, "i32.reinterpret_f32", i32, true, f32)
	reg(I64ReinterpretF64, "i64.reinterpret_f64", i64, true, f64)
	reg(F32ReinterpretI32, "f32.reinterpret_i32", f32, true, i32)
	reg(F64ReinterpretI64, "f64.reinterpret_i64", f64, true, i64)

	reg(I32Extend8S, "i32.extend8_s", i32, true, i32)
	reg(I32Extend16S, "i32.extend16_s", i32, true, i32)
	reg(I64Extend8S, "i64.extend8_s", i64, true, i64)
	reg(I64Extend16S, "i64.extend16_s", i64, true, i64)
	reg(I64Extend32S, "i64.extend32_s", i64, true, i64)

	reg(I32Const, "i32.const", i32, true)
	reg(I64Const, "i64.const", i64, true)
	reg(F32Const, "f32.const", f32, true)
	reg(F64Const, "f64.const", f64, true)

	reg(I32Load, "i32.load", i32, true, i32)
	reg(I64Load, "i64.load", i64, true, i32)
	reg(F32Load, "f32.load", f32, true, i32)
	reg(F64Load, "f64.load", f64, true, i32)
	for _, op := range []byte{I32Load8S, I32Load8U, I32Load16S, I32Load16U} {
		reg(op, "i32.loadN", i32, true, i32)
	}
	for _, op := range []byte{I64Load8S, I64Load8U, I64Load16S, I64Load16U, I64Load32S, I64Load32U} {
		reg(op, "i64.loadN", i64, true, i32)
	}
	reg(I32Store, "i32.store", v, false, i32, i32)
	reg(I64Store, "i64.store", v, false, i32, i64)
	reg(F32Store, "f32.store", v, false, i32, f32)
	reg(F64Store, "f64.store", v, false, i32, f64)
	for _, op := range []byte{I32Store8, I32Store16} {
		reg(op, "i32.storeN", v, false, i32, i32)
	}
	for _, op := range []byte{I64Store8, I64Store16, I64Store32} {
		reg(op, "i64.storeN", v, false, i32, i64)
	}
	reg(MemorySize, "memory.size", i32, true)
	reg(MemoryGrow, "memory.grow", i32, true, i32)

	reg(LocalGet, "local.get", v, true) // kind resolved from the local table at emission time
	reg(LocalSet, "local.set", v, false, v)
	reg(LocalTee, "local.tee", v, true, v)
	reg(GlobalGet, "global.get", v, true)
	reg(GlobalSet, "global.set", v, false, v)

	reg(TableGet, "table.get", funcref, true, i32)
	reg(TableSet, "table.set", v, false, i32, funcref)

	reg(RefNull, "ref.null", funcref, true)
	reg(RefIsNull, "ref.is_null", i32, true, funcref)
	reg(RefFunc, "ref.func", funcref, true)
	reg(RefAsNonNull, "ref.as_non_null", funcref, true, funcref)
	reg(RefEq, "ref.eq", i32, true, externref, externref)

	reg(Select, "select", v, true, i32, v, v)

	reg(Return, "return", v, false)
	reg(Call, "call", v, false)
	reg(CallIndirect, "call_indirect", v, false, i32)
	reg(Br, "br", v, false)
	reg(BrIf, "br_if", v, false, i32)
	reg(BrTable, "br_table", v, false, i32)

	_ = v128
}
