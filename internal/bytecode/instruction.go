// Package bytecode defines the compiled instruction and function-draft
// shapes the emitter produces and the allocator rewrites (spec §3,
// "Module-function draft", §6 "Internal bytecode encoding").
//
// Instructions are kept as a Go slice of records rather than serialized to a
// raw byte array: the teacher's own wasm.Instruction{Opcode, Imm} shape
// already represents a decoded instruction this way, and nothing downstream
// of this compiler (no on-disk format, no separate VM in this repository)
// needs a packed wire encoding. Instruction.Pos still advances one unit per
// instruction, which is all the spec's byte-position bookkeeping (fixups,
// live-range boundaries) actually requires.
package bytecode

import "github.com/wippyai/wasmc/internal/valtype"

// Op identifies what an Instruction does. Numeric/comparison/conversion ops
// reuse the originating WebAssembly opcode byte directly (OpPassthrough);
// everything control-flow, move, or materialization related is synthesized
// since WebAssembly's stack machine has no concept of explicit register
// moves or offset-addressed branches.
type Op uint16

const (
	OpPassthrough Op = iota // Dst/Src carry offsets; WasmOp names the original opcode
	OpMove                  // single-operand copy, emitted by local.set/tee and block-result reconciliation
	OpConst                 // materializes Imm into Dst; used both for un-pooled constants and prelude materializations
	OpZeroInit              // zero-materializes Dst at function entry for a needsInit slot
	OpJump                  // unconditional jump; Imm is the absolute index of the target instruction in Code, not a relative offset
	OpJumpIfTrue            // conditional jump taken when Src[0] != 0 (post I32Eqz-fusion inversion)
	OpJumpIfFalse           // conditional jump taken when Src[0] == 0
	OpBrTable               // Imm is *BrTableData
	OpCall                  // Imm is *CallData
	OpCallIndirect          // Imm is *CallData with TableIdx/TypeIdx set
	OpReturn                // function return; Imm is []int32 result offsets
	OpEnd                   // same shape as OpReturn, marks the function's implicit final instruction
	OpThrow                 // Imm is *ThrowData
	OpRethrow
	OpTryTableHeader // reserved for try_table regions; no emitter handler produces it (try_table has no registered handler)
	OpUnreachable
	OpNop
)

// Instruction is one compiled instruction. Dst/Src hold frame-relative byte
// offsets (-1 when unused); before the allocator runs they are the natural,
// pre-packing layout, and after it they are the final packed offsets (spec
// §4.5 Step D).
type Instruction struct {
	Imm    interface{}
	Op     Op
	WasmOp byte
	Dst    int32
	Src    [3]int32
	NumSrc int
	Kind   valtype.Kind // the kind Dst (or, for stores/branches, the tested operand) holds
	Pos    int          // this instruction's position, used as the fixup/live-range unit
}

// BrTableData is the Imm payload of an OpBrTable instruction.
type BrTableData struct {
	Cond    int32 // offset of the selector value
	Targets []int // absolute target instruction indices, one per label plus the default, filled in as each target becomes known
}

// CallData is the Imm payload of OpCall/OpCallIndirect.
type CallData struct {
	ParamOffsets  []int32
	ResultOffsets []int32
	FuncIdx       uint32 // valid for OpCall
	TypeIdx       uint32 // valid for OpCallIndirect
	TableIdx      uint32 // valid for OpCallIndirect
	CalleeOffset  int32  // valid for OpCallIndirect: offset of the popped table index operand
}

// ThrowData is the Imm payload of OpThrow.
type ThrowData struct {
	TagIdx         uint32
	OperandOffsets []int32
}
