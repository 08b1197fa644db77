package bytecode

import (
	"fmt"
	"strings"
)

// Dump renders a function's compiled instructions and local layout as plain
// text, one instruction per line. It carries no styling of its own; the CLI
// layer decorates this text with lipgloss when writing to a terminal (spec's
// "Debug/scenario hooks").
func (f *Function) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s (frame=%d bytes, watermark=%d bytes)\n", f.Name, f.FrameSize, f.RequiredStackSize)
	for i, l := range f.Locals {
		needs := ""
		if l.NeedsInit {
			needs = " needs_init"
		}
		fmt.Fprintf(&b, "  local[%d] %s @%d%s\n", i, l.Kind, l.Offset, needs)
	}
	for _, instr := range f.Code {
		fmt.Fprintf(&b, "  %4d: %s\n", instr.Pos, dumpInstruction(instr))
	}
	for _, c := range f.Catches {
		kind := fmt.Sprintf("tag=%d", c.TagIdx)
		if c.IsCatchAll {
			kind = "catch_all"
		}
		fmt.Fprintf(&b, "  catch [%d,%d) -> %d (%s, landing=%d)\n",
			c.TryStart, c.TryEnd, c.CatchStart, kind, c.LandingStackSize)
	}
	return b.String()
}

func dumpInstruction(instr Instruction) string {
	base := opName(instr.Op)
	switch instr.Op {
	case OpPassthrough:
		return fmt.Sprintf("%s wasm=0x%02x dst=%d src=%v kind=%s", base, instr.WasmOp, instr.Dst, instr.Src[:instr.NumSrc], instr.Kind)
	case OpMove, OpConst, OpZeroInit:
		return fmt.Sprintf("%s dst=%d kind=%s imm=%v", base, instr.Dst, instr.Kind, instr.Imm)
	case OpJump:
		return fmt.Sprintf("%s target=%v", base, instr.Imm)
	case OpJumpIfTrue, OpJumpIfFalse:
		return fmt.Sprintf("%s cond=%d target=%v", base, instr.Src[0], instr.Imm)
	default:
		return fmt.Sprintf("%s imm=%v", base, instr.Imm)
	}
}

func opName(op Op) string {
	switch op {
	case OpPassthrough:
		return "passthrough"
	case OpMove:
		return "move"
	case OpConst:
		return "const"
	case OpZeroInit:
		return "zero_init"
	case OpJump:
		return "jump"
	case OpJumpIfTrue:
		return "jump_if_true"
	case OpJumpIfFalse:
		return "jump_if_false"
	case OpBrTable:
		return "br_table"
	case OpCall:
		return "call"
	case OpCallIndirect:
		return "call_indirect"
	case OpReturn:
		return "return"
	case OpEnd:
		return "end"
	case OpThrow:
		return "throw"
	case OpRethrow:
		return "rethrow"
	case OpTryTableHeader:
		return "try_table"
	case OpUnreachable:
		return "unreachable"
	case OpNop:
		return "nop"
	default:
		return "unknown"
	}
}
