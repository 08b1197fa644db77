package alloc

import (
	"testing"

	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/emitter"
	"github.com/wippyai/wasmc/internal/valtype"
)

func TestPrependZeroInitsShiftsJumpAndCatchTargets(t *testing.T) {
	fn := &bytecode.Function{
		Code: []bytecode.Instruction{
			{Pos: 0, Op: bytecode.OpJump, Imm: 2},
			{Pos: 1, Op: bytecode.OpBrTable, Imm: &bytecode.BrTableData{Cond: 0, Targets: []int{0, 2}}},
		},
		Catches: []bytecode.CatchEntry{
			{TryStart: 0, TryEnd: 2, CatchStart: 2},
		},
	}

	prependZeroInits(fn, []bytecode.Instruction{{Op: bytecode.OpZeroInit, Kind: valtype.I32}})

	if len(fn.Code) != 3 {
		t.Fatalf("expected 3 instructions after prepending one, got %d", len(fn.Code))
	}
	for i, instr := range fn.Code {
		if instr.Pos != i {
			t.Fatalf("expected Pos to be recomputed sequentially, instruction %d has Pos=%d", i, instr.Pos)
		}
	}
	jump := fn.Code[1]
	if target, ok := jump.Imm.(int); !ok || target != 3 {
		t.Fatalf("expected the jump's target to shift from 2 to 3, got %v", jump.Imm)
	}
	table := fn.Code[2].Imm.(*bytecode.BrTableData)
	if table.Targets[0] != 1 || table.Targets[1] != 3 {
		t.Fatalf("expected br_table targets to shift by 1, got %v", table.Targets)
	}
	c := fn.Catches[0]
	if c.TryStart != 1 || c.TryEnd != 3 || c.CatchStart != 3 {
		t.Fatalf("expected catch bounds to shift by 1, got %+v", c)
	}
}

func TestAllocateReusesCellsForNonOverlappingTemps(t *testing.T) {
	mod := &emitter.ModuleInfo{Types: []decoder.FuncType{{}}, PointerWidth: 4}
	body := decoder.FunctionBody{
		Code: []byte{
			0x41, 0x01, // i32.const 1
			0x41, 0x02, // i32.const 2
			0x6A,       // i32.add
			0x1A,       // drop
			0x41, 0x03, // i32.const 3
			0x41, 0x04, // i32.const 4
			0x6A, // i32.add
			0x1A, // drop
			0x0B, // end
		},
		TypeIdx: 0,
	}

	fn, err := emitter.Compile(body, "reuse", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	before := fn.RequiredStackSize

	Allocate(fn)

	if fn.FrameSize >= before {
		t.Fatalf("expected the packed frame (%d) to be smaller than the pre-allocation watermark (%d)", fn.FrameSize, before)
	}
}

func TestAllocatePreservesParamOffsets(t *testing.T) {
	mod := &emitter.ModuleInfo{
		Types:        []decoder.FuncType{{Params: []byte{0x7F, 0x7F}, Results: []byte{0x7F}}},
		PointerWidth: 4,
	}
	body := decoder.FunctionBody{
		Code: []byte{
			0x20, 0x00, // local.get 0
			0x20, 0x01, // local.get 1
			0x6A, // i32.add
			0x0B, // end
		},
		TypeIdx: 0,
	}

	fn, err := emitter.Compile(body, "params", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p0, p1 := fn.Locals[0].Offset, fn.Locals[1].Offset

	Allocate(fn)

	if fn.Locals[0].Offset != p0 || fn.Locals[1].Offset != p1 {
		t.Fatalf("expected parameter offsets to stay pinned, got %d,%d (was %d,%d)", fn.Locals[0].Offset, fn.Locals[1].Offset, p0, p1)
	}
}
