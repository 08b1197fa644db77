package emitter

import (
	"testing"

	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/valtype"
)

func testModule(types ...decoder.FuncType) *ModuleInfo {
	return &ModuleInfo{Types: types, PointerWidth: 4}
}

func countOps(code []bytecode.Instruction, op bytecode.Op) int {
	n := 0
	for _, instr := range code {
		if instr.Op == op {
			n++
		}
	}
	return n
}

func TestCompileLocalGetAliasesParamSlotWithoutCopy(t *testing.T) {
	mod := testModule(decoder.FuncType{Params: []byte{0x7F}, Results: []byte{0x7F}})
	body := decoder.FunctionBody{
		Code:    []byte{0x20, 0x00, 0x0B}, // local.get 0; end
		TypeIdx: 0,
	}

	fn, err := Compile(body, "id", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if n := countOps(fn.Code, bytecode.OpMove); n != 0 {
		t.Fatalf("expected no OpMove from a bare aliasing local.get, got %d", n)
	}
	if n := countOps(fn.Code, bytecode.OpEnd); n != 1 {
		t.Fatalf("expected exactly one OpEnd, got %d", n)
	}
	end := fn.Code[len(fn.Code)-1]
	offs := end.Imm.([]int32)
	if len(offs) != 1 || offs[0] != int32(fn.Locals[0].Offset) {
		t.Fatalf("expected the function result to land at the param's own offset, got %v", offs)
	}
}

func TestCompileLocalGetCopiesWhenWriteFollowsWithinInterval(t *testing.T) {
	mod := testModule(decoder.FuncType{Params: []byte{0x7F}, Results: []byte{0x7F}})
	// local.get 0; local.get 0; drop; i32.const 9; local.set 0; end
	// the first local.get's interval spans a write to local 0 (the later
	// local.set) before its value is consumed by the implicit return, so it
	// must copy instead of aliasing.
	body := decoder.FunctionBody{
		Code: []byte{
			0x20, 0x00, // local.get 0        (opens interval A)
			0x20, 0x00, // local.get 0        (opens interval B, closed by drop)
			0x1A,       // drop               (closes interval B)
			0x41, 0x09, // i32.const 9
			0x21, 0x00, // local.set 0        (write; closes interval A isn't closed yet, still open)
			0x0B, // end                (closes interval A via implicit return read)
		},
		TypeIdx: 0,
	}

	fn, err := Compile(body, "copy", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if n := countOps(fn.Code, bytecode.OpMove); n == 0 {
		t.Fatalf("expected at least one OpMove guarding the live-across-write local.get")
	}
}

func TestCompilePoolsRepeatedConstant(t *testing.T) {
	mod := testModule(decoder.FuncType{Results: []byte{0x7F}})
	body := decoder.FunctionBody{
		Code: []byte{
			0x41, 0x05, // i32.const 5
			0x41, 0x05, // i32.const 5
			0x6A, // i32.add
			0x0B, // end
		},
		TypeIdx: 0,
	}

	fn, err := Compile(body, "pooled", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if n := countOps(fn.Code, bytecode.OpConst); n != 1 {
		t.Fatalf("expected exactly one OpConst (the pooled materialization in the prelude), got %d", n)
	}
	if n := countOps(fn.Code, bytecode.OpPassthrough); n != 1 {
		t.Fatalf("expected exactly one passthrough (i32.add), got %d", n)
	}
	var add bytecode.Instruction
	for _, instr := range fn.Code {
		if instr.Op == bytecode.OpPassthrough {
			add = instr
		}
	}
	if add.Src[0] != add.Src[1] {
		t.Fatalf("expected both i32.add operands to point at the same pooled offset, got %v", add.Src[:2])
	}
}

func TestCompileDoesNotPoolSingletonConstant(t *testing.T) {
	mod := testModule(decoder.FuncType{Results: []byte{0x7F}})
	body := decoder.FunctionBody{
		Code: []byte{
			0x41, 0x07, // i32.const 7
			0x0B, // end
		},
		TypeIdx: 0,
	}

	fn, err := Compile(body, "single", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if n := countOps(fn.Code, bytecode.OpConst); n != 1 {
		t.Fatalf("expected exactly one inline OpConst, got %d", n)
	}
}

func TestCompileFusesI32EqzIntoBrIf(t *testing.T) {
	mod := testModule(decoder.FuncType{Params: []byte{0x7F}, Results: []byte{0x7F}})
	// block
	//   local.get 0
	//   i32.eqz
	//   br_if 0
	//   i32.const 1
	//   return
	// end
	// i32.const 0
	// end
	body := decoder.FunctionBody{
		Code: []byte{
			0x02, 0x40, // block void
			0x20, 0x00, // local.get 0
			0x45,       // i32.eqz
			0x0D, 0x00, // br_if 0
			0x41, 0x01, // i32.const 1
			0x0F, // return
			0x0B, // end (block)
			0x41, 0x00, // i32.const 0
			0x0B, // end (function)
		},
		TypeIdx: 0,
	}

	fn, err := Compile(body, "fuse", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if n := countOps(fn.Code, bytecode.OpPassthrough); n != 0 {
		t.Fatalf("expected the I32Eqz to be fused away, leaving no passthrough, got %d", n)
	}
	if n := countOps(fn.Code, bytecode.OpJumpIfFalse); n != 1 {
		t.Fatalf("expected br_if's fused form to be a single JumpIfFalse on the eqz's source, got %d matches", n)
	}
}

func TestCompileNeedsInitWhenReadNotDominatedByWrite(t *testing.T) {
	mod := testModule(decoder.FuncType{Results: []byte{0x7F}})
	// one declared i32 local, read before any write: needs a zero-initializer.
	body := decoder.FunctionBody{
		Code: []byte{
			0x20, 0x00, // local.get 0
			0x0B, // end
		},
		Locals:  []decoder.LocalGroup{{Count: 1, Kind: 0x7F}},
		TypeIdx: 0,
	}

	fn, err := Compile(body, "needsinit", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !fn.Locals[0].NeedsInit {
		t.Fatalf("expected local 0 to be marked NeedsInit")
	}
	if n := countOps(fn.Code, bytecode.OpZeroInit); n != 1 {
		t.Fatalf("expected exactly one OpZeroInit prelude instruction, got %d", n)
	}
}

func TestCompileCallLowersParamAndResultOffsets(t *testing.T) {
	callee := decoder.FuncType{Params: []byte{0x7F}, Results: []byte{0x7F}}
	caller := decoder.FuncType{Results: []byte{0x7F}}
	mod := &ModuleInfo{
		Types:       []decoder.FuncType{callee, caller},
		FuncTypeIdx: []uint32{0},
		PointerWidth: 4,
	}
	body := decoder.FunctionBody{
		Code: []byte{
			0x41, 0x2A, // i32.const 42
			0x10, 0x00, // call 0
			0x0B, // end
		},
		TypeIdx: 1,
	}

	fn, err := Compile(body, "caller", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if n := countOps(fn.Code, bytecode.OpCall); n != 1 {
		t.Fatalf("expected exactly one OpCall, got %d", n)
	}
	var data *bytecode.CallData
	for _, instr := range fn.Code {
		if instr.Op == bytecode.OpCall {
			data = instr.Imm.(*bytecode.CallData)
		}
	}
	if len(data.ParamOffsets) != 1 || len(data.ResultOffsets) != 1 {
		t.Fatalf("expected one param offset and one result offset, got %+v", data)
	}
}

func TestCompileLoopBranchReturnsToHeader(t *testing.T) {
	mod := testModule(decoder.FuncType{Results: []byte{0x7F}})
	// loop
	//   br 0
	// end
	// i32.const 0
	// end
	body := decoder.FunctionBody{
		Code: []byte{
			0x03, 0x40, // loop void
			0x0C, 0x00, // br 0
			0x0B, // end (loop) -- unreachable, never patched
			0x41, 0x00,
			0x0B,
		},
		TypeIdx: 0,
	}

	fn, err := Compile(body, "loopback", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var jump *bytecode.Instruction
	for i := range fn.Code {
		if fn.Code[i].Op == bytecode.OpJump {
			jump = &fn.Code[i]
		}
	}
	if jump == nil {
		t.Fatalf("expected an unconditional jump for the loop back-edge")
	}
	if target, ok := jump.Imm.(int); !ok || target != 0 {
		t.Fatalf("expected the back-edge to target the loop header (instruction 0), got %v", jump.Imm)
	}
}

func TestCompileBrZeroAtOutermostBlockReturnsFromFunction(t *testing.T) {
	mod := testModule(decoder.FuncType{Results: []byte{0x7F}})
	// i32.const 1
	// br 0   -- targets the function's own implicit block: a return
	// end
	body := decoder.FunctionBody{
		Code:    []byte{0x41, 0x01, 0x0C, 0x00, 0x0B},
		TypeIdx: 0,
	}

	fn, err := Compile(body, "brreturn", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if n := countOps(fn.Code, bytecode.OpEnd); n != 1 {
		t.Fatalf("expected exactly one OpEnd, got %d", n)
	}
	end := fn.Code[len(fn.Code)-1]
	if end.Op != bytecode.OpEnd {
		t.Fatalf("expected br 0 at the outermost block to lower to OpEnd, got %v", end.Op)
	}
	if offs, ok := end.Imm.([]int32); !ok || len(offs) != 1 {
		t.Fatalf("expected one result offset on the synthesized OpEnd, got %v", end.Imm)
	}
}

func TestCompileBrIfZeroAtOutermostBlockReturnsFromFunction(t *testing.T) {
	mod := testModule(decoder.FuncType{Params: []byte{0x7F}, Results: []byte{0x7F}})
	// local.get 0
	// local.get 0
	// br_if 0   -- taken: return the first local.get's value
	// i32.const 99
	// end       -- not taken: fall through to the normal function end
	body := decoder.FunctionBody{
		Code:    []byte{0x20, 0x00, 0x20, 0x00, 0x0D, 0x00, 0x41, 0x63, 0x0B},
		TypeIdx: 0,
	}

	fn, err := Compile(body, "brifreturn", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if n := countOps(fn.Code, bytecode.OpEnd); n != 2 {
		t.Fatalf("expected an inline OpEnd for the taken branch plus one for the fallthrough path, got %d", n)
	}

	var jumpPos = -1
	for i := range fn.Code {
		if fn.Code[i].Op == bytecode.OpJumpIfTrue || fn.Code[i].Op == bytecode.OpJumpIfFalse {
			jumpPos = i
		}
	}
	if jumpPos < 0 {
		t.Fatalf("expected a conditional jump for br_if")
	}
	target, ok := fn.Code[jumpPos].Imm.(int)
	if !ok || target < 0 || target >= len(fn.Code) || fn.Code[target].Op != bytecode.OpEnd {
		t.Fatalf("expected the conditional jump to land on the inline OpEnd, got %v", fn.Code[jumpPos].Imm)
	}
}

func TestCompileBrTableDefaultAtOutermostBlockReturnsFromFunction(t *testing.T) {
	mod := testModule(decoder.FuncType{Results: []byte{0x7F}})
	// i32.const 1
	// i32.const 0
	// br_table (no labels, default 0)  -- only target is the function's own block
	// end -- unreachable, never patched
	body := decoder.FunctionBody{
		Code: []byte{
			0x41, 0x01,
			0x41, 0x00,
			0x0E, 0x00, 0x00,
			0x0B,
		},
		TypeIdx: 0,
	}

	fn, err := Compile(body, "brtablereturn", mod, 4)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if n := countOps(fn.Code, bytecode.OpEnd); n != 1 {
		t.Fatalf("expected exactly one OpEnd, got %d", n)
	}

	var table *bytecode.BrTableData
	for i := range fn.Code {
		if fn.Code[i].Op == bytecode.OpBrTable {
			table = fn.Code[i].Imm.(*bytecode.BrTableData)
		}
	}
	if table == nil {
		t.Fatalf("expected an OpBrTable instruction")
	}
	if len(table.Targets) != 1 {
		t.Fatalf("expected one target slot, got %d", len(table.Targets))
	}
	if target := table.Targets[0]; target <= 0 || target >= len(fn.Code) || fn.Code[target].Op != bytecode.OpEnd {
		t.Fatalf("expected the default target to land on the inline OpEnd, got %d", target)
	}
}

func TestCompileUnsupportedSIMDOpcodeErrors(t *testing.T) {
	mod := testModule(decoder.FuncType{})
	body := decoder.FunctionBody{
		Code:    []byte{0xFD, 0x0C, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x0B},
		TypeIdx: 0,
	}
	if _, err := Compile(body, "simd", mod, 4); err == nil {
		t.Fatalf("expected an error compiling a v128.const, SIMD isn't supported")
	}
}

func TestBlockTypeKindsSentinels(t *testing.T) {
	ctx := &Context{}
	cases := []struct {
		raw  int64
		want valtype.Kind
		void bool
	}{
		{-64, valtype.Void, true},
		{-1, valtype.I32, false},
		{-2, valtype.I64, false},
		{-3, valtype.F32, false},
		{-4, valtype.F64, false},
	}
	for _, c := range cases {
		_, results := blockTypeKinds(ctx, c.raw)
		if c.void {
			if len(results) != 0 {
				t.Errorf("raw=%d: expected void, got %v", c.raw, results)
			}
			continue
		}
		if len(results) != 1 || results[0] != c.want {
			t.Errorf("raw=%d: expected [%s], got %v", c.raw, c.want, results)
		}
	}
}
