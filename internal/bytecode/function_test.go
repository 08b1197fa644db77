package bytecode

import (
	"strings"
	"testing"

	"github.com/wippyai/wasmc/internal/valtype"
)

func TestNewFunctionLaysOutParams(t *testing.T) {
	f := NewFunction(0, "add", []valtype.Kind{valtype.I32, valtype.I64}, []valtype.Kind{valtype.I64}, 8)
	if len(f.Locals) != 2 {
		t.Fatalf("expected 2 param locals, got %d", len(f.Locals))
	}
	if f.Locals[0].Offset != 0 {
		t.Fatalf("expected first param at offset 0, got %d", f.Locals[0].Offset)
	}
	if f.Locals[1].Offset != 8 {
		t.Fatalf("expected i64 param aligned to offset 8, got %d", f.Locals[1].Offset)
	}
	if f.RequiredStackSize != 16 {
		t.Fatalf("expected watermark 16, got %d", f.RequiredStackSize)
	}
}

func TestAddLocalAligns(t *testing.T) {
	f := NewFunction(0, "f", []valtype.Kind{valtype.I32}, nil, 8)
	idx := f.AddLocal(valtype.I64)
	if f.Locals[idx].Offset != 8 {
		t.Fatalf("expected i64 local aligned to 8, got %d", f.Locals[idx].Offset)
	}
}

func TestEmitStampsPos(t *testing.T) {
	f := NewFunction(0, "f", nil, nil, 8)
	p0 := f.Emit(Instruction{Op: OpNop})
	p1 := f.Emit(Instruction{Op: OpNop})
	if p0 != 0 || p1 != 1 {
		t.Fatalf("expected sequential positions 0,1 got %d,%d", p0, p1)
	}
	if f.Code[1].Pos != 1 {
		t.Fatalf("expected stamped Pos on stored instruction")
	}
}

func TestWatermarkOnlyGrows(t *testing.T) {
	f := NewFunction(0, "f", nil, nil, 8)
	f.Watermark(32)
	f.Watermark(10)
	if f.RequiredStackSize != 32 {
		t.Fatalf("expected watermark to stay at 32, got %d", f.RequiredStackSize)
	}
}

func TestCatchesCoveringOrdersInnermostFirst(t *testing.T) {
	f := NewFunction(0, "f", nil, nil, 8)
	f.AddCatch(CatchEntry{TryStart: 0, TryEnd: 10, CatchStart: 10, TagIdx: 1})
	f.AddCatch(CatchEntry{TryStart: 2, TryEnd: 6, CatchStart: 6, TagIdx: 2})
	got := f.CatchesCovering(3)
	if len(got) != 2 {
		t.Fatalf("expected 2 covering catches, got %d", len(got))
	}
	if got[0].TagIdx != 2 {
		t.Fatalf("expected innermost catch (tag 2) first, got tag %d", got[0].TagIdx)
	}
}

func TestDumpIncludesLocalsAndInstructions(t *testing.T) {
	f := NewFunction(0, "add_one", []valtype.Kind{valtype.I32}, []valtype.Kind{valtype.I32}, 8)
	f.Emit(Instruction{Op: OpConst, Dst: 4, Kind: valtype.I32, Imm: int32(1)})
	f.Emit(Instruction{Op: OpPassthrough, WasmOp: 0x6A, Dst: 0, Src: [3]int32{0, 4}, NumSrc: 2, Kind: valtype.I32})
	out := f.Dump()
	if !strings.Contains(out, "add_one") {
		t.Fatalf("expected function name in dump, got %q", out)
	}
	if !strings.Contains(out, "const") || !strings.Contains(out, "passthrough") {
		t.Fatalf("expected instruction mnemonics in dump, got %q", out)
	}
}
