package opcode

import (
	"testing"

	"github.com/wippyai/wasmc/internal/valtype"
)

func TestLookupArithmetic(t *testing.T) {
	info := Lookup(I32Add)
	if info.Mnemonic != "i32.binop" {
		t.Fatalf("expected i32.binop, got %q", info.Mnemonic)
	}
	if !info.HasResult || info.ResultKind != valtype.I32 {
		t.Fatalf("expected i32 result, got %+v", info)
	}
	if info.NumParams != 2 {
		t.Fatalf("expected 2 params, got %d", info.NumParams)
	}
}

func TestLookupComparisonResultIsI32(t *testing.T) {
	for _, op := range []byte{I32Eq, I64LtS, F32Gt, F64Le} {
		info := Lookup(op)
		if info.ResultKind != valtype.I32 {
			t.Errorf("opcode 0x%02x: expected i32 result, got %v", op, info.ResultKind)
		}
	}
}

func TestLookupStoreHasNoResult(t *testing.T) {
	for _, op := range []byte{I32Store, I64Store, F32Store, F64Store} {
		info := Lookup(op)
		if info.HasResult {
			t.Errorf("opcode 0x%02x: store must not produce a result", op)
		}
		if info.NumParams != 2 {
			t.Errorf("opcode 0x%02x: expected 2 params, got %d", op, info.NumParams)
		}
	}
}

func TestLookupUnreachableAndNop(t *testing.T) {
	for _, op := range []byte{Unreachable, Nop} {
		info := Lookup(op)
		if info.HasResult || info.NumParams != 0 {
			t.Errorf("opcode 0x%02x: expected no result and no params, got %+v", op, info)
		}
	}
}

func TestLookupConstOpcodes(t *testing.T) {
	cases := map[byte]valtype.Kind{
		I32Const: valtype.I32,
		I64Const: valtype.I64,
		F32Const: valtype.F32,
		F64Const: valtype.F64,
	}
	for op, kind := range cases {
		info := Lookup(op)
		if !info.HasResult || info.ResultKind != kind {
			t.Errorf("opcode 0x%02x: expected %v result, got %+v", op, kind, info)
		}
		if info.NumParams != 0 {
			t.Errorf("opcode 0x%02x: const must take no operands, got %d", op, info.NumParams)
		}
	}
}
