package wasmc

import "testing"

// buildSumLoopModule hand-assembles a sum-loop module: a function summing
// 0..n-1 with a backward
// branch and two declared locals, enough to exercise the allocator's
// branch-edge live-range widening end to end.
func buildSumLoopModule(t *testing.T) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6D) // magic
	buf = append(buf, 0x01, 0x00, 0x00, 0x00) // version

	typeSec := []byte{0x01, 0x60, 0x01, 0x7F, 0x01, 0x7F}
	buf = append(buf, 0x01, byte(len(typeSec)))
	buf = append(buf, typeSec...)

	funcSec := []byte{0x01, 0x00}
	buf = append(buf, 0x03, byte(len(funcSec)))
	buf = append(buf, funcSec...)

	name := "sum"
	exportSec := append([]byte{0x01, byte(len(name))}, []byte(name)...)
	exportSec = append(exportSec, 0x00, 0x00)
	buf = append(buf, 0x07, byte(len(exportSec)))
	buf = append(buf, exportSec...)

	body := []byte{
		0x01, 0x02, 0x7F, // 2 locals, i32: $acc (1), $i (2)
		0x41, 0x00, // i32.const 0
		0x21, 0x02, // local.set 2      ($i = 0)
		0x41, 0x00, // i32.const 0
		0x21, 0x01, // local.set 1      ($acc = 0)
		0x02, 0x40, // block void       ($done)
		0x03, 0x40, // loop void        ($continue)
		0x20, 0x02, // local.get 2      ($i)
		0x20, 0x00, // local.get 0      ($n)
		0x4E,       // i32.ge_s
		0x0D, 0x01, // br_if 1          (to $done)
		0x20, 0x01, // local.get 1      ($acc)
		0x20, 0x02, // local.get 2      ($i)
		0x6A,       // i32.add
		0x21, 0x01, // local.set 1      ($acc += $i)
		0x20, 0x02, // local.get 2      ($i)
		0x41, 0x01, // i32.const 1
		0x6A,       // i32.add
		0x21, 0x02, // local.set 2      ($i += 1)
		0x0C, 0x00, // br 0             (to $continue)
		0x0B,       // end              (loop)
		0x0B,       // end              (block)
		0x20, 0x01, // local.get 1      ($acc)
		0x0B, // end (function)
	}
	codeSec := append([]byte{0x01, byte(len(body))}, body...)
	buf = append(buf, 0x0A, byte(len(codeSec)))
	buf = append(buf, codeSec...)

	return buf
}

func TestCompileSumLoopPacksLiveRangesAcrossBackwardBranch(t *testing.T) {
	data := buildSumLoopModule(t)

	mod, err := Compile(data, Config{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(mod.Errors) != 0 {
		t.Fatalf("expected no per-function errors, got %v", mod.Errors)
	}
	if len(mod.Functions) != 1 {
		t.Fatalf("expected 1 compiled function, got %d", len(mod.Functions))
	}

	fn := mod.Functions[0]
	if fn.ExportName != "sum" {
		t.Fatalf("expected export name %q, got %q", "sum", fn.ExportName)
	}
	if len(fn.Locals) != 3 {
		t.Fatalf("expected 3 locals (1 param + 2 declared), got %d", len(fn.Locals))
	}
	if fn.FrameSize == 0 {
		t.Fatalf("expected a non-zero packed frame size")
	}
	if fn.RequiredStackSize == 0 {
		t.Fatalf("expected a non-zero watermark from the operand stack simulation")
	}
	if len(fn.Code) == 0 {
		t.Fatalf("expected a non-empty compiled instruction stream")
	}
}
