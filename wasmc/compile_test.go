package wasmc

import "testing"

// buildModule assembles a minimal module with one type ((i32,i32) -> i32),
// one function, and a body exported as "add" computing local0 + local1,
// mirroring internal/decoder's own buildMinimalModule convention.
func buildModule(t *testing.T) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6D) // magic
	buf = append(buf, 0x01, 0x00, 0x00, 0x00) // version

	typeSec := []byte{0x01, 0x60, 0x02, 0x7F, 0x7F, 0x01, 0x7F}
	buf = append(buf, 0x01, byte(len(typeSec)))
	buf = append(buf, typeSec...)

	funcSec := []byte{0x01, 0x00}
	buf = append(buf, 0x03, byte(len(funcSec)))
	buf = append(buf, funcSec...)

	name := "add"
	exportSec := append([]byte{0x01, byte(len(name))}, []byte(name)...)
	exportSec = append(exportSec, 0x00, 0x00)
	buf = append(buf, 0x07, byte(len(exportSec)))
	buf = append(buf, exportSec...)

	body := []byte{0x00, 0x20, 0x00, 0x20, 0x01, 0x6A, 0x0B}
	codeSec := append([]byte{0x01, byte(len(body))}, body...)
	buf = append(buf, 0x0A, byte(len(codeSec)))
	buf = append(buf, codeSec...)

	return buf
}

func TestCompileProducesOneFunctionWithExportName(t *testing.T) {
	data := buildModule(t)

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
	if fn.ExportName != "add" {
		t.Fatalf("expected export name %q, got %q", "add", fn.ExportName)
	}
	if fn.FrameSize == 0 {
		t.Fatalf("expected a non-zero packed frame size")
	}
}

func TestCompileRejectsBadMagic(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	if _, err := Compile(data, Config{}); err == nil {
		t.Fatalf("expected an error for a malformed magic number")
	}
}

func TestCompileDebugDumpPopulatesDump(t *testing.T) {
	data := buildModule(t)

	mod, err := Compile(data, Config{DebugDump: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if mod.Dump == "" {
		t.Fatalf("expected Dump to be populated when DebugDump is set")
	}
}
