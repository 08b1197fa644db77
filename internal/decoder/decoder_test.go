package decoder

import "testing"

// buildMinimalModule assembles a module with one type, one function
// (i32 -> i32), and a body computing local.get 0 + i32.const 1.
func buildMinimalModule(t *testing.T) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6D) // magic
	buf = append(buf, 0x01, 0x00, 0x00, 0x00) // version

	// type section: (i32) -> i32
	typeSec := []byte{0x01, 0x60, 0x01, 0x7F, 0x01, 0x7F}
	buf = append(buf, SectionType, byte(len(typeSec)))
	buf = append(buf, typeSec...)

	// function section: one function of type 0
	funcSec := []byte{0x01, 0x00}
	buf = append(buf, SectionFunction, byte(len(funcSec)))
	buf = append(buf, funcSec...)

	// export section: export func 0 as "add_one"
	name := "add_one"
	exportSec := append([]byte{0x01, byte(len(name))}, []byte(name)...)
	exportSec = append(exportSec, 0x00, 0x00)
	buf = append(buf, SectionExport, byte(len(exportSec)))
	buf = append(buf, exportSec...)

	// code section: one body, no locals, local.get 0; i32.const 1; i32.add; end
	body := []byte{0x00, 0x20, 0x00, 0x41, 0x01, 0x6A, 0x0B}
	codeSec := append([]byte{0x01, byte(len(body))}, body...)
	buf = append(buf, SectionCode, byte(len(codeSec)))
	buf = append(buf, codeSec...)

	return buf
}

func TestDecodeStructuralCallbacks(t *testing.T) {
	data := buildMinimalModule(t)

	var gotTypes []FuncType
	var gotFuncTypeIdx uint32
	var gotExport ExportEntry
	var gotBody FunctionBody

	err := Decode(data, Callbacks{
		OnTypes:    func(types []FuncType) { gotTypes = types },
		OnFunction: func(funcIdx, typeIdx uint32) { gotFuncTypeIdx = typeIdx },
		OnExport:   func(e ExportEntry) { gotExport = e },
		OnFunctionBody: func(b FunctionBody) {
			gotBody = b
		},
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(gotTypes) != 1 {
		t.Fatalf("expected 1 type, got %d", len(gotTypes))
	}
	if len(gotTypes[0].Params) != 1 || len(gotTypes[0].Results) != 1 {
		t.Fatalf("unexpected type shape: %+v", gotTypes[0])
	}
	if gotFuncTypeIdx != 0 {
		t.Fatalf("expected func type idx 0, got %d", gotFuncTypeIdx)
	}
	if gotExport.Name != "add_one" || gotExport.Kind != 0 || gotExport.Idx != 0 {
		t.Fatalf("unexpected export: %+v", gotExport)
	}
	if len(gotBody.Code) != 6 {
		t.Fatalf("expected 6 body bytes, got %d: %v", len(gotBody.Code), gotBody.Code)
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	if err := Decode(data, Callbacks{}); err != ErrInvalidMagic {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestDecodeOneLocalGet(t *testing.T) {
	code := []byte{0x20, 0x05}
	r := NewReader(code)
	instr, err := DecodeOne(r)
	if err != nil {
		t.Fatalf("DecodeOne: %v", err)
	}
	imm, ok := instr.Imm.(LocalImm)
	if !ok {
		t.Fatalf("expected LocalImm, got %T", instr.Imm)
	}
	if imm.LocalIdx != 5 {
		t.Fatalf("expected local idx 5, got %d", imm.LocalIdx)
	}
	if r.Len() != 0 {
		t.Fatalf("expected reader exhausted, got %d bytes left", r.Len())
	}
}

func TestDecodeOneBlockTypeVoid(t *testing.T) {
	code := []byte{0x02, 0x40} // block void
	r := NewReader(code)
	instr, err := DecodeOne(r)
	if err != nil {
		t.Fatalf("DecodeOne: %v", err)
	}
	imm, ok := instr.Imm.(BlockImm)
	if !ok {
		t.Fatalf("expected BlockImm, got %T", instr.Imm)
	}
	if imm.Type != -64 {
		t.Fatalf("expected void sentinel -64, got %d", imm.Type)
	}
}

func TestDecodeOneMemArgMultiMemory(t *testing.T) {
	// i32.load with the multi-memory bit set and memory index 3, offset 8.
	code := []byte{0x28, 0x40 | 0x02, 0x03, 0x08}
	r := NewReader(code)
	instr, err := DecodeOne(r)
	if err != nil {
		t.Fatalf("DecodeOne: %v", err)
	}
	m, ok := instr.Imm.(MemArg)
	if !ok {
		t.Fatalf("expected MemArg, got %T", instr.Imm)
	}
	if m.MemIdx != 3 || m.Offset != 8 || m.Align != 2 {
		t.Fatalf("unexpected memarg: %+v", m)
	}
}

func TestPeekByteDoesNotAdvance(t *testing.T) {
	r := NewReader([]byte{0x20, 0x00})
	b, err := r.PeekByte()
	if err != nil {
		t.Fatalf("PeekByte: %v", err)
	}
	if b != 0x20 {
		t.Fatalf("expected 0x20, got 0x%02x", b)
	}
	if r.Position() != 0 {
		t.Fatalf("PeekByte must not advance position, got %d", r.Position())
	}
}
