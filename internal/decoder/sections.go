package decoder

// Section IDs, in their binary encoding order. Values match the WebAssembly
// binary format spec exactly; they are not a teacher-specific choice.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
	SectionTag       byte = 13
)

// Magic and Version are the fixed module header fields.
const (
	Magic   uint32 = 0x6D736100
	Version uint32 = 0x01
)

// sectionOrder returns the canonical section ordering (distinct from section
// IDs: Tag sits between Memory and Global in the binary format).
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 0
	}
}

// FuncType is a decoded entry of the type section.
type FuncType struct {
	Params  []byte
	Results []byte
}

// Import is a decoded entry of the import section. Index holds the type
// index for a func import; for a global import it instead holds the
// global's value type byte, paired with GlobalMutable.
type Import struct {
	Module        string
	Name          string
	Kind          byte // 0=func,1=table,2=memory,3=global,4=tag
	Index         uint32
	GlobalMutable bool
}

// Global is a decoded entry of the global section.
type Global struct {
	Init    []Instr
	Type    byte
	Mutable bool
}

// ExportEntry is a decoded entry of the export section.
type ExportEntry struct {
	Name string
	Kind byte
	Idx  uint32
}

// ElementSegment is a decoded entry of the element section, trimmed to what
// the compiler needs: whether it is active (and which table/offset) and its
// function indices for call_indirect validation hints.
type ElementSegment struct {
	TableIdx uint32
	Offset   []Instr
	FuncIdxs []uint32
	Active   bool
}

// DataSegment is a decoded entry of the data section.
type DataSegment struct {
	MemIdx uint32
	Offset []Instr
	Bytes  []byte
	Active bool
}

// FunctionBody is the raw, not-yet-decoded code of one function, handed to
// the caller so it can drive per-instruction callbacks lazily.
type FunctionBody struct {
	Code      []byte
	Locals    []LocalGroup
	TypeIdx   uint32
	FuncIdx   uint32
	BodyStart int // byte offset of Code[0] within the original module, for diagnostics
}

// LocalGroup is one run-length group of same-kind locals, as encoded in a
// function body's locals declaration.
type LocalGroup struct {
	Count uint32
	Kind  byte
}

// Callbacks receives one call per structural module element and, for each
// function body, one OnFunctionBody followed later by the caller driving
// instruction decode over FunctionBody.Code directly (spec §6, §10).
type Callbacks struct {
	OnTypes        func(types []FuncType)
	OnImport       func(imp Import)
	OnFunction     func(funcIdx uint32, typeIdx uint32)
	OnTable        func(idx uint32, elemKind byte, min, max uint32, hasMax bool)
	OnMemory       func(idx uint32, min, max uint32, hasMax bool)
	OnTag          func(idx uint32, typeIdx uint32)
	OnGlobal       func(idx uint32, g Global)
	OnExport       func(e ExportEntry)
	OnStart        func(funcIdx uint32)
	OnElement      func(e ElementSegment)
	OnDataCount    func(count uint32)
	OnData         func(d DataSegment)
	OnFunctionBody func(b FunctionBody)
}
