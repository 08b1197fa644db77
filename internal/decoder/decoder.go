package decoder

import (
	"errors"
	"fmt"
)

// ErrInvalidMagic and ErrInvalidVersion are returned by Decode for a
// malformed module header.
var (
	ErrInvalidMagic   = errors.New("decoder: invalid wasm magic number")
	ErrInvalidVersion = errors.New("decoder: unsupported wasm version")
)

// Decode walks the structural sections of a WebAssembly binary module,
// invoking one Callbacks method per section-level element, and one
// OnFunctionBody per code-section entry. It does not decode instructions
// inside a function body itself — FunctionBody.Code is handed to the caller
// for the emitter to drive one DecodeOne call at a time (spec §6, "a single
// forward pass").
func Decode(data []byte, cb Callbacks) error {
	r := NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return fmt.Errorf("decoder: reading magic: %w", err)
	}
	if magic != Magic {
		return ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return fmt.Errorf("decoder: reading version: %w", err)
	}
	if version != Version {
		return ErrInvalidVersion
	}

	var lastOrder int
	var funcTypeIdxs []uint32
	var nextFuncIdx uint32
	var importedGlobalCount uint32

	for r.Len() > 0 {
		sectionID, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("decoder: reading section id: %w", err)
		}
		if sectionID != SectionCustom {
			order := sectionOrder(sectionID)
			if order == 0 {
				return fmt.Errorf("decoder: unknown section id %d", sectionID)
			}
			if order <= lastOrder {
				return fmt.Errorf("decoder: section %d appears out of order", sectionID)
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return fmt.Errorf("decoder: reading section size: %w", err)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return fmt.Errorf("decoder: reading section body: %w", err)
		}
		sr := NewReader(body)

		switch sectionID {
		case SectionCustom:
			// consumed for size only; contents are not structurally meaningful here.
		case SectionType:
			if err := decodeTypeSection(sr, cb); err != nil {
				return fmt.Errorf("decoder: type section: %w", err)
			}
		case SectionImport:
			if err := decodeImportSection(sr, cb, &nextFuncIdx, &importedGlobalCount); err != nil {
				return fmt.Errorf("decoder: import section: %w", err)
			}
		case SectionFunction:
			if funcTypeIdxs, err = decodeFunctionSection(sr); err != nil {
				return fmt.Errorf("decoder: function section: %w", err)
			}
			for _, t := range funcTypeIdxs {
				if cb.OnFunction != nil {
					cb.OnFunction(nextFuncIdx, t)
				}
				nextFuncIdx++
			}
		case SectionTable:
			if err := decodeTableSection(sr, cb); err != nil {
				return fmt.Errorf("decoder: table section: %w", err)
			}
		case SectionMemory:
			if err := decodeMemorySection(sr, cb); err != nil {
				return fmt.Errorf("decoder: memory section: %w", err)
			}
		case SectionTag:
			if err := decodeTagSection(sr, cb); err != nil {
				return fmt.Errorf("decoder: tag section: %w", err)
			}
		case SectionGlobal:
			if err := decodeGlobalSection(sr, cb, importedGlobalCount); err != nil {
				return fmt.Errorf("decoder: global section: %w", err)
			}
		case SectionExport:
			if err := decodeExportSection(sr, cb); err != nil {
				return fmt.Errorf("decoder: export section: %w", err)
			}
		case SectionStart:
			idx, err := sr.ReadU32()
			if err != nil {
				return fmt.Errorf("decoder: start section: %w", err)
			}
			if cb.OnStart != nil {
				cb.OnStart(idx)
			}
		case SectionElement:
			if err := decodeElementSection(sr, cb); err != nil {
				return fmt.Errorf("decoder: element section: %w", err)
			}
		case SectionDataCount:
			count, err := sr.ReadU32()
			if err != nil {
				return fmt.Errorf("decoder: data count section: %w", err)
			}
			if cb.OnDataCount != nil {
				cb.OnDataCount(count)
			}
		case SectionCode:
			importedFuncCount := nextFuncIdx - uint32(len(funcTypeIdxs))
			sectionStart := r.Position() - int(size)
			if err := decodeCodeSection(sr, cb, funcTypeIdxs, importedFuncCount, sectionStart); err != nil {
				return fmt.Errorf("decoder: code section: %w", err)
			}
		case SectionData:
			if err := decodeDataSection(sr, cb); err != nil {
				return fmt.Errorf("decoder: data section: %w", err)
			}
		default:
			return fmt.Errorf("decoder: unhandled section id %d", sectionID)
		}
	}
	return nil
}

func decodeTypeSection(r *Reader, cb Callbacks) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	types := make([]FuncType, n)
	for i := range types {
		form, err := r.ReadByte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return fmt.Errorf("unsupported type form 0x%02x", form)
		}
		np, err := r.ReadU32()
		if err != nil {
			return err
		}
		params := make([]byte, np)
		for j := range params {
			if params[j], err = r.ReadByte(); err != nil {
				return err
			}
		}
		nr, err := r.ReadU32()
		if err != nil {
			return err
		}
		results := make([]byte, nr)
		for j := range results {
			if results[j], err = r.ReadByte(); err != nil {
				return err
			}
		}
		types[i] = FuncType{Params: params, Results: results}
	}
	if cb.OnTypes != nil {
		cb.OnTypes(types)
	}
	return nil
}

func decodeImportSection(r *Reader, cb Callbacks, nextFuncIdx *uint32, importedGlobalCount *uint32) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		mod, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		var idx uint32
		var globalMutable bool
		switch kind {
		case 0: // func
			if idx, err = r.ReadU32(); err != nil {
				return err
			}
			*nextFuncIdx = *nextFuncIdx + 1
		case 1: // table
			if _, err := r.ReadByte(); err != nil { // reftype
				return err
			}
			if _, _, err := readLimits(r); err != nil {
				return err
			}
		case 2: // memory
			if _, _, err := readLimits(r); err != nil {
				return err
			}
		case 3: // global
			valKind, err := r.ReadByte()
			if err != nil {
				return err
			}
			mutByte, err := r.ReadByte()
			if err != nil {
				return err
			}
			idx = uint32(valKind)
			globalMutable = mutByte != 0
			*importedGlobalCount = *importedGlobalCount + 1
		case 4: // tag
			if _, err := r.ReadByte(); err != nil { // attribute
				return err
			}
			if idx, err = r.ReadU32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown import kind %d", kind)
		}
		if cb.OnImport != nil {
			cb.OnImport(Import{Module: mod, Name: name, Kind: kind, Index: idx, GlobalMutable: globalMutable})
		}
	}
	return nil
}

func decodeFunctionSection(r *Reader) ([]uint32, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	idxs := make([]uint32, n)
	for i := range idxs {
		if idxs[i], err = r.ReadU32(); err != nil {
			return nil, err
		}
	}
	return idxs, nil
}

func readLimits(r *Reader) (min, max uint32, err error) {
	flags, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	if min, err = r.ReadU32(); err != nil {
		return 0, 0, err
	}
	if flags&1 != 0 {
		if max, err = r.ReadU32(); err != nil {
			return 0, 0, err
		}
		return min, max, nil
	}
	return min, 0, nil
}

func decodeTableSection(r *Reader, cb Callbacks) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		elemKind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if elemKind == 0x40 { // table with init expression: 0x40 0x00 reftype limits init
			zero, err := r.ReadByte()
			if err != nil {
				return err
			}
			if zero != 0x00 {
				return fmt.Errorf("expected 0x00 after 0x40 in table type, got 0x%02x", zero)
			}
			if elemKind, err = r.ReadByte(); err != nil {
				return err
			}
			min, max, err := readLimits(r)
			if err != nil {
				return err
			}
			if _, err := readConstExpr(r); err != nil {
				return err
			}
			if cb.OnTable != nil {
				cb.OnTable(i, elemKind, min, max, max != 0)
			}
			continue
		}
		min, max, err := readLimits(r)
		if err != nil {
			return err
		}
		if cb.OnTable != nil {
			cb.OnTable(i, elemKind, min, max, max != 0)
		}
	}
	return nil
}

func decodeMemorySection(r *Reader, cb Callbacks) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		min, max, err := readLimits(r)
		if err != nil {
			return err
		}
		if cb.OnMemory != nil {
			cb.OnMemory(i, min, max, max != 0)
		}
	}
	return nil
}

func decodeTagSection(r *Reader, cb Callbacks) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if _, err := r.ReadByte(); err != nil { // attribute, always 0
			return err
		}
		typeIdx, err := r.ReadU32()
		if err != nil {
			return err
		}
		if cb.OnTag != nil {
			cb.OnTag(i, typeIdx)
		}
	}
	return nil
}

func decodeGlobalSection(r *Reader, cb Callbacks, importedGlobalCount uint32) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		mutByte, err := r.ReadByte()
		if err != nil {
			return err
		}
		init, err := readConstExpr(r)
		if err != nil {
			return err
		}
		if cb.OnGlobal != nil {
			cb.OnGlobal(importedGlobalCount+i, Global{Init: init, Type: kind, Mutable: mutByte != 0})
		}
	}
	return nil
}

// readConstExpr decodes a constant init expression up to and including its
// terminating `end`, used by global/element/data segment offsets.
func readConstExpr(r *Reader) ([]Instr, error) {
	var instrs []Instr
	for {
		instr, err := DecodeOne(r)
		if err != nil {
			return nil, err
		}
		if instr.Opcode == 0x0B { // end
			return instrs, nil
		}
		instrs = append(instrs, instr)
	}
}

func decodeExportSection(r *Reader, cb Callbacks) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		if cb.OnExport != nil {
			cb.OnExport(ExportEntry{Name: name, Kind: kind, Idx: idx})
		}
	}
	return nil
}

func decodeElementSection(r *Reader, cb Callbacks) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		seg := ElementSegment{Active: flags&1 == 0}
		switch flags {
		case 0:
			offset, err := readConstExpr(r)
			if err != nil {
				return err
			}
			seg.Offset = offset
			idxs, err := readIdxVec(r)
			if err != nil {
				return err
			}
			seg.FuncIdxs = idxs
		case 1:
			if _, err := r.ReadByte(); err != nil { // elemkind
				return err
			}
			idxs, err := readIdxVec(r)
			if err != nil {
				return err
			}
			seg.FuncIdxs = idxs
		case 2:
			tableIdx, err := r.ReadU32()
			if err != nil {
				return err
			}
			seg.TableIdx = tableIdx
			offset, err := readConstExpr(r)
			if err != nil {
				return err
			}
			seg.Offset = offset
			if _, err := r.ReadByte(); err != nil {
				return err
			}
			idxs, err := readIdxVec(r)
			if err != nil {
				return err
			}
			seg.FuncIdxs = idxs
		default:
			// remaining flag combinations (3,4,5,6,7: expr-init variants) are
			// read the same way the func-idx variants are for this compiler's
			// purposes, since it only needs the active/offset/func-index shape.
			if flags&2 != 0 {
				if _, err := r.ReadU32(); err != nil { // table idx or elemkind/reftype depending on bit 2/3
					return err
				}
			}
			if flags&1 == 0 {
				offset, err := readConstExpr(r)
				if err != nil {
					return err
				}
				seg.Offset = offset
			}
			if flags == 5 || flags == 6 {
				if _, err := r.ReadByte(); err != nil { // reftype
					return err
				}
			}
			count, err := r.ReadU32()
			if err != nil {
				return err
			}
			if flags&4 != 0 {
				for j := uint32(0); j < count; j++ {
					if _, err := readConstExpr(r); err != nil {
						return err
					}
				}
			} else {
				idxs := make([]uint32, count)
				for j := range idxs {
					if idxs[j], err = r.ReadU32(); err != nil {
						return err
					}
				}
				seg.FuncIdxs = idxs
			}
		}
		if cb.OnElement != nil {
			cb.OnElement(seg)
		}
	}
	return nil
}

func readIdxVec(r *Reader) ([]uint32, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	idxs := make([]uint32, n)
	for i := range idxs {
		if idxs[i], err = r.ReadU32(); err != nil {
			return nil, err
		}
	}
	return idxs, nil
}

func decodeDataSection(r *Reader, cb Callbacks) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		flags, err := r.ReadU32()
		if err != nil {
			return err
		}
		seg := DataSegment{Active: flags != 1}
		if flags == 2 {
			if seg.MemIdx, err = r.ReadU32(); err != nil {
				return err
			}
		}
		if flags != 1 {
			offset, err := readConstExpr(r)
			if err != nil {
				return err
			}
			seg.Offset = offset
		}
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		b, err := r.ReadBytes(int(n))
		if err != nil {
			return err
		}
		seg.Bytes = append([]byte(nil), b...)
		if cb.OnData != nil {
			cb.OnData(seg)
		}
	}
	return nil
}

func decodeCodeSection(r *Reader, cb Callbacks, funcTypeIdxs []uint32, importedFuncCount uint32, sectionStart int) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		entryStart := r.Position()
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return err
		}
		br := NewReader(body)
		localCount, err := br.ReadU32()
		if err != nil {
			return err
		}
		locals := make([]LocalGroup, localCount)
		for j := range locals {
			count, err := br.ReadU32()
			if err != nil {
				return err
			}
			kind, err := br.ReadByte()
			if err != nil {
				return err
			}
			locals[j] = LocalGroup{Count: count, Kind: kind}
		}
		codeStart := br.Position()
		code, err := br.ReadBytes(br.Len())
		if err != nil {
			return err
		}
		var typeIdx uint32
		if int(i) < len(funcTypeIdxs) {
			typeIdx = funcTypeIdxs[i]
		}
		if cb.OnFunctionBody != nil {
			cb.OnFunctionBody(FunctionBody{
				FuncIdx:   importedFuncCount + i,
				TypeIdx:   typeIdx,
				Locals:    locals,
				Code:      code,
				BodyStart: sectionStart + entryStart + codeStart,
			})
		}
	}
	return nil
}
