package bytecode

import "github.com/wippyai/wasmc/internal/valtype"

// LocalSlot is one parameter or declared local's compiled layout (spec §3,
// "Local info"). Offset is the natural, pre-allocator offset until the
// allocator runs, after which it holds the packed offset.
type LocalSlot struct {
	Kind      valtype.Kind
	Offset    int
	NeedsInit bool // set by emitter.Compile when the preprocess analyzer finds a read not dominated by a definite write
}

// CatchEntry is one row of a function's catch table (spec §3, "Try/catch
// record"): the byte range a handler covers and where control resumes.
type CatchEntry struct {
	TryStart        int
	TryEnd          int
	CatchStart      int
	LandingStackSize int
	TagIdx          uint32
	IsCatchAll      bool
}

// Function is the compiled draft for one WebAssembly function (spec §3,
// "Module-function draft"). Code is populated by the emitter and then
// rewritten in place by the allocator.
type Function struct {
	Name             string
	ParamKinds       []valtype.Kind
	ResultKinds      []valtype.Kind
	Locals           []LocalSlot // includes parameters, in order, followed by declared locals
	Code             []Instruction
	Catches          []CatchEntry
	RequiredStackSize int // watermark: the maximum operand-stack depth reached, in bytes
	FrameSize        int  // set once the allocator finishes packing
	FuncIdx          uint32
	PointerWidth     int
}

// NewFunction creates a draft with its parameter slots pre-laid-out at
// offsets 0, 4, 8, … in declaration order, per spec §3's local layout rule.
func NewFunction(funcIdx uint32, name string, paramKinds, resultKinds []valtype.Kind, pointerWidth int) *Function {
	f := &Function{
		Name:         name,
		ParamKinds:   paramKinds,
		ResultKinds:  resultKinds,
		FuncIdx:      funcIdx,
		PointerWidth: pointerWidth,
	}
	off := 0
	for _, k := range paramKinds {
		align := k.Alignment(pointerWidth)
		if off%align != 0 {
			off += align - off%align
		}
		f.Locals = append(f.Locals, LocalSlot{Kind: k, Offset: off})
		off += k.SlotSize(pointerWidth)
	}
	f.RequiredStackSize = off
	return f
}

// AddLocal appends one declared local at the next naturally aligned offset
// after the current watermark, returning its index.
func (f *Function) AddLocal(kind valtype.Kind) int {
	off := f.RequiredStackSize
	align := kind.Alignment(f.PointerWidth)
	if off%align != 0 {
		off += align - off%align
	}
	f.Locals = append(f.Locals, LocalSlot{Kind: kind, Offset: off})
	f.RequiredStackSize = off + kind.SlotSize(f.PointerWidth)
	return len(f.Locals) - 1
}

// Watermark bumps RequiredStackSize to at least off, used by the operand
// stack simulator whenever it allocates a fresh top-of-stack offset.
func (f *Function) Watermark(off int) {
	if off > f.RequiredStackSize {
		f.RequiredStackSize = off
	}
}

// Emit appends instr to the function's code and stamps its Pos.
func (f *Function) Emit(instr Instruction) int {
	instr.Pos = len(f.Code)
	f.Code = append(f.Code, instr)
	return instr.Pos
}
