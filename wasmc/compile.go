package wasmc

import (
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasmc/internal/alloc"
	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/emitter"
	"github.com/wippyai/wasmc/internal/valtype"
	"github.com/wippyai/wasmc/internal/wasmerr"
	"github.com/wippyai/wasmc/internal/wlog"
)

// Config configures Compile, grounded on asyncify.Config/engine.Config's
// plain-struct-of-knobs shape.
type Config struct {
	// MaxPooledConstants caps the constant pool's size before the
	// lowest-quarter eviction described in spec §4.4 kicks in. 0 selects
	// constpool.DefaultMaxEntries.
	MaxPooledConstants int
	// PointerWidth sizes funcref/externref slots: 4 or 8. 0 selects 4.
	PointerWidth int
	// DebugDump, when true, renders every compiled function's bytecode
	// into the Module's Dump field. Also enabled by setting the
	// WASMC_DEBUG_DUMP environment variable to any non-empty value.
	DebugDump bool
}

func (c Config) resolved() Config {
	if c.PointerWidth != 4 && c.PointerWidth != 8 {
		c.PointerWidth = 4
	}
	if !c.DebugDump && os.Getenv("WASMC_DEBUG_DUMP") != "" {
		c.DebugDump = true
	}
	return c
}

// CompiledFunction pairs one compiled function with the export name it was
// reachable under, if any.
type CompiledFunction struct {
	*bytecode.Function
	ExportName string
}

// Module is the compiled result of one WebAssembly binary module: every
// function body the code section carried, fully emitted and frame-packed,
// plus the type table needed to interpret call targets.
type Module struct {
	Types     []decoder.FuncType
	Functions []*CompiledFunction

	// Errors holds one entry per function body that failed to compile.
	// When the module has more than one function body, a per-function
	// failure does not abort Compile: the function is simply absent from
	// Functions, and compilation continues (spec §4.6 treats each function
	// body as independently compilable). When the module has exactly one
	// body, its failure is recorded here and also returned as Compile's error.
	Errors []*wasmerr.Error

	// Dump is the concatenated Dump() text of every compiled function,
	// populated only when Config.DebugDump is set.
	Dump string
}

// Compile decodes data's structural sections and compiles every function
// body it contains (spec §4.6, §6). A malformed module (bad magic/version,
// section-ordering violation, truncated section) aborts outright. A problem
// compiling one function body is recorded in Module.Errors and does not
// prevent the rest of the module from compiling; the exception is a module
// with a single function body, whose failure Compile also returns as its
// error.
func Compile(data []byte, cfg Config) (*Module, error) {
	cfg = cfg.resolved()
	log := wlog.Logger()

	var types []decoder.FuncType
	var funcTypeIdx []uint32
	var globalKinds []valtype.Kind
	exportNames := map[uint32]string{}
	var bodies []decoder.FunctionBody

	growFuncTypeIdx := func(idx uint32) {
		for uint32(len(funcTypeIdx)) <= idx {
			funcTypeIdx = append(funcTypeIdx, 0)
		}
	}
	growGlobalKinds := func(idx uint32) {
		for uint32(len(globalKinds)) <= idx {
			globalKinds = append(globalKinds, valtype.Void)
		}
	}

	var nextImportedFuncIdx uint32
	var nextImportedGlobalIdx uint32

	cb := decoder.Callbacks{
		OnTypes: func(t []decoder.FuncType) { types = t },
		OnImport: func(imp decoder.Import) {
			switch imp.Kind {
			case 0: // func: Index is the type index
				growFuncTypeIdx(nextImportedFuncIdx)
				funcTypeIdx[nextImportedFuncIdx] = imp.Index
				nextImportedFuncIdx++
			case 3: // global: Index is the value-type byte
				k, _ := valtype.FromByte(byte(imp.Index))
				growGlobalKinds(nextImportedGlobalIdx)
				globalKinds[nextImportedGlobalIdx] = k
				nextImportedGlobalIdx++
			}
		},
		OnFunction: func(funcIdx, typeIdx uint32) {
			growFuncTypeIdx(funcIdx)
			funcTypeIdx[funcIdx] = typeIdx
		},
		OnGlobal: func(idx uint32, g decoder.Global) {
			k, _ := valtype.FromByte(g.Type)
			growGlobalKinds(idx)
			globalKinds[idx] = k
		},
		OnExport: func(e decoder.ExportEntry) {
			if e.Kind == 0 {
				exportNames[e.Idx] = e.Name
			}
		},
		OnFunctionBody: func(b decoder.FunctionBody) {
			bodies = append(bodies, b)
		},
	}

	if err := decoder.Decode(data, cb); err != nil {
		return nil, decodeError(err)
	}

	mod := &emitter.ModuleInfo{
		FuncTypeIdx:        funcTypeIdx,
		Types:              types,
		GlobalKinds:        globalKinds,
		PointerWidth:       cfg.PointerWidth,
		MaxPooledConstants: cfg.MaxPooledConstants,
	}

	out := &Module{Types: types}
	multipleFuncs := len(bodies) > 1

	for _, body := range bodies {
		name := exportNames[body.FuncIdx]

		fn, err := emitter.Compile(body, name, mod, cfg.PointerWidth)
		if err != nil {
			werr, ok := err.(*wasmerr.Error)
			if !ok {
				werr = wasmerr.New(wasmerr.PhaseEmit, wasmerr.KindMalformed).
					Detailf("%v", err).Cause(err).Build()
			}
			werr.FuncIdx = body.FuncIdx
			werr.FuncName = name
			out.Errors = append(out.Errors, werr)
			if multipleFuncs {
				log.Warn("function failed to compile, skipping",
					zap.Uint32("func_idx", body.FuncIdx), zap.String("name", name), zap.Error(werr))
				continue
			}
			return out, werr
		}

		alloc.Allocate(fn)

		out.Functions = append(out.Functions, &CompiledFunction{Function: fn, ExportName: name})
	}

	if cfg.DebugDump {
		var b []byte
		for _, f := range out.Functions {
			b = append(b, f.Dump()...)
		}
		out.Dump = string(b)
	}

	return out, nil
}
