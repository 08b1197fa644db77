package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasmc/wasmc"
)

// verifyAgainstWazero cross-checks the façade's own decoded module shape
// against wazero's independent parse of the same bytes, grounded on
// linker/instance_pre_test.go's wazero.NewRuntime/CompileModule usage. It is
// a sanity check, not a correctness proof: agreement on function counts and
// on each exported function's param/result arity catches decoder
// section-parsing regressions without needing a
// second full WebAssembly implementation to compare bytecode against.
func verifyAgainstWazero(ctx context.Context, data []byte, mod *wasmc.Module) (string, error) {
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return "", fmt.Errorf("wazero: compile module: %w", err)
	}

	wantFuncs := len(compiled.ImportedFunctions()) + len(compiled.ExportedFunctions())
	gotFuncs := len(mod.Functions) + len(mod.Errors)

	var b strings.Builder
	fmt.Fprintf(&b, "verify: wazero exported+imported funcs=%d, wasmc compiled+failed funcs=%d\n",
		wantFuncs, gotFuncs)

	for name, def := range compiled.ExportedFunctions() {
		found := false
		for _, fn := range mod.Functions {
			if fn.ExportName == name {
				found = true
				if len(fn.ParamKinds) != len(def.ParamTypes()) {
					fmt.Fprintf(&b, "  mismatch: %q param count wazero=%d wasmc=%d\n",
						name, len(def.ParamTypes()), len(fn.ParamKinds))
				}
				if len(fn.ResultKinds) != len(def.ResultTypes()) {
					fmt.Fprintf(&b, "  mismatch: %q result count wazero=%d wasmc=%d\n",
						name, len(def.ResultTypes()), len(fn.ResultKinds))
				}
				break
			}
		}
		if !found {
			fmt.Fprintf(&b, "  missing: %q exported by wazero but absent from wasmc's compiled set\n", name)
		}
	}

	return b.String(), nil
}
