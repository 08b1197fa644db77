// Package wasmc compiles a WebAssembly binary module into the internal
// register-based bytecode used throughout this repository: one forward
// decode of the module's structural sections, one two-pass emission per
// function body (internal/emitter), and one liveness-driven frame-packing
// pass per function (internal/alloc). Compile is the single entry point;
// its shape is grounded on asyncify.Config/engine.Config's "struct in,
// struct or error out" façade.
package wasmc
