package emitter

import (
	"github.com/wippyai/wasmc/internal/decoder"
)

// Handler transforms one decoded instruction within ctx, grounded on
// asyncify/internal/handler/registry.go's Handler interface.
type Handler interface {
	Handle(ctx *Context, instr decoder.Instr) error
}

// Func adapts an ordinary function to the Handler interface.
type Func func(ctx *Context, instr decoder.Instr) error

// Handle implements Handler.
func (f Func) Handle(ctx *Context, instr decoder.Instr) error {
	return f(ctx, instr)
}

// Registry maps opcodes to their handlers with O(1) lookup, mirroring
// asyncify/internal/handler/registry.go's Registry.
type Registry struct {
	handlers [256]Handler
	names    [256]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler for a single opcode, replacing any prior one.
func (r *Registry) Register(opcode byte, h Handler, name string) {
	r.handlers[opcode] = h
	r.names[opcode] = name
}

// RegisterFunc registers a plain function as a handler.
func (r *Registry) RegisterFunc(opcode byte, fn func(*Context, decoder.Instr) error, name string) {
	r.Register(opcode, Func(fn), name)
}

// RegisterBulk registers the same handler for every opcode in opcodes.
func (r *Registry) RegisterBulk(opcodes []byte, h Handler, name string) {
	for _, op := range opcodes {
		r.handlers[op] = h
		r.names[op] = name
	}
}

// Get returns the handler for opcode, or nil if unregistered.
func (r *Registry) Get(opcode byte) Handler {
	return r.handlers[opcode]
}

// Name returns the debug name registered for opcode.
func (r *Registry) Name(opcode byte) string {
	return r.names[opcode]
}

// DefaultRegistry builds the registry used by both the preprocess and real
// emission passes, one Register*Handlers call per opcode family, mirroring
// asyncify's engine.DefaultRegistry().
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterControlHandlers(r)
	RegisterVariableHandlers(r)
	RegisterConstantHandlers(r)
	RegisterCallHandlers(r)
	RegisterMiscHandlers(r)
	RegisterNumericHandlers(r)
	return r
}
