// Package codegen lowers IR to an executable host artifact: a
// "compiled method". Go has no portable in-process native-code-emission
// facility in the standard library, so "executable host code" here means
// a threaded sequence of Go closures with jump targets pre-resolved to
// slice indices during a label-collection pass — the idiomatic Go
// realization of spec.md §4.G's two-pass code generator, in the same
// spirit as the corpus's bytecode-to-dispatch compilers (e.g.
// KTStephano-GVM's opcode switch, beevik-go6502's instruction table).
package codegen

import (
	"context"

	"sixjit/hal"
	"sixjit/ir"
	"sixjit/lower"
	"sixjit/sixerr"
)

// Dispatcher is the narrow surface compiled code needs from the JIT
// dispatcher to perform nested calls (JSR / indirect JMP). Defined here
// rather than importing package jit to avoid a codegen<->jit import
// cycle (jit.Dispatcher implements this interface and passes itself to
// CompiledMethod.Run, per spec.md §9's "avoid mutual ownership by
// passing the dispatcher as a parameter" note).
type Dispatcher interface {
	RunMethod(ctx context.Context, addr uint16, indirect bool, h *hal.State) error
}

// Op is one executable step of a compiled method. It returns the index
// of the next Op to run, or -1 to signal the method has returned.
type Op func(ctx context.Context, d Dispatcher, h *hal.State, scratch []int64) (next int, err error)

// CompiledMethod is the host-callable artifact the code generator
// produces for one subroutine (spec.md §3's Compiled Method Entry
// value).
type CompiledMethod struct {
	ops         []Op
	scratchSize int
}

// Run executes the compiled method. ctx is polled at each step for
// cancellation (spec.md §5's single permitted suspension point).
func (m *CompiledMethod) Run(ctx context.Context, d Dispatcher, h *hal.State) error {
	scratch := make([]int64, m.scratchSize)
	pc := 0
	for pc >= 0 {
		if err := ctx.Err(); err != nil {
			return sixerr.Cancelled{}
		}
		if pc >= len(m.ops) {
			return nil
		}
		next, err := m.ops[pc](ctx, d, h, scratch)
		if err != nil {
			return err
		}
		pc = next
	}
	return nil
}

// Emitter produces an Op for one IR instruction. labels maps label name
// to its resolved slice index, and index is this instruction's own
// position in the flattened op slice (most emitters just return
// index+1 as "next" on the non-branching path).
type Emitter func(inst ir.Instruction, index int, labels map[string]int) (Op, error)

// Customizer is the code generator's view of the customization hook
// (spec.md §4.I): it may rewrite the converted-instruction list before
// flattening, and may supply emitters that override built-in emission
// for specific IR kinds.
type Customizer interface {
	Mutate(converted []lower.Converted) ([]lower.Converted, error)
	Emitters() map[ir.Kind]Emitter
}

// Generate runs the two-pass code generator described in spec.md §4.G
// over a function's converted instruction list, producing a
// CompiledMethod, with no customizer.
func Generate(converted []lower.Converted) (*CompiledMethod, error) {
	return GenerateWithCustomizer(converted, nil)
}

// GenerateWithCustomizer is Generate with an explicit customizer, which
// may be nil.
func GenerateWithCustomizer(converted []lower.Converted, customizer Customizer) (*CompiledMethod, error) {
	if customizer != nil {
		mutated, err := customizer.Mutate(converted)
		if err != nil {
			return nil, err
		}
		if len(mutated) != len(converted) {
			return nil, sixerr.ConfigurationError{Reason: "customizer changed instruction count"}
		}
		converted = mutated
	}

	// Flatten and collect labels (pass 1).
	var flat []ir.Instruction
	labels := map[string]int{}
	maxVar := -1
	for _, c := range converted {
		for _, item := range c.IR {
			if item.Kind == ir.KindLabel {
				labels[item.Label] = len(flat)
			}
			trackMaxVar(&maxVar, item)
			flat = append(flat, item)
		}
	}

	var emitters map[ir.Kind]Emitter
	if customizer != nil {
		emitters = customizer.Emitters()
	}

	// Emission (pass 2).
	ops := make([]Op, len(flat))
	for i, item := range flat {
		if em, ok := emitters[item.Kind]; ok {
			op, err := em(item, i, labels)
			if err != nil {
				return nil, err
			}
			ops[i] = op
			continue
		}
		op, err := buildinEmit(item, i, labels)
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}

	const fixedSlack = 4
	scratchSize := maxVar + 1 + fixedSlack
	if scratchSize < fixedSlack {
		scratchSize = fixedSlack
	}

	return &CompiledMethod{ops: ops, scratchSize: scratchSize}, nil
}

func trackMaxVar(maxVar *int, inst ir.Instruction) {
	consider := func(v ir.Value) {
		if v.Kind == ir.ValVariable && int(v.Variable) > *maxVar {
			*maxVar = int(v.Variable)
		}
	}
	consider(inst.Src)
	consider(inst.Left)
	consider(inst.Right)
	consider(inst.Dst)
	consider(inst.Cond)
	if inst.Kind == ir.KindConvertVariableToByte && int(inst.Variable) > *maxVar {
		*maxVar = int(inst.Variable)
	}
}
