// Package machine wires the bus, HAL, disassembler, partitioner, and
// JIT dispatcher into the single constructor external callers use
// (spec.md §6's external interface). There is no teacher equivalent —
// jmchacon/6502's callers build a cpu.Processor directly — so this
// follows the corpus's top-level driver shape instead (vcs/vcs_main.go's
// "attach devices, then construct the chip" sequence), minus the
// SDL/video loop which is out of scope here.
package machine

import (
	"context"

	"sixjit/bus"
	"sixjit/codegen"
	"sixjit/disasm"
	"sixjit/hal"
	"sixjit/jit"
	"sixjit/partition"
)

// Machine is a fully wired decompile-and-JIT 6502 core over a caller-
// populated bus.
type Machine struct {
	Bus        *bus.Bus
	HAL        *hal.State
	Functions  *partition.FunctionSet
	Dispatcher *jit.Dispatcher
}

// New powers on b, disassembles from its reset/NMI/IRQ vectors,
// partitions the result into functions, and wires a dispatcher with its
// write observer attached to b. Call devices must already be attached to
// b. cacheCapacity <= 0 uses jit.DefaultCapacity. customizer may be nil.
func New(b *bus.Bus, variant hal.Variant, cacheCapacity int, customizer codegen.Customizer) (*Machine, error) {
	b.PowerOn()
	h := hal.New(b, variant)
	h.PowerOn()

	entries := []uint16{h.PC}
	if nmi := b.Read16(hal.NMIVector); nmi != h.PC {
		entries = append(entries, nmi)
	}
	if irqv := b.Read16(hal.IRQVector); irqv != h.PC {
		entries = append(entries, irqv)
	}

	prog, err := disasm.Walk(b, entries)
	if err != nil {
		return nil, err
	}
	fs := partition.Partition(prog)
	d := jit.NewDispatcher(b, fs, cacheCapacity, customizer)

	return &Machine{Bus: b, HAL: h, Functions: fs, Dispatcher: d}, nil
}

// Run executes the 6502 subroutine at address to completion (spec.md
// §6's dispatcher.run_method).
func (m *Machine) Run(ctx context.Context, address uint16) error {
	return m.Dispatcher.RunMethod(ctx, address, false, m.HAL)
}
