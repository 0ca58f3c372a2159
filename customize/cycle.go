// Package customize provides reference codegen.Customizer
// implementations demonstrating the host extension hook (spec.md §4.I):
// a customizer may inject IR around every lowered 6502 instruction
// without disturbing branch-target bookkeeping, and may override
// built-in emission for specific IR kinds.
//
// Grounded on vcs/vcs.go's per-tick interrupt-poll loop — here the poll
// moves from "once per clock tick" to "once per lowered 6502
// instruction", since compiled code has no tick loop of its own.
package customize

import (
	"context"

	"sixjit/codegen"
	"sixjit/hal"
	"sixjit/ir"
	"sixjit/lower"
)

// CycleCustomizer counts lowered 6502 instructions executed and,
// optionally, polls for a pending hardware interrupt at each
// instruction boundary the way a cycle-stepped interpreter would
// between ticks.
type CycleCustomizer struct {
	PollInterrupts bool

	cycles uint64
}

// NewCycleCustomizer builds a CycleCustomizer. When pollInterrupts is
// true, a pending NMI/IRQ is serviced (by calling through to its vector)
// before the next lowered instruction runs.
func NewCycleCustomizer(pollInterrupts bool) *CycleCustomizer {
	return &CycleCustomizer{PollInterrupts: pollInterrupts}
}

// TotalCycles reports the number of lowered 6502 instructions that have
// executed through this customizer so far.
func (c *CycleCustomizer) TotalCycles() uint64 { return c.cycles }

// Mutate prepends a StoreDebugString marker carrying the source
// mnemonic to every instruction's IR. Per-item IR length may change
// freely; only the outer per-instruction count must not (spec.md §4.I).
// A leading ir.Label, if present, must stay IR[0] — it's how a
// branch/jump target resolves to this instruction's first op, and
// pushing it behind the marker would make every branch into this
// instruction land one op early.
func (c *CycleCustomizer) Mutate(converted []lower.Converted) ([]lower.Converted, error) {
	out := make([]lower.Converted, len(converted))
	for i, item := range converted {
		withMarker := make([]ir.Instruction, 0, len(item.IR)+1)
		rest := item.IR
		if len(rest) > 0 && rest[0].Kind == ir.KindLabel {
			withMarker = append(withMarker, rest[0])
			rest = rest[1:]
		}
		withMarker = append(withMarker, ir.StoreDebugString(item.Source.Mnemonic))
		withMarker = append(withMarker, rest...)
		out[i] = lower.Converted{Source: item.Source, IR: withMarker}
	}
	return out, nil
}

// Emitters overrides StoreDebugString emission to also count the
// instruction boundary and, if enabled, service a pending interrupt.
func (c *CycleCustomizer) Emitters() map[ir.Kind]codegen.Emitter {
	return map[ir.Kind]codegen.Emitter{
		ir.KindStoreDebugString: c.emitBoundary,
	}
}

func (c *CycleCustomizer) emitBoundary(inst ir.Instruction, index int, labels map[string]int) (codegen.Op, error) {
	next := index + 1
	mnemonic := inst.Text
	poll := c.PollInterrupts
	return func(ctx context.Context, d codegen.Dispatcher, h *hal.State, scratch []int64) (int, error) {
		c.cycles++
		h.DebugHook(mnemonic)
		if poll {
			if vector, ok := h.PollForInterrupt(); ok {
				target := h.Bus.Read16(vector)
				if err := d.RunMethod(ctx, target, true, h); err != nil {
					return 0, err
				}
			}
		}
		return next, nil
	}, nil
}
