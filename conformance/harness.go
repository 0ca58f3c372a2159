// Package conformance end-to-end exercises the decompile-and-JIT
// pipeline against the scenarios and properties a complete
// implementation must satisfy, the way functionality_test.go drives
// cpu.Processor against golden traces — but here against the machine
// package's compiled, not interpreted, execution path.
package conformance

import (
	"context"

	"sixjit/bus"
	"sixjit/hal"
	"sixjit/machine"
)

const (
	romOrigin = uint16(0x8000)
	romSize   = 0x8000
)

// newROMImage returns a zero-filled ROM-region byte slice with the
// reset/NMI/IRQ vectors all pointed at resetAt, ready for a caller to
// poke code into via its romOffset helper.
func newROMImage(resetAt uint16) []uint8 {
	data := make([]uint8, romSize)
	setVector := func(vector uint16) {
		data[vector-romOrigin] = uint8(resetAt)
		data[vector-romOrigin+1] = uint8(resetAt >> 8)
	}
	setVector(hal.ResetVector)
	setVector(hal.NMIVector)
	setVector(hal.IRQVector)
	return data
}

// newMachine builds a Machine over a low 32KiB RAM region (zero page,
// stack, general RAM) and a high 32KiB ROM region carrying romData,
// attached read-only — the minimal harness the scenarios in spec.md §8
// need, since code must live in a region RAM's PowerOn randomization
// cannot disturb.
func newMachine(romData []uint8) (*machine.Machine, error) {
	b := bus.New()
	ram := bus.NewRAM(romOrigin)
	if err := b.Attach(ram, 0, romOrigin, false); err != nil {
		return nil, err
	}
	rom := bus.NewROM(romData)
	if err := b.Attach(rom, romOrigin, romSize, true); err != nil {
		return nil, err
	}
	return machine.New(b, hal.VariantNMOS, 0, nil)
}

// newProgramMachine is newMachine for the common case of a single
// instruction stream starting at codeAt.
func newProgramMachine(codeAt uint16, code []uint8) (*machine.Machine, error) {
	data := newROMImage(codeAt)
	copy(data[codeAt-romOrigin:], code)
	return newMachine(data)
}

func run(m *machine.Machine, addr uint16) error {
	return m.Dispatcher.RunMethod(context.Background(), addr, false, m.HAL)
}
