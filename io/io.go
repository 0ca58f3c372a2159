// Package io adapts an external controller-input source into a
// bus.Device — the thin external-collaborator facade spec.md §6 calls
// out as required alongside the core ("hal.set_controller_state(port,
// buttons) and similar thin device facades") without being part of it.
//
// Grounded on io/io.go's Port8 interface (an 8-bit I/O port polled once
// per clock tick by its owner); kept as the same narrow read-only
// contract, now wired to the bus instead of a pia6532-specific latch.
package io

import "sixjit/bus"

// Port8 is an 8-bit input source — a joystick, paddle, or switch bank —
// that a PortDevice exposes to the bus.
type Port8 interface {
	// Input returns the current value presented on the port.
	Input() uint8
}

// PortDevice maps a Port8 source onto a single bus address. Writes are
// ignored: controller state is set by the external collaborator through
// the Port8 implementation, not by compiled 6502 code.
type PortDevice struct {
	port Port8
}

// NewPortDevice wraps port as a one-byte, read-only bus.Device.
func NewPortDevice(port Port8) *PortDevice {
	return &PortDevice{port: port}
}

func (p *PortDevice) Read(addr uint16) uint8 { return p.port.Input() }

func (p *PortDevice) Write(addr uint16, val uint8) {}

func (p *PortDevice) PowerOn() {}

var _ bus.Device = (*PortDevice)(nil)
