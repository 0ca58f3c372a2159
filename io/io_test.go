package io

import "testing"

type fixedPort uint8

func (f fixedPort) Input() uint8 { return uint8(f) }

func TestPortDeviceRead(t *testing.T) {
	d := NewPortDevice(fixedPort(0x5A))
	if got, want := d.Read(0), uint8(0x5A); got != want {
		t.Errorf("Read() = 0x%02X, want 0x%02X", got, want)
	}
}

func TestPortDeviceWriteIsNoOp(t *testing.T) {
	d := NewPortDevice(fixedPort(0x01))
	d.Write(0, 0xFF)
	if got, want := d.Read(0), uint8(0x01); got != want {
		t.Errorf("Write() changed the read-only port: got 0x%02X, want 0x%02X", got, want)
	}
}
