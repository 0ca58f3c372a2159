// Package bus implements the 16-bit memory bus that multiplexes CPU
// reads and writes across attached devices (RAM, ROM, memory-mapped
// registers). It is the single entry point compiled 6502 code uses to
// touch memory.
//
// Grounded on memory/memory.go's Bank interface and ram implementation;
// generalized from a single parent-chained Bank into a multi-device
// address-space map, per spec.md §4.A.
package bus

import (
	"math/rand"
	"time"

	"sixjit/sixerr"
)

// Device is attached to a Bus at a fixed origin and size. Addresses
// passed to Read/Write are already relative to the device's origin.
type Device interface {
	// Read returns the data byte stored at the device-relative address.
	Read(addr uint16) uint8
	// Write updates the device-relative address with val. Implementations
	// backing read-only memory may treat this as a no-op; the Bus itself
	// also enforces read-only attachments so most Device implementations
	// need not.
	Write(addr uint16, val uint8)
	// PowerOn resets the device to its power-on state.
	PowerOn()
}

type attachment struct {
	dev      Device
	origin   uint16
	size     int
	readOnly bool
}

func (a attachment) covers(addr uint16) bool {
	return addr >= a.origin && int(addr)-int(a.origin) < a.size
}

// Bus is a 64 KiB address space populated by zero or more attached
// devices. Every address in [0, 0xFFFF] resolves deterministically: at
// most one device may ever claim a given address.
type Bus struct {
	attachments []attachment
	observer    func(addr uint16)
	lastWrite   uint8
}

// New returns an empty, unattached Bus.
func New() *Bus {
	return &Bus{}
}

// Attach maps dev into the address space starting at origin for size
// bytes. Overlapping an existing attachment is a configuration error.
func (b *Bus) Attach(dev Device, origin uint16, size int, readOnly bool) error {
	if size <= 0 || int(origin)+size > 1<<16 {
		return sixerr.ConfigurationError{Reason: "device does not fit in 64k address space"}
	}
	na := attachment{dev: dev, origin: origin, size: size, readOnly: readOnly}
	for _, a := range b.attachments {
		lo, hi := int(a.origin), int(a.origin)+a.size-1
		nlo, nhi := int(origin), int(origin)+size-1
		if nlo <= hi && lo <= nhi {
			return sixerr.ConfigurationError{Reason: "overlapping device attachment"}
		}
	}
	b.attachments = append(b.attachments, na)
	return nil
}

// SetObserver installs the single callback fired on every write,
// regardless of which device accepted (or dropped) it. Installed once
// at system init per spec.md §4.J.
func (b *Bus) SetObserver(fn func(addr uint16)) {
	b.observer = fn
}

func (b *Bus) find(addr uint16) *attachment {
	for i := range b.attachments {
		if b.attachments[i].covers(addr) {
			return &b.attachments[i]
		}
	}
	return nil
}

// Read returns the byte at addr. Unmapped addresses read as 0, matching
// observed hardware behavior (spec.md §7).
func (b *Bus) Read(addr uint16) uint8 {
	a := b.find(addr)
	if a == nil {
		return 0
	}
	return a.dev.Read(addr - a.origin)
}

// Write stores val at addr, dropping it silently if the owning device is
// read-only or the address is unmapped, then fires the write observer
// unconditionally (observation happens even for dropped writes, since
// self-modification detection must see every attempted write to code
// space).
func (b *Bus) Write(addr uint16, val uint8) {
	a := b.find(addr)
	if a != nil && !a.readOnly {
		a.dev.Write(addr-a.origin, val)
	}
	b.lastWrite = val
	if b.observer != nil {
		b.observer(addr)
	}
}

// Read16 reads a little-endian 16-bit value (low byte at addr, high byte
// at addr+1), used for indirect jump/call target resolution.
func (b *Bus) Read16(addr uint16) uint16 {
	lo := uint16(b.Read(addr))
	hi := uint16(b.Read(addr + 1))
	return lo | hi<<8
}

// LastWrite returns the most recent value observed crossing the bus on a
// write, mirroring memory.Bank's databus-state query (memory.go's
// DatabusVal/Parent chain) but as a single top-level Bus concept instead
// of a parent-walk.
func (b *Bus) LastWrite() uint8 {
	return b.lastWrite
}

// PowerOn resets every attached device to its power-on state.
func (b *Bus) PowerOn() {
	for _, a := range b.attachments {
		a.dev.PowerOn()
	}
}

// RAMDevice is a flat read/write byte array, the Bus realization of
// memory.go's ram struct (New8BitRAMBank).
type RAMDevice struct {
	mem []uint8
}

// NewRAM allocates a RAM device of the given size.
func NewRAM(size int) *RAMDevice {
	return &RAMDevice{mem: make([]uint8, size)}
}

func (r *RAMDevice) Read(addr uint16) uint8 {
	if int(addr) >= len(r.mem) {
		return 0
	}
	return r.mem[addr]
}

func (r *RAMDevice) Write(addr uint16, val uint8) {
	if int(addr) >= len(r.mem) {
		return
	}
	r.mem[addr] = val
}

// PowerOn randomizes RAM contents, matching memory.go's ram.PowerOn.
func (r *RAMDevice) PowerOn() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := range r.mem {
		r.mem[i] = uint8(rng.Intn(256))
	}
}

// ROMDevice is a fixed, read-only byte array (the ROM image under test).
// The Bus's readOnly attachment flag is the enforcement point, but
// ROMDevice also ignores Write defensively since it may be attached
// without that flag by a careless caller.
type ROMDevice struct {
	mem []uint8
}

// NewROM wraps data as a read-only device. data is not copied.
func NewROM(data []byte) *ROMDevice {
	return &ROMDevice{mem: data}
}

func (r *ROMDevice) Read(addr uint16) uint8 {
	if int(addr) >= len(r.mem) {
		return 0
	}
	return r.mem[addr]
}

func (r *ROMDevice) Write(addr uint16, val uint8) {}

func (r *ROMDevice) PowerOn() {}
