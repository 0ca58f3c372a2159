// Package hal implements the processor-state hardware-abstraction layer
// that compiled 6502 code calls into: registers, flags, stack, memory
// bus access, interrupt polling, and the debug hook.
//
// Grounded on cpu/cpu.go's register/flag fields, status-byte packing
// constants, and PowerOn randomization idiom. The teacher's per-tick
// state machine (Chip.Tick) is not reused: compiled IR calls HAL methods
// directly rather than stepping a micro-tick sequencer.
package hal

import (
	"math/rand"
	"time"

	"sixjit/bus"
	"sixjit/sixerr"
)

// InterruptSource is a level-held hardware interrupt line (NMI or IRQ):
// whatever drives a VBlank pulse, a peripheral's ready flag, or a test
// harness's scripted interrupt can satisfy it without coupling to HAL
// internals. Edge-vs-level distinctions are left to the implementer;
// PollForInterrupt only ever asks whether the line is presently held
// high.
type InterruptSource interface {
	// Raised reports whether the interrupt line is currently held high.
	Raised() bool
}

// Variant distinguishes the 6502 family member being emulated. Carried
// over from cpu.go's CPUType enum; kept because decimal-mode handling is
// documented as variant-sensitive (spec.md §9).
type Variant int

const (
	VariantUnknown Variant = iota
	VariantNMOS
	VariantRicoh // NES 2A03/2A07: NMOS minus BCD.
	VariantCMOS
)

// Vector addresses for the three entry points the disassembler and
// dispatcher walk from. Reused from cpu.go's NMI_VECTOR/RESET_VECTOR/IRQ_VECTOR.
const (
	NMIVector   = uint16(0xFFFA)
	ResetVector = uint16(0xFFFC)
	IRQVector   = uint16(0xFFFE)
)

// Status byte bit assignments, reused from cpu.go's P_* constants.
const (
	FlagNegative  = uint8(0x80)
	FlagOverflow  = uint8(0x40)
	flagUnused    = uint8(0x20) // Always reads 1 when materialized.
	FlagB         = uint8(0x10) // Only set by BRK/PHP push semantics.
	FlagDecimal   = uint8(0x08)
	FlagInterrupt = uint8(0x04)
	FlagZero      = uint8(0x02)
	FlagCarry     = uint8(0x01)
)

const stackPage = uint16(0x0100)

// State holds the full 6502 register file plus the bus, interrupt
// sources, and bookkeeping the compiled code and dispatcher consult.
type State struct {
	A, X, Y uint8
	SP      uint8

	Carry            bool
	Zero             bool
	InterruptDisable bool
	Decimal          bool
	BFlag            bool
	Overflow         bool
	Negative         bool

	PC uint16

	Variant Variant
	Bus     *bus.Bus

	IRQ InterruptSource
	NMI InterruptSource

	recompilePending bool
	debugSink        func(string)
	swiHandler       func(*State) error
}

// New creates a HAL bound to bus b. Call PowerOn before first use.
func New(b *bus.Bus, variant Variant) *State {
	return &State{Bus: b, Variant: variant}
}

// SetDebugSink installs the function StoreDebugString/DebugHook forwards
// to. A nil sink makes DebugHook a no-op, per spec.md §4.B.
func (s *State) SetDebugSink(fn func(string)) {
	s.debugSink = fn
}

// SetSoftwareInterruptHandler installs the host-defined BRK/software
// interrupt behavior invoked by InvokeSoftwareInterrupt.
func (s *State) SetSoftwareInterruptHandler(fn func(*State) error) {
	s.swiHandler = fn
}

// PowerOn randomizes registers and flags, matching cpu.go PowerOn's
// rand.Seed(time.Now().UnixNano()) idiom, then loads PC from the reset
// vector.
func (s *State) PowerOn() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	s.A = uint8(rng.Intn(256))
	s.X = uint8(rng.Intn(256))
	s.Y = uint8(rng.Intn(256))
	s.SP = 0xFF
	s.Carry = rng.Intn(2) == 1
	s.Zero = rng.Intn(2) == 1
	s.Overflow = rng.Intn(2) == 1
	s.Negative = rng.Intn(2) == 1
	s.InterruptDisable = true
	s.BFlag = false
	if s.Variant == VariantNMOS {
		s.Decimal = rng.Intn(2) == 1
	} else {
		s.Decimal = false
	}
	if s.Bus != nil {
		s.PC = s.Bus.Read16(ResetVector)
	}
}

// Status materializes the seven flags plus the always-1 unused bit into
// a single byte, packed N V U B D I Z C from bit 7 to bit 0 (spec.md §3).
func (s *State) Status() uint8 {
	var b uint8
	if s.Negative {
		b |= FlagNegative
	}
	if s.Overflow {
		b |= FlagOverflow
	}
	b |= flagUnused
	if s.BFlag {
		b |= FlagB
	}
	if s.Decimal {
		b |= FlagDecimal
	}
	if s.InterruptDisable {
		b |= FlagInterrupt
	}
	if s.Zero {
		b |= FlagZero
	}
	if s.Carry {
		b |= FlagCarry
	}
	return b
}

// SetStatus unpacks a status byte into the seven flags. The unused bit
// is ignored on set (it always reads 1 regardless of what's stored).
func (s *State) SetStatus(b uint8) {
	s.Negative = b&FlagNegative != 0
	s.Overflow = b&FlagOverflow != 0
	s.BFlag = b&FlagB != 0
	s.Decimal = b&FlagDecimal != 0
	s.InterruptDisable = b&FlagInterrupt != 0
	s.Zero = b&FlagZero != 0
	s.Carry = b&FlagCarry != 0
}

// SetZN sets the Zero and Negative flags from the 8-bit result v, the
// pattern nearly every lowering rule applies to its destination.
func (s *State) SetZN(v uint8) {
	s.Zero = v == 0
	s.Negative = v&0x80 != 0
}

// ReadMemory and WriteMemory proxy the bus. WriteMemory is the single
// point where self-modification gets observed by the cache (via the
// bus's write observer installed at system init), so the HAL does not
// duplicate that notification itself.
func (s *State) ReadMemory(addr uint16) uint8 { return s.Bus.Read(addr) }

func (s *State) WriteMemory(addr uint16, val uint8) { s.Bus.Write(addr, val) }

// Push writes val to the stack page at 0x0100|SP and decrements SP.
// Decrementing past 0x00 is a stack overflow.
func (s *State) Push(val uint8) error {
	if s.SP == 0x00 {
		return sixerr.StackOverflow{}
	}
	s.Bus.Write(stackPage|uint16(s.SP), val)
	s.SP--
	return nil
}

// Pop increments SP then reads the stack page. Wrapping from 0xFF to
// 0x00 (i.e. SP was already 0xFF) is a stack underflow.
func (s *State) Pop() (uint8, error) {
	if s.SP == 0xFF {
		return 0, sixerr.StackUnderflow{}
	}
	s.SP++
	return s.Bus.Read(stackPage | uint16(s.SP)), nil
}

// PollForInterrupt returns the vector to dispatch to if NMI or IRQ is
// currently raised (NMI takes priority), or ok=false if neither is.
// InterruptDisable masks IRQ but never NMI, matching 6502 semantics.
func (s *State) PollForInterrupt() (addr uint16, ok bool) {
	if s.NMI != nil && s.NMI.Raised() {
		return NMIVector, true
	}
	if !s.InterruptDisable && s.IRQ != nil && s.IRQ.Raised() {
		return IRQVector, true
	}
	return 0, false
}

// TriggerSoftwareInterrupt invokes the host-defined BRK handler, if any.
func (s *State) TriggerSoftwareInterrupt() error {
	if s.swiHandler != nil {
		return s.swiHandler(s)
	}
	return nil
}

// DebugHook forwards text to the installed debug sink, or no-ops.
func (s *State) DebugHook(text string) {
	if s.debugSink != nil {
		s.debugSink(text)
	}
}

// MarkRecompilePending is set when a write lands inside the currently
// executing function's instruction footprint (spec.md §4.H/§9).
func (s *State) MarkRecompilePending() {
	s.recompilePending = true
}

// PollForRecompilation returns and clears the recompile-pending flag.
func (s *State) PollForRecompilation() bool {
	v := s.recompilePending
	s.recompilePending = false
	return v
}
