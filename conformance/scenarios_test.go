package conformance

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/require"

	"sixjit/bus"
	"sixjit/codegen"
	"sixjit/hal"
	"sixjit/ir"
	"sixjit/jit"
	"sixjit/lower"
	"sixjit/partition"
)

// TestS1LDAImmediate is spec.md §8 S1.
func TestS1LDAImmediate(t *testing.T) {
	m, err := newProgramMachine(0x8000, []uint8{0xA9, 0x80})
	require.NoError(t, err)
	m.HAL.A = 0x00

	require.NoError(t, run(m, 0x8000))

	require.Equal(t, uint8(0x80), m.HAL.A)
	require.False(t, m.HAL.Zero)
	require.True(t, m.HAL.Negative)
}

// TestS2ADCOverflow is spec.md §8 S2.
func TestS2ADCOverflow(t *testing.T) {
	m, err := newProgramMachine(0x8000, []uint8{0x69, 0x50})
	require.NoError(t, err)
	m.HAL.A = 0x50
	m.HAL.Carry = false

	require.NoError(t, run(m, 0x8000))

	require.Equal(t, uint8(0xA0), m.HAL.A)
	require.False(t, m.HAL.Carry)
	require.True(t, m.HAL.Overflow)
	require.True(t, m.HAL.Negative)
	require.False(t, m.HAL.Zero)
}

// TestS3SBCBorrow is spec.md §8 S3.
func TestS3SBCBorrow(t *testing.T) {
	m, err := newProgramMachine(0x8000, []uint8{0xE9, 0x70})
	require.NoError(t, err)
	m.HAL.A = 0x50
	m.HAL.Carry = true

	require.NoError(t, run(m, 0x8000))

	require.Equal(t, uint8(0xE0), m.HAL.A)
	require.False(t, m.HAL.Carry)
	require.False(t, m.HAL.Overflow)
	require.True(t, m.HAL.Negative)
	require.False(t, m.HAL.Zero)
}

// TestS4ASLMemory is spec.md §8 S4.
func TestS4ASLMemory(t *testing.T) {
	m, err := newProgramMachine(0x8000, []uint8{0x06, 0x10})
	require.NoError(t, err)
	m.HAL.Carry = false
	m.Bus.Write(0x10, 0xC1)

	require.NoError(t, run(m, 0x8000))

	require.Equal(t, uint8(0x82), m.Bus.Read(0x10))
	require.True(t, m.HAL.Carry)
	require.True(t, m.HAL.Negative)
	require.False(t, m.HAL.Zero)
}

// TestS5CacheHitThenInvalidate is spec.md §8 S5.
func TestS5CacheHitThenInvalidate(t *testing.T) {
	prog := []ir.Instruction{ir.Return()}
	method, err := codegen.Generate([]lower.Converted{{IR: prog}})
	require.NoError(t, err)

	fn := &partition.Function{
		Entry:     0x8000,
		Addresses: map[uint16]bool{0x8000: true, 0x8001: true, 0x8003: true},
	}
	cache := jit.NewCache(0)
	cache.Insert(0x8000, jit.CompiledMethodEntry{Method: method, Func: fn, Excluded: map[uint16]bool{}})

	_, ok := cache.Get(0x8000)
	require.True(t, ok)

	cache.MemoryChanged(0x8003)

	_, ok = cache.Get(0x8000)
	require.False(t, ok)
}

// TestS6JSRRTSRoundTrip is spec.md §8 S6.
func TestS6JSRRTSRoundTrip(t *testing.T) {
	data := newROMImage(0x8000)
	// A: JSR 0x9000 ; BRK
	copy(data[0x8000-0x8000:], []uint8{0x20, 0x00, 0x90, 0x00})
	// B: RTS
	data[0x9000-0x8000] = 0x60

	m, err := newMachine(data)
	require.NoError(t, err)

	require.Contains(t, m.Functions.Functions, uint16(0x9000))
	require.NoError(t, run(m, 0x8000))
}

// TestFlagByteRoundTrip is spec.md §8 property 1.
func TestFlagByteRoundTrip(t *testing.T) {
	b := bus.New()
	ram := bus.NewRAM(0x10000)
	require.NoError(t, b.Attach(ram, 0, 0x10000, false))
	h := hal.New(b, hal.VariantNMOS)

	for v := 0; v < 256; v++ {
		h.SetStatus(uint8(v))
		got := h.Status()
		want := uint8(v) | 0x20 // unused bit always reads 1.
		if diff := deep.Equal(got, want); diff != nil {
			t.Fatalf("status round-trip for 0x%02X: %v", v, diff)
		}
	}
}
