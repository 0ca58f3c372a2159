package conformance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sixjit/codegen"
	"sixjit/hal"
	"sixjit/ir"
	"sixjit/jit"
	"sixjit/lower"
	"sixjit/partition"
)

// TestRegisterArithmeticWraparound is spec.md §8 property 2.
func TestRegisterArithmeticWraparound(t *testing.T) {
	tests := []struct {
		name string
		code []uint8
		reg  func(*hal.State) *uint8
		sign int // +1 increment, -1 decrement
	}{
		{"INX", []uint8{0xE8}, func(h *hal.State) *uint8 { return &h.X }, +1},
		{"INY", []uint8{0xC8}, func(h *hal.State) *uint8 { return &h.Y }, +1},
		{"DEX", []uint8{0xCA}, func(h *hal.State) *uint8 { return &h.X }, -1},
		{"DEY", []uint8{0x88}, func(h *hal.State) *uint8 { return &h.Y }, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for v := 0; v < 256; v++ {
				m, err := newProgramMachine(0x8000, tc.code)
				require.NoError(t, err)
				*tc.reg(m.HAL) = uint8(v)

				require.NoError(t, run(m, 0x8000))

				want := uint8((v + tc.sign + 256) % 256)
				require.Equalf(t, want, *tc.reg(m.HAL), "start %d", v)
				require.Equal(t, want == 0, m.HAL.Zero)
				require.Equal(t, want&0x80 != 0, m.HAL.Negative)
			}
		})
	}
}

// TestINCDECMemoryWraparound covers the memory-operand half of property 2.
func TestINCDECMemoryWraparound(t *testing.T) {
	tests := []struct {
		name string
		code []uint8
		sign int
	}{
		{"INC", []uint8{0xE6, 0x10}, +1},
		{"DEC", []uint8{0xC6, 0x10}, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for v := 0; v < 256; v++ {
				m, err := newProgramMachine(0x8000, tc.code)
				require.NoError(t, err)
				m.Bus.Write(0x10, uint8(v))

				require.NoError(t, run(m, 0x8000))

				want := uint8((v + tc.sign + 256) % 256)
				require.Equal(t, want, m.Bus.Read(0x10))
				require.Equal(t, want == 0, m.HAL.Zero)
				require.Equal(t, want&0x80 != 0, m.HAL.Negative)
			}
		})
	}
}

// TestADCOverflowLaw is spec.md §8 property 3.
func TestADCOverflowLaw(t *testing.T) {
	for a := 0; a < 256; a += 7 {
		for operand := 0; operand < 256; operand += 11 {
			for _, c := range []bool{false, true} {
				m, err := newProgramMachine(0x8000, []uint8{0x69, uint8(operand)})
				require.NoError(t, err)
				m.HAL.A = uint8(a)
				m.HAL.Carry = c

				require.NoError(t, run(m, 0x8000))

				carryIn := 0
				if c {
					carryIn = 1
				}
				sum := a + operand + carryIn
				wantResult := uint8(sum)
				wantCarry := sum > 255
				wantOverflow := (uint8(a)^wantResult)&(uint8(operand)^wantResult)&0x80 != 0

				require.Equalf(t, wantResult, m.HAL.A, "A=%d M=%d C=%v", a, operand, c)
				require.Equal(t, wantCarry, m.HAL.Carry)
				require.Equal(t, wantOverflow, m.HAL.Overflow)
			}
		}
	}
}

// TestSBCOverflowLaw is spec.md §8 property 4.
func TestSBCOverflowLaw(t *testing.T) {
	for a := 0; a < 256; a += 7 {
		for operand := 0; operand < 256; operand += 11 {
			for _, c := range []bool{false, true} {
				m, err := newProgramMachine(0x8000, []uint8{0xE9, uint8(operand)})
				require.NoError(t, err)
				m.HAL.A = uint8(a)
				m.HAL.Carry = c

				require.NoError(t, run(m, 0x8000))

				borrowIn := 1
				if c {
					borrowIn = 0
				}
				diff := a - operand - borrowIn
				wantResult := uint8(diff)
				wantCarry := diff >= 0
				notM := ^uint8(operand)
				wantOverflow := (wantResult^uint8(a))&(wantResult^notM)&0x80 != 0

				require.Equalf(t, wantResult, m.HAL.A, "A=%d M=%d C=%v", a, operand, c)
				require.Equal(t, wantCarry, m.HAL.Carry)
				require.Equal(t, wantOverflow, m.HAL.Overflow)
			}
		}
	}
}

// TestShiftRotateCarryLaw is spec.md §8 property 5.
func TestShiftRotateCarryLaw(t *testing.T) {
	for v := 0; v < 256; v++ {
		// ASL: new Carry is bit 7 of the pre-shift value.
		m, err := newProgramMachine(0x8000, []uint8{0x0A}) // ASL A
		require.NoError(t, err)
		m.HAL.A = uint8(v)
		require.NoError(t, run(m, 0x8000))
		require.Equal(t, v&0x80 != 0, m.HAL.Carry)

		// LSR: Negative always false.
		m, err = newProgramMachine(0x8000, []uint8{0x4A}) // LSR A
		require.NoError(t, err)
		m.HAL.A = uint8(v)
		require.NoError(t, run(m, 0x8000))
		require.False(t, m.HAL.Negative)
		require.Equal(t, v&0x01 != 0, m.HAL.Carry)

		for _, carryIn := range []bool{false, true} {
			// ROL: populated bit 0 is exactly the pre-op Carry.
			m, err = newProgramMachine(0x8000, []uint8{0x2A}) // ROL A
			require.NoError(t, err)
			m.HAL.A = uint8(v)
			m.HAL.Carry = carryIn
			require.NoError(t, run(m, 0x8000))
			wantBit0 := uint8(0)
			if carryIn {
				wantBit0 = 1
			}
			require.Equal(t, wantBit0, m.HAL.A&0x01)
			require.Equal(t, v&0x80 != 0, m.HAL.Carry)

			// ROR: populated bit 7 is exactly the pre-op Carry.
			m, err = newProgramMachine(0x8000, []uint8{0x6A}) // ROR A
			require.NoError(t, err)
			m.HAL.A = uint8(v)
			m.HAL.Carry = carryIn
			require.NoError(t, run(m, 0x8000))
			wantBit7 := uint8(0)
			if carryIn {
				wantBit7 = 0x80
			}
			require.Equal(t, wantBit7, m.HAL.A&0x80)
			require.Equal(t, v&0x01 != 0, m.HAL.Carry)
		}
	}
}

// TestBITPreservesA is spec.md §8 property 6.
func TestBITPreservesA(t *testing.T) {
	for a := 0; a < 256; a += 13 {
		for operand := 0; operand < 256; operand += 17 {
			m, err := newProgramMachine(0x8000, []uint8{0x24, 0x10}) // BIT $10
			require.NoError(t, err)
			m.HAL.A = uint8(a)
			m.Bus.Write(0x10, uint8(operand))

			require.NoError(t, run(m, 0x8000))

			require.Equal(t, uint8(a), m.HAL.A)
			require.Equal(t, operand&0x80 != 0, m.HAL.Negative)
			require.Equal(t, operand&0x40 != 0, m.HAL.Overflow)
			require.Equal(t, (a&operand) == 0, m.HAL.Zero)
		}
	}
}

// TestTXSNeutrality is spec.md §8 property 7.
func TestTXSNeutrality(t *testing.T) {
	m, err := newProgramMachine(0x8000, []uint8{0x9A, 0x60}) // TXS; RTS
	require.NoError(t, err)
	m.HAL.X = 0x42
	before := m.HAL.Status()

	require.NoError(t, run(m, 0x8000))

	require.Equal(t, uint8(0x42), m.HAL.SP)
	require.Equal(t, before, m.HAL.Status())
}

// TestCacheInvalidationProperty is spec.md §8 property 8.
func TestCacheInvalidationProperty(t *testing.T) {
	method, err := jitNoopMethod()
	require.NoError(t, err)

	fn := &partition.Function{Entry: 0x1000, Addresses: map[uint16]bool{0x1000: true, 0x1001: true}}
	cache := jit.NewCache(0)
	cache.Insert(0x1000, jit.CompiledMethodEntry{Method: method, Func: fn, Excluded: map[uint16]bool{0x1001: true}})

	cache.MemoryChanged(0x1001) // excluded: survives.
	_, ok := cache.Get(0x1000)
	require.True(t, ok)

	cache.MemoryChanged(0x1000) // not excluded: evicted.
	_, ok = cache.Get(0x1000)
	require.False(t, ok)
}

// TestLRUEviction is spec.md §8 property 9.
func TestLRUEviction(t *testing.T) {
	const capacity = 4
	cache := jit.NewCache(capacity)
	method, err := jitNoopMethod()
	require.NoError(t, err)

	fn := func(addr uint16) *partition.Function {
		return &partition.Function{Entry: addr, Addresses: map[uint16]bool{addr: true}}
	}

	for i := 0; i < capacity+1; i++ {
		cache.Insert(uint16(i), jit.CompiledMethodEntry{Method: method, Func: fn(uint16(i)), Excluded: map[uint16]bool{}})
	}

	_, ok := cache.Get(0)
	require.False(t, ok, "first-inserted entry should have been evicted")
	require.Equal(t, capacity, cache.Len())

	// Touch entry 1 to promote it, then force one more eviction: 2 (the
	// next-oldest untouched entry) should go, not 1.
	_, ok = cache.Get(1)
	require.True(t, ok)
	cache.Insert(100, jit.CompiledMethodEntry{Method: method, Func: fn(100), Excluded: map[uint16]bool{}})

	_, ok = cache.Get(2)
	require.False(t, ok)
	_, ok = cache.Get(1)
	require.True(t, ok)
}

// TestIndirectXWraparound is spec.md §8 property 10.
func TestIndirectXWraparound(t *testing.T) {
	m, err := newProgramMachine(0x8000, []uint8{0xA1, 0xFF}) // LDA ($FF,X)
	require.NoError(t, err)
	m.HAL.X = 0x01 // 0xFF + 0x01 wraps to 0x00 within zero page.
	m.Bus.Write(0x00, 0x34)
	m.Bus.Write(0x01, 0x12) // pointer at zp 0x00 -> 0x1234
	m.Bus.Write(0x1234, 0x99)

	require.NoError(t, run(m, 0x8000))

	require.Equal(t, uint8(0x99), m.HAL.A)
}

func jitNoopMethod() (*codegen.CompiledMethod, error) {
	return codegen.Generate([]lower.Converted{{IR: []ir.Instruction{ir.Return()}}})
}
