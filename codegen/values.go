package codegen

import (
	"sixjit/hal"
	"sixjit/ir"
)

// readValue resolves v to its current integer value. Wider-than-byte
// precision is preserved by representing everything as int64; narrowing
// back to a byte only happens where the IR explicitly says so
// (ConvertVariableToByte), per spec.md §4.F's "hold the computation in
// a wider Variable" rule.
func readValue(v ir.Value, h *hal.State, scratch []int64) int64 {
	switch v.Kind {
	case ir.ValConstant:
		return int64(v.Constant)
	case ir.ValRegister:
		switch v.Register {
		case ir.RegA:
			return int64(h.A)
		case ir.RegX:
			return int64(h.X)
		case ir.RegY:
			return int64(h.Y)
		}
	case ir.ValStackPointer:
		return int64(h.SP)
	case ir.ValFlag:
		if readFlag(v.Flag, h) {
			return 1
		}
		return 0
	case ir.ValAllFlags:
		return int64(h.Status())
	case ir.ValMemory:
		return int64(h.ReadMemory(effectiveMemAddr(v, h)))
	case ir.ValIndirectMemory:
		return int64(h.ReadMemory(effectiveIndirectAddr(v, h)))
	case ir.ValVariable:
		return scratch[v.Variable]
	}
	return 0
}

// writeValue stores value into dst.
func writeValue(v ir.Value, value int64, h *hal.State, scratch []int64) {
	switch v.Kind {
	case ir.ValRegister:
		switch v.Register {
		case ir.RegA:
			h.A = uint8(value)
		case ir.RegX:
			h.X = uint8(value)
		case ir.RegY:
			h.Y = uint8(value)
		}
	case ir.ValStackPointer:
		h.SP = uint8(value)
	case ir.ValFlag:
		writeFlag(v.Flag, value != 0, h)
	case ir.ValAllFlags:
		h.SetStatus(uint8(value))
	case ir.ValMemory:
		h.WriteMemory(effectiveMemAddr(v, h), uint8(value))
	case ir.ValIndirectMemory:
		h.WriteMemory(effectiveIndirectAddr(v, h), uint8(value))
	case ir.ValVariable:
		scratch[v.Variable] = value
	}
}

func readFlag(f ir.Flag, h *hal.State) bool {
	switch f {
	case ir.FlagCarry:
		return h.Carry
	case ir.FlagZero:
		return h.Zero
	case ir.FlagInterruptDisable:
		return h.InterruptDisable
	case ir.FlagDecimal:
		return h.Decimal
	case ir.FlagBFlag:
		return h.BFlag
	case ir.FlagOverflow:
		return h.Overflow
	case ir.FlagNegative:
		return h.Negative
	}
	return false
}

func writeFlag(f ir.Flag, val bool, h *hal.State) {
	switch f {
	case ir.FlagCarry:
		h.Carry = val
	case ir.FlagZero:
		h.Zero = val
	case ir.FlagInterruptDisable:
		h.InterruptDisable = val
	case ir.FlagDecimal:
		h.Decimal = val
	case ir.FlagBFlag:
		h.BFlag = val
	case ir.FlagOverflow:
		h.Overflow = val
	case ir.FlagNegative:
		h.Negative = val
	}
}

// effectiveMemAddr resolves a ValMemory operand to its bus address,
// applying the index register and the zero-page wraparound rule when
// SingleByte is set (spec.md §4.F: "(0x20, X) with X=0xE0 wraps to zero
// page").
func effectiveMemAddr(v ir.Value, h *hal.State) uint16 {
	var idx uint8
	switch v.IndexReg {
	case ir.IndexX:
		idx = h.X
	case ir.IndexY:
		idx = h.Y
	}
	if v.SingleByte {
		return uint16(uint8(v.Address) + idx)
	}
	return v.Address + uint16(idx)
}

// effectiveIndirectAddr resolves (zp,X) and (zp),Y per spec.md §4.F:
// pre-indexed wraps the pointer-byte lookup within zero page both for
// the +X step and for the high-byte fetch; post-indexed wraps only the
// high-byte fetch and then adds Y with full 16-bit range (may cross a
// page).
func effectiveIndirectAddr(v ir.Value, h *hal.State) uint16 {
	switch v.IndirectForm {
	case ir.IndirectPreIndexedX:
		b := uint8(v.ZeroPageBase) + h.X
		lo := h.ReadMemory(uint16(b))
		hi := h.ReadMemory(uint16(b + 1))
		return uint16(lo) | uint16(hi)<<8
	case ir.IndirectPostIndexedY:
		zp := uint8(v.ZeroPageBase)
		lo := h.ReadMemory(uint16(zp))
		hi := h.ReadMemory(uint16(zp + 1))
		base := uint16(lo) | uint16(hi)<<8
		return base + uint16(h.Y)
	}
	return 0
}
