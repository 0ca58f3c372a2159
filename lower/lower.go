// Package lower implements per-opcode lowering from a decoded 6502
// instruction to an ordered list of IR instructions that precisely
// reproduces its arithmetic and flag effects (spec.md §4.F).
//
// Grounded on disassemble/disassemble.go for mnemonic/addressing-mode
// identification, and on cpu/cpu.go's documented-only arithmetic
// comments (ADC/SBC overflow formulas, shift/rotate carry rules, the
// NEGATIVE_ONE wraparound idiom for INC/DEC) for the semantics each rule
// must reproduce — re-expressed as IR instead of direct register
// mutation.
package lower

import (
	"sixjit/disasm"
	"sixjit/ir"
	"sixjit/sixerr"
)

// Converted pairs one originating 6502 instruction with its ordered IR
// instruction list (spec.md §3's ConvertedInstruction). The pairing
// survives into codegen so a customizer can wrap each 6502 instruction
// without breaking branch targets.
type Converted struct {
	Source disasm.Instruction
	IR     []ir.Instruction
}

// builder accumulates IR for a single 6502 instruction and owns that
// instruction's scratch-variable numbering. Variables are function-local
// but never live across 6502 instructions (spec.md §9): every call to
// Instruction starts a fresh builder with nextVar at 0.
type builder struct {
	ops     []ir.Instruction
	nextVar uint32
}

func (b *builder) emit(i ir.Instruction) { b.ops = append(b.ops, i) }

func (b *builder) freshVar() ir.Value {
	v := ir.Var(b.nextVar)
	b.nextVar++
	return v
}

// setZN appends the standard "Zero iff result==0, Negative iff bit7 set"
// pair against src, which must be a directly-readable value (a register
// or an already-materialized scratch variable — never re-read Memory
// here, to avoid a spurious second bus read of a memory-mapped device).
func (b *builder) setZN(src ir.Value) {
	tmp := b.freshVar()
	b.emit(ir.Binary(ir.OpEquals, src, ir.Const(0), ir.FlagVal(zeroFlag)))
	b.emit(ir.Binary(ir.OpAnd, src, ir.Const(0x80), tmp))
	b.emit(ir.Binary(ir.OpNotEquals, tmp, ir.Const(0), ir.FlagVal(negFlag)))
}

const (
	zeroFlag = ir.FlagZero
	negFlag  = ir.FlagNegative
)

// Instruction lowers a single decoded 6502 instruction into IR. label,
// if non-empty, is the synthetic name this address is targeted by (set
// when the disassembler recorded a branch/jump/call landing here); it is
// emitted as the first IR item so customizer-injected IR can never land
// before the label (spec.md §4.G/§4.I).
func Instruction(inst disasm.Instruction, label string, labelOf func(addr uint16) (string, bool)) (Converted, error) {
	b := &builder{}
	if label != "" {
		b.emit(ir.Label(label))
	}

	operand, isStore := resolveOperand(inst)
	_ = isStore

	switch inst.Mnemonic {
	case "ADC":
		lowerADC(b, operand)
	case "SBC":
		lowerSBC(b, operand)
	case "AND":
		lowerLogical(b, ir.OpAnd, operand)
	case "ORA":
		lowerLogical(b, ir.OpOr, operand)
	case "EOR":
		lowerLogical(b, ir.OpXor, operand)
	case "ASL":
		lowerShift(b, shiftLeft, accumulatorOr(inst, operand))
	case "LSR":
		lowerShift(b, shiftRight, accumulatorOr(inst, operand))
	case "ROL":
		lowerRotate(b, true, accumulatorOr(inst, operand))
	case "ROR":
		lowerRotate(b, false, accumulatorOr(inst, operand))
	case "INC":
		lowerIncDec(b, ir.OpAdd, operand)
	case "DEC":
		lowerIncDec(b, ir.OpSub, operand)
	case "INX":
		lowerIncDec(b, ir.OpAdd, ir.Reg(ir.RegX))
	case "DEX":
		lowerIncDec(b, ir.OpSub, ir.Reg(ir.RegX))
	case "INY":
		lowerIncDec(b, ir.OpAdd, ir.Reg(ir.RegY))
	case "DEY":
		lowerIncDec(b, ir.OpSub, ir.Reg(ir.RegY))
	case "CMP":
		lowerCompare(b, ir.Reg(ir.RegA), operand)
	case "CPX":
		lowerCompare(b, ir.Reg(ir.RegX), operand)
	case "CPY":
		lowerCompare(b, ir.Reg(ir.RegY), operand)
	case "BIT":
		lowerBit(b, operand)
	case "BCC":
		return withBranch(b, inst, ir.FlagVal(ir.FlagCarry), false, labelOf)
	case "BCS":
		return withBranch(b, inst, ir.FlagVal(ir.FlagCarry), true, labelOf)
	case "BEQ":
		return withBranch(b, inst, ir.FlagVal(ir.FlagZero), true, labelOf)
	case "BNE":
		return withBranch(b, inst, ir.FlagVal(ir.FlagZero), false, labelOf)
	case "BMI":
		return withBranch(b, inst, ir.FlagVal(ir.FlagNegative), true, labelOf)
	case "BPL":
		return withBranch(b, inst, ir.FlagVal(ir.FlagNegative), false, labelOf)
	case "BVC":
		return withBranch(b, inst, ir.FlagVal(ir.FlagOverflow), false, labelOf)
	case "BVS":
		return withBranch(b, inst, ir.FlagVal(ir.FlagOverflow), true, labelOf)
	case "JMP":
		return lowerJMP(b, inst, labelOf)
	case "JSR":
		if !inst.HasTarget {
			return Converted{}, sixerr.UnresolvedBranch{Label: "<jsr indirect unsupported>", Address: inst.Addr}
		}
		b.emit(ir.CallFunction(inst.Target, false))
	case "RTS":
		b.emit(ir.Return())
	case "RTI":
		b.emit(ir.PopStackValue(ir.AllFlags()))
		b.emit(ir.Return())
	case "BRK":
		b.emit(ir.Copy(ir.Const(1), ir.FlagVal(ir.FlagBFlag)))
		b.emit(ir.PushStackValue(ir.AllFlags()))
		b.emit(ir.Copy(ir.Const(1), ir.FlagVal(ir.FlagInterruptDisable)))
		b.emit(ir.InvokeSoftwareInterrupt())
	case "TAX":
		lowerTransfer(b, ir.Reg(ir.RegA), ir.Reg(ir.RegX), true)
	case "TAY":
		lowerTransfer(b, ir.Reg(ir.RegA), ir.Reg(ir.RegY), true)
	case "TXA":
		lowerTransfer(b, ir.Reg(ir.RegX), ir.Reg(ir.RegA), true)
	case "TYA":
		lowerTransfer(b, ir.Reg(ir.RegY), ir.Reg(ir.RegA), true)
	case "TSX":
		lowerTransfer(b, ir.SP(), ir.Reg(ir.RegX), true)
	case "TXS":
		lowerTransfer(b, ir.Reg(ir.RegX), ir.SP(), false)
	case "CLC":
		b.emit(ir.Copy(ir.Const(0), ir.FlagVal(ir.FlagCarry)))
	case "SEC":
		b.emit(ir.Copy(ir.Const(1), ir.FlagVal(ir.FlagCarry)))
	case "CLD":
		b.emit(ir.Copy(ir.Const(0), ir.FlagVal(ir.FlagDecimal)))
	case "SED":
		b.emit(ir.Copy(ir.Const(1), ir.FlagVal(ir.FlagDecimal)))
	case "CLI":
		b.emit(ir.Copy(ir.Const(0), ir.FlagVal(ir.FlagInterruptDisable)))
	case "SEI":
		b.emit(ir.Copy(ir.Const(1), ir.FlagVal(ir.FlagInterruptDisable)))
	case "CLV":
		b.emit(ir.Copy(ir.Const(0), ir.FlagVal(ir.FlagOverflow)))
	case "PHA":
		b.emit(ir.PushStackValue(ir.Reg(ir.RegA)))
	case "PLA":
		b.emit(ir.PopStackValue(ir.Reg(ir.RegA)))
		b.setZN(ir.Reg(ir.RegA))
	case "PHP":
		lowerPHP(b)
	case "PLP":
		b.emit(ir.PopStackValue(ir.AllFlags()))
	case "LDA":
		b.emit(ir.Copy(operand, ir.Reg(ir.RegA)))
		b.setZN(ir.Reg(ir.RegA))
	case "LDX":
		b.emit(ir.Copy(operand, ir.Reg(ir.RegX)))
		b.setZN(ir.Reg(ir.RegX))
	case "LDY":
		b.emit(ir.Copy(operand, ir.Reg(ir.RegY)))
		b.setZN(ir.Reg(ir.RegY))
	case "STA":
		b.emit(ir.Copy(ir.Reg(ir.RegA), operand))
	case "STX":
		b.emit(ir.Copy(ir.Reg(ir.RegX), operand))
	case "STY":
		b.emit(ir.Copy(ir.Reg(ir.RegY), operand))
	case "NOP":
		// No effect.
	default:
		return Converted{}, sixerr.UnsupportedInstruction{Mnemonic: inst.Mnemonic, Mode: inst.Mode.String(), Address: inst.Addr}
	}

	return Converted{Source: inst, IR: b.ops}, nil
}

// accumulatorOr returns Reg(A) for Accumulator-mode shift/rotate
// instructions, else the already-resolved memory operand.
func accumulatorOr(inst disasm.Instruction, operand ir.Value) ir.Value {
	if inst.Mode == disasm.ModeAccumulator {
		return ir.Reg(ir.RegA)
	}
	return operand
}

func lowerADC(b *builder, operand ir.Value) {
	v0 := b.freshVar() // 0: accumulator/sum
	v1 := b.freshVar() // 1: scratch
	v2 := b.freshVar() // 2: scratch
	b.emit(ir.Copy(ir.Reg(ir.RegA), v0))
	b.emit(ir.Binary(ir.OpAdd, v0, operand, v0))
	b.emit(ir.Binary(ir.OpAdd, v0, ir.FlagVal(ir.FlagCarry), v0))
	b.emit(ir.Binary(ir.OpGreaterThan, v0, ir.Const(255), ir.FlagVal(ir.FlagCarry)))
	b.emit(ir.ConvertVariableToByte(varIndex(v0)))
	b.emit(ir.Binary(ir.OpXor, ir.Reg(ir.RegA), v0, v1))
	b.emit(ir.Binary(ir.OpXor, operand, v0, v2))
	b.emit(ir.Binary(ir.OpAnd, v1, v2, v1))
	b.emit(ir.Binary(ir.OpAnd, v1, ir.Const(0x80), v1))
	b.emit(ir.Binary(ir.OpEquals, v1, ir.Const(0x80), ir.FlagVal(ir.FlagOverflow)))
	b.emit(ir.Copy(v0, ir.Reg(ir.RegA)))
	b.setZN(ir.Reg(ir.RegA))
}

func lowerSBC(b *builder, operand ir.Value) {
	v0 := b.freshVar() // 0: r (wide, signed)
	v1 := b.freshVar() // 1: scratch
	v2 := b.freshVar() // 2: ~M / scratch
	b.emit(ir.Copy(ir.Reg(ir.RegA), v0))
	b.emit(ir.Binary(ir.OpSub, ir.Const(1), ir.FlagVal(ir.FlagCarry), v1)) // v1 = 1-C
	b.emit(ir.Binary(ir.OpSub, v0, operand, v0))                          // v0 = A-M
	b.emit(ir.Binary(ir.OpSub, v0, v1, v0))                               // v0 = A-M-(1-C)
	b.emit(ir.Binary(ir.OpGreaterThanOrEqualTo, v0, ir.Const(0), ir.FlagVal(ir.FlagCarry)))
	b.emit(ir.Unary(ir.OpBitwiseNot, operand, v2)) // v2 = ~M
	b.emit(ir.Binary(ir.OpXor, v0, ir.Reg(ir.RegA), v1))
	b.emit(ir.Binary(ir.OpXor, v0, v2, v2))
	b.emit(ir.Binary(ir.OpAnd, v1, v2, v1))
	b.emit(ir.Binary(ir.OpAnd, v1, ir.Const(0x80), v1))
	b.emit(ir.Binary(ir.OpEquals, v1, ir.Const(0x80), ir.FlagVal(ir.FlagOverflow)))
	b.emit(ir.ConvertVariableToByte(varIndex(v0)))
	b.emit(ir.Copy(v0, ir.Reg(ir.RegA)))
	b.setZN(ir.Reg(ir.RegA))
}

func lowerLogical(b *builder, op ir.BinOp, operand ir.Value) {
	b.emit(ir.Binary(op, ir.Reg(ir.RegA), operand, ir.Reg(ir.RegA)))
	b.setZN(ir.Reg(ir.RegA))
}

type shiftDir int

const (
	shiftLeft shiftDir = iota
	shiftRight
)

func lowerShift(b *builder, dir shiftDir, target ir.Value) {
	v0 := b.freshVar()
	v1 := b.freshVar()
	b.emit(ir.Copy(target, v0))
	if dir == shiftLeft {
		b.emit(ir.Binary(ir.OpAnd, v0, ir.Const(0x80), v1))
		b.emit(ir.Binary(ir.OpNotEquals, v1, ir.Const(0), ir.FlagVal(ir.FlagCarry)))
		b.emit(ir.Binary(ir.OpShiftLeft, v0, ir.Const(1), v0))
		b.emit(ir.ConvertVariableToByte(varIndex(v0)))
		b.emit(ir.Copy(v0, target))
		b.setZN(v0)
		return
	}
	b.emit(ir.Binary(ir.OpAnd, v0, ir.Const(1), v1))
	b.emit(ir.Binary(ir.OpNotEquals, v1, ir.Const(0), ir.FlagVal(ir.FlagCarry)))
	b.emit(ir.Binary(ir.OpShiftRight, v0, ir.Const(1), v0))
	b.emit(ir.ConvertVariableToByte(varIndex(v0)))
	b.emit(ir.Copy(v0, target))
	b.emit(ir.Binary(ir.OpEquals, v0, ir.Const(0), ir.FlagVal(ir.FlagZero)))
	b.emit(ir.Copy(ir.Const(0), ir.FlagVal(ir.FlagNegative))) // LSR always clears Negative.
}

func lowerRotate(b *builder, left bool, target ir.Value) {
	v0 := b.freshVar()
	v1 := b.freshVar()
	v2 := b.freshVar() // new carry, 0/1
	b.emit(ir.Copy(target, v0))
	if left {
		b.emit(ir.Binary(ir.OpAnd, v0, ir.Const(0x80), v1))
		b.emit(ir.Binary(ir.OpNotEquals, v1, ir.Const(0), v2))
		b.emit(ir.Binary(ir.OpShiftLeft, v0, ir.Const(1), v0))
		b.emit(ir.Binary(ir.OpOr, v0, ir.FlagVal(ir.FlagCarry), v0))
		b.emit(ir.ConvertVariableToByte(varIndex(v0)))
		b.emit(ir.Copy(v0, target))
		b.emit(ir.Copy(v2, ir.FlagVal(ir.FlagCarry)))
		b.setZN(v0)
		return
	}
	b.emit(ir.Binary(ir.OpAnd, v0, ir.Const(1), v1))
	b.emit(ir.Binary(ir.OpNotEquals, v1, ir.Const(0), v2))
	b.emit(ir.Binary(ir.OpShiftRight, v0, ir.Const(1), v0))
	b.emit(ir.Binary(ir.OpAnd, ir.FlagVal(ir.FlagCarry), ir.Const(1), v1))
	b.emit(ir.Binary(ir.OpShiftLeft, v1, ir.Const(7), v1))
	b.emit(ir.Binary(ir.OpOr, v0, v1, v0))
	b.emit(ir.ConvertVariableToByte(varIndex(v0)))
	b.emit(ir.Copy(v0, target))
	b.emit(ir.Copy(v2, ir.FlagVal(ir.FlagCarry)))
	b.setZN(v0)
}

func lowerIncDec(b *builder, op ir.BinOp, target ir.Value) {
	v0 := b.freshVar()
	b.emit(ir.Copy(target, v0))
	b.emit(ir.Binary(op, v0, ir.Const(1), v0))
	b.emit(ir.ConvertVariableToByte(varIndex(v0)))
	b.emit(ir.Copy(v0, target))
	b.setZN(v0)
}

func lowerCompare(b *builder, reg, operand ir.Value) {
	v0 := b.freshVar() // holds reg value
	v1 := b.freshVar() // diff (wide)
	v2 := b.freshVar() // scratch
	b.emit(ir.Copy(reg, v0))
	b.emit(ir.Binary(ir.OpSub, v0, operand, v1))
	b.emit(ir.Binary(ir.OpGreaterThanOrEqualTo, v0, operand, ir.FlagVal(ir.FlagCarry)))
	b.emit(ir.Binary(ir.OpEquals, v0, operand, ir.FlagVal(ir.FlagZero)))
	b.emit(ir.ConvertVariableToByte(varIndex(v1)))
	b.emit(ir.Binary(ir.OpAnd, v1, ir.Const(0x80), v2))
	b.emit(ir.Binary(ir.OpNotEquals, v2, ir.Const(0), ir.FlagVal(ir.FlagNegative)))
}

func lowerBit(b *builder, operand ir.Value) {
	v1 := b.freshVar()
	v2 := b.freshVar()
	b.emit(ir.Binary(ir.OpAnd, ir.Reg(ir.RegA), operand, v1))
	b.emit(ir.Binary(ir.OpEquals, v1, ir.Const(0), ir.FlagVal(ir.FlagZero)))
	b.emit(ir.Binary(ir.OpAnd, operand, ir.Const(0x80), v2))
	b.emit(ir.Binary(ir.OpNotEquals, v2, ir.Const(0), ir.FlagVal(ir.FlagNegative)))
	b.emit(ir.Binary(ir.OpAnd, operand, ir.Const(0x40), v2))
	b.emit(ir.Binary(ir.OpNotEquals, v2, ir.Const(0), ir.FlagVal(ir.FlagOverflow)))
}

func lowerTransfer(b *builder, src, dst ir.Value, setFlags bool) {
	b.emit(ir.Copy(src, dst))
	if setFlags {
		b.setZN(dst)
	}
}

func lowerPHP(b *builder) {
	v0 := b.freshVar()
	b.emit(ir.Copy(ir.FlagVal(ir.FlagBFlag), v0))
	b.emit(ir.Copy(ir.Const(1), ir.FlagVal(ir.FlagBFlag)))
	b.emit(ir.PushStackValue(ir.AllFlags()))
	b.emit(ir.Binary(ir.OpNotEquals, v0, ir.Const(0), ir.FlagVal(ir.FlagBFlag)))
}

func withBranch(b *builder, inst disasm.Instruction, cond ir.Value, onTrue bool, labelOf func(uint16) (string, bool)) (Converted, error) {
	label, ok := labelOf(inst.Target)
	if !ok {
		return Converted{}, sixerr.UnresolvedBranch{Label: "", Address: inst.Addr}
	}
	if onTrue {
		b.emit(ir.JumpIfNotZero(cond, label))
	} else {
		b.emit(ir.JumpIfZero(cond, label))
	}
	return Converted{Source: inst, IR: b.ops}, nil
}

func lowerJMP(b *builder, inst disasm.Instruction, labelOf func(uint16) (string, bool)) (Converted, error) {
	if inst.Mode == disasm.ModeIndirect {
		addr := uint16(inst.Bytes[1]) | uint16(inst.Bytes[2])<<8
		b.emit(ir.CallFunction(addr, true))
		b.emit(ir.Return())
		return Converted{Source: inst, IR: b.ops}, nil
	}
	label, ok := labelOf(inst.Target)
	if !ok {
		return Converted{}, sixerr.UnresolvedBranch{Label: "", Address: inst.Addr}
	}
	b.emit(ir.Jump(label))
	return Converted{Source: inst, IR: b.ops}, nil
}

// resolveOperand centralizes addressing-mode -> IR Value resolution
// (spec.md §4.F). The second return value is unused by callers today but
// kept to mirror the corpus's "mode resolution returns enough info for
// both read and write call sites" helpers.
func resolveOperand(inst disasm.Instruction) (ir.Value, bool) {
	switch inst.Mode {
	case disasm.ModeAccumulator, disasm.ModeImplied, disasm.ModeRelative:
		return ir.Value{}, false
	case disasm.ModeImmediate:
		return ir.Const(uint16(inst.Bytes[1])), false
	case disasm.ModeZeroPage:
		return ir.Mem(uint16(inst.Bytes[1]), ir.IndexNone, true), false
	case disasm.ModeZeroPageX:
		return ir.Mem(uint16(inst.Bytes[1]), ir.IndexX, true), false
	case disasm.ModeZeroPageY:
		return ir.Mem(uint16(inst.Bytes[1]), ir.IndexY, true), false
	case disasm.ModeAbsolute:
		return ir.Mem(uint16(inst.Bytes[1])|uint16(inst.Bytes[2])<<8, ir.IndexNone, false), false
	case disasm.ModeAbsoluteX:
		return ir.Mem(uint16(inst.Bytes[1])|uint16(inst.Bytes[2])<<8, ir.IndexX, false), false
	case disasm.ModeAbsoluteY:
		return ir.Mem(uint16(inst.Bytes[1])|uint16(inst.Bytes[2])<<8, ir.IndexY, false), false
	case disasm.ModeIndirectX:
		return ir.IndirectMem(uint16(inst.Bytes[1]), ir.IndirectPreIndexedX), false
	case disasm.ModeIndirectY:
		return ir.IndirectMem(uint16(inst.Bytes[1]), ir.IndirectPostIndexedY), false
	}
	return ir.Value{}, false
}

// varIndex extracts the scratch-variable index from a Value known to be
// ValVariable, used when emitting ConvertVariableToByte.
func varIndex(v ir.Value) uint32 { return v.Variable }
