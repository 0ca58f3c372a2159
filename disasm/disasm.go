package disasm

import (
	"fmt"
	"sort"

	"sixjit/bus"
)

// Instruction is one decoded 6502 instruction (spec.md §3).
type Instruction struct {
	Opcode  uint8
	Bytes   []uint8
	Mnemonic string
	Mode    Mode
	Addr    uint16

	// HasTarget is true for branches/jumps/calls; Target is the resolved
	// absolute address (branch targets are pre-resolved from the signed
	// relative offset).
	HasTarget bool
	Target    uint16

	Label string // Synthetic label name, set if this address is a branch/jump target.
}

// End returns the address one past the instruction's last byte.
func (i Instruction) End() uint16 {
	return i.Addr + uint16(len(i.Bytes))
}

// Program is the result of walking a ROM from its entry vectors: a
// flat, address-ordered instruction stream, a label map, and the set of
// entry points that rooted the walk.
type Program struct {
	Instructions []Instruction
	Labels       map[uint16]string
	Entries      []uint16
}

// InstructionAt returns the decoded instruction starting at addr, if
// any was decoded there.
func (p *Program) InstructionAt(addr uint16) (Instruction, bool) {
	// Instructions is address sorted; binary search.
	i := sort.Search(len(p.Instructions), func(i int) bool {
		return p.Instructions[i].Addr >= addr
	})
	if i < len(p.Instructions) && p.Instructions[i].Addr == addr {
		return p.Instructions[i], true
	}
	return Instruction{}, false
}

func decodeOne(b *bus.Bus, addr uint16) (Instruction, error) {
	op := b.Read(addr)
	info, ok := opcodes[op]
	if !ok {
		return Instruction{}, fmt.Errorf("undocumented or invalid opcode 0x%02X at 0x%04X", op, addr)
	}
	size := info.mode.Size()
	raw := make([]uint8, size)
	raw[0] = op
	for i := 1; i < size; i++ {
		raw[i] = b.Read(addr + uint16(i))
	}
	inst := Instruction{
		Opcode:   op,
		Bytes:    raw,
		Mnemonic: info.mnemonic,
		Mode:     info.mode,
		Addr:     addr,
	}
	switch info.mode {
	case ModeRelative:
		off := int8(raw[1])
		inst.HasTarget = true
		inst.Target = uint16(int32(addr) + int32(size) + int32(off))
	case ModeAbsolute:
		if info.mnemonic == "JMP" || info.mnemonic == "JSR" {
			inst.HasTarget = true
			inst.Target = uint16(raw[1]) | uint16(raw[2])<<8
		}
	case ModeIndirect:
		// Indirect JMP: the target is resolved at dispatch time from
		// memory, not known statically, so HasTarget stays false; the
		// walker cannot follow it and the function that contains it
		// simply ends there (spec.md §9's indirect-JMP note).
	}
	return inst, nil
}

// Walk performs the recursive-descent decode required by spec.md §4.C:
// starting at each entry vector, decode one instruction, follow
// fall-through and branch/jump targets, stop at RTS/RTI/JMP(unconditional)/BRK.
// Indirect JMP targets are not statically known and so do not extend the
// walk past that instruction.
func Walk(b *bus.Bus, entries []uint16) (*Program, error) {
	p := &Program{Labels: map[uint16]string{}, Entries: append([]uint16{}, entries...)}
	decoded := map[uint16]Instruction{}
	var order []uint16
	visited := map[uint16]bool{}

	var walk func(addr uint16) error
	walk = func(addr uint16) error {
		for {
			if visited[addr] {
				return nil
			}
			inst, err := decodeOne(b, addr)
			if err != nil {
				return err
			}
			// Reject overlap: if this decode would straddle an
			// already-decoded instruction's bytes, the ROM has
			// inconsistent control flow (e.g. falling into the middle
			// of another instruction); treat that address as already
			// covered and stop this path rather than corrupt the
			// instruction set.
			for a := addr; a < inst.End(); a++ {
				if visited[a] && a != addr {
					return nil
				}
			}
			decoded[addr] = inst
			order = append(order, addr)
			for a := addr; a < inst.End(); a++ {
				visited[a] = true
			}

			if inst.HasTarget {
				if IsBranch(inst.Mnemonic) || inst.Mnemonic == "JSR" {
					p.Labels[inst.Target] = labelName(inst.Target)
					if err := walk(inst.Target); err != nil {
						return err
					}
				} else if inst.Mnemonic == "JMP" {
					p.Labels[inst.Target] = labelName(inst.Target)
					addr = inst.Target
					continue
				}
			}

			switch inst.Mnemonic {
			case "RTS", "RTI", "JMP", "BRK":
				return nil
			}
			addr = inst.End()
		}
	}

	for _, e := range entries {
		if err := walk(e); err != nil {
			return nil, err
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, a := range order {
		inst := decoded[a]
		if name, ok := p.Labels[a]; ok {
			inst.Label = name
		}
		p.Instructions = append(p.Instructions, inst)
	}
	return p, nil
}

func labelName(addr uint16) string {
	return fmt.Sprintf("L_%04X", addr)
}
