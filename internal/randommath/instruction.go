package randommath

import (
	"fmt"

	"github.com/eigerco/cnr/internal/constants"
)

// InstructionSize size of an encoded Instruction in bytes
const InstructionSize = 4

type Reg uint8

func (r Reg) String() string {
	return fmt.Sprintf("r%d", uint8(r))
}

// IsVariable reports whether the register carries hash state (r0-r3)
func (r Reg) IsVariable() bool {
	return r < constants.VariableRegisterCount
}

// Compact is one pseudorandom byte split into instruction fields. Every byte
// value is a valid compact instruction:
//
//	bits 0-2 raw opcode, 0-2 select MUL, 3-7 select ADD, SUB, ROR, ROL, XOR
//	bits 3-4 destination register (r0-r3)
//	bits 5-7 source register (r0-r7)
type Compact struct {
	RawOpcode uint8
	Dst       Reg
	Src       Reg
}

// DecodeCompact splits a byte into its compact instruction fields
func DecodeCompact(b byte) Compact {
	return Compact{
		RawOpcode: b & 0b111,
		Dst:       Reg((b >> 3) & 0b11),
		Src:       Reg(b >> 5),
	}
}

// Opcode maps the raw selector to an opcode; MUL is three times more
// frequent than the other instructions
func (c Compact) Opcode() Opcode {
	if c.RawOpcode > 2 {
		return Opcode(c.RawOpcode - 2)
	}
	return Mul
}

// Instruction is the canonical form executed by the interpreter. C is only
// meaningful for Add.
type Instruction struct {
	Opcode Opcode
	Dst    Reg
	Src    Reg
	C      int8
}

func (i Instruction) String() string {
	switch i.Opcode {
	case Ret:
		return "ret"
	case Add:
		return fmt.Sprintf("add %s, %s, %d", i.Dst, i.Src, i.C)
	default:
		return fmt.Sprintf("%s %s, %s", i.Opcode, i.Dst, i.Src)
	}
}

// Validate checks the instruction against the program invariants
func (i Instruction) Validate() error {
	if i.Opcode > Ret {
		return fmt.Errorf("%w: %d", ErrInvalidOpcode, uint8(i.Opcode))
	}
	if i.Opcode == Ret {
		if i.Dst != 0 || i.Src != 0 || i.C != 0 {
			return fmt.Errorf("%w: ret carries operands", ErrInvalidInstruction)
		}
		return nil
	}
	if !i.Dst.IsVariable() {
		return fmt.Errorf("%w: destination %s", ErrInvalidRegister, i.Dst)
	}
	if i.Src >= constants.RegisterCount {
		return fmt.Errorf("%w: source %s", ErrInvalidRegister, i.Src)
	}
	if (i.Opcode == Sub || i.Opcode == Xor) && i.Src == i.Dst {
		return fmt.Errorf("%w: %s", ErrSelfConflict, i)
	}
	if i.Opcode != Add && i.C != 0 {
		return fmt.Errorf("%w: constant on %s", ErrInvalidInstruction, i.Opcode)
	}
	return nil
}

func (i Instruction) encode(b []byte) {
	b[0] = byte(i.Opcode)
	b[1] = byte(i.Dst)
	b[2] = byte(i.Src)
	b[3] = byte(i.C)
}

func decodeInstruction(b []byte) Instruction {
	return Instruction{
		Opcode: Opcode(b[0]),
		Dst:    Reg(b[1]),
		Src:    Reg(b[2]),
		C:      int8(b[3]),
	}
}
