package randommath

import (
	"fmt"
	"strings"

	"github.com/eigerco/cnr/internal/constants"
	"github.com/eigerco/cnr/internal/crypto"
)

// Program is a RET terminated random math sequence. It is built once per hash
// computation and never modified afterwards.
type Program struct {
	code [constants.ProgramCapacity]Instruction
	size int // including the final Ret
}

// NewProgram builds a program from a complete instruction list, which must
// satisfy every program invariant including the final Ret
func NewProgram(instructions []Instruction) (*Program, error) {
	if len(instructions) > constants.ProgramCapacity {
		return nil, fmt.Errorf("%w: %d instructions", ErrProgramTooLong, len(instructions))
	}
	if len(instructions) == 0 || instructions[len(instructions)-1].Opcode != Ret {
		return nil, ErrMissingRet
	}
	p := &Program{size: len(instructions)}
	for i, instr := range instructions {
		if err := instr.Validate(); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		if instr.Opcode == Ret && i != len(instructions)-1 {
			return nil, fmt.Errorf("instruction %d: %w", i, ErrMisplacedRet)
		}
		p.code[i] = instr
	}
	return p, nil
}

// UnmarshalProgram decodes a program produced by MarshalBinary
func UnmarshalProgram(data []byte) (*Program, error) {
	if len(data)%InstructionSize != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrMalformedProgram, len(data))
	}
	instructions := make([]Instruction, len(data)/InstructionSize)
	for i := range instructions {
		instructions[i] = decodeInstruction(data[i*InstructionSize:])
	}
	return NewProgram(instructions)
}

// Len number of instructions including the final Ret
func (p *Program) Len() int {
	return p.size
}

// At returns the instruction at index i
func (p *Program) At(i int) Instruction {
	if i < 0 || i >= p.size {
		panic(fmt.Sprintf("instruction index %d out of range [0:%d]", i, p.size))
	}
	return p.code[i]
}

// Instructions returns a copy of the instruction sequence
func (p *Program) Instructions() []Instruction {
	out := make([]Instruction, p.size)
	copy(out, p.code[:p.size])
	return out
}

// Equal reports whether both programs hold the same instruction sequence
func (p *Program) Equal(other *Program) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.size == other.size && p.code == other.code
}

// MarshalBinary encodes every instruction as opcode, dst, src and C bytes
func (p *Program) MarshalBinary() ([]byte, error) {
	return p.Bytes(), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary into p
func (p *Program) UnmarshalBinary(data []byte) error {
	decoded, err := UnmarshalProgram(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// Bytes returns the binary encoding of the program
func (p *Program) Bytes() []byte {
	out := make([]byte, p.size*InstructionSize)
	for i, instr := range p.code[:p.size] {
		instr.encode(out[i*InstructionSize:])
	}
	return out
}

// Fingerprint BLAKE2b-256 of the binary encoding
func (p *Program) Fingerprint() crypto.Hash {
	return crypto.HashData(p.Bytes())
}

// String returns the program listing, one instruction per line
func (p *Program) String() string {
	var b strings.Builder
	for _, instr := range p.code[:p.size] {
		b.WriteString(instr.String())
		b.WriteByte('\n')
	}
	return b.String()
}
