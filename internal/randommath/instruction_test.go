package randommath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/cnr/internal/constants"
)

func TestDecodeCompact(t *testing.T) {
	counts := map[Opcode]int{}
	for b := 0; b < 256; b++ {
		c := DecodeCompact(byte(b))
		assert.Equal(t, uint8(b&7), c.RawOpcode)
		assert.Equal(t, Reg((b>>3)&3), c.Dst)
		assert.Equal(t, Reg(b>>5), c.Src)
		assert.True(t, c.Dst.IsVariable())
		assert.Less(t, c.Src, Reg(constants.RegisterCount))
		assert.NotEqual(t, Ret, c.Opcode())
		counts[c.Opcode()]++
	}
	// MUL takes three raw selectors, every other opcode one
	assert.Equal(t, 96, counts[Mul])
	for _, op := range []Opcode{Add, Sub, Ror, Rol, Xor} {
		assert.Equal(t, 32, counts[op], op.String())
	}
}

func TestDecodeCompact_Fields(t *testing.T) {
	// src=5 (101) dst=2 (10) opcode=6 (110)
	c := DecodeCompact(0b101_10_110)
	assert.Equal(t, Compact{RawOpcode: 6, Dst: 2, Src: 5}, c)
	assert.Equal(t, Rol, c.Opcode())
}

func TestOpcode(t *testing.T) {
	assert.Equal(t, 3, Mul.Latency())
	assert.Equal(t, 1, Mul.ALUs())
	for _, op := range []Opcode{Add, Sub, Ror, Rol, Xor} {
		assert.Equal(t, 1, op.Latency())
		assert.Equal(t, 2, op.ALUs())
	}
	assert.Equal(t, 0, Ret.Latency())
	assert.Equal(t, "opcode(9)", Opcode(9).String())
}

func TestInstruction_Validate(t *testing.T) {
	tests := []struct {
		name  string
		instr Instruction
		err   error
	}{
		{"valid add", Instruction{Opcode: Add, Dst: 3, Src: 7, C: -5}, nil},
		{"valid ret", Instruction{Opcode: Ret}, nil},
		{"sub to constant register", Instruction{Opcode: Sub, Dst: 2, Src: 6}, nil},
		{"unknown opcode", Instruction{Opcode: 7}, ErrInvalidOpcode},
		{"constant destination", Instruction{Opcode: Mul, Dst: 4}, ErrInvalidRegister},
		{"source out of range", Instruction{Opcode: Mul, Src: 8}, ErrInvalidRegister},
		{"xor self", Instruction{Opcode: Xor, Dst: 1, Src: 1}, ErrSelfConflict},
		{"sub self", Instruction{Opcode: Sub, Dst: 0, Src: 0}, ErrSelfConflict},
		{"constant on mul", Instruction{Opcode: Mul, C: 1}, ErrInvalidInstruction},
		{"ret with operands", Instruction{Opcode: Ret, Dst: 1}, ErrInvalidInstruction},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.instr.Validate()
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestUnmarshalProgram_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, ErrMissingRet},
		{"truncated", []byte{0, 0, 0}, ErrMalformedProgram},
		{"no ret", []byte{byte(Mul), 0, 1, 0}, ErrMissingRet},
		{"ret in the middle", []byte{byte(Ret), 0, 0, 0, byte(Ret), 0, 0, 0}, ErrMisplacedRet},
		{"bad register", []byte{byte(Add), 5, 0, 0, byte(Ret), 0, 0, 0}, ErrInvalidRegister},
		{"too long", make([]byte, (constants.ProgramCapacity+1)*InstructionSize), ErrProgramTooLong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalProgram(tc.data)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestProgram_Binary(t *testing.T) {
	p := Generate(1806260)
	data, err := p.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, p.Len()*InstructionSize)

	var decoded Program
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.True(t, p.Equal(&decoded))
	assert.Equal(t, p.String(), decoded.String())

	// Instructions returns a copy
	instructions := p.Instructions()
	instructions[0] = Instruction{Opcode: Ret}
	assert.NotEqual(t, Ret, p.At(0).Opcode)
	assert.Panics(t, func() { p.At(p.Len()) })
}
