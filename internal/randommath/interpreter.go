package randommath

import (
	"math/bits"

	"github.com/eigerco/cnr/internal/constants"
)

// Word is a register width supported by the interpreter
type Word interface {
	~uint32 | ~uint64
}

// Registers is the register file of this build's width. r0-r3 carry hash
// state between calls; the caller reloads r4-r7 before every call.
type Registers = [constants.RegisterCount]Register

// Run executes p on a register file of the build-wide width
func Run(p *Program, r *Registers) {
	Execute(p, r)
}

// Execute applies the instructions of p to r in order and stops at the first
// Ret. Arithmetic wraps modulo the register width.
func Execute[W Word](p *Program, r *[constants.RegisterCount]W) {
	width := WordBits[W]()
	for i := range p.code[:p.size] {
		if !apply(&p.code[i], r, width) {
			return
		}
	}
}

// apply executes a single instruction and returns false on Ret
func apply[W Word](op *Instruction, r *[constants.RegisterCount]W, width uint) bool {
	src := r[op.Src]
	dst := &r[op.Dst]
	switch op.Opcode {
	case Mul:
		*dst *= src
	case Add:
		*dst += src + W(int64(op.C))
	case Sub:
		*dst -= src
	case Ror:
		shift := uint(src) % width
		*dst = *dst>>shift | *dst<<(width-shift)
	case Rol:
		shift := uint(src) % width
		*dst = *dst<<shift | *dst>>(width-shift)
	case Xor:
		*dst ^= src
	case Ret:
		return false
	}
	return true
}

// WordBits returns the bit width of W
func WordBits[W Word]() uint {
	var zero W
	return uint(bits.OnesCount64(uint64(^zero)))
}
