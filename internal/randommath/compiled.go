package randommath

import "github.com/eigerco/cnr/internal/constants"

type step[W Word] func(r *[constants.RegisterCount]W)

// Compiled is a program resolved into one specialised step per instruction.
// The step sequence is identical on every call, so the indirect calls are
// always predicted; the results match Execute exactly.
type Compiled[W Word] struct {
	steps []step[W]
}

// Compile resolves p for registers of width W. Instructions after the first
// Ret are never compiled.
func Compile[W Word](p *Program) *Compiled[W] {
	width := WordBits[W]()
	c := &Compiled[W]{steps: make([]step[W], 0, p.size)}
	for _, instr := range p.code[:p.size] {
		dst, src := instr.Dst, instr.Src
		var s step[W]
		switch instr.Opcode {
		case Mul:
			s = func(r *[constants.RegisterCount]W) { r[dst] *= r[src] }
		case Add:
			imm := W(int64(instr.C))
			s = func(r *[constants.RegisterCount]W) { r[dst] += r[src] + imm }
		case Sub:
			s = func(r *[constants.RegisterCount]W) { r[dst] -= r[src] }
		case Ror:
			s = func(r *[constants.RegisterCount]W) {
				shift := uint(r[src]) % width
				r[dst] = r[dst]>>shift | r[dst]<<(width-shift)
			}
		case Rol:
			s = func(r *[constants.RegisterCount]W) {
				shift := uint(r[src]) % width
				r[dst] = r[dst]<<shift | r[dst]>>(width-shift)
			}
		case Xor:
			s = func(r *[constants.RegisterCount]W) { r[dst] ^= r[src] }
		case Ret:
			return c
		}
		c.steps = append(c.steps, s)
	}
	return c
}

// Len number of compiled steps, the final Ret excluded
func (c *Compiled[W]) Len() int {
	return len(c.steps)
}

// Execute runs every compiled step on r
func (c *Compiled[W]) Execute(r *[constants.RegisterCount]W) {
	for _, s := range c.steps {
		s(r)
	}
}
