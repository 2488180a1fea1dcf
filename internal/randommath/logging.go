package randommath

import (
	"github.com/rs/zerolog"

	"github.com/eigerco/cnr/internal/constants"
)

// Tracer logs every executed instruction together with the operand values
type Tracer struct {
	log   *zerolog.Logger
	level zerolog.Level
}

func NewTracer(log *zerolog.Logger) *Tracer {
	return &Tracer{
		log:   log,
		level: zerolog.DebugLevel,
	}
}

// Trace behaves exactly like Execute while logging each step through t
func Trace[W Word](t *Tracer, p *Program, r *[constants.RegisterCount]W) {
	width := WordBits[W]()
	for i := range p.code[:p.size] {
		op := &p.code[i]
		if op.Opcode == Ret {
			t.log.WithLevel(t.level).Msgf("%d: ret", i)
			return
		}
		dst, src := r[op.Dst], r[op.Src]
		apply(op, r, width)
		t.log.WithLevel(t.level).Msgf("%d: %s %s=0x%x %s=0x%x -> 0x%x", i, op, op.Dst, dst, op.Src, src, r[op.Dst])
	}
}
