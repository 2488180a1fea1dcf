// Package native compares this implementation with a reference shared
// library exposing the following C symbols:
//
//	int64_t cnr_generate(uint64_t height, uint8_t *out, size_t out_len);
//	void    cnr_execute32(const uint8_t *code, size_t len, uint32_t regs[8]);
//	void    cnr_execute64(const uint8_t *code, size_t len, uint64_t regs[8]);
//
// Programs cross the boundary in the four byte per instruction encoding of
// randommath.Program. cnr_generate returns the number of bytes written or a
// negative value on failure.
package native

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/eigerco/cnr/internal/constants"
	"github.com/eigerco/cnr/internal/randommath"
	"github.com/eigerco/cnr/pkg/conformance"
	"github.com/eigerco/cnr/pkg/log"
)

// EnvLibraryPath names the environment variable holding the library path
const EnvLibraryPath = "CNR_REFERENCE_LIB"

const maxEncoding = constants.ProgramCapacity * randommath.InstructionSize

var (
	ErrLibrary  = errors.New("reference library unusable")
	ErrDiverged = errors.New("reference library diverged")
)

// Library is a loaded reference implementation
type Library struct {
	handle uintptr

	// pointers are passed as uintptr because purego on ARM64 doesn't support slices
	generate  func(height uint64, out uintptr, outLen uint64) int64
	execute32 func(code uintptr, codeLen uint64, regs uintptr)
	execute64 func(code uintptr, codeLen uint64, regs uintptr)
}

// Open loads the shared library at path and resolves every symbol
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLibrary, err)
	}

	l := &Library{handle: handle}
	for name, fptr := range map[string]any{
		"cnr_generate":  &l.generate,
		"cnr_execute32": &l.execute32,
		"cnr_execute64": &l.execute64,
	} {
		sym, err := purego.Dlsym(handle, name)
		if err != nil {
			_ = purego.Dlclose(handle)
			return nil, fmt.Errorf("%w: symbol %s: %w", ErrLibrary, name, err)
		}
		purego.RegisterFunc(fptr, sym)
	}
	return l, nil
}

// Close unloads the library
func (l *Library) Close() error {
	return purego.Dlclose(l.handle)
}

// Generate asks the library for the program of height
func (l *Library) Generate(height uint64) (*randommath.Program, error) {
	out := make([]byte, maxEncoding)
	n := l.generate(height, uintptr(unsafe.Pointer(&out[0])), uint64(len(out)))
	runtime.KeepAlive(out)
	if n < 0 || n > int64(len(out)) {
		return nil, fmt.Errorf("%w: cnr_generate returned %d", ErrLibrary, n)
	}
	p, err := randommath.UnmarshalProgram(out[:n])
	if err != nil {
		return nil, fmt.Errorf("%w: height %d: %w", ErrLibrary, height, err)
	}
	return p, nil
}

// Execute32 runs p in the library at 32-bit width
func (l *Library) Execute32(p *randommath.Program, r *[constants.RegisterCount]uint32) {
	code := p.Bytes()
	l.execute32(uintptr(unsafe.Pointer(&code[0])), uint64(len(code)), uintptr(unsafe.Pointer(r)))
	runtime.KeepAlive(code)
}

// Execute64 runs p in the library at 64-bit width
func (l *Library) Execute64(p *randommath.Program, r *[constants.RegisterCount]uint64) {
	code := p.Bytes()
	l.execute64(uintptr(unsafe.Pointer(&code[0])), uint64(len(code)), uintptr(unsafe.Pointer(r)))
	runtime.KeepAlive(code)
}

// Compare checks that the library generates the same program for height and
// that executing it from the conformance seed yields the same registers at
// both widths
func Compare(l *Library, height uint64) error {
	want := randommath.Generate(height)
	got, err := l.Generate(height)
	if err != nil {
		return err
	}
	if !want.Equal(got) {
		return fmt.Errorf("%w: program for height %d: want %s, got %s",
			ErrDiverged, height, want.Fingerprint(), got.Fingerprint())
	}

	r32 := conformance.SeedRegisters[uint32](height)
	n32 := r32
	randommath.Execute(want, &r32)
	l.Execute32(want, &n32)
	if r32 != n32 {
		return fmt.Errorf("%w: 32-bit registers for height %d: want %x, got %x", ErrDiverged, height, r32, n32)
	}

	r64 := conformance.SeedRegisters[uint64](height)
	n64 := r64
	randommath.Execute(want, &r64)
	l.Execute64(want, &n64)
	if r64 != n64 {
		return fmt.Errorf("%w: 64-bit registers for height %d: want %x, got %x", ErrDiverged, height, r64, n64)
	}

	log.Conformance.Debug().Uint64("height", height).Msg("reference library agrees")
	return nil
}
