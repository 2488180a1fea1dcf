package conformance

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/eigerco/cnr/internal/crypto"
	"github.com/eigerco/cnr/pkg/log"
)

var ErrInvalidVectorFile = errors.New("invalid vector file")

// Mismatch is a single hash that differs from the vector file
type Mismatch struct {
	Height uint64
	Width  int
	Want   crypto.Hash
	Got    crypto.Hash
}

func (m Mismatch) String() string {
	return fmt.Sprintf("height %d (%d-bit): want %s, got %s", m.Height, m.Width, m.Want, m.Got)
}

// Report summarises a Check run
type Report struct {
	Checked    int
	Mismatches []Mismatch
}

// OK reports whether every checked hash matched
func (r Report) OK() bool {
	return len(r.Mismatches) == 0
}

// ParseVectors reads a vector file: groups of three lines holding a decimal
// height and the 32-bit and 64-bit hashes in hex. Blank lines are ignored.
func ParseVectors(r io.Reader) ([]Vector, error) {
	scanner := bufio.NewScanner(r)
	var (
		vectors []Vector
		fields  []string
		lineNo  int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields = append(fields, line)
		if len(fields) < 3 {
			continue
		}

		v, err := parseVector(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidVectorFile, lineNo, err)
		}
		vectors = append(vectors, v)
		fields = fields[:0]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	if len(fields) != 0 {
		return nil, fmt.Errorf("%w: truncated entry after line %d", ErrInvalidVectorFile, lineNo)
	}
	return vectors, nil
}

func parseVector(fields []string) (Vector, error) {
	height, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Vector{}, fmt.Errorf("height %q: %w", fields[0], err)
	}
	v := Vector{Height: height}
	if v.Hash32, err = parseHash(fields[1]); err != nil {
		return Vector{}, err
	}
	if v.Hash64, err = parseHash(fields[2]); err != nil {
		return Vector{}, err
	}
	return v, nil
}

func parseHash(s string) (crypto.Hash, error) {
	var h crypto.Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("hash %q: %d bytes", s, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Check recomputes every vector in r and reports the hashes that differ.
// An error is returned only for unreadable or malformed input.
func Check(r io.Reader) (Report, error) {
	vectors, err := ParseVectors(r)
	if err != nil {
		return Report{}, err
	}
	if len(vectors) == 0 {
		return Report{}, fmt.Errorf("%w: no vectors", ErrInvalidVectorFile)
	}

	var report Report
	for _, want := range vectors {
		got := Compute(want.Height)
		for _, m := range []Mismatch{
			{Height: want.Height, Width: 32, Want: want.Hash32, Got: got.Hash32},
			{Height: want.Height, Width: 64, Want: want.Hash64, Got: got.Hash64},
		} {
			report.Checked++
			if m.Want != m.Got {
				log.Conformance.Error().
					Uint64("height", m.Height).
					Int("width", m.Width).
					Stringer("want", m.Want).
					Stringer("got", m.Got).
					Msg("vector mismatch")
				report.Mismatches = append(report.Mismatches, m)
			}
		}
	}
	log.Conformance.Info().
		Int("checked", report.Checked).
		Int("failed", len(report.Mismatches)).
		Msg("vector check finished")
	return report, nil
}

// Generate writes the vectors for heights in the format Check reads
func Generate(heights []uint64, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, h := range heights {
		v := Compute(h)
		if _, err := fmt.Fprintf(bw, "%d\n%s\n%s\n", v.Height, v.Hash32, v.Hash64); err != nil {
			return fmt.Errorf("write vector %d: %w", h, err)
		}
	}
	return bw.Flush()
}
