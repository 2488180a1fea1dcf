package store

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/eigerco/cnr/internal/randommath"
	"github.com/eigerco/cnr/pkg/db"
	"github.com/eigerco/cnr/pkg/db/pebble"
	"github.com/eigerco/cnr/pkg/log"
)

var (
	ErrCorruptProgram = errors.New("stored program is corrupt")
	ErrProgramsClosed = errors.New("program store is closed")
)

const (
	defaultCacheEntries = 4096
	// a program never exceeds ProgramCapacity instructions
	programCost = 1
)

// Programs keeps generated programs by height. Lookups hit an in-memory cache
// first, then the persistent store; a miss generates the program and writes
// it back to both.
type Programs struct {
	db       db.KVStore
	cache    *ristretto.Cache[uint64, *randommath.Program]
	generate func(height uint64) *randommath.Program
	closed   atomic.Bool
}

// NewPrograms creates a program store on top of the given KVStore holding at
// most cacheEntries programs in memory (a default is used for zero)
func NewPrograms(kv db.KVStore, cacheEntries int64) (*Programs, error) {
	if cacheEntries <= 0 {
		cacheEntries = defaultCacheEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, *randommath.Program]{
		NumCounters:        cacheEntries * 10,
		MaxCost:            cacheEntries * programCost,
		BufferItems:        64,
		// costs count entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create program cache: %w", err)
	}
	return &Programs{
		db:       kv,
		cache:    cache,
		generate: randommath.Generate,
	}, nil
}

// Get returns the program for a height
func (p *Programs) Get(height uint64) (*randommath.Program, error) {
	if p.closed.Load() {
		return nil, ErrProgramsClosed
	}
	if prog, ok := p.cache.Get(height); ok {
		return prog, nil
	}

	prog, err := p.load(height)
	switch {
	case err == nil:
		p.cache.Set(height, prog, programCost)
		return prog, nil
	case errors.Is(err, ErrCorruptProgram):
		log.Store.Warn().Err(err).Uint64("height", height).Msg("regenerating corrupt program")
	case !errors.Is(err, pebble.ErrNotFound):
		return nil, err
	}

	prog = p.generate(height)
	if err := p.db.Put(makeKey(prefixProgram, height), prog.Bytes()); err != nil {
		return nil, fmt.Errorf("store program: %w", err)
	}
	p.cache.Set(height, prog, programCost)
	return prog, nil
}

// load reads a persisted program, it returns pebble.ErrNotFound when the
// height was never stored
func (p *Programs) load(height uint64) (*randommath.Program, error) {
	b, err := p.db.Get(makeKey(prefixProgram, height))
	if err != nil {
		return nil, err
	}
	prog, err := randommath.UnmarshalProgram(b)
	if err != nil {
		return nil, fmt.Errorf("%w: height %d: %w", ErrCorruptProgram, height, err)
	}
	return prog, nil
}

// Prefetch generates and persists programs for every height in [from, to)
// in a single batch, heights already stored are skipped
func (p *Programs) Prefetch(from, to uint64) error {
	if p.closed.Load() {
		return ErrProgramsClosed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	added := 0
	for h := from; h < to; h++ {
		if _, err := p.load(h); err == nil {
			continue
		}
		if err := batch.Put(makeKey(prefixProgram, h), p.generate(h).Bytes()); err != nil {
			return fmt.Errorf("store program %d: %w", h, err)
		}
		added++
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf(ErrFailedBatchCommit, err)
	}
	log.Store.Debug().Uint64("from", from).Uint64("to", to).Int("added", added).Msg("prefetched programs")
	return nil
}

// Heights lists every persisted height in ascending order
func (p *Programs) Heights() ([]uint64, error) {
	if p.closed.Load() {
		return nil, ErrProgramsClosed
	}

	iter, err := p.db.NewIterator([]byte{prefixProgram}, []byte{prefixProgram + 1})
	if err != nil {
		return nil, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	var heights []uint64
	for iter.Next() {
		h, ok := heightFromKey(iter.Key())
		if !ok {
			log.Store.Warn().Hex("key", iter.Key()).Msg("skipping malformed program key")
			continue
		}
		heights = append(heights, h)
	}
	return heights, nil
}

// Delete removes a height from both the cache and the persistent store
func (p *Programs) Delete(height uint64) error {
	if p.closed.Load() {
		return ErrProgramsClosed
	}
	p.cache.Del(height)
	return p.db.Delete(makeKey(prefixProgram, height))
}

// Close releases the cache and closes the underlying store
func (p *Programs) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cache.Close()
	return p.db.Close()
}
