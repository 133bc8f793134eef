package db

import (
	"crypto/sha256"
	"sync"

	"github.com/chazu/moot/compiler"
	"github.com/chazu/moot/vm"
)

// VerbCache memoizes compiled verb programs, keyed by a digest of the
// source text. Programs are immutable, so one compilation serves every
// task; editing a verb changes the source and therefore the key, and
// stale entries age out with the next Prune.
type VerbCache struct {
	mu    sync.Mutex
	progs map[[sha256.Size]byte]*vm.Program
}

// NewVerbCache creates an empty cache.
func NewVerbCache() *VerbCache {
	return &VerbCache{progs: make(map[[sha256.Size]byte]*vm.Program)}
}

// Get returns the compiled program for source, compiling on a miss.
func (c *VerbCache) Get(source string) (*vm.Program, error) {
	key := sha256.Sum256([]byte(source))
	c.mu.Lock()
	prog, ok := c.progs[key]
	c.mu.Unlock()
	if ok {
		return prog, nil
	}
	prog, err := compiler.Compile(source)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.progs[key] = prog
	c.mu.Unlock()
	return prog, nil
}

// Prune empties the cache; callers use it after bulk source changes.
func (c *VerbCache) Prune() {
	c.mu.Lock()
	c.progs = make(map[[sha256.Size]byte]*vm.Program)
	c.mu.Unlock()
}

// Len reports the number of cached programs.
func (c *VerbCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.progs)
}
