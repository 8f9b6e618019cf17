package app

import "sync"

// BlockLock serializes category-block changes against gate evaluations.
// Sweeps and resolutions hold the write side; evaluations hold the read side.
type BlockLock struct {
	mu sync.RWMutex
}

// NewBlockLock creates a BlockLock.
func NewBlockLock() *BlockLock {
	return &BlockLock{}
}

// Read runs fn under the read side.
func (l *BlockLock) Read(fn func() error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn()
}

// Write runs fn under the write side.
func (l *BlockLock) Write(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}
