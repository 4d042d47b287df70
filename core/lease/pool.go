package lease

import (
	"fmt"
	"net"

	"github.com/nextdhcp/nextlease/core/lease/iprange"
)

// Pool tracks which addresses of a fixed IPv4 range are allocated.
// A Pool is not safe for concurrent use; it is owned and guarded by a
// Table
type Pool struct {
	r         *iprange.IPRange
	allocated []bool
	count     int
}

// MaxPoolSize is the largest number of addresses a single pool may manage
const MaxPoolSize = 1 << 16

// NewPool returns a pool of size addresses starting at start
func NewPool(start net.IP, size int) (*Pool, error) {
	if size > MaxPoolSize {
		return nil, fmt.Errorf("pool size %d exceeds the maximum of %d addresses", size, MaxPoolSize)
	}

	r, err := iprange.New(start, size)
	if err != nil {
		return nil, err
	}

	return &Pool{
		r:         r,
		allocated: make([]bool, size),
	}, nil
}

// Allocate marks the lowest free address as allocated and returns it.
// It returns false if every address is already in use
func (p *Pool) Allocate() (net.IP, bool) {
	if p.IsFull() {
		return nil, false
	}

	for idx, used := range p.allocated {
		if used {
			continue
		}

		p.allocated[idx] = true
		p.count++

		return p.r.ByIdx(idx), true
	}

	return nil, false
}

// Release marks ip as free. Addresses that are not part of the pool or
// are not allocated are ignored
func (p *Pool) Release(ip net.IP) {
	idx, ok := p.r.IndexOf(ip)
	if !ok || !p.allocated[idx] {
		return
	}

	p.allocated[idx] = false
	p.count--
}

// isAllocated reports whether ip is currently allocated
func (p *Pool) isAllocated(ip net.IP) bool {
	idx, ok := p.r.IndexOf(ip)
	return ok && p.allocated[idx]
}

// IsFull returns true if all addresses of the pool are allocated
func (p *Pool) IsFull() bool {
	return p.count >= len(p.allocated)
}

// Size returns the number of addresses managed by the pool
func (p *Pool) Size() int {
	return len(p.allocated)
}

// Allocated returns the number of allocated addresses
func (p *Pool) Allocated() int {
	return p.count
}

// Range returns a copy of the address range served by the pool
func (p *Pool) Range() *iprange.IPRange {
	return p.r.Clone()
}
