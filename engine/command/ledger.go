package command

import "sync/atomic"

// Ledger observes task allocations and releases. It is how tests prove every task is released
// exactly once.
type Ledger interface {
	Allocated(k Kind)
	Released(k Kind)
	DoubleReleased(k Kind)
}

// Counter is a Ledger that counts events per kind. The zero value is ready to use and safe for
// concurrent use.
type Counter struct {
	allocated      [kindCount]atomic.Int64
	released       [kindCount]atomic.Int64
	doubleReleased [kindCount]atomic.Int64
}

var _ Ledger = &Counter{}

func (c *Counter) Allocated(k Kind)      { c.allocated[k].Add(1) }
func (c *Counter) Released(k Kind)       { c.released[k].Add(1) }
func (c *Counter) DoubleReleased(k Kind) { c.doubleReleased[k].Add(1) }

// Allocations returns the number of tasks of kind k created so far.
func (c *Counter) Allocations(k Kind) int64 { return c.allocated[k].Load() }

// Releases returns the number of tasks of kind k released so far.
func (c *Counter) Releases(k Kind) int64 { return c.released[k].Load() }

// Outstanding returns allocations minus releases over all kinds.
func (c *Counter) Outstanding() int64 {
	var n int64
	for k := range c.allocated {
		n += c.allocated[k].Load() - c.released[k].Load()
	}
	return n
}

// DoubleReleases returns the number of repeated releases over all kinds.
func (c *Counter) DoubleReleases() int64 {
	var n int64
	for k := range c.doubleReleased {
		n += c.doubleReleased[k].Load()
	}
	return n
}

// Total returns the number of tasks allocated over all kinds.
func (c *Counter) Total() int64 {
	var n int64
	for k := range c.allocated {
		n += c.allocated[k].Load()
	}
	return n
}
