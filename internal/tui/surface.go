package tui

import (
	"sync/atomic"

	"github.com/matheus3301/mchat/internal/core"
)

// Surface collects dirty regions from any goroutine and wakes the UI loop.
type Surface struct {
	dirty atomic.Uint32
	wake  chan struct{}
}

// NewSurface creates a surface with everything dirty.
func NewSurface() *Surface {
	s := &Surface{wake: make(chan struct{}, 1)}
	s.dirty.Store(uint32(core.RegionAll))
	return s
}

// SetDirty marks r for redraw.
func (s *Surface) SetDirty(r core.Region) {
	if r == 0 {
		return
	}
	s.dirty.Or(uint32(r))
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Take returns and clears the dirty regions.
func (s *Surface) Take() core.Region {
	return core.Region(s.dirty.Swap(0))
}

// Wake is signalled after SetDirty.
func (s *Surface) Wake() <-chan struct{} { return s.wake }
