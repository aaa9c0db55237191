package core

import (
	"slices"
	"sync"
)

// Scheduler tracks instances that need a render pass. Triggers for the same
// instance coalesce until the next flush takes it.
type Scheduler struct {
	dirty    []*Instance
	dirtySet map[*Instance]bool
	mu       sync.Mutex

	// OnNeedsWork is called when an instance is newly scheduled. Sessions
	// use it to wake their run loop.
	OnNeedsWork func()
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule marks an instance as needing a render pass. It reports whether
// the instance was newly added.
func (s *Scheduler) Schedule(inst *Instance) bool {
	added := func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.dirtySet[inst] {
			return false
		}
		if s.dirtySet == nil {
			s.dirtySet = make(map[*Instance]bool)
		}
		s.dirtySet[inst] = true
		s.dirty = append(s.dirty, inst)
		return true
	}()

	if added && s.OnNeedsWork != nil {
		s.OnNeedsWork()
	}
	return added
}

// NeedsWork reports whether any instance is scheduled.
func (s *Scheduler) NeedsWork() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0
}

// Scheduled reports whether inst is waiting for a render pass.
func (s *Scheduler) Scheduled(inst *Instance) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtySet[inst]
}

// take removes and returns the scheduled instances in mount order,
// skipping destroyed ones.
func (s *Scheduler) take() []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		return nil
	}
	slices.SortFunc(s.dirty, func(a, b *Instance) int {
		return a.order - b.order
	})
	dirty := slices.DeleteFunc(s.dirty, func(inst *Instance) bool {
		return inst.Destroyed()
	})
	s.dirty = nil
	clear(s.dirtySet)
	return dirty
}
