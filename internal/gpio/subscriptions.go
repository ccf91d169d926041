package gpio

import (
	"fmt"
	"sync"
)

type subscription struct {
	pin   Pin
	level Level
}

// subscriptions tracks active pin+level registrations for a chip.
// Safe for concurrent use.
type subscriptions struct {
	mu  sync.Mutex
	set map[subscription]struct{}
}

func (s *subscriptions) add(pin Pin, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		s.set = make(map[subscription]struct{})
	}
	key := subscription{pin: pin, level: level}
	if _, ok := s.set[key]; ok {
		return fmt.Errorf("subscribe pin %d %s: %w", pin, level, ErrAlreadySubscribed)
	}
	s.set[key] = struct{}{}
	return nil
}

// remove returns true if a registration existed.
func (s *subscriptions) remove(pin Pin, level Level) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subscription{pin: pin, level: level}
	if _, ok := s.set[key]; !ok {
		return false
	}
	delete(s.set, key)
	return true
}

func (s *subscriptions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}

func (s *subscriptions) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.set)
	s.set = nil
	return n
}
