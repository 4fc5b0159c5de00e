package frame

import "sync"

// Slot holds the most recently received frame.
//
// The receiver overwrites the slot on every frame and the writer takes a
// snapshot when a capture is requested. Stored frames are never mutated
// after Store, so the snapshot stays valid after the lock is released.
type Slot struct {
	mu    sync.Mutex
	frame *Frame
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Store replaces the held frame. A nil frame is ignored.
func (s *Slot) Store(f *Frame) {
	if f == nil {
		return
	}
	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
}

// Load returns the held frame and whether any frame has arrived yet.
func (s *Slot) Load() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.frame != nil
}
