/*
Copyright (C) 2013-2014 Regents of the University of Minnesota.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package orchestra

import (
	"sync"
	"sync/atomic"
)

// StopFlag is a shared cancellation handle with an "add child" hierarchy
// (spec.md §5, §6). Cancelled is read unsynchronized by workers (an
// atomic load) and set only through PleaseStop, matching the
// teacher-adjacent original's comment that checking the flag
// unsynchronized is significantly cheaper than taking a lock on every
// poll.
type StopFlag struct {
	cancelled int32

	mu       sync.Mutex
	children []*StopFlag
}

// NewStopFlag returns a fresh, uncancelled flag.
func NewStopFlag() *StopFlag { return &StopFlag{} }

// Cancelled reports whether this flag has been told to stop.
func (s *StopFlag) Cancelled() bool { return atomic.LoadInt32(&s.cancelled) != 0 }

// AddChild registers child so that a future PleaseStop on s also stops
// child (but not the other way around).
func (s *StopFlag) AddChild(child *StopFlag) {
	s.mu.Lock()
	s.children = append(s.children, child)
	s.mu.Unlock()
}

// RemoveChild undoes a prior AddChild.
func (s *StopFlag) RemoveChild(child *StopFlag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// Reset clears the cancelled flag on s (but not on its children).
func (s *StopFlag) Reset() { atomic.StoreInt32(&s.cancelled, 0) }

// PleaseStop cancels s and every registered child, but -- as its
// original name implies -- never a parent. label identifies the caller
// for logging; it is accepted for interface parity with spec.md §6 and
// ignored beyond that.
func (s *StopFlag) PleaseStop(label string) {
	atomic.StoreInt32(&s.cancelled, 1)
	s.mu.Lock()
	kids := append([]*StopFlag(nil), s.children...)
	s.mu.Unlock()
	for _, c := range kids {
		c.PleaseStop(label)
	}
}
