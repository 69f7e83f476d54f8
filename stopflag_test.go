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

import "testing"

func TestStopFlagBasic(t *testing.T) {
	s := NewStopFlag()
	if s.Cancelled() {
		t.Fatal("fresh flag should not be cancelled")
	}
	s.PleaseStop("test")
	if !s.Cancelled() {
		t.Error("PleaseStop did not set cancelled")
	}
	s.Reset()
	if s.Cancelled() {
		t.Error("Reset did not clear cancelled")
	}
}

func TestStopFlagStopsChildrenNotParent(t *testing.T) {
	parent := NewStopFlag()
	child := NewStopFlag()
	parent.AddChild(child)

	parent.PleaseStop("test")
	if !child.Cancelled() {
		t.Error("PleaseStop on parent should cancel child")
	}

	parent.Reset()
	child.Reset()
	child.PleaseStop("test")
	if parent.Cancelled() {
		t.Error("PleaseStop on child must not cancel parent")
	}
}

func TestStopFlagRemoveChild(t *testing.T) {
	parent := NewStopFlag()
	child := NewStopFlag()
	parent.AddChild(child)
	parent.RemoveChild(child)

	parent.PleaseStop("test")
	if child.Cancelled() {
		t.Error("removed child should not be cancelled by parent")
	}
}
