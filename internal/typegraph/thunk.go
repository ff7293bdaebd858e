// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import "debug/dwarf"

// Thunk is C2, the Lazy Type Thunk: a deferred type reference, used
// everywhere a member or parameter names its type. Resolving a compound
// type's members eagerly, inline with building the compound type itself,
// would deadlock on a self-referential struct (one whose member is a
// pointer back to the struct) because the compound type would not yet be
// interned when its own member tried to resolve it. A Thunk breaks that:
// the compound Type is interned first, and each member's type is only
// resolved the first time something asks for it.
type Thunk struct {
	g                    *Graph
	die                  *dwarf.Entry
	canBeIncompleteArray bool

	done              bool
	qt                QualType
	isIncompleteArray bool
	err               error
}

func newThunk(g *Graph, die *dwarf.Entry, canBeIncompleteArray bool) *Thunk {
	return &Thunk{g: g, die: die, canBeIncompleteArray: canBeIncompleteArray}
}

// Resolve evaluates the thunk on first use and caches the result; later
// calls return the cached outcome without walking the DIE again.
func (t *Thunk) Resolve() (QualType, bool, error) {
	if !t.done {
		t.qt, t.isIncompleteArray, t.err = t.g.resolve(t.die, t.canBeIncompleteArray)
		t.done = true
	}
	return t.qt, t.isIncompleteArray, t.err
}

// Type is a convenience wrapper around Resolve for callers that don't
// care about the incomplete-array flag (most members and all parameters).
func (t *Thunk) Type() (QualType, error) {
	qt, _, err := t.Resolve()
	return qt, err
}
