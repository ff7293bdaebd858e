// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import "debug/dwarf"

// entry is what the interner stores per DIE: the built node, the
// qualifier overlay collected on the way to it, and whether building it
// took the "this may be an incomplete array" path.
type entry struct {
	typ               *Type
	quals             Qualifiers
	isIncompleteArray bool
}

// interner makes resolve idempotent per DIE, and gives cyclic type
// graphs (a struct containing a pointer to itself) a place to
// terminate, by publishing a DIE's Type before its members' or
// parameters' types are resolved.
//
// Two maps are kept because an array DIE can be legitimately resolved two
// different ways depending on the caller's policy toward a trailing
// flexible array member: as a true incomplete array when it's reached as
// a standalone type, or as a zero-length array when it's reached as a
// non-final struct member. Caching both under one key would let the
// wrong interpretation leak to the other caller.
type interner struct {
	primary  map[dwarf.Offset]entry // canBeIncompleteArray == true was used to build this entry
	nonArray map[dwarf.Offset]entry // canBeIncompleteArray == false was used to build this entry
}

func newInterner() *interner {
	return &interner{
		primary:  make(map[dwarf.Offset]entry),
		nonArray: make(map[dwarf.Offset]entry),
	}
}

// lookup checks the primary map first; if the cached entry there is an
// incomplete array but the caller cannot accept one, fall back to the
// non-array map instead of returning it. A caller that cannot accept an
// incomplete array also finds entries built under that policy in the
// non-array map when the primary map has none.
func (in *interner) lookup(off dwarf.Offset, canBeIncompleteArray bool) (entry, bool) {
	e, ok := in.primary[off]
	if !ok {
		if !canBeIncompleteArray {
			alt, ok := in.nonArray[off]
			return alt, ok
		}
		return entry{}, false
	}
	if !canBeIncompleteArray && e.isIncompleteArray {
		alt, ok := in.nonArray[off]
		return alt, ok
	}
	return e, true
}

// insert records a freshly built node under whichever map matches the
// policy it was built with.
func (in *interner) insert(off dwarf.Offset, canBeIncompleteArray bool, e entry) {
	if canBeIncompleteArray {
		in.primary[off] = e
	} else {
		in.nonArray[off] = e
	}
}
