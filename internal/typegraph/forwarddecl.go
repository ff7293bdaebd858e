// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import "debug/dwarf"

// findComplete resolves a DW_AT_declaration forward reference to its
// unique complete definition. near is the declaration DIE itself: a
// same-compile-unit match is preferred (mirroring drgn's per-module
// lookup before a global one). The global fallback only runs when
// g.filenameFilter is empty (SPEC_FULL.md §D.1), so a caller who
// restricted a lookup to one file never gets a completion pulled in
// from another. ok is false if no search settles on exactly one
// candidate; buildCompound/buildEnum treat that the same way whether
// the underlying cause was zero matches or an ambiguous one — an
// incomplete type, not a user-visible error.
func (g *Graph) findComplete(name string, tag dwarf.Tag, near *dwarf.Entry) (e *dwarf.Entry, ok bool) {
	cands := g.idx.Candidates(name, tag)

	if e, err := uniqueNonDeclaration(cands, func(cand *dwarf.Entry) bool { return g.idx.SameCompileUnit(cand, near) }); err == nil {
		return e, true
	}
	if g.filenameFilter != "" {
		return nil, false
	}
	e, err := uniqueNonDeclaration(cands, func(*dwarf.Entry) bool { return true })
	if err != nil {
		return nil, false
	}
	return e, true
}

// uniqueNonDeclaration returns the single non-declaration entry in cands
// that satisfies keep. It returns Stop if more than one candidate
// matches — an ambiguous completion search gives up the same way a
// caller's Iterate callback ends a multi-result walk early, not by
// reporting a decode failure — and NotFound if none do.
func uniqueNonDeclaration(cands []*dwarf.Entry, keep func(*dwarf.Entry) bool) (*dwarf.Entry, error) {
	var found *dwarf.Entry
	for _, cand := range cands {
		if decl, _ := cand.Val(dwarf.AttrDeclaration).(bool); decl {
			continue
		}
		if !keep(cand) {
			continue
		}
		if found != nil {
			return nil, Stop
		}
		found = cand
	}
	if found == nil {
		return nil, NotFound
	}
	return found, nil
}
