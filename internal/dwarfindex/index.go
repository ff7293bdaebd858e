// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dwarfindex builds a queryable index over a program's DWARF
// debug info: a (name, tag) -> DIE index, built once by a single
// depth-first walk of the DWARF tree, plus parent lookups (used to find
// the enumeration type that owns an enumerator) and DIE-to-reference
// resolution (used to follow DW_FORM_ref* attributes).
package dwarfindex

import (
	"debug/dwarf"
	"fmt"

	"github.com/dwarfgraph/dwarfgraph/internal/core"
)

type key struct {
	name string
	tag  dwarf.Tag
}

// Candidate is one (DIE, load bias) pair returned by Iterate.
type Candidate struct {
	Entry *dwarf.Entry
	Bias  core.Address
}

// Index is a queryable name/tag index over a single *dwarf.Data.
type Index struct {
	data *dwarf.Data
	bias core.Address

	byNameTag map[key][]*dwarf.Entry
	parent    map[dwarf.Offset]dwarf.Offset
	cuFile    map[dwarf.Offset]string
	cuLang    map[dwarf.Offset]int64
	cuOf      map[dwarf.Offset]dwarf.Offset
}

// Build walks the whole DWARF tree once and returns an Index. bias is the
// load bias (runtime address - link-time address) to report for every
// candidate found in this data, as a single program image carries one
// uniform bias for all of its compile units.
func Build(data *dwarf.Data, bias core.Address) (*Index, error) {
	idx := &Index{
		data:      data,
		bias:      bias,
		byNameTag: make(map[key][]*dwarf.Entry),
		parent:    make(map[dwarf.Offset]dwarf.Offset),
		cuFile:    make(map[dwarf.Offset]string),
		cuLang:    make(map[dwarf.Offset]int64),
		cuOf:      make(map[dwarf.Offset]dwarf.Offset),
	}

	r := data.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read DWARF: %v", err)
		}
		if e == nil {
			break
		}
		if e.Tag != dwarf.TagCompileUnit {
			continue
		}
		file, _ := e.Val(dwarf.AttrName).(string)
		lang, _ := e.Val(dwarf.AttrLanguage).(int64)
		idx.cuFile[e.Offset] = file
		idx.cuLang[e.Offset] = lang
		idx.cuOf[e.Offset] = e.Offset
		idx.index(e)
		if e.Children {
			if err := idx.walk(r, file, lang, e.Offset, e.Offset); err != nil {
				return nil, err
			}
		}
	}
	return idx, nil
}

// walk consumes entries from r until the null entry that terminates the
// current sibling chain (Tag == 0), recursing into any entry that itself
// has children. parent is the offset of the entry whose children these
// are; file, lang and cu describe the owning compile unit.
func (idx *Index) walk(r *dwarf.Reader, file string, lang int64, parent, cu dwarf.Offset) error {
	for {
		e, err := r.Next()
		if err != nil {
			return fmt.Errorf("failed to read DWARF: %v", err)
		}
		if e == nil || e.Tag == 0 {
			return nil
		}
		idx.cuFile[e.Offset] = file
		idx.cuLang[e.Offset] = lang
		idx.cuOf[e.Offset] = cu
		idx.parent[e.Offset] = parent
		idx.index(e)
		if e.Children {
			if err := idx.walk(r, file, lang, e.Offset, cu); err != nil {
				return err
			}
		}
	}
}

func (idx *Index) index(e *dwarf.Entry) {
	name, ok := e.Val(dwarf.AttrName).(string)
	if !ok || name == "" {
		return
	}
	k := key{name, e.Tag}
	idx.byNameTag[k] = append(idx.byNameTag[k], e)
}

// Iterate returns every non-declaration DIE named name whose tag is in
// tags, each paired with this index's load bias.
func (idx *Index) Iterate(name string, tags ...dwarf.Tag) []Candidate {
	var out []Candidate
	for _, tag := range tags {
		for _, e := range idx.byNameTag[key{name, tag}] {
			if decl, _ := e.Val(dwarf.AttrDeclaration).(bool); decl {
				continue
			}
			out = append(out, Candidate{Entry: e, Bias: idx.bias})
		}
	}
	return out
}

// Candidates returns every DIE (declarations included) named name with
// tag tag, for a caller that needs to apply its own declaration
// filtering and scoping policy (the typegraph package's forward-
// declaration completion search does this, since picking among multiple
// candidates is the Compound/Enum Builder's job, not the index's).
func (idx *Index) Candidates(name string, tag dwarf.Tag) []*dwarf.Entry {
	return idx.byNameTag[key{name, tag}]
}

// SameCompileUnit reports whether a and b belong to the same compile
// unit.
func (idx *Index) SameCompileUnit(a, b *dwarf.Entry) bool {
	return idx.cuOf[a.Offset] == idx.cuOf[b.Offset]
}

// EntryAt resolves a DW_FORM_ref* attribute value to its DIE.
func (idx *Index) EntryAt(off dwarf.Offset) (*dwarf.Entry, error) {
	r := idx.data.Reader()
	r.Seek(off)
	e, err := r.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to read DWARF: %v", err)
	}
	if e == nil {
		return nil, fmt.Errorf("no DIE at offset %#x", off)
	}
	return e, nil
}

// Children returns e's immediate child DIEs (its grandchildren, if any,
// are not expanded: a child with its own Children flag set still owns a
// chain the caller can fetch separately via Children on that child).
func (idx *Index) Children(e *dwarf.Entry) ([]*dwarf.Entry, error) {
	if !e.Children {
		return nil, nil
	}
	r := idx.data.Reader()
	r.Seek(e.Offset)
	if _, err := r.Next(); err != nil { // re-read e itself to position the reader
		return nil, fmt.Errorf("failed to read DWARF: %v", err)
	}
	var kids []*dwarf.Entry
	for {
		kid, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read DWARF: %v", err)
		}
		if kid == nil || kid.Tag == 0 {
			return kids, nil
		}
		kids = append(kids, kid)
		if kid.Children {
			if err := r.SkipChildren(); err != nil {
				return nil, fmt.Errorf("failed to read DWARF: %v", err)
			}
		}
	}
}

// Parent returns the DIE containing e, if any (used to find the
// enumeration type that owns an enumerator DIE).
func (idx *Index) Parent(e *dwarf.Entry) (*dwarf.Entry, bool) {
	off, ok := idx.parent[e.Offset]
	if !ok {
		return nil, false
	}
	return idx.EntryAtCached(off)
}

// EntryAtCached is like EntryAt but tolerates the "no DIE" case by
// returning ok=false instead of an error, for internal lookups where a
// missing parent is not itself an error condition.
func (idx *Index) EntryAtCached(off dwarf.Offset) (*dwarf.Entry, bool) {
	e, err := idx.EntryAt(off)
	if err != nil {
		return nil, false
	}
	return e, true
}

// MatchesFilename reports whether e's owning compile unit's file matches
// filter. An empty filter matches everything.
func (idx *Index) MatchesFilename(e *dwarf.Entry, filter string) bool {
	if filter == "" {
		return true
	}
	return idx.cuFile[e.Offset] == filter
}

// Bias is the load bias this index reports for every candidate.
func (idx *Index) Bias() core.Address { return idx.bias }

// CULanguage returns the raw DW_AT_language value of e's owning compile
// unit (0, the DWARF "unknown" sentinel, if e predates any recorded CU).
func (idx *Index) CULanguage(e *dwarf.Entry) int64 { return idx.cuLang[e.Offset] }
