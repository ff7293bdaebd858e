// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dwtest builds small, synthetic DWARF trees in memory for
// testing internal/typegraph, grounded on the same offset-keyed-map
// indexing approach internal/dwarfindex uses over real debug info.
// debug/dwarf's Entry and Field types are plain structs with exported
// fields, so test fixtures can be built directly without encoding real
// .debug_info byte sections.
package dwtest

import (
	"debug/dwarf"
	"fmt"

	"github.com/dwarfgraph/dwarfgraph/internal/core"
	"github.com/dwarfgraph/dwarfgraph/internal/dwarfindex"
)

// Builder accumulates a synthetic DWARF tree and exposes the same
// queries internal/dwarfindex.Index does, so a *Builder can stand in for
// one anywhere internal/typegraph consumes an index.
type Builder struct {
	next      dwarf.Offset
	entries   map[dwarf.Offset]*dwarf.Entry
	children  map[dwarf.Offset][]*dwarf.Entry
	parent    map[dwarf.Offset]dwarf.Offset
	cuOf      map[dwarf.Offset]dwarf.Offset
	cuFile    map[dwarf.Offset]string
	cuLang    map[dwarf.Offset]int64
	byNameTag map[nameTagKey][]*dwarf.Entry
	bias      core.Address
}

type nameTagKey struct {
	name string
	tag  dwarf.Tag
}

// New returns an empty Builder. bias is the load bias Iterate reports for
// every candidate, mirroring dwarfindex.Index.Bias.
func New(bias core.Address) *Builder {
	return &Builder{
		next:      1,
		entries:   make(map[dwarf.Offset]*dwarf.Entry),
		children:  make(map[dwarf.Offset][]*dwarf.Entry),
		parent:    make(map[dwarf.Offset]dwarf.Offset),
		cuOf:      make(map[dwarf.Offset]dwarf.Offset),
		cuFile:    make(map[dwarf.Offset]string),
		cuLang:    make(map[dwarf.Offset]int64),
		byNameTag: make(map[nameTagKey][]*dwarf.Entry),
		bias:      bias,
	}
}

// CompileUnit adds a root DW_TAG_compile_unit entry named file, carrying
// DW_AT_language lang.
func (b *Builder) CompileUnit(file string, lang int64) *dwarf.Entry {
	e := b.alloc(dwarf.TagCompileUnit, dwarf.Field{Attr: dwarf.AttrName, Val: file}, dwarf.Field{Attr: dwarf.AttrLanguage, Val: lang})
	b.cuOf[e.Offset] = e.Offset
	b.cuFile[e.Offset] = file
	b.cuLang[e.Offset] = lang
	b.index(e)
	return e
}

// Add adds a root-level entry (typically a top-level type or variable)
// under cu.
func (b *Builder) Add(cu *dwarf.Entry, tag dwarf.Tag, fields ...dwarf.Field) *dwarf.Entry {
	return b.AddChild(cu, tag, fields...)
}

// AddChild adds a new entry as a child of parent.
func (b *Builder) AddChild(parent *dwarf.Entry, tag dwarf.Tag, fields ...dwarf.Field) *dwarf.Entry {
	e := b.alloc(tag, fields...)
	parent.Children = true
	b.children[parent.Offset] = append(b.children[parent.Offset], e)
	b.parent[e.Offset] = parent.Offset
	cu := b.cuOf[parent.Offset]
	b.cuOf[e.Offset] = cu
	b.cuFile[e.Offset] = b.cuFile[cu]
	b.cuLang[e.Offset] = b.cuLang[cu]
	b.index(e)
	return e
}

func (b *Builder) alloc(tag dwarf.Tag, fields ...dwarf.Field) *dwarf.Entry {
	e := &dwarf.Entry{Offset: b.next, Tag: tag, Field: fields}
	b.next++
	b.entries[e.Offset] = e
	return e
}

func (b *Builder) index(e *dwarf.Entry) {
	name, ok := e.Val(dwarf.AttrName).(string)
	if !ok || name == "" {
		return
	}
	k := nameTagKey{name, e.Tag}
	b.byNameTag[k] = append(b.byNameTag[k], e)
}

// Iterate matches dwarfindex.Index.Iterate's signature and behavior.
func (b *Builder) Iterate(name string, tags ...dwarf.Tag) []dwarfindex.Candidate {
	var out []dwarfindex.Candidate
	for _, tag := range tags {
		for _, e := range b.byNameTag[nameTagKey{name, tag}] {
			if decl, _ := e.Val(dwarf.AttrDeclaration).(bool); decl {
				continue
			}
			out = append(out, dwarfindex.Candidate{Entry: e, Bias: b.bias})
		}
	}
	return out
}

// Candidates matches dwarfindex.Index.Candidates.
func (b *Builder) Candidates(name string, tag dwarf.Tag) []*dwarf.Entry {
	return b.byNameTag[nameTagKey{name, tag}]
}

// SameCompileUnit matches dwarfindex.Index.SameCompileUnit.
func (b *Builder) SameCompileUnit(a, c *dwarf.Entry) bool {
	return b.cuOf[a.Offset] == b.cuOf[c.Offset]
}

// EntryAt matches dwarfindex.Index.EntryAt.
func (b *Builder) EntryAt(off dwarf.Offset) (*dwarf.Entry, error) {
	e, ok := b.entries[off]
	if !ok {
		return nil, fmt.Errorf("no DIE at offset %#x", off)
	}
	return e, nil
}

// Children matches dwarfindex.Index.Children.
func (b *Builder) Children(e *dwarf.Entry) ([]*dwarf.Entry, error) {
	return b.children[e.Offset], nil
}

// Parent matches dwarfindex.Index.Parent.
func (b *Builder) Parent(e *dwarf.Entry) (*dwarf.Entry, bool) {
	off, ok := b.parent[e.Offset]
	if !ok {
		return nil, false
	}
	return b.EntryAtCached(off)
}

// EntryAtCached mirrors dwarfindex.Index.EntryAtCached.
func (b *Builder) EntryAtCached(off dwarf.Offset) (*dwarf.Entry, bool) {
	e, ok := b.entries[off]
	return e, ok
}

// MatchesFilename matches dwarfindex.Index.MatchesFilename.
func (b *Builder) MatchesFilename(e *dwarf.Entry, filter string) bool {
	if filter == "" {
		return true
	}
	return b.cuFile[e.Offset] == filter
}

// CULanguage matches dwarfindex.Index.CULanguage.
func (b *Builder) CULanguage(e *dwarf.Entry) int64 { return b.cuLang[e.Offset] }

// Ref returns a DW_FORM_ref*-shaped attribute value pointing at target,
// for building fields like {dwarf.AttrType, dwtest.Ref(target)}.
func Ref(target *dwarf.Entry) dwarf.Offset { return target.Offset }
