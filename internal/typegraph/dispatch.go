// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import (
	"debug/dwarf"
	"encoding/binary"

	"github.com/dwarfgraph/dwarfgraph/internal/dwarfindex"
)

// maxRecursionDepth bounds the dispatcher's call stack, so a cycle
// through qualifiers or typedefs with no interning opportunity in
// between still terminates instead of blowing the goroutine stack.
const maxRecursionDepth = 1000

// index is everything the dispatcher needs from a debug-info index.
// *dwarfindex.Index satisfies it; dwtest's synthetic fixtures satisfy it
// too, without needing to encode real DWARF bytes.
type index interface {
	Iterate(name string, tags ...dwarf.Tag) []dwarfindex.Candidate
	Candidates(name string, tag dwarf.Tag) []*dwarf.Entry
	SameCompileUnit(a, b *dwarf.Entry) bool
	EntryAt(off dwarf.Offset) (*dwarf.Entry, error)
	Children(e *dwarf.Entry) ([]*dwarf.Entry, error)
	Parent(e *dwarf.Entry) (*dwarf.Entry, bool)
	MatchesFilename(e *dwarf.Entry, filter string) bool
	CULanguage(e *dwarf.Entry) int64
}

// Graph owns the interner, walks the DWARF tree via the index given to
// it, and is the receiver every type builder in this package hangs off
// of. A Graph is not safe for concurrent use.
type Graph struct {
	idx       index
	wordSize  int64
	byteOrder binary.ByteOrder

	defaultLittleEndian bool
	defaultLang         Language

	// filenameFilter is the filename filter the active top-level
	// FindType/FindObject call was made with. buildCompound/buildEnum
	// read it to decide whether a forward declaration's completion
	// search may fall back from the declaring compile unit to a global
	// search (SPEC_FULL.md §D.1): only when the filter is empty, so a
	// caller who restricted a lookup to one file never gets a
	// completion pulled in from another.
	filenameFilter string

	interner *interner
	depth    int
	maxDepth int

	// arena retains every Type this Graph has built, so nothing it
	// handed out as a *Type ever becomes unreachable out from under a
	// caller even if the interner maps themselves were ever rebuilt.
	arena []*Type
}

// New creates a Graph over the DIEs idx indexes. wordSize and byteOrder
// come from the program's runtime context; defaultLang is used for a DIE
// whose owning compile unit carries no DW_AT_language (or one this
// translator doesn't recognize).
func New(idx index, wordSize int64, byteOrder binary.ByteOrder, defaultLang Language) *Graph {
	return &Graph{
		idx:                 idx,
		wordSize:            wordSize,
		byteOrder:           byteOrder,
		defaultLittleEndian: byteOrder == binary.LittleEndian,
		defaultLang:         defaultLang,
		interner:            newInterner(),
		maxDepth:            maxRecursionDepth,
	}
}

// SetMaxDepth overrides the dispatcher's recursion-depth guard. n <= 0
// is ignored.
func (g *Graph) SetMaxDepth(n int) {
	if n > 0 {
		g.maxDepth = n
	}
}

// withFilenameFilter scopes g.filenameFilter to filter for the duration
// of a top-level public call (FindType, FindObject), restoring whatever
// was active before on return. Graph isn't safe for concurrent use (see
// its doc comment), so a plain save/restore is sufficient even though
// this recurses through the whole resolve() call tree.
func (g *Graph) withFilenameFilter(filter string, f func() error) error {
	prev := g.filenameFilter
	g.filenameFilter = filter
	defer func() { g.filenameFilter = prev }()
	return f()
}

// dieLanguage derives the DIE's source language from its owning compile
// unit, coarsened to the degree this translator distinguishes (C vs C++
// vs unknown).
func (g *Graph) dieLanguage(e *dwarf.Entry) Language {
	switch g.idx.CULanguage(e) {
	case 0x0001, 0x0002, 0x000c, 0x001d, 0x0029: // DW_LANG_C89/C/C99/C11/C17
		return LangC
	case 0x0004, 0x0019, 0x001a, 0x0021: // DW_LANG_C_plus_plus and its DWARF5 revisions
		return LangCPlusPlus
	default:
		return g.defaultLang
	}
}

// resolve is the tag dispatcher: the single entry point every thunk and
// every recursive type reference goes through.
func (g *Graph) resolve(die *dwarf.Entry, canBeIncompleteArray bool) (QualType, bool, error) {
	if e, ok := g.interner.lookup(die.Offset, canBeIncompleteArray); ok {
		return QualType{Type: e.typ, Quals: e.quals}, e.isIncompleteArray, nil
	}

	g.depth++
	if g.depth > g.maxDepth {
		g.depth--
		return QualType{}, false, newError(KindRecursionError, die.Offset,
			"type resolution exceeded recursion depth %d", g.maxDepth)
	}
	defer func() { g.depth-- }()

	lang := g.dieLanguage(die)

	var (
		qt                QualType
		isIncompleteArray bool
		err               error
	)

	switch die.Tag {
	case dwarf.TagConstType:
		qt, isIncompleteArray, err = g.resolveQualified(die, QualConst, canBeIncompleteArray)
	case dwarf.TagVolatileType:
		qt, isIncompleteArray, err = g.resolveQualified(die, QualVolatile, canBeIncompleteArray)
	case dwarf.TagRestrictType:
		qt, isIncompleteArray, err = g.resolveQualified(die, QualRestrict, canBeIncompleteArray)
	case tagAtomicType:
		qt, isIncompleteArray, err = g.resolveQualified(die, QualAtomic, canBeIncompleteArray)

	case dwarf.TagBaseType:
		var t *Type
		t, err = g.buildBase(die, lang)
		qt = QualType{Type: t}

	case dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagClassType:
		var t *Type
		t, err = g.buildCompound(die, lang)
		qt = QualType{Type: t}

	case dwarf.TagEnumerationType:
		var t *Type
		t, err = g.buildEnum(die, lang)
		qt = QualType{Type: t}

	case dwarf.TagTypedef:
		qt, isIncompleteArray, err = g.buildTypedef(die, lang, canBeIncompleteArray)

	case dwarf.TagPointerType:
		var t *Type
		t, err = g.buildPointer(die, lang)
		qt = QualType{Type: t}

	case dwarf.TagArrayType:
		qt, isIncompleteArray, err = g.buildArray(die, lang, canBeIncompleteArray)

	case dwarf.TagSubroutineType, dwarf.TagSubprogram:
		var t *Type
		t, err = g.buildFunction(die, lang)
		qt = QualType{Type: t}

	case dwarf.TagUnspecifiedType:
		qt = QualType{Type: g.voidType(lang)}

	default:
		err = newError(KindOtherError, die.Offset, "unsupported DWARF tag %v", die.Tag)
	}

	if err != nil {
		return QualType{}, false, err
	}

	g.arena = append(g.arena, qt.Type)
	g.interner.insert(die.Offset, canBeIncompleteArray, entry{qt.Type, qt.Quals, isIncompleteArray})
	return qt, isIncompleteArray, nil
}

// resolveQualified ORs a qualifier DIE's bit into the qualifier set and
// recurses on DW_AT_type without the qualifier itself becoming a graph
// node.
func (g *Graph) resolveQualified(die *dwarf.Entry, q Qualifiers, canBeIncompleteArray bool) (QualType, bool, error) {
	inner, incomplete, err := g.resolveType(die, canBeIncompleteArray)
	if err != nil {
		return QualType{}, false, err
	}
	inner.Quals |= q
	return inner, incomplete, nil
}

// resolveType follows die's DW_AT_type to the referenced DIE and resolves
// it, or produces void if the attribute is absent. Qualifiers, pointers,
// typedefs, array element types, function return types and variables
// all resolve through here, so each of them treats a missing DW_AT_type
// as void; members and formal parameters read DW_AT_type themselves and
// do not get this fallback.
func (g *Graph) resolveType(die *dwarf.Entry, canBeIncompleteArray bool) (QualType, bool, error) {
	off, ok, err := g.attrRef(die, dwarf.AttrType)
	if err != nil {
		return QualType{}, false, err
	}
	if !ok {
		return QualType{Type: g.voidType(g.dieLanguage(die))}, false, nil
	}
	target, err := g.idx.EntryAt(off)
	if err != nil {
		return QualType{}, false, wrapError(KindLookupError, die.Offset, err, "failed to resolve DW_AT_type")
	}
	return g.resolve(target, canBeIncompleteArray)
}

// voidType returns a void node for lang. Void has no DIE of its own, so
// it is not interned: each call builds a new node.
func (g *Graph) voidType(lang Language) *Type {
	return &Type{Kind: KindVoid, Lang: lang}
}
