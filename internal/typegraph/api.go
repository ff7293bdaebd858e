// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import (
	"debug/dwarf"
	"fmt"

	"github.com/dwarfgraph/dwarfgraph/internal/core"
	"github.com/dwarfgraph/dwarfgraph/internal/dwarfindex"
)

// TypeTag is the subset of DWARF type tags find_type is willing to match,
// named the way a caller thinks about them rather than by DWARF mnemonic.
type TypeTag uint8

const (
	TagStruct TypeTag = 1 << iota
	TagUnion
	TagClass
	TagEnum
	TagTypedef
	TagBase
)

const TagAnyType = TagStruct | TagUnion | TagClass | TagEnum | TagTypedef | TagBase

func (t TypeTag) dwarfTags() []dwarf.Tag {
	var out []dwarf.Tag
	if t&TagStruct != 0 {
		out = append(out, dwarf.TagStructType)
	}
	if t&TagUnion != 0 {
		out = append(out, dwarf.TagUnionType)
	}
	if t&TagClass != 0 {
		out = append(out, dwarf.TagClassType)
	}
	if t&TagEnum != 0 {
		out = append(out, dwarf.TagEnumerationType)
	}
	if t&TagTypedef != 0 {
		out = append(out, dwarf.TagTypedef)
	}
	if t&TagBase != 0 {
		out = append(out, dwarf.TagBaseType)
	}
	return out
}

// FindType resolves every DIE named name whose tag is in tags and whose
// owning compile unit matches filename (empty filename matches any),
// returning one QualType per match. It is the caller-facing entry point
// into C4's dispatcher: every type in the returned graph is fully
// interned and safe to retain past this call.
func (g *Graph) FindType(name, filename string, tags TypeTag) ([]QualType, error) {
	var out []QualType
	err := g.withFilenameFilter(filename, func() error {
		for _, cand := range g.idx.Iterate(name, tags.dwarfTags()...) {
			if !g.idx.MatchesFilename(cand.Entry, filename) {
				continue
			}
			qt, _, err := g.resolve(cand.Entry, true)
			if err != nil {
				return err
			}
			out = append(out, qt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, NotFound
	}
	return out, nil
}

// Open builds a Graph over proc's DWARF data. It is the usual entry point
// for a command-line tool: parse the binary with core.Open, index it with
// dwarfindex.Build, then construct the type graph over both.
func Open(proc *core.Process, defaultLang Language) (*Graph, error) {
	data, err := proc.DWARF()
	if err != nil {
		return nil, fmt.Errorf("failed to read DWARF data: %v", err)
	}
	idx, err := dwarfindex.Build(data, core.Address(proc.StaticBase()))
	if err != nil {
		return nil, fmt.Errorf("failed to index DWARF data: %v", err)
	}
	return New(idx, proc.WordSize(), proc.ByteOrder(), defaultLang), nil
}
