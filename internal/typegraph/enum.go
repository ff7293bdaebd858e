// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import "debug/dwarf"

// buildEnum builds an enumeration type. Its DW_AT_type names the
// underlying (compatible) integer type; when absent, one is fabricated
// with the name "<unknown>" so callers always get a non-nil Compatible
// type to format enumerator values with.
func (g *Graph) buildEnum(die *dwarf.Entry, lang Language) (*Type, error) {
	name, _, err := g.attrString(die, dwarf.AttrName)
	if err != nil {
		return nil, err
	}
	isDecl, _, err := g.attrFlag(die, dwarf.AttrDeclaration)
	if err != nil {
		return nil, err
	}
	if isDecl {
		if complete, ok := g.findComplete(name, die.Tag, die); ok && complete.Offset != die.Offset {
			return g.buildEnumComplete(complete, lang, name)
		}
		return &Type{Kind: KindEnum, Lang: lang, Name: name, Complete: false}, nil
	}
	return g.buildEnumComplete(die, lang, name)
}

func (g *Graph) buildEnumComplete(die *dwarf.Entry, lang Language, name string) (*Type, error) {
	enumerators, anyNegative, err := g.buildEnumerators(die)
	if err != nil {
		return nil, err
	}

	compatible, err := g.enumCompatibleType(die, lang, anyNegative)
	if err != nil {
		return nil, err
	}

	size, _, err := g.attrUint(die, dwarf.AttrByteSize)
	if err != nil {
		return nil, err
	}

	return &Type{
		Kind:        KindEnum,
		Lang:        lang,
		Name:        name,
		ByteSize:    int64(size),
		Complete:    true,
		Compatible:  compatible,
		Enumerators: enumerators,
	}, nil
}

// enumCompatibleType resolves the enum's underlying integer type from its
// own DW_AT_type, or — for producers that omit it — fabricates an Int of
// DW_AT_byte_size bytes named "<unknown>", signed iff any enumerator
// carried a negative value.
func (g *Graph) enumCompatibleType(die *dwarf.Entry, lang Language, anyNegative bool) (*Type, error) {
	off, ok, err := g.attrRef(die, dwarf.AttrType)
	if err != nil {
		return nil, err
	}
	if !ok {
		size, _, serr := g.attrUint(die, dwarf.AttrByteSize)
		if serr != nil {
			return nil, serr
		}
		return &Type{Kind: KindInt, Lang: lang, Name: "<unknown>", ByteSize: int64(size), Signed: anyNegative}, nil
	}
	target, err := g.idx.EntryAt(off)
	if err != nil {
		return nil, wrapError(KindLookupError, die.Offset, err, "failed to resolve enum compatible type")
	}
	qt, _, err := g.resolve(target, false)
	if err != nil {
		return nil, err
	}
	if qt.Type.Kind != KindInt {
		return nil, newError(KindOtherError, die.Offset, "enum compatible type must be int, got %v", qt.Type.Kind)
	}
	return qt.Type, nil
}

// buildEnumerators parses die's DW_TAG_enumerator children in order. Each
// enumerator's signedness is determined independently from the form
// DW_AT_const_value was encoded with (sdata/implicit_const vs.
// udata/dataN); anyNegative reports whether any enumerator's signed value
// was negative, which the fabricated-compatible-type fallback needs.
func (g *Graph) buildEnumerators(die *dwarf.Entry) (enumerators []Enumerator, anyNegative bool, err error) {
	kids, err := g.idx.Children(die)
	if err != nil {
		return nil, false, wrapError(KindLookupError, die.Offset, err, "failed to read enumerators")
	}

	var out []Enumerator
	for _, kid := range kids {
		if kid.Tag != dwarf.TagEnumerator {
			continue
		}
		name, _, err := g.attrString(kid, dwarf.AttrName)
		if err != nil {
			return nil, false, err
		}
		val, signedForm, ok, err := g.attrConstValue(kid, dwarf.AttrConstValue)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, newError(KindOtherError, kid.Offset, "enumerator %q has no DW_AT_const_value", name)
		}
		if signedForm && val < 0 {
			anyNegative = true
		}
		out = append(out, Enumerator{Name: name, Signed: signedForm, SVal: val, UVal: uint64(val)})
	}
	return out, anyNegative, nil
}
