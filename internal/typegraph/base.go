// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import "debug/dwarf"

// buildBase builds a base (leaf scalar) type. A DW_TAG_base_type's
// DW_AT_encoding says which of Bool/Int/Float/Complex it becomes; its
// DW_AT_byte_size is required.
func (g *Graph) buildBase(die *dwarf.Entry, lang Language) (*Type, error) {
	name, _, err := g.attrString(die, dwarf.AttrName)
	if err != nil {
		return nil, err
	}
	size, ok, err := g.attrUint(die, dwarf.AttrByteSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(KindOtherError, die.Offset, "base type has no DW_AT_byte_size")
	}
	enc, ok, err := g.attrUint(die, dwarf.AttrEncoding)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(KindOtherError, die.Offset, "base type has no DW_AT_encoding")
	}

	switch enc {
	case ateBoolean:
		return &Type{Kind: KindBool, Lang: lang, Name: name, ByteSize: int64(size)}, nil

	case ateFloat:
		return &Type{Kind: KindFloat, Lang: lang, Name: name, ByteSize: int64(size)}, nil

	case ateComplexFloat:
		real, err := g.complexRealType(die, lang, size)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindComplex, Lang: lang, Name: name, ByteSize: int64(size), RealType: real}, nil

	case ateSigned:
		return &Type{Kind: KindInt, Lang: lang, Name: name, ByteSize: int64(size), Signed: true}, nil
	case ateSignedChar:
		return &Type{Kind: KindInt, Lang: lang, Name: name, ByteSize: int64(size), Signed: true, IsChar: true}, nil

	case ateUnsigned:
		return &Type{Kind: KindInt, Lang: lang, Name: name, ByteSize: int64(size), Signed: false}, nil
	case ateUnsignedChar:
		return &Type{Kind: KindInt, Lang: lang, Name: name, ByteSize: int64(size), Signed: false, IsChar: true}, nil

	default:
		return nil, newError(KindOtherError, die.Offset, "unsupported DW_AT_encoding %#x", enc)
	}
}

// complexRealType resolves a DW_ATE_complex_float base type's child
// DW_AT_type, the real (and, by convention, imaginary) component type.
// The DWARF spec requires it to be a float or integer base type; a
// producer that omits DW_AT_type instead gets a fabricated float of
// half the complex's total size, matching the common two-equal-halves
// layout.
func (g *Graph) complexRealType(die *dwarf.Entry, lang Language, size uint64) (*Type, error) {
	off, ok, err := g.attrRef(die, dwarf.AttrType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Type{Kind: KindFloat, Lang: lang, Name: "float component", ByteSize: int64(size) / 2}, nil
	}
	target, err := g.idx.EntryAt(off)
	if err != nil {
		return nil, wrapError(KindLookupError, die.Offset, err, "failed to resolve complex component type")
	}
	qt, _, err := g.resolve(target, false)
	if err != nil {
		return nil, err
	}
	if qt.Type.Kind != KindFloat && qt.Type.Kind != KindInt {
		return nil, newError(KindOtherError, die.Offset, "complex component type must be float or int, got %v", qt.Type.Kind)
	}
	return qt.Type, nil
}
