// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import "debug/dwarf"

// DWARF tag/attribute numbers not exposed as named constants by the
// debug/dwarf package in every Go release this module targets. Defined
// the same way the teacher defines its own out-of-band attribute
// constants (e.g. AttrGoKind): as raw values straight from the DWARF
// spec, scoped to this package.
const (
	tagAtomicType dwarf.Tag = 0x47 // DW_TAG_atomic_type

	attrDataBitOffset dwarf.Attr = 0x6b // DW_AT_data_bit_offset
)

// DW_ATE_* encoding values (DWARF spec, not exposed by debug/dwarf).
const (
	ateBoolean      = 0x02
	ateComplexFloat = 0x03
	ateFloat        = 0x04
	ateSigned       = 0x05
	ateSignedChar   = 0x06
	ateUnsigned     = 0x07
	ateUnsignedChar = 0x08
)

// DW_END_* endianity values (DWARF spec, not exposed by debug/dwarf).
const (
	endDefault = 0x00
	endBig     = 0x01
	endLittle  = 0x02
)

// attrVal looks up attr on e, and if absent, follows DW_AT_specification
// then DW_AT_abstract_origin to find it on the DIE e completes or was
// inlined from, so callers read attributes transparently across that
// indirection.
func (g *Graph) attrVal(e *dwarf.Entry, attr dwarf.Attr) interface{} {
	if v := e.Val(attr); v != nil {
		return v
	}
	if off, ok := e.Val(dwarf.AttrSpecification).(dwarf.Offset); ok {
		if se, err := g.idx.EntryAt(off); err == nil && se != e {
			if v := g.attrVal(se, attr); v != nil {
				return v
			}
		}
	}
	if off, ok := e.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset); ok {
		if se, err := g.idx.EntryAt(off); err == nil && se != e {
			if v := g.attrVal(se, attr); v != nil {
				return v
			}
		}
	}
	return nil
}

func (g *Graph) attrUint(e *dwarf.Entry, attr dwarf.Attr) (uint64, bool, error) {
	v := g.attrVal(e, attr)
	if v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int64:
		return uint64(n), true, nil
	case uint64:
		return n, true, nil
	default:
		return 0, false, newError(KindOtherError, e.Offset, "attribute %v has unexpected type %T", attr, v).withAttr(attr)
	}
}

func (g *Graph) attrInt(e *dwarf.Entry, attr dwarf.Attr) (int64, bool, error) {
	v := g.attrVal(e, attr)
	if v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int64:
		return n, true, nil
	case uint64:
		return int64(n), true, nil
	default:
		return 0, false, newError(KindOtherError, e.Offset, "attribute %v has unexpected type %T", attr, v).withAttr(attr)
	}
}

func (g *Graph) attrFlag(e *dwarf.Entry, attr dwarf.Attr) (bool, bool, error) {
	v := g.attrVal(e, attr)
	if v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, newError(KindOtherError, e.Offset, "attribute %v has unexpected type %T", attr, v).withAttr(attr)
	}
	return b, true, nil
}

func (g *Graph) attrString(e *dwarf.Entry, attr dwarf.Attr) (string, bool, error) {
	v := g.attrVal(e, attr)
	if v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, newError(KindOtherError, e.Offset, "attribute %v has unexpected type %T", attr, v).withAttr(attr)
	}
	return s, true, nil
}

func (g *Graph) attrRef(e *dwarf.Entry, attr dwarf.Attr) (dwarf.Offset, bool, error) {
	v := g.attrVal(e, attr)
	if v == nil {
		return 0, false, nil
	}
	off, ok := v.(dwarf.Offset)
	if !ok {
		return 0, false, newError(KindOtherError, e.Offset, "attribute %v has unexpected type %T", attr, v).withAttr(attr)
	}
	return off, true, nil
}

func (g *Graph) attrBlock(e *dwarf.Entry, attr dwarf.Attr) ([]byte, bool, error) {
	v := g.attrVal(e, attr)
	if v == nil {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, newError(KindOtherError, e.Offset, "attribute %v has unexpected type %T", attr, v).withAttr(attr)
	}
	return b, true, nil
}

// attrConstValue reads DW_AT_const_value and reports whether its form was
// a signed one (sdata/implicit_const, surfaced by debug/dwarf as int64)
// as opposed to an unsigned one (udata/dataN, surfaced as uint64). The
// distinction drives the enum builder's per-enumerator sign tracking in
// spec.md §4.7.
func (g *Graph) attrConstValue(e *dwarf.Entry, attr dwarf.Attr) (value int64, signedForm bool, ok bool, err error) {
	v := g.attrVal(e, attr)
	if v == nil {
		return 0, false, false, nil
	}
	switch n := v.(type) {
	case int64:
		return n, true, true, nil
	case uint64:
		return int64(n), false, true, nil
	default:
		return 0, false, false, newError(KindOtherError, e.Offset, "attribute %v has unexpected type %T", attr, v).withAttr(attr)
	}
}

func (e *Error) withAttr(attr dwarf.Attr) *Error {
	e.Attr = attr
	return e
}

// dieIsLittleEndian resolves a DIE's byte order: DW_AT_endianity
// overrides the program's default when present, otherwise the program
// context's byte order applies.
func (g *Graph) dieIsLittleEndian(e *dwarf.Entry) bool {
	if v, ok, _ := g.attrUint(e, dwarf.AttrEndianity); ok {
		switch v {
		case endLittle:
			return true
		case endBig:
			return false
		}
	}
	return g.defaultLittleEndian
}
