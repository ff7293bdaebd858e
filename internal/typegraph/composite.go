// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import "debug/dwarf"

// buildPointer builds a pointer type. DW_AT_byte_size is optional on a
// pointer DIE; when absent, the program context's pointer width stands
// in (a pointer is always a fixed, word-sized scalar regardless of what
// it points to).
func (g *Graph) buildPointer(die *dwarf.Entry, lang Language) (*Type, error) {
	size, ok, err := g.attrUint(die, dwarf.AttrByteSize)
	if err != nil {
		return nil, err
	}
	byteSize := g.wordSize
	if ok {
		byteSize = int64(size)
	}

	// A pointee may be an incomplete array (e.g. int (*)[]), and the
	// pointer itself carries no size dependency on it, so allow it.
	elem, _, err := g.resolveType(die, true)
	if err != nil {
		return nil, err
	}
	return &Type{Kind: KindPointer, Lang: lang, ByteSize: byteSize, Elem: elem}, nil
}

// buildTypedef is C8's typedef half: spec.md §4.8. A typedef is
// transparent to the incomplete-array policy: it just forwards the flag
// (and the completeness it implies) from what it aliases.
func (g *Graph) buildTypedef(die *dwarf.Entry, lang Language, canBeIncompleteArray bool) (QualType, bool, error) {
	name, _, err := g.attrString(die, dwarf.AttrName)
	if err != nil {
		return QualType{}, false, err
	}
	aliased, isIncompleteArray, err := g.resolveType(die, canBeIncompleteArray)
	if err != nil {
		return QualType{}, false, err
	}
	t := &Type{Kind: KindTypedef, Lang: lang, Name: name, ByteSize: aliased.Type.ByteSize, Aliased: aliased}
	return QualType{Type: t}, isIncompleteArray, nil
}

// buildArray is C8's array half: spec.md §4.8's array rules. A
// DW_TAG_array_type has one DW_TAG_subrange_type child per dimension;
// multiple dimensions nest as arrays-of-arrays, built from the innermost
// (last) dimension outward so the outermost array is the node returned.
func (g *Graph) buildArray(die *dwarf.Entry, lang Language, canBeIncompleteArray bool) (QualType, bool, error) {
	elem, _, err := g.resolveType(die, false) // an array element is never itself an incomplete array
	if err != nil {
		return QualType{}, false, err
	}

	kids, err := g.idx.Children(die)
	if err != nil {
		return QualType{}, false, wrapError(KindLookupError, die.Offset, err, "failed to read array subranges")
	}
	var dims []*dwarf.Entry
	for _, kid := range kids {
		if kid.Tag == dwarf.TagSubrangeType {
			dims = append(dims, kid)
		}
	}
	if len(dims) == 0 {
		// No subrange at all: treat as a single incomplete dimension.
		return g.buildArrayDim(elem, lang, canBeIncompleteArray, nil)
	}

	// Fold dimensions right to left: dims[len-1] (innermost, fastest
	// varying) wraps elem first; each step outward wraps the previous
	// array, ending with dims[0] (outermost) as the node returned. Only
	// the outermost dimension's bound-or-not status is eligible to be an
	// incomplete/flexible array (C only allows the first dimension of a
	// multidimensional array to be left unbounded).
	cur := elem
	var incomplete bool
	for i := len(dims) - 1; i >= 0; i-- {
		outermost := i == 0
		var qt QualType
		var err error
		qt, incomplete, err = g.buildArrayDim(cur, lang, canBeIncompleteArray && outermost, dims[i])
		if err != nil {
			return QualType{}, false, err
		}
		cur = qt
	}
	return cur, incomplete, nil
}

// buildArrayDim builds one array dimension around elem. dim is nil (no
// bound known) or a DW_TAG_subrange_type DIE carrying DW_AT_count or
// DW_AT_upper_bound. A dimension with no known bound is complete only if
// canBeIncompleteArray is false, in which case spec.md §4.8's flexible-
// array-member rule reinterprets it as a zero-length array; otherwise it
// is reported as a genuine incomplete array.
func (g *Graph) buildArrayDim(elem QualType, lang Language, canBeIncompleteArray bool, dim *dwarf.Entry) (QualType, bool, error) {
	length, known, err := g.subrangeLength(dim)
	if err != nil {
		return QualType{}, false, err
	}
	if !known {
		if canBeIncompleteArray {
			return QualType{Type: &Type{Kind: KindArray, Lang: lang, Elem: elem, Complete: false}}, true, nil
		}
		return QualType{Type: &Type{Kind: KindArray, Lang: lang, Elem: elem, Length: 0, Complete: true}}, false, nil
	}
	return QualType{Type: &Type{Kind: KindArray, Lang: lang, Elem: elem, Length: length, Complete: true}}, false, nil
}

func (g *Graph) subrangeLength(dim *dwarf.Entry) (uint64, bool, error) {
	if dim == nil {
		return 0, false, nil
	}
	if count, ok, err := g.attrUint(dim, dwarf.AttrCount); err != nil {
		return 0, false, err
	} else if ok {
		return count, true, nil
	}
	if upper, ok, err := g.attrInt(dim, dwarf.AttrUpperBound); err != nil {
		return 0, false, err
	} else if ok {
		return uint64(upper + 1), true, nil
	}
	return 0, false, nil
}

// buildFunction is C8's function half: spec.md §4.8. Its formal
// parameters are resolved lazily via Thunk for the same reason a
// compound type's members are: a function type can appear as a
// parameter or return type of another function type that (through a
// pointer) refers back to it.
func (g *Graph) buildFunction(die *dwarf.Entry, lang Language) (*Type, error) {
	ret, _, err := g.resolveType(die, true)
	if err != nil {
		return nil, err
	}

	kids, err := g.idx.Children(die)
	if err != nil {
		return nil, wrapError(KindLookupError, die.Offset, err, "failed to read function parameters")
	}

	var params []Parameter
	variadic := false
	for _, kid := range kids {
		switch kid.Tag {
		case dwarf.TagFormalParameter:
			if variadic {
				return nil, newError(KindOtherError, die.Offset, "formal parameter follows DW_TAG_unspecified_parameters")
			}
			name, _, _ := g.attrString(kid, dwarf.AttrName)
			off, ok, perr := g.attrRef(kid, dwarf.AttrType)
			if perr != nil {
				return nil, perr
			}
			if !ok {
				continue // a formal parameter with no type is malformed; skip it
			}
			target, terr := g.idx.EntryAt(off)
			if terr != nil {
				return nil, wrapError(KindLookupError, kid.Offset, terr, "failed to resolve parameter type")
			}
			params = append(params, Parameter{Name: name, Type: newThunk(g, target, true)})
		case dwarf.TagUnspecifiedParameters:
			if variadic {
				return nil, newError(KindOtherError, die.Offset, "duplicate DW_TAG_unspecified_parameters")
			}
			variadic = true
		}
	}

	return &Type{Kind: KindFunction, Lang: lang, Return: ret, Params: params, Variadic: variadic}, nil
}
