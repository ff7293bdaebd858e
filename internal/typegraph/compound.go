// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import "debug/dwarf"

// compoundKind maps a compound tag to the Kind it becomes.
func compoundKind(tag dwarf.Tag) Kind {
	switch tag {
	case dwarf.TagUnionType:
		return KindUnion
	case dwarf.TagClassType:
		return KindClass
	default:
		return KindStruct
	}
}

// buildCompound builds a struct, union, or class type. It handles the
// forward-declaration case (a bare DW_AT_declaration DIE with no
// members, standing in for a definition found elsewhere) and otherwise
// parses an ordered member list, computing each member's bit offset
// from whichever of the two DWARF bit-field encodings is present.
func (g *Graph) buildCompound(die *dwarf.Entry, lang Language) (*Type, error) {
	kind := compoundKind(die.Tag)
	name, _, err := g.attrString(die, dwarf.AttrName)
	if err != nil {
		return nil, err
	}
	isDecl, _, err := g.attrFlag(die, dwarf.AttrDeclaration)
	if err != nil {
		return nil, err
	}

	if isDecl {
		// A forward declaration resolves to the unique complete
		// definition of the same tag and name elsewhere in the debug
		// info, if there is one; otherwise it stays incomplete rather
		// than erroring, since an opaque pointer to a never-defined
		// type is common and legitimate.
		if complete, ok := g.findComplete(name, die.Tag, die); ok && complete.Offset != die.Offset {
			return g.buildCompoundComplete(complete, kind, lang, name)
		}
		return &Type{Kind: kind, Lang: lang, Name: name, Complete: false}, nil
	}

	size, _, err := g.attrUint(die, dwarf.AttrByteSize)
	if err != nil {
		return nil, err
	}

	t := &Type{Kind: kind, Lang: lang, Name: name, ByteSize: int64(size), Complete: true}

	members, err := g.buildMembers(die, kind)
	if err != nil {
		return nil, err
	}
	t.Members = members
	return t, nil
}

func (g *Graph) buildCompoundComplete(complete *dwarf.Entry, kind Kind, lang Language, name string) (*Type, error) {
	size, _, err := g.attrUint(complete, dwarf.AttrByteSize)
	if err != nil {
		return nil, err
	}
	t := &Type{Kind: kind, Lang: lang, Name: name, ByteSize: int64(size), Complete: true}
	members, err := g.buildMembers(complete, kind)
	if err != nil {
		return nil, err
	}
	t.Members = members
	return t, nil
}

// buildMembers parses die's DW_TAG_member children in order. Only the
// final member of a struct or class (never a union) with at least one
// preceding member may be an incomplete array; every other member is
// parsed with can_be_incomplete_array=false, so a non-terminal flexible
// array collapses to a zero-length array instead.
func (g *Graph) buildMembers(die *dwarf.Entry, kind Kind) ([]Member, error) {
	kids, err := g.idx.Children(die)
	if err != nil {
		return nil, wrapError(KindLookupError, die.Offset, err, "failed to read compound members")
	}

	var memberDies []*dwarf.Entry
	for _, kid := range kids {
		if kid.Tag == dwarf.TagMember {
			memberDies = append(memberDies, kid)
		}
	}

	members := make([]Member, 0, len(memberDies))
	for i, kid := range memberDies {
		isLast := i == len(memberDies)-1
		canBeIncompleteArray := isLast && i > 0 && kind != KindUnion
		m, err := g.buildMember(kid, canBeIncompleteArray)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

func (g *Graph) buildMember(die *dwarf.Entry, canBeIncompleteArray bool) (Member, error) {
	name, _, err := g.attrString(die, dwarf.AttrName)
	if err != nil {
		return Member{}, err
	}

	off, ok, err := g.attrRef(die, dwarf.AttrType)
	if err != nil {
		return Member{}, err
	}
	if !ok {
		return Member{}, newError(KindOtherError, die.Offset, "member %q has no DW_AT_type", name)
	}
	target, err := g.idx.EntryAt(off)
	if err != nil {
		return Member{}, wrapError(KindLookupError, die.Offset, err, "failed to resolve member type")
	}

	thunk := newThunk(g, target, canBeIncompleteArray)

	bitOffset, bitSize, err := g.memberBitLayout(die)
	if err != nil {
		return Member{}, err
	}

	return Member{Name: name, Type: thunk, BitOffset: bitOffset, BitSize: bitSize}, nil
}

// memberBitLayout computes a member's bit offset and bit size.
func (g *Graph) memberBitLayout(die *dwarf.Entry) (bitOffset, bitSize int64, err error) {
	byteOff, err := g.memberByteOffset(die)
	if err != nil {
		return 0, 0, err
	}

	size, hasSize, err := g.attrUint(die, dwarf.AttrBitSize)
	if err != nil {
		return 0, 0, err
	}
	if !hasSize {
		return byteOff * 8, 0, nil // not a bit field
	}
	bitSize = int64(size)

	if dataBitOff, ok, err := g.attrUint(die, attrDataBitOffset); err != nil {
		return 0, 0, err
	} else if ok {
		// DWARF4+ encoding: DW_AT_data_bit_offset is already a plain
		// bit offset from the start of the containing object,
		// independent of byte order.
		return int64(dataBitOff), bitSize, nil
	}

	// Older encoding: DW_AT_bit_offset counts bits from the MSB of a
	// storage unit whose size is given by this member's DW_AT_byte_size
	// (falling back to the member's own type size when absent). On a
	// little-endian target that MSB-relative count must be flipped to
	// be LSB-relative before adding the byte offset.
	storageSize, ok, err := g.attrUint(die, dwarf.AttrByteSize)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		off, _, _ := g.attrRef(die, dwarf.AttrType) // buildMember already checked it is present
		target, err := g.idx.EntryAt(off)
		if err != nil {
			return 0, 0, wrapError(KindLookupError, die.Offset, err, "failed to resolve bit field type")
		}
		qt, _, err := g.resolve(target, false)
		if err != nil {
			return 0, 0, err
		}
		if qt.Type.ByteSize <= 0 {
			return 0, 0, newError(KindOtherError, die.Offset, "bit field has no DW_AT_byte_size and its type has no size")
		}
		storageSize = uint64(qt.Type.ByteSize)
	}
	bitOff, _, err := g.attrUint(die, dwarf.AttrBitOffset)
	if err != nil {
		return 0, 0, err
	}

	storageBits := int64(storageSize) * 8
	if g.dieIsLittleEndian(die) {
		bitOffset = byteOff*8 + storageBits - int64(bitOff) - bitSize
	} else {
		bitOffset = byteOff*8 + int64(bitOff)
	}
	return bitOffset, bitSize, nil
}

// memberByteOffset reads DW_AT_data_member_location, which is either a
// plain constant byte offset or a location expression (in practice always
// DW_OP_plus_uconst <offset> for a member).
func (g *Graph) memberByteOffset(die *dwarf.Entry) (int64, error) {
	if block, ok := g.attrVal(die, dwarf.AttrDataMemberLoc).([]byte); ok {
		return decodePlusUconst(block)
	}
	n, _, err := g.attrInt(die, dwarf.AttrDataMemberLoc)
	return n, err
}

// decodePlusUconst decodes a DW_OP_plus_uconst (opcode 0x23) expression:
// the only location-expression form DW_AT_data_member_location takes in
// practice.
func decodePlusUconst(expr []byte) (int64, error) {
	if len(expr) == 0 || expr[0] != 0x23 {
		return 0, newError(KindOtherError, 0, "unsupported member location expression")
	}
	v, _ := uleb128(expr[1:])
	return int64(v), nil
}

func uleb128(b []byte) (uint64, int) {
	var result uint64
	var shift uint
	for i, c := range b {
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
	}
	return result, len(b)
}
