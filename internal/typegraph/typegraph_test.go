// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typegraph

import (
	"debug/dwarf"
	"encoding/binary"
	"testing"

	"github.com/dwarfgraph/dwarfgraph/dwtest"
)

const dwLangC99 = 0x000c

func newGraph(b *dwtest.Builder) *Graph {
	return New(b, 8, binary.LittleEndian, LangC)
}

func TestBaseTypeInt(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	b.Add(cu, dwarf.TagBaseType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "int"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
		dwarf.Field{Attr: dwarf.AttrEncoding, Val: int64(5)}, // DW_ATE_signed
	)

	g := newGraph(b)
	types, err := g.FindType("int", "", TagBase)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	if len(types) != 1 {
		t.Fatalf("got %d types, want 1", len(types))
	}
	ty := types[0].Type
	if ty.Kind != KindInt || !ty.Signed || ty.ByteSize != 4 {
		t.Fatalf("unexpected type: %+v", ty)
	}
}

func TestInterningIsIdempotent(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	b.Add(cu, dwarf.TagBaseType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "int"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
		dwarf.Field{Attr: dwarf.AttrEncoding, Val: int64(5)},
	)

	g := newGraph(b)
	first, err := g.FindType("int", "", TagBase)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	second, err := g.FindType("int", "", TagBase)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	if first[0].Type != second[0].Type {
		t.Fatalf("repeated resolution returned distinct nodes: %p != %p", first[0].Type, second[0].Type)
	}
}

func TestPointerToSelfReferentialStruct(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)

	node := b.Add(cu, dwarf.TagStructType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "node"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(16)},
	)
	ptr := b.Add(cu, dwarf.TagPointerType,
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(8)},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(node)},
	)
	b.AddChild(node, dwarf.TagMember,
		dwarf.Field{Attr: dwarf.AttrName, Val: "next"},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(ptr)},
		dwarf.Field{Attr: dwarf.AttrDataMemberLoc, Val: int64(0)},
	)

	g := newGraph(b)
	types, err := g.FindType("node", "", TagStruct)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	st := types[0].Type
	if len(st.Members) != 1 {
		t.Fatalf("got %d members, want 1", len(st.Members))
	}
	memberType, err := st.Members[0].Type.Type()
	if err != nil {
		t.Fatalf("member type: %v", err)
	}
	if memberType.Type.Kind != KindPointer {
		t.Fatalf("member is %v, want pointer", memberType.Type.Kind)
	}
	if memberType.Type.Elem.Type != st {
		t.Fatalf("struct is not self-referential: pointer points to %p, struct is %p", memberType.Type.Elem.Type, st)
	}
}

func TestBitFieldDataBitOffsetEncoding(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	u32 := b.Add(cu, dwarf.TagBaseType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "unsigned int"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
		dwarf.Field{Attr: dwarf.AttrEncoding, Val: int64(7)}, // DW_ATE_unsigned
	)
	st := b.Add(cu, dwarf.TagStructType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "flags"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
	)
	b.AddChild(st, dwarf.TagMember,
		dwarf.Field{Attr: dwarf.AttrName, Val: "a"},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(u32)},
		dwarf.Field{Attr: dwarf.AttrBitSize, Val: int64(3)},
		// DW_AT_data_bit_offset, modern encoding: bits 5-7 of the struct.
		dwarf.Field{Attr: attrDataBitOffset, Val: int64(5)},
	)

	g := newGraph(b)
	types, err := g.FindType("flags", "", TagStruct)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	m := types[0].Type.Members[0]
	if m.BitOffset != 5 || m.BitSize != 3 {
		t.Fatalf("got bit offset %d size %d, want 5, 3", m.BitOffset, m.BitSize)
	}
}

func TestBitFieldLegacyOffsetEncodingLittleEndian(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	u32 := b.Add(cu, dwarf.TagBaseType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "unsigned int"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
		dwarf.Field{Attr: dwarf.AttrEncoding, Val: int64(7)},
	)
	st := b.Add(cu, dwarf.TagStructType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "flags"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
	)
	// A 3-bit field occupying bits [5,8) of a little-endian 4-byte
	// storage unit: DW_AT_bit_offset counts from the MSB, so
	// bit_offset = 32 - 5 - 3 = 24.
	b.AddChild(st, dwarf.TagMember,
		dwarf.Field{Attr: dwarf.AttrName, Val: "a"},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(u32)},
		dwarf.Field{Attr: dwarf.AttrDataMemberLoc, Val: int64(0)},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
		dwarf.Field{Attr: dwarf.AttrBitSize, Val: int64(3)},
		dwarf.Field{Attr: dwarf.AttrBitOffset, Val: int64(24)},
	)

	g := newGraph(b)
	types, err := g.FindType("flags", "", TagStruct)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	m := types[0].Type.Members[0]
	if m.BitOffset != 5 || m.BitSize != 3 {
		t.Fatalf("got bit offset %d size %d, want 5, 3", m.BitOffset, m.BitSize)
	}
}

func TestForwardDeclarationResolvesToCompleteDefinition(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	b.Add(cu, dwarf.TagStructType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "opaque"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(8)},
	)
	decl := b.Add(cu, dwarf.TagStructType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "opaque"},
		dwarf.Field{Attr: dwarf.AttrDeclaration, Val: true},
	)

	g := newGraph(b)
	qt, _, err := g.resolve(decl, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !qt.Type.Complete || qt.Type.ByteSize != 8 {
		t.Fatalf("forward declaration did not resolve to complete definition: %+v", qt.Type)
	}
}

// TestForwardDeclarationFallbackGatedByFilenameFilter covers SPEC_FULL.md
// §D.1: the global (cross-compile-unit) completion search only runs when
// the caller's filename filter is empty. A declaration with no
// same-compile-unit definition must still resolve to the one definition
// that exists elsewhere when filename is "", but stay incomplete when a
// non-empty filename filter is in effect.
func TestForwardDeclarationFallbackGatedByFilenameFilter(t *testing.T) {
	b := dwtest.New(0)
	cuA := b.CompileUnit("a.c", dwLangC99)
	cuB := b.CompileUnit("b.c", dwLangC99)
	b.Add(cuB, dwarf.TagStructType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "opaque"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(8)},
	)
	decl := b.Add(cuA, dwarf.TagStructType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "opaque"},
		dwarf.Field{Attr: dwarf.AttrDeclaration, Val: true},
	)

	g := newGraph(b)
	var qt QualType
	err := g.withFilenameFilter("a.c", func() (err error) {
		qt, _, err = g.resolve(decl, true)
		return err
	})
	if err != nil {
		t.Fatalf("resolve with filter: %v", err)
	}
	if qt.Type.Complete {
		t.Fatalf("declaration resolved to a cross-file definition despite a filename filter: %+v", qt.Type)
	}

	g = newGraph(b) // fresh graph: the first call already interned the incomplete result
	qt, _, err = g.resolve(decl, true) // no filter in effect: global fallback may run
	if err != nil {
		t.Fatalf("resolve with no filter: %v", err)
	}
	if !qt.Type.Complete || qt.Type.ByteSize != 8 {
		t.Fatalf("declaration did not fall back to the cross-file definition with an empty filename filter: %+v", qt.Type)
	}
}

func TestRecursionDepthExceeded(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)

	// A chain of 2000 const-qualifier DIEs, each pointing to the next,
	// with no interning opportunity along the way: this must terminate
	// with a RECURSION error rather than blow the Go call stack.
	var last *dwarf.Entry
	for i := 0; i < 2000; i++ {
		var fields []dwarf.Field
		if last != nil {
			fields = append(fields, dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(last)})
		}
		last = b.Add(cu, dwarf.TagConstType, fields...)
	}

	g := newGraph(b)
	_, _, err := g.resolve(last, true)
	if err == nil {
		t.Fatal("expected a recursion error, got nil")
	}
	terr, ok := err.(*Error)
	if !ok || terr.Kind != KindRecursionError {
		t.Fatalf("got error %v, want a RECURSION *Error", err)
	}
}

func TestIncompleteArrayOnlyAllowedAsLastMember(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	elem := b.Add(cu, dwarf.TagBaseType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "char"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(1)},
		dwarf.Field{Attr: dwarf.AttrEncoding, Val: int64(6)},
	)
	arr := b.Add(cu, dwarf.TagArrayType,
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(elem)},
	)
	b.AddChild(arr, dwarf.TagSubrangeType) // no bound: a flexible array

	st := b.Add(cu, dwarf.TagStructType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "buf"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(8)},
	)
	b.AddChild(st, dwarf.TagMember,
		dwarf.Field{Attr: dwarf.AttrName, Val: "len"},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(elem)},
		dwarf.Field{Attr: dwarf.AttrDataMemberLoc, Val: int64(0)},
	)
	b.AddChild(st, dwarf.TagMember,
		dwarf.Field{Attr: dwarf.AttrName, Val: "data"},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(arr)},
		dwarf.Field{Attr: dwarf.AttrDataMemberLoc, Val: int64(1)},
	)

	g := newGraph(b)
	types, err := g.FindType("buf", "", TagStruct)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	dataType, err := types[0].Type.Members[1].Type.Type()
	if err != nil {
		t.Fatalf("member type: %v", err)
	}
	if dataType.Type.Kind != KindArray || dataType.Type.Complete || dataType.Type.Length != 0 {
		t.Fatalf("last member should resolve as a genuine incomplete array, got %+v", dataType.Type)
	}

	// The same array DIE resolved standalone is a genuine incomplete array.
	qt, incomplete, err := g.resolve(arr, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !incomplete || qt.Type.Complete {
		t.Fatalf("standalone array should be incomplete, got %+v (incomplete=%v)", qt.Type, incomplete)
	}
}

func TestEnumEnumerators(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	i32 := b.Add(cu, dwarf.TagBaseType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "int"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
		dwarf.Field{Attr: dwarf.AttrEncoding, Val: int64(5)},
	)
	en := b.Add(cu, dwarf.TagEnumerationType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "color"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(i32)},
	)
	b.AddChild(en, dwarf.TagEnumerator,
		dwarf.Field{Attr: dwarf.AttrName, Val: "RED"},
		dwarf.Field{Attr: dwarf.AttrConstValue, Val: int64(0)},
	)
	b.AddChild(en, dwarf.TagEnumerator,
		dwarf.Field{Attr: dwarf.AttrName, Val: "BLUE"},
		dwarf.Field{Attr: dwarf.AttrConstValue, Val: int64(1)},
	)

	g := newGraph(b)
	types, err := g.FindType("color", "", TagEnum)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	ty := types[0].Type
	if len(ty.Enumerators) != 2 || ty.Enumerators[1].SVal != 1 {
		t.Fatalf("unexpected enumerators: %+v", ty.Enumerators)
	}

	obj, err := g.FindObject("BLUE", "", QueryEnumerator)
	if err != nil {
		t.Fatalf("FindObject: %v", err)
	}
	if obj.Kind != ObjectValue || obj.IntVal != 1 {
		t.Fatalf("unexpected enumerator object: %+v", obj)
	}
}

func TestFindObjectVariableReference(t *testing.T) {
	b := dwtest.New(0x1000)
	cu := b.CompileUnit("a.c", dwLangC99)
	i32 := b.Add(cu, dwarf.TagBaseType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "int"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
		dwarf.Field{Attr: dwarf.AttrEncoding, Val: int64(5)},
	)
	loc := append([]byte{0x03}, encodeLE64(0x4000)...)
	b.Add(cu, dwarf.TagVariable,
		dwarf.Field{Attr: dwarf.AttrName, Val: "counter"},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(i32)},
		dwarf.Field{Attr: dwarf.AttrLocation, Val: loc},
	)

	g := newGraph(b)
	obj, err := g.FindObject("counter", "", QueryVariable)
	if err != nil {
		t.Fatalf("FindObject: %v", err)
	}
	if obj.Kind != ObjectReference {
		t.Fatalf("got kind %v, want ObjectReference", obj.Kind)
	}
	if obj.Address != 0x5000 { // bias 0x1000 + link address 0x4000
		t.Fatalf("got address %s, want 0x5000", obj.Address)
	}
}

func TestFindObjectNotFound(t *testing.T) {
	b := dwtest.New(0)
	b.CompileUnit("a.c", dwLangC99)
	g := newGraph(b)
	_, err := g.FindObject("nope", "", QueryAny)
	if err != NotFound {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func encodeLE64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func TestEnumMissingTypeFabricatesSignedCompatible(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	en := b.Add(cu, dwarf.TagEnumerationType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "status"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(4)},
	)
	b.AddChild(en, dwarf.TagEnumerator,
		dwarf.Field{Attr: dwarf.AttrName, Val: "OK"},
		dwarf.Field{Attr: dwarf.AttrConstValue, Val: int64(0)},
	)
	b.AddChild(en, dwarf.TagEnumerator,
		dwarf.Field{Attr: dwarf.AttrName, Val: "NEG"},
		dwarf.Field{Attr: dwarf.AttrConstValue, Val: int64(-1)},
	)

	g := newGraph(b)
	types, err := g.FindType("status", "", TagEnum)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	ty := types[0].Type
	if ty.Compatible == nil || ty.Compatible.Name != "<unknown>" || !ty.Compatible.Signed || ty.Compatible.ByteSize != 4 {
		t.Fatalf("unexpected fabricated compatible type: %+v", ty.Compatible)
	}
}

func TestFlexibleArrayNotLastMemberBecomesZeroLength(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	elem := b.Add(cu, dwarf.TagBaseType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "char"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(1)},
		dwarf.Field{Attr: dwarf.AttrEncoding, Val: int64(6)},
	)
	arr := b.Add(cu, dwarf.TagArrayType,
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(elem)},
	)
	b.AddChild(arr, dwarf.TagSubrangeType) // no bound

	st := b.Add(cu, dwarf.TagStructType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "weird"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(8)},
	)
	b.AddChild(st, dwarf.TagMember,
		dwarf.Field{Attr: dwarf.AttrName, Val: "data"},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(arr)},
		dwarf.Field{Attr: dwarf.AttrDataMemberLoc, Val: int64(0)},
	)
	b.AddChild(st, dwarf.TagMember,
		dwarf.Field{Attr: dwarf.AttrName, Val: "tail"},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(elem)},
		dwarf.Field{Attr: dwarf.AttrDataMemberLoc, Val: int64(4)},
	)

	g := newGraph(b)
	types, err := g.FindType("weird", "", TagStruct)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	dataType, err := types[0].Type.Members[0].Type.Type()
	if err != nil {
		t.Fatalf("member type: %v", err)
	}
	if dataType.Type.Kind != KindArray || !dataType.Type.Complete || dataType.Type.Length != 0 {
		t.Fatalf("non-terminal flexible array should become a zero-length array, got %+v", dataType.Type)
	}
}

func TestUnionMemberNeverIncompleteArray(t *testing.T) {
	b := dwtest.New(0)
	cu := b.CompileUnit("a.c", dwLangC99)
	elem := b.Add(cu, dwarf.TagBaseType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "char"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(1)},
		dwarf.Field{Attr: dwarf.AttrEncoding, Val: int64(6)},
	)
	arr := b.Add(cu, dwarf.TagArrayType,
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(elem)},
	)
	b.AddChild(arr, dwarf.TagSubrangeType)

	un := b.Add(cu, dwarf.TagUnionType,
		dwarf.Field{Attr: dwarf.AttrName, Val: "u"},
		dwarf.Field{Attr: dwarf.AttrByteSize, Val: int64(8)},
	)
	b.AddChild(un, dwarf.TagMember,
		dwarf.Field{Attr: dwarf.AttrName, Val: "data"},
		dwarf.Field{Attr: dwarf.AttrType, Val: dwtest.Ref(arr)},
		dwarf.Field{Attr: dwarf.AttrDataMemberLoc, Val: int64(0)},
	)

	g := newGraph(b)
	types, err := g.FindType("u", "", TagUnion)
	if err != nil {
		t.Fatalf("FindType: %v", err)
	}
	dataType, err := types[0].Type.Members[0].Type.Type()
	if err != nil {
		t.Fatalf("member type: %v", err)
	}
	if dataType.Type.Kind != KindArray || !dataType.Type.Complete || dataType.Type.Length != 0 {
		t.Fatalf("union member should never be an incomplete array, got %+v", dataType.Type)
	}
}
