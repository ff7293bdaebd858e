// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package typegraph is the DWARF-to-typed-object translator: given a DWARF
// debugging-information tree, it builds a language-agnostic, in-memory
// type graph and resolves program objects (variables, functions,
// enumerators) to typed, addressable values.
package typegraph

import (
	"encoding/binary"
	"fmt"

	"github.com/dwarfgraph/dwarfgraph/internal/core"
)

// Kind discriminates the variants of the type graph's nodes.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindBool
	KindFloat
	KindComplex
	KindPointer
	KindArray
	KindTypedef
	KindStruct
	KindUnion
	KindClass
	KindEnum
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	case KindComplex:
		return "complex"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindTypedef:
		return "typedef"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindClass:
		return "class"
	case KindEnum:
		return "enum"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Language is the DWARF source language a type or object was produced
// from, coarsened to the degree this translator cares about.
type Language uint8

const (
	LangUnknown Language = iota
	LangC
	LangCPlusPlus
)

// Qualifiers is a bitset overlay applied to a type reference. It is never
// materialized as a distinct type node.
type Qualifiers uint8

const (
	QualConst Qualifiers = 1 << iota
	QualVolatile
	QualRestrict
	QualAtomic
)

func (q Qualifiers) Const() bool    { return q&QualConst != 0 }
func (q Qualifiers) Volatile() bool { return q&QualVolatile != 0 }
func (q Qualifiers) Restrict() bool { return q&QualRestrict != 0 }
func (q Qualifiers) Atomic() bool   { return q&QualAtomic != 0 }

// QualType is a type reference together with the qualifier overlay that
// applied to it at the point it was referenced.
type QualType struct {
	Type  *Type
	Quals Qualifiers
}

// Type is an immutable, interned node in the type graph. Once published
// into the cache's interner, a Type's fields never change; cyclic graphs
// are possible (a struct whose member is a pointer to itself) because
// members and parameters are reached through a Thunk rather than being
// required to resolve before their containing Type is interned.
type Type struct {
	Kind Kind
	Lang Language

	// Name is: the base type's name (int, bool, float, complex); the
	// typedef's name; or the optional tag name of a struct/union/class/
	// enum. Empty for anonymous compound/enum types, and unused for
	// void/pointer/array/function.
	Name string

	// ByteSize is the size in bytes. Meaningless (0) for KindVoid and
	// KindFunction.
	ByteSize int64

	// Signed is valid for KindInt.
	Signed bool

	// IsChar marks a KindInt built from DW_ATE_signed_char or
	// DW_ATE_unsigned_char, so a caller rendering the graph can print
	// "char" rather than a same-width plain integer name when a
	// producer emits one without an unambiguous DW_AT_name.
	IsChar bool

	// RealType is the type of the real/imaginary components of a
	// KindComplex type (always Int or Float).
	RealType *Type

	// Elem is the referenced/element type for KindPointer and KindArray.
	Elem QualType

	// Length and Complete are valid for KindArray. An incomplete array
	// (no known length) has Complete == false and Length == 0.
	Length   uint64
	Complete bool

	// Aliased is the type a KindTypedef names.
	Aliased QualType

	// Members is the ordered member list for KindStruct/KindUnion/
	// KindClass. Complete (shared with KindArray/KindEnum above)
	// indicates whether this is a full definition or an unresolved
	// forward declaration.
	Members []Member

	// Compatible is the underlying integer type for KindEnum.
	// Enumerators is its ordered enumerator list.
	Compatible  *Type
	Enumerators []Enumerator

	// Return, Params, and Variadic describe a KindFunction.
	Return   QualType
	Params   []Parameter
	Variadic bool
}

func (t *Type) String() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("<anonymous %s>", t.Kind)
}

// Member is one field of a struct/union/class. Type is resolved lazily so
// that the containing compound type can be interned (and thus break
// reference cycles) before its members are built.
type Member struct {
	Name      string // empty for an anonymous member
	Type      *Thunk
	BitOffset int64 // bit offset from the start of the containing object
	BitSize   int64 // 0 means "not a bit field"
}

// Parameter is one formal parameter of a function type.
type Parameter struct {
	Name string // empty if unnamed
	Type *Thunk
}

// Enumerator is one named constant of an enum. Signed records whether its
// own DW_AT_const_value used a signed form and says which of SVal/UVal to
// read; both hold the same 64 bits, so each enumerator keeps its own
// encoding whatever the other enumerators or the compatible type use.
type Enumerator struct {
	Name   string
	Signed bool
	SVal   int64
	UVal   uint64
}

// ObjectKind discriminates Object's variants.
type ObjectKind uint8

const (
	ObjectAbsent ObjectKind = iota
	ObjectReference
	ObjectValue
)

// Object is what find_object resolves a (name, filename, kind-mask) query
// to: a Reference (an addressable location), a Value (constant bytes or an
// integer known without reading memory), or Absent.
type Object struct {
	Kind ObjectKind
	Type QualType

	// Reference fields.
	Address   core.Address
	BitOffset int64
	ByteOrder binary.ByteOrder

	// Value fields. Bytes is set for a block-form constant (e.g. a struct
	// constant); HasInt distinguishes a Value with a scalar integer
	// (IntVal/Unsigned, as for an enumerator) from one with raw Bytes.
	Bytes    []byte
	HasInt   bool
	IntVal   int64
	Unsigned bool
}
