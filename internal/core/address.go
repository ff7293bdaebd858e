// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package core provides the minimal "program context" and "memory reader"
// collaborators a DWARF type translator needs: pointer size, byte order,
// a DWARF handle, and address-indexed reads of a binary's loaded image.
//
// There's nothing language-specific about this library, same as the
// teacher it's drawn from: it could read a core for a program written in
// any language DWARF describes. Full core-dump or live-process lifecycle
// management (ptrace attach, thread/register state, copy-on-write
// segments) is explicitly out of scope here; see SPEC_FULL.md.
package core

import "fmt"

// Address is a location in the inferior's address space.
type Address uint64

func (a Address) Add(n int64) Address {
	return Address(int64(a) + n)
}

func (a Address) Sub(b Address) int64 {
	return int64(a) - int64(b)
}

func (a Address) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}
