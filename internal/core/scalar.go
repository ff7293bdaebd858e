// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import "fmt"

// ReadUint reads a little/big-endian (per p.ByteOrder) unsigned integer of
// size bytes at address a. size must be 1, 2, 4, or 8.
func (p *Process) ReadUint(a Address, size int64) (uint64, error) {
	buf := make([]byte, size)
	if err := p.ReadAt(buf, a); err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(p.byteOrder.Uint16(buf)), nil
	case 4:
		return uint64(p.byteOrder.Uint32(buf)), nil
	case 8:
		return p.byteOrder.Uint64(buf), nil
	default:
		return 0, fmt.Errorf("unsupported integer size %d", size)
	}
}

// ReadInt is ReadUint with the result sign-extended from size bytes.
func (p *Process) ReadInt(a Address, size int64) (int64, error) {
	u, err := p.ReadUint(a, size)
	if err != nil {
		return 0, err
	}
	shift := uint(64 - size*8)
	return int64(u<<shift) >> shift, nil
}

// ReadPointer reads a pointer-sized address at a, following the
// inferior's own word size rather than a caller-supplied size.
func (p *Process) ReadPointer(a Address) (Address, error) {
	u, err := p.ReadUint(a, p.wordSize)
	if err != nil {
		return 0, err
	}
	return Address(u), nil
}
