// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// Perm is a set of permission bits for a Mapping.
type Perm uint8

const (
	Read Perm = 1 << iota
	Write
	Exec
)

// A Mapping is a contiguous region of the inferior's address space backed
// by a slice of its loaded image.
type Mapping struct {
	min, max Address
	perm     Perm
	contents []byte
}

func (m *Mapping) Min() Address { return m.min }
func (m *Mapping) Max() Address { return m.max }
func (m *Mapping) Perm() Perm   { return m.perm }

// A Process represents the loaded image of a program binary: the pieces of
// program state a DWARF type translator and object resolver need in order
// to turn a DIE into a typed, addressable value.
type Process struct {
	exe *os.File

	mappings []*Mapping

	wordSize  int64
	byteOrder binary.ByteOrder

	dwarfData *dwarf.Data
	dwarfErr  error

	staticBase int64 // load bias: runtime address - link-time address
}

// Open loads the program context for the ELF binary at path. staticBase is
// the load bias to apply when resolving DW_AT_low_pc / DW_OP_addr
// addresses (0 for a non-PIE binary inspected in place).
func Open(path string, staticBase int64) (*Process, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v", path, err)
	}
	e, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to parse ELF: %v", err)
	}

	p := &Process{exe: f, staticBase: staticBase}

	switch e.Class {
	case elf.ELFCLASS32:
		p.wordSize = 4
	case elf.ELFCLASS64:
		p.wordSize = 8
	default:
		return nil, fmt.Errorf("unknown ELF class %v", e.Class)
	}
	switch e.Data {
	case elf.ELFDATA2LSB:
		p.byteOrder = binary.LittleEndian
	case elf.ELFDATA2MSB:
		p.byteOrder = binary.BigEndian
	default:
		return nil, fmt.Errorf("unknown ELF data encoding %v", e.Data)
	}

	if err := p.readSegments(e); err != nil {
		return nil, err
	}

	p.dwarfData, p.dwarfErr = e.DWARF()
	return p, nil
}

// page-align a [off, off+size) range, following the same expand-to-full-
// pages trick the teacher's core-dump mapper uses so reads never straddle
// an unmapped page boundary.
func pageAlign(off, size int64) (alignedOff, alignedSize int64) {
	pageSize := int64(unix.Getpagesize())
	alignedOff = off - off%pageSize
	end := off + size
	if end%pageSize != 0 {
		end += pageSize - end%pageSize
	}
	return alignedOff, end - alignedOff
}

func (p *Process) readSegments(e *elf.File) error {
	for _, prog := range e.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		var perm Perm
		if prog.Flags&elf.PF_R != 0 {
			perm |= Read
		}
		if prog.Flags&elf.PF_W != 0 {
			perm |= Write
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= Exec
		}

		alignedOff, alignedSize := pageAlign(int64(prog.Off), int64(prog.Filesz))
		buf := make([]byte, alignedSize)
		n, err := p.exe.ReadAt(buf, alignedOff)
		if err != nil && n == 0 {
			return fmt.Errorf("failed to read PT_LOAD segment at file offset %#x: %v", prog.Off, err)
		}
		buf = buf[int64(prog.Off)-alignedOff:]
		if int64(len(buf)) > int64(prog.Filesz) {
			buf = buf[:prog.Filesz]
		}
		if int64(prog.Memsz) > int64(len(buf)) {
			padded := make([]byte, prog.Memsz)
			copy(padded, buf)
			buf = padded
		}

		m := &Mapping{
			min:      Address(prog.Vaddr),
			max:      Address(prog.Vaddr + prog.Memsz),
			perm:     perm,
			contents: buf,
		}
		p.mappings = append(p.mappings, m)
	}
	sort.Slice(p.mappings, func(i, j int) bool { return p.mappings[i].min < p.mappings[j].min })
	return nil
}

func (p *Process) findMapping(a Address) *Mapping {
	i := sort.Search(len(p.mappings), func(i int) bool { return p.mappings[i].max > a })
	if i < len(p.mappings) && p.mappings[i].min <= a {
		return p.mappings[i]
	}
	return nil
}

// WordSize returns the size in bytes of a pointer in the inferior.
func (p *Process) WordSize() int64 { return p.wordSize }

// ByteOrder returns the inferior's byte order.
func (p *Process) ByteOrder() binary.ByteOrder { return p.byteOrder }

// StaticBase returns the load bias to add to link-time addresses.
func (p *Process) StaticBase() int64 { return p.staticBase }

// DWARF returns the parsed DWARF debug info for the inferior.
func (p *Process) DWARF() (*dwarf.Data, error) { return p.dwarfData, p.dwarfErr }

// Mappings returns the inferior's virtual memory mappings.
func (p *Process) Mappings() []*Mapping { return p.mappings }

// ReadAt reads len(buf) bytes from the inferior starting at address a.
func (p *Process) ReadAt(buf []byte, a Address) error {
	for len(buf) > 0 {
		m := p.findMapping(a)
		if m == nil {
			return fmt.Errorf("address %s is not mapped", a)
		}
		n := int64(len(buf))
		if avail := m.max.Sub(a); avail < n {
			n = avail
		}
		off := a.Sub(m.min)
		copy(buf[:n], m.contents[off:])
		buf = buf[n:]
		a = a.Add(n)
	}
	return nil
}
