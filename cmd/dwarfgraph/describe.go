// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dwarfgraph/dwarfgraph/internal/typegraph"
)

var describeCmd = &cobra.Command{
	Use:   "describe NAME",
	Short: "Print the full reconstructed type graph for a named type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, g, err := openGraph()
		if err != nil {
			return err
		}
		results, err := g.FindType(args[0], filename, typegraph.TagAnyType)
		if err != nil {
			return fmt.Errorf("describe %s: %w", args[0], err)
		}
		seen := make(map[*typegraph.Type]bool)
		for _, qt := range results {
			describeType(os.Stdout, qt.Type, 0, seen)
		}
		return nil
	},
}

// describeType prints t and, for a compound/enum/array/pointer/function
// type, its members/elements/return-and-parameters, recursing with a
// visited set so a self-referential struct (e.g. a linked-list node)
// terminates instead of looping forever.
func describeType(w *os.File, t *typegraph.Type, indent int, seen map[*typegraph.Type]bool) {
	pad := ""
	for i := 0; i < indent; i++ {
		pad += "  "
	}
	fmt.Fprintf(w, "%s%s %s (size=%d)\n", pad, t.Kind, t, t.ByteSize)
	if seen[t] {
		fmt.Fprintf(w, "%s  ...\n", pad)
		return
	}
	seen[t] = true

	switch t.Kind {
	case typegraph.KindStruct, typegraph.KindUnion, typegraph.KindClass:
		if !t.Complete {
			fmt.Fprintf(w, "%s  (incomplete)\n", pad)
			return
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, m := range t.Members {
			qt, err := m.Type.Type()
			if err != nil {
				fmt.Fprintf(tw, "%s  %s\t<error: %v>\n", pad, m.Name, err)
				continue
			}
			bits := ""
			if m.BitSize != 0 {
				bits = fmt.Sprintf(" : %d", m.BitSize)
			}
			fmt.Fprintf(tw, "%s  %s\t%s\toffset=%d%s\n", pad, m.Name, qt.Type, m.BitOffset, bits)
		}
		tw.Flush()
		for _, m := range t.Members {
			qt, err := m.Type.Type()
			if err == nil {
				describeType(w, qt.Type, indent+1, seen)
			}
		}

	case typegraph.KindEnum:
		for _, en := range t.Enumerators {
			if en.Signed {
				fmt.Fprintf(w, "%s  %s = %d\n", pad, en.Name, en.SVal)
			} else {
				fmt.Fprintf(w, "%s  %s = %d\n", pad, en.Name, en.UVal)
			}
		}

	case typegraph.KindArray:
		if t.Complete {
			fmt.Fprintf(w, "%s  length=%d\n", pad, t.Length)
		} else {
			fmt.Fprintf(w, "%s  (incomplete/flexible)\n", pad)
		}
		describeType(w, t.Elem.Type, indent+1, seen)

	case typegraph.KindPointer:
		describeType(w, t.Elem.Type, indent+1, seen)

	case typegraph.KindTypedef:
		describeType(w, t.Aliased.Type, indent+1, seen)

	case typegraph.KindFunction:
		fmt.Fprintf(w, "%s  returns:\n", pad)
		describeType(w, t.Return.Type, indent+2, seen)
		for i, p := range t.Params {
			pt, err := p.Type.Type()
			if err != nil {
				fmt.Fprintf(w, "%s  param %d (%s): <error: %v>\n", pad, i, p.Name, err)
				continue
			}
			fmt.Fprintf(w, "%s  param %d (%s):\n", pad, i, p.Name)
			describeType(w, pt.Type, indent+2, seen)
		}
		if t.Variadic {
			fmt.Fprintf(w, "%s  ...\n", pad)
		}
	}
}
