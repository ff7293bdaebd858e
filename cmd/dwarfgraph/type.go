// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwarfgraph/dwarfgraph/internal/typegraph"
)

var typeTagFlag string

var typeCmd = &cobra.Command{
	Use:   "type NAME",
	Short: "Resolve a named type and print its kind and size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, g, err := openGraph()
		if err != nil {
			return err
		}
		results, err := g.FindType(args[0], filename, parseTypeTags(typeTagFlag))
		if err != nil {
			return fmt.Errorf("find_type %s: %w", args[0], err)
		}
		for _, qt := range results {
			printQualType(os.Stdout, qt)
		}
		return nil
	},
}

func init() {
	typeCmd.Flags().StringVar(&typeTagFlag, "tags", "any", "comma-separated subset of struct,union,class,enum,typedef,base (or \"any\")")
}

func parseTypeTags(s string) typegraph.TypeTag {
	if s == "" || s == "any" {
		return typegraph.TagAnyType
	}
	var tags typegraph.TypeTag
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			switch s[start:i] {
			case "struct":
				tags |= typegraph.TagStruct
			case "union":
				tags |= typegraph.TagUnion
			case "class":
				tags |= typegraph.TagClass
			case "enum":
				tags |= typegraph.TagEnum
			case "typedef":
				tags |= typegraph.TagTypedef
			case "base":
				tags |= typegraph.TagBase
			}
			start = i + 1
		}
	}
	return tags
}

func printQualType(w *os.File, qt typegraph.QualType) {
	q := ""
	if qt.Quals.Const() {
		q += "const "
	}
	if qt.Quals.Volatile() {
		q += "volatile "
	}
	if qt.Quals.Restrict() {
		q += "restrict "
	}
	if qt.Quals.Atomic() {
		q += "_Atomic "
	}
	note := ""
	if qt.Type.IsChar {
		note = " (char)"
	}
	fmt.Fprintf(w, "%s%s %s size=%d%s\n", q, qt.Type.Kind, qt.Type, qt.Type.ByteSize, note)
}
