// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwarfgraph/dwarfgraph/internal/typegraph"
)

var objectQueryFlag string

var objectCmd = &cobra.Command{
	Use:   "object NAME",
	Short: "Resolve a named program object (variable, function, or enumerator)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, g, err := openGraph()
		if err != nil {
			return err
		}
		obj, err := g.FindObject(args[0], filename, parseObjectQuery(objectQueryFlag))
		if err != nil {
			return fmt.Errorf("find_object %s: %w", args[0], err)
		}
		printObject(os.Stdout, args[0], obj)
		return nil
	},
}

func init() {
	objectCmd.Flags().StringVar(&objectQueryFlag, "kind", "any", "comma-separated subset of variable,function,enumerator (or \"any\")")
}

func parseObjectQuery(s string) typegraph.ObjectQuery {
	switch s {
	case "", "any":
		return typegraph.QueryAny
	}
	var q typegraph.ObjectQuery
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			switch s[start:i] {
			case "variable":
				q |= typegraph.QueryVariable
			case "function":
				q |= typegraph.QueryFunction
			case "enumerator":
				q |= typegraph.QueryEnumerator
			}
			start = i + 1
		}
	}
	return q
}

func printObject(w *os.File, name string, obj typegraph.Object) {
	fmt.Fprintf(w, "%s: ", name)
	switch obj.Kind {
	case typegraph.ObjectAbsent:
		fmt.Fprintln(w, "absent (no readable location)")
	case typegraph.ObjectReference:
		fmt.Fprintf(w, "&%s @ %s", obj.Type.Type, obj.Address)
		if obj.BitOffset != 0 {
			fmt.Fprintf(w, " bit-offset=%d", obj.BitOffset)
		}
		fmt.Fprintln(w)
	case typegraph.ObjectValue:
		if obj.HasInt {
			if obj.Unsigned {
				fmt.Fprintf(w, "%s = %d\n", obj.Type.Type, uint64(obj.IntVal))
			} else {
				fmt.Fprintf(w, "%s = %d\n", obj.Type.Type, obj.IntVal)
			}
		} else {
			fmt.Fprintf(w, "%s = %s\n", obj.Type.Type, hex.EncodeToString(obj.Bytes))
		}
	}
}
