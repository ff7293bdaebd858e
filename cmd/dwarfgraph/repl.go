// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/dwarfgraph/dwarfgraph/internal/typegraph"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactively query one loaded binary's type graph",
	Long: `repl loads the binary once and keeps its type graph (and interner
cache) alive across queries, so repeated "type" and "object" lookups don't
re-walk DWARF from scratch.

Commands:
  type NAME      resolve and print a named type
  object NAME    resolve and print a named program object
  describe NAME  print the full type graph for a named type
  quit           exit
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, g, err := openGraph()
		if err != nil {
			return err
		}
		return runRepl(g)
	},
}

func runRepl(g *typegraph.Graph) error {
	rl, err := readline.New("dwarfgraph> ")
	if err != nil {
		return fmt.Errorf("starting repl: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		dispatchReplLine(g, strings.TrimSpace(line))
	}
}

func dispatchReplLine(g *typegraph.Graph, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, rest := fields[0], fields[1:]
	switch cmd {
	case "quit", "exit":
		os.Exit(0)
	case "type":
		if len(rest) != 1 {
			fmt.Println("usage: type NAME")
			return
		}
		results, err := g.FindType(rest[0], filename, typegraph.TagAnyType)
		if err != nil {
			fmt.Println(err)
			return
		}
		for _, qt := range results {
			printQualType(os.Stdout, qt)
		}
	case "object":
		if len(rest) != 1 {
			fmt.Println("usage: object NAME")
			return
		}
		obj, err := g.FindObject(rest[0], filename, typegraph.QueryAny)
		if err != nil {
			fmt.Println(err)
			return
		}
		printObject(os.Stdout, rest[0], obj)
	case "describe":
		if len(rest) != 1 {
			fmt.Println("usage: describe NAME")
			return
		}
		results, err := g.FindType(rest[0], filename, typegraph.TagAnyType)
		if err != nil {
			fmt.Println(err)
			return
		}
		seen := make(map[*typegraph.Type]bool)
		for _, qt := range results {
			describeType(os.Stdout, qt.Type, 0, seen)
		}
	default:
		fmt.Printf("unknown command %q (try: type, object, describe, quit)\n", cmd)
	}
}
