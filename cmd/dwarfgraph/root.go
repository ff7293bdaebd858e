// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dwarfgraph loads an ELF binary's DWARF debug info and drives the
// type graph translator (internal/typegraph) against it: look up named
// types, resolve named program objects, and print the reconstructed type
// graph for a single type. Run "dwarfgraph help" for the command list.
package main

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dwarfgraph/dwarfgraph/internal/core"
	"github.com/dwarfgraph/dwarfgraph/internal/typegraph"
)

var (
	cfgFile    string
	logFile    string
	binaryPath string
	staticBase int64
	filename   string
	maxDepth   int
	langFlag   string

	logger *slog.Logger
)

// RootCmd is the base command. All subcommands load the same binary
// flag/config, matching the teacher's single-binary-per-invocation
// workflow in cmd/viewcore.
var RootCmd = &cobra.Command{
	Use:   "dwarfgraph",
	Short: "Translate DWARF debug info into a typed object graph",
	Long: `dwarfgraph loads an ELF binary's DWARF debug info and builds the
in-memory type graph and object resolver described in this module's
translator package. Subcommands query that graph: type lookup, object
lookup, a recursive describe printer, and an interactive repl.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.dwarfgraph.yaml)")
	RootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	RootCmd.PersistentFlags().StringVarP(&binaryPath, "binary", "b", "", "ELF binary to load DWARF from (required)")
	RootCmd.PersistentFlags().Int64Var(&staticBase, "static-base", 0, "load bias to apply to DW_AT_low_pc/DW_OP_addr addresses")
	RootCmd.PersistentFlags().StringVarP(&filename, "filename", "f", "", "restrict lookups to DIEs whose compile unit matches this source filename")
	RootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 1000, "override the dispatcher's recursion-depth guard (0 keeps the built-in default)")
	RootCmd.PersistentFlags().StringVar(&langFlag, "lang", "c", "default source language for a DIE whose compile unit carries no DW_AT_language (c, c++, unknown)")

	viper.BindPFlag("binary", RootCmd.PersistentFlags().Lookup("binary"))
	viper.BindPFlag("filename", RootCmd.PersistentFlags().Lookup("filename"))
	viper.BindPFlag("static-base", RootCmd.PersistentFlags().Lookup("static-base"))

	RootCmd.AddCommand(typeCmd, objectCmd, describeCmd, replCmd)
	cobra.OnInitialize(initConfig)
}

// Execute runs the root command. It is called once from main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initConfig reads a config file and environment variables, following the
// teacher's cmd/root.go viper pairing.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".dwarfgraph")
		}
	}
	viper.SetEnvPrefix("DWARFGRAPH")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
	if binaryPath == "" {
		binaryPath = viper.GetString("binary")
	}
	if filename == "" {
		filename = viper.GetString("filename")
	}
}

// setupLogger builds the fanned-out slog.Logger: stderr always, plus an
// optional log file, via samber/slog-multi rather than a hand-rolled
// multi-writer.
func setupLogger() {
	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dwarfgraph: cannot open log file %s: %v\n", logFile, err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}
	logger = slog.New(slogmulti.Fanout(handlers...))
}

// sourceLang maps the --lang flag to typegraph.Language.
func sourceLang() typegraph.Language {
	switch langFlag {
	case "c++", "cpp", "cxx":
		return typegraph.LangCPlusPlus
	case "c":
		return typegraph.LangC
	default:
		return typegraph.LangUnknown
	}
}

// openGraph loads binaryPath and builds the type graph over it, the
// sequence every subcommand needs before it can do anything else.
func openGraph() (*core.Process, *typegraph.Graph, error) {
	if binaryPath == "" {
		return nil, nil, fmt.Errorf("no binary given (use --binary or $DWARFGRAPH_BINARY)")
	}
	proc, err := core.Open(binaryPath, staticBase)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", binaryPath, err)
	}
	g, err := typegraph.Open(proc, sourceLang())
	if err != nil {
		return nil, nil, fmt.Errorf("indexing DWARF in %s: %w", binaryPath, err)
	}
	g.SetMaxDepth(maxDepth)
	logger.Info("loaded binary", "path", binaryPath, "word_size", proc.WordSize())
	return proc, g, nil
}
