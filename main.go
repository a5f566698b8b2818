// This is the main-driver for our compiler.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/skx/cc/compiler"
	"github.com/skx/cc/driver"
)

var (
	debug       bool
	lexOnly     bool
	parseOnly   bool
	validate    bool
	tackyOnly   bool
	codegenOnly bool
)

func main() {
	root := &cobra.Command{
		Use:   "cc <file.c>",
		Short: "A compiler for a small subset of C, targeting x86-64 GNU assembly",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	root.Flags().BoolVar(&debug, "debug", false, "Insert a debug breakpoint in the generated assembly")
	root.Flags().BoolVar(&lexOnly, "lex", false, "Stop after lexing and print the token stream")
	root.Flags().BoolVar(&parseOnly, "parse", false, "Stop after parsing and print the AST")
	root.Flags().BoolVar(&validate, "validate", false, "Stop after semantic resolution")
	root.Flags().BoolVar(&tackyOnly, "tacky", false, "Stop after TACKY lowering and print the IR")
	root.Flags().BoolVar(&codegenOnly, "codegen", false, "Stop after codegen; do not assemble or link")

	root.MarkFlagsMutuallyExclusive("lex", "parse", "validate", "tacky", "codegen")

	if err := root.Execute(); err != nil {
		fatal(err.Error())
	}
}

func run(cmd *cobra.Command, args []string) error {
	path := args[0]

	if _, err := os.Stat(path); err != nil {
		fatal(fmt.Sprintf("File not found: %s", path))
	}

	stage := stageFor(lexOnly, parseOnly, validate, tackyOnly, codegenOnly)

	paths := driver.DerivePaths(path)

	glog.V(1).Infof("preprocessing %s -> %s", paths.Source, paths.Preprocessed)
	if err := driver.Preprocess(paths.Source, paths.Preprocessed); err != nil {
		fatal(err.Error())
	}

	source, err := os.ReadFile(paths.Preprocessed)
	if err != nil {
		fatal(err.Error())
	}

	comp := compiler.New(string(source))
	comp.SetDebug(debug)

	glog.V(1).Infof("compiling %s through stage %d", paths.Source, stage)
	out, err := comp.Compile(stage)
	if err != nil {
		fatal(err.Error())
	}

	if stage != compiler.StageComplete {
		fmt.Print(out)
		return nil
	}

	if err := os.WriteFile(paths.Assembly, []byte(out), 0o644); err != nil {
		fatal(err.Error())
	}

	glog.V(1).Infof("assembling %s -> %s", paths.Assembly, paths.Executable)
	if err := driver.Assemble(paths.Assembly, paths.Executable); err != nil {
		fatal(err.Error())
	}

	return nil
}

// stageFor picks the earliest requested stop-stage, defaulting to running
// the pipeline to completion (spec §6: the five mode flags are mutually
// exclusive, so at most one of these is ever true).
func stageFor(lex, parse, validateStage, tacky, codegen bool) compiler.Stage {
	switch {
	case lex:
		return compiler.StageLex
	case parse:
		return compiler.StageParse
	case validateStage:
		return compiler.StageValidate
	case tacky:
		return compiler.StageTacky
	case codegen:
		return compiler.StageCodegen
	default:
		return compiler.StageComplete
	}
}

// fatal prints a single-line, color-highlighted error message to stderr
// and terminates. No diagnostic carries source location (spec §7).
func fatal(msg string) {
	fmt.Fprintln(os.Stderr, color.RedString("error: %s", msg))
	os.Exit(1)
}
