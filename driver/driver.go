// Package driver invokes the external C preprocessor and assembler/linker
// around the compiler's own pipeline (spec §6), and derives the
// `.i`/`.s`/executable file names from the input `.c` path.
//
// The two-step gcc invocation (preprocess, then assemble-and-link) and
// the stderr-capturing error wrapping are grounded on
// original_source/src/driver.py's `handle_args`.
package driver

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Paths holds the filenames derived from a single input `.c` source file.
type Paths struct {
	Source       string // the original .c file
	Preprocessed string // .i: the output of the C preprocessor
	Assembly     string // .s: the compiler's own output
	Executable   string // the linked binary, with no extension
}

// DerivePaths computes the .i/.s/executable names for source, given
// `/dir/name.c` -> `/dir/name.i`, `/dir/name.s`, `/dir/name` (spec §6).
func DerivePaths(source string) Paths {
	dir := filepath.Dir(source)
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	return Paths{
		Source:       source,
		Preprocessed: filepath.Join(dir, base+".i"),
		Assembly:     filepath.Join(dir, base+".s"),
		Executable:   filepath.Join(dir, base),
	}
}

// Preprocess runs the C preprocessor over source, writing the result to
// out. A non-zero exit is fatal, with gcc's captured stderr surfaced
// verbatim (spec §7, "Toolchain error").
func Preprocess(source, out string) error {
	return runGCC("preprocess", "gcc", "-E", "-P", source, "-o", out)
}

// Assemble invokes the assembler/linker over the `.s` file at asmPath,
// producing the executable at out.
func Assemble(asmPath, out string) error {
	return runGCC("assemble", "gcc", "-o", out, asmPath)
}

func runGCC(step string, name string, args ...string) error {
	cmd := exec.Command(name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s: gcc failed: %s", step, strings.TrimSpace(stderr.String()))
	}
	return nil
}
