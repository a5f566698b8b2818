// The compiler package contains the core of our compiler.
//
// In brief we go through a six-step pipeline:
//
//  1. Lex the source into a stream of tokens.
//
//  2. Parse the tokens into a C abstract syntax tree.
//
//  3. Resolve the tree: rename every declaration to a unique identifier,
//     and validate lvalues and goto targets.
//
//  4. Lower the resolved tree to TACKY, the three-address intermediate
//     representation.
//
//  5. Lower TACKY to abstract x86-64 assembly, replace pseudo-registers
//     with stack slots, and fix up encoding-illegal instructions.
//
//  6. Emit GNU-assembler text for the result.
//
// Each of the four intermediate stages can be inspected on its own via
// Compile's stage argument, which stops the pipeline early and returns a
// textual dump instead of assembly - this is what backs the CLI's
// --lex/--parse/--validate/--tacky flags.
package compiler

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/skx/cc/asmgen"
	"github.com/skx/cc/lexer"
	"github.com/skx/cc/namegen"
	"github.com/skx/cc/parser"
	"github.com/skx/cc/resolver"
	"github.com/skx/cc/tacky"
	"github.com/skx/cc/token"
)

// Stage identifies how far through the pipeline Compile should run.
type Stage int

// Pipeline stages, in the order they run.
const (
	StageLex Stage = iota
	StageParse
	StageValidate
	StageTacky
	StageCodegen
	StageComplete
)

// Compiler holds our object-state.
type Compiler struct {
	// debug holds a flag to decide if debugging information is
	// included in the output assembly.
	debug bool

	// source holds the full text of the C program we're compiling.
	source string

	// tokens holds the source, broken down into a series of tokens by
	// the lexer. Populated once lex() has run.
	tokens []token.Token
}

//
// Our public API consists of:
//  New
//  SetDebug
//  Compile
//
// The rest of the code is an implementation detail.
//

// New creates a new compiler, given the full source of a C program.
func New(source string) *Compiler {
	return &Compiler{source: source}
}

// SetDebug changes the debug-flag for our output.
func (c *Compiler) SetDebug(val bool) {
	c.debug = val
}

// Compile runs the pipeline up to (and including) stage, and returns a
// textual representation of the result: the emitted assembly for
// StageCodegen/StageComplete, or a debug dump of the intermediate form
// for earlier stages.
func (c *Compiler) Compile(stage Stage) (string, error) {
	if err := c.lex(); err != nil {
		return "", err
	}
	if stage == StageLex {
		return dumpTokens(c.tokens), nil
	}

	program, err := parser.Parse(c.tokens)
	if err != nil {
		return "", errors.Wrap(err, "parse error")
	}
	if stage == StageParse {
		return fmt.Sprintf("%+v", program), nil
	}

	gen := namegen.New()
	resolved, err := resolver.Resolve(program, gen)
	if err != nil {
		return "", errors.Wrap(err, "resolve error")
	}
	if stage == StageValidate {
		return fmt.Sprintf("%+v", resolved), nil
	}

	lowered, err := tacky.Lower(resolved, gen)
	if err != nil {
		return "", errors.Wrap(err, "tacky lowering error")
	}
	if stage == StageTacky {
		return dumpTacky(lowered), nil
	}

	asm, err := asmgen.Lower(lowered)
	if err != nil {
		return "", errors.Wrap(err, "asm lowering error")
	}

	return Emit(asm, c.debug), nil
}

// lex populates our internal list of tokens, as a result of lexing the
// source program. A lexer error (an unknown character, or an integer
// with a trailing letter) is fatal.
func (c *Compiler) lex() error {
	lexed := lexer.New(c.source)

	for {
		tok := lexed.NextToken()
		c.tokens = append(c.tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}

	if err := lexed.Err(); err != nil {
		return errors.Wrap(err, "lex error")
	}
	return nil
}

func dumpTokens(tokens []token.Token) string {
	out := ""
	for _, t := range tokens {
		out += fmt.Sprintf("%-12s %q\n", t.Type, t.Literal)
	}
	return out
}

func dumpTacky(program *tacky.Program) string {
	out := fmt.Sprintf("function %s:\n", program.Function.Name)
	for _, instr := range program.Function.Instructions {
		out += fmt.Sprintf("  %#v\n", instr)
	}
	return out
}
