package compiler

import (
	"strings"
	"testing"
)

// Seed scenario 1 (spec §8, Property 7): the simplest possible program
// should compile all the way to assembly without error, and that
// assembly should move the constant into %eax before returning.
func TestCompileSimpleReturn(t *testing.T) {
	c := New("int main(void) { return 2; }")
	out, err := c.Compile(StageComplete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, ".global main") {
		t.Errorf("expected a .global directive for main, got:\n%s", out)
	}
	if !strings.Contains(out, "$2, %eax") {
		t.Errorf("expected the constant 2 moved into %%eax, got:\n%s", out)
	}
	if !strings.HasSuffix(strings.TrimRight(out, "\n"), `.section .note.GNU-stack,"",@progbits`) {
		t.Errorf("expected the GNU-stack note to trail the output, got:\n%s", out)
	}
}

func TestCompileStopsAtLexStage(t *testing.T) {
	c := New("int main(void) { return 2; }")
	out, err := c.Compile(StageLex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "CONSTANT") {
		t.Errorf("expected a token dump mentioning CONSTANT, got:\n%s", out)
	}
	if strings.Contains(out, ".global") {
		t.Errorf("a --lex dump must not contain assembly, got:\n%s", out)
	}
}

func TestCompileStopsAtParseStage(t *testing.T) {
	c := New("int main(void) { return 2; }")
	out, err := c.Compile(StageParse)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Function") {
		t.Errorf("expected an AST dump mentioning Function, got:\n%s", out)
	}
}

func TestCompileReportsLexError(t *testing.T) {
	c := New("int main(void) { return `; }")
	_, err := c.Compile(StageComplete)
	if err == nil {
		t.Fatalf("expected a lex error for an unknown character")
	}
}

func TestCompileReportsResolveError(t *testing.T) {
	c := New("int main(void) { return undeclared; }")
	_, err := c.Compile(StageComplete)
	if err == nil {
		t.Fatalf("expected a resolve error for an undeclared identifier")
	}
}

// Seed scenario 7: compound assignment followed by postfix increment;
// the function must compile without error.
func TestCompileCompoundAssignThenPostfix(t *testing.T) {
	c := New("int main(void) { int a = 5; a += 3; return a++; }")
	out, err := c.Compile(StageComplete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "addl") {
		t.Errorf("expected an addl instruction for +=, got:\n%s", out)
	}
}

func TestCompileReportsParseError(t *testing.T) {
	c := New("int main(void) { return }")
	_, err := c.Compile(StageComplete)
	if err == nil {
		t.Fatalf("expected a parse error for a missing return expression")
	}
}
