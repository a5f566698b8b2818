package tacky

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/cc/lexer"
	"github.com/skx/cc/namegen"
	"github.com/skx/cc/parser"
	"github.com/skx/cc/resolver"
	"github.com/skx/cc/token"
)

func lowerSrc(t *testing.T, src string) *Program {
	t.Helper()
	l := lexer.New(src)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	require.NoError(t, l.Err())

	program, err := parser.Parse(toks)
	require.NoError(t, err)

	gen := namegen.New()
	resolved, err := resolver.Resolve(program, gen)
	require.NoError(t, err)

	lowered, err := Lower(resolved, gen)
	require.NoError(t, err)
	return lowered
}

func TestReturnConstantLowersToSingleReturn(t *testing.T) {
	p := lowerSrc(t, "int main(void) { return 2; }")
	require.Len(t, p.Function.Instructions, 2)

	ret, ok := p.Function.Instructions[0].(*Return)
	require.True(t, ok)
	c, ok := ret.Value.(*Constant)
	require.True(t, ok)
	assert.EqualValues(t, 2, c.Value)

	// Function tail always appends Return(Constant(0)).
	tail, ok := p.Function.Instructions[1].(*Return)
	require.True(t, ok)
	c0, ok := tail.Value.(*Constant)
	require.True(t, ok)
	assert.EqualValues(t, 0, c0.Value)
}

func TestUnaryLowersToSingleInstruction(t *testing.T) {
	p := lowerSrc(t, "int main(void) { return -5; }")
	un, ok := p.Function.Instructions[0].(*Unary)
	require.True(t, ok)
	assert.Equal(t, Negate, un.Op)
}

func TestBinaryEvaluatesLeftBeforeRight(t *testing.T) {
	p := lowerSrc(t, "int main(void) { return 1 + 2; }")
	bin, ok := p.Function.Instructions[0].(*Binary)
	require.True(t, ok)
	assert.Equal(t, Add, bin.Op)
	c1, ok := bin.Src1.(*Constant)
	require.True(t, ok)
	assert.EqualValues(t, 1, c1.Value)
	c2, ok := bin.Src2.(*Constant)
	require.True(t, ok)
	assert.EqualValues(t, 2, c2.Value)
}

// && must short-circuit: the right operand is only evaluated when the left
// is nonzero, and the result is produced via jumps, never a Binary op.
func TestLogicalAndShortCircuits(t *testing.T) {
	p := lowerSrc(t, "int main(void) { return 1 && 2; }")

	var sawJumpIfZero, sawBinaryAnd bool
	for _, instr := range p.Function.Instructions {
		switch n := instr.(type) {
		case *JumpIfZero:
			sawJumpIfZero = true
		case *Binary:
			if n.Op == BitAnd {
				sawBinaryAnd = true
			}
		}
	}
	assert.True(t, sawJumpIfZero, "&& must lower via JumpIfZero")
	assert.False(t, sawBinaryAnd, "&& must never lower to a single Binary instruction")
}

func TestLogicalOrShortCircuits(t *testing.T) {
	p := lowerSrc(t, "int main(void) { return 0 || 2; }")

	var sawJumpIfNotZero bool
	for _, instr := range p.Function.Instructions {
		if _, ok := instr.(*JumpIfNotZero); ok {
			sawJumpIfNotZero = true
		}
	}
	assert.True(t, sawJumpIfNotZero, "|| must lower via JumpIfNotZero")
}

func TestCompoundAssignDesugarsToBaseOp(t *testing.T) {
	p := lowerSrc(t, "int main(void) { int a = 1; a += 3; return a; }")

	var sawAdd bool
	for _, instr := range p.Function.Instructions {
		if bin, ok := instr.(*Binary); ok && bin.Op == Add {
			sawAdd = true
		}
	}
	assert.True(t, sawAdd, "a += 3 must lower through the plain Add operator")
}

func TestPostfixIncrementReturnsPreUpdateValue(t *testing.T) {
	p := lowerSrc(t, "int main(void) { int a = 1; return a++; }")

	var copies []*Copy
	var sawIncrement bool
	var ret *Return
	for _, instr := range p.Function.Instructions {
		switch n := instr.(type) {
		case *Copy:
			copies = append(copies, n)
		case *Binary:
			if n.Op == Add {
				sawIncrement = true
			}
		case *Return:
			if ret == nil {
				ret = n
			}
		}
	}
	require.NotEmpty(t, copies)
	assert.True(t, sawIncrement)

	// The returned value is the temporary a was copied into before the
	// increment, not a itself.
	require.NotNil(t, ret)
	saved := copies[len(copies)-1]
	assert.Equal(t, saved.Dst, ret.Value)
	assert.NotEqual(t, saved.Src, ret.Value)
}

func TestIfElseLowersToJumpIfZeroAndJump(t *testing.T) {
	p := lowerSrc(t, "int main(void) { if (1) return 2; else return 3; }")

	var sawJumpIfZero, sawJump, sawLabel bool
	for _, instr := range p.Function.Instructions {
		switch instr.(type) {
		case *JumpIfZero:
			sawJumpIfZero = true
		case *Jump:
			sawJump = true
		case *Label:
			sawLabel = true
		}
	}
	assert.True(t, sawJumpIfZero)
	assert.True(t, sawJump)
	assert.True(t, sawLabel)
}

func TestConditionalProducesAValue(t *testing.T) {
	p := lowerSrc(t, "int main(void) { return 1 ? 2 : 3; }")

	var sawCopyToSameDest bool
	var dest Val
	for _, instr := range p.Function.Instructions {
		if c, ok := instr.(*Copy); ok {
			if dest == nil {
				dest = c.Dst
			} else if v, ok := c.Dst.(*Var); ok {
				if v2, ok := dest.(*Var); ok && v.Name == v2.Name {
					sawCopyToSameDest = true
				}
			}
		}
	}
	assert.True(t, sawCopyToSameDest, "both arms of ?: must copy into the same result temporary")
}

func TestGotoLowersToUnconditionalJump(t *testing.T) {
	p := lowerSrc(t, "int main(void) { goto end; end: return 0; }")

	jmp, ok := p.Function.Instructions[0].(*Jump)
	require.True(t, ok)
	assert.Equal(t, "end", jmp.Target)

	lbl, ok := p.Function.Instructions[1].(*Label)
	require.True(t, ok)
	assert.Equal(t, "end", lbl.Name)
}

func TestUninitializedDeclarationEmitsNoInstruction(t *testing.T) {
	p := lowerSrc(t, "int main(void) { int a; return 0; }")
	// Only the explicit return plus the function-tail return; the bare
	// declaration contributes nothing.
	require.Len(t, p.Function.Instructions, 2)
}
