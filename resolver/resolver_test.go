package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/cc/ast"
	"github.com/skx/cc/lexer"
	"github.com/skx/cc/namegen"
	"github.com/skx/cc/parser"
	"github.com/skx/cc/token"
)

func parseSrc(t *testing.T, src string) *ast.Program {
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
	return program
}

// collectAllDeclNames walks the resolved tree collecting every declared
// name, including inside nested compounds.
func collectAllDeclNames(b ast.Block, out *[]string) {
	for _, item := range b.Items {
		if item.Decl != nil {
			*out = append(*out, item.Decl.Name)
		}
		if item.Stmt != nil {
			collectDeclNamesStmt(*item.Stmt, out)
		}
	}
}

func collectDeclNamesStmt(s ast.Statement, out *[]string) {
	switch n := s.(type) {
	case *ast.Compound:
		collectAllDeclNames(n.Body, out)
	case *ast.If:
		collectDeclNamesStmt(n.Then, out)
	case *ast.IfElse:
		collectDeclNamesStmt(n.Then, out)
		collectDeclNamesStmt(n.Else, out)
	case *ast.Label:
		collectDeclNamesStmt(n.Inner, out)
	}
}

// Property 5: after resolution, every declaration's renamed identifier is
// distinct, even across nested scopes that reuse the source name.
func TestUniqueNames(t *testing.T) {
	program := parseSrc(t, `int main(void) {
		int a = 1;
		{
			int a = 2;
			{
				int a = 3;
			}
		}
		return a;
	}`)

	resolved, err := Resolve(program, namegen.New())
	require.NoError(t, err)

	var names []string
	collectAllDeclNames(resolved.Function.Body, &names)
	require.Len(t, names, 3)

	seen := make(map[string]bool)
	for _, n := range names {
		assert.False(t, seen[n], "duplicate renamed identifier %q", n)
		seen[n] = true
	}
}

func TestDuplicateDeclarationInSameScopeIsFatal(t *testing.T) {
	program := parseSrc(t, `int main(void) { int a = 1; int a = 2; return a; }`)
	_, err := Resolve(program, namegen.New())
	assert.Error(t, err)
}

func TestShadowingInNestedScopeIsFine(t *testing.T) {
	program := parseSrc(t, `int main(void) { int a = 1; { int a = 2; } return a; }`)
	_, err := Resolve(program, namegen.New())
	assert.NoError(t, err)
}

func TestUndeclaredVariableIsFatal(t *testing.T) {
	program := parseSrc(t, `int main(void) { return a; }`)
	_, err := Resolve(program, namegen.New())
	assert.Error(t, err)
}

func TestNonLvalueAssignmentIsFatal(t *testing.T) {
	tests := []string{
		`int main(void) { 1 = 2; return 0; }`,
		`int main(void) { 1 += 2; return 0; }`,
		`int main(void) { 1++; return 0; }`,
		`int main(void) { ++1; return 0; }`,
	}
	for _, src := range tests {
		program := parseSrc(t, src)
		_, err := Resolve(program, namegen.New())
		assert.Error(t, err, "expected resolve error for %q", src)
	}
}

func TestGotoWithoutMatchingLabelIsFatal(t *testing.T) {
	program := parseSrc(t, `int main(void) { goto nowhere; return 0; }`)
	_, err := Resolve(program, namegen.New())
	assert.Error(t, err)
}

func TestGotoIntoNestedCompoundIsFine(t *testing.T) {
	program := parseSrc(t, `int main(void) { goto inner; { inner: return 0; } }`)
	_, err := Resolve(program, namegen.New())
	assert.NoError(t, err)
}

func TestVariableReferencesPickInnermostBinding(t *testing.T) {
	program := parseSrc(t, `int main(void) { int a = 1; { int a = 2; return a; } }`)
	resolved, err := Resolve(program, namegen.New())
	require.NoError(t, err)

	compound, ok := (*resolved.Function.Body.Items[1].Stmt).(*ast.Compound)
	require.True(t, ok)
	innerDecl := compound.Body.Items[0].Decl
	ret := (*compound.Body.Items[1].Stmt).(*ast.Return)
	v := ret.Value.(*ast.Var)
	assert.Equal(t, innerDecl.Name, v.Name)
}
