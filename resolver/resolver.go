// Package resolver performs semantic resolution on a parsed C AST: it
// renames every declared identifier to a globally unique name, validates
// that assignment/compound-assignment/increment/decrement targets are
// lvalues, and validates that every `goto` targets a `Label` that actually
// exists somewhere in the enclosing function.
//
// The scope-stack design is grounded on original_source/src/semantic/
// semantic.py's `VariableMap`: a stack of name -> unique-name maps, pushed
// on entering a Compound statement and popped on leaving it (Design note
// "Scope stack as an owned value").
package resolver

import (
	"fmt"

	"github.com/skx/cc/ast"
	"github.com/skx/cc/namegen"
)

// scopes is a stack of identifier -> unique-identifier maps, innermost
// scope last.
type scopes struct {
	maps []map[string]string
}

func newScopes() *scopes {
	return &scopes{maps: []map[string]string{make(map[string]string)}}
}

func (s *scopes) push() {
	s.maps = append(s.maps, make(map[string]string))
}

func (s *scopes) pop() {
	s.maps = s.maps[:len(s.maps)-1]
}

func (s *scopes) innermost() map[string]string {
	return s.maps[len(s.maps)-1]
}

func (s *scopes) declaredInInnermost(name string) bool {
	_, ok := s.innermost()[name]
	return ok
}

func (s *scopes) lookup(name string) (string, bool) {
	for i := len(s.maps) - 1; i >= 0; i-- {
		if unique, ok := s.maps[i][name]; ok {
			return unique, true
		}
	}
	return "", false
}

func (s *scopes) register(name, unique string) {
	s.innermost()[name] = unique
}

// resolver holds the resolution state for one function.
type resolver struct {
	gen    *namegen.Gen
	scopes *scopes
	labels map[string]bool // every Label declared in the function
}

// Resolve renames every declaration in program to a unique identifier,
// validates lvalue usage, and validates goto/label consistency. It
// returns a new Program; the input is left untouched.
func Resolve(program *ast.Program, gen *namegen.Gen) (*ast.Program, error) {
	r := &resolver{gen: gen, scopes: newScopes(), labels: make(map[string]bool)}

	collectLabels(program.Function.Body, r.labels)

	body, err := r.resolveBlock(program.Function.Body)
	if err != nil {
		return nil, err
	}

	if err := r.checkGotos(body); err != nil {
		return nil, err
	}

	return &ast.Program{Function: &ast.Function{Name: program.Function.Name, Body: body}}, nil
}

// collectLabels walks every statement, including inside nested compounds,
// recording the name of every Label. Declaring two labels with the same
// name anywhere in the function is not validated here; the assembler
// would reject the resulting duplicate label, which is an acceptable
// (if blunt) diagnostic for this compiler's scope.
func collectLabels(b ast.Block, out map[string]bool) {
	for _, item := range b.Items {
		if item.Stmt != nil {
			collectLabelsStmt(*item.Stmt, out)
		}
	}
}

func collectLabelsStmt(s ast.Statement, out map[string]bool) {
	switch n := s.(type) {
	case *ast.Label:
		out[n.Name] = true
		collectLabelsStmt(n.Inner, out)
	case *ast.If:
		collectLabelsStmt(n.Then, out)
	case *ast.IfElse:
		collectLabelsStmt(n.Then, out)
		collectLabelsStmt(n.Else, out)
	case *ast.Compound:
		collectLabels(n.Body, out)
	}
}

// checkGotos walks the resolved tree and fails fatally if any Goto
// targets a name collectLabels did not find (spec §9, Open Question
// resolved as choice (a)).
func (r *resolver) checkGotos(b ast.Block) error {
	for _, item := range b.Items {
		if item.Stmt == nil {
			continue
		}
		if err := r.checkGotosStmt(*item.Stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) checkGotosStmt(s ast.Statement) error {
	switch n := s.(type) {
	case *ast.Goto:
		if !r.labels[n.Name] {
			return fmt.Errorf("resolve error: goto target %q is not a label in this function", n.Name)
		}
	case *ast.Label:
		return r.checkGotosStmt(n.Inner)
	case *ast.If:
		return r.checkGotosStmt(n.Then)
	case *ast.IfElse:
		if err := r.checkGotosStmt(n.Then); err != nil {
			return err
		}
		return r.checkGotosStmt(n.Else)
	case *ast.Compound:
		return r.checkGotos(n.Body)
	}
	return nil
}

func (r *resolver) resolveBlock(b ast.Block) (ast.Block, error) {
	items := make([]ast.BlockItem, len(b.Items))
	for i, item := range b.Items {
		resolved, err := r.resolveBlockItem(item)
		if err != nil {
			return ast.Block{}, err
		}
		items[i] = resolved
	}
	return ast.Block{Items: items}, nil
}

func (r *resolver) resolveBlockItem(item ast.BlockItem) (ast.BlockItem, error) {
	if item.Decl != nil {
		decl, err := r.resolveDeclaration(*item.Decl)
		if err != nil {
			return ast.BlockItem{}, err
		}
		return ast.BlockItem{Decl: &decl}, nil
	}

	stmt, err := r.resolveStatement(*item.Stmt)
	if err != nil {
		return ast.BlockItem{}, err
	}
	return ast.BlockItem{Stmt: &stmt}, nil
}

func (r *resolver) resolveDeclaration(d ast.Declaration) (ast.Declaration, error) {
	if r.scopes.declaredInInnermost(d.Name) {
		return ast.Declaration{}, fmt.Errorf("resolve error: duplicate declaration of %q in this scope", d.Name)
	}

	unique := r.gen.Next(d.Name)
	r.scopes.register(d.Name, unique)

	if d.Init == nil {
		return ast.Declaration{Name: unique}, nil
	}

	init, err := r.resolveExpr(d.Init)
	if err != nil {
		return ast.Declaration{}, err
	}
	return ast.Declaration{Name: unique, Init: init}, nil
}

func (r *resolver) resolveStatement(s ast.Statement) (ast.Statement, error) {
	switch n := s.(type) {
	case *ast.Null:
		return n, nil

	case *ast.Return:
		e, err := r.resolveExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Return{Value: e}, nil

	case *ast.ExprStmt:
		e, err := r.resolveExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Value: e}, nil

	case *ast.If:
		cond, err := r.resolveExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := r.resolveStatement(n.Then)
		if err != nil {
			return nil, err
		}
		return &ast.If{Cond: cond, Then: then}, nil

	case *ast.IfElse:
		cond, err := r.resolveExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := r.resolveStatement(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := r.resolveStatement(n.Else)
		if err != nil {
			return nil, err
		}
		return &ast.IfElse{Cond: cond, Then: then, Else: els}, nil

	case *ast.Label:
		inner, err := r.resolveStatement(n.Inner)
		if err != nil {
			return nil, err
		}
		return &ast.Label{Name: n.Name, Inner: inner}, nil

	case *ast.Goto:
		return &ast.Goto{Name: n.Name}, nil

	case *ast.Compound:
		r.scopes.push()
		defer r.scopes.pop()
		body, err := r.resolveBlock(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Compound{Body: body}, nil

	default:
		return nil, fmt.Errorf("resolve error: unhandled statement %T", s)
	}
}

func (r *resolver) resolveExpr(e ast.Expression) (ast.Expression, error) {
	switch n := e.(type) {
	case *ast.Constant:
		return n, nil

	case *ast.Var:
		unique, ok := r.scopes.lookup(n.Name)
		if !ok {
			return nil, fmt.Errorf("resolve error: use of undeclared identifier %q", n.Name)
		}
		return &ast.Var{Name: unique}, nil

	case *ast.Unary:
		if n.Op == ast.PrefixIncrement || n.Op == ast.PrefixDecrement {
			if _, ok := n.Operand.(*ast.Var); !ok {
				return nil, fmt.Errorf("resolve error: operand of ++/-- must be an lvalue")
			}
		}
		operand, err := r.resolveExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: n.Op, Operand: operand}, nil

	case *ast.Binary:
		left, err := r.resolveExpr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := r.resolveExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: n.Op, Left: left, Right: right}, nil

	case *ast.Assignment:
		if _, ok := n.Left.(*ast.Var); !ok {
			return nil, fmt.Errorf("resolve error: left side of = must be an lvalue")
		}
		left, err := r.resolveExpr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := r.resolveExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Assignment{Left: left, Right: right}, nil

	case *ast.CompoundAssign:
		if _, ok := n.Left.(*ast.Var); !ok {
			return nil, fmt.Errorf("resolve error: left side of a compound assignment must be an lvalue")
		}
		left, err := r.resolveExpr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := r.resolveExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.CompoundAssign{Op: n.Op, Left: left, Right: right}, nil

	case *ast.Postfix:
		if _, ok := n.Operand.(*ast.Var); !ok {
			return nil, fmt.Errorf("resolve error: operand of postfix ++/-- must be an lvalue")
		}
		operand, err := r.resolveExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.Postfix{IsIncrement: n.IsIncrement, Operand: operand}, nil

	case *ast.Conditional:
		cond, err := r.resolveExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := r.resolveExpr(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := r.resolveExpr(n.Else)
		if err != nil {
			return nil, err
		}
		return &ast.Conditional{Cond: cond, Then: then, Else: els}, nil

	default:
		return nil, fmt.Errorf("resolve error: unhandled expression %T", e)
	}
}
