// Package tacky lowers a resolved C AST into TACKY, the three-address
// intermediate representation described in spec §3 and §4.4.
//
// The lowering rules, the short-circuit control flow for && / ||, the
// compound-assignment desugaring table, and the temporary-name prefixes
// are all grounded on original_source/src/tacky.py's `emit_tacky`.
package tacky

import (
	"fmt"
	"strconv"

	"github.com/skx/cc/ast"
	"github.com/skx/cc/namegen"
)

// UnaryOp is a TACKY-level unary operator. NOT is included here even
// though it expands to a compare-and-set at the asm level (spec §4.5);
// at TACKY level it is an ordinary unary op.
type UnaryOp int

// Unary operators.
const (
	Complement UnaryOp = iota
	Negate
	Not
)

// BinOp is a TACKY-level binary operator.
type BinOp int

// Binary operators.
const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Rem
	Shl
	Shr
	BitAnd
	BitOr
	Xor
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

// Val is either a Constant or a Var; both implement Val.
type Val interface {
	valNode()
}

// Constant is a literal integer value.
type Constant struct {
	Value int64
}

// Var names a TACKY temporary or resolved source variable.
type Var struct {
	Name string
}

func (*Constant) valNode() {}
func (*Var) valNode()      {}

// Instruction is one TACKY instruction.
type Instruction interface {
	instructionNode()
}

// Return returns Value from the function.
type Return struct{ Value Val }

// Unary computes Op(Src) into Dst.
type Unary struct {
	Op  UnaryOp
	Src Val
	Dst Val
}

// Binary computes Src1 Op Src2 into Dst.
type Binary struct {
	Op   BinOp
	Src1 Val
	Src2 Val
	Dst  Val
}

// Copy stores Src into Dst.
type Copy struct {
	Src Val
	Dst Val
}

// Jump transfers control unconditionally to Target.
type Jump struct{ Target string }

// JumpIfZero transfers control to Target when Condition == 0.
type JumpIfZero struct {
	Condition Val
	Target    string
}

// JumpIfNotZero transfers control to Target when Condition != 0.
type JumpIfNotZero struct {
	Condition Val
	Target    string
}

// Label declares a jump target.
type Label struct{ Name string }

func (*Return) instructionNode()        {}
func (*Unary) instructionNode()         {}
func (*Binary) instructionNode()        {}
func (*Copy) instructionNode()          {}
func (*Jump) instructionNode()          {}
func (*JumpIfZero) instructionNode()    {}
func (*JumpIfNotZero) instructionNode() {}
func (*Label) instructionNode()         {}

// Function is a single lowered function: a name plus its instructions.
type Function struct {
	Name         string
	Instructions []Instruction
}

// Program owns the single lowered function.
type Program struct {
	Function *Function
}

// lowerer threads the shared name generator through expression/statement
// lowering and accumulates the instruction list for the current function.
type lowerer struct {
	gen  *namegen.Gen
	code []Instruction
}

func (l *lowerer) emit(instr Instruction) {
	l.code = append(l.code, instr)
}

// Lower converts a resolved C AST Program into a TACKY Program.
func Lower(program *ast.Program, gen *namegen.Gen) (*Program, error) {
	l := &lowerer{gen: gen}

	if err := l.lowerBlock(program.Function.Body); err != nil {
		return nil, err
	}

	// Function tail: control must never fall off the end of the
	// function (spec §4.4 "Function tail").
	l.emit(&Return{Value: &Constant{Value: 0}})

	return &Program{Function: &Function{Name: program.Function.Name, Instructions: l.code}}, nil
}

func (l *lowerer) lowerBlock(b ast.Block) error {
	for _, item := range b.Items {
		if item.Decl != nil {
			if err := l.lowerDeclaration(*item.Decl); err != nil {
				return err
			}
			continue
		}
		if _, err := l.lowerStatement(*item.Stmt); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) lowerDeclaration(d ast.Declaration) error {
	if d.Init == nil {
		// Uninitialized: allocate nothing here. The stack slot is
		// allocated later, during pseudo replacement, the first
		// time this name is referenced (spec §9, "Unspecified:
		// uninitialized variables").
		return nil
	}
	v, err := l.lowerExpr(d.Init)
	if err != nil {
		return err
	}
	l.emit(&Copy{Src: v, Dst: &Var{Name: d.Name}})
	return nil
}

// lowerStatement lowers a statement for effect; the returned Val (when
// non-nil) is only meaningful for the handful of statement forms where a
// caller might care, and no caller currently does.
func (l *lowerer) lowerStatement(s ast.Statement) (Val, error) {
	switch n := s.(type) {
	case *ast.Null:
		return nil, nil

	case *ast.Return:
		v, err := l.lowerExpr(n.Value)
		if err != nil {
			return nil, err
		}
		l.emit(&Return{Value: v})
		return v, nil

	case *ast.ExprStmt:
		_, err := l.lowerExpr(n.Value)
		return nil, err

	case *ast.If:
		cond, err := l.lowerExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		endLbl := l.gen.Next("if_end")
		l.emit(&JumpIfZero{Condition: cond, Target: endLbl})
		if _, err := l.lowerStatement(n.Then); err != nil {
			return nil, err
		}
		l.emit(&Label{Name: endLbl})
		return nil, nil

	case *ast.IfElse:
		cond, err := l.lowerExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		elseLbl := l.gen.Next("else")
		endLbl := l.gen.Next("if_end")
		l.emit(&JumpIfZero{Condition: cond, Target: elseLbl})
		if _, err := l.lowerStatement(n.Then); err != nil {
			return nil, err
		}
		l.emit(&Jump{Target: endLbl})
		l.emit(&Label{Name: elseLbl})
		if _, err := l.lowerStatement(n.Else); err != nil {
			return nil, err
		}
		l.emit(&Label{Name: endLbl})
		return nil, nil

	case *ast.Label:
		l.emit(&Label{Name: n.Name})
		return l.lowerStatement(n.Inner)

	case *ast.Goto:
		l.emit(&Jump{Target: n.Name})
		return nil, nil

	case *ast.Compound:
		return nil, l.lowerBlock(n.Body)

	default:
		return nil, fmt.Errorf("tacky: unhandled statement %T", s)
	}
}

func (l *lowerer) lowerExpr(e ast.Expression) (Val, error) {
	switch n := e.(type) {
	case *ast.Constant:
		value, err := strconv.ParseInt(n.Text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tacky: malformed integer constant %q: %w", n.Text, err)
		}
		return &Constant{Value: value}, nil

	case *ast.Var:
		return &Var{Name: n.Name}, nil

	case *ast.Unary:
		return l.lowerUnary(n)

	case *ast.Binary:
		return l.lowerBinary(n)

	case *ast.Assignment:
		lv, ok := n.Left.(*ast.Var)
		if !ok {
			return nil, fmt.Errorf("tacky: internal error: assignment target is not a Var after resolution")
		}
		rv, err := l.lowerExpr(n.Right)
		if err != nil {
			return nil, err
		}
		dst := &Var{Name: lv.Name}
		l.emit(&Copy{Src: rv, Dst: dst})
		return dst, nil

	case *ast.CompoundAssign:
		// lv is substituted twice: once as the left operand of the
		// underlying binary op, once as the assignment target. This
		// is only sound because the sole supported lvalue form (a
		// bare variable) has no side effects of its own (spec §9).
		return l.lowerExpr(&ast.Assignment{
			Left:  n.Left,
			Right: &ast.Binary{Op: n.Op.BaseOp(), Left: n.Left, Right: n.Right},
		})

	case *ast.Postfix:
		lv, ok := n.Operand.(*ast.Var)
		if !ok {
			return nil, fmt.Errorf("tacky: internal error: postfix operand is not a Var after resolution")
		}
		prefix := "postfix_inc"
		op := Add
		if !n.IsIncrement {
			prefix = "postfix_dec"
			op = Sub
		}
		tmp := &Var{Name: l.gen.Next(prefix)}
		src := &Var{Name: lv.Name}
		l.emit(&Copy{Src: src, Dst: tmp})
		l.emit(&Binary{Op: op, Src1: src, Src2: &Constant{Value: 1}, Dst: src})
		return tmp, nil

	case *ast.Conditional:
		return l.lowerConditional(n)

	default:
		return nil, fmt.Errorf("tacky: unhandled expression %T", e)
	}
}

func (l *lowerer) lowerUnary(n *ast.Unary) (Val, error) {
	switch n.Op {
	case ast.PrefixIncrement, ast.PrefixDecrement:
		lv, ok := n.Operand.(*ast.Var)
		if !ok {
			return nil, fmt.Errorf("tacky: internal error: prefix ++/-- operand is not a Var after resolution")
		}
		op := Add
		if n.Op == ast.PrefixDecrement {
			op = Sub
		}
		v := &Var{Name: lv.Name}
		l.emit(&Binary{Op: op, Src1: v, Src2: &Constant{Value: 1}, Dst: v})
		return v, nil

	default:
		src, err := l.lowerExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		dst := &Var{Name: l.gen.Next("tmp")}
		l.emit(&Unary{Op: convertUnaryOp(n.Op), Src: src, Dst: dst})
		return dst, nil
	}
}

func convertUnaryOp(op ast.UnaryOp) UnaryOp {
	switch op {
	case ast.Complement:
		return Complement
	case ast.Negate:
		return Negate
	case ast.Not:
		return Not
	default:
		panic(fmt.Sprintf("tacky: unexpected unary operator %v", op))
	}
}

func convertBinOp(op ast.BinOp) BinOp {
	switch op {
	case ast.Add:
		return Add
	case ast.Sub:
		return Sub
	case ast.Mul:
		return Mul
	case ast.Div:
		return Div
	case ast.Rem:
		return Rem
	case ast.Shl:
		return Shl
	case ast.Shr:
		return Shr
	case ast.BitAnd:
		return BitAnd
	case ast.BitOr:
		return BitOr
	case ast.Xor:
		return Xor
	case ast.Eq:
		return Eq
	case ast.Ne:
		return Ne
	case ast.Lt:
		return Lt
	case ast.Le:
		return Le
	case ast.Gt:
		return Gt
	case ast.Ge:
		return Ge
	default:
		panic(fmt.Sprintf("tacky: unexpected binary operator %v", op))
	}
}

func (l *lowerer) lowerBinary(n *ast.Binary) (Val, error) {
	switch n.Op {
	case ast.LogAnd:
		result := &Var{Name: l.gen.Next("and_result")}
		falseLbl := l.gen.Next("and_false")
		endLbl := l.gen.Next("and_end")

		la, err := l.lowerExpr(n.Left)
		if err != nil {
			return nil, err
		}
		l.emit(&JumpIfZero{Condition: la, Target: falseLbl})

		lb, err := l.lowerExpr(n.Right)
		if err != nil {
			return nil, err
		}
		l.emit(&JumpIfZero{Condition: lb, Target: falseLbl})
		l.emit(&Copy{Src: &Constant{Value: 1}, Dst: result})
		l.emit(&Jump{Target: endLbl})
		l.emit(&Label{Name: falseLbl})
		l.emit(&Copy{Src: &Constant{Value: 0}, Dst: result})
		l.emit(&Label{Name: endLbl})
		return result, nil

	case ast.LogOr:
		result := &Var{Name: l.gen.Next("or_result")}
		trueLbl := l.gen.Next("or_true")
		endLbl := l.gen.Next("or_end")

		la, err := l.lowerExpr(n.Left)
		if err != nil {
			return nil, err
		}
		l.emit(&JumpIfNotZero{Condition: la, Target: trueLbl})

		lb, err := l.lowerExpr(n.Right)
		if err != nil {
			return nil, err
		}
		l.emit(&JumpIfNotZero{Condition: lb, Target: trueLbl})
		l.emit(&Copy{Src: &Constant{Value: 0}, Dst: result})
		l.emit(&Jump{Target: endLbl})
		l.emit(&Label{Name: trueLbl})
		l.emit(&Copy{Src: &Constant{Value: 1}, Dst: result})
		l.emit(&Label{Name: endLbl})
		return result, nil

	default:
		v1, err := l.lowerExpr(n.Left)
		if err != nil {
			return nil, err
		}
		v2, err := l.lowerExpr(n.Right)
		if err != nil {
			return nil, err
		}
		dst := &Var{Name: l.gen.Next("tmp")}
		l.emit(&Binary{Op: convertBinOp(n.Op), Src1: v1, Src2: v2, Dst: dst})
		return dst, nil
	}
}

func (l *lowerer) lowerConditional(n *ast.Conditional) (Val, error) {
	result := &Var{Name: l.gen.Next("cond_result")}
	elseLbl := l.gen.Next("cond_else")
	endLbl := l.gen.Next("cond_end")

	cond, err := l.lowerExpr(n.Cond)
	if err != nil {
		return nil, err
	}
	l.emit(&JumpIfZero{Condition: cond, Target: elseLbl})

	thenVal, err := l.lowerExpr(n.Then)
	if err != nil {
		return nil, err
	}
	l.emit(&Copy{Src: thenVal, Dst: result})
	l.emit(&Jump{Target: endLbl})

	l.emit(&Label{Name: elseLbl})
	elseVal, err := l.lowerExpr(n.Else)
	if err != nil {
		return nil, err
	}
	l.emit(&Copy{Src: elseVal, Dst: result})
	l.emit(&Label{Name: endLbl})

	return result, nil
}
