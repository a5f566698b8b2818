// Package parser implements a recursive-descent, precedence-climbing
// parser from a token stream to a C ast.Program.
//
// The shape here is borrowed from original_source/src/parser.py: each
// production threads a token index forward and reports failure instead of
// panicking, the same way that file's `expect_tk` helper and
// `(node, index) | None` return convention work. Go doesn't have Python's
// `None`-returning convention, so failures are reported as a plain `error`
// instead; there is no error recovery; any mismatch is fatal to the whole
// parse (spec §4.2).
package parser

import (
	"fmt"

	"github.com/skx/cc/ast"
	"github.com/skx/cc/token"
)

// parser holds the token stream and the current read position.
type parser struct {
	tokens []token.Token
	pos    int
}

// Parse consumes the full token stream and returns the parsed program.
func Parse(tokens []token.Token) (*ast.Program, error) {
	p := &parser{tokens: tokens}

	fn, err := p.parseFunction()
	if err != nil {
		return nil, err
	}

	if !p.atEOF() {
		return nil, fmt.Errorf("parse error: unexpected trailing token %q", p.peek().Literal)
	}

	return &ast.Program{Function: fn}, nil
}

func (p *parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) token.Token {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[idx]
}

func (p *parser) atEOF() bool {
	return p.peek().Type == token.EOF
}

// advance consumes and returns the current token.
func (p *parser) advance() token.Token {
	tok := p.peek()
	p.pos++
	return tok
}

// expect consumes the current token if it has the given type, otherwise
// it fails fatally (no error recovery, per spec §4.2).
func (p *parser) expect(tt token.Type) (token.Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return token.Token{}, fmt.Errorf("parse error: expected %q, got %q (%q)", tt, tok.Type, tok.Literal)
	}
	return p.advance(), nil
}

// ---------------------------------------------------------------------
// program := function
// function := "int" IDENT "(" "void" ")" block
// ---------------------------------------------------------------------

func (p *parser) parseFunction() (*ast.Function, error) {
	if _, err := p.expect(token.INT); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.VOID); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.Function{Name: name.Literal, Body: *body}, nil
}

// block := "{" block-item* "}"
func (p *parser) parseBlock() (*ast.Block, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}

	var items []ast.BlockItem
	for p.peek().Type != token.RBRACE {
		if p.atEOF() {
			return nil, fmt.Errorf("parse error: unexpected end of input in block")
		}
		item, err := p.parseBlockItem()
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}

	return &ast.Block{Items: items}, nil
}

// block-item := statement | declaration
func (p *parser) parseBlockItem() (*ast.BlockItem, error) {
	if p.peek().Type == token.INT {
		decl, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		return &ast.BlockItem{Decl: decl}, nil
	}

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.BlockItem{Stmt: &stmt}, nil
}

// declaration := "int" IDENT ("=" expr)? ";"
func (p *parser) parseDeclaration() (*ast.Declaration, error) {
	if _, err := p.expect(token.INT); err != nil {
		return nil, err
	}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}

	var init ast.Expression
	if p.peek().Type == token.ASSIGN {
		p.advance()
		init, err = p.parseExpr(0)
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}

	return &ast.Declaration{Name: name.Literal, Init: init}, nil
}

// statement := ";"
//            | "return" expr ";"
//            | "if" "(" expr ")" statement ("else" statement)?
//            | IDENT ":" statement
//            | "goto" IDENT ";"
//            | block
//            | expr ";"
func (p *parser) parseStatement() (ast.Statement, error) {
	switch p.peek().Type {
	case token.SEMICOLON:
		p.advance()
		return &ast.Null{}, nil

	case token.RETURN:
		p.advance()
		val, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMICOLON); err != nil {
			return nil, err
		}
		return &ast.Return{Value: val}, nil

	case token.IF:
		return p.parseIf()

	case token.GOTO:
		p.advance()
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMICOLON); err != nil {
			return nil, err
		}
		return &ast.Goto{Name: name.Literal}, nil

	case token.LBRACE:
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.Compound{Body: *block}, nil

	case token.IDENT:
		// A labeled statement is recognized by peeking past the
		// identifier for a colon; absence of the colon means the
		// identifier begins an expression statement.
		if p.peekAt(1).Type == token.COLON {
			name := p.advance()
			p.advance() // colon
			inner, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			return &ast.Label{Name: name.Literal, Inner: inner}, nil
		}
		return p.parseExprStatement()

	default:
		return p.parseExprStatement()
	}
}

func (p *parser) parseIf() (ast.Statement, error) {
	p.advance() // "if"
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	if p.peek().Type != token.ELSE {
		return &ast.If{Cond: cond, Then: then}, nil
	}
	p.advance()
	els, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.IfElse{Cond: cond, Then: then, Else: els}, nil
}

func (p *parser) parseExprStatement() (ast.Statement, error) {
	expr, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Value: expr}, nil
}

// ---------------------------------------------------------------------
// Expressions: precedence climbing.
// ---------------------------------------------------------------------

// binopInfo describes one binary/assignment operator's precedence,
// associativity, and the ast.BinOp it lowers to (plain `=` and `?:` carry
// no BinOp; they and the compound assignments are handled separately).
type binopInfo struct {
	prec          int
	rightAssoc    bool
	op            ast.BinOp
	isAssign      bool
	isCompound    bool
	isTernary     bool
}

var binops = map[token.Type]binopInfo{
	token.ASTERISK: {prec: 50, op: ast.Mul},
	token.SLASH:    {prec: 50, op: ast.Div},
	token.PERCENT:  {prec: 50, op: ast.Rem},

	token.PLUS:  {prec: 45, op: ast.Add},
	token.MINUS: {prec: 45, op: ast.Sub},

	token.SHL: {prec: 40, op: ast.Shl},
	token.SHR: {prec: 40, op: ast.Shr},

	token.LT: {prec: 35, op: ast.Lt},
	token.LE: {prec: 35, op: ast.Le},
	token.GT: {prec: 35, op: ast.Gt},
	token.GE: {prec: 35, op: ast.Ge},

	token.EQ: {prec: 30, op: ast.Eq},
	token.NE: {prec: 30, op: ast.Ne},

	token.AMP: {prec: 25, op: ast.BitAnd},

	token.CARET: {prec: 20, op: ast.Xor},

	token.PIPE: {prec: 15, op: ast.BitOr},

	token.AND: {prec: 10, op: ast.LogAnd},

	token.OR: {prec: 5, op: ast.LogOr},

	token.QUESTION: {prec: 4, rightAssoc: true, isTernary: true},

	token.ASSIGN:     {prec: 1, rightAssoc: true, isAssign: true},
	token.ADD_ASSIGN: {prec: 1, rightAssoc: true, isCompound: true, op: ast.AddAssign},
	token.SUB_ASSIGN: {prec: 1, rightAssoc: true, isCompound: true, op: ast.SubAssign},
	token.MUL_ASSIGN: {prec: 1, rightAssoc: true, isCompound: true, op: ast.MulAssign},
	token.DIV_ASSIGN: {prec: 1, rightAssoc: true, isCompound: true, op: ast.DivAssign},
	token.MOD_ASSIGN: {prec: 1, rightAssoc: true, isCompound: true, op: ast.RemAssign},
	token.AND_ASSIGN: {prec: 1, rightAssoc: true, isCompound: true, op: ast.AndAssign},
	token.OR_ASSIGN:  {prec: 1, rightAssoc: true, isCompound: true, op: ast.OrAssign},
	token.XOR_ASSIGN: {prec: 1, rightAssoc: true, isCompound: true, op: ast.XorAssign},
	token.SHL_ASSIGN: {prec: 1, rightAssoc: true, isCompound: true, op: ast.ShlAssign},
	token.SHR_ASSIGN: {prec: 1, rightAssoc: true, isCompound: true, op: ast.ShrAssign},
}

// parseExpr implements precedence climbing: it parses a factor, then
// consumes binary/assignment/ternary operators whose precedence is at
// least minPrec, recursing with prec+1 for left-associative operators and
// prec for right-associative ones.
func (p *parser) parseExpr(minPrec int) (ast.Expression, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for {
		info, ok := binops[p.peek().Type]
		if !ok || info.prec < minPrec {
			break
		}
		p.advance()

		switch {
		case info.isTernary:
			then, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			els, err := p.parseExpr(info.prec)
			if err != nil {
				return nil, err
			}
			left = &ast.Conditional{Cond: left, Then: then, Else: els}

		case info.isAssign:
			right, err := p.parseExpr(info.prec)
			if err != nil {
				return nil, err
			}
			left = &ast.Assignment{Left: left, Right: right}

		case info.isCompound:
			right, err := p.parseExpr(info.prec)
			if err != nil {
				return nil, err
			}
			left = &ast.CompoundAssign{Op: info.op, Left: left, Right: right}

		default:
			nextMin := info.prec + 1
			if info.rightAssoc {
				nextMin = info.prec
			}
			right, err := p.parseExpr(nextMin)
			if err != nil {
				return nil, err
			}
			left = &ast.Binary{Op: info.op, Left: left, Right: right}
		}
	}

	return left, nil
}

var prefixUnary = map[token.Type]ast.UnaryOp{
	token.MINUS: ast.Negate,
	token.TILDE: ast.Complement,
	token.BANG:  ast.Not,
}

// factor := CONST | IDENT | "-"/"~"/"!"/"++"/"--" factor | "(" expr ")"
// with zero or more postfix "++"/"--" applied left-associatively.
func (p *parser) parseFactor() (ast.Expression, error) {
	var expr ast.Expression

	switch p.peek().Type {
	case token.CONSTANT:
		tok := p.advance()
		expr = &ast.Constant{Text: tok.Literal}

	case token.IDENT:
		tok := p.advance()
		expr = &ast.Var{Name: tok.Literal}

	case token.INCREMENT:
		p.advance()
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		expr = &ast.Unary{Op: ast.PrefixIncrement, Operand: inner}

	case token.DECREMENT:
		p.advance()
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		expr = &ast.Unary{Op: ast.PrefixDecrement, Operand: inner}

	case token.MINUS, token.TILDE, token.BANG:
		tok := p.advance()
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		expr = &ast.Unary{Op: prefixUnary[tok.Type], Operand: inner}

	case token.LPAREN:
		p.advance()
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		expr = inner

	default:
		tok := p.peek()
		return nil, fmt.Errorf("parse error: unexpected token %q (%q) while parsing an expression", tok.Type, tok.Literal)
	}

	for {
		switch p.peek().Type {
		case token.INCREMENT:
			p.advance()
			expr = &ast.Postfix{IsIncrement: true, Operand: expr}
		case token.DECREMENT:
			p.advance()
			expr = &ast.Postfix{IsIncrement: false, Operand: expr}
		default:
			return expr, nil
		}
	}
}
