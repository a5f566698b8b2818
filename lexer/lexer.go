// Package lexer converts the character stream of a preprocessed C
// translation unit into a stream of tokens.
package lexer

import (
	"fmt"

	"github.com/skx/cc/token"
)

// Lexer holds our object-state.
type Lexer struct {
	position     int    //current character position
	readPosition int    //next character position
	ch           rune   //current character
	characters   []rune //rune slice of input string

	// err holds the first fatal lexical error encountered, if any.
	err error
}

// New a Lexer instance from string input.
func New(input string) *Lexer {
	l := &Lexer{characters: []rune(input)}
	l.readChar()
	return l
}

// read one forward character
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.characters) {
		l.ch = rune(0)
	} else {
		l.ch = l.characters[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

// Err returns the first fatal lexical error encountered, if any.
func (l *Lexer) Err() error {
	return l.err
}

// NextToken reads the next token, skipping whitespace and "//" comments,
// and running maximal munch over the multi-character operators.
func (l *Lexer) NextToken() token.Token {
	var tok token.Token
	l.skipWhitespaceAndComments()

	switch l.ch {
	case rune('('):
		tok = newToken(token.LPAREN, l.ch)
	case rune(')'):
		tok = newToken(token.RPAREN, l.ch)
	case rune('{'):
		tok = newToken(token.LBRACE, l.ch)
	case rune('}'):
		tok = newToken(token.RBRACE, l.ch)
	case rune(';'):
		tok = newToken(token.SEMICOLON, l.ch)
	case rune(':'):
		tok = newToken(token.COLON, l.ch)
	case rune(','):
		tok = newToken(token.COMMA, l.ch)
	case rune('?'):
		tok = newToken(token.QUESTION, l.ch)
	case rune('~'):
		tok = newToken(token.TILDE, l.ch)

	case rune('+'):
		if l.peekChar() == '+' {
			l.readChar()
			tok = token.Token{Type: token.INCREMENT, Literal: "++"}
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.ADD_ASSIGN, Literal: "+="}
		} else {
			tok = newToken(token.PLUS, l.ch)
		}

	case rune('-'):
		if l.peekChar() == '-' {
			l.readChar()
			tok = token.Token{Type: token.DECREMENT, Literal: "--"}
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.SUB_ASSIGN, Literal: "-="}
		} else {
			tok = newToken(token.MINUS, l.ch)
		}

	case rune('*'):
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.MUL_ASSIGN, Literal: "*="}
		} else {
			tok = newToken(token.ASTERISK, l.ch)
		}

	case rune('/'):
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.DIV_ASSIGN, Literal: "/="}
		} else {
			tok = newToken(token.SLASH, l.ch)
		}

	case rune('%'):
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.MOD_ASSIGN, Literal: "%="}
		} else {
			tok = newToken(token.PERCENT, l.ch)
		}

	case rune('&'):
		if l.peekChar() == '&' {
			l.readChar()
			tok = token.Token{Type: token.AND, Literal: "&&"}
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.AND_ASSIGN, Literal: "&="}
		} else {
			tok = newToken(token.AMP, l.ch)
		}

	case rune('|'):
		if l.peekChar() == '|' {
			l.readChar()
			tok = token.Token{Type: token.OR, Literal: "||"}
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.OR_ASSIGN, Literal: "|="}
		} else {
			tok = newToken(token.PIPE, l.ch)
		}

	case rune('^'):
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.XOR_ASSIGN, Literal: "^="}
		} else {
			tok = newToken(token.CARET, l.ch)
		}

	case rune('!'):
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NE, Literal: "!="}
		} else {
			tok = newToken(token.BANG, l.ch)
		}

	case rune('='):
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Literal: "=="}
		} else {
			tok = newToken(token.ASSIGN, l.ch)
		}

	case rune('<'):
		if l.peekChar() == '<' {
			l.readChar()
			if l.peekChar() == '=' {
				l.readChar()
				tok = token.Token{Type: token.SHL_ASSIGN, Literal: "<<="}
			} else {
				tok = token.Token{Type: token.SHL, Literal: "<<"}
			}
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.LE, Literal: "<="}
		} else {
			tok = newToken(token.LT, l.ch)
		}

	case rune('>'):
		if l.peekChar() == '>' {
			l.readChar()
			if l.peekChar() == '=' {
				l.readChar()
				tok = token.Token{Type: token.SHR_ASSIGN, Literal: ">>="}
			} else {
				tok = token.Token{Type: token.SHR, Literal: ">>"}
			}
		} else if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.GE, Literal: ">="}
		} else {
			tok = newToken(token.GT, l.ch)
		}

	case rune(0):
		tok.Literal = ""
		tok.Type = token.EOF
		return tok

	default:
		if isDigit(l.ch) {
			return l.readConstant()
		}
		if isIdentifierStart(l.ch) {
			lit := l.readIdentifier()
			tok.Type = token.LookupIdentifier(lit)
			tok.Literal = lit
			return tok
		}

		msg := fmt.Sprintf("unknown character %q", l.ch)
		if l.err == nil {
			l.err = fmt.Errorf("%s", msg)
		}
		tok.Type = token.ERROR
		tok.Literal = msg
		l.readChar()
		return tok
	}

	l.readChar()
	return tok
}

// return new token
func newToken(tokenType token.Type, ch rune) token.Token {
	return token.Token{Type: tokenType, Literal: string(ch)}
}

// skipWhitespaceAndComments skips runs of whitespace and "//" line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		if isWhitespace(l.ch) {
			l.readChar()
			continue
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != rune(0) {
				l.readChar()
			}
			continue
		}
		break
	}
}

// readConstant reads a run of decimal digits.  It is fatal for the digit
// run to be immediately followed by a letter or underscore, which would
// indicate an (unsupported) integer suffix.
func (l *Lexer) readConstant() token.Token {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	lit := string(l.characters[start:l.position])

	if isIdentifierStart(l.ch) {
		msg := fmt.Sprintf("invalid integer suffix after %q", lit)
		if l.err == nil {
			l.err = fmt.Errorf("%s", msg)
		}
		return token.Token{Type: token.ERROR, Literal: msg}
	}

	return token.Token{Type: token.CONSTANT, Literal: lit}
}

// readIdentifier reads a maximal run of identifier characters, starting
// with a letter or underscore.
func (l *Lexer) readIdentifier() string {
	start := l.position
	for isIdentifierPart(l.ch) {
		l.readChar()
	}
	return string(l.characters[start:l.position])
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.characters) {
		return rune(0)
	}
	return l.characters[l.readPosition]
}

// is white space
func isWhitespace(ch rune) bool {
	return ch == rune(' ') || ch == rune('\t') || ch == rune('\n') || ch == rune('\r')
}

// is Digit
func isDigit(ch rune) bool {
	return rune('0') <= ch && ch <= rune('9')
}

func isIdentifierStart(ch rune) bool {
	return ch == rune('_') || (rune('a') <= ch && ch <= rune('z')) || (rune('A') <= ch && ch <= rune('Z'))
}

func isIdentifierPart(ch rune) bool {
	return isIdentifierStart(ch) || isDigit(ch)
}
