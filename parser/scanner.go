package parser

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/asterisk-lang/asterisk/token"
)

const (
	bom = 0xFEFF // byte order mark
	eof = -1     // end of file
)

// ScannerErrorHandler is an error handler for the scanner.
type ScannerErrorHandler func(pos token.FilePos, msg string)

// Scanner reads the Asterisk source text.
// It's based on Go's scanner implementation.
type Scanner struct {
	file         *token.File         // source file handle
	src          []byte              // source
	ch           rune                // current character
	offset       int                 // character offset
	readOffset   int                 // reading offset (position after current character)
	errorHandler ScannerErrorHandler // error reporting; or nil
	errorCount   int                 // number of errors encountered
}

// NewScanner creates a Scanner.
func NewScanner(file *token.File, src []byte, errorHandler ScannerErrorHandler) *Scanner {
	if file.Size != len(src) {
		panic(fmt.Sprintf("file size (%d) does not match src len (%d)",
			file.Size, len(src)))
	}

	s := &Scanner{
		file:         file,
		src:          src,
		errorHandler: errorHandler,
		ch:           ' ',
	}

	s.next()
	if s.ch == bom {
		s.next() // ignore BOM at file beginning
	}

	return s
}

// ErrorCount returns the number of errors.
func (s *Scanner) ErrorCount() int {
	return s.errorCount
}

// Scan returns a token, token literal and its position.
func (s *Scanner) Scan() (tok token.Token, literal string, pos token.Pos) {
	s.skipWhitespace()
	pos = token.Pos(s.offset)

	switch ch := s.ch; {
	case isLetter(ch):
		literal = s.scanIdentifier()
		if len(literal) > 1 {
			// keywords are longer than one letter – avoid lookup otherwise
			tok = token.Lookup(literal)
		} else {
			tok = token.Ident
		}
	case '0' <= ch && ch <= '9' || ch == '.' && '0' <= s.peek() && s.peek() <= '9':
		tok, literal = s.scanNumber()
	default:
		s.next() // always make progress
		switch ch {
		case eof:
			tok = token.EOF
		case '"':
			tok = token.String
			literal = s.scanString()
		case '+':
			tok = token.Add
		case '-':
			tok = token.Sub
		case '*':
			tok = token.Mul
		case '/':
			if s.ch == '/' || s.ch == '*' {
				s.scanComment()
				return s.Scan()
			}
			tok = token.Quo
		case '=':
			tok = s.switch2(token.Assign, '=', token.Equal)
		case '!':
			if s.ch == '=' {
				s.next()
				tok = token.NotEqual
			} else {
				s.error(s.file.Position(pos), "illegal character '!'")
				tok = token.Illegal
				literal = "!"
			}
		case '<':
			tok = s.switch2(token.Less, '=', token.LessEq)
		case '>':
			tok = s.switch2(token.Greater, '=', token.GreaterEq)
		case '(':
			tok = token.LParen
		case ')':
			tok = token.RParen
		case '[':
			tok = token.LBrack
		case ']':
			tok = token.RBrack
		case '{':
			tok = token.LBrace
		case '}':
			tok = token.RBrace
		case ',':
			tok = token.Comma
		case ':':
			tok = token.Colon
		case ';':
			tok = token.Semicolon
		case '.':
			tok = token.Period
		default:
			// next reports unexpected BOMs - don't repeat
			if ch != bom {
				s.error(s.file.Position(pos), fmt.Sprintf("illegal character %#U", ch))
			}
			tok = token.Illegal
			literal = string(ch)
		}
	}

	return tok, literal, pos
}

func (s *Scanner) next() {
	if s.readOffset < len(s.src) {
		s.offset = s.readOffset
		if s.ch == '\n' {
			s.file.AddLine(s.offset)
		}
		r, w := rune(s.src[s.readOffset]), 1
		switch {
		case r == 0:
			s.error(s.file.Position(token.Pos(s.offset)), "illegal character NUL")
		case r >= utf8.RuneSelf:
			// not ASCII
			r, w = utf8.DecodeRune(s.src[s.readOffset:])
			if r == utf8.RuneError && w == 1 {
				s.error(s.file.Position(token.Pos(s.offset)), "illegal UTF-8 encoding")
			} else if r == bom && s.offset > 0 {
				s.error(s.file.Position(token.Pos(s.offset)), "illegal byte order mark")
			}
		}
		s.readOffset += w
		s.ch = r
	} else {
		s.offset = len(s.src)
		if s.ch == '\n' {
			s.file.AddLine(s.offset)
		}
		s.ch = eof
	}
}

func (s *Scanner) peek() byte {
	if s.readOffset < len(s.src) {
		return s.src[s.readOffset]
	}
	return 0
}

func (s *Scanner) error(pos token.FilePos, msg string) {
	if s.errorHandler != nil {
		s.errorHandler(pos, msg)
	}
	s.errorCount++
}

func (s *Scanner) scanComment() {
	// initial '/' already consumed; s.ch == '/' || s.ch == '*'
	offs := s.offset - 1

	if s.ch == '/' {
		//-style comment
		s.next()
		for s.ch != '\n' && s.ch >= 0 {
			s.next()
		}
		return
	}

	/*-style comment */
	s.next()
	for s.ch >= 0 {
		ch := s.ch
		s.next()
		if ch == '*' && s.ch == '/' {
			s.next()
			return
		}
	}

	s.error(s.file.Position(token.Pos(offs)), "comment not terminated")
}

func (s *Scanner) scanIdentifier() string {
	offs := s.offset
	for isLetter(s.ch) || isDigit(s.ch) {
		s.next()
	}
	return string(s.src[offs:s.offset])
}

func (s *Scanner) scanDigits() {
	for '0' <= s.ch && s.ch <= '9' {
		s.next()
	}
}

func (s *Scanner) scanNumber() (token.Token, string) {
	offs := s.offset
	tok := token.Int

	// Scan whole number
	s.scanDigits()

	// Scan fractional part
	if s.ch == '.' {
		tok = token.Float
		s.next()
		s.scanDigits()
	}

	// Scan exponent
	if s.ch == 'e' || s.ch == 'E' {
		tok = token.Float
		s.next()
		if s.ch == '-' || s.ch == '+' {
			s.next()
		}
		offs := s.offset
		s.scanDigits()
		if offs == s.offset {
			s.error(s.file.Position(token.Pos(offs)), "exponent has no digits")
		}
	}

	return tok, string(s.src[offs:s.offset])
}

// scanString scans a double-quoted string literal and returns the quoted
// lexeme. The opening quote has already been consumed.
func (s *Scanner) scanString() string {
	offs := s.offset - 1 // opening '"' already consumed

	for {
		ch := s.ch
		if ch == '\n' || ch < 0 {
			s.error(s.file.Position(token.Pos(offs)), "string literal not terminated")
			break
		}
		s.next()
		if ch == '"' {
			break
		}
		if ch == '\\' {
			s.scanEscape()
		}
	}

	return string(s.src[offs:s.offset])
}

func (s *Scanner) scanEscape() bool {
	offs := s.offset

	var n int
	var base, max uint32
	switch s.ch {
	case 'a', 'b', 'f', 'n', 'r', 't', 'v', '\\', '"':
		s.next()
		return true
	case '0', '1', '2', '3', '4', '5', '6', '7':
		n, base, max = 3, 8, 255
	case 'x':
		s.next()
		n, base, max = 2, 16, 255
	case 'u':
		s.next()
		n, base, max = 4, 16, unicode.MaxRune
	case 'U':
		s.next()
		n, base, max = 8, 16, unicode.MaxRune
	default:
		msg := "unknown escape sequence"
		if s.ch < 0 {
			msg = "escape sequence not terminated"
		}
		s.error(s.file.Position(token.Pos(offs)), msg)
		return false
	}

	var x uint32
	for n > 0 {
		d := uint32(digitVal(s.ch))
		if d >= base {
			msg := fmt.Sprintf("illegal character %#U in escape sequence", s.ch)
			if s.ch < 0 {
				msg = "escape sequence not terminated"
			}
			s.error(s.file.Position(token.Pos(s.offset)), msg)
			return false
		}
		x = x*base + d
		s.next()
		n--
	}

	if x > max || 0xD800 <= x && x < 0xE000 {
		s.error(s.file.Position(token.Pos(offs)), "escape sequence is invalid Unicode code point")
		return false
	}

	return true
}

func (s *Scanner) skipWhitespace() {
	for s.ch == ' ' || s.ch == '\t' || s.ch == '\n' || s.ch == '\r' {
		s.next()
	}
}

func (s *Scanner) switch2(tok0 token.Token, ch1 rune, tok1 token.Token) token.Token {
	if s.ch == ch1 {
		s.next()
		return tok1
	}
	return tok0
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' ||
		ch >= utf8.RuneSelf && unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9' ||
		ch >= utf8.RuneSelf && unicode.IsDigit(ch)
}

func digitVal(ch rune) int {
	switch {
	case '0' <= ch && ch <= '9':
		return int(ch - '0')
	case 'a' <= ch && ch <= 'f':
		return int(ch - 'a' + 10)
	case 'A' <= ch && ch <= 'F':
		return int(ch - 'A' + 10)
	}
	return 16 // larger than any legal digit val
}
