package parser

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/asterisk-lang/asterisk/token"
)

type bailout struct{}

var stmtStart = map[token.Token]bool{
	token.Break:    true,
	token.Continue: true,
	token.For:      true,
	token.While:    true,
	token.If:       true,
	token.Return:   true,
	token.Fn:       true,
	token.Import:   true,
}

// Error represents a parser error.
type Error struct {
	Pos     token.FilePos
	Msg     string
	Excerpt string
}

func (e Error) Error() string {
	s := fmt.Sprintf("Parse Error: %s", e.Msg)
	if e.Pos.Filename != "" || e.Pos.IsValid() {
		s += fmt.Sprintf("\n\tat %s", e.Pos)
	}
	if e.Excerpt != "" {
		s += "\n" + e.Excerpt
	}
	return s
}

// ErrorList is a collection of parser errors.
type ErrorList []*Error

// Add adds a new parser error to the collection.
func (p *ErrorList) Add(pos token.FilePos, msg string) {
	*p = append(*p, &Error{Pos: pos, Msg: msg})
}

// Len returns the number of elements in the collection.
func (p ErrorList) Len() int {
	return len(p)
}

func (p ErrorList) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

func (p ErrorList) Less(i, j int) bool {
	e := &p[i].Pos
	f := &p[j].Pos
	if e.Line != f.Line {
		return e.Line < f.Line
	}
	if e.Column != f.Column {
		return e.Column < f.Column
	}
	return p[i].Msg < p[j].Msg
}

// Sort sorts the collection.
func (p ErrorList) Sort() {
	sort.Sort(p)
}

func (p ErrorList) Error() string {
	switch len(p) {
	case 0:
		return "no errors"
	case 1:
		return p[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", p[0], len(p)-1)
}

// Err returns an error.
func (p ErrorList) Err() error {
	if len(p) == 0 {
		return nil
	}
	return p
}

// Parser parses Asterisk source files into kind-tagged parse trees.
// It's based on Go's parser implementation.
type Parser struct {
	file      *token.File
	src       []byte
	errors    ErrorList
	scanner   *Scanner
	pos       token.Pos
	token     token.Token
	tokenLit  string
	syncPos   token.Pos // last sync position
	syncCount int       // number of advance calls without progress
}

// NewParser creates a Parser.
func NewParser(file *token.File, src []byte) *Parser {
	p := &Parser{
		file: file,
		src:  src,
	}
	p.scanner = NewScanner(p.file, src,
		func(pos token.FilePos, msg string) {
			p.addError(pos, msg)
		})
	p.next()
	return p
}

// ParseProgram parses the source and returns the root of the parse tree.
func (p *Parser) ParseProgram() (root *Node, err error) {
	defer func() {
		if e := recover(); e != nil {
			if _, ok := e.(bailout); !ok {
				panic(e)
			}
		}
		p.errors.Sort()
		err = p.errors.Err()
	}()

	if p.errors.Len() > 0 {
		return nil, p.errors.Err()
	}

	pos := p.pos
	stmts := p.parseStmtList(token.EOF)
	p.expect(token.EOF)
	if p.errors.Len() > 0 {
		return nil, p.errors.Err()
	}

	return &Node{Kind: Start, Pos: pos, Children: stmts}, nil
}

// IsIncomplete reports whether src fails to parse only because it ends too
// early: the earliest syntax error is located at end of input. A hard error
// in the interior of the source returns false.
func IsIncomplete(src []byte) bool {
	file := token.NewFile("(incomplete-check)", len(src))
	_, err := NewParser(file, src).ParseProgram()
	if err == nil {
		return false
	}
	var list ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return list[0].Pos.Offset >= len(src)
	}
	return false
}

func (p *Parser) parseStmtList(end token.Token) (list []*Node) {
	for p.token != end && p.token != token.EOF {
		if p.token == token.Semicolon {
			// statement separator
			p.next()
			continue
		}
		list = append(list, p.parseStmt())
	}
	return list
}

func (p *Parser) parseStmt() *Node {
	switch p.token {
	case token.If:
		return p.parseIfStmt()
	case token.While:
		return p.parseWhileStmt()
	case token.For:
		return p.parseForStmt()
	case token.Break:
		pos := p.pos
		p.next()
		return &Node{Kind: BreakStmt, Pos: pos}
	case token.Continue:
		pos := p.pos
		p.next()
		return &Node{Kind: ContinueStmt, Pos: pos}
	case token.Return:
		return p.parseReturnStmt()
	case token.Fn:
		return p.parseFuncDef()
	case token.Import:
		return p.parseImportStmt()
	default:
		return p.parseSimpleStmt()
	}
}

// parseSimpleStmt parses an expression statement, an assignment or an
// indexed assignment. Assignments are recognized after the fact: a parsed
// var or var_index expression followed by '=' becomes an assignment target.
func (p *Parser) parseSimpleStmt() *Node {
	pos := p.pos
	x := p.parseExpr()

	if p.token != token.Assign {
		return x
	}
	p.next()
	value := p.parseExpr()

	switch x.Kind {
	case Var:
		return &Node{Kind: AssignVar, Lit: x.Lit, Pos: pos, Children: []*Node{value}}
	case VarIndex:
		return &Node{
			Kind:     AssignIndex,
			Lit:      x.Lit,
			Pos:      pos,
			Children: []*Node{x.Children[0], value},
		}
	default:
		p.error(pos, "cannot assign to expression")
		return &Node{Kind: Invalid, Pos: pos}
	}
}

func (p *Parser) parseIfStmt() *Node {
	pos := p.expect(token.If)
	cond := p.parseExpr()
	body := p.parseBlock()

	children := []*Node{cond, body}
	for p.token == token.Elseif {
		elseifPos := p.pos
		p.next()
		elseifCond := p.parseExpr()
		elseifBody := p.parseBlock()
		children = append(children, &Node{
			Kind:     ElseifClause,
			Pos:      elseifPos,
			Children: []*Node{elseifCond, elseifBody},
		})
	}
	if p.token == token.Else {
		p.next()
		children = append(children, p.parseBlock())
	}

	return &Node{Kind: IfStmt, Pos: pos, Children: children}
}

func (p *Parser) parseWhileStmt() *Node {
	pos := p.expect(token.While)
	cond := p.parseExpr()
	body := p.parseBlock()
	return &Node{Kind: WhileStmt, Pos: pos, Children: []*Node{cond, body}}
}

func (p *Parser) parseForStmt() *Node {
	pos := p.expect(token.For)
	name := p.parseIdentName()
	p.expect(token.In)
	iterable := p.parseExpr()
	body := p.parseBlock()
	return &Node{Kind: ForStmt, Lit: name, Pos: pos, Children: []*Node{iterable, body}}
}

func (p *Parser) parseReturnStmt() *Node {
	pos := p.expect(token.Return)
	n := &Node{Kind: ReturnStmt, Pos: pos}
	if exprStart(p.token) {
		n.Children = append(n.Children, p.parseExpr())
	}
	return n
}

func (p *Parser) parseFuncDef() *Node {
	pos := p.expect(token.Fn)
	name := p.parseIdentName()
	params := p.parseParams()
	body := p.parseBlock()
	return &Node{Kind: FuncDef, Lit: name, Pos: pos, Children: []*Node{params, body}}
}

func (p *Parser) parseParams() *Node {
	pos := p.pos
	p.expect(token.LParen)
	n := &Node{Kind: Params, Pos: pos}
	for p.token != token.RParen && p.token != token.EOF {
		identPos := p.pos
		name := p.parseIdentName()
		n.Children = append(n.Children, &Node{Kind: Ident, Lit: name, Pos: identPos})
		if p.token != token.Comma {
			break
		}
		p.next()
	}
	p.expect(token.RParen)
	return n
}

func (p *Parser) parseImportStmt() *Node {
	pos := p.expect(token.Import)
	if p.token != token.String {
		p.errorExpected(p.pos, "module path")
		p.advance(stmtStart)
		return &Node{Kind: Invalid, Pos: pos}
	}
	path := p.parseStringValue()
	n := &Node{Kind: ImportStmt, Lit: path, Pos: pos}
	if p.token == token.As {
		p.next()
		aliasPos := p.pos
		alias := p.parseIdentName()
		n.Children = append(n.Children, &Node{Kind: Ident, Lit: alias, Pos: aliasPos})
	}
	return n
}

func (p *Parser) parseBlock() *Node {
	pos := p.expect(token.LBrace)
	stmts := p.parseStmtList(token.RBrace)
	p.expect(token.RBrace)
	return &Node{Kind: Block, Pos: pos, Children: stmts}
}

func (p *Parser) parseExpr() *Node {
	return p.parseBinaryExpr(token.LowestPrec + 1)
}

func (p *Parser) parseBinaryExpr(prec1 int) *Node {
	x := p.parseUnaryExpr()
	for {
		op, prec := p.token, p.token.Precedence()
		if prec < prec1 {
			return x
		}
		pos := p.expect(op)
		y := p.parseBinaryExpr(prec + 1)
		x = &Node{Kind: binaryKind(op), Pos: pos, Children: []*Node{x, y}}
	}
}

func binaryKind(op token.Token) Kind {
	switch op {
	case token.Or:
		return Or
	case token.And:
		return And
	case token.Equal:
		return Eq
	case token.NotEqual:
		return Ne
	case token.Less:
		return Lt
	case token.LessEq:
		return Le
	case token.Greater:
		return Gt
	case token.GreaterEq:
		return Ge
	case token.Add:
		return Add
	case token.Sub:
		return Sub
	case token.Mul:
		return Mul
	case token.Quo:
		return Div
	}
	return Invalid
}

func (p *Parser) parseUnaryExpr() *Node {
	switch p.token {
	case token.Sub:
		pos := p.pos
		p.next()
		x := p.parseUnaryExpr()
		return &Node{Kind: Neg, Pos: pos, Children: []*Node{x}}
	case token.Not:
		pos := p.pos
		p.next()
		x := p.parseUnaryExpr()
		return &Node{Kind: NotOp, Pos: pos, Children: []*Node{x}}
	}
	return p.parseOperand()
}

func (p *Parser) parseOperand() *Node {
	switch p.token {
	case token.Ident:
		return p.parseIdentExpr()
	case token.Int, token.Float:
		lit, pos := p.tokenLit, p.pos
		p.checkNumber()
		p.next()
		return &Node{Kind: Number, Lit: lit, Pos: pos}
	case token.String:
		pos := p.pos
		value := p.parseStringValue()
		return &Node{Kind: String, Lit: value, Pos: pos}
	case token.True:
		pos := p.pos
		p.next()
		return &Node{Kind: True, Pos: pos}
	case token.False:
		pos := p.pos
		p.next()
		return &Node{Kind: False, Pos: pos}
	case token.LParen:
		return p.parseParenExpr()
	case token.LBrack:
		return p.parseListLiteral()
	case token.LBrace:
		return p.parseDictLiteral()
	default:
		p.errorExpected(p.pos, "operand")
	}
	pos := p.pos
	p.advance(stmtStart)
	return &Node{Kind: Invalid, Pos: pos}
}

// parseIdentExpr parses the name-rooted forms: a variable reference, a call,
// a single indexing, or a module member access / call. The grammar does not
// chain these postfixes.
func (p *Parser) parseIdentExpr() *Node {
	pos := p.pos
	name := p.parseIdentName()

	switch p.token {
	case token.LParen:
		args := p.parseArgs()
		return &Node{Kind: FuncCall, Lit: name, Pos: pos, Children: []*Node{args}}
	case token.LBrack:
		p.next()
		index := p.parseExpr()
		p.expect(token.RBrack)
		return &Node{Kind: VarIndex, Lit: name, Pos: pos, Children: []*Node{index}}
	case token.Period:
		p.next()
		memberPos := p.pos
		member := p.parseIdentName()
		memberNode := &Node{Kind: Ident, Lit: member, Pos: memberPos}
		if p.token == token.LParen {
			args := p.parseArgs()
			return &Node{
				Kind:     ModuleFuncCall,
				Lit:      name,
				Pos:      pos,
				Children: []*Node{memberNode, args},
			}
		}
		return &Node{Kind: ModuleVar, Lit: name, Pos: pos, Children: []*Node{memberNode}}
	}
	return &Node{Kind: Var, Lit: name, Pos: pos}
}

func (p *Parser) parseArgs() *Node {
	pos := p.expect(token.LParen)
	n := &Node{Kind: Args, Pos: pos}
	for p.token != token.RParen && p.token != token.EOF {
		n.Children = append(n.Children, p.parseExpr())
		if p.token != token.Comma {
			break
		}
		p.next()
	}
	p.expect(token.RParen)
	return n
}

// parseParenExpr parses the paren-rooted forms: the empty tuple '()',
// a grouped expression '(e)', and tuple literals '(e,)', '(e1, e2, ...)'.
// A trailing comma is what distinguishes a one-tuple from grouping.
func (p *Parser) parseParenExpr() *Node {
	pos := p.expect(token.LParen)

	if p.token == token.RParen {
		p.next()
		return &Node{Kind: TupleEmpty, Pos: pos}
	}

	first := p.parseExpr()
	if p.token != token.Comma {
		p.expect(token.RParen)
		return &Node{Kind: Grouped, Pos: pos, Children: []*Node{first}}
	}

	elems := []*Node{first}
	for p.token == token.Comma {
		p.next()
		if p.token == token.RParen {
			break
		}
		elems = append(elems, p.parseExpr())
	}
	p.expect(token.RParen)
	return &Node{Kind: TupleLiteral, Pos: pos, Children: elems}
}

func (p *Parser) parseListLiteral() *Node {
	pos := p.expect(token.LBrack)
	n := &Node{Kind: ListLiteral, Pos: pos}
	for p.token != token.RBrack && p.token != token.EOF {
		n.Children = append(n.Children, p.parseExpr())
		if p.token != token.Comma {
			break
		}
		p.next()
	}
	p.expect(token.RBrack)
	return n
}

func (p *Parser) parseDictLiteral() *Node {
	pos := p.expect(token.LBrace)
	items := &Node{Kind: DictItems, Pos: pos}
	for p.token != token.RBrace && p.token != token.EOF {
		itemPos := p.pos
		key := p.parseExpr()
		p.expect(token.Colon)
		value := p.parseExpr()
		items.Children = append(items.Children, &Node{
			Kind:     DictItem,
			Pos:      itemPos,
			Children: []*Node{key, value},
		})
		if p.token != token.Comma {
			break
		}
		p.next()
	}
	p.expect(token.RBrace)
	n := &Node{Kind: DictLiteral, Pos: pos}
	if len(items.Children) > 0 {
		n.Children = []*Node{items}
	}
	return n
}

func (p *Parser) parseIdentName() string {
	name := "_"
	if p.token == token.Ident {
		name = p.tokenLit
		p.next()
	} else {
		p.expect(token.Ident)
	}
	return name
}

// parseStringValue consumes a string token and returns its unquoted value.
func (p *Parser) parseStringValue() string {
	lit, pos := p.tokenLit, p.pos
	p.next()
	value, err := strconv.Unquote(lit)
	if err != nil {
		p.error(pos, "invalid string literal")
		return ""
	}
	return value
}

// checkNumber validates that the current number literal is representable.
func (p *Parser) checkNumber() {
	var err error
	if p.token == token.Int {
		_, err = strconv.ParseInt(p.tokenLit, 10, 64)
	} else {
		_, err = strconv.ParseFloat(p.tokenLit, 64)
	}
	if errors.Is(err, strconv.ErrRange) {
		p.error(p.pos, "number out of range")
	} else if err != nil {
		p.error(p.pos, "invalid number")
	}
}

func exprStart(tok token.Token) bool {
	switch tok {
	case token.Ident, token.Int, token.Float, token.String,
		token.True, token.False, token.Sub, token.Not,
		token.LParen, token.LBrack, token.LBrace:
		return true
	}
	return false
}

func (p *Parser) expect(tok token.Token) token.Pos {
	pos := p.pos
	if p.token != tok {
		p.errorExpected(pos, "'"+tok.String()+"'")
	}
	p.next()
	return pos
}

func (p *Parser) advance(to map[token.Token]bool) {
	for ; p.token != token.EOF; p.next() {
		if to[p.token] {
			if p.pos == p.syncPos && p.syncCount < 10 {
				p.syncCount++
				return
			}
			if p.pos > p.syncPos {
				p.syncPos = p.pos
				p.syncCount = 0
				return
			}
		}
	}
}

func (p *Parser) error(pos token.Pos, msg string) {
	p.addError(p.file.Position(pos), msg)
}

func (p *Parser) addError(filePos token.FilePos, msg string) {
	n := len(p.errors)
	if n > 0 && p.errors[n-1].Pos.Line == filePos.Line {
		// discard errors reported on the same line
		return
	}
	if n > 10 {
		// too many errors; terminate early
		panic(bailout{})
	}
	p.errors = append(p.errors, &Error{
		Pos:     filePos,
		Msg:     msg,
		Excerpt: excerpt(p.src, filePos),
	})
}

func (p *Parser) errorExpected(pos token.Pos, msg string) {
	msg = "expected " + msg
	if pos == p.pos {
		// error happened at the current position;
		// make the error message more specific
		if p.token.IsLiteral() {
			msg += ", found " + p.tokenLit
		} else {
			msg += ", found '" + p.token.String() + "'"
		}
	}
	p.error(pos, msg)
}

func (p *Parser) next() {
	p.token, p.tokenLit, p.pos = p.scanner.Scan()
}

// excerpt renders the source line containing the error position with a
// caret under the offending column.
func excerpt(src []byte, pos token.FilePos) string {
	offset := pos.Offset
	if offset > len(src) {
		offset = len(src)
	}
	start := offset
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := offset
	for end < len(src) && src[end] != '\n' {
		end++
	}
	line := strings.TrimRight(string(src[start:end]), "\r")
	caret := offset - start
	if caret > len(line) {
		caret = len(line)
	}
	return line + "\n" + strings.Repeat(" ", caret) + "^"
}
