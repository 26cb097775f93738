package parser

import (
	"strconv"
	"strings"

	"github.com/asterisk-lang/asterisk/token"
)

// Kind identifies a grammar production. The set is closed: the evaluator
// dispatches on it exhaustively.
type Kind uint8

// List of node kinds.
const (
	Invalid Kind = iota
	Start
	Block
	Number
	String
	True
	False
	Var
	Ident
	AssignVar
	AssignIndex
	ImportStmt
	Params
	FuncDef
	IfStmt
	ElseifClause
	WhileStmt
	ForStmt
	BreakStmt
	ContinueStmt
	ReturnStmt
	Or
	And
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	Add
	Sub
	Mul
	Div
	Neg
	NotOp
	Grouped
	TupleEmpty
	TupleLiteral
	ListLiteral
	DictItem
	DictItems
	DictLiteral
	VarIndex
	Args
	ModuleVar
	ModuleFuncCall
	FuncCall
)

var kindNames = [...]string{
	Invalid:        "invalid",
	Start:          "start",
	Block:          "block",
	Number:         "number",
	String:         "string",
	True:           "true",
	False:          "false",
	Var:            "var",
	Ident:          "ident",
	AssignVar:      "assign_var",
	AssignIndex:    "assign_index",
	ImportStmt:     "import_stmt",
	Params:         "params",
	FuncDef:        "func_def",
	IfStmt:         "if_stmt",
	ElseifClause:   "elseif_clause",
	WhileStmt:      "while_stmt",
	ForStmt:        "for_stmt",
	BreakStmt:      "break_stmt",
	ContinueStmt:   "continue_stmt",
	ReturnStmt:     "return_stmt",
	Or:             "or_op",
	And:            "and_op",
	Eq:             "eq",
	Ne:             "ne",
	Lt:             "lt",
	Le:             "le",
	Gt:             "gt",
	Ge:             "ge",
	Add:            "add",
	Sub:            "sub",
	Mul:            "mul",
	Div:            "div",
	Neg:            "neg",
	NotOp:          "not_op",
	Grouped:        "grouped",
	TupleEmpty:     "tuple_empty",
	TupleLiteral:   "tuple_literal",
	ListLiteral:    "list_literal",
	DictItem:       "dict_item",
	DictItems:      "dict_items",
	DictLiteral:    "dict_literal",
	VarIndex:       "var_index",
	Args:           "args",
	ModuleVar:      "module_var",
	ModuleFuncCall: "module_func_call",
	FuncCall:       "func_call",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Node is a node in the parse tree. Composite productions carry their
// operands in Children; name- and literal-bearing productions carry the
// token text in Lit (for string literals and import paths, the unquoted
// value).
type Node struct {
	Kind     Kind
	Lit      string
	Pos      token.Pos
	Children []*Node
}

// String returns an s-expression rendering of the tree, mainly for tests
// and debugging.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if len(n.Children) == 0 && n.Lit != "" {
		b.WriteString(n.Kind.String())
		b.WriteByte(':')
		b.WriteString(n.Lit)
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Kind.String())
	if n.Lit != "" {
		b.WriteByte(':')
		b.WriteString(n.Lit)
	}
	for _, c := range n.Children {
		b.WriteByte(' ')
		c.write(b)
	}
	b.WriteByte(')')
}
