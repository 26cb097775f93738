package asterisk

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/asterisk-lang/asterisk/parser"
	"github.com/asterisk-lang/asterisk/token"
)

// flow is the non-local exit status threaded through statement evaluation.
type flow uint8

const (
	flowNone flow = iota
	flowBreak
	flowContinue
	flowReturn
)

// Evaluator walks a parse tree and produces values. It holds the module
// environment, the local-scope stack and the read-only builtins mapping.
// Identifier lookup goes innermost local scope, outer local scopes, module
// environment, builtins; assignment writes to the innermost local scope if
// any, else to the module environment.
type Evaluator struct {
	env       map[string]Value
	locals    []map[string]Value
	builtins  map[string]Value
	loader    *Loader
	dir       string
	loopDepth int
	funcDepth int
}

// NewEvaluator creates an Evaluator. The builtins mapping is never written
// to. The loader may be nil, in which case import statements fail.
func NewEvaluator(builtins map[string]Value, loader *Loader, dir string) *Evaluator {
	if builtins == nil {
		builtins = make(map[string]Value)
	}
	return &Evaluator{
		env:      make(map[string]Value),
		builtins: builtins,
		loader:   loader,
		dir:      dir,
	}
}

// Run evaluates a parse tree against the module environment and returns the
// value of the last top-level statement, or nil if there is none. The
// environment persists across calls.
func (ev *Evaluator) Run(root *parser.Node) (Value, error) {
	value, _, err := ev.eval(root)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Dir returns the current-directory context used to resolve imports.
func (ev *Evaluator) Dir() string { return ev.dir }

// SetDir updates the current-directory context.
func (ev *Evaluator) SetDir(dir string) { ev.dir = dir }

// Globals returns a copy of the module environment.
func (ev *Evaluator) Globals() map[string]Value {
	globals := make(map[string]Value, len(ev.env))
	for k, v := range ev.env {
		globals[k] = v
	}
	return globals
}

// Reset clears the module environment.
func (ev *Evaluator) Reset() {
	clear(ev.env)
}

func (ev *Evaluator) lookupVar(name string) (Value, bool) {
	for i := len(ev.locals) - 1; i >= 0; i-- {
		if value, ok := ev.locals[i][name]; ok {
			return value, true
		}
	}
	if value, ok := ev.env[name]; ok {
		return value, true
	}
	if value, ok := ev.builtins[name]; ok {
		return value, true
	}
	return nil, false
}

// lookupUserVar resolves a name through user scopes only; builtins are not
// visible to indexing and module access.
func (ev *Evaluator) lookupUserVar(name string) (Value, bool) {
	for i := len(ev.locals) - 1; i >= 0; i-- {
		if value, ok := ev.locals[i][name]; ok {
			return value, true
		}
	}
	if value, ok := ev.env[name]; ok {
		return value, true
	}
	return nil, false
}

func (ev *Evaluator) setVar(name string, value Value) {
	ev.currentScope()[name] = value
}

func (ev *Evaluator) currentScope() map[string]Value {
	if len(ev.locals) > 0 {
		return ev.locals[len(ev.locals)-1]
	}
	return ev.env
}

// callFunction runs a user function body in a fresh local scope. The scope
// is popped on all exit paths, and the loop depth is masked for the
// duration of the call: a function body is never lexically inside the
// caller's loop.
func (ev *Evaluator) callFunction(fn *UserFunction, local map[string]Value) (Value, error) {
	ev.locals = append(ev.locals, local)
	ev.funcDepth++
	savedLoopDepth := ev.loopDepth
	ev.loopDepth = 0
	defer func() {
		ev.loopDepth = savedLoopDepth
		ev.funcDepth--
		ev.locals = ev.locals[:len(ev.locals)-1]
	}()

	value, _, err := ev.eval(fn.body)
	if err != nil {
		return nil, err
	}
	// a surfacing flowReturn already carries its value in value
	return value, nil
}

// evalExpr evaluates an expression subtree. Non-local exits cannot arise in
// expression position.
func (ev *Evaluator) evalExpr(n *parser.Node) (Value, error) {
	value, _, err := ev.eval(n)
	return value, err
}

func (ev *Evaluator) eval(n *parser.Node) (Value, flow, error) {
	switch n.Kind {
	case parser.Start, parser.Block:
		var last Value
		for _, stmt := range n.Children {
			value, fl, err := ev.eval(stmt)
			if err != nil {
				return nil, flowNone, err
			}
			if fl != flowNone {
				return value, fl, nil
			}
			last = value
		}
		return last, flowNone, nil

	case parser.Number:
		return evalNumber(n.Lit)

	case parser.String:
		return String(n.Lit), flowNone, nil

	case parser.True:
		return Bool(true), flowNone, nil

	case parser.False:
		return Bool(false), flowNone, nil

	case parser.Var:
		value, ok := ev.lookupVar(n.Lit)
		if !ok {
			return nil, flowNone, &NameError{Msg: fmt.Sprintf("undefined variable: %s", n.Lit)}
		}
		return value, flowNone, nil

	case parser.AssignVar:
		value, err := ev.evalExpr(n.Children[0])
		if err != nil {
			return nil, flowNone, err
		}
		ev.setVar(n.Lit, value)
		return value, flowNone, nil

	case parser.AssignIndex:
		return ev.evalAssignIndex(n)

	case parser.ImportStmt:
		return ev.evalImport(n)

	case parser.FuncDef:
		params := make([]string, 0, len(n.Children[0].Children))
		for _, ident := range n.Children[0].Children {
			params = append(params, ident.Lit)
		}
		fn := &UserFunction{
			name:   n.Lit,
			params: params,
			body:   n.Children[1],
			owner:  ev,
		}
		ev.setVar(n.Lit, fn)
		return fn, flowNone, nil

	case parser.IfStmt:
		return ev.evalIf(n)

	case parser.WhileStmt:
		return ev.evalWhile(n)

	case parser.ForStmt:
		return ev.evalFor(n)

	case parser.BreakStmt:
		if ev.loopDepth <= 0 {
			return nil, flowNone, &ControlFlowError{Msg: "break used outside of loop"}
		}
		return nil, flowBreak, nil

	case parser.ContinueStmt:
		if ev.loopDepth <= 0 {
			return nil, flowNone, &ControlFlowError{Msg: "continue used outside of loop"}
		}
		return nil, flowContinue, nil

	case parser.ReturnStmt:
		if ev.funcDepth <= 0 {
			return nil, flowNone, &ControlFlowError{Msg: "return used outside of function"}
		}
		var value Value
		if len(n.Children) > 0 {
			var err error
			value, err = ev.evalExpr(n.Children[0])
			if err != nil {
				return nil, flowNone, err
			}
		}
		return value, flowReturn, nil

	case parser.Or:
		left, err := ev.evalExpr(n.Children[0])
		if err != nil {
			return nil, flowNone, err
		}
		if Truthy(left) {
			return Bool(true), flowNone, nil
		}
		right, err := ev.evalExpr(n.Children[1])
		if err != nil {
			return nil, flowNone, err
		}
		return Bool(Truthy(right)), flowNone, nil

	case parser.And:
		left, err := ev.evalExpr(n.Children[0])
		if err != nil {
			return nil, flowNone, err
		}
		if !Truthy(left) {
			return Bool(false), flowNone, nil
		}
		right, err := ev.evalExpr(n.Children[1])
		if err != nil {
			return nil, flowNone, err
		}
		return Bool(Truthy(right)), flowNone, nil

	case parser.Eq, parser.Ne:
		left, err := ev.evalExpr(n.Children[0])
		if err != nil {
			return nil, flowNone, err
		}
		right, err := ev.evalExpr(n.Children[1])
		if err != nil {
			return nil, flowNone, err
		}
		eq := Equal(left, right)
		if n.Kind == parser.Ne {
			eq = !eq
		}
		return Bool(eq), flowNone, nil

	case parser.Lt, parser.Le, parser.Gt, parser.Ge:
		left, err := ev.evalExpr(n.Children[0])
		if err != nil {
			return nil, flowNone, err
		}
		right, err := ev.evalExpr(n.Children[1])
		if err != nil {
			return nil, flowNone, err
		}
		value, err := Compare(orderToken(n.Kind), left, right)
		return value, flowNone, err

	case parser.Add, parser.Sub, parser.Mul, parser.Div:
		left, err := ev.evalExpr(n.Children[0])
		if err != nil {
			return nil, flowNone, err
		}
		right, err := ev.evalExpr(n.Children[1])
		if err != nil {
			return nil, flowNone, err
		}
		value, err := BinaryOp(binaryToken(n.Kind), left, right)
		return value, flowNone, err

	case parser.Neg:
		operand, err := ev.evalExpr(n.Children[0])
		if err != nil {
			return nil, flowNone, err
		}
		value, err := Negate(operand)
		return value, flowNone, err

	case parser.NotOp:
		operand, err := ev.evalExpr(n.Children[0])
		if err != nil {
			return nil, flowNone, err
		}
		return Bool(!Truthy(operand)), flowNone, nil

	case parser.Grouped:
		return ev.eval(n.Children[0])

	case parser.TupleEmpty:
		return Tuple(nil), flowNone, nil

	case parser.TupleLiteral:
		elems := make(Tuple, 0, len(n.Children))
		for _, child := range n.Children {
			elem, err := ev.evalExpr(child)
			if err != nil {
				return nil, flowNone, err
			}
			elems = append(elems, elem)
		}
		return elems, flowNone, nil

	case parser.ListLiteral:
		elems := make([]Value, 0, len(n.Children))
		for _, child := range n.Children {
			elem, err := ev.evalExpr(child)
			if err != nil {
				return nil, flowNone, err
			}
			elems = append(elems, elem)
		}
		return NewList(elems), flowNone, nil

	case parser.DictLiteral:
		m := NewMap()
		if len(n.Children) > 0 {
			for _, item := range n.Children[0].Children {
				key, err := ev.evalExpr(item.Children[0])
				if err != nil {
					return nil, flowNone, err
				}
				value, err := ev.evalExpr(item.Children[1])
				if err != nil {
					return nil, flowNone, err
				}
				if err := m.Set(key, value); err != nil {
					return nil, flowNone, err
				}
			}
		}
		return m, flowNone, nil

	case parser.VarIndex:
		return ev.evalVarIndex(n)

	case parser.ModuleVar:
		value, err := ev.moduleField(n.Lit, n.Children[0].Lit)
		return value, flowNone, err

	case parser.ModuleFuncCall:
		return ev.evalModuleCall(n)

	case parser.FuncCall:
		return ev.evalCall(n)
	}

	return nil, flowNone, fmt.Errorf("unexpected node kind: %s", n.Kind)
}

func evalNumber(lit string) (Value, flow, error) {
	// a numeric literal is floating-point iff its lexeme contains
	// '.', 'e' or 'E'
	if strings.ContainsAny(lit, ".eE") {
		f, err := parseFloatLit(lit)
		if err != nil {
			return nil, flowNone, err
		}
		return Float(f), flowNone, nil
	}
	i, err := parseIntLit(lit)
	if err != nil {
		return nil, flowNone, err
	}
	return Int(i), flowNone, nil
}

func (ev *Evaluator) evalIf(n *parser.Node) (Value, flow, error) {
	cond, err := ev.evalExpr(n.Children[0])
	if err != nil {
		return nil, flowNone, err
	}
	if Truthy(cond) {
		return ev.eval(n.Children[1])
	}
	for _, clause := range n.Children[2:] {
		if clause.Kind == parser.ElseifClause {
			elseifCond, err := ev.evalExpr(clause.Children[0])
			if err != nil {
				return nil, flowNone, err
			}
			if Truthy(elseifCond) {
				return ev.eval(clause.Children[1])
			}
			continue
		}
		// else block
		return ev.eval(clause)
	}
	return nil, flowNone, nil
}

func (ev *Evaluator) evalWhile(n *parser.Node) (Value, flow, error) {
	cond, body := n.Children[0], n.Children[1]

	var last Value
	ev.loopDepth++
	defer func() { ev.loopDepth-- }()

	for {
		guard, err := ev.evalExpr(cond)
		if err != nil {
			return nil, flowNone, err
		}
		if !Truthy(guard) {
			break
		}
		value, fl, err := ev.eval(body)
		if err != nil {
			return nil, flowNone, err
		}
		switch fl {
		case flowBreak:
			return last, flowNone, nil
		case flowContinue:
			continue
		case flowReturn:
			return value, flowReturn, nil
		}
		last = value
	}
	return last, flowNone, nil
}

func (ev *Evaluator) evalFor(n *parser.Node) (Value, flow, error) {
	iterable, err := ev.evalExpr(n.Children[0])
	if err != nil {
		return nil, flowNone, err
	}
	seq, ok := Elements(iterable)
	if !ok {
		return nil, flowNone, &TypeError{Msg: "for target is not iterable"}
	}
	body := n.Children[1]

	// the loop variable shadows a prior binding in the current scope for
	// the duration of the loop
	scope := ev.currentScope()
	oldValue, hadOld := scope[n.Lit]

	var last Value
	var exitFlow flow
	ev.loopDepth++

loop:
	for item := range seq {
		scope[n.Lit] = item
		value, fl, evalErr := ev.eval(body)
		if evalErr != nil {
			err = evalErr
			break
		}
		switch fl {
		case flowBreak:
			break loop
		case flowContinue:
			continue
		case flowReturn:
			last, exitFlow = value, flowReturn
			break loop
		}
		last = value
	}

	ev.loopDepth--
	if hadOld {
		scope[n.Lit] = oldValue
	} else {
		delete(scope, n.Lit)
	}

	if err != nil {
		return nil, flowNone, err
	}
	return last, exitFlow, nil
}

func (ev *Evaluator) evalAssignIndex(n *parser.Node) (Value, flow, error) {
	index, err := ev.evalExpr(n.Children[0])
	if err != nil {
		return nil, flowNone, err
	}
	value, err := ev.evalExpr(n.Children[1])
	if err != nil {
		return nil, flowNone, err
	}
	target, ok := ev.lookupUserVar(n.Lit)
	if !ok {
		return nil, flowNone, &NameError{Msg: fmt.Sprintf("undefined variable: %s", n.Lit)}
	}
	switch container := target.(type) {
	case *List:
		i, ok := index.(Int)
		if !ok {
			return nil, flowNone, &TypeError{Msg: "list index must be int"}
		}
		at, ok := listIndex(i, container.Len())
		if !ok {
			return nil, flowNone, &IndexError{Msg: fmt.Sprintf("list index out of range: %d", i)}
		}
		container.elems[at] = value
		return value, flowNone, nil
	case *Map:
		if err := container.Set(index, value); err != nil {
			return nil, flowNone, err
		}
		return value, flowNone, nil
	}
	return nil, flowNone, &TypeError{Msg: fmt.Sprintf("%s is not indexable", n.Lit)}
}

func (ev *Evaluator) evalVarIndex(n *parser.Node) (Value, flow, error) {
	index, err := ev.evalExpr(n.Children[0])
	if err != nil {
		return nil, flowNone, err
	}
	target, ok := ev.lookupUserVar(n.Lit)
	if !ok {
		return nil, flowNone, &NameError{Msg: fmt.Sprintf("undefined variable: %s", n.Lit)}
	}
	switch container := target.(type) {
	case *List:
		i, ok := index.(Int)
		if !ok {
			return nil, flowNone, &TypeError{Msg: "list index must be int"}
		}
		at, ok := listIndex(i, container.Len())
		if !ok {
			return nil, flowNone, &IndexError{Msg: fmt.Sprintf("list index out of range: %d", i)}
		}
		return container.elems[at], flowNone, nil
	case Tuple:
		i, ok := index.(Int)
		if !ok {
			return nil, flowNone, &TypeError{Msg: "tuple index must be int"}
		}
		at, ok := listIndex(i, len(container))
		if !ok {
			return nil, flowNone, &IndexError{Msg: fmt.Sprintf("tuple index out of range: %d", i)}
		}
		return container[at], flowNone, nil
	case *Map:
		if !Hashable(index) {
			return nil, flowNone, &TypeError{Msg: "dict key is not hashable"}
		}
		value, ok := container.Get(index)
		if !ok {
			return nil, flowNone, &KeyError{Msg: fmt.Sprintf("dict key not found: %s", rawString(index))}
		}
		return value, flowNone, nil
	}
	return nil, flowNone, &TypeError{Msg: fmt.Sprintf("%s is not indexable", n.Lit)}
}

// listIndex normalizes a possibly negative sequence index.
func listIndex(i Int, length int) (int, bool) {
	at := int(i)
	if at < 0 {
		at += length
	}
	if at < 0 || at >= length {
		return 0, false
	}
	return at, true
}

func (ev *Evaluator) evalImport(n *parser.Node) (Value, flow, error) {
	if ev.loader == nil {
		return nil, flowNone, &ModuleError{Err: ErrNoLoader}
	}
	name := ""
	if len(n.Children) > 0 {
		name = n.Children[0].Lit
	}
	if name == "" {
		base := filepath.Base(n.Lit)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	module, err := ev.loader.Load(n.Lit, ev.dir)
	if err != nil {
		return nil, flowNone, err
	}
	ev.setVar(name, module)
	return module, flowNone, nil
}

func (ev *Evaluator) moduleField(moduleName, member string) (Value, error) {
	target, ok := ev.lookupUserVar(moduleName)
	if !ok {
		return nil, &NameError{Msg: fmt.Sprintf("undefined module: %s", moduleName)}
	}
	module, ok := target.(*Module)
	if !ok {
		return nil, &NameError{Msg: fmt.Sprintf("undefined module: %s", moduleName)}
	}
	value, ok := module.Field(member)
	if !ok {
		return nil, &NameError{Msg: fmt.Sprintf("undefined module member: %s.%s", moduleName, member)}
	}
	return value, nil
}

func (ev *Evaluator) evalModuleCall(n *parser.Node) (Value, flow, error) {
	member := n.Children[0].Lit
	fn, err := ev.moduleField(n.Lit, member)
	if err != nil {
		return nil, flowNone, err
	}
	callable, ok := fn.(Callable)
	if !ok {
		return nil, flowNone, &TypeError{Msg: fmt.Sprintf("%s.%s is not callable", n.Lit, member)}
	}
	args, err := ev.evalArgs(n.Children[1])
	if err != nil {
		return nil, flowNone, err
	}
	value, err := callable.Call(args...)
	return value, flowNone, err
}

func (ev *Evaluator) evalCall(n *parser.Node) (Value, flow, error) {
	fn, ok := ev.lookupVar(n.Lit)
	if !ok {
		return nil, flowNone, &NameError{Msg: fmt.Sprintf("undefined function: %s", n.Lit)}
	}
	callable, ok := fn.(Callable)
	if !ok {
		return nil, flowNone, &TypeError{Msg: fmt.Sprintf("%s is not callable", n.Lit)}
	}
	args, err := ev.evalArgs(n.Children[0])
	if err != nil {
		return nil, flowNone, err
	}
	value, err := callable.Call(args...)
	return value, flowNone, err
}

func (ev *Evaluator) evalArgs(n *parser.Node) ([]Value, error) {
	args := make([]Value, 0, len(n.Children))
	for _, child := range n.Children {
		arg, err := ev.evalExpr(child)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func orderToken(k parser.Kind) token.Token {
	switch k {
	case parser.Lt:
		return token.Less
	case parser.Le:
		return token.LessEq
	case parser.Gt:
		return token.Greater
	}
	return token.GreaterEq
}

func binaryToken(k parser.Kind) token.Token {
	switch k {
	case parser.Add:
		return token.Add
	case parser.Sub:
		return token.Sub
	case parser.Mul:
		return token.Mul
	}
	return token.Quo
}

func parseIntLit(lit string) (int64, error) {
	i, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return 0, &TypeError{Msg: fmt.Sprintf("invalid integer literal: %s", lit)}
	}
	return i, nil
}

func parseFloatLit(lit string) (float64, error) {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, &TypeError{Msg: fmt.Sprintf("invalid float literal: %s", lit)}
	}
	return f, nil
}

// rawString renders a value the way the host prints it: strings appear
// without quotes, everything else uses its display form.
func rawString(v Value) string {
	if v == nil {
		return "<none>"
	}
	if s, ok := v.(String); ok {
		return string(s)
	}
	return v.String()
}
