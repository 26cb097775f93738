package asterisk

import (
	"io"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/asterisk-lang/asterisk/parser"
	"github.com/asterisk-lang/asterisk/token"
)

// parseCacheSize is the number of parse trees memoized by source text.
const parseCacheSize = 256

// Interp is an Asterisk interpreter with a persistent module environment:
// successive Run calls see the bindings of earlier ones. It owns the module
// loader and a parse cache shared between Run and module loading.
type Interp struct {
	eval   *Evaluator
	loader *Loader
	parsed *lru.Cache[string, *parser.Node]
}

type options struct {
	dir      string
	stdin    io.Reader
	stdout   io.Writer
	builtins map[string]Value
}

// Option configures an Interp.
type Option func(*options)

// WithDir sets the current-directory context the Interp starts with, as
// reported by Dir. Run and RunFile replace the context on every call (see
// Run), so it does not take part in resolving their imports.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithStdin sets the reader used by the scan builtin.
func WithStdin(stdin io.Reader) Option {
	return func(o *options) { o.stdin = stdin }
}

// WithStdout sets the writer used by the putln builtin.
func WithStdout(stdout io.Writer) Option {
	return func(o *options) { o.stdout = stdout }
}

// WithBuiltins replaces the default host builtins.
func WithBuiltins(builtins map[string]Value) Option {
	return func(o *options) { o.builtins = builtins }
}

// New creates an Interp.
func New(opts ...Option) *Interp {
	o := options{
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dir == "" {
		if cwd, err := os.Getwd(); err == nil {
			o.dir = cwd
		}
	}
	if o.builtins == nil {
		o.builtins = DefaultBuiltins(o.stdin, o.stdout)
	}

	i := &Interp{}
	i.parsed, _ = lru.New[string, *parser.Node](parseCacheSize)
	i.loader = NewLoader(o.builtins, i.parseCached)
	i.eval = NewEvaluator(o.builtins, i.loader, o.dir)
	return i
}

// Run evaluates source text and returns the value of the last top-level
// statement, or nil if there is none. If sourcePath is non-empty, the
// import context becomes the file's parent directory; otherwise the process
// working directory.
func (i *Interp) Run(src []byte, sourcePath string) (Value, error) {
	name := "(main)"
	if sourcePath != "" {
		name = sourcePath
		if abs, err := filepath.Abs(sourcePath); err == nil {
			i.eval.SetDir(filepath.Dir(abs))
		}
	} else if cwd, err := os.Getwd(); err == nil {
		i.eval.SetDir(cwd)
	}

	root, err := i.parseCached(src, name)
	if err != nil {
		return nil, err
	}
	return i.eval.Run(root)
}

// RunFile reads and evaluates a source file. A leading shebang line is
// tolerated.
func (i *Interp) RunFile(path string) (Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(src) > 1 && string(src[:2]) == "#!" {
		copy(src, "//")
	}
	return i.Run(src, path)
}

// IsIncomplete reports whether src is a prefix of a valid program: parsing
// fails only at end of input. The REPL uses this for multi-line input.
func (i *Interp) IsIncomplete(src []byte) bool {
	return parser.IsIncomplete(src)
}

// Globals returns a copy of the interpreter's module environment.
func (i *Interp) Globals() map[string]Value {
	return i.eval.Globals()
}

// Reset clears the interpreter's module environment.
func (i *Interp) Reset() {
	i.eval.Reset()
}

// Dir returns the current-directory context.
func (i *Interp) Dir() string {
	return i.eval.Dir()
}

// SetDir updates the current-directory context. The next Run or RunFile
// call replaces it (see Run).
func (i *Interp) SetDir(dir string) {
	i.eval.SetDir(dir)
}

// InvalidateParseCache drops all memoized parse trees.
func (i *Interp) InvalidateParseCache() {
	i.parsed.Purge()
}

func (i *Interp) parseCached(src []byte, name string) (*parser.Node, error) {
	key := string(src)
	if root, ok := i.parsed.Get(key); ok {
		return root, nil
	}
	file := token.NewFile(name, len(src))
	root, err := parser.NewParser(file, src).ParseProgram()
	if err != nil {
		return nil, err
	}
	i.parsed.Add(key, root)
	return root, nil
}
