package asterisk

import (
	"os"
	"path/filepath"

	"github.com/asterisk-lang/asterisk/parser"
	"github.com/asterisk-lang/asterisk/token"
)

// ParseFunc parses source text into a parse tree. The name is used for
// error positions only.
type ParseFunc func(src []byte, name string) (*parser.Node, error)

// Loader loads Asterisk module files. A module file is parsed and
// evaluated at most once per Loader: the resulting exports are cached under
// the file's canonical path. A set of paths currently being loaded detects
// circular imports.
type Loader struct {
	builtins map[string]Value
	parse    ParseFunc
	cache    map[string]*Module
	loading  map[string]struct{}
}

// NewLoader creates a Loader. Child evaluators created for module files
// share the given builtins and use parse for their source text.
func NewLoader(builtins map[string]Value, parse ParseFunc) *Loader {
	if parse == nil {
		parse = func(src []byte, name string) (*parser.Node, error) {
			return parser.NewParser(token.NewFile(name, len(src)), src).ParseProgram()
		}
	}
	return &Loader{
		builtins: builtins,
		parse:    parse,
		cache:    make(map[string]*Module),
		loading:  make(map[string]struct{}),
	}
}

// Load resolves path against dir (or the process working directory if dir
// is empty), canonicalizes it, and returns the module's exports. Repeated
// loads of the same file return the same cached module.
func (l *Loader) Load(path, dir string) (*Module, error) {
	canonical, err := l.resolve(path, dir)
	if err != nil {
		return nil, &ModuleError{Path: path, Err: err}
	}

	if module, ok := l.cache[canonical]; ok {
		return module, nil
	}
	if _, ok := l.loading[canonical]; ok {
		return nil, &ModuleError{Path: canonical, Err: ErrCircularImport}
	}

	l.loading[canonical] = struct{}{}
	defer delete(l.loading, canonical)

	src, err := os.ReadFile(canonical)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ModuleError{Path: canonical, Err: ErrModuleNotFound}
		}
		return nil, &ModuleError{Path: canonical, Err: err}
	}

	root, err := l.parse(src, canonical)
	if err != nil {
		return nil, &ModuleError{Path: canonical, Err: err}
	}

	// a fresh evaluator per module file: non-local exits never cross a
	// module boundary, and transitive imports go through this same loader
	child := NewEvaluator(l.builtins, l, filepath.Dir(canonical))
	if _, err := child.Run(root); err != nil {
		return nil, &ModuleError{Path: canonical, Err: err}
	}

	module := NewModule(canonical, child.env)
	l.cache[canonical] = module
	return module, nil
}

// Cached reports whether the canonical path has a cached module.
func (l *Loader) Cached(path string) bool {
	_, ok := l.cache[path]
	return ok
}

func (l *Loader) resolve(path, dir string) (string, error) {
	if !filepath.IsAbs(path) {
		if dir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			dir = cwd
		}
		path = filepath.Join(dir, path)
	}
	canonical, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}
	return canonical, nil
}
