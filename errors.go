package asterisk

import (
	"errors"
	"fmt"
)

var (
	// ErrModuleNotFound is reported when an imported module file does not
	// exist.
	ErrModuleNotFound = errors.New("module not found")

	// ErrCircularImport is reported when a module is imported while it is
	// still being loaded.
	ErrCircularImport = errors.New("circular module import")

	// ErrNoLoader is reported when an import statement is evaluated without
	// a module loader configured.
	ErrNoLoader = errors.New("module system is not configured")
)

// NameError represents a reference to an unbound identifier, an undefined
// module, or a missing module member.
type NameError struct {
	Msg string
}

func (e *NameError) Error() string { return e.Msg }

// TypeError represents an operation applied to a value of the wrong type:
// calling a non-callable, indexing a non-indexable, iterating a
// non-iterable, an unhashable dict key, or an arity mismatch.
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return e.Msg }

// IndexError represents an out-of-range sequence index.
type IndexError struct {
	Msg string
}

func (e *IndexError) Error() string { return e.Msg }

// KeyError represents a missing dict key.
type KeyError struct {
	Msg string
}

func (e *KeyError) Error() string { return e.Msg }

// ZeroDivisionError represents a division by zero.
type ZeroDivisionError struct {
	Msg string
}

func (e *ZeroDivisionError) Error() string { return e.Msg }

// ControlFlowError represents break, continue or return used outside of
// their valid context.
type ControlFlowError struct {
	Msg string
}

func (e *ControlFlowError) Error() string { return e.Msg }

// ModuleError represents a failure while loading a module. It carries the
// canonical path of the offending module (the path as written when it
// cannot be resolved) and wraps the underlying cause.
type ModuleError struct {
	Path string
	Err  error
}

func (e *ModuleError) Error() string {
	switch {
	case e.Err == ErrModuleNotFound:
		return fmt.Sprintf("module not found: %s", e.Path)
	case e.Err == ErrCircularImport:
		return fmt.Sprintf("circular module import: %s", e.Path)
	case e.Path == "":
		return e.Err.Error()
	}
	return fmt.Sprintf("module error in %s: %s", e.Path, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }
