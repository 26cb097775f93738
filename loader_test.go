package asterisk_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asterisk-lang/asterisk"
)

func writeModule(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func canonical(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func newTestInterp(out *bytes.Buffer) *asterisk.Interp {
	return asterisk.New(
		asterisk.WithStdin(strings.NewReader("")),
		asterisk.WithStdout(out),
	)
}

func TestLoader_Import(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "util.sk", `
fn greet(n) {
	return "hello, " + n
}`)

	interp := newTestInterp(new(bytes.Buffer))
	got, err := interp.Run([]byte(`import "util.sk" as u; u.greet("world")`),
		filepath.Join(dir, "main.sk"))
	require.NoError(t, err)
	require.Equal(t, asterisk.String("hello, world"), got)
}

func TestLoader_DefaultBindingName(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "answers.sk", `best = 42`)

	interp := newTestInterp(new(bytes.Buffer))
	got, err := interp.Run([]byte(`import "answers.sk"; answers.best`),
		filepath.Join(dir, "main.sk"))
	require.NoError(t, err)
	require.Equal(t, asterisk.Int(42), got)
}

func TestLoader_ModuleMemberErrors(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "m.sk", `x = 1`)

	interp := newTestInterp(new(bytes.Buffer))
	_, err := interp.Run([]byte(`import "m.sk"; m.missing`),
		filepath.Join(dir, "main.sk"))
	var nameErr *asterisk.NameError
	require.ErrorAs(t, err, &nameErr)
	require.Contains(t, err.Error(), "undefined module member: m.missing")

	_, err = interp.Run([]byte(`m.x()`), filepath.Join(dir, "main.sk"))
	var typeErr *asterisk.TypeError
	require.ErrorAs(t, err, &typeErr)
	require.Contains(t, err.Error(), "m.x is not callable")
}

func TestLoader_SideEffectsRunOnce(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "noisy.sk", `putln("loaded")
value = 1`)

	out := new(bytes.Buffer)
	interp := newTestInterp(out)
	mainPath := filepath.Join(dir, "main.sk")

	_, err := interp.Run([]byte(`import "noisy.sk" as a; import "noisy.sk" as b`), mainPath)
	require.NoError(t, err)
	_, err = interp.Run([]byte(`import "noisy.sk" as c`), mainPath)
	require.NoError(t, err)

	require.Equal(t, 1, strings.Count(out.String(), "loaded"))
}

func TestLoader_SameModuleValue(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "m.sk", `x = 1`)

	interp := newTestInterp(new(bytes.Buffer))
	got, err := interp.Run([]byte(`import "m.sk" as a; import "m.sk" as b; a == b`),
		filepath.Join(dir, "main.sk"))
	require.NoError(t, err)
	require.Equal(t, asterisk.Bool(true), got)
}

func TestLoader_TransitiveImports(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "sub/leaf.sk", `value = 10`)
	// relative paths resolve against the importing file's directory
	writeModule(t, dir, "sub/mid.sk", `import "leaf.sk"
value = leaf.value + 1`)

	interp := newTestInterp(new(bytes.Buffer))
	got, err := interp.Run([]byte(`import "sub/mid.sk" as m; m.value`),
		filepath.Join(dir, "main.sk"))
	require.NoError(t, err)
	require.Equal(t, asterisk.Int(11), got)
}

func TestLoader_NotFound(t *testing.T) {
	dir := t.TempDir()
	interp := newTestInterp(new(bytes.Buffer))

	_, err := interp.Run([]byte(`import "nope.sk"`), filepath.Join(dir, "main.sk"))
	var modErr *asterisk.ModuleError
	require.ErrorAs(t, err, &modErr)
	require.ErrorIs(t, err, asterisk.ErrModuleNotFound)
	require.Contains(t, err.Error(), "module not found")
	require.Contains(t, err.Error(), "nope.sk")
}

func TestLoader_CircularImport(t *testing.T) {
	dir := t.TempDir()
	pathA := writeModule(t, dir, "a.sk", `import "b.sk"`)
	writeModule(t, dir, "b.sk", `import "a.sk"`)

	loader := asterisk.NewLoader(nil, nil)
	_, err := loader.Load(pathA, dir)

	var modErr *asterisk.ModuleError
	require.ErrorAs(t, err, &modErr)
	require.ErrorIs(t, err, asterisk.ErrCircularImport)
	require.Contains(t, err.Error(), "circular")
	require.Contains(t, err.Error(), canonical(t, pathA))

	// neither file ends up cached
	require.False(t, loader.Cached(canonical(t, pathA)))
	require.False(t, loader.Cached(canonical(t, filepath.Join(dir, "b.sk"))))
}

func TestLoader_SelfImport(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "self.sk", `import "self.sk"`)

	loader := asterisk.NewLoader(nil, nil)
	_, err := loader.Load(path, dir)
	require.ErrorIs(t, err, asterisk.ErrCircularImport)
}

func TestLoader_ChildErrorsCarryPath(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "broken.sk", `undefined_name`)

	loader := asterisk.NewLoader(nil, nil)
	_, err := loader.Load(path, dir)

	var modErr *asterisk.ModuleError
	require.ErrorAs(t, err, &modErr)
	require.Equal(t, canonical(t, path), modErr.Path)

	var nameErr *asterisk.NameError
	require.True(t, errors.As(modErr.Err, &nameErr))
	require.False(t, loader.Cached(canonical(t, path)))
}

func TestLoader_ExportsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "m.sk", `x = 1`)

	loader := asterisk.NewLoader(nil, nil)
	module, err := loader.Load(path, dir)
	require.NoError(t, err)

	exports := module.Exports()
	exports["x"] = asterisk.Int(99)

	value, ok := module.Field("x")
	require.True(t, ok)
	require.Equal(t, asterisk.Int(1), value)
}

func TestLoader_CacheHit(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "m.sk", `x = 1`)

	loader := asterisk.NewLoader(nil, nil)
	first, err := loader.Load(path, dir)
	require.NoError(t, err)
	require.True(t, loader.Cached(canonical(t, path)))

	second, err := loader.Load("m.sk", dir)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestLoader_AbsolutePath(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "abs.sk", `x = 1`)

	interp := newTestInterp(new(bytes.Buffer))
	got, err := interp.Run([]byte(`import "`+path+`" as m; m.x`), "")
	require.NoError(t, err)
	require.Equal(t, asterisk.Int(1), got)
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "main.sk", "#!/usr/bin/env asterisk\nx = 41\nx + 1")

	interp := newTestInterp(new(bytes.Buffer))
	got, err := interp.RunFile(path)
	require.NoError(t, err)
	require.Equal(t, asterisk.Int(42), got)

	_, err = interp.RunFile(filepath.Join(dir, "missing.sk"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}
