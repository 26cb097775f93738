package asterisk_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asterisk-lang/asterisk"
)

func runWithIO(t *testing.T, src, stdin string) (asterisk.Value, string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	interp := asterisk.New(
		asterisk.WithStdin(strings.NewReader(stdin)),
		asterisk.WithStdout(out),
	)
	got, err := interp.Run([]byte(src), "")
	return got, out.String(), err
}

func TestBuiltin_Putln(t *testing.T) {
	_, out, err := runWithIO(t, `putln("a", 1, [1, 2], "b c")`, "")
	require.NoError(t, err)
	require.Equal(t, "a 1 [1, 2] b c\n", out)

	_, out, err = runWithIO(t, `putln()`, "")
	require.NoError(t, err)
	require.Equal(t, "\n", out)
}

func TestBuiltin_Scan(t *testing.T) {
	got, out, err := runWithIO(t, `scan("name? ")`, "alice\n")
	require.NoError(t, err)
	require.Equal(t, "name? ", out)
	require.Equal(t, asterisk.String("alice"), got)
}

func TestBuiltin_Length(t *testing.T) {
	tests := []struct {
		input string
		want  asterisk.Value
	}{
		{`length("abc")`, asterisk.Int(3)},
		{`length("héllo")`, asterisk.Int(5)}, // code points, not bytes
		{`length([1, 2, 3])`, asterisk.Int(3)},
		{`length((1, 2))`, asterisk.Int(2)},
		{`length({"a": 1})`, asterisk.Int(1)},
		{`length("")`, asterisk.Int(0)},
	}
	for _, tt := range tests {
		got, _, err := runWithIO(t, tt.input, "")
		require.NoError(t, err, "input: %s", tt.input)
		require.Equal(t, tt.want, got, "input: %s", tt.input)
	}

	_, _, err := runWithIO(t, `length(1)`, "")
	var typeErr *asterisk.TypeError
	require.ErrorAs(t, err, &typeErr)
	require.Contains(t, err.Error(), "has no length")

	_, _, err = runWithIO(t, `length()`, "")
	require.ErrorAs(t, err, &typeErr)
}

func TestBuiltin_TextCase(t *testing.T) {
	got, _, err := runWithIO(t, `upper("abc")`, "")
	require.NoError(t, err)
	require.Equal(t, asterisk.String("ABC"), got)

	got, _, err = runWithIO(t, `lower("ABC")`, "")
	require.NoError(t, err)
	require.Equal(t, asterisk.String("abc"), got)

	got, _, err = runWithIO(t, `title("hello world")`, "")
	require.NoError(t, err)
	require.Equal(t, asterisk.String("Hello World"), got)
}

func TestBuiltin_UUID(t *testing.T) {
	got, _, err := runWithIO(t, `uuid()`, "")
	require.NoError(t, err)
	s, ok := got.(asterisk.String)
	require.True(t, ok)
	require.Len(t, string(s), 36)
}

func TestBuiltin_JSON(t *testing.T) {
	got, _, err := runWithIO(t, `from_json("[1, 2.5, \"x\", true]")`, "")
	require.NoError(t, err)
	require.Equal(t, asterisk.NewList([]asterisk.Value{
		asterisk.Int(1), asterisk.Float(2.5), asterisk.String("x"), asterisk.Bool(true),
	}), got)

	got, _, err = runWithIO(t, `d = from_json("{\"a\": 1}"); d["a"]`, "")
	require.NoError(t, err)
	require.Equal(t, asterisk.Int(1), got)

	got, _, err = runWithIO(t, `to_json({"a": [1, true], "b": "x"})`, "")
	require.NoError(t, err)
	require.Equal(t, asterisk.String(`{"a":[1,true],"b":"x"}`), got)

	_, _, err = runWithIO(t, `to_json({1: 2})`, "")
	var typeErr *asterisk.TypeError
	require.ErrorAs(t, err, &typeErr)
}

func TestBuiltin_YAML(t *testing.T) {
	got, _, err := runWithIO(t, `d = from_yaml("a: 1\nb: [x, y]\n"); d["a"]`, "")
	require.NoError(t, err)
	require.Equal(t, asterisk.Int(1), got)

	got, _, err = runWithIO(t, `d = from_yaml("a: 1\nb: [x, y]\n"); b = d["b"]; b[1]`, "")
	require.NoError(t, err)
	require.Equal(t, asterisk.String("y"), got)

	got, _, err = runWithIO(t, `to_yaml({"a": 1})`, "")
	require.NoError(t, err)
	require.Equal(t, asterisk.String("a: 1\n"), got)
}

func TestBuiltin_NotMutable(t *testing.T) {
	// shadowing in user scope never rewrites the builtin layer
	out := new(bytes.Buffer)
	interp := asterisk.New(
		asterisk.WithStdin(strings.NewReader("")),
		asterisk.WithStdout(out),
	)

	_, err := interp.Run([]byte(`fn putln(x) { return x } putln("shadowed")`), "")
	require.NoError(t, err)
	require.Empty(t, out.String())

	interp.Reset()
	_, err = interp.Run([]byte(`putln("restored")`), "")
	require.NoError(t, err)
	require.Equal(t, "restored\n", out.String())
}
