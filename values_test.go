package asterisk_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asterisk-lang/asterisk"
)

func TestValue_String(t *testing.T) {
	tests := []struct {
		value asterisk.Value
		want  string
	}{
		{asterisk.Int(42), "42"},
		{asterisk.Float(1.5), "1.5"},
		{asterisk.Bool(true), "true"},
		{asterisk.Bool(false), "false"},
		{asterisk.String("abc"), `"abc"`},
		{asterisk.NewList([]asterisk.Value{asterisk.Int(1), asterisk.String("x")}), `[1, "x"]`},
		{asterisk.Tuple{asterisk.Int(1)}, `(1,)`},
		{asterisk.Tuple{asterisk.Int(1), asterisk.Int(2)}, `(1, 2)`},
		{asterisk.Tuple(nil), `()`},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.value.String())
	}

	m := asterisk.NewMap()
	require.NoError(t, m.Set(asterisk.String("k"), asterisk.Int(1)))
	require.NoError(t, m.Set(asterisk.Int(2), asterisk.Bool(false)))
	require.Equal(t, `{"k": 1, 2: false}`, m.String())
}

func TestValue_TypeNames(t *testing.T) {
	tests := []struct {
		value asterisk.Value
		want  string
	}{
		{asterisk.Int(0), "int"},
		{asterisk.Float(0), "float"},
		{asterisk.Bool(false), "bool"},
		{asterisk.String(""), "string"},
		{asterisk.NewList(nil), "list"},
		{asterisk.Tuple(nil), "tuple"},
		{asterisk.NewMap(), "dict"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.value.TypeName())
	}
}

func TestValue_Truthiness(t *testing.T) {
	falsy := []asterisk.Value{
		asterisk.Int(0),
		asterisk.Float(0),
		asterisk.Bool(false),
		asterisk.String(""),
		asterisk.NewList(nil),
		asterisk.Tuple(nil),
		asterisk.NewMap(),
	}
	for _, v := range falsy {
		require.False(t, asterisk.Truthy(v), "%s", v)
	}

	truthy := []asterisk.Value{
		asterisk.Int(-1),
		asterisk.Float(0.5),
		asterisk.Bool(true),
		asterisk.String("x"),
		asterisk.NewList([]asterisk.Value{asterisk.Int(0)}),
		asterisk.Tuple{asterisk.Int(0)},
	}
	for _, v := range truthy {
		require.True(t, asterisk.Truthy(v), "%s", v)
	}
}

func TestValue_Hashable(t *testing.T) {
	require.True(t, asterisk.Hashable(asterisk.Int(1)))
	require.True(t, asterisk.Hashable(asterisk.Float(1)))
	require.True(t, asterisk.Hashable(asterisk.Bool(true)))
	require.True(t, asterisk.Hashable(asterisk.String("x")))
	require.False(t, asterisk.Hashable(asterisk.NewList(nil)))
	require.False(t, asterisk.Hashable(asterisk.Tuple(nil)))
	require.False(t, asterisk.Hashable(asterisk.NewMap()))
}

func TestValue_Equal(t *testing.T) {
	require.True(t, asterisk.Equal(asterisk.Int(1), asterisk.Float(1)))
	require.True(t, asterisk.Equal(
		asterisk.NewList([]asterisk.Value{asterisk.Int(1)}),
		asterisk.NewList([]asterisk.Value{asterisk.Int(1)}),
	))
	require.False(t, asterisk.Equal(asterisk.Int(1), asterisk.String("1")))
	require.False(t, asterisk.Equal(asterisk.Bool(true), asterisk.Int(1)))
}

func TestMap_InsertionOrder(t *testing.T) {
	m := asterisk.NewMap()
	require.NoError(t, m.Set(asterisk.String("b"), asterisk.Int(1)))
	require.NoError(t, m.Set(asterisk.String("a"), asterisk.Int(2)))
	require.NoError(t, m.Set(asterisk.String("b"), asterisk.Int(3))) // overwrite keeps position

	require.Equal(t, []asterisk.Value{asterisk.String("b"), asterisk.String("a")}, m.Keys())

	value, ok := m.Get(asterisk.String("b"))
	require.True(t, ok)
	require.Equal(t, asterisk.Int(3), value)
}
