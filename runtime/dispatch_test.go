package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func withMetatable(g *GlobalState, event string, fn func(th *Thread, args []Value) ([]Value, error)) *Table {
	t := NewTable(g)
	mt := NewTable(g)
	mt.Set(g.NewString(event), LightFunc{Name: event, Fn: fn})
	t.metatable = mt
	return t
}

func TestArithBinaryFallsBackToMetamethod(t *testing.T) {
	g := NewGlobalState(1)
	th := g.MainThread()

	tbl := withMetatable(g, "__add", func(th *Thread, args []Value) ([]Value, error) {
		x := args[0].(*Table)
		y := args[1].(Int)
		_ = x
		return []Value{y + 100}, nil
	})

	v, err := th.ArithBinary(OpAdd, tbl, Int(5))
	require.NoError(t, err)
	require.Equal(t, Int(105), v)
}

func TestArithBinaryWithoutMetamethodErrors(t *testing.T) {
	g := NewGlobalState(1)
	th := g.MainThread()

	_, err := th.ArithBinary(OpAdd, NewTable(g), Int(5))
	require.Error(t, err)
}

func TestEqualsUsesMetamethodOnlyForSameType(t *testing.T) {
	g := NewGlobalState(1)
	th := g.MainThread()

	a := withMetatable(g, "__eq", func(th *Thread, args []Value) ([]Value, error) {
		return []Value{Bool(true)}, nil
	})
	b := NewTable(g)

	ok, err := th.Equals(a, b)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = th.Equals(a, Int(1))
	require.NoError(t, err)
	require.False(t, ok, "differing types never invoke __eq")
}

func TestConcatFallsBackToMetamethod(t *testing.T) {
	g := NewGlobalState(1)
	th := g.MainThread()

	tbl := withMetatable(g, "__concat", func(th *Thread, args []Value) ([]Value, error) {
		return []Value{g.NewString("concatenated")}, nil
	})

	v, err := th.Concat([]Value{g.NewString("prefix-"), tbl})
	require.NoError(t, err)
	s, ok := v.(*StringObj)
	require.True(t, ok)
	require.Equal(t, "concatenated", s.String())
}

func TestLenOnStringAndTable(t *testing.T) {
	g := NewGlobalState(1)
	th := g.MainThread()

	s := g.NewString("abcde")
	v, err := th.Len(s)
	require.NoError(t, err)
	require.Equal(t, Int(5), v)

	tbl := NewTable(g)
	tbl.Set(Int(1), Int(10))
	tbl.Set(Int(2), Int(20))
	v, err = th.Len(tbl)
	require.NoError(t, err)
	require.Equal(t, Int(2), v)
}
