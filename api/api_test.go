package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vela-lang/vela/runtime"
)

func TestStackPushPopRoundTrip(t *testing.T) {
	s := NewState(1)

	s.PushInteger(10)
	s.PushString("hi")
	s.PushBoolean(true)
	require.Equal(t, 3, s.GetTop())

	require.True(t, s.ToBoolean(3))
	str, ok := s.ToString(2)
	require.True(t, ok)
	require.Equal(t, "hi", str)
	n, ok := s.ToInteger(1)
	require.True(t, ok)
	require.EqualValues(t, 10, n)

	s.SetTop(0)
	require.Equal(t, 0, s.GetTop())
}

func TestTableSetGetThroughState(t *testing.T) {
	s := NewState(1)
	s.NewTable() // idx 1

	s.PushString("key")
	s.PushInteger(99)
	require.NoError(t, s.SetTable(1))

	s.PushString("key")
	require.NoError(t, s.GetTable(1))
	n, ok := s.ToInteger(s.GetTop())
	require.True(t, ok)
	require.EqualValues(t, 99, n)
}

func TestRawSetGet(t *testing.T) {
	s := NewState(1)
	s.NewTable()
	key := s.G.NewString("field")
	s.RawSet(1, key, runtime.Int(7))
	require.Equal(t, runtime.Int(7), s.RawGet(1, key))
}

func TestArithAndCompare(t *testing.T) {
	s := NewState(1)
	s.PushInteger(3)
	s.PushInteger(4)
	require.NoError(t, s.Arith(runtime.OpAdd))
	n, ok := s.ToInteger(s.GetTop())
	require.True(t, ok)
	require.EqualValues(t, 7, n)

	s.PushInteger(1)
	s.PushInteger(2)
	lt, err := s.Compare(s.GetTop()-1, s.GetTop(), "lt")
	require.NoError(t, err)
	require.True(t, lt)
}

func TestConcatAndLen(t *testing.T) {
	s := NewState(1)
	s.PushString("foo")
	s.PushString("bar")
	require.NoError(t, s.Concat(2))
	str, ok := s.ToString(s.GetTop())
	require.True(t, ok)
	require.Equal(t, "foobar", str)

	require.NoError(t, s.Len(s.GetTop()))
	n, ok := s.ToInteger(s.GetTop())
	require.True(t, ok)
	require.EqualValues(t, 6, n)
}

func TestCallHostFunction(t *testing.T) {
	s := NewState(1)
	double := runtime.LightFunc{
		Name: "double",
		Fn: func(th *runtime.Thread, args []runtime.Value) ([]runtime.Value, error) {
			i := args[0].(runtime.Int)
			return []runtime.Value{i * 2}, nil
		},
	}
	s.Th.Push(double)
	s.PushInteger(21)
	require.NoError(t, s.Call(1, 1))
	n, ok := s.ToInteger(s.GetTop())
	require.True(t, ok)
	require.EqualValues(t, 42, n)
}

func TestPCallCatchesError(t *testing.T) {
	s := NewState(1)
	boom := runtime.LightFunc{
		Name: "boom",
		Fn: func(th *runtime.Thread, args []runtime.Value) ([]runtime.Value, error) {
			return nil, &runtime.RuntimeError{Msg: "kaboom"}
		},
	}
	s.Th.Push(boom)
	ok, errVal := s.PCall(0, 0, 0)
	require.False(t, ok)
	require.NotNil(t, errVal)
}
