package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableArrayFastPath(t *testing.T) {
	g := NewGlobalState(1)
	tbl := NewTable(g)
	tbl.Set(Int(1), Int(10))
	tbl.Set(Int(2), Int(20))
	tbl.Set(Int(3), Int(30))

	require.Equal(t, Int(10), tbl.Get(Int(1)))
	require.Equal(t, Int(20), tbl.Get(Int(2)))
	require.EqualValues(t, 3, tbl.Length())
}

func TestTableHashPartAndAbsentKey(t *testing.T) {
	g := NewGlobalState(1)
	tbl := NewTable(g)
	st := &StringObj{short: true, s: "x", hash: 1, hashed: true}
	tbl.Set(st, Int(42))

	require.Equal(t, Int(42), tbl.Get(st))

	missing := tbl.Get(Int(999))
	nv, ok := missing.(NilValue)
	require.True(t, ok)
	require.Equal(t, NilAbsentKey, nv.Variant())
}

func TestTableDeleteLeavesTombstoneForTraversal(t *testing.T) {
	g := NewGlobalState(1)
	tbl := NewTable(g)
	a := &StringObj{short: true, s: "a", hash: 11, hashed: true}
	b := &StringObj{short: true, s: "b", hash: 22, hashed: true}
	tbl.Set(a, Int(1))
	tbl.Set(b, Int(2))

	tbl.Set(a, Nil) // delete a
	require.True(t, IsNil(tbl.Get(a)))

	// b must still be reachable directly...
	require.Equal(t, Int(2), tbl.Get(b))

	// ...and Next must still be able to walk past a's tombstone to find it.
	seen := map[string]bool{}
	k, v, ok := tbl.Next(Nil)
	for ok {
		if s, isStr := k.(*StringObj); isStr {
			seen[s.s] = true
		}
		k, v, ok = tbl.Next(k)
		_ = v
	}
	require.True(t, seen["b"])
}

func TestFloatIntegerKeysNormalize(t *testing.T) {
	g := NewGlobalState(1)
	tbl := NewTable(g)
	tbl.Set(Float(3), Int(100))
	require.Equal(t, Int(100), tbl.Get(Int(3)))
}
