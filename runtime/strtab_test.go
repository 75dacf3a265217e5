package runtime

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStringInternsShortStrings(t *testing.T) {
	st := NewGlobalState(1).strtab
	a := st.newString("hello")
	b := st.newString("hello")
	require.True(t, a == b, "short strings with the same content must be the same instance")
	require.True(t, a.IsShort())
}

func TestNewStringDoesNotInternLongStrings(t *testing.T) {
	st := NewGlobalState(1).strtab
	long := strings.Repeat("x", shortStringMax+1)
	a := st.newString(long)
	b := st.newString(long)
	require.False(t, a == b, "long strings are allocated fresh each time")
	require.False(t, a.IsShort())
	require.True(t, StringsEqual(a, b), "long strings compare by content")
}

func TestStringTableResizesAndSurvivesRemoval(t *testing.T) {
	st := NewGlobalState(7).strtab
	var made []*StringObj
	for i := 0; i < 64; i++ {
		made = append(made, st.newString(fmt.Sprintf("key-%d", i)))
	}
	require.True(t, len(st.hash) > minStringTable, "table should have grown past its initial size")

	victim := made[0]
	st.remove(victim)
	for _, s := range made[1:] {
		found := false
		for _, cand := range st.all() {
			if cand == s {
				found = true
				break
			}
		}
		require.True(t, found)
	}
}

func TestStringHashStableAcrossCalls(t *testing.T) {
	st := NewGlobalState(42).strtab
	s := st.newString("stable")
	h1 := s.Hash(42)
	h2 := s.Hash(42)
	require.Equal(t, h1, h2)
}

func TestNewStringRegistersWithCollector(t *testing.T) {
	g := NewGlobalState(1)
	short := g.strtab.newString("registered-short")
	long := g.strtab.newString(strings.Repeat("y", shortStringMax+1))

	foundShort, foundLong := false, false
	for cur := g.gc.all; cur != nil; cur = cur.next {
		if cur.obj == gcObject(short) {
			foundShort = true
		}
		if cur.obj == gcObject(long) {
			foundLong = true
		}
	}
	require.True(t, foundShort, "a freshly interned short string must be registered with the collector")
	require.True(t, foundLong, "a freshly allocated long string must be registered with the collector")
}
