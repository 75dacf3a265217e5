package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindOrCreateUpvalueReusesSameLevel(t *testing.T) {
	g := NewGlobalState(1)
	th := g.MainThread()
	th.stack = *newStack(8)
	th.stack.settop(4)

	uv1 := th.findOrCreateUpvalue(2)
	uv2 := th.findOrCreateUpvalue(2)
	require.True(t, uv1 == uv2, "the same stack level must reuse one Upvalue")

	uv0 := th.findOrCreateUpvalue(0)
	require.False(t, uv0 == uv1)
}

func TestUpvalueTracksOpenSlotThenFreezesOnClose(t *testing.T) {
	g := NewGlobalState(1)
	th := g.MainThread()
	th.stack = *newStack(8)
	th.stack.settop(4)
	th.stack.set(1, Int(10))

	uv := th.findOrCreateUpvalue(1)
	require.Equal(t, Int(10), uv.Get())

	th.stack.set(1, Int(20))
	require.Equal(t, Int(20), uv.Get(), "an open upvalue reads through to the live stack slot")

	th.closeUpvalues(0)
	require.Equal(t, Int(20), uv.Get(), "closing copies the last live value")

	th.stack.set(1, Int(999))
	require.Equal(t, Int(20), uv.Get(), "a closed upvalue no longer follows the stack slot")
}

func TestCloseUpvaluesOnlyClosesAtOrAboveLevel(t *testing.T) {
	g := NewGlobalState(1)
	th := g.MainThread()
	th.stack = *newStack(8)
	th.stack.settop(4)
	th.stack.set(0, Int(1))
	th.stack.set(2, Int(2))

	low := th.findOrCreateUpvalue(0)
	high := th.findOrCreateUpvalue(2)

	th.closeUpvalues(1)

	require.False(t, low.closed, "level below the close boundary stays open")
	require.True(t, high.closed, "level at or above the close boundary closes")
}
