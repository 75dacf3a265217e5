package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkObjectTransitionsWhiteToGray(t *testing.T) {
	g := NewGlobalState(1)
	tbl := NewTable(g)
	require.True(t, g.gc.isWhite(tbl))

	g.gc.markObject(tbl)
	require.Equal(t, colorGray, tbl.header().color)
	require.Len(t, g.gc.gray, 1)

	// Marking an already-gray object is a no-op: it isn't pushed twice.
	g.gc.markObject(tbl)
	require.Len(t, g.gc.gray, 1)
}

func TestPropagateOneBlackensAndMarksChildren(t *testing.T) {
	g := NewGlobalState(1)
	parent := NewTable(g)
	child := NewTable(g)
	parent.Set(Int(1), child)

	g.gc.markObject(parent)
	work := g.gc.propagateOne()
	require.Greater(t, work, 0)
	require.Equal(t, colorBlack, parent.header().color)
	require.Equal(t, colorGray, child.header().color, "traversing parent must gray its child")
}

func TestReachabilityViaGlobalsTraceFromRoots(t *testing.T) {
	g := NewGlobalState(1)
	reachable := NewTable(g)
	unreachable := NewTable(g)
	g.Globals().Set(g.NewString("x"), reachable)

	gc := &g.gc
	gc.startCycle()
	for len(gc.gray) > 0 {
		gc.propagateOne()
	}

	require.Equal(t, colorBlack, reachable.header().color)
	require.True(t, gc.isWhite(unreachable), "a table never reached from a root stays white")
}

func TestForwardBarrierGraysWhiteTargetOfBlackOwner(t *testing.T) {
	g := NewGlobalState(1)
	owner := NewTable(g)
	owner.header().color = colorBlack
	target := NewTable(g)
	require.True(t, g.gc.isWhite(target))

	g.gc.phase = phasePropagate
	g.gc.forwardBarrier(owner, target)
	require.Equal(t, colorGray, target.header().color)
}

func TestBackBarrierRegraysBlackOwner(t *testing.T) {
	g := NewGlobalState(1)
	owner := NewTable(g)
	owner.header().color = colorBlack

	g.gc.phase = phasePropagate
	g.gc.backBarrier(owner)
	require.Equal(t, colorGray, owner.header().color)
	require.Contains(t, g.gc.grayAgain, gcObject(owner))
}

func TestRunFullMajorReturnsToPauseWithoutPanicking(t *testing.T) {
	g := NewGlobalState(1)
	g.Globals().Set(g.NewString("x"), NewTable(g))

	g.gc.runFullMajor()
	require.Equal(t, phasePause, g.gc.phase)
}

func TestRunFullMajorSweepsUnreachableTableFromAllList(t *testing.T) {
	g := NewGlobalState(1)
	reachable := NewTable(g)
	unreachable := NewTable(g)
	g.Globals().Set(g.NewString("kept"), reachable)

	contains := func(o gcObject) bool {
		for cur := g.gc.all; cur != nil; cur = cur.next {
			if cur.obj == o {
				return true
			}
		}
		return false
	}
	require.True(t, contains(reachable))
	require.True(t, contains(unreachable))

	g.gc.runFullMajor()

	require.True(t, contains(reachable), "an object reachable from the globals table must survive sweep")
	require.False(t, contains(unreachable), "an object unreachable from any root must be unlinked by sweep")
}

func TestRunFullMajorQueuesAndCallsGCFinalizer(t *testing.T) {
	g := NewGlobalState(1)
	called := false
	mt := NewTable(g)
	mt.Set(g.metaNames[mmGC], LightFunc{Name: "__gc", Fn: func(th *Thread, args []Value) ([]Value, error) {
		called = true
		return nil, nil
	}})
	u := NewUserdata(g, nil, 0)
	u.SetMetatable(mt)
	// u is never reachable from any root: it exists only in this local var.

	g.gc.runFullMajor()

	require.True(t, called, "sweeping an unreachable userdata with a __gc metamethod must invoke it")
}

func TestGenerationalPromotionAdvancesAge(t *testing.T) {
	g := NewGlobalState(1)
	require.Equal(t, ageNew, ageNew)
	require.Equal(t, ageSurvival, g.gc.promote(ageNew))
	require.Equal(t, ageOld, g.gc.promote(ageSurvival))
	require.Equal(t, ageOld, g.gc.promote(ageOld))
}
