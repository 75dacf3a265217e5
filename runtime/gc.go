package runtime

// gcKind selects which collection discipline gcState runs (§4.4): plain
// incremental tri-color, or generational (the default since Lua 5.4,
// SPEC_FULL.md's SUPPLEMENTED FEATURES).
type gcKind uint8

const (
	gcIncremental gcKind = iota
	gcGenerational
)

// gcPhase is the incremental collector's state machine (§4.4 "Phases").
type gcPhase uint8

const (
	phasePause gcPhase = iota
	phasePropagate
	phaseEnterAtomic
	phaseAtomic
	phaseSweepAllGC
	phaseSweepFinalizable
	phaseSweepToBeFinalized
	phaseSweepEnd
	phaseCallFinalizers
)

// gcState is the collector's own bookkeeping, embedded in GlobalState
// (§3 "Global state" names it as part of the shared state every thread
// sees). There is one collector per GlobalState, not per thread: a
// coroutine yielding or erroring never interrupts a cycle in progress.
type gcState struct {
	g      *GlobalState
	params GCParams

	kind  gcKind
	phase gcPhase

	currentWhite gcColor // flips between White0 and White1 each full cycle
	gray         []gcObject
	grayAgain    []gcObject // atomic-phase re-traversal list (§4.4 "barriers")

	all *rootedObject // intrusive list of every object the collector has seen

	bytesAllocated int
	debt           int // bytesAllocated as of the last step/cycle trigger; bytesAllocated-debt is the growth since
	estimate       int // live-bytes estimate after the last full cycle, for Pause/StepMul pacing

	minorCount int // generational: minor cycles since the last major one

	finalizers []gcObject // objects with __gc pending a call
}

// rootedObject is a cons-cell over gcObject: every collectable constructor
// (NewTable, NewTableSized, NewUserdata, NewLuaClosure, NewHostClosure,
// newString, newThread) calls register at allocation time, prepending one of
// these to gc.all, so sweepStep's walk of gc.all sees every live allocation
// rather than only whatever the root trace happens to touch.
type rootedObject struct {
	obj  gcObject
	next *rootedObject
}

func newGCState(g *GlobalState, params GCParams) gcState {
	return gcState{
		g:            g,
		params:       params,
		kind:         gcGenerational,
		currentWhite: colorWhite0,
	}
}

func (gc *gcState) otherWhite() gcColor {
	if gc.currentWhite == colorWhite0 {
		return colorWhite1
	}
	return colorWhite0
}

func (gc *gcState) isWhite(o gcObject) bool {
	c := o.header().color
	return c == colorWhite0 || c == colorWhite1
}

func (gc *gcState) isDead(o gcObject) bool {
	return o.header().color == gc.otherWhite()
}

// markObject implements §4.4 "marking": a white object becomes gray and is
// pushed on the worklist for later traversal; anything already gray or black
// is left alone (monotone once-per-cycle marking).
func (gc *gcState) markObject(o gcObject) {
	if o == nil {
		return
	}
	h := o.header()
	if !gc.isWhite(o) {
		return
	}
	h.color = colorGray
	gc.gray = append(gc.gray, o)
}

func (gc *gcState) markValue(v Value) {
	if Collectable(v) {
		if o := gcObjectOf(v); o != nil {
			gc.markObject(o)
		}
	}
}

// propagateOne implements one step of §4.4 "Propagate": pop a gray object,
// traverse its references (graying whatever they point to), and blacken it.
// Returns the approximate work performed, in "traversed reference" units,
// for the step-size budget.
func (gc *gcState) propagateOne() int {
	if len(gc.gray) == 0 {
		return 0
	}
	o := gc.gray[len(gc.gray)-1]
	gc.gray = gc.gray[:len(gc.gray)-1]
	work := 0
	o.traverse(func(v Value) {
		gc.markValue(v)
		work++
	})
	o.header().color = colorBlack
	return work + 1
}

// forwardBarrier implements §4.6 "forward barrier": called whenever a black
// object is made to point at a white one (e.g. SETUPVAL storing into an
// upvalue of a black closure; tables use backBarrier instead). The white object is
// grayed immediately so the invariant "no black object points at a white
// one" holds even mid-cycle.
func (gc *gcState) forwardBarrier(owner gcObject, ref Value) {
	if gc.phase == phasePause {
		return
	}
	if owner.header().color != colorBlack {
		return
	}
	if !Collectable(ref) {
		return
	}
	target := gcObjectOf(ref)
	if target != nil && gc.isWhite(target) {
		gc.markObject(target)
	}
}

// backBarrier implements the alternative §4.6 barrier used for tables: reset
// the owning (black) object back to gray instead of graying every write's
// target, amortizing a write-heavy table across one re-traversal at the next
// atomic phase.
func (gc *gcState) backBarrier(owner gcObject) {
	if gc.phase == phasePause {
		return
	}
	h := owner.header()
	if h.color == colorBlack {
		h.color = colorGray
		gc.grayAgain = append(gc.grayAgain, owner)
	}
}

// maybeStep implements §4.4's debt-driven pacing: reallocate() feeds byte
// deltas in; once the debt exceeds Pause% of the last cycle's live estimate,
// run one step (or, in generational mode, consider a minor/major collection).
func (gc *gcState) maybeStep() {
	threshold := gc.estimate * gc.params.Pause / 100
	if threshold <= 0 {
		threshold = 1 << gc.params.StepSize
	}
	if gc.bytesAllocated-gc.debt < threshold {
		return
	}
	gc.debt = gc.bytesAllocated
	if gc.kind == gcGenerational {
		gc.stepGenerational()
		return
	}
	gc.step()
}

// step runs one incremental slice: phasePause starts a new cycle by
// rooting, phasePropagate/phaseEnterAtomic/phaseAtomic advance the
// tri-color trace, and the sweep phases reclaim white objects in small
// slices (§4.4 "Incremental collection").
func (gc *gcState) step() {
	budget := gc.params.StepMul * (1 << gc.params.StepSize) / 100
	if budget <= 0 {
		budget = 1
	}
	switch gc.phase {
	case phasePause:
		gc.startCycle()
	case phasePropagate:
		done := 0
		for done < budget && len(gc.gray) > 0 {
			done += gc.propagateOne()
		}
		if len(gc.gray) == 0 {
			gc.phase = phaseEnterAtomic
		}
	case phaseEnterAtomic, phaseAtomic:
		gc.runAtomic()
	case phaseSweepAllGC, phaseSweepFinalizable, phaseSweepToBeFinalized, phaseSweepEnd:
		gc.sweepStep(budget)
	case phaseCallFinalizers:
		gc.callFinalizers(budget)
	}
}

// startCycle implements §4.4 "Starting a cycle": clear the gray lists, mark
// every root gray, and enter propagate. The current white is not flipped
// here; runAtomic flips it just before sweeping.
func (gc *gcState) startCycle() {
	gc.gray = gc.gray[:0]
	gc.grayAgain = gc.grayAgain[:0]
	gc.markRoots()
	gc.phase = phasePropagate
}

// markRoots marks the collector's only two true roots (§3 "Global state"):
// the registry (which itself holds the main thread and the globals table)
// and the main thread directly, in case it has been removed from the
// registry by host code. Every coroutine is reachable only via some live
// Value referencing it (a thread-typed table entry, a stack slot, an
// upvalue), matching §3's "threads are ordinary collectable objects".
func (gc *gcState) markRoots() {
	g := gc.g
	if g.registry != nil {
		gc.markObject(g.registry)
	}
	if g.main != nil {
		gc.markObject(g.main)
	}
}

// runAtomic implements §4.4 "Atomic phase": drain gray (including anything
// requeued via the back barrier) with the whole heap held still, finalize
// the current white into "dead", and move on to sweeping.
func (gc *gcState) runAtomic() {
	for len(gc.gray) > 0 {
		gc.propagateOne()
	}
	for _, o := range gc.grayAgain {
		if gc.isWhite(o) {
			continue
		}
		o.header().color = colorGray
		gc.gray = append(gc.gray, o)
	}
	gc.grayAgain = gc.grayAgain[:0]
	for len(gc.gray) > 0 {
		gc.propagateOne()
	}
	// Flip before sweeping, not after: anything not reached by the trace
	// above is still colored with the white that was current *during*
	// marking, which is now otherWhite() — exactly the color isDead checks
	// for below. Flipping later would leave every untouched object's color
	// matching the still-current white, so isDead would never fire.
	gc.currentWhite = gc.otherWhite()
	gc.phase = phaseSweepAllGC
}

// sweepStep walks the intrusive all-objects list, resetting survivors
// (black/gray -> the new white, ready for the next cycle) and collecting
// anything still the old white whose type carries __gc into finalizers
// (§4.4 "Sweep", §4.6 "Finalizers"). Objects are never explicitly freed
// here: Go's own allocator reclaims memory once nothing in the Go heap
// references a value, which for every vela object happens exactly when it
// becomes unreachable from the traced roots, so the tracing above is what
// establishes correctness even though this step does no pointer-freeing.
func (gc *gcState) sweepStep(budget int) {
	cur := gc.all
	var prev *rootedObject
	done := 0
	for cur != nil && done < budget {
		h := cur.obj.header()
		if gc.isDead(cur.obj) {
			if hasFinalizer(cur.obj) && !h.finalizing {
				h.finalizing = true
				gc.finalizers = append(gc.finalizers, cur.obj)
			}
			// Unlink from the live list either way; a pending finalizer keeps
			// the object reachable via gc.finalizers, not this list.
			if prev == nil {
				gc.all = cur.next
			} else {
				prev.next = cur.next
			}
			cur = cur.next
			done++
			continue
		}
		h.color = gc.currentWhite // survivors become the new cycle's white
		prev = cur
		cur = cur.next
		done++
	}
	if cur == nil {
		if len(gc.finalizers) > 0 {
			gc.phase = phaseCallFinalizers
		} else {
			gc.finishCycle()
		}
	}
}

func (gc *gcState) callFinalizers(budget int) {
	done := 0
	for done < budget && len(gc.finalizers) > 0 {
		o := gc.finalizers[len(gc.finalizers)-1]
		gc.finalizers = gc.finalizers[:len(gc.finalizers)-1]
		if h := gc.g.gettm(finalizerOwner(o), mmGC); !IsNil(h) {
			gc.g.main.call(h, []Value{finalizerOwner(o)})
		}
		done++
	}
	if len(gc.finalizers) == 0 {
		gc.finishCycle()
	}
}

func (gc *gcState) finishCycle() {
	gc.phase = phasePause
	gc.estimate = gc.bytesAllocated
}

func hasFinalizer(o gcObject) bool {
	_, ok := o.(*Userdata)
	return ok
}

func finalizerOwner(o gcObject) Value {
	if v, ok := o.(Value); ok {
		return v
	}
	return Nil
}

// register adds a freshly allocated object to the collector's tracked set,
// tagging it with the current white so an allocation made mid-cycle is not
// immediately swept (§4.4 "new objects are born white, the current one").
func (gc *gcState) register(o gcObject) {
	o.header().color = gc.currentWhite
	gc.all = &rootedObject{obj: o, next: gc.all}
}

// stepGenerational implements the generational mode: cheap minor
// collections that only trace objects young enough to plausibly be garbage,
// promoting survivors' age, with a major (full incremental) collection on
// every GenMajorMul/GenMinorMul-th call (every 5th with the defaults). The
// choice is by call count only; bytes freed or bytes surviving are not
// consulted.
func (gc *gcState) stepGenerational() {
	gc.minorCount++
	if gc.minorCount >= gc.params.GenMajorMul/gc.params.GenMinorMul {
		gc.minorCount = 0
		gc.runFullMajor()
		return
	}
	gc.runMinor()
}

// runMinor traces from the roots, skipping objects already aged old (a
// minor cycle assumes the old generation was already validated by the last
// major one), and ages the objects it traverses. It does not sweep, so a
// minor cycle reclaims nothing; only runFullMajor unlinks unreachable
// objects.
func (gc *gcState) runMinor() {
	gc.gray = gc.gray[:0]
	gc.markRoots()
	for len(gc.gray) > 0 {
		o := gc.gray[len(gc.gray)-1]
		gc.gray = gc.gray[:len(gc.gray)-1]
		h := o.header()
		if h.age == ageOld || h.age == ageOldStart {
			continue // old objects are assumed already-traced this major epoch
		}
		o.traverse(gc.markValue)
		h.color = colorBlack
		h.age = gc.promote(h.age)
	}
}

func (gc *gcState) promote(age gcAge) gcAge {
	switch age {
	case ageNew:
		return ageSurvival
	case ageSurvival:
		return ageOld
	default:
		return age
	}
}

// runFullMajor degrades to a complete incremental-style trace and sweep in
// one shot, the "goto major" path: when enough minor cycles have run that
// the old generation is likely to have accumulated real garbage, a single
// full pass re-establishes the baseline live-set estimate.
func (gc *gcState) runFullMajor() {
	gc.startCycle()
	for gc.phase == phasePropagate {
		done := 0
		for done < 1<<20 && len(gc.gray) > 0 {
			done += gc.propagateOne()
		}
		if len(gc.gray) == 0 {
			gc.phase = phaseEnterAtomic
		}
	}
	gc.runAtomic()
	for gc.phase != phasePause {
		gc.sweepStep(1 << 20)
		if gc.phase == phaseCallFinalizers {
			gc.callFinalizers(1 << 20)
		}
	}
}

// emergencyCollect implements §4.1/§7's out-of-memory path: run one
// complete collection regardless of pacing, then let reallocate retry.
func (gc *gcState) emergencyCollect() {
	gc.runFullMajor()
}
