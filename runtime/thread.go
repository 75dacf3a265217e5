package runtime

// Status is a protected-call / coroutine status code (§4.9, §7).
type Status uint8

const (
	StatusOK Status = iota
	StatusYield
	StatusRuntimeError
	StatusSyntaxError
	StatusMemoryError
	StatusErrorInErrorHandler
	StatusFileError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusYield:
		return "yield"
	case StatusRuntimeError:
		return "runtime error"
	case StatusSyntaxError:
		return "syntax error"
	case StatusMemoryError:
		return "memory error"
	case StatusErrorInErrorHandler:
		return "error in error handler"
	case StatusFileError:
		return "file error"
	}
	return "unknown status"
}

// coroState is the coroutine life-cycle state of a Thread (§4.9, §5).
type coroState uint8

const (
	coroSuspended coroState = iota // never started, or yielded and awaiting resume
	coroRunning                    // currently executing (is the one driving the VM)
	coroNormal                    // resumed another thread and is waiting for it
	coroDead                      // body returned or errored past its outermost frame
)

// Thread is a coroutine: spec.md's "thread" Value variant (§3 "Global
// state", §4.9, §5). The main thread and every coroutine created from it
// share one *GlobalState (one heap, one GC, one string table); only one
// Thread executes the VM loop at a time, per §5's single-threaded
// cooperative scheduling model.
type Thread struct {
	gcHeader

	global *GlobalState
	stack  stack

	ciHead *CallInfo // currently executing frame
	ciBase *CallInfo // the thread's bottom frame

	openUpvals *Upvalue

	state    coroState
	resumer  *Thread // who resumed this thread, for coroNormal bookkeeping
	drv      *coroDriver // nil for the main thread; non-nil coroutines run on a goroutine

	allowHook bool
	hookMask  HookMask
	hookFn    HookFunc
	hookCount int
	inHook    bool

	errFuncSlot int // stack index of the installed message handler, or -1

	depth int // nesting depth of call() (bytecode and host callees), for the stack-overflow guard

	vararg varargsHolder // per-frame extra arguments, keyed by CallInfo (vm.go)
}

func (*Thread) Type() Type      { return TypeThread }
func (*Thread) Truthy() bool    { return true }
func (th *Thread) String() string { return "thread" }

const maxCallDepth = 200

// HookMask selects which debug-hook events fire (§4.8 "instruction hook").
type HookMask uint8

const (
	HookCall HookMask = 1 << iota
	HookReturn
	HookLine
	HookCount
)

// HookFunc is invoked at an armed hook point.
type HookFunc func(th *Thread, event HookMask, line int)

// newThread allocates a coroutine sharing g's heap.
func newThread(g *GlobalState) *Thread {
	th := &Thread{global: g, stack: *newStack(64), errFuncSlot: -1}
	g.gc.register(th)
	return th
}

// NewMainThread creates the single root thread of a fresh interpreter state.
func NewMainThread(g *GlobalState) *Thread {
	th := newThread(g)
	th.state = coroRunning
	return th
}

// NewCoroutine creates a new, not-yet-started coroutine thread sharing the
// same GlobalState, wrapping closure as its body (§4.9 `resume`, first call).
func (th *Thread) NewCoroutine(closure *LuaClosure) *Thread {
	co := newThread(th.global)
	co.state = coroSuspended
	co.drv = newCoroDriver(co, closure)
	return co
}

func (th *Thread) Status() Status {
	switch th.state {
	case coroDead:
		return StatusOK
	default:
		return StatusOK
	}
}

func (th *Thread) IsMain() bool { return th.drv == nil }

func (th *Thread) CoroState() string {
	switch th.state {
	case coroSuspended:
		return "suspended"
	case coroRunning:
		return "running"
	case coroNormal:
		return "normal"
	case coroDead:
		return "dead"
	}
	return "unknown"
}

// pushFrame installs a new CallInfo as the current frame.
func (th *Thread) pushFrame(ci *CallInfo) {
	ci.prev = th.ciHead
	if th.ciHead != nil {
		th.ciHead.next = ci
	}
	th.ciHead = ci
	if th.ciBase == nil {
		th.ciBase = ci
	}
}

// popFrame removes and returns the current frame, restoring its parent.
func (th *Thread) popFrame() *CallInfo {
	ci := th.ciHead
	th.ciHead = ci.prev
	if th.ciHead != nil {
		th.ciHead.next = nil
	}
	ci.prev = nil
	return ci
}
