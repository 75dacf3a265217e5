package runtime

import "github.com/vela-lang/vela/bytecode"

// CallStatus bit flags, per §3 "CallInfo".
type CallStatus uint16

const (
	CistFresh CallStatus = 1 << iota // entered fresh this resume, not an extant frame being re-run
	CistTail                         // frame was entered by a tail call, no parent CallInfo remains
	CistHooked                       // a call hook is running for this frame
	CistYieldablePCall                // this frame is a yieldable protected call (has a continuation)
	CistCloseRequired                 // poscall must run to-be-closed finalizers before returning
	CistLeq                           // __le was substituted by `not __lt(b,a)`, per §4.7
	CistC                             // func is a host closure / light function
	CistLua                           // func is a bytecode closure
)

// CallInfo is the doubly-linked call-frame record of §3. func/top are stack
// indices (see stack.go's note on why these are ints, not pointers).
type CallInfo struct {
	prev, next *CallInfo

	funcIdx int // stack slot holding the called function value
	base    int // first register slot (bytecode calls: funcIdx+1)
	top     int // this frame's stack-top limit

	savedPC int // bytecode calls: resume point
	proto   *bytecode.Prototype
	closure *LuaClosure

	cont    HostContinuation // host calls: resumed after a nested yield
	contCtx interface{}

	status CallStatus

	nresults int // results requested by the caller; -1 means "all" (LUA_MULTRET)

	// transient union (§3): vararg-adjust delta, or (when yielding) the
	// saved count of already-produced results.
	extra int
}

// HostContinuation resumes a host call after a yield crossed it (§4.9
// "Continuation"). status carries the status under which the host call is
// being resumed.
type HostContinuation func(th *Thread, ctx interface{}, status Status, results []Value) ([]Value, error)

func (ci *CallInfo) IsLua() bool { return ci.status&CistLua != 0 }
func (ci *CallInfo) IsC() bool   { return ci.status&CistC != 0 }
func (ci *CallInfo) IsTail() bool { return ci.status&CistTail != 0 }
