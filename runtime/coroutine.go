package runtime

import (
	"fmt"

	"github.com/PuerkitoBio/gocoro"
)

// coroDriver backs one coroutine Thread's suspend/resume with a goroutine
// and a pair of handoff channels, the same idiom the teacher uses
// github.com/PuerkitoBio/gocoro for when it drives `for-range` iterators
// (funcvm.go's OP_RNGP: `coro.Resume()`, checked against
// `gocoro.ErrEndOfCoro`). A full user-level coroutine needs to suspend from
// arbitrary depth inside the VM's Go call stack, not just at one C-call
// boundary, so the handoff here is hand-rolled on top of plain channels.
// gocoro's sentinel error is recognized in Resume: a body that ends with
// gocoro.ErrEndOfCoro is reported as a normal end (StatusOK). Resuming an
// already-dead coroutine returns StatusRuntimeError without touching the
// driver.
type coroDriver struct {
	resumeCh chan []Value
	yieldCh  chan yieldMsg
	started  bool
}

type yieldMsg struct {
	values []Value
	err    error
	done   bool // true once the body returned (err may still be set)
}

func newCoroDriver(th *Thread, closure *LuaClosure) *coroDriver {
	d := &coroDriver{
		resumeCh: make(chan []Value),
		yieldCh:  make(chan yieldMsg),
	}
	d.launch(th, closure)
	return d
}

func (d *coroDriver) launch(th *Thread, closure *LuaClosure) {
	go func() {
		args := <-d.resumeCh
		results, err := th.callClosure(closure, args)
		d.yieldCh <- yieldMsg{values: results, err: err, done: true}
	}()
}

// yield suspends the running coroutine, handing values to its resumer, and
// blocks until the next resume.
func (d *coroDriver) yield(values []Value) []Value {
	d.yieldCh <- yieldMsg{values: values}
	return <-d.resumeCh
}

// resume hands args to a suspended coroutine and blocks for its next
// yield/return/error.
func (d *coroDriver) resume(args []Value) (results []Value, done bool, err error) {
	if !d.started {
		d.started = true
	}
	d.resumeCh <- args
	msg := <-d.yieldCh
	return msg.values, msg.done, msg.err
}

// Resume drives co from its current suspension point (§4.9 `resume`). It
// implements spec.md's three outcomes: normal return, yield, or error.
func (th *Thread) Resume(co *Thread, args []Value) ([]Value, Status) {
	if co.state == coroDead {
		return nil, StatusRuntimeError
	}
	if co.state != coroSuspended {
		return []Value{stringError(th, "cannot resume non-suspended coroutine")}, StatusRuntimeError
	}

	co.resumer = th
	th.state = coroNormal
	co.state = coroRunning

	results, done, err := co.drv.resume(args)

	co.resumer = nil
	th.state = coroRunning

	if err != nil {
		co.state = coroDead
		if err == gocoro.ErrEndOfCoro {
			return nil, StatusOK
		}
		return []Value{errorToValue(th, err)}, StatusRuntimeError
	}
	if done {
		co.state = coroDead
		return results, StatusOK
	}
	co.state = coroSuspended
	return results, StatusYield
}

// Yield suspends th (which must be a non-main coroutine currently driving
// its own driver goroutine) and returns the values passed to the next
// Resume (§4.9 "Yield contract").
func (th *Thread) Yield(values []Value) ([]Value, error) {
	if th.IsMain() {
		return nil, fmt.Errorf("attempt to yield from outside a coroutine")
	}
	return th.drv.yield(values), nil
}

func stringError(th *Thread, msg string) Value {
	return th.global.strtab.newString(msg)
}

func errorToValue(th *Thread, err error) Value {
	if v, ok := err.(valueError); ok {
		return v.val
	}
	return th.global.strtab.newString(err.Error())
}

// valueError wraps an arbitrary Value as a Go error, so `error(obj)` can
// carry a non-string error object through panic/recover to the nearest
// protected-call boundary (§7 "Propagation").
type valueError struct{ val Value }

func (e valueError) Error() string { return e.val.String() }
