// Package api is the C-style, stack-based embedding surface of §6: a host
// program drives a *State by pushing/popping Values on its attached
// thread's stack, never touching runtime internals directly. It is thin by
// design — every operation here is a direct forward to a runtime method;
// the point of this package is the calling convention, not new logic.
package api

import (
	"github.com/vela-lang/vela/runtime"
)

// State is the embedding handle: one GlobalState plus the thread currently
// being driven (§6 "lua_State"). NewThread returns a second State that
// addresses a new coroutine; the receiver keeps addressing its own thread.
type State struct {
	G  *runtime.GlobalState
	Th *runtime.Thread
}

// NewState implements §6 `lua_newstate`: a fresh interpreter family with one
// main thread.
func NewState(seed uint32) *State {
	g := runtime.NewGlobalState(seed)
	return &State{G: g, Th: g.MainThread()}
}

// Close is a no-op placeholder for §6 `lua_close`: Go's GC reclaims the
// whole GlobalState once the embedder drops its last *State reference, so
// there is no manual teardown step. It does not close pending to-be-closed
// variables or run finalizers.
func (s *State) Close() {}

// NewThread implements §6 `lua_newthread`: create a coroutine sharing s.G,
// returning a State that drives it.
func (s *State) NewThread(closure *runtime.LuaClosure) *State {
	return &State{G: s.G, Th: s.Th.NewCoroutine(closure)}
}

// --- stack shape ---

// GetTop reports the index of the topmost used slot (§6 `lua_gettop`).
func (s *State) GetTop() int { return s.Th.StackTop() }

// SetTop implements §6 `lua_settop`: grow (nil-padding) or truncate.
func (s *State) SetTop(n int) { s.Th.SetStackTop(n) }

// CheckStack ensures n more free slots are available (§6 `lua_checkstack`).
func (s *State) CheckStack(n int) { s.Th.ReserveStack(n) }

// --- push family ---

func (s *State) PushNil()          { s.Th.Push(runtime.Nil) }
func (s *State) PushBoolean(b bool) { s.Th.Push(runtime.Bool(b)) }
func (s *State) PushInteger(i int64) { s.Th.Push(runtime.Int(i)) }
func (s *State) PushNumber(f float64) { s.Th.Push(runtime.Float(f)) }
func (s *State) PushString(str string) { s.Th.Push(s.G.NewString(str)) }
func (s *State) PushValue(idx int)  { s.Th.Push(s.Th.StackAt(idx)) }

// --- type queries / conversions ---

func (s *State) Type(idx int) runtime.Type { return s.Th.StackAt(idx).Type() }
func (s *State) TypeName(t runtime.Type) string { return t.String() }

func (s *State) ToBoolean(idx int) bool { return s.Th.StackAt(idx).Truthy() }

func (s *State) ToInteger(idx int) (int64, bool) {
	switch v := s.Th.StackAt(idx).(type) {
	case runtime.Int:
		return int64(v), true
	case runtime.Float:
		if i := int64(v); runtime.Float(i) == v {
			return i, true
		}
	}
	return 0, false
}

func (s *State) ToNumber(idx int) (float64, bool) {
	switch v := s.Th.StackAt(idx).(type) {
	case runtime.Int:
		return float64(v), true
	case runtime.Float:
		return float64(v), true
	}
	return 0, false
}

func (s *State) ToString(idx int) (string, bool) {
	v := s.Th.StackAt(idx)
	if str, ok := v.(*runtime.StringObj); ok {
		return str.String(), true
	}
	return "", false
}

// --- table access (§6 raw + metamethod-aware family) ---

func (s *State) NewTable() { s.Th.Push(runtime.NewTable(s.G)) }

func (s *State) CreateTable(narr, nhash int) { s.Th.Push(runtime.NewTableSized(s.G, narr, nhash)) }

// GetTable implements the metamethod-aware `t[k]` read: pops the key off
// the top of the stack, pushes the result.
func (s *State) GetTable(idx int) error {
	k := s.Th.Pop()
	t := s.Th.StackAt(idx)
	v, err := s.Th.Index(t, k)
	if err != nil {
		return err
	}
	s.Th.Push(v)
	return nil
}

// SetTable implements the metamethod-aware `t[k]=v` write: pops value then
// key off the top of the stack (value pushed last, per §6 convention).
func (s *State) SetTable(idx int) error {
	v := s.Th.Pop()
	k := s.Th.Pop()
	t := s.Th.StackAt(idx)
	return s.Th.NewIndex(t, k, v)
}

func (s *State) RawGet(idx int, key runtime.Value) runtime.Value {
	t := s.Th.StackAt(idx).(*runtime.Table)
	return t.Get(key)
}

func (s *State) RawSet(idx int, key, val runtime.Value) {
	t := s.Th.StackAt(idx).(*runtime.Table)
	t.Set(key, val)
}

// Next implements §6 `lua_next`: pops a key, pushes the next (key, value)
// pair, reporting whether iteration continues.
func (s *State) Next(idx int) (bool, error) {
	k := s.Th.Pop()
	t := s.Th.StackAt(idx).(*runtime.Table)
	nk, nv, ok := t.Next(k)
	if !ok {
		return false, nil
	}
	s.Th.Push(nk)
	s.Th.Push(nv)
	return true, nil
}

// --- calls ---

// Call implements §6 `lua_call`: nargs arguments and the function below them
// are on the stack; replaced in place by its results.
func (s *State) Call(nargs, nresults int) error {
	args := s.Th.PopN(nargs)
	fn := s.Th.Pop()
	results, err := s.Th.CallPublic(fn, args)
	if err != nil {
		return err
	}
	s.pushResults(results, nresults)
	return nil
}

// PCall implements §6 `lua_pcall`: like Call, but errors are reported
// through the return value instead of propagating.
func (s *State) PCall(nargs, nresults int, handlerIdx int) (ok bool, errVal runtime.Value) {
	args := s.Th.PopN(nargs)
	fn := s.Th.Pop()
	var handler runtime.Value = runtime.Nil
	if handlerIdx != 0 {
		handler = s.Th.StackAt(handlerIdx)
	}
	okCall, results, ev := s.Th.PCall(fn, args, handler)
	if okCall {
		s.pushResults(results, nresults)
		return true, nil
	}
	return false, ev
}

func (s *State) pushResults(results []runtime.Value, want int) {
	if want < 0 {
		for _, v := range results {
			s.Th.Push(v)
		}
		return
	}
	for i := 0; i < want; i++ {
		if i < len(results) {
			s.Th.Push(results[i])
		} else {
			s.Th.Push(runtime.Nil)
		}
	}
}

// --- coroutines ---

func (s *State) Resume(co *State, nargs int) (runtime.Status, int) {
	args := s.Th.PopN(nargs)
	results, status := s.Th.Resume(co.Th, args)
	for _, v := range results {
		co.Th.Push(v)
	}
	return status, len(results)
}

func (s *State) Yield(nresults int) ([]runtime.Value, error) {
	vals := s.Th.PopN(nresults)
	return s.Th.Yield(vals)
}

func (s *State) Status() runtime.Status    { return s.Th.Status() }
func (s *State) IsYieldable() bool         { return !s.Th.IsMain() }

// --- arithmetic / comparison / length / concat ---

func (s *State) Arith(op runtime.ArithOp) error {
	y := s.Th.Pop()
	x := s.Th.Pop()
	v, err := s.Th.ArithBinary(op, x, y)
	if err != nil {
		return err
	}
	s.Th.Push(v)
	return nil
}

func (s *State) Compare(idx1, idx2 int, op string) (bool, error) {
	x, y := s.Th.StackAt(idx1), s.Th.StackAt(idx2)
	switch op {
	case "eq":
		return s.Th.Equals(x, y)
	case "lt":
		return s.Th.Less(x, y)
	case "le":
		return s.Th.LessEq(x, y, false)
	}
	return false, nil
}

func (s *State) Len(idx int) error {
	v, err := s.Th.Len(s.Th.StackAt(idx))
	if err != nil {
		return err
	}
	s.Th.Push(v)
	return nil
}

func (s *State) Concat(n int) error {
	vals := s.Th.PopN(n)
	v, err := s.Th.Concat(vals)
	if err != nil {
		return err
	}
	s.Th.Push(v)
	return nil
}

// --- to-be-closed / warnings / panic ---

func (s *State) ToClose(idx int) error { return s.Th.MarkToClose(idx) }

func (s *State) SetWarnf(fn runtime.WarnFunc) { s.G.SetWarnf(fn) }
func (s *State) Warning(msg string, cont bool) { s.G.Warn(msg, cont) }
func (s *State) SetPanic(fn runtime.PanicFunc) { s.G.SetPanic(fn) }

// Error raises a runtime error carrying v as the error object (§6
// `lua_error`): it is a panic, caught at the nearest PCall boundary, per
// §7's "errors long-jump to the innermost protected frame".
func (s *State) Error(v runtime.Value) {
	panic(&runtime.RuntimeError{Val: v, Msg: v.String()})
}
