package runtime

// call implements §4.5 "calling a value": resolve fn to something directly
// callable (a bytecode closure, a host closure, a light C function) or, for
// anything else, chase __call once; then run it to completion. This is the
// single call primitive every metamethod in dispatch.go/meta.go and every
// CALL/TAILCALL opcode in vm.go goes through, so they all share th's stack
// and call-info chain (§4.9's cooperative single-thread-at-a-time model).
func (th *Thread) call(fn Value, args []Value) ([]Value, error) {
	th.depth++
	if th.depth > maxCallDepth {
		th.depth--
		return nil, StackOverflowError{}
	}
	defer func() { th.depth-- }()

	switch v := fn.(type) {
	case *LuaClosure:
		return th.callClosure(v, args)
	case *HostClosure:
		return v.Fn(th, args, v.Upvals)
	case LightFunc:
		return v.Fn(th, args)
	default:
		h := th.global.gettm(fn, mmCall)
		if IsNil(h) {
			return nil, CallError{Got: fn.Type()}
		}
		callArgs := make([]Value, 0, len(args)+1)
		callArgs = append(callArgs, fn)
		callArgs = append(callArgs, args...)
		return th.call(h, callArgs)
	}
}

// callClosure implements §4.5 `precall`/`run`/`poscall` for a bytecode
// closure: push a fresh CallInfo over a register window sized by the
// prototype's MaxStack, place fixed parameters (extra arguments saved aside
// for VARARG if the prototype is vararg), run the dispatch loop, then close
// any to-be-closed variables and upvalues opened at or above the frame
// before returning its results.
func (th *Thread) callClosure(c *LuaClosure, args []Value) ([]Value, error) {
	proto := c.Proto
	funcIdx := th.stack.push(c)
	base := th.stack.sp
	th.stack.checkStack(int(proto.MaxStack))

	nparams := int(proto.NumParams)
	for i := 0; i < nparams; i++ {
		if i < len(args) {
			th.stack.push(args[i])
		} else {
			th.stack.push(Nil)
		}
	}
	for th.stack.sp < base+int(proto.MaxStack) {
		th.stack.push(Nil)
	}

	ci := &CallInfo{
		funcIdx: funcIdx,
		base:    base,
		top:     base + int(proto.MaxStack),
		proto:   proto,
		closure: c,
		status:  CistLua | CistFresh,
	}
	if proto.IsVararg && len(args) > nparams {
		th.setVarargs(ci, append([]Value(nil), args[nparams:]...))
	}

	th.pushFrame(ci)
	results, err := th.run(ci)
	th.popFrame()

	if cerr := th.closeAt(base); cerr != nil {
		results, err = nil, cerr
	}
	th.stack.settop(funcIdx)

	return results, err
}

// closeAt runs the §4.6 "closing a scope" sequence at level: pop and invoke
// __close (LIFO) on every to-be-closed variable at or above level, then
// close every upvalue referencing a slot at or above level. A __close error
// does not stop the remaining finalizers from running (§7 "tbc errors");
// each later error replaces an earlier one, and the last one raised is
// returned. callClosure reports it in place of the frame's own outcome;
// the CLOSE opcode and PCall's unwinding ignore it.
func (th *Thread) closeAt(level int) error {
	var lastErr error
	for {
		idx := th.stack.popTBC(level)
		if idx < 0 {
			break
		}
		v := th.stack.get(idx)
		if IsNil(v) {
			continue
		}
		h := th.global.gettm(v, mmClose)
		if IsNil(h) {
			continue
		}
		if _, err := th.call(h, []Value{v}); err != nil {
			lastErr = err
		}
	}
	th.closeUpvalues(level)
	return lastErr
}

// newTBC implements §4.6 `newtbc`: mark the value already sitting at level
// as to-be-closed. A non-nil value without a __close metamethod is a type
// error (tbc variables are a binding contract, unlike plain locals).
func (th *Thread) newTBC(level int) error {
	v := th.stack.get(level)
	if IsNil(v) {
		return nil
	}
	if IsNil(th.global.gettm(v, mmClose)) {
		return NewTypeError(v.Type(), "close", "value with a '__close' metamethod")
	}
	th.stack.linkTBC(level)
	return nil
}

// PCall implements §4.9 `pcall`/`xpcall`: run fn protected, converting any
// error raised beneath this call (including one surfaced while closing tbc
// variables on the way out) into a (false, err-object) pair instead of
// propagating it further, after running the optional message handler.
func (th *Thread) PCall(fn Value, args []Value, handler Value) (ok bool, results []Value, errVal Value) {
	savedTop := th.stack.sp
	savedCi := th.ciHead

	results, err := func() (res []Value, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicToError(r)
			}
		}()
		return th.call(fn, args)
	}()

	if err == nil {
		return true, results, nil
	}

	th.unwindTo(savedCi, savedTop)

	ev := errorValueOf(th.global, err)
	if !IsNil(handler) {
		hres, herr := th.call(handler, []Value{ev})
		if herr != nil {
			return false, nil, th.global.strtab.newString("error in error handling")
		}
		return false, nil, first(hres)
	}
	return false, nil, ev
}

// unwindTo restores th's call-info chain and stack top after a protected
// call's body panicked or errored partway through, closing any to-be-closed
// variables pushed above savedTop on the way.
func (th *Thread) unwindTo(savedCi *CallInfo, savedTop int) {
	th.closeAt(savedTop)
	th.ciHead = savedCi
	if savedCi != nil {
		savedCi.next = nil
	}
	th.stack.settop(savedTop)
}

func errorValueOf(g *GlobalState, err error) Value {
	switch e := err.(type) {
	case *RuntimeError:
		return e.ErrorValue(g)
	case valueError:
		return e.val
	default:
		return g.strtab.newString(err.Error())
	}
}

func panicToError(r interface{}) error {
	switch e := r.(type) {
	case error:
		return e
	case string:
		return &RuntimeError{Msg: e}
	default:
		return &RuntimeError{Msg: "non-error panic during protected call"}
	}
}
