package runtime

import (
	"github.com/vela-lang/vela/bytecode"
)

// execFrame is the live register window for one executing bytecode
// CallInfo: R[i] is th.stack.slots[ci.base+i].v. Keeping this as a thin
// accessor (rather than a Go slice aliasing the stack) means a stack grow
// mid-call never invalidates it, per stack.go's design note.
type execFrame struct {
	th *Thread
	ci *CallInfo
}

func (f execFrame) r(i int32) Value     { return f.th.stack.get(f.ci.base + int(i)) }
func (f execFrame) setr(i int32, v Value) { f.th.stack.set(f.ci.base+int(i), v) }
func (f execFrame) k(i int32) Value      { return fromConst(f.th.global, f.ci.proto.Constants[i]) }

func fromConst(g *GlobalState, c bytecode.Const) Value {
	switch c.Kind {
	case bytecode.ConstNil:
		return Nil
	case bytecode.ConstFalse:
		return Bool(false)
	case bytecode.ConstTrue:
		return Bool(true)
	case bytecode.ConstInt:
		return Int(c.I)
	case bytecode.ConstFloat:
		return Float(c.F)
	case bytecode.ConstString:
		return g.strtab.newString(c.S)
	}
	return Nil
}

// rk reads operand idx as a constant when isK, else as a register.
func (f execFrame) rk(idx int32, isK bool) Value {
	if isK {
		return f.k(idx)
	}
	return f.r(idx)
}

// varargsHolder stashes a frame's extra (beyond NumParams) arguments; looked up
// by the VARARG opcode. Kept on the Thread rather than CallInfo.extra (an
// int) since it is a slice.
type varargsHolder struct {
	byCI map[*CallInfo][]Value
}

func (th *Thread) varargsFor(ci *CallInfo) []Value {
	if th.vararg.byCI == nil {
		return nil
	}
	return th.vararg.byCI[ci]
}

func (th *Thread) setVarargs(ci *CallInfo, vs []Value) {
	if th.vararg.byCI == nil {
		th.vararg.byCI = make(map[*CallInfo][]Value)
	}
	th.vararg.byCI[ci] = vs
}

func (th *Thread) clearVarargs(ci *CallInfo) {
	if th.vararg.byCI != nil {
		delete(th.vararg.byCI, ci)
	}
}

// run executes th's current frame (ci) from its saved program counter until
// it returns, yields, or errors. This is the register-VM dispatch loop of
// §4.8: each instruction operates directly on the stack window [base,top);
// calls, GC allocation, and metamethod dispatch are all suspension points.
func (th *Thread) run(ci *CallInfo) ([]Value, error) {
	f := execFrame{th: th, ci: ci}
	proto := ci.proto
	code := proto.Code

	for {
		if ci.savedPC >= len(code) {
			return nil, &RuntimeError{Msg: "fell off the end of bytecode"}
		}
		instr := code[ci.savedPC]
		op, a, b, c, k := instr.Op(), instr.A(), instr.B(), instr.C(), instr.K()
		ci.savedPC++

		switch op {
		case bytecode.OpMove:
			f.setr(a, f.r(b))

		case bytecode.OpLoadI:
			f.setr(a, Int(instr.SBx()))
		case bytecode.OpLoadF:
			f.setr(a, Float(instr.SBx()))
		case bytecode.OpLoadK:
			f.setr(a, f.k(int32(instr.Bx())))
		case bytecode.OpLoadKX:
			f.setr(a, f.k(int32(instr.Bx())))
		case bytecode.OpLoadFalse:
			f.setr(a, Bool(false))
		case bytecode.OpLFalseSkip:
			f.setr(a, Bool(false))
			ci.savedPC++
		case bytecode.OpLoadTrue:
			f.setr(a, Bool(true))
		case bytecode.OpLoadNil:
			for i := a; i <= a+b; i++ {
				f.setr(i, Nil)
			}

		case bytecode.OpGetUpval:
			f.setr(a, ci.closure.Upvals[b].Get())
		case bytecode.OpSetUpval:
			v := f.r(a)
			ci.closure.Upvals[b].Set(v)
			th.global.gc.forwardBarrier(ci.closure, v)

		case bytecode.OpGetTabUp:
			v, err := th.Index(ci.closure.Upvals[b].Get(), f.k(c))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)
		case bytecode.OpSetTabUp:
			if err := th.NewIndex(ci.closure.Upvals[a].Get(), f.k(b), f.rk(c, k)); err != nil {
				return nil, err
			}
		case bytecode.OpGetTable:
			v, err := th.Index(f.r(b), f.r(c))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)
		case bytecode.OpSetTable:
			if err := th.NewIndex(f.r(a), f.r(b), f.rk(c, k)); err != nil {
				return nil, err
			}
		case bytecode.OpGetI:
			v, err := th.Index(f.r(b), Int(c))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)
		case bytecode.OpSetI:
			if err := th.NewIndex(f.r(a), Int(b), f.rk(c, k)); err != nil {
				return nil, err
			}
		case bytecode.OpGetField:
			v, err := th.Index(f.r(b), f.k(c))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)
		case bytecode.OpSetField:
			if err := th.NewIndex(f.r(a), f.k(b), f.rk(c, k)); err != nil {
				return nil, err
			}
		case bytecode.OpSelf:
			obj := f.r(b)
			f.setr(a+1, obj)
			v, err := th.Index(obj, f.k(c))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpMod,
			bytecode.OpPow, bytecode.OpDiv, bytecode.OpIDiv,
			bytecode.OpBAnd, bytecode.OpBOr, bytecode.OpBXor, bytecode.OpShl, bytecode.OpShr:
			v, err := th.ArithBinary(arithOpOf(op), f.r(b), f.r(c))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)

		case bytecode.OpAddI, bytecode.OpShlI, bytecode.OpShrI:
			v, err := th.ArithBinary(arithOpOf(op), f.r(b), Int(c))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)

		case bytecode.OpAddK, bytecode.OpSubK, bytecode.OpMulK, bytecode.OpModK,
			bytecode.OpPowK, bytecode.OpDivK, bytecode.OpIDivK,
			bytecode.OpBAndK, bytecode.OpBOrK, bytecode.OpBXorK:
			v, err := th.ArithBinary(arithOpOf(op), f.r(b), f.k(c))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)

		case bytecode.OpMMBin, bytecode.OpMMBinI, bytecode.OpMMBinK:
			// Metamethod-fallback trailer for a preceding raw-arithmetic op.
			// This simplified interpreter resolves the metamethod fallback
			// inline inside the arithmetic opcodes above instead of as a
			// separate trailing instruction, so these execute as no-ops; the
			// case exists so a well-formed instruction stream containing them
			// never reaches the default "unimplemented opcode" error.

		case bytecode.OpUnm, bytecode.OpBNot:
			v, err := th.ArithUnary(arithOpOf(op), f.r(b))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)
		case bytecode.OpNot:
			f.setr(a, Bool(!f.r(b).Truthy()))
		case bytecode.OpLen:
			v, err := th.Len(f.r(b))
			if err != nil {
				return nil, err
			}
			f.setr(a, v)

		case bytecode.OpConcat:
			n := int(b)
			vals := make([]Value, n)
			for i := 0; i < n; i++ {
				vals[i] = f.r(a + int32(i))
			}
			v, err := th.Concat(vals)
			if err != nil {
				return nil, err
			}
			f.setr(a, v)

		case bytecode.OpJmp:
			ci.savedPC += int(instr.SJ())

		case bytecode.OpEq:
			eq, err := th.Equals(f.r(a), f.r(b))
			if err != nil {
				return nil, err
			}
			th.skipIfMismatch(ci, eq, k)
		case bytecode.OpEqK:
			eq, err := th.Equals(f.r(a), f.k(b))
			if err != nil {
				return nil, err
			}
			th.skipIfMismatch(ci, eq, k)
		case bytecode.OpEqI:
			eq, err := th.Equals(f.r(a), Int(instr.SBx()))
			if err != nil {
				return nil, err
			}
			th.skipIfMismatch(ci, eq, k)
		case bytecode.OpLt:
			lt, err := th.Less(f.r(a), f.r(b))
			if err != nil {
				return nil, err
			}
			th.skipIfMismatch(ci, lt, k)
		case bytecode.OpLe:
			le, err := th.LessEq(f.r(a), f.r(b), ci.status&CistLeq != 0)
			if err != nil {
				return nil, err
			}
			th.skipIfMismatch(ci, le, k)
		case bytecode.OpLtI:
			lt, err := th.Less(f.r(a), Int(b))
			if err != nil {
				return nil, err
			}
			th.skipIfMismatch(ci, lt, k)
		case bytecode.OpLeI:
			le, err := th.LessEq(f.r(a), Int(b), false)
			if err != nil {
				return nil, err
			}
			th.skipIfMismatch(ci, le, k)
		case bytecode.OpGtI:
			lt, err := th.Less(Int(b), f.r(a))
			if err != nil {
				return nil, err
			}
			th.skipIfMismatch(ci, lt, k)
		case bytecode.OpGeI:
			le, err := th.LessEq(Int(b), f.r(a), false)
			if err != nil {
				return nil, err
			}
			th.skipIfMismatch(ci, le, k)
		case bytecode.OpTest:
			th.skipIfMismatch(ci, f.r(a).Truthy(), k)
		case bytecode.OpTestSet:
			if f.r(b).Truthy() == k {
				f.setr(a, f.r(b))
			} else {
				ci.savedPC++
			}

		case bytecode.OpCall:
			nargs := int(b) - 1
			if b == 0 {
				nargs = th.stack.sp - (ci.base + int(a) + 1)
			}
			args := make([]Value, nargs)
			for i := 0; i < nargs; i++ {
				args[i] = f.r(a + 1 + int32(i))
			}
			results, err := th.call(f.r(a), args)
			if err != nil {
				return nil, err
			}
			th.placeResults(ci, a, c, results)

		case bytecode.OpTailCall:
			nargs := int(b) - 1
			if b == 0 {
				nargs = th.stack.sp - (ci.base + int(a) + 1)
			}
			args := make([]Value, nargs)
			for i := 0; i < nargs; i++ {
				args[i] = f.r(a + 1 + int32(i))
			}
			return th.call(f.r(a), args)

		case bytecode.OpReturn:
			n := int(b) - 1
			if b == 0 {
				n = th.stack.sp - (ci.base + int(a))
			}
			out := make([]Value, n)
			for i := 0; i < n; i++ {
				out[i] = f.r(a + int32(i))
			}
			th.clearVarargs(ci)
			return out, nil
		case bytecode.OpReturn0:
			th.clearVarargs(ci)
			return nil, nil
		case bytecode.OpReturn1:
			th.clearVarargs(ci)
			return []Value{f.r(a)}, nil

		case bytecode.OpForPrep:
			if done := th.forPrep(f, a); done {
				ci.savedPC += int(instr.Bx()) + 1
			}
		case bytecode.OpForLoop:
			if cont := th.forLoop(f, a); cont {
				ci.savedPC -= int(instr.Bx())
			}

		case bytecode.OpTForPrep:
			// no-op setup in this simplified model; TFORCALL drives everything
		case bytecode.OpTForCall:
			iter, state, ctrl := f.r(a), f.r(a+1), f.r(a+2)
			results, err := th.call(iter, []Value{state, ctrl})
			if err != nil {
				return nil, err
			}
			for i := int32(0); i < c; i++ {
				if int(i) < len(results) {
					f.setr(a+4+i, results[i])
				} else {
					f.setr(a+4+i, Nil)
				}
			}
		case bytecode.OpTForLoop:
			if !IsNil(f.r(a + 4)) {
				f.setr(a+2, f.r(a+4))
				ci.savedPC -= int(instr.Bx())
			}

		case bytecode.OpNewTable:
			f.setr(a, NewTableSized(th.global, int(b), int(c)))
		case bytecode.OpSetList:
			tbl := f.r(a).(*Table)
			n := int(b)
			if b == 0 {
				n = th.stack.sp - (ci.base + int(a) + 1)
			}
			for i := 0; i < n; i++ {
				tbl.Set(Int(int(c)+i+1), f.r(a+1+int32(i)))
			}

		case bytecode.OpClosure:
			proto2 := proto.Protos[instr.Bx()]
			cl := NewLuaClosure(th.global, proto2, ci, ci.closure.Upvals, th.findOrCreateUpvalue)
			f.setr(a, cl)

		case bytecode.OpVararg:
			va := th.varargsFor(ci)
			n := int(b) - 1
			if b == 0 {
				n = len(va)
			}
			for i := 0; i < n; i++ {
				if i < len(va) {
					f.setr(a+int32(i), va[i])
				} else {
					f.setr(a+int32(i), Nil)
				}
			}
		case bytecode.OpVarargPrep:
			// Fixed params already placed at call time in this design; nothing
			// further to adjust.

		case bytecode.OpClose:
			th.closeAt(ci.base + int(a))
		case bytecode.OpTBC:
			if err := th.newTBC(ci.base + int(a)); err != nil {
				return nil, err
			}

		default:
			return nil, &RuntimeError{Msg: "unimplemented opcode " + op.String()}
		}
	}
}

func (th *Thread) skipIfMismatch(ci *CallInfo, cond, k bool) {
	if cond != k {
		ci.savedPC++
	}
}

// placeResults writes a CALL's results into R[a..] per the requested count c
// (c==0 means "as many as returned"; leftovers are nil-padded/truncated).
func (th *Thread) placeResults(ci *CallInfo, a, c int32, results []Value) {
	f := execFrame{th: th, ci: ci}
	want := int(c) - 1
	if c == 0 {
		want = len(results)
	}
	for i := 0; i < want; i++ {
		if i < len(results) {
			f.setr(a+int32(i), results[i])
		} else {
			f.setr(a+int32(i), Nil)
		}
	}
}

func arithOpOf(op bytecode.OpCode) ArithOp {
	switch op {
	case bytecode.OpAdd, bytecode.OpAddI, bytecode.OpAddK:
		return OpAdd
	case bytecode.OpSub, bytecode.OpSubK:
		return OpSub
	case bytecode.OpMul, bytecode.OpMulK:
		return OpMul
	case bytecode.OpMod, bytecode.OpModK:
		return OpMod
	case bytecode.OpPow, bytecode.OpPowK:
		return OpPow
	case bytecode.OpDiv, bytecode.OpDivK:
		return OpDiv
	case bytecode.OpIDiv, bytecode.OpIDivK:
		return OpIDiv
	case bytecode.OpBAnd, bytecode.OpBAndK:
		return OpBAnd
	case bytecode.OpBOr, bytecode.OpBOrK:
		return OpBOr
	case bytecode.OpBXor, bytecode.OpBXorK:
		return OpBXor
	case bytecode.OpShl, bytecode.OpShlI:
		return OpShl
	case bytecode.OpShr, bytecode.OpShrI:
		return OpShr
	case bytecode.OpUnm:
		return OpUnm
	case bytecode.OpBNot:
		return OpBNot
	}
	return OpAdd
}

// forPrep implements numeric-for setup (§4.8 FORPREP): R[A]=init, R[A+1]=
// limit, R[A+2]=step are already in place; it reports whether the loop body
// should be skipped entirely (non-positive trip count).
func (th *Thread) forPrep(f execFrame, a int32) bool {
	init, limit, step := f.r(a), f.r(a+1), f.r(a+2)
	ii, iok := init.(Int)
	si, sok := step.(Int)
	if iok && sok {
		li, lok := toIntForLimit(limit, si > 0)
		if !lok {
			return true
		}
		if si == 0 {
			return true
		}
		if (si > 0 && ii > li) || (si < 0 && ii < li) {
			return true
		}
		f.setr(a+3, ii)
		return false
	}
	initF, limitF, stepF := toFloat(init), toFloat(limit), toFloat(stepOrOne(step))
	if stepF == 0 {
		return true
	}
	if (stepF > 0 && initF > limitF) || (stepF < 0 && initF < limitF) {
		return true
	}
	f.setr(a, Float(initF))
	f.setr(a+1, Float(limitF))
	f.setr(a+2, Float(stepF))
	f.setr(a+3, Float(initF))
	return false
}

func stepOrOne(v Value) Value {
	if IsNil(v) {
		return Int(1)
	}
	return v
}

// toIntForLimit floors/ceils a float limit to an integer bound, matching
// original_source's forlimit (virtualMachine.c): a fractional limit is
// rounded toward making the loop run one fewer time in the direction the
// step would overshoot it.
func toIntForLimit(limit Value, ascending bool) (Int, bool) {
	switch l := limit.(type) {
	case Int:
		return l, true
	case Float:
		f := float64(l)
		i := int64(f)
		if ascending && float64(i) > f {
			i-- // floor
		} else if !ascending && float64(i) < f {
			i++ // ceil
		}
		return Int(i), true
	}
	return 0, false
}

// forLoop advances the numeric for loop, reporting whether to branch back
// into the body (§4.8 FORLOOP). MIN_INT boundary behavior (§8) is handled by
// checking the post-increment comparison before the add, so init=MIN_INT,
// step=-1, limit=MIN_INT executes exactly once without wrapping past MIN_INT.
func (th *Thread) forLoop(f execFrame, a int32) bool {
	if iv, ok := f.r(a).(Int); ok {
		step := f.r(a + 2).(Int)
		limit := f.r(a + 1).(Int)
		if step > 0 {
			if iv >= limit {
				return false
			}
		} else {
			if iv <= limit {
				return false
			}
		}
		next := iv + step
		f.setr(a, next)
		f.setr(a+3, next)
		return true
	}
	fv := float64(f.r(a).(Float))
	step := float64(f.r(a + 2).(Float))
	limit := float64(f.r(a + 1).(Float))
	next := fv + step
	if step > 0 {
		if next > limit {
			return false
		}
	} else if next < limit {
		return false
	}
	f.setr(a, Float(next))
	f.setr(a+3, Float(next))
	return true
}
