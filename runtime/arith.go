package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ArithOp identifies a binary or unary arithmetic/bitwise operator, shared by
// the Arithmetic interface and the VM's ADD/SUB/... opcode family (§4.8).
type ArithOp uint8

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpMod
	OpPow
	OpDiv
	OpIDiv
	OpBAnd
	OpBOr
	OpBXor
	OpShl
	OpShr
	OpUnm
	OpBNot
)

// Arithmetic performs the raw (non-metamethod) half of §4.7 "Arithmetic and
// comparison try raw operation first". A host embedding may supply its own
// (e.g. to add bignum support); DefaultArithmetic implements the numeric
// tower spec.md §3 describes (integer + float, at least 64-bit).
type Arithmetic interface {
	Binary(op ArithOp, x, y Value) (Value, bool, error)
	Unary(op ArithOp, x Value) (Value, bool, error)
}

// Comparer performs raw ordered/equality comparison (§4.7).
type Comparer interface {
	// Eq reports raw equality (before any __eq fallback).
	Eq(x, y Value) bool
	// Less and LessEq implement < and <=; ok is false when the operands are
	// not rawly comparable (e.g. different non-number, non-string types),
	// signaling the caller to try __lt/__le.
	Less(x, y Value) (result, ok bool)
	LessEq(x, y Value) (result, ok bool)
}

type DefaultArithmetic struct{}

func toNumber(v Value) (Value, bool) {
	switch n := v.(type) {
	case Int, Float:
		return n, true
	case *StringObj:
		return parseNumber(n.s)
	}
	return nil, false
}

// parseNumber implements the numeric-literal grammar §8's round-trip law
// references ("tostring(tonumber(s))"): integers first, then floats,
// trimming surrounding whitespace the way original_source's l_str2d/
// l_str2int (object.c) do.
func parseNumber(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return Int(i), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f), true
	}
	return nil, false
}

func (DefaultArithmetic) Binary(op ArithOp, x, y Value) (Value, bool, error) {
	switch op {
	case OpBAnd, OpBOr, OpBXor, OpShl, OpShr:
		xi, xok := toInt(x)
		yi, yok := toInt(y)
		if !xok || !yok {
			return nil, false, nil
		}
		return bitwise(op, xi, yi), true, nil
	}

	xn, xok := toNumber(x)
	yn, yok := toNumber(y)
	if !xok || !yok {
		return nil, false, nil
	}
	xi, xIsInt := xn.(Int)
	yi, yIsInt := yn.(Int)
	if xIsInt && yIsInt && op != OpDiv && op != OpPow {
		v, err := intBinary(op, int64(xi), int64(yi))
		return v, true, err
	}
	xf, yf := toFloat(xn), toFloat(yn)
	return floatBinary(op, xf, yf), true, nil
}

func toInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case Float:
		if i := int64(n); Float(i) == n {
			return i, true
		}
	case *StringObj:
		if nv, ok := parseNumber(n.s); ok {
			return toInt(nv)
		}
	}
	return 0, false
}

func toFloat(v Value) float64 {
	switch n := v.(type) {
	case Int:
		return float64(n)
	case Float:
		return float64(n)
	}
	return math.NaN()
}

func intBinary(op ArithOp, x, y int64) (Value, error) {
	switch op {
	case OpAdd:
		return Int(x + y), nil
	case OpSub:
		return Int(x - y), nil
	case OpMul:
		return Int(x * y), nil
	case OpMod:
		if y == 0 {
			return nil, &RuntimeError{Msg: "attempt to perform 'n%%0'"}
		}
		r := x % y
		if r != 0 && (r^y) < 0 {
			r += y
		}
		return Int(r), nil
	case OpIDiv:
		if y == 0 {
			return nil, &RuntimeError{Msg: "attempt to perform 'n//0'"}
		}
		q := x / y
		if (x%y != 0) && ((x ^ y) < 0) {
			q--
		}
		return Int(q), nil
	}
	return nil, fmt.Errorf("unreachable int op %d", op)
}

func floatBinary(op ArithOp, x, y float64) Value {
	switch op {
	case OpAdd:
		return Float(x + y)
	case OpSub:
		return Float(x - y)
	case OpMul:
		return Float(x * y)
	case OpDiv:
		return Float(x / y)
	case OpPow:
		return Float(math.Pow(x, y))
	case OpMod:
		r := math.Mod(x, y)
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return Float(r)
	case OpIDiv:
		return Float(math.Floor(x / y))
	}
	return Float(math.NaN())
}

func bitwise(op ArithOp, x, y int64) Value {
	switch op {
	case OpBAnd:
		return Int(x & y)
	case OpBOr:
		return Int(x | y)
	case OpBXor:
		return Int(x ^ y)
	case OpShl:
		return Int(shiftLeft(x, y))
	case OpShr:
		return Int(shiftLeft(x, -y))
	}
	return Int(0)
}

// shiftLeft matches original_source's luaV_shiftl (virtualMachine.c): shifts
// by >=64 (either direction) yield 0, and a negative count shifts the other
// way.
func shiftLeft(x, n int64) int64 {
	if n < 0 {
		if n <= -64 {
			return 0
		}
		return int64(uint64(x) >> uint(-n))
	}
	if n >= 64 {
		return 0
	}
	return int64(uint64(x) << uint(n))
}

func (DefaultArithmetic) Unary(op ArithOp, x Value) (Value, bool, error) {
	switch op {
	case OpUnm:
		switch n := x.(type) {
		case Int:
			return Int(-n), true, nil
		case Float:
			return Float(-n), true, nil
		}
		if nv, ok := toNumber(x); ok {
			return DefaultArithmetic{}.Unary(OpUnm, nv)
		}
		return nil, false, nil
	case OpBNot:
		if i, ok := toInt(x); ok {
			return Int(^i), true, nil
		}
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("unknown unary op %d", op)
}

type DefaultComparer struct{}

func (DefaultComparer) Eq(x, y Value) bool {
	return valuesRawEqual(normalizeKey(x), normalizeKey(y))
}

func (DefaultComparer) Less(x, y Value) (bool, bool) {
	if xs, ok := x.(*StringObj); ok {
		if ys, ok := y.(*StringObj); ok {
			return xs.s < ys.s, true
		}
		return false, false
	}
	xn, xok := numericOnly(x)
	yn, yok := numericOnly(y)
	if !xok || !yok {
		return false, false
	}
	xi, xIsInt := xn.(Int)
	yi, yIsInt := yn.(Int)
	if xIsInt && yIsInt {
		return xi < yi, true
	}
	return toFloat(xn) < toFloat(yn), true
}

func (DefaultComparer) LessEq(x, y Value) (bool, bool) {
	if xs, ok := x.(*StringObj); ok {
		if ys, ok := y.(*StringObj); ok {
			return xs.s <= ys.s, true
		}
		return false, false
	}
	xn, xok := numericOnly(x)
	yn, yok := numericOnly(y)
	if !xok || !yok {
		return false, false
	}
	xi, xIsInt := xn.(Int)
	yi, yIsInt := yn.(Int)
	if xIsInt && yIsInt {
		return xi <= yi, true
	}
	return toFloat(xn) <= toFloat(yn), true
}

// numericOnly is stricter than toNumber: ordered comparison never coerces
// strings (only arithmetic does), matching original_source's LTnum/LEnum.
func numericOnly(v Value) (Value, bool) {
	switch v.(type) {
	case Int, Float:
		return v, true
	}
	return nil, false
}
