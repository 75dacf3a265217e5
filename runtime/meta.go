package runtime

// metaEvent enumerates the metamethod names dispatch cares about (§4.7).
// The first six are the "fast" metamethods with a per-table absence cache
// (GLOSSARY "Fast metamethod"); the rest are looked up directly.
type metaEvent int

const (
	mmIndex metaEvent = iota
	mmNewIndex
	mmGC
	mmMode
	mmLen
	mmEq
	mmAdd
	mmSub
	mmMul
	mmMod
	mmPow
	mmDiv
	mmIDiv
	mmBAnd
	mmBOr
	mmBXor
	mmShl
	mmShr
	mmUnm
	mmBNot
	mmLt
	mmLe
	mmConcat
	mmCall
	mmClose
	numMetaEvents
)

var metaEventNames = [numMetaEvents]string{
	mmIndex: "__index", mmNewIndex: "__newindex", mmGC: "__gc", mmMode: "__mode",
	mmLen: "__len", mmEq: "__eq",
	mmAdd: "__add", mmSub: "__sub", mmMul: "__mul", mmMod: "__mod", mmPow: "__pow",
	mmDiv: "__div", mmIDiv: "__idiv",
	mmBAnd: "__band", mmBOr: "__bor", mmBXor: "__bxor", mmShl: "__shl", mmShr: "__shr",
	mmUnm: "__unm", mmBNot: "__bnot",
	mmLt: "__lt", mmLe: "__le", mmConcat: "__concat", mmCall: "__call", mmClose: "__close",
}

// fastBit maps a fast metaEvent to its absence-cache bit (§4.3).
var fastBit = map[metaEvent]uint8{
	mmIndex: tmIndex, mmNewIndex: tmNewIndex, mmGC: tmGC, mmMode: tmMode, mmLen: tmLen, mmEq: tmEq,
}

func (g *GlobalState) internMetaNames() {
	for i, n := range metaEventNames {
		g.metaNames[i] = g.strtab.newString(n)
	}
}

// metatableOf returns v's metatable, if any: the table/userdata's own, or
// the shared per-type metatable (§3 "Global state", §4.7).
func (g *GlobalState) metatableOf(v Value) *Table {
	switch o := v.(type) {
	case *Table:
		return o.metatable
	case *Userdata:
		return o.metatable
	default:
		return g.typeMetatables[v.Type()]
	}
}

// gettm implements §4.7 `gettm(tbl, event)`: check the fast-absence cache
// first (tables only), then look up the interned metamethod name.
func (g *GlobalState) gettm(v Value, ev metaEvent) Value {
	t, isTable := v.(*Table)
	if isTable {
		if bit, fast := fastBit[ev]; fast && t.tmAbsent(bit) {
			return NilOf(NilAbsentKey)
		}
	}
	mt := g.metatableOf(v)
	if mt == nil {
		if isTable {
			if bit, fast := fastBit[ev]; fast {
				t.setTMAbsent(bit)
			}
		}
		return NilOf(NilAbsentKey)
	}
	res := mt.Get(g.metaNames[ev])
	if IsNil(res) && isTable {
		if bit, fast := fastBit[ev]; fast {
			t.setTMAbsent(bit)
		}
	}
	return res
}

const maxIndexChain = 2000

// Index implements the §4.7 `__index` chain: table fast path first, then
// metatable-as-table or metatable-as-function, up to maxIndexChain deep.
// Metamethod calls run on th so they share its stack and call-info chain.
func (th *Thread) Index(v Value, key Value) (Value, error) {
	g := th.global
	cur := v
	for depth := 0; depth < maxIndexChain; depth++ {
		if t, ok := cur.(*Table); ok {
			raw := t.Get(key)
			if !IsNil(raw) {
				return raw, nil
			}
			h := g.gettm(t, mmIndex)
			if IsNil(h) {
				return Nil, nil
			}
			if fn, ok := asCallable(h); ok {
				res, err := th.call(fn, []Value{t, key})
				if err != nil {
					return nil, err
				}
				return first(res), nil
			}
			cur = h
			continue
		}
		h := g.gettm(cur, mmIndex)
		if IsNil(h) {
			return nil, NewTypeError(cur.Type(), "index", "table")
		}
		if fn, ok := asCallable(h); ok {
			res, err := th.call(fn, []Value{cur, key})
			if err != nil {
				return nil, err
			}
			return first(res), nil
		}
		cur = h
	}
	return nil, &RuntimeError{Msg: "'__index' chain too long; possible loop"}
}

// NewIndex implements the symmetric §4.7 `__newindex` chain.
func (th *Thread) NewIndex(v Value, key, val Value) error {
	g := th.global
	cur := v
	for depth := 0; depth < maxIndexChain; depth++ {
		if t, ok := cur.(*Table); ok {
			if !IsNil(t.Get(key)) {
				t.Set(key, val)
				return nil
			}
			h := g.gettm(t, mmNewIndex)
			if IsNil(h) {
				t.Set(key, val)
				return nil
			}
			if fn, ok := asCallable(h); ok {
				_, err := th.call(fn, []Value{t, key, val})
				return err
			}
			cur = h
			continue
		}
		h := g.gettm(cur, mmNewIndex)
		if IsNil(h) {
			return NewTypeError(cur.Type(), "newindex", "table")
		}
		if fn, ok := asCallable(h); ok {
			_, err := th.call(fn, []Value{cur, key, val})
			return err
		}
		cur = h
	}
	return &RuntimeError{Msg: "'__newindex' chain too long; possible loop"}
}

func asCallable(v Value) (Value, bool) {
	switch v.(type) {
	case *LuaClosure, *HostClosure, LightFunc:
		return v, true
	}
	return nil, false
}

func first(vs []Value) Value {
	if len(vs) == 0 {
		return Nil
	}
	return vs[0]
}
