package runtime

import (
	"fmt"

	"github.com/vela-lang/vela/bytecode"
)

// HostClosure is a Go function value with N captured Value upvalues stored
// inline (§3 "Closure"), the `host closure` variant.
type HostClosure struct {
	gcHeader
	Name   string
	Fn     func(th *Thread, args []Value, upvals []Value) ([]Value, error)
	Upvals []Value
}

func (*HostClosure) Type() Type      { return TypeFunction }
func (*HostClosure) Truthy() bool    { return true }
func (c *HostClosure) String() string { return fmt.Sprintf("function: host %s", c.Name) }

// NewHostClosure wraps fn with captured upvalues, registering it with g's
// collector.
func NewHostClosure(g *GlobalState, name string, fn func(*Thread, []Value, []Value) ([]Value, error), upvals ...Value) *HostClosure {
	c := &HostClosure{Name: name, Fn: fn, Upvals: upvals}
	g.gc.register(c)
	return c
}

// LuaClosure is a bytecode closure: a shared *bytecode.Prototype plus N
// upvalue objects (§3 "Closure", `bytecode closure` variant).
type LuaClosure struct {
	gcHeader
	Proto  *bytecode.Prototype
	Upvals []*Upvalue
}

func (*LuaClosure) Type() Type       { return TypeFunction }
func (*LuaClosure) Truthy() bool     { return true }
func (c *LuaClosure) String() string {
	src := c.Proto.Source
	if src == "" {
		src = "?"
	}
	return fmt.Sprintf("function: %s:%d", src, c.Proto.LineDef)
}

// NewLuaClosure allocates a closure over proto, binding its upvalues from
// the enclosing frame (stack slots) or the enclosing closure's own upvalue
// list, per each UpvalDesc (§3 "Prototype", CLOSURE opcode, §4.8).
func NewLuaClosure(g *GlobalState, proto *bytecode.Prototype, enclosing *CallInfo, enclosingUpvals []*Upvalue, openUpval func(level int) *Upvalue) *LuaClosure {
	c := &LuaClosure{Proto: proto, Upvals: make([]*Upvalue, len(proto.Upvals))}
	for i, d := range proto.Upvals {
		if d.InStack {
			c.Upvals[i] = openUpval(enclosing.base + int(d.Index))
		} else {
			c.Upvals[i] = enclosingUpvals[d.Index]
		}
	}
	g.gc.register(c)
	return c
}

// Userdata is host-owned memory with an optional metatable and N extra user
// values (§3 "Value").
type Userdata struct {
	gcHeader
	Data       interface{}
	metatable  *Table
	uservalues []Value
}

func NewUserdata(g *GlobalState, data interface{}, nuservalues int) *Userdata {
	u := &Userdata{Data: data, uservalues: make([]Value, nuservalues)}
	g.gc.register(u)
	return u
}

func (*Userdata) Type() Type      { return TypeUserdata }
func (*Userdata) Truthy() bool    { return true }
func (u *Userdata) String() string { return fmt.Sprintf("userdata: %p", u) }

func (u *Userdata) Metatable() *Table     { return u.metatable }
func (u *Userdata) SetMetatable(m *Table) { u.metatable = m }

func (u *Userdata) UserValue(i int) Value {
	if i < 0 || i >= len(u.uservalues) {
		return NilOf(NilAbsentKey)
	}
	return u.uservalues[i]
}

func (u *Userdata) SetUserValue(i int, v Value) bool {
	if i < 0 || i >= len(u.uservalues) {
		return false
	}
	u.uservalues[i] = v
	return true
}
