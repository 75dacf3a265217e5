package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vela-lang/vela/bytecode"
)

func newMainClosure(code []bytecode.Instruction, constants []bytecode.Const, maxStack uint8) *LuaClosure {
	proto := &bytecode.Prototype{
		Source:    "test",
		MaxStack:  maxStack,
		Code:      code,
		Constants: constants,
	}
	return &LuaClosure{Proto: proto}
}

func TestVMArithmeticAndReturn(t *testing.T) {
	// LOADI 0 10 ; LOADI 1 32 ; ADD 2 0 1 ; RETURN1 2
	code := []bytecode.Instruction{
		bytecode.CreateAsBx(bytecode.OpLoadI, 0, 10),
		bytecode.CreateAsBx(bytecode.OpLoadI, 1, 32),
		bytecode.Create(bytecode.OpAdd, 2, 0, 1, false),
		bytecode.Create(bytecode.OpReturn1, 2, 0, 0, false),
	}
	cl := newMainClosure(code, nil, 4)

	g := NewGlobalState(1)
	th := g.MainThread()

	results, err := th.callClosure(cl, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, Int(42), results[0])
}

func TestVMLoadKAndConcat(t *testing.T) {
	consts := []bytecode.Const{
		bytecode.KString("hello "),
		bytecode.KString("world"),
	}
	code := []bytecode.Instruction{
		bytecode.CreateABx(bytecode.OpLoadK, 0, 0),
		bytecode.CreateABx(bytecode.OpLoadK, 1, 1),
		bytecode.Create(bytecode.OpConcat, 0, 2, 0, false),
		bytecode.Create(bytecode.OpReturn1, 0, 0, 0, false),
	}
	cl := newMainClosure(code, consts, 4)

	g := NewGlobalState(1)
	th := g.MainThread()

	results, err := th.callClosure(cl, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	s, ok := results[0].(*StringObj)
	require.True(t, ok)
	require.Equal(t, "hello world", s.String())
}

func TestVMNumericForLoopSum(t *testing.T) {
	// for i=1,5 do sum = sum + i end; return sum
	// R0=sum=0 (LOADI)
	// R1,R2,R3 = 1,5,1 (for-loop triple); R4 = loop var
	// FORPREP jumps past the body if the loop shouldn't run at all.
	code := []bytecode.Instruction{
		bytecode.CreateAsBx(bytecode.OpLoadI, 0, 0), // sum = 0
		bytecode.CreateAsBx(bytecode.OpLoadI, 1, 1), // init
		bytecode.CreateAsBx(bytecode.OpLoadI, 2, 5), // limit
		bytecode.CreateAsBx(bytecode.OpLoadI, 3, 1), // step
		bytecode.CreateABx(bytecode.OpForPrep, 1, 1),
		bytecode.Create(bytecode.OpAdd, 0, 0, 4, false), // sum += i
		bytecode.CreateABx(bytecode.OpForLoop, 1, 2),
		bytecode.Create(bytecode.OpReturn1, 0, 0, 0, false),
	}
	cl := newMainClosure(code, nil, 6)

	g := NewGlobalState(1)
	th := g.MainThread()

	results, err := th.callClosure(cl, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, Int(15), results[0])
}
