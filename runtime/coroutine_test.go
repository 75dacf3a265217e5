package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vela-lang/vela/bytecode"
)

func TestCoroutineYieldAndResumeRoundTrip(t *testing.T) {
	g := NewGlobalState(1)
	main := g.MainThread()

	yielder := LightFunc{
		Name: "yielder",
		Fn: func(th *Thread, args []Value) ([]Value, error) {
			return th.Yield(args)
		},
	}

	proto := &bytecode.Prototype{
		Source:    "coro-body",
		NumParams: 2,
		MaxStack:  4,
		Code: []bytecode.Instruction{
			bytecode.Create(bytecode.OpCall, 0, 2, 2, false),
			bytecode.Create(bytecode.OpReturn1, 0, 0, 0, false),
		},
	}
	body := &LuaClosure{Proto: proto}

	co := main.NewCoroutine(body)

	results, status := main.Resume(co, []Value{yielder, Int(99)})
	require.Equal(t, StatusYield, status)
	require.Len(t, results, 1)
	require.Equal(t, Int(99), results[0])
	require.Equal(t, coroSuspended, co.state)

	results, status = main.Resume(co, []Value{Int(777)})
	require.Equal(t, StatusOK, status)
	require.Len(t, results, 1)
	require.Equal(t, Int(777), results[0])
	require.Equal(t, coroDead, co.state)
}

func TestResumeDeadCoroutineErrors(t *testing.T) {
	g := NewGlobalState(1)
	main := g.MainThread()

	proto := &bytecode.Prototype{
		Source:   "done",
		MaxStack: 1,
		Code: []bytecode.Instruction{
			bytecode.Create(bytecode.OpReturn0, 0, 0, 0, false),
		},
	}
	co := main.NewCoroutine(&LuaClosure{Proto: proto})

	_, status := main.Resume(co, nil)
	require.Equal(t, StatusOK, status)

	_, status = main.Resume(co, nil)
	require.Equal(t, StatusRuntimeError, status)
}
