package asm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vela-lang/vela/bytecode"
)

const sumProgram = `
.source test-chunk
.linedef 0
.lastlinedef 0
.params 0
.maxstack 6
.code
LOADI 0 0
LOADI 1 1
LOADI 2 5
LOADI 3 1
FORPREP 1 1
ADD 0 0 4
FORLOOP 1 2
RETURN1 0 0 0
.endcode
`

func TestAssembleNumericForLoop(t *testing.T) {
	proto, err := Assemble(strings.NewReader(sumProgram))
	require.NoError(t, err)

	require.Equal(t, "test-chunk", proto.Source)
	require.EqualValues(t, 6, proto.MaxStack)
	require.Len(t, proto.Code, 8)

	require.Equal(t, bytecode.OpLoadI, proto.Code[0].Op())
	require.EqualValues(t, 0, proto.Code[0].A())
	require.EqualValues(t, 0, proto.Code[0].SBx())

	require.Equal(t, bytecode.OpForPrep, proto.Code[4].Op())
	require.EqualValues(t, 1, proto.Code[4].A())

	require.Equal(t, bytecode.OpAdd, proto.Code[5].Op())
	require.EqualValues(t, 0, proto.Code[5].A())
	require.EqualValues(t, 0, proto.Code[5].B())
	require.EqualValues(t, 4, proto.Code[5].C())

	require.Equal(t, bytecode.OpReturn1, proto.Code[7].Op())
}

func TestAssembleConstantsAndStrings(t *testing.T) {
	src := `
.source consts
.maxstack 2
.const string hello world
.const int 42
.const float 3.5
.code
RETURN0
.endcode
`
	proto, err := Assemble(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, proto.Constants, 3)
	require.Equal(t, bytecode.ConstString, proto.Constants[0].Kind)
	require.Equal(t, "hello world", proto.Constants[0].S)
	require.Equal(t, bytecode.ConstInt, proto.Constants[1].Kind)
	require.EqualValues(t, 42, proto.Constants[1].I)
	require.Equal(t, bytecode.ConstFloat, proto.Constants[2].Kind)
	require.InDelta(t, 3.5, proto.Constants[2].F, 0.0001)
}

func TestAssembleUnknownDirectiveFails(t *testing.T) {
	_, err := Assemble(strings.NewReader(".bogus\n"))
	require.Error(t, err)
}
