package asm

import "github.com/vela-lang/vela/bytecode"

var byName map[string]bytecode.OpCode

func init() {
	byName = make(map[string]bytecode.OpCode)
	for op := bytecode.OpCode(0); op.String() != "UNKNOWN"; op++ {
		byName[op.String()] = op
	}
}

func opcodeByName(name string) (bytecode.OpCode, bool) {
	op, ok := byName[name]
	return op, ok
}
