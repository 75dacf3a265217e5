package bytecode

// Instruction is a 32-bit fixed-width word, laid out the way the teacher's
// renamed-Lua original lays its instructions out (see original_source's
// code.h/opcodes.h, confirmed by the field widths virtualMachine.c decodes):
//
//	bit:  0            7      15  16          24          32
//	      | OP (7 bits) | A (8) |k1| B (8 bits) | C (8 bits) |
//
// Bx replaces k+B+C as one 17-bit unsigned immediate (iABx format).
// sBx is Bx biased by half its range, for signed immediates.
// Ax replaces A+k+B+C as one 25-bit unsigned immediate (iAx format).
// sJ is the same 25-bit field, biased, used only by JMP.
type Instruction uint32

const (
	sizeOp = 7
	sizeA  = 8
	sizeB  = 8
	sizeC  = 8
	sizeK  = 1

	sizeBx = sizeK + sizeB + sizeC // 17
	sizeAx = sizeA + sizeK + sizeB + sizeC // 25
	sizeSJ = sizeAx

	posOp = 0
	posA  = posOp + sizeOp
	posK  = posA + sizeA
	posB  = posK + sizeK
	posC  = posB + sizeB
	posBx = posK
	posAx = posA
	posSJ = posA
)

const (
	maxArgA  = 1<<sizeA - 1
	maxArgB  = 1<<sizeB - 1
	maxArgC  = 1<<sizeC - 1
	MaxArgBx = 1<<sizeBx - 1
	offsetSBx = MaxArgBx >> 1
	MaxArgAx  = 1<<sizeAx - 1
	offsetSJ  = MaxArgAx >> 1
)

func mask1(n, p uint) uint32 { return ^(^uint32(0) << n) << p }

// Create builds an iABC-format instruction.
func Create(op OpCode, a, b, c int32, k bool) Instruction {
	var kb uint32
	if k {
		kb = 1
	}
	return Instruction(uint32(op)<<posOp |
		uint32(a)<<posA |
		kb<<posK |
		uint32(b)<<posB |
		uint32(c)<<posC)
}

// CreateABx builds an iABx-format instruction (unsigned wide immediate).
func CreateABx(op OpCode, a int32, bx uint32) Instruction {
	return Instruction(uint32(op)<<posOp | uint32(a)<<posA | (bx << posBx))
}

// CreateAsBx builds an iAsBx-format instruction (signed wide immediate).
func CreateAsBx(op OpCode, a int32, sbx int32) Instruction {
	return CreateABx(op, a, uint32(sbx+offsetSBx))
}

// CreateAx builds an iAx-format instruction (25-bit unsigned immediate, A only).
func CreateAx(op OpCode, ax uint32) Instruction {
	return Instruction(uint32(op)<<posOp | (ax << posAx))
}

// CreateSJ builds an isJ-format instruction (25-bit signed jump offset).
func CreateSJ(op OpCode, sj int32) Instruction {
	return Instruction(uint32(op)<<posOp | (uint32(sj+offsetSJ) << posSJ))
}

func (i Instruction) Op() OpCode { return OpCode((uint32(i) >> posOp) & mask1(sizeOp, 0)) }
func (i Instruction) A() int32   { return int32((uint32(i) >> posA) & maxArgA) }
func (i Instruction) K() bool    { return (uint32(i)>>posK)&1 != 0 }
func (i Instruction) B() int32   { return int32((uint32(i) >> posB) & maxArgB) }
func (i Instruction) C() int32   { return int32((uint32(i) >> posC) & maxArgC) }

func (i Instruction) Bx() uint32 { return (uint32(i) >> posBx) & MaxArgBx }
func (i Instruction) SBx() int32 { return int32(i.Bx()) - offsetSBx }
func (i Instruction) Ax() uint32 { return (uint32(i) >> posAx) & MaxArgAx }
func (i Instruction) SJ() int32  { return int32((uint32(i)>>posSJ)&MaxArgAx) - offsetSJ }

func (i Instruction) String() string {
	op := i.Op()
	switch ModeOf(op) {
	case ModeABx, ModeAsBx:
		return op.String()
	case ModeAx:
		return op.String()
	case ModeSJ:
		return op.String()
	default:
		return op.String()
	}
}
