// Package asm is a line-oriented text assembler for bytecode.Prototype
// values, used only by runtime/api tests to build VM input without a real
// compiler front end (which is out of scope, per SPEC_FULL.md's Non-goals).
// It is modeled on the teacher's compiler/asm.go: a bufio.Scanner driven by
// a map of section names to handler closures, each handler consuming lines
// until it recognizes the next section header.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vela-lang/vela/bytecode"
)

// Assemble parses the line-oriented format below into a *bytecode.Prototype:
//
//	.source <name>
//	.linedef <n>
//	.lastlinedef <n>
//	.params <n>
//	.vararg
//	.maxstack <n>
//	.const int <n> | float <n> | string <text> | bool <0|1> | nil
//	.upval <name> <instack 0|1> <index>
//	.proto
//	  <nested prototype, terminated by .endproto>
//	.endproto
//	.code
//	OPNAME a b c        (iABC, k defaults to 0; append 'k' as a 4th token to set it)
//	OPNAME a bx         (iABx/iAsBx, chosen by the opcode's declared mode)
//	OPNAME ax           (iAx)
//	OPNAME sj           (iSJ)
//	.endcode
func Assemble(r io.Reader) (*bytecode.Prototype, error) {
	s := bufio.NewScanner(r)
	return assembleOne(s)
}

func assembleOne(s *bufio.Scanner) (*bytecode.Prototype, error) {
	p := &bytecode.Prototype{}
	handlers := map[string]func() error{
		".source": func() error {
			if !s.Scan() {
				return fmt.Errorf("asm: missing .source value")
			}
			p.Source = s.Text()
			return nil
		},
		".linedef": func() error { return scanInt(s, &p.LineDef) },
		".lastlinedef": func() error { return scanInt(s, &p.LastLineDef) },
		".params": func() error {
			var n int
			if err := scanInt(s, &n); err != nil {
				return err
			}
			p.NumParams = uint8(n)
			return nil
		},
		".vararg": func() error { p.IsVararg = true; return nil },
		".maxstack": func() error {
			var n int
			if err := scanInt(s, &n); err != nil {
				return err
			}
			p.MaxStack = uint8(n)
			return nil
		},
		".const": func() error {
			if !s.Scan() {
				return fmt.Errorf("asm: missing .const body")
			}
			k, err := parseConst(s.Text())
			if err != nil {
				return err
			}
			p.Constants = append(p.Constants, k)
			return nil
		},
		".upval": func() error {
			if !s.Scan() {
				return fmt.Errorf("asm: missing .upval body")
			}
			parts := strings.Fields(s.Text())
			if len(parts) != 3 {
				return fmt.Errorf("asm: malformed .upval %q", s.Text())
			}
			instack := parts[1] == "1"
			idx, err := strconv.Atoi(parts[2])
			if err != nil {
				return err
			}
			p.Upvals = append(p.Upvals, bytecode.UpvalDesc{Name: parts[0], InStack: instack, Index: uint8(idx)})
			return nil
		},
		".proto": func() error {
			child, err := assembleOne(s)
			if err != nil {
				return err
			}
			p.Protos = append(p.Protos, child)
			return nil
		},
		".code": func() error {
			for s.Scan() {
				line := strings.TrimSpace(s.Text())
				if line == "" {
					continue
				}
				if line == ".endcode" {
					return nil
				}
				instr, err := assembleInstr(line)
				if err != nil {
					return err
				}
				p.Code = append(p.Code, instr)
			}
			return fmt.Errorf("asm: missing .endcode")
		},
	}

	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if line == ".endproto" {
			return p, nil
		}
		h, ok := handlers[line]
		if !ok {
			return nil, fmt.Errorf("asm: unknown directive %q", line)
		}
		if err := h(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func scanInt(s *bufio.Scanner, out *int) error {
	if !s.Scan() {
		return fmt.Errorf("asm: expected integer")
	}
	n, err := strconv.Atoi(strings.TrimSpace(s.Text()))
	if err != nil {
		return err
	}
	*out = n
	return nil
}

func parseConst(line string) (bytecode.Const, error) {
	parts := strings.SplitN(line, " ", 2)
	kind := parts[0]
	body := ""
	if len(parts) > 1 {
		body = parts[1]
	}
	switch kind {
	case "nil":
		return bytecode.KNil(), nil
	case "bool":
		return bytecode.KBool(body == "1"), nil
	case "int":
		i, err := strconv.ParseInt(body, 10, 64)
		return bytecode.KInt(i), err
	case "float":
		f, err := strconv.ParseFloat(body, 64)
		return bytecode.KFloat(f), err
	case "string":
		return bytecode.KString(body), nil
	}
	return bytecode.Const{}, fmt.Errorf("asm: unknown const kind %q", kind)
}

func assembleInstr(line string) (bytecode.Instruction, error) {
	parts := strings.Fields(line)
	op, ok := opcodeByName(parts[0])
	if !ok {
		return 0, fmt.Errorf("asm: unknown opcode %q", parts[0])
	}
	args, err := atoiAll(parts[1:])
	if err != nil {
		return 0, err
	}
	switch bytecode.ModeOf(op) {
	case bytecode.ModeABx:
		return bytecode.CreateABx(op, arg(args, 0), uint32(arg(args, 1))), nil
	case bytecode.ModeAsBx:
		return bytecode.CreateAsBx(op, arg(args, 0), arg(args, 1)), nil
	case bytecode.ModeAx:
		return bytecode.CreateAx(op, uint32(arg(args, 0))), nil
	case bytecode.ModeSJ:
		return bytecode.CreateSJ(op, arg(args, 0)), nil
	default:
		k := len(parts) > 4 && parts[4] == "k"
		return bytecode.Create(op, arg(args, 0), arg(args, 1), arg(args, 2), k), nil
	}
}

func arg(args []int32, i int) int32 {
	if i < len(args) {
		return args[i]
	}
	return 0
}

func atoiAll(parts []string) ([]int32, error) {
	out := make([]int32, 0, len(parts))
	for _, p := range parts {
		if p == "k" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, int32(n))
	}
	return out, nil
}
