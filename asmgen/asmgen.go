// Package asmgen lowers TACKY into abstract x86-64 assembly, replaces
// pseudo-registers with concrete stack slots, and fixes up the result so
// every instruction obeys x86-64 encoding constraints.
//
// The three passes mirror spec §4.5-§4.7; there is no single originating
// teacher file for this package (the teacher compiler targeted an RPN
// stack machine with no register allocation at all), so the pass
// structure and scratch-register choices are grounded directly on the
// specification's own asm-lowering and fixup tables.
package asmgen

import (
	"fmt"

	"github.com/skx/cc/instructions"
	"github.com/skx/cc/stack"
	"github.com/skx/cc/tacky"
)

// Lower converts a TACKY program into abstract assembly (spec §4.5),
// replaces pseudo-registers with stack slots (§4.6), and fixes up
// encoding violations (§4.7). The result is ready for the generator.
func Lower(program *tacky.Program) (*instructions.Program, error) {
	fn, err := lowerFunction(program.Function)
	if err != nil {
		return nil, err
	}

	frame := stack.New()
	replacePseudos(fn, frame)

	fixup(fn, frame.Size())

	return &instructions.Program{Function: fn}, nil
}

func lowerFunction(fn *tacky.Function) (*instructions.Function, error) {
	out := &instructions.Function{Name: fn.Name}
	for _, instr := range fn.Instructions {
		lowered, err := lowerInstruction(instr)
		if err != nil {
			return nil, err
		}
		out.Instructions = append(out.Instructions, lowered...)
	}
	return out, nil
}

func lowerVal(v tacky.Val) instructions.Operand {
	switch n := v.(type) {
	case *tacky.Constant:
		return &instructions.Imm{Value: n.Value}
	case *tacky.Var:
		return &instructions.Pseudo{Name: n.Name}
	default:
		panic(fmt.Sprintf("asmgen: unhandled tacky value %T", v))
	}
}

func relCondCode(op tacky.BinOp) (instructions.CondCode, bool) {
	switch op {
	case tacky.Eq:
		return instructions.E, true
	case tacky.Ne:
		return instructions.NE, true
	case tacky.Lt:
		return instructions.L, true
	case tacky.Le:
		return instructions.LE, true
	case tacky.Gt:
		return instructions.G, true
	case tacky.Ge:
		return instructions.GE, true
	default:
		return 0, false
	}
}

func convertBinaryOp(op tacky.BinOp) instructions.BinaryOp {
	switch op {
	case tacky.Add:
		return instructions.Add
	case tacky.Sub:
		return instructions.Sub
	case tacky.Mul:
		return instructions.Mult
	case tacky.BitAnd:
		return instructions.BitAnd
	case tacky.BitOr:
		return instructions.BitOr
	case tacky.Xor:
		return instructions.Xor
	case tacky.Shl:
		return instructions.Shl
	case tacky.Shr:
		return instructions.Shr
	default:
		panic(fmt.Sprintf("asmgen: unexpected operator %v in generic binary lowering", op))
	}
}

func lowerInstruction(instr tacky.Instruction) ([]instructions.Instruction, error) {
	switch n := instr.(type) {
	case *tacky.Return:
		v := lowerVal(n.Value)
		return []instructions.Instruction{
			&instructions.Mov{Src: v, Dst: &instructions.Reg{Name: instructions.AX}},
			&instructions.Ret{},
		}, nil

	case *tacky.Unary:
		src := lowerVal(n.Src)
		dst := lowerVal(n.Dst)
		if n.Op == tacky.Not {
			return []instructions.Instruction{
				&instructions.Cmp{Src1: src, Src2: &instructions.Imm{Value: 0}},
				&instructions.Mov{Src: &instructions.Imm{Value: 0}, Dst: dst},
				&instructions.SetCC{Cond: instructions.E, Dst: dst},
			}, nil
		}
		var op instructions.UnaryOp
		switch n.Op {
		case tacky.Complement:
			op = instructions.Not
		case tacky.Negate:
			op = instructions.Neg
		default:
			return nil, fmt.Errorf("asmgen: unhandled unary operator %v", n.Op)
		}
		return []instructions.Instruction{
			&instructions.Mov{Src: src, Dst: dst},
			&instructions.Unary{Op: op, Dst: dst},
		}, nil

	case *tacky.Binary:
		s1 := lowerVal(n.Src1)
		s2 := lowerVal(n.Src2)
		dst := lowerVal(n.Dst)

		switch n.Op {
		case tacky.Div:
			return []instructions.Instruction{
				&instructions.Mov{Src: s1, Dst: &instructions.Reg{Name: instructions.AX}},
				&instructions.Cdq{},
				&instructions.Idiv{Operand: s2},
				&instructions.Mov{Src: &instructions.Reg{Name: instructions.AX}, Dst: dst},
			}, nil

		case tacky.Rem:
			return []instructions.Instruction{
				&instructions.Mov{Src: s1, Dst: &instructions.Reg{Name: instructions.AX}},
				&instructions.Cdq{},
				&instructions.Idiv{Operand: s2},
				&instructions.Mov{Src: &instructions.Reg{Name: instructions.DX}, Dst: dst},
			}, nil
		}

		if cc, ok := relCondCode(n.Op); ok {
			return []instructions.Instruction{
				&instructions.Cmp{Src1: s1, Src2: s2},
				&instructions.Mov{Src: &instructions.Imm{Value: 0}, Dst: dst},
				&instructions.SetCC{Cond: cc, Dst: dst},
			}, nil
		}

		return []instructions.Instruction{
			&instructions.Mov{Src: s1, Dst: dst},
			&instructions.Binary{Op: convertBinaryOp(n.Op), Src: s2, Dst: dst},
		}, nil

	case *tacky.Copy:
		return []instructions.Instruction{
			&instructions.Mov{Src: lowerVal(n.Src), Dst: lowerVal(n.Dst)},
		}, nil

	case *tacky.Jump:
		return []instructions.Instruction{&instructions.Jmp{Target: n.Target}}, nil

	case *tacky.JumpIfZero:
		return []instructions.Instruction{
			&instructions.Cmp{Src1: lowerVal(n.Condition), Src2: &instructions.Imm{Value: 0}},
			&instructions.JmpCC{Cond: instructions.E, Target: n.Target},
		}, nil

	case *tacky.JumpIfNotZero:
		return []instructions.Instruction{
			&instructions.Cmp{Src1: lowerVal(n.Condition), Src2: &instructions.Imm{Value: 0}},
			&instructions.JmpCC{Cond: instructions.NE, Target: n.Target},
		}, nil

	case *tacky.Label:
		return []instructions.Instruction{&instructions.Label{Name: n.Name}}, nil

	default:
		return nil, fmt.Errorf("asmgen: unhandled tacky instruction %T", instr)
	}
}

// replacePseudos rewrites every Pseudo operand in fn to the Stack operand
// the frame allocates for it (spec §4.6), in place.
func replacePseudos(fn *instructions.Function, frame *stack.Frame) {
	resolve := func(op instructions.Operand) instructions.Operand {
		p, ok := op.(*instructions.Pseudo)
		if !ok {
			return op
		}
		return &instructions.Stack{Offset: frame.Offset(p.Name)}
	}

	for i, instr := range fn.Instructions {
		switch n := instr.(type) {
		case *instructions.Mov:
			fn.Instructions[i] = &instructions.Mov{Src: resolve(n.Src), Dst: resolve(n.Dst)}
		case *instructions.Unary:
			fn.Instructions[i] = &instructions.Unary{Op: n.Op, Dst: resolve(n.Dst)}
		case *instructions.Binary:
			fn.Instructions[i] = &instructions.Binary{Op: n.Op, Src: resolve(n.Src), Dst: resolve(n.Dst)}
		case *instructions.Cmp:
			fn.Instructions[i] = &instructions.Cmp{Src1: resolve(n.Src1), Src2: resolve(n.Src2)}
		case *instructions.Idiv:
			fn.Instructions[i] = &instructions.Idiv{Operand: resolve(n.Operand)}
		case *instructions.SetCC:
			fn.Instructions[i] = &instructions.SetCC{Cond: n.Cond, Dst: resolve(n.Dst)}
		}
	}
}

func isStack(op instructions.Operand) bool {
	_, ok := op.(*instructions.Stack)
	return ok
}

func isImm(op instructions.Operand) bool {
	_, ok := op.(*instructions.Imm)
	return ok
}

func reg(r instructions.Register) instructions.Operand {
	return &instructions.Reg{Name: r}
}

// fixup prepends the frame's AllocateStack instruction, then rewrites
// every instruction that would otherwise violate x86-64 encoding rules
// (spec §4.7).
func fixup(fn *instructions.Function, frameSize int) {
	out := make([]instructions.Instruction, 0, len(fn.Instructions)+1)
	out = append(out, &instructions.AllocateStack{Size: frameSize})

	for _, instr := range fn.Instructions {
		out = append(out, fixupInstruction(instr)...)
	}

	fn.Instructions = out
}

func fixupInstruction(instr instructions.Instruction) []instructions.Instruction {
	switch n := instr.(type) {
	case *instructions.Mov:
		if isStack(n.Src) && isStack(n.Dst) {
			return []instructions.Instruction{
				&instructions.Mov{Src: n.Src, Dst: reg(instructions.R10)},
				&instructions.Mov{Src: reg(instructions.R10), Dst: n.Dst},
			}
		}
		return []instructions.Instruction{n}

	case *instructions.Binary:
		switch n.Op {
		case instructions.Add, instructions.Sub, instructions.BitAnd, instructions.BitOr, instructions.Xor:
			if isStack(n.Src) && isStack(n.Dst) {
				return []instructions.Instruction{
					&instructions.Mov{Src: n.Src, Dst: reg(instructions.R10)},
					&instructions.Binary{Op: n.Op, Src: reg(instructions.R10), Dst: n.Dst},
				}
			}
			return []instructions.Instruction{n}

		case instructions.Mult:
			if isStack(n.Dst) {
				return []instructions.Instruction{
					&instructions.Mov{Src: n.Dst, Dst: reg(instructions.R11)},
					&instructions.Binary{Op: instructions.Mult, Src: n.Src, Dst: reg(instructions.R11)},
					&instructions.Mov{Src: reg(instructions.R11), Dst: n.Dst},
				}
			}
			return []instructions.Instruction{n}

		case instructions.Shl, instructions.Shr:
			if isStack(n.Src) {
				return []instructions.Instruction{
					&instructions.Mov{Src: n.Src, Dst: reg(instructions.CX)},
					&instructions.Binary{Op: n.Op, Src: reg(instructions.CL), Dst: n.Dst},
				}
			}
			return []instructions.Instruction{n}

		default:
			return []instructions.Instruction{n}
		}

	case *instructions.Cmp:
		// Src1 is rendered as the AT&T destination, which can be neither
		// an immediate nor (alongside a memory Src2) a second memory operand.
		var out []instructions.Instruction
		src1, src2 := n.Src1, n.Src2
		if isImm(src1) || (isStack(src1) && isStack(src2)) {
			out = append(out, &instructions.Mov{Src: src1, Dst: reg(instructions.R10)})
			src1 = reg(instructions.R10)
		}
		if isImm(src2) {
			out = append(out, &instructions.Mov{Src: src2, Dst: reg(instructions.R11)})
			src2 = reg(instructions.R11)
		}
		return append(out, &instructions.Cmp{Src1: src1, Src2: src2})

	case *instructions.Idiv:
		if isImm(n.Operand) {
			return []instructions.Instruction{
				&instructions.Mov{Src: n.Operand, Dst: reg(instructions.R10)},
				&instructions.Idiv{Operand: reg(instructions.R10)},
			}
		}
		return []instructions.Instruction{n}

	default:
		return []instructions.Instruction{n}
	}
}
