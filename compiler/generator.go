// generator.go contains the code for emitting GNU-assembler text from a
// fixed-up abstract-assembly function (spec §4.8).

package compiler

import (
	"fmt"
	"strings"

	"github.com/skx/cc/instructions"
)

// reg32 maps a logical register to its 32-bit AT&T name.
var reg32 = map[instructions.Register]string{
	instructions.AX:  "%eax",
	instructions.CX:  "%ecx",
	instructions.DX:  "%edx",
	instructions.R10: "%r10d",
	instructions.R11: "%r11d",
}

// reg8 maps a logical register to its 8-bit AT&T name, used for SetCC
// destinations and the CL shift-count operand.
var reg8 = map[instructions.Register]string{
	instructions.AX:  "%al",
	instructions.CX:  "%cl",
	instructions.DX:  "%dl",
	instructions.R10: "%r10b",
	instructions.R11: "%r11b",
	instructions.CL:  "%cl",
}

// condSuffix maps a condition code to the suffix used by both Jcc and
// SETcc mnemonics.
var condSuffix = map[instructions.CondCode]string{
	instructions.E:  "e",
	instructions.NE: "ne",
	instructions.L:  "l",
	instructions.LE: "le",
	instructions.G:  "g",
	instructions.GE: "ge",
}

// operand renders op in AT&T syntax. eightBit selects the byte-sized
// register form; it has no effect on Imm or Stack operands.
func operand(op instructions.Operand, eightBit bool) string {
	switch n := op.(type) {
	case *instructions.Imm:
		return fmt.Sprintf("$%d", n.Value)
	case *instructions.Reg:
		if eightBit {
			return reg8[n.Name]
		}
		return reg32[n.Name]
	case *instructions.Stack:
		return fmt.Sprintf("%d(%%rbp)", n.Offset)
	default:
		panic(fmt.Sprintf("generator: unresolved operand %T reached emission", op))
	}
}

// Emit walks program's single function and produces complete GNU-AS
// text for it: a `.global` directive, the function's prologue, its
// instructions, and the GNU-stack trailer (spec §4.8).
func Emit(program *instructions.Program, debug bool) string {
	fn := program.Function

	header := fmt.Sprintf(".global %s\n%s:\n", fn.Name, fn.Name)
	header += "        pushq %rbp\n"
	header += "        movq %rsp, %rbp\n"

	if debug {
		header += "        # Debug-break\n"
		header += "        int3\n"
	}

	body := ""
	for _, instr := range fn.Instructions {
		body += genInstruction(instr)
	}

	footer := "\n" + `.section .note.GNU-stack,"",@progbits` + "\n"

	return header + body + footer
}

// genInstruction dispatches on a single abstract-assembly instruction.
func genInstruction(instr instructions.Instruction) string {
	switch n := instr.(type) {
	case *instructions.AllocateStack:
		return genAllocateStack(n)
	case *instructions.Mov:
		return genMov(n)
	case *instructions.Unary:
		return genUnary(n)
	case *instructions.Binary:
		return genBinary(n)
	case *instructions.Cmp:
		return genCmp(n)
	case *instructions.Idiv:
		return genIdiv(n)
	case *instructions.Cdq:
		return genCdq()
	case *instructions.Jmp:
		return genJmp(n)
	case *instructions.JmpCC:
		return genJmpCC(n)
	case *instructions.SetCC:
		return genSetCC(n)
	case *instructions.Label:
		return genLabel(n)
	case *instructions.Ret:
		return genRet()
	default:
		panic(fmt.Sprintf("generator: unhandled instruction %T", instr))
	}
}

// genAllocateStack reserves local-variable space in the function
// prologue. A zero-sized frame needs no instruction at all, only a note
// that there is nothing to reserve.
func genAllocateStack(n *instructions.AllocateStack) string {
	if n.Size == 0 {
		return "        # no locals: no stack space reserved\n"
	}
	return fmt.Sprintf("        subq $%d, %%rsp\n", n.Size)
}

// genMov generates a 32-bit move.
func genMov(n *instructions.Mov) string {
	return fmt.Sprintf("        movl %s, %s\n", operand(n.Src, false), operand(n.Dst, false))
}

// genUnary generates an in-place unary operator: negation or bitwise
// complement.
func genUnary(n *instructions.Unary) string {
	mnemonic := "negl"
	if n.Op == instructions.Not {
		mnemonic = "notl"
	}
	return fmt.Sprintf("        %s %s\n", mnemonic, operand(n.Dst, false))
}

// genBinary generates an in-place binary operator. Shl/Shr render a
// register count in its 8-bit form (%cl after fixup); an immediate count
// is emitted as is.
func genBinary(n *instructions.Binary) string {
	var mnemonic string
	eightBitSrc := false

	switch n.Op {
	case instructions.Add:
		mnemonic = "addl"
	case instructions.Sub:
		mnemonic = "subl"
	case instructions.Mult:
		mnemonic = "imull"
	case instructions.BitAnd:
		mnemonic = "andl"
	case instructions.BitOr:
		mnemonic = "orl"
	case instructions.Xor:
		mnemonic = "xorl"
	case instructions.Shl:
		mnemonic = "sall"
		eightBitSrc = true
	case instructions.Shr:
		mnemonic = "sarl"
		eightBitSrc = true
	default:
		panic(fmt.Sprintf("generator: unhandled binary operator %v", n.Op))
	}

	return fmt.Sprintf("        %s %s, %s\n", mnemonic, operand(n.Src, eightBitSrc), operand(n.Dst, false))
}

// genCmp generates a comparison, setting flags from Src1 - Src2 (AT&T
// `cmp src, dst` computes dst - src, so Src2 is the rendered source and
// Src1 the rendered destination).
func genCmp(n *instructions.Cmp) string {
	return fmt.Sprintf("        cmpl %s, %s\n", operand(n.Src2, false), operand(n.Src1, false))
}

// genIdiv generates a signed division; the dividend is already in
// %edx:%eax by the time this runs.
func genIdiv(n *instructions.Idiv) string {
	return fmt.Sprintf("        idivl %s\n", operand(n.Operand, false))
}

// genCdq sign-extends %eax into %edx:%eax ahead of a division.
func genCdq() string {
	return "        cdq\n"
}

func genJmp(n *instructions.Jmp) string {
	return fmt.Sprintf("        jmp %s\n", sanitizeLabel(n.Target))
}

func genJmpCC(n *instructions.JmpCC) string {
	return fmt.Sprintf("        j%s %s\n", condSuffix[n.Cond], sanitizeLabel(n.Target))
}

func genSetCC(n *instructions.SetCC) string {
	return fmt.Sprintf("        set%s %s\n", condSuffix[n.Cond], operand(n.Dst, true))
}

func genLabel(n *instructions.Label) string {
	return fmt.Sprintf("%s:\n", sanitizeLabel(n.Name))
}

// genRet restores the caller's frame and returns to it.
func genRet() string {
	return "        movq %rbp, %rsp\n        popq %rbp\n        ret\n"
}

// sanitizeLabel rewrites the `.`-separated unique names TACKY mints
// (e.g. "if_end.3") into valid GNU-assembler label syntax, which does
// not allow a bare '.' inside a local label the way it allows '_'.
func sanitizeLabel(name string) string {
	return strings.Replace(name, ".", "_", -1)
}
