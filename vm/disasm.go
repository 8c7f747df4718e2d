package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatValue renders a value for the disassembler and tracer. Strings are
// single-quoted so they can be told apart from identifiers.
func FormatValue(v Value) string {
	switch v.kind {
	case KindNumber:
		return formatNumber(v.number)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindNil:
		return "nil"
	case KindObject:
		return v.obj.Format()
	default:
		return "EMPTY"
	}
}

// DisplayValue renders a value the way print writes it.
func DisplayValue(v Value) string {
	if v.kind == KindObject {
		return v.obj.Display()
	}
	return FormatValue(v)
}

// formatNumber prints the shortest decimal that round-trips, without an
// exponent: 7, 2.5, 0.1, 1000000000000000000000.
func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// DisassembleInstruction renders one instruction of chunk on a single line.
// Operands that index the constant pool are followed by the value they
// refer to.
func DisassembleInstruction(inst Instruction, c *Chunk) string {
	info := inst.Op.Info()
	switch info.Operand {
	case OperandConstant, OperandName:
		if v, ok := c.Constant(inst.Operand); ok {
			return fmt.Sprintf("%-14s %4d ; %s", info.Name, inst.Operand, FormatValue(v))
		}
		return fmt.Sprintf("%-14s %4d ; <bad index>", info.Name, inst.Operand)
	case OperandKernel:
		if k, ok := kernelMethodFor(inst.Operand); ok {
			return fmt.Sprintf("%-14s %4d ; %s", info.Name, inst.Operand, k)
		}
		return fmt.Sprintf("%-14s %4d ; <bad kernel>", info.Name, inst.Operand)
	default:
		return info.Name
	}
}

// linePrefix returns the line column for the instruction at offset: the
// line number when it differs from the previous instruction's, a bar
// otherwise.
func (c *Chunk) linePrefix(offset int) string {
	line := c.Line(offset)
	if offset > 0 && line == c.Line(offset-1) {
		return "   | "
	}
	return fmt.Sprintf("%04d ", line)
}

// Disassemble returns a human-readable listing of the chunk.
func (c *Chunk) Disassemble(name string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "===== %s =====\n", name)

	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range c.Constants {
			fmt.Fprintf(&sb, ";   [%3d] %s\n", i, FormatValue(v))
		}
	}

	for offset, inst := range c.Code {
		fmt.Fprintf(&sb, "%04d %s%s\n", offset, c.linePrefix(offset), DisassembleInstruction(inst, c))
	}

	return sb.String()
}
