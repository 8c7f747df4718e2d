package vm

import "fmt"

// MaxConstants bounds the constant pool of a single chunk.
const MaxConstants = 1 << 16

// Chunk is a compiled unit: instructions, their constant pool, and the
// source line of every instruction. Code and Lines always have the same
// length; Lines[i] is the line that produced Code[i].
//
// A chunk is built once by the compiler and then only read by the VM.
type Chunk struct {
	Code      []Instruction
	Constants []Value
	Lines     []int
}

// NewChunk creates an empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]Instruction, 0, 64),
		Constants: make([]Value, 0, 8),
		Lines:     make([]int, 0, 64),
	}
}

// Write appends an instruction and its source line. Returns the offset of
// the new instruction.
func (c *Chunk) Write(inst Instruction, line int) int {
	c.Code = append(c.Code, inst)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// AddConstant appends a value to the constant pool and returns its index.
// Constants are not deduplicated: each call gets a fresh slot.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Constant returns the constant at idx and whether idx is in range.
func (c *Chunk) Constant(idx int) (Value, bool) {
	if idx < 0 || idx >= len(c.Constants) {
		return Empty, false
	}
	return c.Constants[idx], true
}

// Len returns the number of instructions.
func (c *Chunk) Len() int {
	return len(c.Code)
}

// Line returns the source line of the instruction at offset, or 0 when the
// offset is out of range.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// Validate checks the structural invariants of a chunk that did not come
// straight from the compiler, such as one decoded from a bytecode file.
func (c *Chunk) Validate() error {
	if len(c.Code) != len(c.Lines) {
		return fmt.Errorf("chunk has %d instructions but %d line entries", len(c.Code), len(c.Lines))
	}
	for offset, inst := range c.Code {
		if !inst.Op.Valid() {
			return fmt.Errorf("instruction %04d: unknown opcode %d", offset, inst.Op)
		}
		switch inst.Op.Info().Operand {
		case OperandConstant:
			if _, ok := c.Constant(inst.Operand); !ok {
				return fmt.Errorf("instruction %04d: constant index %d out of range", offset, inst.Operand)
			}
		case OperandName:
			v, ok := c.Constant(inst.Operand)
			if !ok {
				return fmt.Errorf("instruction %04d: name index %d out of range", offset, inst.Operand)
			}
			if !v.IsString() {
				return fmt.Errorf("instruction %04d: name constant %d is a %s", offset, inst.Operand, v.TypeName())
			}
		case OperandKernel:
			if _, ok := kernelMethodFor(inst.Operand); !ok {
				return fmt.Errorf("instruction %04d: unknown kernel method %d", offset, inst.Operand)
			}
		}
	}
	return nil
}
