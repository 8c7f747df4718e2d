package vm

import "fmt"

// Opcode identifies an instruction. The set is closed: the compiler only
// emits these and the interpreter rejects anything else.
type Opcode uint8

const (
	OpReturn       Opcode = iota // stop execution
	OpConstant                   // push constant: Operand = pool index
	OpNegate                     // numeric negation of TOS
	OpNot                        // logical not of TOS (bool or nil)
	OpAdd                        // pop two, push sum or concatenation
	OpSubtract                   // pop two, push difference
	OpMultiply                   // pop two, push product
	OpDivide                     // pop two, push quotient
	OpEqual                      // pop two, push equality
	OpGreater                    // pop two, push left > right
	OpLess                       // pop two, push left < right
	OpKernelCall                 // invoke kernel method: Operand = KernelMethod id
	OpPop                        // discard TOS
	OpDefineGlobal               // pop and bind global: Operand = name index
	OpGetGlobal                  // push global: Operand = name index

	opcodeCount
)

// OperandKind describes what an instruction's operand refers to.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandConstant
	OperandName
	OperandKernel
)

// OpcodeInfo holds metadata about an opcode for disassembly and validation.
type OpcodeInfo struct {
	Name      string
	Operand   OperandKind
	StackPop  int
	StackPush int
}

var opcodeInfoTable = [opcodeCount]OpcodeInfo{
	OpReturn:       {"RETURN", OperandNone, 0, 0},
	OpConstant:     {"CONSTANT", OperandConstant, 0, 1},
	OpNegate:       {"NEGATE", OperandNone, 1, 1},
	OpNot:          {"NOT", OperandNone, 1, 1},
	OpAdd:          {"ADD", OperandNone, 2, 1},
	OpSubtract:     {"SUBTRACT", OperandNone, 2, 1},
	OpMultiply:     {"MULTIPLY", OperandNone, 2, 1},
	OpDivide:       {"DIVIDE", OperandNone, 2, 1},
	OpEqual:        {"EQUAL", OperandNone, 2, 1},
	OpGreater:      {"GREATER", OperandNone, 2, 1},
	OpLess:         {"LESS", OperandNone, 2, 1},
	OpKernelCall:   {"KERNEL_CALL", OperandKernel, 1, 0},
	OpPop:          {"POP", OperandNone, 1, 0},
	OpDefineGlobal: {"DEFINE_GLOBAL", OperandName, 1, 0},
	OpGetGlobal:    {"GET_GLOBAL", OperandName, 0, 1},
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	return op < opcodeCount
}

// Info returns the metadata for op. Unknown opcodes get a placeholder name.
func (op Opcode) Info() OpcodeInfo {
	if !op.Valid() {
		return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
	}
	return opcodeInfoTable[op]
}

func (op Opcode) String() string {
	return op.Info().Name
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, opcodeCount)
	for op := Opcode(0); op < opcodeCount; op++ {
		ops = append(ops, op)
	}
	return ops
}

// Instruction is one decoded instruction. Operands travel inline with the
// opcode; there is no separate operand stream.
type Instruction struct {
	Op      Opcode
	Operand int
}

// Simple builds an operand-less instruction.
func Simple(op Opcode) Instruction {
	return Instruction{Op: op}
}

func (i Instruction) String() string {
	if i.Op.Info().Operand == OperandNone {
		return i.Op.String()
	}
	return fmt.Sprintf("%s %d", i.Op, i.Operand)
}
