// Package vm implements the bytecode representation and the stack-based
// virtual machine that executes it.
//
// # Architecture Overview
//
//   - Value: a tagged union of number, bool, nil and heap object handles.
//     Strings are the only heap object kind.
//
//   - Chunk: the instruction sequence of a compiled program together with
//     its constant pool and a line table that is index-aligned with the
//     instructions. Instructions carry their operand inline.
//
//   - VM: a fetch-decode-execute loop over a chunk. Instructions are
//     dispatched through a table indexed by opcode. Every operator checks
//     the types of its operands; a mismatch halts the run with a
//     RuntimeError rather than producing a placeholder value.
//
//   - Kernel methods: built-ins such as print, invoked by a small integer id
//     through a fixed table.
//
// Control flow is strictly linear: there are no jumps, so a run ends at the
// first OpReturn or at the first runtime error.
package vm
