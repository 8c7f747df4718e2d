// Package dist implements the portable bytecode format. A compiled chunk
// is written as a canonical CBOR image together with the SHA-256 hash of
// the source it was compiled from, so the same source always produces the
// same bytes.
package dist

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/chazu/lox/vm"
)

// Magic identifies a bytecode image.
const Magic = "LOXC"

// FormatVersion is bumped whenever the instruction set or the image layout
// changes. Images of another version are rejected rather than reinterpreted.
const FormatVersion uint16 = 1

// SourceHash is the SHA-256 digest of a program's source text.
type SourceHash [32]byte

// HashSource returns the content hash of source.
func HashSource(source string) SourceHash {
	return sha256.Sum256([]byte(source))
}

func (h SourceHash) String() string {
	return hex.EncodeToString(h[:])
}

// ConstKind tags a constant-pool entry in an image.
type ConstKind uint8

const (
	ConstNumber ConstKind = 1
	ConstBool   ConstKind = 2
	ConstNil    ConstKind = 3
	ConstString ConstKind = 4
)

// Constant is the wire form of a constant-pool value.
type Constant struct {
	Kind   ConstKind `cbor:"1,keyasint"`
	Number float64   `cbor:"2,keyasint,omitempty"`
	Bool   bool      `cbor:"3,keyasint,omitempty"`
	String string    `cbor:"4,keyasint,omitempty"`
}

// Instruction is the wire form of one instruction.
type Instruction struct {
	Op      uint8 `cbor:"1,keyasint"`
	Operand int   `cbor:"2,keyasint,omitempty"`
}

// Image is a serialized chunk.
type Image struct {
	Magic      string        `cbor:"1,keyasint"`
	Version    uint16        `cbor:"2,keyasint"`
	SourceHash SourceHash    `cbor:"3,keyasint"`
	Code       []Instruction `cbor:"4,keyasint"`
	Constants  []Constant    `cbor:"5,keyasint"`
	Lines      []int         `cbor:"6,keyasint"`
}

// NewImage captures chunk as an image. Only values that can appear in a
// constant pool are accepted.
func NewImage(chunk *vm.Chunk, hash SourceHash) (*Image, error) {
	img := &Image{
		Magic:      Magic,
		Version:    FormatVersion,
		SourceHash: hash,
		Code:       make([]Instruction, len(chunk.Code)),
		Constants:  make([]Constant, len(chunk.Constants)),
		Lines:      append([]int(nil), chunk.Lines...),
	}

	for i, inst := range chunk.Code {
		img.Code[i] = Instruction{Op: uint8(inst.Op), Operand: inst.Operand}
	}

	for i, v := range chunk.Constants {
		c, err := encodeConstant(v)
		if err != nil {
			return nil, fmt.Errorf("dist: constant %d: %w", i, err)
		}
		img.Constants[i] = c
	}

	return img, nil
}

// Chunk rebuilds the chunk held by the image and checks that it is
// well-formed before handing it to a VM.
func (img *Image) Chunk() (*vm.Chunk, error) {
	chunk := &vm.Chunk{
		Code:      make([]vm.Instruction, len(img.Code)),
		Constants: make([]vm.Value, len(img.Constants)),
		Lines:     append([]int(nil), img.Lines...),
	}

	for i, inst := range img.Code {
		chunk.Code[i] = vm.Instruction{Op: vm.Opcode(inst.Op), Operand: inst.Operand}
	}

	for i, c := range img.Constants {
		v, err := decodeConstant(c)
		if err != nil {
			return nil, fmt.Errorf("dist: constant %d: %w", i, err)
		}
		chunk.Constants[i] = v
	}

	if err := chunk.Validate(); err != nil {
		return nil, fmt.Errorf("dist: invalid chunk: %w", err)
	}
	return chunk, nil
}

func encodeConstant(v vm.Value) (Constant, error) {
	switch v.Kind() {
	case vm.KindNumber:
		return Constant{Kind: ConstNumber, Number: v.AsNumber()}, nil
	case vm.KindBool:
		return Constant{Kind: ConstBool, Bool: v.AsBool()}, nil
	case vm.KindNil:
		return Constant{Kind: ConstNil}, nil
	case vm.KindObject:
		if s, ok := v.AsString(); ok {
			return Constant{Kind: ConstString, String: s}, nil
		}
	}
	return Constant{}, fmt.Errorf("cannot serialize %s value", v.TypeName())
}

func decodeConstant(c Constant) (vm.Value, error) {
	switch c.Kind {
	case ConstNumber:
		return vm.NumberValue(c.Number), nil
	case ConstBool:
		return vm.BoolValue(c.Bool), nil
	case ConstNil:
		return vm.Nil, nil
	case ConstString:
		return vm.StringValue(c.String), nil
	default:
		return vm.Empty, fmt.Errorf("unknown constant kind %d", c.Kind)
	}
}
