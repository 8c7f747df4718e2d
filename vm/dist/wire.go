package dist

import (
	"errors"
	"fmt"

	"github.com/chazu/lox/vm"
	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrBadMagic is returned when the data is not a bytecode image.
	ErrBadMagic = errors.New("dist: not a bytecode image")
	// ErrVersion is returned for an image written by an incompatible version.
	ErrVersion = errors.New("dist: unsupported image version")
)

// cborEncMode uses canonical mode so encoding is deterministic.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalImage serializes an Image to CBOR bytes.
func MarshalImage(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalImage deserializes an Image from CBOR bytes and checks its
// header.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("dist: unmarshal image: %w", err)
	}
	if img.Magic != Magic {
		return nil, ErrBadMagic
	}
	if img.Version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersion, img.Version, FormatVersion)
	}
	return &img, nil
}

// EncodeChunk serializes chunk, tagging it with the hash of its source.
func EncodeChunk(chunk *vm.Chunk, hash SourceHash) ([]byte, error) {
	img, err := NewImage(chunk, hash)
	if err != nil {
		return nil, err
	}
	return MarshalImage(img)
}

// DecodeChunk deserializes and validates a chunk. It also returns the
// source hash recorded in the image.
func DecodeChunk(data []byte) (*vm.Chunk, SourceHash, error) {
	img, err := UnmarshalImage(data)
	if err != nil {
		return nil, SourceHash{}, err
	}
	chunk, err := img.Chunk()
	if err != nil {
		return nil, SourceHash{}, err
	}
	return chunk, img.SourceHash, nil
}
