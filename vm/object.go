package vm

// ---------------------------------------------------------------------------
// Heap objects
// ---------------------------------------------------------------------------

// Object is a heap-allocated value. Values hold objects by pointer, so every
// copy of a Value shares the same object; the object is reclaimed once the
// last Value referring to it is gone. No object kind can refer to another
// object, so reference cycles cannot form.
//
// New object kinds implement equality and display for themselves.
type Object interface {
	// TypeName is the name used in runtime diagnostics.
	TypeName() string
	// Equal reports whether the receiver equals other. Objects of a
	// different kind are never equal.
	Equal(other Object) bool
	// Display renders the object as print shows it.
	Display() string
	// Format renders the object for the disassembler and tracer.
	Format() string
}

// String is an immutable heap string.
type String struct {
	Contents string
}

// NewString allocates a string object.
func NewString(s string) *String {
	return &String{Contents: s}
}

func (s *String) TypeName() string { return "string" }

func (s *String) Equal(other Object) bool {
	o, ok := other.(*String)
	if !ok {
		return false
	}
	return s == o || s.Contents == o.Contents
}

func (s *String) Display() string { return s.Contents }

func (s *String) Format() string { return "'" + s.Contents + "'" }

// Concat returns a new string holding s followed by other.
func (s *String) Concat(other *String) *String {
	return NewString(s.Contents + other.Contents)
}
