package vm

import "fmt"

// ---------------------------------------------------------------------------
// Value: tagged representation of runtime values
// ---------------------------------------------------------------------------

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	// KindEmpty marks a slot that has never held a real value. It is the
	// zero value so freshly allocated stack slots are empty.
	KindEmpty ValueKind = iota
	KindNumber
	KindBool
	KindNil
	KindObject
)

var kindNames = [...]string{
	KindEmpty:  "empty",
	KindNumber: "number",
	KindBool:   "bool",
	KindNil:    "nil",
	KindObject: "object",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

// Value is a runtime value. Values are small and passed by copy; heap
// objects are shared through the obj handle, so copying a Value never
// copies the object it refers to.
type Value struct {
	kind    ValueKind
	number  float64
	boolean bool
	obj     Object
}

// Empty is the sentinel stored in uninitialized stack slots.
var Empty = Value{}

// Nil is the nil value.
var Nil = Value{kind: KindNil}

// NumberValue wraps a float64.
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, number: n}
}

// BoolValue wraps a bool.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, boolean: b}
}

// ObjectValue wraps a heap object handle.
func ObjectValue(o Object) Value {
	if o == nil {
		return Nil
	}
	return Value{kind: KindObject, obj: o}
}

// StringValue allocates a string object and returns a value referring to it.
func StringValue(s string) Value {
	return ObjectValue(NewString(s))
}

// Kind returns the tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsEmpty() bool  { return v.kind == KindEmpty }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsObject() bool { return v.kind == KindObject }

// IsString reports whether the value refers to a string object.
func (v Value) IsString() bool {
	if v.kind != KindObject {
		return false
	}
	_, ok := v.obj.(*String)
	return ok
}

// AsNumber returns the number payload. Only meaningful when IsNumber is true.
func (v Value) AsNumber() float64 { return v.number }

// AsBool returns the bool payload. Only meaningful when IsBool is true.
func (v Value) AsBool() bool { return v.boolean }

// AsObject returns the object handle, or nil for non-object values.
func (v Value) AsObject() Object { return v.obj }

// AsString returns the string contents and true if the value is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindObject {
		return "", false
	}
	s, ok := v.obj.(*String)
	if !ok {
		return "", false
	}
	return s.Contents, true
}

// TypeName returns the user-facing type name used in diagnostics.
func (v Value) TypeName() string {
	if v.kind == KindObject {
		return v.obj.TypeName()
	}
	return v.kind.String()
}

// IsFalsey implements truthiness for logical negation: nil and false are
// falsey. Other kinds do not take part in negation and are rejected by the
// VM before this is consulted.
func (v Value) IsFalsey() bool {
	return v.kind == KindNil || (v.kind == KindBool && !v.boolean)
}

// Equal compares two values. Values of different kinds are never equal and
// comparing never fails; objects compare per variant.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.number == other.number
	case KindBool:
		return v.boolean == other.boolean
	case KindNil:
		return true
	case KindObject:
		return v.obj.Equal(other.obj)
	default:
		return false
	}
}

// String renders the value the way the disassembler and tracer show it.
func (v Value) String() string {
	return FormatValue(v)
}
