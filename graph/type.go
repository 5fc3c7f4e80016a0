// Package graph is the reference model shared by every lens in the chain:
// types, prototypes, field and method references, invocation kinds, and the
// program definitions those references name.
//
// All reference values are immutable and comparable, so they can be used
// directly as map keys and compared with ==.
package graph

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Type
// ---------------------------------------------------------------------------

// Type is a JVM type descriptor such as "I", "V", "Lcom/example/A;" or
// "[[Lcom/example/A;". The zero Type means "no type".
type Type struct {
	desc string
}

// Primitive and special types.
var (
	Boolean   = Type{"Z"}
	Byte      = Type{"B"}
	Char      = Type{"C"}
	Short     = Type{"S"}
	Int       = Type{"I"}
	Long      = Type{"J"}
	Float     = Type{"F"}
	Double    = Type{"D"}
	Void      = Type{"V"}
	NullValue = Type{"N"} // type of the null constant, never a declared type
)

// NewType returns the type for a descriptor. It panics on a malformed
// descriptor; callers build references from trusted class files.
func NewType(descriptor string) Type {
	if end, ok := scanType(descriptor, 0); !ok || end != len(descriptor) {
		panic(fmt.Sprintf("graph.NewType: malformed descriptor %q", descriptor))
	}
	return Type{descriptor}
}

// ClassType returns the class type for a binary name. Both "com/example/A"
// and "com.example.A" are accepted.
func ClassType(binaryName string) Type {
	if binaryName == "" {
		panic("graph.ClassType: empty name")
	}
	return Type{"L" + strings.ReplaceAll(binaryName, ".", "/") + ";"}
}

// ArrayOf returns the array type with the given number of dimensions
// wrapped around t.
func ArrayOf(t Type, dims int) Type {
	if dims < 1 || t.IsZero() || t.IsVoid() {
		panic("graph.ArrayOf: invalid element type or dimensions")
	}
	return Type{strings.Repeat("[", dims) + t.desc}
}

// Descriptor returns the raw descriptor.
func (t Type) Descriptor() string { return t.desc }

// Equal reports whether t and o are the same type.
func (t Type) Equal(o Type) bool { return t.desc == o.desc }

// IsZero reports whether t is the zero Type.
func (t Type) IsZero() bool { return t.desc == "" }

// IsPrimitive reports whether t is one of the eight primitive types.
func (t Type) IsPrimitive() bool {
	return len(t.desc) == 1 && strings.ContainsRune("ZBCSIJFD", rune(t.desc[0]))
}

// IsVoid reports whether t is void.
func (t Type) IsVoid() bool { return t.desc == "V" }

// IsNullValue reports whether t is the type of the null constant.
func (t Type) IsNullValue() bool { return t.desc == "N" }

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return len(t.desc) > 0 && t.desc[0] == '[' }

// IsClass reports whether t is a class or interface type.
func (t Type) IsClass() bool { return len(t.desc) > 0 && t.desc[0] == 'L' }

// IsReference reports whether t is a class or array type.
func (t Type) IsReference() bool { return t.IsClass() || t.IsArray() }

// Dimensions returns the number of array dimensions, 0 for non-arrays.
func (t Type) Dimensions() int {
	n := 0
	for n < len(t.desc) && t.desc[n] == '[' {
		n++
	}
	return n
}

// BaseType returns the innermost element type of an array, or t itself.
func (t Type) BaseType() Type {
	return Type{t.desc[t.Dimensions():]}
}

// ReplaceBaseType returns t with its base type swapped for base, keeping the
// number of dimensions.
func (t Type) ReplaceBaseType(base Type) Type {
	dims := t.Dimensions()
	if dims == 0 {
		return base
	}
	return ArrayOf(base, dims)
}

// MapClassType applies fn to the class type that t names, either directly
// or as the base type of an array. Primitive and void types are returned
// unchanged.
func (t Type) MapClassType(fn func(Type) Type) Type {
	switch {
	case t.IsClass():
		return fn(t)
	case t.IsArray():
		base := t.BaseType()
		if !base.IsClass() {
			return t
		}
		if mapped := fn(base); mapped != base {
			return t.ReplaceBaseType(mapped)
		}
	}
	return t
}

// BinaryName returns the slash-separated name of a class type.
func (t Type) BinaryName() string {
	if !t.IsClass() {
		return ""
	}
	return t.desc[1 : len(t.desc)-1]
}

// Package returns the slash-separated package of a class type.
func (t Type) Package() string {
	name := t.BinaryName()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

// Compare orders types by descriptor.
func (t Type) Compare(other Type) int {
	return strings.Compare(t.desc, other.desc)
}

var primitiveNames = map[byte]string{
	'Z': "boolean", 'B': "byte", 'C': "char", 'S': "short",
	'I': "int", 'J': "long", 'F': "float", 'D': "double",
	'V': "void", 'N': "null",
}

// String returns the Java source name, e.g. "com.example.A[]".
func (t Type) String() string {
	if t.IsZero() {
		return "<none>"
	}
	dims := t.Dimensions()
	base := t.desc[dims:]
	var name string
	if base[0] == 'L' {
		name = strings.ReplaceAll(base[1:len(base)-1], "/", ".")
	} else {
		name = primitiveNames[base[0]]
	}
	return name + strings.Repeat("[]", dims)
}

// scanType reads one type descriptor starting at i and returns the index
// just past it.
func scanType(s string, i int) (int, bool) {
	if i >= len(s) {
		return i, false
	}
	switch s[i] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D', 'V', 'N':
		return i + 1, true
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end <= 1 {
			return i, false
		}
		return i + end + 1, true
	case '[':
		j := i
		for j < len(s) && s[j] == '[' {
			j++
		}
		if j < len(s) && s[j] == 'V' {
			return i, false
		}
		return scanType(s, j)
	}
	return i, false
}
