package graph

import (
	"fmt"
	"strings"
)

// Member is the constraint satisfied by Field and Method. R is the member
// type itself so that WithHolder can return it.
type Member[R any] interface {
	comparable
	HolderType() Type
	WithHolder(Type) R
	IsZero() bool
	String() string
}

// ---------------------------------------------------------------------------
// Field
// ---------------------------------------------------------------------------

// Field is a field reference: holder, name and field type.
type Field struct {
	Holder Type
	Name   string
	Type   Type
}

// NewField returns a field reference.
func NewField(holder Type, name string, typ Type) Field {
	return Field{Holder: holder, Name: name, Type: typ}
}

// ParseField parses a field in "Lcom/example/A;->name:I" form.
func ParseField(s string) (Field, error) {
	holder, rest, ok := strings.Cut(s, "->")
	if !ok {
		return Field{}, fmt.Errorf("graph: field %q: missing '->'", s)
	}
	name, desc, ok := strings.Cut(rest, ":")
	if !ok || name == "" {
		return Field{}, fmt.Errorf("graph: field %q: missing ':'", s)
	}
	h, err := parseType(holder)
	if err != nil {
		return Field{}, fmt.Errorf("graph: field %q: %w", s, err)
	}
	t, err := parseType(desc)
	if err != nil {
		return Field{}, fmt.Errorf("graph: field %q: %w", s, err)
	}
	return Field{Holder: h, Name: name, Type: t}, nil
}

// HolderType returns the holder.
func (f Field) HolderType() Type { return f.Holder }

// WithHolder returns f moved to holder.
func (f Field) WithHolder(holder Type) Field {
	f.Holder = holder
	return f
}

// WithName returns f renamed.
func (f Field) WithName(name string) Field {
	f.Name = name
	return f
}

// WithType returns f with a new field type.
func (f Field) WithType(t Type) Field {
	f.Type = t
	return f
}

// IsZero reports whether f is the zero Field.
func (f Field) IsZero() bool { return f.Holder.IsZero() && f.Name == "" }

// Compare orders fields by holder, name and type.
func (f Field) Compare(other Field) int {
	if c := f.Holder.Compare(other.Holder); c != 0 {
		return c
	}
	if c := strings.Compare(f.Name, other.Name); c != 0 {
		return c
	}
	return f.Type.Compare(other.Type)
}

// Smali returns the "Lcom/example/A;->name:I" form.
func (f Field) Smali() string {
	return f.Holder.desc + "->" + f.Name + ":" + f.Type.desc
}

// String returns the source form, e.g. "int com.example.A.count".
func (f Field) String() string {
	if f.IsZero() {
		return "<none>"
	}
	return f.Type.String() + " " + f.Holder.String() + "." + f.Name
}

// ---------------------------------------------------------------------------
// Method
// ---------------------------------------------------------------------------

// Method is a method reference: holder, name and prototype. The zero Method
// is used where a method is optional, such as a missing call context.
type Method struct {
	Holder Type
	Name   string
	Proto  Proto
}

// NewMethod returns a method reference.
func NewMethod(holder Type, name string, proto Proto) Method {
	return Method{Holder: holder, Name: name, Proto: proto}
}

// ParseMethod parses a method in "Lcom/example/A;->name(I)V" form.
func ParseMethod(s string) (Method, error) {
	holder, rest, ok := strings.Cut(s, "->")
	if !ok {
		return Method{}, fmt.Errorf("graph: method %q: missing '->'", s)
	}
	open := strings.IndexByte(rest, '(')
	if open <= 0 {
		return Method{}, fmt.Errorf("graph: method %q: missing name or prototype", s)
	}
	h, err := parseType(holder)
	if err != nil {
		return Method{}, fmt.Errorf("graph: method %q: %w", s, err)
	}
	p, err := ParseProto(rest[open:])
	if err != nil {
		return Method{}, fmt.Errorf("graph: method %q: %w", s, err)
	}
	return Method{Holder: h, Name: rest[:open], Proto: p}, nil
}

// MustParseMethod is like ParseMethod but panics on error.
func MustParseMethod(s string) Method {
	m, err := ParseMethod(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MustParseField is like ParseField but panics on error.
func MustParseField(s string) Field {
	f, err := ParseField(s)
	if err != nil {
		panic(err)
	}
	return f
}

// HolderType returns the holder.
func (m Method) HolderType() Type { return m.Holder }

// WithHolder returns m moved to holder.
func (m Method) WithHolder(holder Type) Method {
	m.Holder = holder
	return m
}

// WithName returns m renamed.
func (m Method) WithName(name string) Method {
	m.Name = name
	return m
}

// WithProto returns m with a new prototype.
func (m Method) WithProto(p Proto) Method {
	m.Proto = p
	return m
}

// IsZero reports whether m is the zero Method.
func (m Method) IsZero() bool { return m.Holder.IsZero() && m.Name == "" }

// ReturnType returns the prototype's return type.
func (m Method) ReturnType() Type { return m.Proto.ReturnType() }

// Parameters returns the prototype's parameter types.
func (m Method) Parameters() []Type { return m.Proto.Parameters() }

// Compare orders methods by holder, name and prototype.
func (m Method) Compare(other Method) int {
	if c := m.Holder.Compare(other.Holder); c != 0 {
		return c
	}
	if c := strings.Compare(m.Name, other.Name); c != 0 {
		return c
	}
	return strings.Compare(m.Proto.desc, other.Proto.desc)
}

// Smali returns the "Lcom/example/A;->name(I)V" form.
func (m Method) Smali() string {
	return m.Holder.desc + "->" + m.Name + m.Proto.desc
}

// String returns the source form, e.g. "void com.example.A.run(int)".
func (m Method) String() string {
	if m.IsZero() {
		return "<none>"
	}
	params := m.Proto.Parameters()
	names := make([]string, len(params))
	for i, t := range params {
		names[i] = t.String()
	}
	return m.Proto.ReturnType().String() + " " + m.Holder.String() + "." + m.Name +
		"(" + strings.Join(names, ", ") + ")"
}

// ParseType parses a type descriptor, returning an error instead of
// panicking on malformed input.
func ParseType(descriptor string) (Type, error) {
	return parseType(descriptor)
}

func parseType(descriptor string) (Type, error) {
	if end, ok := scanType(descriptor, 0); !ok || end != len(descriptor) {
		return Type{}, fmt.Errorf("malformed type %q", descriptor)
	}
	return Type{descriptor}, nil
}
