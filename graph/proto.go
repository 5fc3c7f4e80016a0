package graph

import (
	"fmt"
	"strings"
)

// Proto is a method prototype stored as its descriptor, e.g. "(ILjava/lang/String;)V".
type Proto struct {
	desc string
}

// NewProto builds a prototype from a return type and parameter types.
func NewProto(ret Type, params ...Type) Proto {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		if p.IsZero() || p.IsVoid() {
			panic("graph.NewProto: invalid parameter type")
		}
		sb.WriteString(p.desc)
	}
	sb.WriteByte(')')
	sb.WriteString(ret.desc)
	return Proto{sb.String()}
}

// ParseProto parses a prototype descriptor.
func ParseProto(descriptor string) (Proto, error) {
	if len(descriptor) < 3 || descriptor[0] != '(' {
		return Proto{}, fmt.Errorf("graph: malformed prototype %q", descriptor)
	}
	i := 1
	for i < len(descriptor) && descriptor[i] != ')' {
		end, ok := scanType(descriptor, i)
		if !ok || descriptor[i] == 'V' {
			return Proto{}, fmt.Errorf("graph: malformed parameter in prototype %q", descriptor)
		}
		i = end
	}
	if i >= len(descriptor) {
		return Proto{}, fmt.Errorf("graph: unterminated prototype %q", descriptor)
	}
	end, ok := scanType(descriptor, i+1)
	if !ok || end != len(descriptor) {
		return Proto{}, fmt.Errorf("graph: malformed return type in prototype %q", descriptor)
	}
	return Proto{descriptor}, nil
}

// MustParseProto is like ParseProto but panics on error.
func MustParseProto(descriptor string) Proto {
	p, err := ParseProto(descriptor)
	if err != nil {
		panic(err)
	}
	return p
}

// Descriptor returns the raw descriptor.
func (p Proto) Descriptor() string { return p.desc }

// Equal reports whether p and o are the same prototype.
func (p Proto) Equal(o Proto) bool { return p.desc == o.desc }

// IsZero reports whether p is the zero Proto.
func (p Proto) IsZero() bool { return p.desc == "" }

// ReturnType returns the return type.
func (p Proto) ReturnType() Type {
	return Type{p.desc[strings.IndexByte(p.desc, ')')+1:]}
}

// Parameters returns the parameter types in order.
func (p Proto) Parameters() []Type {
	var params []Type
	i := 1
	for p.desc[i] != ')' {
		end, _ := scanType(p.desc, i)
		params = append(params, Type{p.desc[i:end]})
		i = end
	}
	return params
}

// Arity returns the number of declared parameters.
func (p Proto) Arity() int {
	return len(p.Parameters())
}

// MapTypes applies fn to the return type and every parameter type and
// returns the resulting prototype. p is returned unchanged when fn changes
// nothing.
func (p Proto) MapTypes(fn func(Type) Type) Proto {
	params := p.Parameters()
	changed := false
	for i, t := range params {
		if n := fn(t); n != t {
			params[i] = n
			changed = true
		}
	}
	ret := p.ReturnType()
	if n := fn(ret); n != ret {
		ret = n
		changed = true
	}
	if !changed {
		return p
	}
	return NewProto(ret, params...)
}

// String renders the prototype in source form, e.g. "(int, java.lang.String)void".
func (p Proto) String() string {
	if p.IsZero() {
		return "<none>"
	}
	params := p.Parameters()
	names := make([]string, len(params))
	for i, t := range params {
		names[i] = t.String()
	}
	return "(" + strings.Join(names, ", ") + ")" + p.ReturnType().String()
}
