package graph

import "fmt"

// InvokeType is the dispatch kind of an invoke instruction.
type InvokeType uint8

// The zero InvokeType means the kind is unknown, which lenses pass through
// unchanged.
const (
	InvokeDirect InvokeType = iota + 1
	InvokeInterface
	InvokeStatic
	InvokeSuper
	InvokeVirtual
	InvokePolymorphic
)

var invokeTypeNames = [...]string{
	InvokeDirect:      "direct",
	InvokeInterface:   "interface",
	InvokeStatic:      "static",
	InvokeSuper:       "super",
	InvokeVirtual:     "virtual",
	InvokePolymorphic: "polymorphic",
}

func (k InvokeType) String() string {
	if int(k) < len(invokeTypeNames) && invokeTypeNames[k] != "" {
		return invokeTypeNames[k]
	}
	return "unknown"
}

// ParseInvokeType parses the lower-case name returned by String.
func ParseInvokeType(s string) (InvokeType, error) {
	for k, name := range invokeTypeNames {
		if name != "" && name == s {
			return InvokeType(k), nil
		}
	}
	return 0, fmt.Errorf("graph: unknown invoke type %q", s)
}
