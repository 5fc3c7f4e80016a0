// Package lens implements the lens chain: an append-only list of rewrite
// deltas, one per optimization pass, composed on demand into type, field
// and method lookups.
//
// The chain starts at the Identity lens. Every pass that renames, moves or
// merges program members builds a new lens on top of the current head;
// existing lenses are never modified. A lookup walks down the chain to a
// checkpoint (the CodeLens, the point up to which instruction operands have
// already been rewritten) and then applies each lens's delta on the way
// back up.
//
// All lookups are pure and safe for concurrent use.
package lens

import "github.com/chazu/lenschain/graph"

// CodeLens is the checkpoint of a lookup. NoCodeLens means every lens down
// to Identity applies; AppliedAt(l) means lenses at or below l are already
// reflected in the input and are skipped.
type CodeLens struct {
	lens GraphLens
}

// NoCodeLens applies the whole chain.
var NoCodeLens = CodeLens{}

// AppliedAt returns the checkpoint at l. A nil lens is NoCodeLens.
func AppliedAt(l GraphLens) CodeLens {
	return CodeLens{lens: l}
}

// Lens returns the checkpoint lens, if any.
func (c CodeLens) Lens() (GraphLens, bool) {
	return c.lens, c.lens != nil
}

// IsNone reports whether c is NoCodeLens.
func (c CodeLens) IsNone() bool { return c.lens == nil }

func (c CodeLens) stopsAt(l GraphLens) bool {
	return c.lens != nil && c.lens == l
}

func (c CodeLens) String() string {
	if c.lens == nil {
		return "none"
	}
	return c.lens.String()
}

// GraphLens is implemented by every lens in the chain.
type GraphLens interface {
	// LookupType rewrites t. Primitive, void and null types are returned
	// unchanged; array types are rewritten through their base type.
	LookupType(t graph.Type, at CodeLens) graph.Type
	// LookupClassType rewrites a class type.
	LookupClassType(t graph.Type, at CodeLens) graph.Type
	LookupField(f graph.Field, at CodeLens) FieldLookupResult
	// LookupMethod rewrites a method reference occurring in context, which
	// is the enclosing method in the vocabulary of this lens. The zero
	// context is only allowed when IsContextFreeForMethods(at) holds.
	LookupMethod(m graph.Method, context graph.Method, kind graph.InvokeType, at CodeLens) MethodLookupResult
	LookupPrototypeChangesForMethodDefinition(m graph.Method, at CodeLens) *PrototypeChanges

	GetOriginalType(t graph.Type, at CodeLens) graph.Type
	GetOriginalTypes(t graph.Type, at CodeLens) []graph.Type
	GetOriginalFieldSignature(f graph.Field, at CodeLens) graph.Field
	GetOriginalMethodSignature(m graph.Method, at CodeLens) graph.Method
	GetRenamedFieldSignature(f graph.Field, at CodeLens) graph.Field
	GetRenamedMethodSignature(m graph.Method, at CodeLens) graph.Method

	IsContextFreeForMethods(at CodeLens) bool
	HasCodeRewritings() bool
	IsIdentity() bool
	IsApplied() bool
	IsClearCodeRewriting() bool
	// Previous returns the predecessor, nil for Identity.
	Previous() GraphLens
	String() string
}

// LookupFieldReference returns the rewritten reference of f.
func LookupFieldReference(l GraphLens, f graph.Field, at CodeLens) graph.Field {
	return l.LookupField(f, at).Reference()
}

// LookupMethodReference returns the rewritten reference of m. It is only
// valid on lenses that are context-free relative to at.
func LookupMethodReference(l GraphLens, m graph.Method, at CodeLens) graph.Method {
	return l.LookupMethod(m, graph.Method{}, 0, at).Reference()
}

// Find returns the first lens from l downwards satisfying pred, or nil.
func Find(l GraphLens, pred func(GraphLens) bool) GraphLens {
	for cur := l; cur != nil; cur = cur.Previous() {
		if pred(cur) {
			return cur
		}
	}
	return nil
}

// Depth returns the number of lenses a code lookup from l visits before
// reaching at.
func Depth(l GraphLens, at CodeLens) int {
	n, ok := l.(NonIdentityLens)
	if !ok {
		return 0
	}
	return len(n.chain().codePath(at))
}

// WithCodeRewritingsApplied returns a lens answering code lookups as
// identity on top of l, or l itself when it has no code rewritings.
func WithCodeRewritingsApplied(l GraphLens) GraphLens {
	if !l.HasCodeRewritings() {
		return l
	}
	return NewClearCodeRewritingGraphLens(l)
}
