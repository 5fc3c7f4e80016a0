package lens

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chazu/lenschain/graph"
)

// References is a set of references to check against a lens.
type References struct {
	Types   []graph.Type
	Fields  []graph.Field
	Methods []graph.Method
}

// ReferencesOf returns every class and member defined by app.
func ReferencesOf(app *graph.Application) References {
	var refs References
	for _, c := range app.Classes() {
		refs.Types = append(refs.Types, c.Type)
		refs.Fields = append(refs.Fields, c.Fields...)
		refs.Methods = append(refs.Methods, c.Methods...)
	}
	return refs
}

// VerifyRoundTrip checks that the names l gives to refs lead back to
// them. refs are in the vocabulary of at. A merged reference need not be
// the representative of its group, but the representative must rewrite to
// the same target.
func VerifyRoundTrip(l GraphLens, at CodeLens, refs References) error {
	var errs []error
	for _, t := range refs.Types {
		rt := l.LookupType(t, at)
		if !slices.Contains(l.GetOriginalTypes(rt, at), t) {
			errs = append(errs, fmt.Errorf("type %s -> %s does not map back", t, rt))
		}
	}
	for _, f := range refs.Fields {
		rf := l.LookupField(f, at).Reference()
		orig := l.GetOriginalFieldSignature(rf, at)
		if orig != f && l.LookupField(orig, at).Reference() != rf {
			errs = append(errs, fmt.Errorf("field %s -> %s maps back to %s", f, rf, orig))
		}
	}
	for _, m := range refs.Methods {
		rm := l.GetRenamedMethodSignature(m, at)
		orig := l.GetOriginalMethodSignature(rm, at)
		if orig != m && l.GetRenamedMethodSignature(orig, at) != rm {
			errs = append(errs, fmt.Errorf("method %s -> %s maps back to %s", m, rm, orig))
		}
	}
	return errors.Join(errs...)
}

// VerifyMappingToOriginalProgram checks that every class and member of
// current has an original name defined by original.
func VerifyMappingToOriginalProgram(l GraphLens, current, original *graph.Application) error {
	var errs []error
	for _, c := range current.Classes() {
		for _, orig := range l.GetOriginalTypes(c.Type, NoCodeLens) {
			if original.DefinitionFor(orig) == nil {
				errs = append(errs, fmt.Errorf("class %s: original %s not in program", c.Type, orig))
			}
		}
		for _, f := range c.Fields {
			orig := l.GetOriginalFieldSignature(f, NoCodeLens)
			if def := original.DefinitionFor(orig.Holder); def == nil || !def.HasField(orig) {
				errs = append(errs, fmt.Errorf("field %s: original %s not in program", f, orig))
			}
		}
		for _, m := range c.Methods {
			orig := l.GetOriginalMethodSignature(m, NoCodeLens)
			if def := original.DefinitionFor(orig.Holder); def == nil || !def.HasMethod(orig) {
				errs = append(errs, fmt.Errorf("method %s: original %s not in program", m, orig))
			}
		}
	}
	return errors.Join(errs...)
}

// AssertReferencesNotModified panics with an *InternalError if l rewrites
// any of refs.
func AssertReferencesNotModified(l GraphLens, at CodeLens, refs References) {
	for _, t := range refs.Types {
		Assert(l.LookupType(t, at) == t, "AssertReferencesNotModified", "type %s was rewritten", t)
	}
	for _, f := range refs.Fields {
		Assert(l.LookupField(f, at).Reference() == f, "AssertReferencesNotModified", "field %s was rewritten", f)
	}
	for _, m := range refs.Methods {
		Assert(l.GetRenamedMethodSignature(m, at) == m, "AssertReferencesNotModified", "method %s was renamed", m)
	}
}
