package lens

import (
	"fmt"
	"slices"

	"github.com/chazu/lenschain/collections"
	"github.com/chazu/lenschain/graph"
)

// AppliedGraphLens is a chain flattened into direct maps between original
// and current names of the program's classes and members. Its predecessor
// is Identity, so queries through it take one step however long the chain
// was. It has no code rewritings: code is rewritten up to it before it is
// installed.
type AppliedGraphLens struct {
	Base
	// original -> current
	renamedTypeNames *collections.BidirectionalManyToOneRepresentativeMap[graph.Type, graph.Type]
	// current -> original
	originalFieldSignatures  *collections.BidirectionalOneToOneMap[graph.Field, graph.Field]
	originalMethodSignatures *collections.BidirectionalOneToOneMap[graph.Method, graph.Method]
	// current -> original, for members whose original is already taken
	extraOriginalFieldSignatures  map[graph.Field]graph.Field
	extraOriginalMethodSignatures map[graph.Method]graph.Method
}

// NewAppliedGraphLens flattens l over app, the program in l's vocabulary.
func NewAppliedGraphLens(l GraphLens, app *graph.Application) *AppliedGraphLens {
	a := &AppliedGraphLens{
		renamedTypeNames:              collections.NewBidirectionalManyToOneRepresentativeMap[graph.Type, graph.Type](graph.Type.Compare),
		originalFieldSignatures:       collections.NewBidirectionalOneToOneMap[graph.Field, graph.Field](graph.Field.Compare),
		originalMethodSignatures:      collections.NewBidirectionalOneToOneMap[graph.Method, graph.Method](graph.Method.Compare),
		extraOriginalFieldSignatures:  make(map[graph.Field]graph.Field),
		extraOriginalMethodSignatures: make(map[graph.Method]graph.Method),
	}
	for _, c := range app.Classes() {
		origs := l.GetOriginalTypes(c.Type, NoCodeLens)
		if len(origs) > 1 || origs[0] != c.Type {
			a.renamedTypeNames.PutAll(origs, c.Type)
			if rep := l.GetOriginalType(c.Type, NoCodeLens); slices.Contains(origs, rep) {
				a.renamedTypeNames.SetRepresentative(c.Type, rep)
			}
		}
		fields := slices.Clone(c.Fields)
		slices.SortFunc(fields, graph.Field.Compare)
		for _, f := range fields {
			orig := l.GetOriginalFieldSignature(f, NoCodeLens)
			switch {
			case orig == f:
			case a.originalFieldSignatures.ContainsValue(orig):
				a.extraOriginalFieldSignatures[f] = orig
			default:
				a.originalFieldSignatures.Put(f, orig)
			}
		}
		methods := slices.Clone(c.Methods)
		slices.SortFunc(methods, graph.Method.Compare)
		for _, m := range methods {
			orig := l.GetOriginalMethodSignature(m, NoCodeLens)
			switch {
			case orig == m:
			case a.originalMethodSignatures.ContainsValue(orig):
				a.extraOriginalMethodSignatures[m] = orig
			default:
				a.originalMethodSignatures.Put(m, orig)
			}
		}
	}
	a.renamedTypeNames.Freeze()
	a.originalFieldSignatures.Freeze()
	a.originalMethodSignatures.Freeze()
	a.Init(a, Identity())
	return a
}

func (a *AppliedGraphLens) IsApplied() bool         { return true }
func (a *AppliedGraphLens) HasCodeRewritings() bool { return false }

func (a *AppliedGraphLens) currentType(t graph.Type) graph.Type {
	return t.MapClassType(a.DescribeLookupClassType)
}

func (a *AppliedGraphLens) originalType(t graph.Type) graph.Type {
	return t.MapClassType(a.PreviousType)
}

func (a *AppliedGraphLens) DescribeLookupClassType(t graph.Type) graph.Type {
	return a.renamedTypeNames.GetOrDefault(t, t)
}

func (a *AppliedGraphLens) PreviousType(t graph.Type) graph.Type {
	return a.renamedTypeNames.GetRepresentativeKeyOrDefault(t, t)
}

func (a *AppliedGraphLens) PreviousTypes(t graph.Type) []graph.Type {
	if keys := a.renamedTypeNames.GetKeys(t); len(keys) > 0 {
		return keys
	}
	return []graph.Type{t}
}

func (a *AppliedGraphLens) PreviousFieldSignature(f graph.Field) graph.Field {
	if orig, ok := a.extraOriginalFieldSignatures[f]; ok {
		return orig
	}
	if orig, ok := a.originalFieldSignatures.Get(f); ok {
		return orig
	}
	return fixupField(f, a.originalType)
}

func (a *AppliedGraphLens) NextFieldSignature(f graph.Field) graph.Field {
	if cur, ok := a.originalFieldSignatures.GetKey(f); ok {
		return cur
	}
	return fixupField(f, a.currentType)
}

func (a *AppliedGraphLens) PreviousMethodSignature(m graph.Method) graph.Method {
	if orig, ok := a.extraOriginalMethodSignatures[m]; ok {
		return orig
	}
	if orig, ok := a.originalMethodSignatures.Get(m); ok {
		return orig
	}
	return fixupMethod(m, a.originalType)
}

func (a *AppliedGraphLens) NextMethodSignature(m graph.Method) graph.Method {
	if cur, ok := a.originalMethodSignatures.GetKey(m); ok {
		return cur
	}
	return fixupMethod(m, a.currentType)
}

func (a *AppliedGraphLens) DescribeLookupField(prev FieldLookupResult) FieldLookupResult {
	prev.reference = a.NextFieldSignature(prev.reference)
	if prev.HasReboundReference() {
		prev.reboundReference = a.NextFieldSignature(prev.reboundReference)
	}
	return prev
}

func (a *AppliedGraphLens) DescribeLookupMethod(prev MethodLookupResult, _ graph.Method) MethodLookupResult {
	prev.reference = a.NextMethodSignature(prev.reference)
	if prev.HasReboundReference() {
		prev.reboundReference = a.NextMethodSignature(prev.reboundReference)
	}
	return prev
}

// ForEachRenamedType calls fn with every original type, in order, and its
// current type.
func (a *AppliedGraphLens) ForEachRenamedType(fn func(original, current graph.Type)) {
	a.renamedTypeNames.ForEach(fn)
}

// ForEachRenamedField calls fn with every current field whose original
// differs, in order.
func (a *AppliedGraphLens) ForEachRenamedField(fn func(current, original graph.Field)) {
	var all []graph.Field
	a.originalFieldSignatures.ForEach(func(cur, _ graph.Field) { all = append(all, cur) })
	for f := range a.extraOriginalFieldSignatures {
		all = append(all, f)
	}
	slices.SortFunc(all, graph.Field.Compare)
	for _, f := range all {
		fn(f, a.PreviousFieldSignature(f))
	}
}

// ForEachRenamedMethod calls fn with every current method whose original
// differs, in order.
func (a *AppliedGraphLens) ForEachRenamedMethod(fn func(current, original graph.Method)) {
	var all []graph.Method
	a.originalMethodSignatures.ForEach(func(cur, _ graph.Method) { all = append(all, cur) })
	for m := range a.extraOriginalMethodSignatures {
		all = append(all, m)
	}
	slices.SortFunc(all, graph.Method.Compare)
	for _, m := range all {
		fn(m, a.PreviousMethodSignature(m))
	}
}

func (a *AppliedGraphLens) String() string {
	return fmt.Sprintf("applied(%d types, %d fields, %d methods)",
		a.renamedTypeNames.Size(), a.originalFieldSignatures.Size()+len(a.extraOriginalFieldSignatures),
		a.originalMethodSignatures.Size()+len(a.extraOriginalMethodSignatures))
}
