package lens

import "github.com/chazu/lenschain/graph"

type identityLens struct{}

var identity = &identityLens{}

// Identity returns the lens at the bottom of every chain. There is exactly
// one, so it can be compared with ==.
func Identity() GraphLens { return identity }

func (*identityLens) LookupType(t graph.Type, _ CodeLens) graph.Type      { return t }
func (*identityLens) LookupClassType(t graph.Type, _ CodeLens) graph.Type { return t }

func (*identityLens) LookupField(f graph.Field, _ CodeLens) FieldLookupResult {
	return NewFieldLookupResult(f)
}

func (*identityLens) LookupMethod(m graph.Method, _ graph.Method, kind graph.InvokeType, _ CodeLens) MethodLookupResult {
	return MethodLookupResult{
		MemberLookupResult: MemberLookupResult[graph.Method]{reference: m},
		kind:               kind,
		prototypeChanges:   None(),
	}
}

func (*identityLens) LookupPrototypeChangesForMethodDefinition(graph.Method, CodeLens) *PrototypeChanges {
	return None()
}

func (*identityLens) GetOriginalType(t graph.Type, _ CodeLens) graph.Type { return t }

func (*identityLens) GetOriginalTypes(t graph.Type, _ CodeLens) []graph.Type {
	return []graph.Type{t}
}

func (*identityLens) GetOriginalFieldSignature(f graph.Field, _ CodeLens) graph.Field    { return f }
func (*identityLens) GetOriginalMethodSignature(m graph.Method, _ CodeLens) graph.Method { return m }
func (*identityLens) GetRenamedFieldSignature(f graph.Field, _ CodeLens) graph.Field     { return f }
func (*identityLens) GetRenamedMethodSignature(m graph.Method, _ CodeLens) graph.Method  { return m }

func (*identityLens) IsContextFreeForMethods(CodeLens) bool { return true }
func (*identityLens) HasCodeRewritings() bool               { return false }
func (*identityLens) IsIdentity() bool                      { return true }
func (*identityLens) IsApplied() bool                       { return false }
func (*identityLens) IsClearCodeRewriting() bool            { return false }
func (*identityLens) Previous() GraphLens                   { return nil }
func (*identityLens) String() string                        { return "identity" }
