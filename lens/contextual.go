package lens

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"

	"github.com/chazu/lenschain/graph"
)

// ContextualMergeLens is the lens of vertical class merging. On top of the
// nested tables it rewrites invoke-super calls made from a class whose
// superclass was merged into it: such calls now target the merged copy of
// the method, which is a direct call. Lookups that may hit one of these
// rewrites need a context.
type ContextualMergeLens struct {
	NestedGraphLens
	superToDirect map[graph.Type]map[graph.Method]graph.Method
	merged        *set.Set[graph.Method]
	bridges       map[graph.Method]graph.Method
}

func (l *ContextualMergeLens) DescribeLookupMethod(prev MethodLookupResult, context graph.Method) MethodLookupResult {
	if prev.kind == graph.InvokeSuper && !context.IsZero() && !l.merged.Contains(context) {
		if direct, ok := l.superToDirect[context.Holder][prev.reference]; ok {
			return MethodLookupResult{
				MemberLookupResult: MemberLookupResult[graph.Method]{reference: direct, reboundReference: direct},
				kind:               graph.InvokeDirect,
				prototypeChanges:   prev.PrototypeChanges().Combine(l.protoChanges[direct]),
			}
		}
	}
	return l.NestedGraphLens.DescribeLookupMethod(prev, context)
}

// PreviousMethodSignature maps a bridge synthesized by the merge back to
// the method it forwards to.
func (l *ContextualMergeLens) PreviousMethodSignature(m graph.Method) graph.Method {
	if origin, ok := l.bridges[m]; ok {
		return origin
	}
	return l.NestedGraphLens.PreviousMethodSignature(m)
}

func (l *ContextualMergeLens) IsLocallyContextFree() bool {
	return len(l.superToDirect) == 0
}

func (l *ContextualMergeLens) String() string {
	return fmt.Sprintf("contextual(%d contexts) %s", len(l.superToDirect), l.NestedGraphLens.String())
}

// ContextualMergeBuilder collects the tables of a ContextualMergeLens.
// Invocation kinds of moved methods follow
// MapVirtualInterfaceInvocationTypes over defs, the program as it was
// before the merge.
type ContextualMergeBuilder struct {
	*NestedBuilder
	superToDirect map[graph.Type]map[graph.Method]graph.Method
	merged        *set.Set[graph.Method]
	bridges       map[graph.Method]graph.Method
}

func NewContextualMergeBuilder(name string, defs graph.DefinitionSupplier) *ContextualMergeBuilder {
	nb := NewNestedBuilder(name)
	nb.WithInvocationTypeMapper(VirtualInterfaceMapper(defs))
	return &ContextualMergeBuilder{
		NestedBuilder: nb,
		superToDirect: make(map[graph.Type]map[graph.Method]graph.Method),
		merged:        set.New[graph.Method](0),
		bridges:       make(map[graph.Method]graph.Method),
	}
}

// MapSuperToDirect rewrites invoke-super of from, inside methods of
// context, to a direct call of to.
func (b *ContextualMergeBuilder) MapSuperToDirect(context graph.Type, from, to graph.Method) *ContextualMergeBuilder {
	m, ok := b.superToDirect[context]
	if !ok {
		m = make(map[graph.Method]graph.Method)
		b.superToDirect[context] = m
	}
	m[from] = to
	return b
}

// MarkMerged records that m was moved down from the merged superclass.
// Super calls inside it keep their meaning.
func (b *ContextualMergeBuilder) MarkMerged(m graph.Method) *ContextualMergeBuilder {
	b.merged.Insert(m)
	return b
}

// RecordBridge records that bridge was synthesized to forward to origin.
func (b *ContextualMergeBuilder) RecordBridge(bridge, origin graph.Method) *ContextualMergeBuilder {
	b.bridges[bridge] = origin
	return b
}

func (b *ContextualMergeBuilder) Build(previous GraphLens) *ContextualMergeLens {
	if len(b.superToDirect) > 0 || len(b.bridges) > 0 {
		b.AllowEmpty()
	}
	l := &ContextualMergeLens{
		superToDirect: b.superToDirect,
		merged:        b.merged,
		bridges:       b.bridges,
	}
	b.fill(&l.NestedGraphLens)
	l.Init(l, previous)
	return l
}
