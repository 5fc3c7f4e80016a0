package lens

import (
	"fmt"

	"github.com/chazu/lenschain/graph"
)

// RebindingLens records, for member references that name a supertype of
// the defining class, the reference to the actual definition. It sets the
// rebound reference of lookups and renames nothing.
type RebindingLens struct {
	Base
	fields  map[graph.Field]graph.Field
	methods map[graph.InvokeType]map[graph.Method]graph.Method
}

// RebindingBuilder collects the rebinding tables.
type RebindingBuilder struct {
	fields  map[graph.Field]graph.Field
	methods map[graph.InvokeType]map[graph.Method]graph.Method
	built   bool
}

func NewRebindingBuilder() *RebindingBuilder {
	return &RebindingBuilder{
		fields:  make(map[graph.Field]graph.Field),
		methods: make(map[graph.InvokeType]map[graph.Method]graph.Method),
	}
}

// RebindField records that accesses of nonRebound resolve to rebound.
func (b *RebindingBuilder) RebindField(nonRebound, rebound graph.Field) *RebindingBuilder {
	Assert(nonRebound.Name == rebound.Name && nonRebound.Type == rebound.Type, "RebindingBuilder.RebindField",
		"%s and %s differ in more than the holder", nonRebound, rebound)
	b.fields[nonRebound] = rebound
	return b
}

// RebindMethod records that calls of nonRebound with the given kind
// resolve to rebound.
func (b *RebindingBuilder) RebindMethod(kind graph.InvokeType, nonRebound, rebound graph.Method) *RebindingBuilder {
	Assert(nonRebound.Name == rebound.Name && nonRebound.Proto == rebound.Proto, "RebindingBuilder.RebindMethod",
		"%s and %s differ in more than the holder", nonRebound, rebound)
	m, ok := b.methods[kind]
	if !ok {
		m = make(map[graph.Method]graph.Method)
		b.methods[kind] = m
	}
	m[nonRebound] = rebound
	return b
}

func (b *RebindingBuilder) Build(previous GraphLens) *RebindingLens {
	Assert(!b.built, "RebindingBuilder.Build", "builder already used")
	b.built = true
	l := &RebindingLens{fields: b.fields, methods: b.methods}
	l.Init(l, previous)
	return l
}

func (l *RebindingLens) DescribeLookupField(prev FieldLookupResult) FieldLookupResult {
	if prev.HasReboundReference() {
		return prev
	}
	if rebound, ok := l.fields[prev.reference]; ok {
		prev.reboundReference = rebound
	}
	return prev
}

func (l *RebindingLens) DescribeLookupMethod(prev MethodLookupResult, _ graph.Method) MethodLookupResult {
	if prev.HasReboundReference() {
		return prev
	}
	if rebound, ok := l.methods[prev.kind][prev.reference]; ok {
		prev.reboundReference = rebound
	}
	return prev
}

func (l *RebindingLens) String() string {
	n := 0
	for _, m := range l.methods {
		n += len(m)
	}
	return fmt.Sprintf("rebinding(%d fields, %d methods)\n-> %s", len(l.fields), n, l.previous)
}
