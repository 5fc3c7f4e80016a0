package lens

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/lenschain/collections"
	"github.com/chazu/lenschain/graph"
)

// InvocationTypeMapper chooses the invocation kind of a rewritten method
// reference. newMethod is the rewritten target, originalMethod the
// reference as the predecessor named it.
type InvocationTypeMapper func(newMethod, originalMethod, context graph.Method, kind graph.InvokeType) graph.InvokeType

// NestedGraphLens is the general rewrite lens. It holds a type table, a
// field table and two method tables: one rewriting invoke targets in code
// and one recording how method names moved.
//
// Members absent from the tables keep their name; their holder and the
// types in their signature are rewritten through the type table.
type NestedGraphLens struct {
	Base

	name         string
	types        *collections.BidirectionalManyToOneRepresentativeMap[graph.Type, graph.Type]
	fields       *collections.BidirectionalManyToOneRepresentativeMap[graph.Field, graph.Field]
	methods      map[graph.Method]graph.Method
	methodNames  *collections.BidirectionalManyToOneRepresentativeMap[graph.Method, graph.Method]
	invokeTypes  map[graph.Method]graph.InvokeType
	protoChanges map[graph.Method]*PrototypeChanges
	readCasts    map[graph.Field]graph.Type
	writeCasts   map[graph.Field]graph.Type
	mapper       InvocationTypeMapper
}

// Name returns the name of the pass that built the lens.
func (n *NestedGraphLens) Name() string { return n.name }

func (n *NestedGraphLens) rewriteType(t graph.Type) graph.Type {
	return t.MapClassType(n.DescribeLookupClassType)
}

func (n *NestedGraphLens) previousType(t graph.Type) graph.Type {
	return t.MapClassType(n.PreviousType)
}

func fixupField(f graph.Field, fn func(graph.Type) graph.Type) graph.Field {
	return graph.Field{Holder: fn(f.Holder), Name: f.Name, Type: fn(f.Type)}
}

func fixupMethod(m graph.Method, fn func(graph.Type) graph.Type) graph.Method {
	return graph.Method{Holder: fn(m.Holder), Name: m.Name, Proto: m.Proto.MapTypes(fn)}
}

func (n *NestedGraphLens) rewriteField(f graph.Field) graph.Field {
	if to, ok := n.fields.Get(f); ok {
		return to
	}
	return fixupField(f, n.rewriteType)
}

func (n *NestedGraphLens) rewriteMethod(m graph.Method) graph.Method {
	if to, ok := n.methods[m]; ok {
		return to
	}
	return fixupMethod(m, n.rewriteType)
}

func (n *NestedGraphLens) DescribeLookupClassType(t graph.Type) graph.Type {
	return n.types.GetOrDefault(t, t)
}

func (n *NestedGraphLens) PreviousType(t graph.Type) graph.Type {
	return n.types.GetRepresentativeKeyOrDefault(t, t)
}

func (n *NestedGraphLens) PreviousTypes(t graph.Type) []graph.Type {
	if keys := n.types.GetKeys(t); len(keys) > 0 {
		return keys
	}
	return []graph.Type{t}
}

func (n *NestedGraphLens) PreviousFieldSignature(f graph.Field) graph.Field {
	if from, ok := n.fields.GetRepresentativeKey(f); ok {
		return from
	}
	return fixupField(f, n.previousType)
}

func (n *NestedGraphLens) NextFieldSignature(f graph.Field) graph.Field {
	return n.rewriteField(f)
}

func (n *NestedGraphLens) PreviousMethodSignature(m graph.Method) graph.Method {
	if from, ok := n.methodNames.GetRepresentativeKey(m); ok {
		return from
	}
	return fixupMethod(m, n.previousType)
}

func (n *NestedGraphLens) NextMethodSignature(m graph.Method) graph.Method {
	if to, ok := n.methodNames.Get(m); ok {
		return to
	}
	return fixupMethod(m, n.rewriteType)
}

// DescribeLookupField rewrites the rebound reference through the field
// table and derives the non-rebound reference from it by rewriting only the
// holder the instruction named.
func (n *NestedGraphLens) DescribeLookupField(prev FieldLookupResult) FieldLookupResult {
	var res FieldLookupResult
	if prev.HasReboundReference() {
		res.reboundReference = n.rewriteField(prev.reboundReference)
		if prev.reference == prev.reboundReference {
			res.reference = res.reboundReference
		} else {
			res.reference = res.reboundReference.WithHolder(n.rewriteType(prev.reference.Holder))
		}
	} else {
		res.reference = n.rewriteField(prev.reference)
	}
	target := res.reference
	if res.HasReboundReference() {
		target = res.reboundReference
	}
	res.readCastType = n.castType(prev.readCastType, n.readCasts, target)
	res.writeCastType = n.castType(prev.writeCastType, n.writeCasts, target)
	return res
}

func (n *NestedGraphLens) castType(prev graph.Type, own map[graph.Field]graph.Type, f graph.Field) graph.Type {
	if t, ok := own[f]; ok {
		return t
	}
	if prev.IsZero() {
		return prev
	}
	return n.rewriteType(prev)
}

func (n *NestedGraphLens) DescribeLookupMethod(prev MethodLookupResult, context graph.Method) MethodLookupResult {
	var res MethodLookupResult
	if prev.HasReboundReference() {
		res.reboundReference = n.rewriteMethod(prev.reboundReference)
		if prev.reference == prev.reboundReference {
			res.reference = res.reboundReference
		} else {
			res.reference = res.reboundReference.WithHolder(n.rewriteType(prev.reference.Holder))
		}
	} else {
		res.reference = n.rewriteMethod(prev.reference)
	}
	target := res.reference
	if res.HasReboundReference() {
		target = res.reboundReference
	}
	res.kind = n.mapInvocationType(target, prev.reference, context, prev.kind)
	res.prototypeChanges = prev.PrototypeChanges().Combine(n.protoChanges[target])
	return res
}

func (n *NestedGraphLens) mapInvocationType(newMethod, originalMethod, context graph.Method, kind graph.InvokeType) graph.InvokeType {
	if kind == 0 {
		return kind
	}
	if k, ok := n.invokeTypes[newMethod]; ok {
		return k
	}
	if n.mapper != nil {
		return n.mapper(newMethod, originalMethod, context, kind)
	}
	return kind
}

func (n *NestedGraphLens) DescribePrototypeChanges(m graph.Method, prev *PrototypeChanges) *PrototypeChanges {
	return prev.Combine(n.protoChanges[m])
}

func (n *NestedGraphLens) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "nested(%s)", n.name)
	n.types.ForEach(func(from, to graph.Type) {
		fmt.Fprintf(&sb, "\n  type %s -> %s", from, to)
	})
	n.fields.ForEach(func(from, to graph.Field) {
		fmt.Fprintf(&sb, "\n  field %s -> %s", from, to)
	})
	froms := make([]graph.Method, 0, len(n.methods))
	for from := range n.methods {
		froms = append(froms, from)
	}
	slices.SortFunc(froms, graph.Method.Compare)
	for _, from := range froms {
		fmt.Fprintf(&sb, "\n  method %s -> %s", from, n.methods[from])
	}
	sb.WriteString("\n-> ")
	sb.WriteString(n.previous.String())
	return sb.String()
}

// MapVirtualInterfaceInvocationTypes picks the invocation kind of a call
// whose target moved from originalMethod to newMethod when classes were
// merged. Only virtual and interface calls change. A call whose kind did
// not match its original holder keeps failing the same way on the new
// holder; any other call takes the kind the new holder requires.
func MapVirtualInterfaceInvocationTypes(defs graph.DefinitionSupplier, newMethod, originalMethod graph.Method, kind graph.InvokeType) graph.InvokeType {
	if kind != graph.InvokeVirtual && kind != graph.InvokeInterface {
		return kind
	}
	newHolder := defs.DefinitionFor(newMethod.Holder)
	if newHolder == nil {
		return kind
	}
	if origHolder := defs.DefinitionFor(originalMethod.Holder); origHolder != nil {
		if (kind == graph.InvokeInterface) != origHolder.IsInterface {
			if newHolder.IsInterface {
				return graph.InvokeVirtual
			}
			return graph.InvokeInterface
		}
	}
	if newHolder.IsInterface {
		return graph.InvokeInterface
	}
	return graph.InvokeVirtual
}

// VirtualInterfaceMapper returns an InvocationTypeMapper applying
// MapVirtualInterfaceInvocationTypes over defs.
func VirtualInterfaceMapper(defs graph.DefinitionSupplier) InvocationTypeMapper {
	return func(newMethod, originalMethod, _ graph.Method, kind graph.InvokeType) graph.InvokeType {
		return MapVirtualInterfaceInvocationTypes(defs, newMethod, originalMethod, kind)
	}
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// NestedBuilder collects the tables of a NestedGraphLens. It is used by a
// single goroutine and can build only once.
type NestedBuilder struct {
	name         string
	types        *collections.BidirectionalManyToOneRepresentativeMap[graph.Type, graph.Type]
	fields       *collections.BidirectionalManyToOneRepresentativeMap[graph.Field, graph.Field]
	methods      map[graph.Method]graph.Method
	methodNames  *collections.BidirectionalManyToOneRepresentativeMap[graph.Method, graph.Method]
	invokeTypes  map[graph.Method]graph.InvokeType
	protoChanges map[graph.Method]*PrototypeChanges
	readCasts    map[graph.Field]graph.Type
	writeCasts   map[graph.Field]graph.Type
	mapper       InvocationTypeMapper
	allowEmpty   bool
	built        bool
}

// NewNestedBuilder returns a builder for the pass called name.
func NewNestedBuilder(name string) *NestedBuilder {
	return &NestedBuilder{
		name:         name,
		types:        collections.NewBidirectionalManyToOneRepresentativeMap[graph.Type, graph.Type](graph.Type.Compare),
		fields:       collections.NewBidirectionalManyToOneRepresentativeMap[graph.Field, graph.Field](graph.Field.Compare),
		methods:      make(map[graph.Method]graph.Method),
		methodNames:  collections.NewBidirectionalManyToOneRepresentativeMap[graph.Method, graph.Method](graph.Method.Compare),
		invokeTypes:  make(map[graph.Method]graph.InvokeType),
		protoChanges: make(map[graph.Method]*PrototypeChanges),
		readCasts:    make(map[graph.Field]graph.Type),
		writeCasts:   make(map[graph.Field]graph.Type),
	}
}

// MapType renames the class type from to to.
func (b *NestedBuilder) MapType(from, to graph.Type) *NestedBuilder {
	Assert(from.IsClass() && to.IsClass(), "NestedBuilder.MapType", "%s -> %s is not a class mapping", from, to)
	if from != to {
		b.types.Put(from, to)
	}
	return b
}

// MergeType merges every type in froms into the existing class to, which
// keeps its own name and represents the group.
func (b *NestedBuilder) MergeType(to graph.Type, froms ...graph.Type) *NestedBuilder {
	for _, from := range froms {
		b.MapType(from, to)
	}
	b.types.Put(to, to)
	b.types.SetRepresentative(to, to)
	return b
}

// MoveField rewrites accesses of from to to.
func (b *NestedBuilder) MoveField(from, to graph.Field) *NestedBuilder {
	if from != to {
		b.fields.Put(from, to)
	}
	return b
}

// MergeField merges every field in froms into the existing field to.
func (b *NestedBuilder) MergeField(to graph.Field, froms ...graph.Field) *NestedBuilder {
	for _, from := range froms {
		b.MoveField(from, to)
	}
	b.fields.Put(to, to)
	b.fields.SetRepresentative(to, to)
	return b
}

// MoveMethod rewrites calls of from to to and records the new name.
func (b *NestedBuilder) MoveMethod(from, to graph.Method) *NestedBuilder {
	b.MapInvoke(from, to)
	return b.RecordMove(from, to)
}

// MergeMethod merges every method in froms into the existing method to.
func (b *NestedBuilder) MergeMethod(to graph.Method, froms ...graph.Method) *NestedBuilder {
	for _, from := range froms {
		b.MoveMethod(from, to)
	}
	b.methodNames.Put(to, to)
	b.methodNames.SetRepresentative(to, to)
	return b
}

// MapInvoke rewrites calls of from to to without changing any name.
func (b *NestedBuilder) MapInvoke(from, to graph.Method) *NestedBuilder {
	if from != to {
		b.methods[from] = to
	}
	return b
}

// RecordMove records that method from is now called to without rewriting
// calls.
func (b *NestedBuilder) RecordMove(from, to graph.Method) *NestedBuilder {
	if from != to {
		b.methodNames.Put(from, to)
	}
	return b
}

func (b *NestedBuilder) SetRepresentativeType(to, from graph.Type) *NestedBuilder {
	b.types.SetRepresentative(to, from)
	return b
}

func (b *NestedBuilder) SetRepresentativeField(to, from graph.Field) *NestedBuilder {
	b.fields.SetRepresentative(to, from)
	return b
}

func (b *NestedBuilder) SetRepresentativeMethod(to, from graph.Method) *NestedBuilder {
	b.methodNames.SetRepresentative(to, from)
	return b
}

// SetInvokeType fixes the invocation kind of every call resolved to
// newMethod.
func (b *NestedBuilder) SetInvokeType(newMethod graph.Method, kind graph.InvokeType) *NestedBuilder {
	b.invokeTypes[newMethod] = kind
	return b
}

// SetPrototypeChanges records how the prototype of newMethod changed.
func (b *NestedBuilder) SetPrototypeChanges(newMethod graph.Method, changes *PrototypeChanges) *NestedBuilder {
	if !changes.IsEmpty() {
		b.protoChanges[newMethod] = changes
	}
	return b
}

// SetReadCastType makes reads of newField cast to t.
func (b *NestedBuilder) SetReadCastType(newField graph.Field, t graph.Type) *NestedBuilder {
	b.readCasts[newField] = t
	return b
}

// SetWriteCastType makes writes of newField cast to t.
func (b *NestedBuilder) SetWriteCastType(newField graph.Field, t graph.Type) *NestedBuilder {
	b.writeCasts[newField] = t
	return b
}

func (b *NestedBuilder) WithInvocationTypeMapper(fn InvocationTypeMapper) *NestedBuilder {
	b.mapper = fn
	return b
}

// AllowEmpty permits building a lens that rewrites nothing.
func (b *NestedBuilder) AllowEmpty() *NestedBuilder {
	b.allowEmpty = true
	return b
}

// IsEmpty reports whether nothing has been recorded.
func (b *NestedBuilder) IsEmpty() bool {
	return b.types.IsEmpty() && b.fields.IsEmpty() && len(b.methods) == 0 && b.methodNames.IsEmpty() &&
		len(b.invokeTypes) == 0 && len(b.protoChanges) == 0 && len(b.readCasts) == 0 && len(b.writeCasts) == 0
}

func (b *NestedBuilder) fill(n *NestedGraphLens) {
	Assert(!b.built, "NestedBuilder.Build", "builder for %s already used", b.name)
	Assert(b.allowEmpty || !b.IsEmpty(), "NestedBuilder.Build", "empty lens for %s", b.name)
	b.built = true
	n.name = b.name
	n.types = b.types.Freeze()
	n.fields = b.fields.Freeze()
	n.methods = b.methods
	n.methodNames = b.methodNames.Freeze()
	n.invokeTypes = b.invokeTypes
	n.protoChanges = b.protoChanges
	n.readCasts = b.readCasts
	n.writeCasts = b.writeCasts
	n.mapper = b.mapper
}

// Build returns the lens on top of previous.
func (b *NestedBuilder) Build(previous GraphLens) *NestedGraphLens {
	n := &NestedGraphLens{}
	b.fill(n)
	n.Init(n, previous)
	return n
}
