package lens

import (
	"maps"
	"slices"
	"sync"

	"github.com/chazu/lenschain/graph"
)

// InitClassLens maps a class to the static field whose read triggers the
// class initializer. It is rebuilt each time the graph lens changes.
type InitClassLens interface {
	InitClassField(t graph.Type) graph.Field
	IsFinal() bool
	RewrittenWithLens(l GraphLens, at CodeLens) InitClassLens
}

type throwingInitClassLens struct{}

var throwingInstance InitClassLens = throwingInitClassLens{}

// ThrowingInitClassLens returns the lens in use before any init-class
// field is known. Querying it is a contract violation.
func ThrowingInitClassLens() InitClassLens { return throwingInstance }

func (throwingInitClassLens) InitClassField(t graph.Type) graph.Field {
	Failf("InitClassLens.InitClassField", "no init-class field computed yet (queried %s)", t)
	return graph.Field{}
}

func (throwingInitClassLens) IsFinal() bool { return false }

func (l throwingInitClassLens) RewrittenWithLens(GraphLens, CodeLens) InitClassLens { return l }

// FinalInitClassLens is the immutable class -> init field map.
type FinalInitClassLens struct {
	mapping map[graph.Type]graph.Field
}

func (l *FinalInitClassLens) InitClassField(t graph.Type) graph.Field {
	f, ok := l.mapping[t]
	if !ok {
		Failf("InitClassLens.InitClassField", "no init-class field for %s", t)
	}
	return f
}

func (l *FinalInitClassLens) IsFinal() bool { return true }

func (l *FinalInitClassLens) Len() int { return len(l.mapping) }

// ForEach calls fn for every entry in class order.
func (l *FinalInitClassLens) ForEach(fn func(t graph.Type, f graph.Field)) {
	types := make([]graph.Type, 0, len(l.mapping))
	for t := range l.mapping {
		types = append(types, t)
	}
	slices.SortFunc(types, graph.Type.Compare)
	for _, t := range types {
		fn(t, l.mapping[t])
	}
}

// RewrittenWithLens runs every entry through lens. When several classes
// now have the same type, the entry of the class whose type did not change
// wins; otherwise the first class in type order does.
func (l *FinalInitClassLens) RewrittenWithLens(lens GraphLens, at CodeLens) InitClassLens {
	out := make(map[graph.Type]graph.Field, len(l.mapping))
	survivor := make(map[graph.Type]bool)
	l.ForEach(func(t graph.Type, f graph.Field) {
		rt := lens.LookupClassType(t, at)
		rf := lens.LookupField(f, at).Reference()
		if _, taken := out[rt]; taken && (survivor[rt] || rt != t) {
			return
		}
		out[rt] = rf
		survivor[rt] = rt == t
	})
	return &FinalInitClassLens{mapping: out}
}

// InitClassLensBuilder collects init-class fields. It is safe for
// concurrent use.
type InitClassLensBuilder struct {
	mu      sync.Mutex
	mapping map[graph.Type]graph.Field
}

func NewInitClassLensBuilder() *InitClassLensBuilder {
	return &InitClassLensBuilder{mapping: make(map[graph.Type]graph.Field)}
}

// Map records f as the init-class field of t. Recording a different field
// for the same class is a contract violation.
func (b *InitClassLensBuilder) Map(t graph.Type, f graph.Field) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.mapping[t]; ok && old != f {
		Failf("InitClassLensBuilder.Map", "%s already mapped to %s, not %s", t, old, f)
	}
	b.mapping[t] = f
}

func (b *InitClassLensBuilder) Build() *FinalInitClassLens {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &FinalInitClassLens{mapping: maps.Clone(b.mapping)}
}
