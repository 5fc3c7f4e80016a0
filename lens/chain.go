package lens

import (
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/chazu/lenschain/graph"
)

// NonIdentityLens is implemented by every lens except Identity. It is the
// set of hooks the traversal engine in Base calls; implementations embed
// Base and override the hooks their delta affects.
//
// Previous* hooks translate a reference from this lens's vocabulary to its
// predecessor's. Next* hooks go the other way. Describe* hooks apply this
// lens's delta to the predecessor's lookup result.
type NonIdentityLens interface {
	GraphLens

	PreviousType(t graph.Type) graph.Type
	PreviousTypes(t graph.Type) []graph.Type
	PreviousFieldSignature(f graph.Field) graph.Field
	NextFieldSignature(f graph.Field) graph.Field
	PreviousMethodSignature(m graph.Method) graph.Method
	NextMethodSignature(m graph.Method) graph.Method

	DescribeLookupClassType(previous graph.Type) graph.Type
	DescribeLookupField(previous FieldLookupResult) FieldLookupResult
	DescribeLookupMethod(previous MethodLookupResult, context graph.Method) MethodLookupResult
	DescribePrototypeChanges(m graph.Method, previous *PrototypeChanges) *PrototypeChanges

	// IsLocallyContextFree reports whether this lens alone rewrites
	// methods without looking at the context.
	IsLocallyContextFree() bool
	// ClearsCodeRewritings reports whether code lookups stop at this lens.
	ClearsCodeRewritings() bool

	chain() *Base
}

var arrayCacheSize atomic.Int64

func init() { arrayCacheSize.Store(1024) }

// SetArrayCacheSize sets the capacity of the array-type memo of lenses
// built afterwards. Zero or less disables the memo.
func SetArrayCacheSize(n int) { arrayCacheSize.Store(int64(n)) }

// lensIDs numbers lenses so memo keys name a checkpoint without holding
// on to it.
var lensIDs atomic.Uint64

type arrayKey struct {
	t  graph.Type
	at uint64
}

// memoKey is 0 for NoCodeLens and Identity, which select the same path.
func (c CodeLens) memoKey() uint64 {
	if n, ok := c.lens.(NonIdentityLens); ok {
		return n.chain().id
	}
	return 0
}

// Base holds the predecessor of a lens and implements GraphLens on top of
// the hooks of the embedding lens. The zero Base is not usable; lenses call
// Init from their constructor.
type Base struct {
	self     NonIdentityLens
	previous GraphLens
	arrays   *lru.Cache
	id       uint64
}

// Init links the lens self, which embeds b, to previous.
func (b *Base) Init(self NonIdentityLens, previous GraphLens) {
	Assert(previous != nil, "Base.Init", "nil predecessor")
	Assert(self.chain() == b, "Base.Init", "lens does not embed this Base")
	b.self = self
	b.previous = previous
	b.id = lensIDs.Add(1)
	if n := arrayCacheSize.Load(); n > 0 {
		b.arrays, _ = lru.New(int(n))
	}
}

func (b *Base) chain() *Base { return b }

// Previous returns the predecessor.
func (b *Base) Previous() GraphLens { return b.previous }

// Default hooks. They describe a lens that changes nothing.

func (b *Base) PreviousType(t graph.Type) graph.Type                { return t }
func (b *Base) PreviousTypes(t graph.Type) []graph.Type             { return []graph.Type{b.self.PreviousType(t)} }
func (b *Base) PreviousFieldSignature(f graph.Field) graph.Field    { return f }
func (b *Base) NextFieldSignature(f graph.Field) graph.Field        { return f }
func (b *Base) PreviousMethodSignature(m graph.Method) graph.Method { return m }
func (b *Base) NextMethodSignature(m graph.Method) graph.Method     { return m }
func (b *Base) DescribeLookupClassType(t graph.Type) graph.Type     { return t }

func (b *Base) DescribeLookupField(previous FieldLookupResult) FieldLookupResult { return previous }

func (b *Base) DescribeLookupMethod(previous MethodLookupResult, _ graph.Method) MethodLookupResult {
	return previous
}

func (b *Base) DescribePrototypeChanges(_ graph.Method, previous *PrototypeChanges) *PrototypeChanges {
	return previous
}

func (b *Base) IsLocallyContextFree() bool { return true }
func (b *Base) ClearsCodeRewritings() bool { return false }
func (b *Base) HasCodeRewritings() bool    { return true }
func (b *Base) IsIdentity() bool           { return false }
func (b *Base) IsApplied() bool            { return false }
func (b *Base) IsClearCodeRewriting() bool { return false }
func (b *Base) String() string             { return "lens -> " + b.previous.String() }

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// codePath returns the lenses a code lookup applies, head first. Descent
// stops at the checkpoint, at Identity and at a lens that clears code
// rewritings.
func (b *Base) codePath(at CodeLens) []NonIdentityLens {
	var path []NonIdentityLens
	var cur GraphLens = b.self
	for !at.stopsAt(cur) && !cur.IsIdentity() {
		n := asNonIdentity(cur)
		if n.ClearsCodeRewritings() {
			break
		}
		path = append(path, n)
		cur = n.chain().previous
	}
	return path
}

// namePath is like codePath but walks through lenses that clear code
// rewritings, since names still resolve through them.
func (b *Base) namePath(at CodeLens) []NonIdentityLens {
	var path []NonIdentityLens
	var cur GraphLens = b.self
	for !at.stopsAt(cur) && !cur.IsIdentity() {
		n := asNonIdentity(cur)
		path = append(path, n)
		cur = n.chain().previous
	}
	return path
}

func asNonIdentity(l GraphLens) NonIdentityLens {
	n, ok := l.(NonIdentityLens)
	if !ok {
		Failf("lens traversal", "%T is neither identity nor built on Base", l)
	}
	return n
}

func (b *Base) LookupClassType(t graph.Type, at CodeLens) graph.Type {
	Assert(t.IsClass(), "LookupClassType", "%s is not a class type", t)
	path := b.codePath(at)
	for i := len(path) - 1; i >= 0; i-- {
		t = path[i].DescribeLookupClassType(t)
	}
	return t
}

func (b *Base) LookupType(t graph.Type, at CodeLens) graph.Type {
	switch {
	case t.IsClass():
		return b.LookupClassType(t, at)
	case t.IsArray():
		base := t.BaseType()
		if !base.IsClass() {
			return t
		}
		key := arrayKey{t, at.memoKey()}
		if b.arrays != nil {
			if v, ok := b.arrays.Get(key); ok {
				return v.(graph.Type)
			}
		}
		out := t
		if rewritten := b.LookupClassType(base, at); rewritten != base {
			out = t.ReplaceBaseType(rewritten)
		}
		if b.arrays != nil {
			b.arrays.Add(key, out)
		}
		return out
	}
	return t
}

func (b *Base) LookupField(f graph.Field, at CodeLens) FieldLookupResult {
	path := b.codePath(at)
	res := NewFieldLookupResult(f)
	for i := len(path) - 1; i >= 0; i-- {
		res = path[i].DescribeLookupField(res)
	}
	return res
}

func (b *Base) LookupMethod(m graph.Method, context graph.Method, kind graph.InvokeType, at CodeLens) MethodLookupResult {
	if context.IsZero() && !b.self.IsContextFreeForMethods(at) {
		Failf("LookupMethod", "lookup of %s without context on a context-sensitive lens", m)
	}
	if m.Holder.IsArray() {
		return MethodLookupResult{
			MemberLookupResult: MemberLookupResult[graph.Method]{reference: m.WithHolder(b.LookupType(m.Holder, at))},
			kind:               kind,
			prototypeChanges:   None(),
		}
	}
	path := b.codePath(at)
	contexts := make([]graph.Method, len(path))
	for i, n := range path {
		contexts[i] = context
		if !context.IsZero() {
			context = n.PreviousMethodSignature(context)
		}
	}
	res := MethodLookupResult{
		MemberLookupResult: MemberLookupResult[graph.Method]{reference: m},
		kind:               kind,
		prototypeChanges:   None(),
	}
	for i := len(path) - 1; i >= 0; i-- {
		res = path[i].DescribeLookupMethod(res, contexts[i])
	}
	return res
}

func (b *Base) LookupPrototypeChangesForMethodDefinition(m graph.Method, at CodeLens) *PrototypeChanges {
	path := b.codePath(at)
	methods := make([]graph.Method, len(path))
	for i, n := range path {
		methods[i] = m
		m = n.PreviousMethodSignature(m)
	}
	changes := None()
	for i := len(path) - 1; i >= 0; i-- {
		changes = path[i].DescribePrototypeChanges(methods[i], changes)
	}
	return changes
}

func (b *Base) GetOriginalType(t graph.Type, at CodeLens) graph.Type {
	if !t.IsReference() {
		return t
	}
	base := t.BaseType()
	if !base.IsClass() {
		return t
	}
	orig := base
	for _, n := range b.namePath(at) {
		orig = n.PreviousType(orig)
	}
	return t.ReplaceBaseType(orig)
}

func (b *Base) GetOriginalTypes(t graph.Type, at CodeLens) []graph.Type {
	base := t.BaseType()
	if !base.IsClass() {
		return []graph.Type{t}
	}
	current := []graph.Type{base}
	for _, n := range b.namePath(at) {
		var next []graph.Type
		for _, c := range current {
			for _, p := range n.PreviousTypes(c) {
				if !slices.Contains(next, p) {
					next = append(next, p)
				}
			}
		}
		current = next
	}
	out := make([]graph.Type, len(current))
	for i, c := range current {
		out[i] = t.ReplaceBaseType(c)
	}
	slices.SortFunc(out, graph.Type.Compare)
	return out
}

func (b *Base) GetOriginalFieldSignature(f graph.Field, at CodeLens) graph.Field {
	for _, n := range b.namePath(at) {
		f = n.PreviousFieldSignature(f)
	}
	return f
}

func (b *Base) GetOriginalMethodSignature(m graph.Method, at CodeLens) graph.Method {
	for _, n := range b.namePath(at) {
		m = n.PreviousMethodSignature(m)
	}
	return m
}

func (b *Base) GetRenamedFieldSignature(f graph.Field, at CodeLens) graph.Field {
	path := b.namePath(at)
	for i := len(path) - 1; i >= 0; i-- {
		f = path[i].NextFieldSignature(f)
	}
	return f
}

func (b *Base) GetRenamedMethodSignature(m graph.Method, at CodeLens) graph.Method {
	path := b.namePath(at)
	for i := len(path) - 1; i >= 0; i-- {
		m = path[i].NextMethodSignature(m)
	}
	return m
}

func (b *Base) IsContextFreeForMethods(at CodeLens) bool {
	for _, n := range b.codePath(at) {
		if !n.IsLocallyContextFree() {
			return false
		}
	}
	return true
}
