package lens

import (
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/lenschain/graph"
)

// RemovedArgument describes a parameter dropped from a method.
type RemovedArgument struct {
	Index int
	Type  graph.Type
	// IsAlwaysNull marks a reference parameter every caller passed null
	// for.
	IsAlwaysNull bool
}

// RewrittenArgument describes a parameter whose type changed.
type RewrittenArgument struct {
	Index   int
	OldType graph.Type
	NewType graph.Type
}

// PrototypeChanges describes how a method's prototype changed: removed
// parameters, rewritten parameter and return types, parameters appended at
// the end, and conversion from an instance to a static method.
//
// Indices refer to the declared parameters of the prototype the changes
// apply to. Reordering parameters is not supported.
type PrototypeChanges struct {
	arity             int
	removed           []RemovedArgument
	rewritten         []RewrittenArgument
	oldReturn         graph.Type
	newReturn         graph.Type
	extra             []graph.Type
	convertedToStatic bool
}

var none = &PrototypeChanges{arity: -1}

// None returns the empty description.
func None() *PrototypeChanges { return none }

// IsEmpty reports whether the description changes nothing.
func (p *PrototypeChanges) IsEmpty() bool {
	return len(p.removed) == 0 && len(p.rewritten) == 0 && p.newReturn.IsZero() &&
		len(p.extra) == 0 && !p.convertedToStatic
}

func (p *PrototypeChanges) RemovedArguments() []RemovedArgument     { return slices.Clone(p.removed) }
func (p *PrototypeChanges) RewrittenArguments() []RewrittenArgument { return slices.Clone(p.rewritten) }
func (p *PrototypeChanges) ExtraParameters() []graph.Type           { return slices.Clone(p.extra) }
func (p *PrototypeChanges) IsConvertedToStatic() bool               { return p.convertedToStatic }

// HasRewrittenReturn reports whether the return type changed.
func (p *PrototypeChanges) HasRewrittenReturn() bool { return !p.newReturn.IsZero() }

// IsReturnChangedToVoid reports whether the method no longer returns a
// value.
func (p *PrototypeChanges) IsReturnChangedToVoid() bool {
	return p.newReturn.IsVoid() && !p.oldReturn.IsVoid()
}

// IsRemoved reports whether parameter i was removed.
func (p *PrototypeChanges) IsRemoved(i int) bool {
	for _, r := range p.removed {
		if r.Index == i {
			return true
		}
	}
	return false
}

// RewriteProto applies the changes to proto.
func (p *PrototypeChanges) RewriteProto(proto graph.Proto) graph.Proto {
	if p.IsEmpty() {
		return proto
	}
	params := proto.Parameters()
	Assert(p.arity < 0 || p.arity == len(params), "PrototypeChanges.RewriteProto",
		"changes for %d parameters applied to %s", p.arity, proto)
	out := make([]graph.Type, 0, len(params)+len(p.extra))
	for i, t := range params {
		if p.IsRemoved(i) {
			continue
		}
		for _, rw := range p.rewritten {
			if rw.Index == i {
				t = rw.NewType
			}
		}
		out = append(out, t)
	}
	out = append(out, p.extra...)
	ret := proto.ReturnType()
	if p.HasRewrittenReturn() {
		ret = p.newReturn
	}
	return graph.NewProto(ret, out...)
}

// Combine returns the changes of p followed by next. next's indices refer
// to the prototype produced by p and are translated back onto p's.
func (p *PrototypeChanges) Combine(next *PrototypeChanges) *PrototypeChanges {
	if next == nil || next.IsEmpty() {
		return p
	}
	if p.IsEmpty() {
		return next
	}
	var survivors []int
	for i := 0; i < p.arity; i++ {
		if !p.IsRemoved(i) {
			survivors = append(survivors, i)
		}
	}
	Assert(next.arity < 0 || next.arity == len(survivors)+len(p.extra), "PrototypeChanges.Combine",
		"changes for %d parameters follow changes producing %d", next.arity, len(survivors)+len(p.extra))

	out := &PrototypeChanges{
		arity:             p.arity,
		removed:           slices.Clone(p.removed),
		rewritten:         slices.Clone(p.rewritten),
		oldReturn:         p.oldReturn,
		newReturn:         p.newReturn,
		convertedToStatic: p.convertedToStatic || next.convertedToStatic,
	}
	extra := slices.Clone(p.extra)
	dropExtra := make(map[int]bool)

	for _, r := range next.removed {
		if r.Index < len(survivors) {
			orig := survivors[r.Index]
			t := r.Type
			for _, rw := range p.rewritten {
				if rw.Index == orig {
					t = rw.OldType
				}
			}
			out.removed = append(out.removed, RemovedArgument{Index: orig, Type: t, IsAlwaysNull: r.IsAlwaysNull})
			out.rewritten = slices.DeleteFunc(out.rewritten, func(rw RewrittenArgument) bool { return rw.Index == orig })
			continue
		}
		dropExtra[r.Index-len(survivors)] = true
	}
	for _, rw := range next.rewritten {
		if rw.Index >= len(survivors) {
			extra[rw.Index-len(survivors)] = rw.NewType
			continue
		}
		orig := survivors[rw.Index]
		merged := false
		for i := range out.rewritten {
			if out.rewritten[i].Index == orig {
				out.rewritten[i].NewType = rw.NewType
				merged = true
			}
		}
		if !merged {
			out.rewritten = append(out.rewritten, RewrittenArgument{Index: orig, OldType: rw.OldType, NewType: rw.NewType})
		}
	}
	for i, t := range extra {
		if !dropExtra[i] {
			out.extra = append(out.extra, t)
		}
	}
	out.extra = append(out.extra, next.extra...)
	if next.HasRewrittenReturn() {
		if out.oldReturn.IsZero() {
			out.oldReturn = next.oldReturn
		}
		out.newReturn = next.newReturn
	}
	slices.SortFunc(out.removed, func(a, b RemovedArgument) int { return a.Index - b.Index })
	slices.SortFunc(out.rewritten, func(a, b RewrittenArgument) int { return a.Index - b.Index })
	return out
}

func (p *PrototypeChanges) String() string {
	if p.IsEmpty() {
		return "none"
	}
	var parts []string
	for _, r := range p.removed {
		parts = append(parts, fmt.Sprintf("-%d:%s", r.Index, r.Type))
	}
	for _, rw := range p.rewritten {
		parts = append(parts, fmt.Sprintf("%d:%s->%s", rw.Index, rw.OldType, rw.NewType))
	}
	for _, t := range p.extra {
		parts = append(parts, "+"+t.String())
	}
	if p.HasRewrittenReturn() {
		parts = append(parts, fmt.Sprintf("return:%s->%s", p.oldReturn, p.newReturn))
	}
	if p.convertedToStatic {
		parts = append(parts, "static")
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// PrototypeChangesBuilder builds a PrototypeChanges for a method with the
// given number of declared parameters.
type PrototypeChangesBuilder struct {
	p PrototypeChanges
}

func NewPrototypeChangesBuilder(arity int) *PrototypeChangesBuilder {
	return &PrototypeChangesBuilder{p: PrototypeChanges{arity: arity}}
}

func (b *PrototypeChangesBuilder) checkIndex(op string, i int) {
	Assert(i >= 0 && i < b.p.arity, op, "parameter %d out of range [0,%d)", i, b.p.arity)
	Assert(!b.p.IsRemoved(i), op, "parameter %d already removed", i)
	for _, rw := range b.p.rewritten {
		Assert(rw.Index != i, op, "parameter %d already rewritten", i)
	}
}

func (b *PrototypeChangesBuilder) RemoveArgument(i int, t graph.Type, alwaysNull bool) *PrototypeChangesBuilder {
	b.checkIndex("PrototypeChangesBuilder.RemoveArgument", i)
	b.p.removed = append(b.p.removed, RemovedArgument{Index: i, Type: t, IsAlwaysNull: alwaysNull})
	return b
}

func (b *PrototypeChangesBuilder) RewriteArgument(i int, from, to graph.Type) *PrototypeChangesBuilder {
	b.checkIndex("PrototypeChangesBuilder.RewriteArgument", i)
	b.p.rewritten = append(b.p.rewritten, RewrittenArgument{Index: i, OldType: from, NewType: to})
	return b
}

func (b *PrototypeChangesBuilder) RewriteReturn(from, to graph.Type) *PrototypeChangesBuilder {
	b.p.oldReturn, b.p.newReturn = from, to
	return b
}

func (b *PrototypeChangesBuilder) AddExtraParameter(t graph.Type) *PrototypeChangesBuilder {
	b.p.extra = append(b.p.extra, t)
	return b
}

func (b *PrototypeChangesBuilder) ConvertToStatic() *PrototypeChangesBuilder {
	b.p.convertedToStatic = true
	return b
}

func (b *PrototypeChangesBuilder) Build() *PrototypeChanges {
	out := b.p
	out.removed = slices.Clone(b.p.removed)
	out.rewritten = slices.Clone(b.p.rewritten)
	out.extra = slices.Clone(b.p.extra)
	slices.SortFunc(out.removed, func(a, b RemovedArgument) int { return a.Index - b.Index })
	slices.SortFunc(out.rewritten, func(a, b RewrittenArgument) int { return a.Index - b.Index })
	if out.IsEmpty() {
		return none
	}
	return &out
}
