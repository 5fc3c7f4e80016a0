package lens

import (
	"fmt"

	"github.com/chazu/lenschain/graph"
)

// MemberLookupResult is the result of looking up a field or method: the
// reference as the instruction names it and, when known, the reference to
// the member's defining holder.
type MemberLookupResult[R graph.Member[R]] struct {
	reference        R
	reboundReference R
}

// Reference returns the rewritten reference.
func (r MemberLookupResult[R]) Reference() R { return r.reference }

// HasReboundReference reports whether a rebound reference is known.
func (r MemberLookupResult[R]) HasReboundReference() bool { return !r.reboundReference.IsZero() }

// ReboundReference returns the rebound reference, or the zero value.
func (r MemberLookupResult[R]) ReboundReference() R { return r.reboundReference }

// RewrittenReference applies fn to the reference.
func (r MemberLookupResult[R]) RewrittenReference(fn func(R) R) R { return fn(r.reference) }

// RewrittenReboundReference applies fn to the rebound reference. It
// returns the zero value when there is no rebound reference.
func (r MemberLookupResult[R]) RewrittenReboundReference(fn func(R) R) R {
	if !r.HasReboundReference() {
		var zero R
		return zero
	}
	return fn(r.reboundReference)
}

func (r MemberLookupResult[R]) String() string {
	if r.HasReboundReference() && r.reboundReference != r.reference {
		return fmt.Sprintf("%s (rebound %s)", r.reference, r.reboundReference)
	}
	return r.reference.String()
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

// FieldLookupResult adds the casts a rewritten field access needs. A zero
// cast type means no cast.
type FieldLookupResult struct {
	MemberLookupResult[graph.Field]
	readCastType  graph.Type
	writeCastType graph.Type
}

// NewFieldLookupResult returns a result for ref with nothing else set.
func NewFieldLookupResult(ref graph.Field) FieldLookupResult {
	return FieldLookupResult{MemberLookupResult: MemberLookupResult[graph.Field]{reference: ref}}
}

func (r FieldLookupResult) ReadCastType() graph.Type  { return r.readCastType }
func (r FieldLookupResult) WriteCastType() graph.Type { return r.writeCastType }
func (r FieldLookupResult) HasReadCastType() bool     { return !r.readCastType.IsZero() }
func (r FieldLookupResult) HasWriteCastType() bool    { return !r.writeCastType.IsZero() }

// FieldLookupResultBuilder builds a FieldLookupResult.
type FieldLookupResultBuilder struct {
	res    FieldLookupResult
	hasRef bool
}

func NewFieldLookupResultBuilder() *FieldLookupResultBuilder {
	return &FieldLookupResultBuilder{}
}

func (b *FieldLookupResultBuilder) SetReference(f graph.Field) *FieldLookupResultBuilder {
	b.res.reference = f
	b.hasRef = true
	return b
}

func (b *FieldLookupResultBuilder) SetReboundReference(f graph.Field) *FieldLookupResultBuilder {
	b.res.reboundReference = f
	return b
}

func (b *FieldLookupResultBuilder) SetReadCastType(t graph.Type) *FieldLookupResultBuilder {
	b.res.readCastType = t
	return b
}

func (b *FieldLookupResultBuilder) SetWriteCastType(t graph.Type) *FieldLookupResultBuilder {
	b.res.writeCastType = t
	return b
}

func (b *FieldLookupResultBuilder) Build() FieldLookupResult {
	Assert(b.hasRef && !b.res.reference.IsZero(), "FieldLookupResultBuilder.Build", "no reference set")
	return b.res
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// MethodLookupResult adds the rewritten invocation kind and the prototype
// changes accumulated for the target.
type MethodLookupResult struct {
	MemberLookupResult[graph.Method]
	kind             graph.InvokeType
	prototypeChanges *PrototypeChanges
}

func (r MethodLookupResult) Type() graph.InvokeType { return r.kind }

// PrototypeChanges never returns nil.
func (r MethodLookupResult) PrototypeChanges() *PrototypeChanges {
	if r.prototypeChanges == nil {
		return None()
	}
	return r.prototypeChanges
}

// MethodLookupResultBuilder builds a MethodLookupResult.
type MethodLookupResultBuilder struct {
	res    MethodLookupResult
	hasRef bool
}

func NewMethodLookupResultBuilder() *MethodLookupResultBuilder {
	return &MethodLookupResultBuilder{}
}

func (b *MethodLookupResultBuilder) SetReference(m graph.Method) *MethodLookupResultBuilder {
	b.res.reference = m
	b.hasRef = true
	return b
}

func (b *MethodLookupResultBuilder) SetReboundReference(m graph.Method) *MethodLookupResultBuilder {
	b.res.reboundReference = m
	return b
}

func (b *MethodLookupResultBuilder) SetType(kind graph.InvokeType) *MethodLookupResultBuilder {
	b.res.kind = kind
	return b
}

func (b *MethodLookupResultBuilder) SetPrototypeChanges(c *PrototypeChanges) *MethodLookupResultBuilder {
	b.res.prototypeChanges = c
	return b
}

func (b *MethodLookupResultBuilder) Build() MethodLookupResult {
	Assert(b.hasRef && !b.res.reference.IsZero(), "MethodLookupResultBuilder.Build", "no reference set")
	return b.res
}
