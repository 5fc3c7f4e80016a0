package lens

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/lenschain/graph"
)

func TestClearCodeRewritingFence(t *testing.T) {
	l1, l2 := buildEndToEnd()
	fence := NewClearCodeRewritingGraphLens(l2)
	fooA := graph.NewMethod(typeA, "foo", voidProto)
	bar := graph.NewMethod(typeB, "bar", voidProto)

	if fence.HasCodeRewritings() || !fence.IsContextFreeForMethods(NoCodeLens) {
		t.Error("fence should have no code rewritings and be context-free")
	}
	if got := fence.LookupType(typeA, NoCodeLens); got != typeA {
		t.Errorf("LookupType through fence = %s, want %s", got, typeA)
	}
	if got := fence.LookupMethod(fooA, mainCtx, graph.InvokeVirtual, NoCodeLens); got.Reference() != fooA || got.Type() != graph.InvokeVirtual {
		t.Errorf("LookupMethod through fence = %s/%s", got.Reference(), got.Type())
	}
	// Names still resolve below the fence.
	if got := fence.GetOriginalMethodSignature(bar, NoCodeLens); got != fooA {
		t.Errorf("GetOriginalMethodSignature through fence = %s, want %s", got, fooA)
	}
	if got := fence.GetOriginalType(typeA2, AppliedAt(l1)); got != typeA2 {
		t.Errorf("GetOriginalType relative to L1 = %s, want %s", got, typeA2)
	}

	// A lens above the fence rewrites only its own delta.
	above := NewNestedBuilder("later").MapType(typeB, typeC).Build(fence)
	if got := above.LookupMethod(bar, mainCtx, graph.InvokeStatic, NoCodeLens).Reference(); got != bar.WithHolder(typeC) {
		t.Errorf("lookup above fence = %s, want C.bar", got)
	}
	if got := above.LookupType(typeA, NoCodeLens); got != typeA {
		t.Errorf("LookupType above fence = %s, want %s", got, typeA)
	}
	if got := above.GetOriginalMethodSignature(bar.WithHolder(typeC), NoCodeLens); got != fooA {
		t.Errorf("original above fence = %s, want %s", got, fooA)
	}
	if Depth(above, NoCodeLens) != 1 {
		t.Errorf("Depth above fence = %d, want 1", Depth(above, NoCodeLens))
	}
}

func appliedFixture() (GraphLens, *graph.Application) {
	// A renamed to A2, then B merged into A2.
	fa := graph.NewField(typeA, "x", graph.Int)
	fb := graph.NewField(typeB, "y", graph.Int)
	mb := graph.NewMethod(typeB, "run", voidProto)
	l1 := NewNestedBuilder("rename").MapType(typeA, typeA2).Build(Identity())
	merged := graph.NewMethod(typeA2, "run", voidProto)
	l2 := NewNestedBuilder("merge").
		MergeType(typeA2, typeB).
		MoveField(fb, fb.WithHolder(typeA2)).
		MoveMethod(mb, graph.NewMethod(typeA2, "run$b", voidProto)).
		Build(l1)
	app := graph.NewApplication(
		&graph.Class{
			Type:    typeA2,
			Fields:  []graph.Field{fa.WithHolder(typeA2), fb.WithHolder(typeA2)},
			Methods: []graph.Method{merged, graph.NewMethod(typeA2, "run$b", voidProto)},
		},
		&graph.Class{Type: typeC, Methods: []graph.Method{graph.NewMethod(typeC, "main", voidProto)}},
	)
	return l2, app
}

func TestAppliedLensFlattensChain(t *testing.T) {
	l2, app := appliedFixture()
	applied := NewAppliedGraphLens(l2, app)

	if applied.Previous() != Identity() {
		t.Error("applied lens should sit directly on identity")
	}
	if applied.HasCodeRewritings() || !applied.IsApplied() || !applied.IsContextFreeForMethods(NoCodeLens) {
		t.Error("applied lens flags mismatch")
	}
	if Depth(applied, NoCodeLens) != 1 {
		t.Errorf("Depth = %d, want 1", Depth(applied, NoCodeLens))
	}
	if diff := cmp.Diff([]graph.Type{typeA, typeB}, applied.GetOriginalTypes(typeA2, NoCodeLens)); diff != "" {
		t.Errorf("GetOriginalTypes mismatch (-want +got):\n%s", diff)
	}
	for _, c := range []struct {
		current, original graph.Method
	}{
		{graph.NewMethod(typeA2, "run", voidProto), graph.NewMethod(typeA, "run", voidProto)},
		{graph.NewMethod(typeA2, "run$b", voidProto), graph.NewMethod(typeB, "run", voidProto)},
		{graph.NewMethod(typeC, "main", voidProto), graph.NewMethod(typeC, "main", voidProto)},
	} {
		if got := applied.GetOriginalMethodSignature(c.current, NoCodeLens); got != c.original {
			t.Errorf("GetOriginalMethodSignature(%s) = %s, want %s", c.current, got, c.original)
		}
		if got := l2.GetOriginalMethodSignature(c.current, NoCodeLens); got != c.original {
			t.Errorf("chain disagrees for %s: %s", c.current, got)
		}
		if got := applied.GetRenamedMethodSignature(c.original, NoCodeLens); got != c.current {
			t.Errorf("GetRenamedMethodSignature(%s) = %s, want %s", c.original, got, c.current)
		}
	}
	fb := graph.NewField(typeB, "y", graph.Int)
	if got := applied.GetOriginalFieldSignature(fb.WithHolder(typeA2), NoCodeLens); got != fb {
		t.Errorf("GetOriginalFieldSignature = %s, want %s", got, fb)
	}
	if got := applied.LookupField(fb, NoCodeLens).Reference(); got != fb.WithHolder(typeA2) {
		t.Errorf("LookupField(original) = %s", got)
	}
	if got := applied.LookupType(typeB, NoCodeLens); got != typeA2 {
		t.Errorf("LookupType(B) = %s, want A2", got)
	}
	// Once installed, code is already in current names.
	if got := applied.LookupType(typeB, AppliedAt(applied)); got != typeB {
		t.Errorf("LookupType relative to itself = %s, want B", got)
	}
	if err := VerifyMappingToOriginalProgram(applied, app, graph.NewApplication(
		&graph.Class{Type: typeA, Fields: []graph.Field{graph.NewField(typeA, "x", graph.Int)}, Methods: []graph.Method{graph.NewMethod(typeA, "run", voidProto)}},
		&graph.Class{Type: typeB, Fields: []graph.Field{fb}, Methods: []graph.Method{graph.NewMethod(typeB, "run", voidProto)}},
		&graph.Class{Type: typeC, Methods: []graph.Method{graph.NewMethod(typeC, "main", voidProto)}},
	)); err != nil {
		t.Errorf("VerifyMappingToOriginalProgram: %v", err)
	}
}

func TestAppliedLensExtraOriginals(t *testing.T) {
	// A bridge and its target share one original.
	orig := graph.NewMethod(typeA, "m", voidProto)
	impl := graph.NewMethod(typeA, "m$impl", voidProto)
	bridge := graph.NewMethod(typeA, "m$bridge", voidProto)
	l := NewNestedBuilder("move").MoveMethod(orig, impl).Build(Identity())
	withBridge := NewContextualMergeBuilder("bridges", graph.NewApplication()).
		RecordBridge(bridge, impl).
		Build(l)
	app := graph.NewApplication(&graph.Class{Type: typeA, Methods: []graph.Method{impl, bridge}})
	applied := NewAppliedGraphLens(withBridge, app)

	var got []graph.Method
	applied.ForEachRenamedMethod(func(current, original graph.Method) {
		if original != orig {
			t.Errorf("original of %s = %s, want %s", current, original, orig)
		}
		got = append(got, current)
	})
	if diff := cmp.Diff([]graph.Method{bridge, impl}, got); diff != "" {
		t.Errorf("renamed methods mismatch (-want +got):\n%s", diff)
	}
	if got := applied.GetOriginalMethodSignature(impl, NoCodeLens); got != orig {
		t.Errorf("GetOriginalMethodSignature(impl) = %s, want %s", got, orig)
	}
}

func TestAppliedLensExtraFieldOriginals(t *testing.T) {
	// A.x moves to A.y, then A becomes A2 and a fresh A2.x is added. Both
	// A2.x and A2.y trace back to A.x.
	x := graph.NewField(typeA, "x", graph.Int)
	l := NewNestedBuilder("move").MoveField(x, x.WithName("y")).Build(Identity())
	l = NewNestedBuilder("rename").MapType(typeA, typeA2).Build(l)
	fresh := graph.NewField(typeA2, "x", graph.Int)
	moved := graph.NewField(typeA2, "y", graph.Int)
	app := graph.NewApplication(&graph.Class{Type: typeA2, Fields: []graph.Field{moved, fresh}})
	applied := NewAppliedGraphLens(l, app)

	var got []graph.Field
	applied.ForEachRenamedField(func(current, original graph.Field) {
		if original != x {
			t.Errorf("original of %s = %s, want %s", current, original, x)
		}
		got = append(got, current)
	})
	if diff := cmp.Diff([]graph.Field{fresh, moved}, got); diff != "" {
		t.Errorf("renamed fields mismatch (-want +got):\n%s", diff)
	}
	for _, f := range []graph.Field{fresh, moved} {
		if got := applied.GetOriginalFieldSignature(f, NoCodeLens); got != x {
			t.Errorf("GetOriginalFieldSignature(%s) = %s, want %s", f, got, x)
		}
	}
}

func TestVerifyMappingReportsUnknownOriginals(t *testing.T) {
	l := NewNestedBuilder("rename").MapType(typeA, typeA2).Build(Identity())
	current := graph.NewApplication(&graph.Class{Type: typeA2})
	if err := VerifyMappingToOriginalProgram(l, current, graph.NewApplication()); err == nil {
		t.Error("expected an error for an unknown original class")
	}
}

func TestAssertReferencesNotModified(t *testing.T) {
	l := NewNestedBuilder("rename").MapType(typeA, typeA2).Build(Identity())
	AssertReferencesNotModified(l, NoCodeLens, References{Types: []graph.Type{typeB}})
	expectInternalError(t, "AssertReferencesNotModified", func() {
		AssertReferencesNotModified(l, NoCodeLens, References{Types: []graph.Type{typeA}})
	})
}

func TestContextualMergeRewritesSuperCalls(t *testing.T) {
	// class B extends A; A is merged into B. A.m is kept as B.m$A and
	// B.m's super call to A.m becomes a direct call of B.m$A.
	am := graph.NewMethod(typeA, "m", voidProto)
	bm := graph.NewMethod(typeB, "m", voidProto)
	moved := graph.NewMethod(typeB, "m$A", voidProto)
	app := graph.NewApplication(
		&graph.Class{Type: typeA, Methods: []graph.Method{am}},
		&graph.Class{Type: typeB, Super: typeA, Methods: []graph.Method{bm}},
	)
	b := NewContextualMergeBuilder("vertical", app)
	b.MergeType(typeB, typeA)
	b.MoveMethod(am, moved)
	b.MapSuperToDirect(typeB, am, moved).MarkMerged(moved)
	l := b.Build(Identity())

	if l.IsContextFreeForMethods(NoCodeLens) {
		t.Error("lens with super-to-direct rewrites should not be context-free")
	}
	if !l.IsContextFreeForMethods(AppliedAt(l)) {
		t.Error("lens should be context-free relative to itself")
	}
	res := l.LookupMethod(am, bm, graph.InvokeSuper, NoCodeLens)
	if res.Reference() != moved || res.Type() != graph.InvokeDirect {
		t.Errorf("super call from B.m = %s/%s, want %s/direct", res.Reference(), res.Type(), moved)
	}
	if !res.HasReboundReference() || res.ReboundReference() != moved {
		t.Errorf("super call from B.m rebound to %s, want %s", res.ReboundReference(), moved)
	}
	// From inside the moved method the super call is left alone.
	res = l.LookupMethod(am, moved, graph.InvokeSuper, NoCodeLens)
	if res.Type() != graph.InvokeSuper {
		t.Errorf("super call from merged method kind = %s, want super", res.Type())
	}
	// Virtual calls are plain moves.
	res = l.LookupMethod(am, mainCtx, graph.InvokeVirtual, NoCodeLens)
	if res.Reference() != moved || res.Type() != graph.InvokeVirtual {
		t.Errorf("virtual call = %s/%s, want %s/virtual", res.Reference(), res.Type(), moved)
	}
	expectInternalError(t, "LookupMethod without context", func() {
		l.LookupMethod(am, graph.Method{}, graph.InvokeSuper, NoCodeLens)
	})
	// The context is translated for lenses below the head.
	renamed := graph.NewMethod(typeC, "m", voidProto)
	above := NewNestedBuilder("rename").MapType(typeB, typeC).MoveMethod(bm, renamed).Build(l)
	res = above.LookupMethod(am, renamed, graph.InvokeSuper, NoCodeLens)
	if res.Reference() != moved.WithHolder(typeC) || res.Type() != graph.InvokeDirect {
		t.Errorf("super call through rename = %s/%s", res.Reference(), res.Type())
	}
}

func TestInvocationKindMismatchIsPreserved(t *testing.T) {
	typeI := graph.ClassType("com/example/I")
	im := graph.NewMethod(typeI, "m", voidProto)
	cm := graph.NewMethod(typeC, "m", voidProto)
	app := graph.NewApplication(
		&graph.Class{Type: typeI, IsInterface: true, Methods: []graph.Method{im}},
		&graph.Class{Type: typeC, Interfaces: []graph.Type{typeI}},
	)
	b := NewContextualMergeBuilder("vertical", app)
	b.MergeType(typeC, typeI)
	b.MoveMethod(im, cm)
	l := b.Build(Identity())

	tests := []struct {
		kind, want graph.InvokeType
	}{
		// Well-formed interface call takes the class's kind.
		{graph.InvokeInterface, graph.InvokeVirtual},
		// invoke-virtual of an interface method stays mismatched.
		{graph.InvokeVirtual, graph.InvokeInterface},
		{graph.InvokeStatic, graph.InvokeStatic},
		{graph.InvokeDirect, graph.InvokeDirect},
	}
	for _, tt := range tests {
		got := l.LookupMethod(im, mainCtx, tt.kind, NoCodeLens)
		if got.Reference() != cm || got.Type() != tt.want {
			t.Errorf("%s call = %s/%s, want %s/%s", tt.kind, got.Reference(), got.Type(), cm, tt.want)
		}
	}
}

func TestMapVirtualInterfaceInvocationTypesUnknownHolders(t *testing.T) {
	app := graph.NewApplication(&graph.Class{Type: typeI2(), IsInterface: true})
	m := graph.NewMethod(typeA, "m", voidProto)
	// New holder unknown: kind unchanged.
	if got := MapVirtualInterfaceInvocationTypes(app, m, m, graph.InvokeVirtual); got != graph.InvokeVirtual {
		t.Errorf("unknown holder kind = %s, want virtual", got)
	}
	// Original holder unknown: choose by new holder.
	n := graph.NewMethod(typeI2(), "m", voidProto)
	if got := MapVirtualInterfaceInvocationTypes(app, n, m, graph.InvokeVirtual); got != graph.InvokeInterface {
		t.Errorf("interface holder kind = %s, want interface", got)
	}
}

func typeI2() graph.Type { return graph.ClassType("com/example/I2") }

func TestInitClassLens(t *testing.T) {
	expectInternalError(t, "throwing lens", func() {
		ThrowingInitClassLens().InitClassField(typeA)
	})
	if ThrowingInitClassLens().RewrittenWithLens(Identity(), NoCodeLens) != ThrowingInitClassLens() {
		t.Error("throwing lens should rewrite to itself")
	}

	fa := graph.NewField(typeA, "$a", graph.Int)
	fb := graph.NewField(typeB, "$b", graph.Int)
	b := NewInitClassLensBuilder()
	b.Map(typeA, fa)
	b.Map(typeB, fb)
	b.Map(typeB, fb)
	expectInternalError(t, "conflicting Map", func() { b.Map(typeB, fa) })
	final := b.Build()
	if !final.IsFinal() || final.InitClassField(typeA) != fa {
		t.Errorf("InitClassField(A) = %s", final.InitClassField(typeA))
	}
	expectInternalError(t, "unmapped class", func() { final.InitClassField(typeC) })

	// A merged into B: B keeps its own field.
	l := NewNestedBuilder("merge").MergeType(typeB, typeA).Build(Identity())
	rewritten := final.RewrittenWithLens(l, NoCodeLens)
	if got := rewritten.InitClassField(typeB); got != fb {
		t.Errorf("InitClassField(B) after merge = %s, want %s", got, fb)
	}
	// A renamed: its field follows.
	r := NewNestedBuilder("rename").MapType(typeA, typeA2).Build(Identity())
	rewritten = final.RewrittenWithLens(r, NoCodeLens)
	if got, want := rewritten.InitClassField(typeA2), fa.WithHolder(typeA2); got != want {
		t.Errorf("InitClassField(A2) = %s, want %s", got, want)
	}
}

func TestPrototypeChangesCombine(t *testing.T) {
	proto := graph.NewProto(graph.Void, graph.Int, graph.Long, typeA)
	first := NewPrototypeChangesBuilder(3).
		RemoveArgument(1, graph.Long, false).
		AddExtraParameter(graph.Int).
		Build()
	afterFirst := first.RewriteProto(proto)
	if want := graph.NewProto(graph.Void, graph.Int, typeA, graph.Int); afterFirst != want {
		t.Fatalf("first.RewriteProto = %s, want %s", afterFirst, want)
	}

	tests := []struct {
		name string
		next *PrototypeChanges
	}{
		{"remove-survivor", NewPrototypeChangesBuilder(3).RemoveArgument(0, graph.Int, false).Build()},
		{"rewrite-survivor", NewPrototypeChangesBuilder(3).RewriteArgument(1, typeA, typeB).Build()},
		{"remove-extra", NewPrototypeChangesBuilder(3).RemoveArgument(2, graph.Int, false).Build()},
		{"rewrite-extra", NewPrototypeChangesBuilder(3).RewriteArgument(2, graph.Int, graph.Long).Build()},
		{"return-and-static", NewPrototypeChangesBuilder(3).RewriteReturn(graph.Void, graph.Int).ConvertToStatic().Build()},
	}
	for _, tt := range tests {
		combined := first.Combine(tt.next)
		want := tt.next.RewriteProto(afterFirst)
		if got := combined.RewriteProto(proto); got != want {
			t.Errorf("%s: combined.RewriteProto = %s, want %s", tt.name, got, want)
		}
		if tt.next.IsConvertedToStatic() && !combined.IsConvertedToStatic() {
			t.Errorf("%s: static conversion lost", tt.name)
		}
	}

	if None().Combine(first) != first || first.Combine(None()) != first {
		t.Error("None should be the unit of Combine")
	}
	expectInternalError(t, "arity mismatch", func() {
		first.Combine(NewPrototypeChangesBuilder(1).RemoveArgument(0, graph.Int, false).Build())
	})
	expectInternalError(t, "remove twice", func() {
		NewPrototypeChangesBuilder(2).RemoveArgument(0, graph.Int, false).RemoveArgument(0, graph.Int, false)
	})
	if NewPrototypeChangesBuilder(2).Build() != None() {
		t.Error("empty builder should yield None")
	}
}

func TestLookupResultBuilders(t *testing.T) {
	f := graph.NewField(typeA, "x", graph.Int)
	res := NewFieldLookupResultBuilder().SetReference(f).SetReboundReference(f.WithHolder(typeS)).SetWriteCastType(typeB).Build()
	if res.Reference() != f || res.ReboundReference().Holder != typeS || res.WriteCastType() != typeB {
		t.Errorf("FieldLookupResult = %v", res)
	}
	if got := res.RewrittenReboundReference(func(f graph.Field) graph.Field { return f.WithName("y") }); got.Name != "y" {
		t.Errorf("RewrittenReboundReference = %s", got)
	}
	expectInternalError(t, "field builder without reference", func() { NewFieldLookupResultBuilder().Build() })

	m := graph.NewMethod(typeA, "m", voidProto)
	mres := NewMethodLookupResultBuilder().SetReference(m).SetType(graph.InvokeStatic).Build()
	if mres.Type() != graph.InvokeStatic || !mres.PrototypeChanges().IsEmpty() || mres.HasReboundReference() {
		t.Errorf("MethodLookupResult = %v", mres)
	}
	if !NewFieldLookupResult(f).RewrittenReboundReference(func(f graph.Field) graph.Field { return f }).IsZero() {
		t.Error("RewrittenReboundReference without rebound should be zero")
	}
	expectInternalError(t, "method builder without reference", func() { NewMethodLookupResultBuilder().Build() })
}
