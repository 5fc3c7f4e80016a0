package coderewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/lenschain/appview"
	"github.com/chazu/lenschain/graph"
	"github.com/chazu/lenschain/lens"
)

var (
	typeA  = graph.ClassType("com/example/A")
	typeA2 = graph.ClassType("com/example/A2")
	typeB  = graph.ClassType("com/example/B")
	mainT  = graph.ClassType("com/example/Main")

	voidProto = graph.NewProto(graph.Void)
	mainM     = graph.NewMethod(mainT, "main", voidProto)
)

func mustParse(t *testing.T, m graph.Method, lines ...string) Code {
	t.Helper()
	code, err := ParseCode(m, lines)
	if err != nil {
		t.Fatalf("ParseCode: %v", err)
	}
	return code
}

func listing(code Code) []string {
	out := make([]string, len(code.Instructions))
	for i, in := range code.Instructions {
		out[i] = in.String()
	}
	return out
}

// Identity -> {A -> A2} -> {A2.foo -> B.bar, static}
func endToEnd() lens.GraphLens {
	l1 := lens.NewNestedBuilder("rename").MapType(typeA, typeA2).Build(lens.Identity())
	foo := graph.NewMethod(typeA2, "foo", voidProto)
	bar := graph.NewMethod(typeB, "bar", voidProto)
	return lens.NewNestedBuilder("move").
		MoveMethod(foo, bar).
		SetInvokeType(bar, graph.InvokeStatic).
		Build(l1)
}

func TestParseInstructionRoundTrip(t *testing.T) {
	for _, s := range []string{
		"invoke-virtual Lcom/example/A;->foo(I)V",
		"invoke-super Lcom/example/A;->m()V",
		"sget Lcom/example/A;->x:I",
		"iput Lcom/example/A;->y:Lcom/example/B;",
		"new-instance Lcom/example/A;",
		"check-cast [Lcom/example/A;",
		"const-class Lcom/example/B;",
		"init-class Lcom/example/A;",
		"pop",
		"return",
	} {
		in, err := ParseInstruction(s)
		if err != nil {
			t.Errorf("ParseInstruction(%q): %v", s, err)
			continue
		}
		if got := in.String(); got != s {
			t.Errorf("String() = %q, want %q", got, s)
		}
	}
	for _, s := range []string{"jump 3", "invoke-sideways La;->m()V", "sget La;", "check-cast Q"} {
		if _, err := ParseInstruction(s); err == nil {
			t.Errorf("ParseInstruction(%q) should fail", s)
		}
	}
}

func TestRewriteEndToEnd(t *testing.T) {
	code := mustParse(t, mainM,
		"new-instance Lcom/example/A;",
		"invoke-virtual Lcom/example/A;->foo()V",
		"sget Lcom/example/A;->x:I",
		"check-cast [[Lcom/example/A;",
		"const-class Lcom/example/B;",
		"init-class Lcom/example/A;",
		"return",
	)
	got := New(endToEnd(), lens.NoCodeLens, 1).Rewrite(code)
	want := []string{
		"new-instance Lcom/example/A2;",
		"invoke-static Lcom/example/B;->bar()V",
		"sget Lcom/example/A2;->x:I",
		"check-cast [[Lcom/example/A2;",
		"const-class Lcom/example/B;",
		"init-class Lcom/example/A2;",
		"return",
	}
	if diff := cmp.Diff(want, listing(got)); diff != "" {
		t.Errorf("rewritten code mismatch (-want +got):\n%s", diff)
	}
	if got.Method != mainM {
		t.Errorf("method = %s, want %s", got.Method, mainM)
	}
	if !strings.Contains(got.Disassemble(), "0001  invoke-static") {
		t.Errorf("Disassemble:\n%s", got.Disassemble())
	}
}

func TestRewriteStopsAtCodeLens(t *testing.T) {
	head := endToEnd()
	code := mustParse(t, mainM, "invoke-virtual Lcom/example/A2;->foo()V")
	got := New(head, lens.AppliedAt(head.Previous()), 1).Rewrite(code)
	if diff := cmp.Diff([]string{"invoke-static Lcom/example/B;->bar()V"}, listing(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRewriteInsertsFieldCasts(t *testing.T) {
	from := graph.NewField(typeA, "f", typeA)
	to := graph.NewField(typeB, "f", graph.ClassType("java/lang/Object"))
	l := lens.NewNestedBuilder("generalize").
		MoveField(from, to).
		SetReadCastType(to, typeA).
		SetWriteCastType(to, typeA).
		Build(lens.Identity())
	code := mustParse(t, mainM,
		"iget Lcom/example/A;->f:Lcom/example/A;",
		"iput Lcom/example/A;->f:Lcom/example/A;",
	)
	got := New(l, lens.NoCodeLens, 1).Rewrite(code)
	want := []string{
		"iget Lcom/example/B;->f:Ljava/lang/Object;",
		"check-cast Lcom/example/A;",
		"check-cast Lcom/example/A;",
		"iput Lcom/example/B;->f:Ljava/lang/Object;",
	}
	if diff := cmp.Diff(want, listing(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRewriteUsesEnclosingMethodAsContext(t *testing.T) {
	am := graph.NewMethod(typeA, "m", voidProto)
	bm := graph.NewMethod(typeB, "m", voidProto)
	moved := graph.NewMethod(typeB, "m$A", voidProto)
	app := graph.NewApplication(
		&graph.Class{Type: typeA, Methods: []graph.Method{am}},
		&graph.Class{Type: typeB, Super: typeA, Methods: []graph.Method{bm}},
	)
	b := lens.NewContextualMergeBuilder("vertical", app)
	b.MergeType(typeB, typeA)
	b.MoveMethod(am, moved)
	b.MapSuperToDirect(typeB, am, moved).MarkMerged(moved)
	l := b.Build(lens.Identity())

	r := New(l, lens.NoCodeLens, 1)
	got := r.Rewrite(mustParse(t, bm, "invoke-super Lcom/example/A;->m()V"))
	if diff := cmp.Diff([]string{"invoke-direct Lcom/example/B;->m$A()V"}, listing(got)); diff != "" {
		t.Errorf("super call from B.m (-want +got):\n%s", diff)
	}
	got = r.Rewrite(mustParse(t, am, "invoke-super Lcom/example/A;->m()V"))
	if diff := cmp.Diff([]string{"invoke-super Lcom/example/B;->m$A()V"}, listing(got)); diff != "" {
		t.Errorf("super call from merged method (-want +got):\n%s", diff)
	}
	if got.Method != moved {
		t.Errorf("merged method renamed to %s, want %s", got.Method, moved)
	}
}

func TestRewriteAllKeepsOrder(t *testing.T) {
	head := endToEnd()
	var codes []Code
	for i := range 64 {
		m := graph.NewMethod(mainT, fmt.Sprintf("m%d", i), voidProto)
		codes = append(codes, mustParse(t, m, "invoke-virtual Lcom/example/A;->foo()V", "new-instance Lcom/example/A;"))
	}
	out, err := New(head, lens.NoCodeLens, 4).RewriteAll(context.Background(), codes)
	if err != nil {
		t.Fatalf("RewriteAll: %v", err)
	}
	for i, code := range out {
		if code.Method != codes[i].Method {
			t.Fatalf("out[%d] = %s, want %s", i, code.Method, codes[i].Method)
		}
		if code.Instructions[0].Kind != graph.InvokeStatic || code.Instructions[1].Type != typeA2 {
			t.Errorf("out[%d] = %v", i, listing(code))
		}
	}
}

func TestRewriteAllReturnsInternalErrors(t *testing.T) {
	// A lens that is not context-free fails lookups made without one.
	am := graph.NewMethod(typeA, "m", voidProto)
	b := lens.NewContextualMergeBuilder("vertical", graph.NewApplication())
	b.MergeType(typeB, typeA)
	b.MapSuperToDirect(typeB, am, am.WithHolder(typeB))
	l := b.Build(lens.Identity())
	codes := []Code{
		{Method: mainM, Instructions: []Instruction{Invoke(graph.InvokeSuper, am)}},
		{Instructions: []Instruction{Invoke(graph.InvokeSuper, am)}},
	}
	_, err := New(l, lens.NoCodeLens, 2).RewriteAll(context.Background(), codes)
	var ie *lens.InternalError
	if !errors.As(err, &ie) {
		t.Errorf("RewriteAll error = %v, want *lens.InternalError", err)
	}
	if out, err := New(l, lens.NoCodeLens, 2).RewriteAll(context.Background(), codes[:1]); err != nil || len(out) != 1 {
		t.Errorf("RewriteAll with context = %v, %v", out, err)
	}
}

func TestLowerInitClass(t *testing.T) {
	code := Code{Method: mainM, Instructions: []Instruction{InitClass(typeA), {Op: OpReturn}}}
	ib := lens.NewInitClassLensBuilder()
	ib.Map(typeA, graph.NewField(typeA, "$init", graph.Int))
	got := LowerInitClass(code, ib.Build())
	want := []string{"sget Lcom/example/A;->$init:I", "pop", "return"}
	if diff := cmp.Diff(want, listing(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	defer func() {
		if recover() == nil {
			t.Error("LowerInitClass with the throwing lens should panic")
		}
	}()
	LowerInitClass(code, lens.ThrowingInitClassLens())
}

func TestRewriteAllHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	codes := []Code{{Method: mainM}}
	if _, err := New(lens.Identity(), lens.NoCodeLens, 1).RewriteAll(ctx, codes); !errors.Is(err, context.Canceled) {
		t.Errorf("RewriteAll = %v, want context.Canceled", err)
	}
}

func TestRewriteViewLowersInitClass(t *testing.T) {
	ctx := context.Background()
	app := graph.NewApplication(
		&graph.Class{Type: typeA, Fields: []graph.Field{graph.NewField(typeA, "$init", graph.Int)}},
		&graph.Class{Type: mainT, Methods: []graph.Method{mainM}},
	)
	v := appview.New(app, appview.Options{Verify: true})
	ib := lens.NewInitClassLensBuilder()
	ib.Map(typeA, graph.NewField(typeA, "$init", graph.Int))
	v.SetInitClassLens(ib.Build())

	l := lens.NewNestedBuilder("rename").MapType(typeA, typeA2).Build(v.GraphLens())
	if err := v.RewriteWithLens(ctx, l); err != nil {
		t.Fatal(err)
	}
	codes := []Code{mustParse(t, mainM, "init-class Lcom/example/A;", "return")}
	out, err := RewriteView(ctx, v, codes, 2)
	if err != nil {
		t.Fatalf("RewriteView: %v", err)
	}
	want := []string{"sget Lcom/example/A2;->$init:I", "pop", "return"}
	if diff := cmp.Diff(want, listing(out[0])); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if cl, _ := v.CodeLens().Lens(); cl != l {
		t.Error("RewriteView should move the code lens to the head")
	}
}
