// Package appview holds the state a compilation threads between passes:
// the program, the current graph lens, the code lens and the init-class
// lens.
//
// Passes run one at a time on the coordinator goroutine. Worker goroutines
// spawned by a pass may read the published state concurrently; only the
// coordinator installs new lenses.
package appview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/lenschain/graph"
	"github.com/chazu/lenschain/lens"
)

var log = commonlog.GetLogger("lenschain.appview")

// Options configure an AppView.
type Options struct {
	// Verify checks the round trip of every installed lens against the
	// program it was built for.
	Verify bool
	// FlattenDepth installs an AppliedGraphLens once this many lenses were
	// installed since the last flatten and code is rewritten up to the
	// head. Zero disables automatic flattening.
	FlattenDepth int
}

// state is one published snapshot. Readers load it atomically and see a
// consistent program, lens and checkpoint.
type state struct {
	app       *graph.Application
	graphLens lens.GraphLens
	codeLens  lens.GraphLens
	initClass lens.InitClassLens
}

// AppView is the driver state of one compilation.
type AppView struct {
	runID    uuid.UUID
	opts     Options
	original *graph.Application

	mu           sync.Mutex // serializes publishers
	cur          atomic.Pointer[state]
	sinceFlatten int
}

// New returns a view of app with the identity lens installed.
func New(app *graph.Application, opts Options) *AppView {
	v := &AppView{
		runID:    uuid.New(),
		opts:     opts,
		original: app,
	}
	v.cur.Store(&state{
		app:       app,
		graphLens: lens.Identity(),
		codeLens:  lens.Identity(),
		initClass: lens.ThrowingInitClassLens(),
	})
	log.Debugf("run %s: %d classes", v.runID, app.Len())
	return v
}

// RunID identifies this compilation in logs and naming snapshots.
func (v *AppView) RunID() uuid.UUID { return v.runID }

// App returns the program in the vocabulary of GraphLens.
func (v *AppView) App() *graph.Application { return v.cur.Load().app }

// OriginalApp returns the program as it was before the first pass.
func (v *AppView) OriginalApp() *graph.Application { return v.original }

// GraphLens returns the head of the chain.
func (v *AppView) GraphLens() lens.GraphLens { return v.cur.Load().graphLens }

// CodeLens returns the checkpoint up to which method bodies are rewritten.
func (v *AppView) CodeLens() lens.CodeLens { return lens.AppliedAt(v.cur.Load().codeLens) }

func (v *AppView) InitClassLens() lens.InitClassLens { return v.cur.Load().initClass }

// SetInitClassLens installs l, which must be in the vocabulary of the
// current head.
func (v *AppView) SetInitClassLens(l lens.InitClassLens) {
	v.publish(func(s *state) { s.initClass = l })
}

// SetGraphLens installs l as the head without touching the program. It
// reports whether the head changed. Installing an applied or clear-code
// lens also moves the code lens to it, since neither has code rewritings
// left to apply.
func (v *AppView) SetGraphLens(l lens.GraphLens) bool {
	changed := false
	v.publish(func(s *state) {
		if s.graphLens == l {
			return
		}
		changed = true
		s.graphLens = l
		if l.IsApplied() || l.IsClearCodeRewriting() {
			s.codeLens = l
		}
	})
	return changed
}

// RewriteWithLens installs l, whose predecessor must be the current head,
// and renames the program definitions and the init-class lens through it.
func (v *AppView) RewriteWithLens(ctx context.Context, l lens.GraphLens) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prev := v.GraphLens()
	lens.Assert(l.Previous() == prev, "AppView.RewriteWithLens", "%s is not built on the current head", l)
	lens.Assert(!l.IsApplied() && !l.IsClearCodeRewriting(), "AppView.RewriteWithLens",
		"checkpoint lenses are installed with SetGraphLens")

	old := v.App()
	at := lens.AppliedAt(prev)
	app := rehome(old.Map(func(c *graph.Class) *graph.Class {
		return rewriteClass(l, at, c)
	}))

	if v.opts.Verify {
		if err := lens.VerifyRoundTrip(l, at, lens.ReferencesOf(old)); err != nil {
			return fmt.Errorf("appview: verify %s: %w", l, err)
		}
		if err := lens.VerifyMappingToOriginalProgram(l, app, v.original); err != nil {
			return fmt.Errorf("appview: verify %s: %w", l, err)
		}
	}

	v.publish(func(s *state) {
		s.app = app
		s.graphLens = l
		s.initClass = s.initClass.RewrittenWithLens(l, at)
	})
	v.mu.Lock()
	v.sinceFlatten++
	v.mu.Unlock()
	log.Infof("run %s: installed lens, %d classes", v.runID, app.Len())
	return v.maybeFlatten()
}

func rewriteClass(l lens.GraphLens, at lens.CodeLens, c *graph.Class) *graph.Class {
	out := &graph.Class{
		Type:        l.LookupClassType(c.Type, at),
		IsInterface: c.IsInterface,
	}
	if !c.Super.IsZero() {
		out.Super = l.LookupClassType(c.Super, at)
	}
	for _, itf := range c.Interfaces {
		out.Interfaces = append(out.Interfaces, l.LookupClassType(itf, at))
	}
	for _, f := range c.Fields {
		out.Fields = append(out.Fields, l.GetRenamedFieldSignature(f, at))
	}
	for _, m := range c.Methods {
		out.Methods = append(out.Methods, l.GetRenamedMethodSignature(m, at))
	}
	return out
}

// rehome moves members whose holder changed into the class now defining
// that holder. Members of an undefined holder stay where they are.
func rehome(app *graph.Application) *graph.Application {
	classes := app.Classes()
	moved := false
	for _, c := range classes {
		fields := c.Fields[:0]
		for _, f := range c.Fields {
			if dst := app.DefinitionFor(f.Holder); dst != nil && dst != c {
				dst.Fields = append(dst.Fields, f)
				moved = true
				continue
			}
			fields = append(fields, f)
		}
		c.Fields = fields
		methods := c.Methods[:0]
		for _, m := range c.Methods {
			if dst := app.DefinitionFor(m.Holder); dst != nil && dst != c {
				dst.Methods = append(dst.Methods, m)
				moved = true
				continue
			}
			methods = append(methods, m)
		}
		c.Methods = methods
	}
	if !moved {
		return app
	}
	return graph.NewApplication(classes...)
}

// MarkCodeRewritten records that every method body has been rewritten up
// to the current head.
func (v *AppView) MarkCodeRewritten() error {
	v.publish(func(s *state) { s.codeLens = s.graphLens })
	return v.maybeFlatten()
}

// ClearCodeRewritings installs a lens that makes code lookups identity,
// for passes that rewrite method bodies themselves.
func (v *AppView) ClearCodeRewritings() {
	head := v.GraphLens()
	if !head.HasCodeRewritings() {
		return
	}
	v.SetGraphLens(lens.NewClearCodeRewritingGraphLens(head))
}

// ErrCodeNotRewritten is returned by Flatten while method bodies still
// depend on code rewritings of the head.
var ErrCodeNotRewritten = errors.New("appview: code is not rewritten up to the current lens")

// Flatten replaces the chain by an AppliedGraphLens over the current
// program.
func (v *AppView) Flatten() error {
	s := v.cur.Load()
	if s.graphLens.IsIdentity() || s.graphLens.IsApplied() {
		return nil
	}
	if s.graphLens.HasCodeRewritings() && s.codeLens != s.graphLens {
		return ErrCodeNotRewritten
	}
	applied := lens.NewAppliedGraphLens(s.graphLens, s.app)
	v.SetGraphLens(applied)
	v.mu.Lock()
	v.sinceFlatten = 0
	v.mu.Unlock()
	log.Infof("run %s: flattened lens chain", v.runID)
	return nil
}

func (v *AppView) maybeFlatten() error {
	if v.opts.FlattenDepth <= 0 {
		return nil
	}
	v.mu.Lock()
	due := v.sinceFlatten >= v.opts.FlattenDepth
	v.mu.Unlock()
	s := v.cur.Load()
	if !due || s.codeLens != s.graphLens {
		return nil
	}
	return v.Flatten()
}

func (v *AppView) publish(update func(*state)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := *v.cur.Load()
	update(&next)
	v.cur.Store(&next)
}

// RunPass runs fn as the pass name. An internal error raised by a lens
// during the pass fails the compilation and is returned; any other panic
// is propagated.
func (v *AppView) RunPass(ctx context.Context, name string, fn func(context.Context, *AppView) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var ie *lens.InternalError
			if e, ok := r.(error); ok && errors.As(e, &ie) {
				log.Errorf("run %s: pass %s: %s", v.runID, name, ie)
				err = fmt.Errorf("appview: pass %s: %w", name, ie)
				return
			}
			panic(r)
		}
	}()
	log.Debugf("run %s: pass %s", v.runID, name)
	if err := fn(ctx, v); err != nil {
		return fmt.Errorf("appview: pass %s: %w", name, err)
	}
	return nil
}
