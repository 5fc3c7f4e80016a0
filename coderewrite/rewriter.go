// Package coderewrite rewrites the operands of method bodies through the
// lens chain, from the code lens up to the current head.
package coderewrite

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/lenschain/appview"
	"github.com/chazu/lenschain/graph"
	"github.com/chazu/lenschain/lens"
)

var log = commonlog.GetLogger("lenschain.coderewrite")

// Rewriter rewrites code in the vocabulary of a checkpoint into the
// vocabulary of a lens.
type Rewriter struct {
	lens    lens.GraphLens
	at      lens.CodeLens
	workers int
}

// New returns a rewriter from at to l. workers bounds RewriteAll; zero
// means GOMAXPROCS.
func New(l lens.GraphLens, at lens.CodeLens, workers int) *Rewriter {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Rewriter{lens: l, at: at, workers: workers}
}

// ForView returns a rewriter from the view's code lens to its head.
func ForView(v *appview.AppView, workers int) *Rewriter {
	return New(v.GraphLens(), v.CodeLens(), workers)
}

// Rewrite returns code with every reference operand rewritten. The method
// itself is renamed and serves as the context of invoke lookups; code
// without a method can only be rewritten by a context-free lens. Field
// accesses that need a cast get a check-cast next to them.
func (r *Rewriter) Rewrite(code Code) Code {
	enclosing := code.Method
	if !enclosing.IsZero() {
		enclosing = r.lens.GetRenamedMethodSignature(enclosing, r.at)
	}
	out := Code{Method: enclosing, Instructions: make([]Instruction, 0, len(code.Instructions))}
	for _, in := range code.Instructions {
		switch in.Op {
		case OpInvoke:
			res := r.lens.LookupMethod(in.Method, enclosing, in.Kind, r.at)
			out.Instructions = append(out.Instructions, Invoke(res.Type(), res.Reference()))
		case OpFieldGet:
			res := r.lens.LookupField(in.Field, r.at)
			out.Instructions = append(out.Instructions, FieldGet(res.Reference(), in.Static))
			if res.HasReadCastType() {
				out.Instructions = append(out.Instructions, CheckCast(res.ReadCastType()))
			}
		case OpFieldPut:
			res := r.lens.LookupField(in.Field, r.at)
			if res.HasWriteCastType() {
				out.Instructions = append(out.Instructions, CheckCast(res.WriteCastType()))
			}
			out.Instructions = append(out.Instructions, FieldPut(res.Reference(), in.Static))
		case OpNewInstance, OpCheckCast, OpConstClass:
			in.Type = r.lens.LookupType(in.Type, r.at)
			out.Instructions = append(out.Instructions, in)
		case OpInitClass:
			in.Type = r.lens.LookupClassType(in.Type, r.at)
			out.Instructions = append(out.Instructions, in)
		default:
			out.Instructions = append(out.Instructions, in)
		}
	}
	return out
}

// RewriteAll rewrites codes on a bounded pool of goroutines. The result
// keeps the input order. An internal error raised by a lookup in a worker
// is returned instead of crashing the process.
func (r *Rewriter) RewriteAll(ctx context.Context, codes []Code) ([]Code, error) {
	out := make([]Code, len(codes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range codes {
		g.Go(func() (err error) {
			if err := ctx.Err(); err != nil {
				return err
			}
			defer recoverInternal(codes[i].Method, &err)
			out[i] = r.Rewrite(codes[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debugf("rewrote %d methods with %d workers", len(codes), r.workers)
	return out, nil
}

func recoverInternal(m graph.Method, err *error) {
	r := recover()
	if r == nil {
		return
	}
	var ie *lens.InternalError
	if e, ok := r.(error); ok && errors.As(e, &ie) {
		*err = fmt.Errorf("coderewrite: %s: %w", m, ie)
		return
	}
	panic(r)
}

// LowerInitClass replaces every init-class instruction by a static read
// of the class's init field whose value is discarded.
func LowerInitClass(code Code, icl lens.InitClassLens) Code {
	out := Code{Method: code.Method, Instructions: make([]Instruction, 0, len(code.Instructions))}
	for _, in := range code.Instructions {
		if in.Op != OpInitClass {
			out.Instructions = append(out.Instructions, in)
			continue
		}
		out.Instructions = append(out.Instructions,
			FieldGet(icl.InitClassField(in.Type), true),
			Instruction{Op: OpPop})
	}
	return out
}

// RewriteView rewrites codes up to the head of v, lowers init-class
// instructions when a final init-class lens is installed and marks the
// view's code as rewritten.
func RewriteView(ctx context.Context, v *appview.AppView, codes []Code, workers int) ([]Code, error) {
	out, err := ForView(v, workers).RewriteAll(ctx, codes)
	if err != nil {
		return nil, err
	}
	if icl := v.InitClassLens(); icl.IsFinal() {
		for i := range out {
			out[i] = LowerInitClass(out[i], icl)
		}
	}
	if err := v.MarkCodeRewritten(); err != nil {
		return nil, err
	}
	return out, nil
}
