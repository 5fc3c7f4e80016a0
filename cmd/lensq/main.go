// lensq runs a pass plan over a program: it builds each pass's lens on the
// chain, rewrites the method bodies, answers lookup queries and writes the
// naming snapshot of the final program.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/lenschain/appview"
	"github.com/chazu/lenschain/coderewrite"
	"github.com/chazu/lenschain/graph"
	"github.com/chazu/lenschain/lens"
	"github.com/chazu/lenschain/manifest"
	"github.com/chazu/lenschain/mapping"
)

var log = commonlog.GetLogger("lenschain.lensq")

func main() {
	dir := flag.String("C", ".", "Directory to search for lenschain.toml")
	planPath := flag.String("plan", "", "Pass plan (overrides project.plan)")
	snapshot := flag.String("snapshot", "", "Write the naming snapshot here (overrides project.snapshot)")
	mappingText := flag.String("mapping", "", "Also write the snapshot as text to this file")
	verbosity := flag.Int("v", -1, "Log verbosity (overrides log.verbosity)")
	verify := flag.Bool("verify", false, "Verify every installed lens")
	quiet := flag.Bool("q", false, "Do not print rewritten code")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lensq [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the pass plan named by lenschain.toml and prints the rewritten code.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lensq                          # Run ./lenschain.toml\n")
		fmt.Fprintf(os.Stderr, "  lensq -C app -verify           # Verify each lens as it is installed\n")
		fmt.Fprintf(os.Stderr, "  lensq -mapping out/mapping.txt # Write a readable mapping\n")
	}
	flag.Parse()

	cfg, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg == nil {
		fmt.Fprintf(os.Stderr, "Error: no %s found from %s\n", manifest.FileName, *dir)
		os.Exit(1)
	}
	if *planPath != "" {
		cfg.Project.Plan = *planPath
	}
	if *snapshot != "" {
		cfg.Project.Snapshot = *snapshot
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	if *verify {
		cfg.Lens.Verify = true
	}

	var logPath *string
	if cfg.Log.File != "" {
		logPath = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := runOptions{printCode: !*quiet, mappingText: *mappingText}
	if err := run(ctx, cfg, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runOptions struct {
	printCode   bool
	mappingText string
}

// run executes the plan of cfg and writes its report to out.
func run(ctx context.Context, cfg *manifest.Manifest, opts runOptions, out io.Writer) error {
	lens.SetArrayCacheSize(cfg.Lens.ArrayCacheSize)

	plan, err := manifest.LoadPlan(cfg.PlanPath())
	if err != nil {
		return err
	}
	app, err := plan.Application()
	if err != nil {
		return err
	}
	codes, err := plan.Codes()
	if err != nil {
		return err
	}

	v := appview.New(app, appview.Options{Verify: cfg.Lens.Verify, FlattenDepth: cfg.Lens.FlattenDepth})
	icl, err := plan.InitClassLens()
	if err != nil {
		return err
	}
	if icl != nil {
		v.SetInitClassLens(icl)
	}
	log.Infof("run %s: %d classes, %d methods with code, %d passes", v.RunID(), app.Len(), len(codes), len(plan.Passes))

	workers := cfg.Rewrite.Workers
	for i := range plan.Passes {
		ps := &plan.Passes[i]
		err := v.RunPass(ctx, ps.Name, func(ctx context.Context, v *appview.AppView) error {
			switch ps.Kind {
			case manifest.PassRewrite:
				codes, err = coderewrite.RewriteView(ctx, v, codes, workers)
				return err
			case manifest.PassClear:
				if codes, err = coderewrite.RewriteView(ctx, v, codes, workers); err != nil {
					return err
				}
				v.ClearCodeRewritings()
				return nil
			case manifest.PassFlatten:
				if codes, err = coderewrite.RewriteView(ctx, v, codes, workers); err != nil {
					return err
				}
				return v.Flatten()
			}
			l, err := ps.Build(v.GraphLens(), v.App())
			if err != nil {
				return err
			}
			return v.RewriteWithLens(ctx, l)
		})
		if err != nil {
			return err
		}
	}

	if err := v.RunPass(ctx, "queries", func(_ context.Context, v *appview.AppView) error {
		return answerQueries(v, plan.Queries, out)
	}); err != nil {
		return err
	}

	if err := v.RunPass(ctx, "finish", func(ctx context.Context, v *appview.AppView) error {
		if codes, err = coderewrite.RewriteView(ctx, v, codes, workers); err != nil {
			return err
		}
		return v.Flatten()
	}); err != nil {
		return err
	}

	if opts.printCode {
		for _, code := range codes {
			fmt.Fprint(out, code.Disassemble())
		}
	}
	return writeSnapshot(v, cfg.SnapshotPath(), opts.mappingText)
}

// answerQueries looks up the queried references as the current method
// bodies name them.
func answerQueries(v *appview.AppView, q manifest.Queries, out io.Writer) error {
	head, at := v.GraphLens(), v.CodeLens()
	for _, s := range q.Types {
		t, err := graph.ParseType(s)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "type %s -> %s\n", t.Descriptor(), head.LookupType(t, at).Descriptor())
	}
	for _, s := range q.Fields {
		f, err := graph.ParseField(s)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "field %s -> %s\n", f.Smali(), head.LookupField(f, at).Reference().Smali())
	}
	for _, mq := range q.Methods {
		m, err := graph.ParseMethod(mq.Method)
		if err != nil {
			return err
		}
		var enclosing graph.Method
		if mq.Context != "" {
			c, err := graph.ParseMethod(mq.Context)
			if err != nil {
				return err
			}
			enclosing = head.GetRenamedMethodSignature(c, at)
		}
		kind := graph.InvokeVirtual
		if mq.Kind != "" {
			if kind, err = graph.ParseInvokeType(mq.Kind); err != nil {
				return err
			}
		}
		res := head.LookupMethod(m, enclosing, kind, at)
		fmt.Fprintf(out, "method %s -> invoke-%s %s\n", m.Smali(), res.Type(), res.Reference().Smali())
	}
	return nil
}

func writeSnapshot(v *appview.AppView, path, textPath string) error {
	if path == "" && textPath == "" {
		return nil
	}
	applied, ok := v.GraphLens().(*lens.AppliedGraphLens)
	if !ok {
		// Nothing was installed; the chain is still identity.
		applied = lens.NewAppliedGraphLens(v.GraphLens(), v.App())
	}
	s := mapping.Seal(applied, v.RunID())
	if path != "" {
		data, err := mapping.Marshal(s)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("cannot write snapshot: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("cannot write snapshot: %w", err)
		}
		log.Infof("run %s: wrote snapshot %s (%d types, %d fields, %d methods)",
			v.RunID(), path, len(s.Types), len(s.Fields), len(s.Methods))
	}
	if textPath != "" {
		f, err := os.Create(textPath)
		if err != nil {
			return fmt.Errorf("cannot write mapping: %w", err)
		}
		if err := s.WriteText(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return nil
}
