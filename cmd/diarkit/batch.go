package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/kbukum/diarkit/batch"
	"github.com/kbukum/diarkit/errors"
)

func runBatch(ctx context.Context, g *globalOptions, args []string) error {
	fs := newFlagSet(g, "batch", "manifest.yml [flags]")
	concurrency := fs.IntP("concurrency", "j", 0, "jobs run at once (default: batch.concurrency)")
	ef := addEngineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.InvalidInput("manifest", "exactly one manifest path is required")
	}

	manifest, err := batch.LoadManifest(fs.Arg(0))
	if err != nil {
		return err
	}

	app, err := newApp(g)
	if err != nil {
		return err
	}
	return app.RunTask(ctx, func(ctx context.Context) error {
		eng, err := newEngine(app, ef.apply(app.Cfg.Engine))
		if err != nil {
			return err
		}
		cfg := app.Cfg.Batch
		if fs.Changed("concurrency") {
			cfg.Concurrency = *concurrency
		}
		results := batch.NewRunner(eng, cfg, app.Logger.WithComponent("batch")).Run(ctx, manifest)

		tw := tabwriter.NewWriter(g.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "JOB\tSTATUS\tTURNS\tFILES\tDETAIL")
		failed := 0
		for _, r := range results {
			status, detail := "ok", ""
			if r.Err != nil {
				status, detail = "failed", r.Err.Error()
				failed++
			} else if r.Degraded {
				status = "degraded"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Job, status, r.Turns, len(r.Files), detail)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d jobs failed", failed, len(results))
		}
		return nil
	})
}
