package main

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/diarkit/diarization"
	"github.com/kbukum/diarkit/diarization/pyannote"
	"github.com/kbukum/diarkit/engine"
	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/transcription"
	"github.com/kbukum/diarkit/transcription/whisper"
)

func runProcess(ctx context.Context, g *globalOptions, args []string) error {
	fs := newFlagSet(g, "process", "audio.wav [flags]")
	numSpeakers := fs.Int("num-speakers", 0, "fixed speaker count (default: diarization.num_speakers)")
	minSpeakers := fs.Int("min-speakers", 0, "lower bound on the speaker count")
	maxSpeakers := fs.Int("max-speakers", 0, "upper bound on the speaker count")
	language := fs.String("language", "", "spoken language (default: transcription.language)")
	mappingPath := fs.StringP("mapping", "m", "", "JSON file mapping raw speaker ids to display names")
	formats := fs.StringSliceP("formats", "f", nil, "export formats (default: engine.formats)")
	outDir := fs.StringP("output", "o", ".", "directory the artifacts are written to")
	persist := fs.Bool("persist", false, "also save the run to the configured storage and database")
	ef := addEngineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.InvalidInput("audio", "exactly one audio file is required")
	}
	audio := fs.Arg(0)

	app, err := newApp(g)
	if err != nil {
		return err
	}

	diarizer, err := pyannote.New(app.Cfg.Diarization)
	if err != nil {
		return err
	}
	transcriber, err := whisper.New(app.Cfg.Transcription)
	if err != nil {
		return err
	}
	app.AddHealthChecker(diarizer, transcriber)

	return app.RunTask(ctx, func(ctx context.Context) error {
		eng, err := newEngine(app, ef.apply(app.Cfg.Engine))
		if err != nil {
			return err
		}
		fmts, err := export.ParseFormats(*formats)
		if err != nil {
			return err
		}
		in, err := fileInput(filepath.Base(audio), "", "", "", "", *mappingPath)
		if err != nil {
			return err
		}

		// The sidecars are independent; either failing cancels the other.
		var diar *diarization.Response
		var asr *transcription.Response
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			var err error
			diar, err = diarizer.Diarize(egCtx, diarization.Request{
				AudioPath:   audio,
				NumSpeakers: *numSpeakers,
				MinSpeakers: *minSpeakers,
				MaxSpeakers: *maxSpeakers,
				Language:    *language,
			})
			return err
		})
		eg.Go(func() error {
			var err error
			asr, err = transcriber.Transcribe(egCtx, transcription.Request{
				AudioPath: audio,
				Language:  *language,
			})
			return err
		})
		if err := eg.Wait(); err != nil {
			return err
		}
		in.Diarization = &engine.Payload{Format: diar.Format, Data: diar.Payload}
		in.Transcript = &engine.Payload{Format: asr.Format, Data: asr.Payload}

		res, err := eng.Run(ctx, in)
		if err != nil {
			return err
		}
		reportRejected(app.Logger, res)

		artifacts, err := eng.Export(ctx, res, fmts)
		if err != nil {
			return err
		}
		files, err := writeArtifacts(ctx, *outDir, artifacts)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(g.stdout, f)
		}
		if *persist {
			return persistRun(ctx, app, res, artifacts)
		}
		return nil
	})
}
