package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kbukum/diarkit/bootstrap"
	"github.com/kbukum/diarkit/database"
	"github.com/kbukum/diarkit/engine"
	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/export"
	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/speakers"
	"github.com/kbukum/diarkit/storage"
	"github.com/kbukum/diarkit/storage/local"
)

func runAlign(ctx context.Context, g *globalOptions, args []string) error {
	fs := newFlagSet(g, "align", "-d diarization.json -t transcript.json [flags]")
	diarPath := fs.StringP("diarization", "d", "", "diarization output file")
	diarFormat := fs.String("diarization-format", "pyannote", "diarization adapter")
	asrPath := fs.StringP("transcript", "t", "", "transcript output file")
	asrFormat := fs.String("transcript-format", "whisper", "transcript adapter")
	mappingPath := fs.StringP("mapping", "m", "", "JSON file mapping raw speaker ids to display names")
	formats := fs.StringSliceP("formats", "f", nil, "export formats (default: engine.formats)")
	outDir := fs.StringP("output", "o", ".", "directory the artifacts are written to")
	source := fs.String("source", "", "recording name stored with the run")
	persist := fs.Bool("persist", false, "also save the run to the configured storage and database")
	ef := addEngineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *diarPath == "" && *asrPath == "" {
		fs.Usage()
		return errors.InvalidInput("diarization", "--diarization or --transcript is required")
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
		fmts, err := export.ParseFormats(*formats)
		if err != nil {
			return err
		}
		in, err := fileInput(*source, *diarPath, *diarFormat, *asrPath, *asrFormat, *mappingPath)
		if err != nil {
			return err
		}

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

func runSpeakers(ctx context.Context, g *globalOptions, args []string) error {
	fs := newFlagSet(g, "speakers", "-d diarization.json [flags]")
	diarPath := fs.StringP("diarization", "d", "", "diarization output file")
	diarFormat := fs.String("diarization-format", "pyannote", "diarization adapter")
	asJSON := fs.Bool("json", false, "print a JSON mapping template instead of one id per line")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *diarPath == "" {
		fs.Usage()
		return errors.InvalidInput("diarization", "--diarization is required")
	}

	app, err := newApp(g)
	if err != nil {
		return err
	}
	return app.RunTask(ctx, func(ctx context.Context) error {
		eng, err := newEngine(app, app.Cfg.Engine)
		if err != nil {
			return err
		}
		in, err := fileInput("", *diarPath, *diarFormat, "", "", "")
		if err != nil {
			return err
		}
		ids, err := eng.Speakers(ctx, in)
		if err != nil {
			return err
		}
		if *asJSON {
			enc := json.NewEncoder(g.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(speakers.Complete(ids, nil))
		}
		for _, id := range ids {
			fmt.Fprintln(g.stdout, id)
		}
		return nil
	})
}

// fileInput reads backend output files into an engine input. Empty paths
// are skipped.
func fileInput(source, diarPath, diarFormat, asrPath, asrFormat, mappingPath string) (engine.Input, error) {
	in := engine.Input{Source: source}
	if in.Source == "" {
		in.Source = filepath.Base(firstNonEmpty(diarPath, asrPath))
	}
	if diarPath != "" {
		data, err := readInput(diarPath)
		if err != nil {
			return in, err
		}
		in.Diarization = &engine.Payload{Format: diarFormat, Data: data}
	}
	if asrPath != "" {
		data, err := readInput(asrPath)
		if err != nil {
			return in, err
		}
		in.Transcript = &engine.Payload{Format: asrFormat, Data: data}
	}
	if mappingPath != "" {
		data, err := readInput(mappingPath)
		if err != nil {
			return in, err
		}
		if in.Mapping, err = speakers.ParseJSON(data); err != nil {
			return in, err
		}
	}
	return in, nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NotFound("input file", path).WithCause(err)
	}
	return data, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func reportRejected(log *logger.Logger, res *engine.Result) {
	for _, r := range res.Rejected {
		log.Warn("record rejected", logger.Fields(
			logger.FieldRunID, res.RunID,
			logger.FieldError, r.Message,
			"details", r.Details,
		))
	}
}

// writeArtifacts stores artifacts in dir and returns their paths.
func writeArtifacts(ctx context.Context, dir string, artifacts []export.Artifact) ([]string, error) {
	store, err := local.NewStorage(dir)
	if err != nil {
		return nil, errors.InvalidInput("output", err.Error()).WithCause(err)
	}
	files := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := store.Upload(ctx, a.Filename, bytes.NewReader(a.Data)); err != nil {
			return nil, err
		}
		files = append(files, filepath.Join(dir, a.Filename))
	}
	return files, nil
}

// persistRun saves the run to the configured artifact storage and
// transcript database. Disabled sections are skipped.
func persistRun(ctx context.Context, app *bootstrap.App, res *engine.Result, artifacts []export.Artifact) error {
	cfg := app.Cfg
	if !cfg.Storage.Enabled && !cfg.Database.Enabled {
		app.Logger.Warn("--persist given but storage and database are disabled")
		return nil
	}

	var keys []string
	if cfg.Storage.Enabled {
		store, err := storage.New(ctx, cfg.Storage, app.Logger.WithComponent("storage"))
		if err != nil {
			return err
		}
		if keys, err = storage.SaveArtifacts(ctx, store, cfg.Storage.Prefix, res.RunID, artifacts); err != nil {
			return err
		}
	}

	if cfg.Database.Enabled {
		db, err := database.Open(ctx, cfg.Database, app.Logger.WithComponent("database"))
		if err != nil {
			return err
		}
		defer db.Close()
		rec := database.NewRecord(res, artifacts)
		rec.Artifacts = keys
		if err := database.NewRepository(db).Save(ctx, rec); err != nil {
			return err
		}
	}

	app.Logger.Info("run persisted", logger.Fields(
		logger.FieldRunID, res.RunID,
		logger.FieldCount, len(keys),
	))
	return nil
}
