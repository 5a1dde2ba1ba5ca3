// Command diarkit aligns speaker diarization with ASR transcripts.
//
//	diarkit [--config file] [--env-file file] [--log-level level] <command> [flags]
//
// Commands: align, speakers, batch, process, serve, version.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kbukum/diarkit/bootstrap"
	"github.com/kbukum/diarkit/config"
	"github.com/kbukum/diarkit/engine"
	"github.com/kbukum/diarkit/errors"

	_ "github.com/kbukum/diarkit/storage/local"
	_ "github.com/kbukum/diarkit/storage/s3"
)

type globalOptions struct {
	configFile string
	envFile    string
	logLevel   string
	stdout     io.Writer
	stderr     io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, g *globalOptions, args []string) error
}

var commands = map[string]command{
	"align":    {"align diarization and transcript files into artifacts", runAlign},
	"speakers": {"list the raw speaker ids of a diarization file", runSpeakers},
	"batch":    {"run every job of a YAML manifest", runBatch},
	"process":  {"diarize and transcribe an audio file through the sidecars, then align", runProcess},
	"serve":    {"run the HTTP API", runServe},
	"version":  {"print build information", runVersion},
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	g := &globalOptions{stdout: stdout, stderr: stderr}
	fs := pflag.NewFlagSet("diarkit", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.StringVarP(&g.configFile, "config", "c", "", "config file (default: config.yml lookup)")
	fs.StringVar(&g.envFile, "env-file", "", "dotenv file (default: .env lookup)")
	fs.StringVar(&g.logLevel, "log-level", "", "override logging.level")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return 2
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "diarkit: unknown command %q\n", name)
		usage(stderr, fs)
		return 2
	}
	if err := cmd.run(ctx, g, fs.Args()[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		printError(stderr, err)
		return 1
	}
	return 0
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: diarkit [global flags] <command> [flags]")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-10s %s\n", n, commands[n].summary)
	}
	fmt.Fprintln(w, "\nglobal flags:")
	fmt.Fprint(w, fs.FlagUsages())
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "diarkit: %v\n", err)
	if appErr, ok := errors.AsAppError(err); ok && len(appErr.Details) > 0 {
		keys := make([]string, 0, len(appErr.Details))
		for k := range appErr.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, appErr.Details[k])
		}
	}
}

// newFlagSet creates a subcommand flag set writing usage to stderr.
func newFlagSet(g *globalOptions, name, args string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(g.stderr)
	fs.Usage = func() {
		fmt.Fprintf(g.stderr, "usage: diarkit %s %s\n\nflags:\n", name, args)
		fmt.Fprint(g.stderr, fs.FlagUsages())
	}
	return fs
}

// newApp loads the configuration and builds the application lifecycle.
func newApp(g *globalOptions) (*bootstrap.App, error) {
	var opts []config.LoaderOption
	if g.configFile != "" {
		opts = append(opts, config.WithConfigFile(g.configFile))
	}
	if g.envFile != "" {
		opts = append(opts, config.WithEnvFile(g.envFile))
	}
	var cfg config.Config
	if err := config.Load(&cfg, opts...); err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(g.logLevel)
	}
	return bootstrap.NewApp(&cfg)
}

// engineFlags are the tuning overrides shared by align, process and batch.
type engineFlags struct {
	maxPause, mergeGap, minTurn float64
	policy                      string
	fs                          *pflag.FlagSet
}

func addEngineFlags(fs *pflag.FlagSet) *engineFlags {
	ef := &engineFlags{fs: fs}
	fs.Float64Var(&ef.maxPause, "max-pause", 0, "split a speaker's turn at silences longer than this many seconds (0 disables)")
	fs.Float64Var(&ef.mergeGap, "merge-gap", 0, "merge same-speaker diarization turns separated by at most this many seconds")
	fs.Float64Var(&ef.minTurn, "min-turn", 0, "drop diarization turns shorter than this many seconds")
	fs.StringVar(&ef.policy, "subtitle-policy", "", "overlapping cue policy for srt/vtt: clip or reject")
	return ef
}

func (ef *engineFlags) apply(cfg engine.Config) engine.Config {
	if ef.fs.Changed("max-pause") {
		cfg.MaxPauseSeconds = ef.maxPause
	}
	if ef.fs.Changed("merge-gap") {
		cfg.MergeGapSeconds = ef.mergeGap
	}
	if ef.fs.Changed("min-turn") {
		cfg.MinTurnSeconds = ef.minTurn
	}
	if ef.fs.Changed("subtitle-policy") {
		cfg.SubtitlePolicy = ef.policy
	}
	return cfg
}

func newEngine(app *bootstrap.App, cfg engine.Config) (*engine.Engine, error) {
	eng, err := engine.New(cfg,
		engine.WithLogger(app.Logger.WithComponent("engine")),
		engine.WithMetrics(app.Metrics),
	)
	if err != nil {
		return nil, errors.InvalidInput("engine", err.Error()).WithCause(err)
	}
	return eng, nil
}
