// Command trajview renders a trajectory table as a looping animated GIF.
//
//	trajview -filekey walker -skip 40 -output-dir data
//
// The table is read from <input-dir>/<filekey>.csv, then from -source-url,
// then from the S3 bucket configured in the YAML file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/teranos/trajview"
	"github.com/teranos/trajview/loader"
	"github.com/teranos/trajview/metrics"
	"github.com/teranos/trajview/progress"
	"github.com/teranos/trajview/trip"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command settings that are not part of trajview.Config.
type options struct {
	config    trajview.Config
	quiet     bool
	logFormat string
	verbose   bool
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.logFormat, opts.verbose, stderr)
	if err != nil {
		return err
	}
	cfg := opts.config

	source := buildSource(ctx, cfg, logger)
	sinks, err := buildSinks(cfg)
	if err != nil {
		return err
	}

	var reporter progress.Reporter = progress.Nop{}
	if !opts.quiet && isTerminal(stderr) {
		reporter = progress.NewTeaReporter("Image Generation", stderr)
	}

	directorOpts := []trajview.Option{
		trajview.WithLogger(logger),
		trajview.WithProgress(reporter),
	}
	if sinks.report != nil {
		directorOpts = append(directorOpts, trajview.WithObserver(sinks.report.Observe))
	}

	result, runErr := trajview.NewDirector(cfg, source, sinks.sink, directorOpts...).Run(ctx)
	if sinks.report != nil {
		writeReport(cfg, sinks, result, runErr, logger)
	}
	if runErr != nil {
		var t *trip.Trip
		if errors.As(runErr, &t) {
			logger.Debug("run failed", t.LogAttrs()...)
		}
		return runErr
	}

	logger.Info("processing time", "seconds", result.Duration.Seconds())
	logger.Info("saved to", "path", cfg.OutputPath(), "frames", result.Frames)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			stumble := trip.NewStumble(trip.Sink, "write metrics textfile", err, trip.Context{"path": cfg.MetricsFile})
			logger.Warn(stumble.Error(), stumble.LogAttrs()...)
		}
	}
	return nil
}

// parseArgs resolves the configuration: defaults, then the YAML file named
// by -config, then every flag given explicitly on the command line.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	def := trajview.DefaultConfig()

	fs := flag.NewFlagSet("trajview", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		flagCfg    = def
		configPath string
		opts       options
	)
	fs.IntVar(&flagCfg.Frames, "frames", def.Frames, "Number of samples to use (0 = all)")
	fs.IntVar(&flagCfg.DelayMs, "secs", def.DelayMs, "Milliseconds between animation frames")
	fs.Float64Var(&flagCfg.InitialPitch, "initial-pitch", def.InitialPitch, "Camera pitch in radians")
	fs.IntVar(&flagCfg.Skip, "skip", def.Skip, "Samples to advance per frame")
	fs.StringVar(&flagCfg.FileKey, "filekey", def.FileKey, "Dataset key")
	fs.StringVar(&flagCfg.OutputDir, "output-dir", def.OutputDir, "Directory for the GIF")
	fs.StringVar(&flagCfg.InputDir, "input-dir", def.InputDir, "Directory searched for <filekey>.csv")
	fs.StringVar(&flagCfg.Remote.SourceURL, "source-url", "", "HTTP base URL tried before the bucket")
	fs.StringVar(&flagCfg.PNGDir, "png-dir", "", "Also write every frame as PNG into this directory")
	fs.StringVar(&flagCfg.BaselineDir, "baseline-dir", "", "Compare frames against PNG baselines in this directory")
	fs.StringVar(&flagCfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	fs.StringVar(&flagCfg.ReportDir, "report-dir", "", "Write an HTML run report into this directory")
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&opts.quiet, "quiet", false, "Disable the progress bar")
	fs.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	fs.BoolVar(&opts.verbose, "v", false, "Debug logging")

	if err := fs.Parse(args); err != nil {
		return options{}, trip.New(trip.Config, "parse flags", err, nil)
	}
	if fs.NArg() > 0 {
		return options{}, trip.New(trip.Config, fmt.Sprintf("unexpected arguments: %v", fs.Args()), nil, nil)
	}

	cfg := def
	if configPath != "" {
		loaded, err := trajview.LoadConfig(configPath, def)
		if err != nil {
			return options{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "frames":
			cfg.Frames = flagCfg.Frames
		case "secs":
			cfg.DelayMs = flagCfg.DelayMs
		case "initial-pitch":
			cfg.InitialPitch = flagCfg.InitialPitch
		case "skip":
			cfg.Skip = flagCfg.Skip
		case "filekey":
			cfg.FileKey = flagCfg.FileKey
		case "output-dir":
			cfg.OutputDir = flagCfg.OutputDir
		case "input-dir":
			cfg.InputDir = flagCfg.InputDir
		case "source-url":
			cfg.Remote.SourceURL = flagCfg.Remote.SourceURL
		case "png-dir":
			cfg.PNGDir = flagCfg.PNGDir
		case "baseline-dir":
			cfg.BaselineDir = flagCfg.BaselineDir
		case "metrics-file":
			cfg.MetricsFile = flagCfg.MetricsFile
		case "report-dir":
			cfg.ReportDir = flagCfg.ReportDir
		}
	})

	if err := cfg.Validate(); err != nil {
		return options{}, err
	}
	opts.config = cfg
	return opts, nil
}

func newLogger(format string, verbose bool, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, trip.New(trip.Config, fmt.Sprintf("unknown log format %q", format), nil, nil)
	}
}

// buildSource chains the local directory, the HTTP mirror and the bucket.
func buildSource(ctx context.Context, cfg trajview.Config, logger *slog.Logger) loader.Source {
	sources := []loader.Source{loader.NewLocalSource(cfg.InputDir, logger)}

	if cfg.Remote.SourceURL != "" {
		sources = append(sources, loader.NewHTTPSource(cfg.Remote.SourceURL, logger))
	}
	if !cfg.Remote.Disabled {
		s3, err := loader.NewS3SourceFromEnv(ctx, cfg.Remote.Bucket, cfg.Remote.Region, logger)
		if err != nil {
			stumble := trip.NewStumble(trip.Load, "object store unavailable", err, trip.Context{"bucket": cfg.Remote.Bucket})
			logger.Warn(stumble.Error(), stumble.LogAttrs()...)
		} else {
			sources = append(sources, s3)
		}
	}
	return loader.Chain(logger, sources...)
}

// runSinks is the sink handed to the director plus the optional sinks
// main reads back after the run.
type runSinks struct {
	sink     trajview.Sink
	baseline *trajview.BaselineSink
	report   *trajview.ReportSink
}

// buildSinks opens the GIF and any optional frame sinks.
func buildSinks(cfg trajview.Config) (runSinks, error) {
	gifSink, err := trajview.NewGIFSink(cfg.OutputPath(), cfg.DelayMs)
	if err != nil {
		return runSinks{}, err
	}
	out := runSinks{sink: gifSink}
	multi := trajview.MultiSink{gifSink}

	if cfg.PNGDir != "" {
		pngSink, err := trajview.NewPNGSink(cfg.PNGDir)
		if err != nil {
			return runSinks{}, err
		}
		multi = append(multi, pngSink)
	}
	if cfg.BaselineDir != "" {
		out.baseline = trajview.NewBaselineSink(cfg.BaselineDir)
		multi = append(multi, out.baseline)
	}
	if cfg.ReportDir != "" {
		out.report = trajview.NewReportSink(cfg.ReportEvery)
		multi = append(multi, out.report)
	}

	if len(multi) > 1 {
		out.sink = multi
	}
	return out, nil
}

// writeReport renders the HTML run report. A failure here never fails the run.
func writeReport(cfg trajview.Config, sinks runSinks, result *trajview.Result, runErr error, logger *slog.Logger) {
	var regressions []trajview.Regression
	if sinks.baseline != nil {
		regressions = sinks.baseline.Regressions()
	}

	report := sinks.report.Report(cfg, result, regressions, runErr)
	path, err := trajview.NewHTMLReportGenerator(cfg.ReportDir).GenerateReport(report)
	if err != nil {
		stumble := trip.NewStumble(trip.Sink, "write run report", err, trip.Context{"dir": cfg.ReportDir})
		logger.Warn(stumble.Error(), stumble.LogAttrs()...)
		return
	}
	logger.Info("run report", "path", path)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
