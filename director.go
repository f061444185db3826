// Package trajview renders a tracked object's 3-D trajectory as a looping
// animated GIF.
//
// Each frame is one tracking shot: a window of consecutive samples drawn as
// a 3-D path together with its projections onto the floor, back and side
// walls of the chart cube, seen through a camera that slowly swings back and
// forth.
//
// Basic usage:
//
//	cfg := trajview.DefaultConfig()
//	sink, err := trajview.NewGIFSink(cfg.OutputPath(), cfg.DelayMs)
//	if err != nil {
//		return err
//	}
//	source := loader.NewLocalSource(cfg.InputDir, logger)
//
//	result, err := trajview.NewDirector(cfg, source, sink,
//		trajview.WithLogger(logger)).
//		Run(ctx)
//
// Frames can be watched as they are produced:
//
//	trajview.NewDirector(cfg, source, sink,
//		trajview.WithObserver(func(f trajview.Frame) {
//			fmt.Println(f.Window.Start, f.Label)
//		}))
package trajview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/teranos/trajview/loader"
	"github.com/teranos/trajview/metrics"
	"github.com/teranos/trajview/progress"
	"github.com/teranos/trajview/trip"
)

// Frame describes one rendered and appended frame.
type Frame struct {
	Window      Window
	Time        float64     // Elapsed time at the window's first sample
	Camera      CameraState // Camera after this frame's advance
	Projections Projections
	Label       string // Time annotation as drawn
}

// Result summarizes a finished run.
type Result struct {
	Rows     int           // Samples in the loaded table
	Frames   int           // Frames appended to the sink
	Duration time.Duration // Time spent in the frame loop
	LoadTime time.Duration // Time spent loading the table
}

// Director runs the frame loop: load, window, project, render, append.
type Director struct {
	config    Config
	source    loader.Source
	sink      Sink
	stage     *RenderingStage
	logger    *slog.Logger
	progress  progress.Reporter
	observers []func(Frame)
}

// Option customizes a Director.
type Option func(*Director)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Director) { d.logger = logger }
}

// WithProgress sets the progress reporter.
func WithProgress(r progress.Reporter) Option {
	return func(d *Director) { d.progress = r }
}

// WithObserver registers a callback invoked after every appended frame.
func WithObserver(fn func(Frame)) Option {
	return func(d *Director) { d.observers = append(d.observers, fn) }
}

// WithRenderConfig replaces the default canvas settings.
func WithRenderConfig(rc RenderConfig) Option {
	return func(d *Director) { d.stage = NewRenderingStage(rc) }
}

// NewDirector creates a director. The sink must already be open; Run closes it.
func NewDirector(config Config, source loader.Source, sink Sink, opts ...Option) *Director {
	d := &Director{
		config:   config,
		source:   source,
		sink:     sink,
		stage:    NewRenderingStage(DefaultRenderConfig(config.FileKey)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		progress: progress.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run renders the whole animation. Any failure aborts immediately and leaves
// the sink unfinalized; on success the sink is closed and a close failure is
// returned as an error.
func (d *Director) Run(ctx context.Context) (*Result, error) {
	if err := d.config.Validate(); err != nil {
		return nil, err
	}

	loadStart := time.Now()
	table, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{Rows: table.Len(), LoadTime: time.Since(loadStart)}
	metrics.ObserveLoad(result.Rows, result.LoadTime)
	d.logger.Info("table loaded", "rows", result.Rows, "elapsed", result.LoadTime)

	cfg := d.config
	windower := NewWindower(table.Len(), cfg.Frames, cfg.Skip)
	camera := NewCamera(cfg.InitialPitch, cfg.Scale)
	d.logger.Debug("frame plan",
		"end_frame", EndFrame(table.Len(), cfg.Frames),
		"skip", cfg.Skip,
		"windows", windower.Remaining(),
	)

	loopStart := time.Now()
	d.progress.Start(ctx, EndFrame(table.Len(), cfg.Frames))

	for win := range windower.All() {
		if err := ctx.Err(); err != nil {
			d.finishProgress()
			return nil, trip.NewFall(trip.Render, "run cancelled", err, trip.Context{"frame": win.Index})
		}

		frameStart := time.Now()
		frame, err := d.shoot(table, win, camera)
		if err != nil {
			d.finishProgress()
			return nil, err
		}
		metrics.ObserveFrame(time.Since(frameStart))
		result.Frames++

		d.progress.Advance(cfg.Skip)
		for _, fn := range d.observers {
			fn(frame)
		}
	}

	d.finishProgress()
	result.Duration = time.Since(loopStart)

	if err := d.sink.Close(); err != nil {
		return nil, err
	}

	if result.Frames == 0 {
		d.logger.Warn("no frames produced", "rows", result.Rows, "window", windowFactor*cfg.Skip)
	}
	d.logger.Info("processing finished", "frames", result.Frames, "elapsed", result.Duration)
	return result, nil
}

// load resolves the dataset and checks the table shape.
func (d *Director) load(ctx context.Context) (*loader.Table, error) {
	table, err := d.source.Fetch(ctx, d.config.FileKey)
	if errors.Is(err, loader.ErrNotFound) {
		return nil, trip.NewFall(trip.Load, "no source holds dataset", err, trip.Context{"key": d.config.FileKey})
	}
	if err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, trip.NewFall(trip.Convert, "table columns misaligned", err, trip.Context{"key": d.config.FileKey})
	}
	return table, nil
}

// shoot renders one window and appends it to the sink.
func (d *Director) shoot(table *loader.Table, win Window, camera *Camera) (Frame, error) {
	rows := table.Rows(win.Start, win.End)
	t0 := table.T[win.Start]

	// The side wall follows the yaw the frame starts with.
	projections := Project(rows, camera.State().Yaw)
	projection := camera.Step()

	img, err := d.stage.Render(ShotFor(projections, t0, projection))
	if err != nil {
		return Frame{}, withFrame(err, win)
	}
	if err := d.sink.Append(img); err != nil {
		return Frame{}, withFrame(err, win)
	}

	return Frame{
		Window:      win,
		Time:        t0,
		Camera:      camera.State(),
		Projections: projections,
		Label:       TimeLabel(t0),
	}, nil
}

func (d *Director) finishProgress() {
	if err := d.progress.Finish(); err != nil {
		stumble := trip.NewStumble(trip.Render, "progress display failed", err, nil)
		d.logger.Warn(stumble.Message, stumble.LogAttrs()...)
	}
}

// withFrame tags a trip with the window it happened in.
func withFrame(err error, win Window) error {
	var t *trip.Trip
	if errors.As(err, &t) {
		if t.Context == nil {
			t.Context = trip.Context{}
		}
		t.Context["frame"] = win.Index
		t.Context["start"] = win.Start
		return err
	}
	return trip.NewFall(trip.Render, "frame failed", err, trip.Context{"frame": win.Index, "start": win.Start})
}
