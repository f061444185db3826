package trajview

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/teranos/trajview/trip"
)

//go:embed html_templates/run_report.html
var runReportTemplate string

// DefaultReportEvery keeps one thumbnail per this many frames.
const DefaultReportEvery = 10

// RunReport is everything shown on the HTML run report.
type RunReport struct {
	FileKey     string
	Timestamp   string
	Duration    time.Duration
	Rows        int
	Frames      int
	Output      string
	Success     bool
	Entries     []FrameEntry
	Regressions []Regression
	Metadata    map[string]string
}

// FrameEntry is one thumbnail on the contact sheet.
type FrameEntry struct {
	Index   int
	Start   int
	End     int
	Label   string
	Yaw     float64
	DataURL template.URL // Base64 PNG, embedded so the report is one file
}

// ReportSink keeps every Nth frame for the run report. Frame metadata
// arrives through Observe, which the director calls after each append.
type ReportSink struct {
	every   int
	count   int
	entries []FrameEntry
}

// NewReportSink keeps one frame in every. Values below 1 keep every frame.
func NewReportSink(every int) *ReportSink {
	if every < 1 {
		every = 1
	}
	return &ReportSink{every: every}
}

// Append encodes the frame as a data URL when it is one of the kept frames.
func (s *ReportSink) Append(img image.Image) error {
	index := s.count
	s.count++
	if index%s.every != 0 {
		return nil
	}

	url, err := imageDataURL(img)
	if err != nil {
		return trip.NewFall(trip.Sink, "encode report thumbnail", err, trip.Context{"frame": index})
	}
	s.entries = append(s.entries, FrameEntry{Index: index, DataURL: url})
	return nil
}

// Close implements Sink.
func (s *ReportSink) Close() error {
	return nil
}

// Observe fills in the window, time label and yaw of a kept frame.
func (s *ReportSink) Observe(f Frame) {
	if len(s.entries) == 0 {
		return
	}
	last := &s.entries[len(s.entries)-1]
	if last.Index != f.Window.Index {
		return
	}
	last.Start = f.Window.Start
	last.End = f.Window.End
	last.Label = f.Label
	last.Yaw = f.Camera.Yaw
}

// Entries returns the kept frames in order.
func (s *ReportSink) Entries() []FrameEntry {
	return s.entries
}

// Report assembles the run report. runErr is nil for a successful run.
func (s *ReportSink) Report(cfg Config, result *Result, regressions []Regression, runErr error) RunReport {
	report := RunReport{
		FileKey:     cfg.FileKey,
		Timestamp:   time.Now().Format("20060102_150405"),
		Output:      cfg.OutputPath(),
		Success:     runErr == nil && len(regressions) == 0,
		Entries:     s.entries,
		Regressions: regressions,
		Metadata: map[string]string{
			"skip":          fmt.Sprint(cfg.Skip),
			"frames":        fmt.Sprint(cfg.Frames),
			"delay_ms":      fmt.Sprint(cfg.DelayMs),
			"initial_pitch": fmt.Sprint(cfg.InitialPitch),
		},
	}
	if result != nil {
		report.Duration = result.Duration
		report.Rows = result.Rows
		report.Frames = result.Frames
	}
	if runErr != nil {
		report.Metadata["error"] = runErr.Error()
	}
	return report
}

// HTMLReportGenerator writes run reports into a directory.
type HTMLReportGenerator struct {
	outputDir string
	tmpl      *template.Template
}

// NewHTMLReportGenerator creates a new report generator
func NewHTMLReportGenerator(outputDir string) *HTMLReportGenerator {
	return &HTMLReportGenerator{
		outputDir: outputDir,
		tmpl:      template.Must(template.New("report").Funcs(reportFuncs).Parse(runReportTemplate)),
	}
}

// Path returns where the report for key is written.
func (g *HTMLReportGenerator) Path(key string) string {
	return filepath.Join(g.outputDir, key+"_report.html")
}

// GenerateReport renders the report to <outputDir>/<filekey>_report.html.
func (g *HTMLReportGenerator) GenerateReport(report RunReport) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", trip.NewFall(trip.Sink, "create report directory", err, trip.Context{"dir": g.outputDir})
	}

	path := g.Path(report.FileKey)
	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, report); err != nil {
		return "", trip.NewFall(trip.Sink, "render report", err, nil)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", trip.NewFall(trip.Sink, "write report", err, trip.Context{"path": path})
	}
	return path, nil
}

var reportFuncs = template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.2f%%", v*100) },
}

// imageDataURL encodes img as a PNG data URL.
func imageDataURL(img image.Image) (template.URL, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}
