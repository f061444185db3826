package trajview

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/teranos/trajview/loader"
	"github.com/teranos/trajview/trip"
)

// Config holds every run setting. Values come from defaults, then the
// optional YAML file, then command-line flags.
type Config struct {
	Frames       int     `yaml:"frames"`        // Sample cap, 0 = whole table
	DelayMs      int     `yaml:"delay_ms"`      // Milliseconds between frames
	InitialPitch float64 `yaml:"initial_pitch"` // Camera pitch in radians
	Scale        float64 `yaml:"scale"`         // Projection scale
	Skip         int     `yaml:"skip"`          // Window stride in samples
	FileKey      string  `yaml:"filekey"`       // Dataset key
	OutputDir    string  `yaml:"output_dir"`
	InputDir     string  `yaml:"input_dir"`

	Remote RemoteConfig `yaml:"remote"`

	PNGDir      string `yaml:"png_dir"`      // Optional per-frame PNG dump
	BaselineDir string `yaml:"baseline_dir"` // Optional regression baseline
	MetricsFile string `yaml:"metrics_file"` // Optional Prometheus textfile
	ReportDir   string `yaml:"report_dir"`   // Optional HTML run report
	ReportEvery int    `yaml:"report_every"` // Thumbnail stride for the report
}

// RemoteConfig locates the fallback datasets.
type RemoteConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	SourceURL string `yaml:"source_url"` // HTTP mirror tried before the bucket
	Disabled  bool   `yaml:"disabled"`   // Local files only
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Frames:       0,
		DelayMs:      40,
		InitialPitch: DefaultPitch,
		Scale:        DefaultScale,
		Skip:         40,
		FileKey:      "walker",
		OutputDir:    "data",
		InputDir:     "input",
		Remote: RemoteConfig{
			Bucket: loader.DefaultBucket,
			Region: loader.DefaultRegion,
		},
		ReportEvery: DefaultReportEvery,
	}
}

// LoadConfig overlays the YAML file at path onto base.
func LoadConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, trip.New(trip.Config, "read config", err, trip.Context{"path": path})
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, trip.New(trip.Config, "parse config", err, trip.Context{"path": path})
	}
	return cfg, nil
}

// Validate rejects settings the frame loop cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Skip <= 0:
		return trip.New(trip.Config, fmt.Sprintf("skip must be positive, got %d", c.Skip), nil, nil)
	case c.Frames < 0:
		return trip.New(trip.Config, fmt.Sprintf("frames must not be negative, got %d", c.Frames), nil, nil)
	case c.DelayMs < 0:
		return trip.New(trip.Config, fmt.Sprintf("delay must not be negative, got %d", c.DelayMs), nil, nil)
	case c.Scale <= 0:
		return trip.New(trip.Config, fmt.Sprintf("scale must be positive, got %g", c.Scale), nil, nil)
	case c.FileKey == "":
		return trip.New(trip.Config, "filekey must not be empty", nil, nil)
	}
	return nil
}

// OutputPath returns <output-dir>/<filekey>_traj.gif.
func (c Config) OutputPath() string {
	return filepath.Join(c.OutputDir, c.FileKey+"_traj.gif")
}
