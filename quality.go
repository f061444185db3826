package trajview

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/teranos/trajview/trip"
)

// DefaultTolerance is the share of pixels allowed to differ from the baseline.
const DefaultTolerance = 0.05

// Regression is one frame that drifted away from its baseline.
type Regression struct {
	Frame      int
	Difference float64 // Share of differing pixels, 0..1
	Reason     string  // Set when the frame could not be compared at all
}

// BaselineSink checks every appended frame against
// <baselineDir>/frame_NNNN.png and fails on Close when any frame drifts.
// A diff image is written next to the baseline for every drifting frame.
type BaselineSink struct {
	baselineDir string
	tolerance   float64
	count       int
	regressions []Regression
}

// NewBaselineSink creates a checker for the given baseline directory.
func NewBaselineSink(baselineDir string) *BaselineSink {
	return &BaselineSink{
		baselineDir: baselineDir,
		tolerance:   DefaultTolerance,
	}
}

// WithTolerance overrides the allowed pixel difference ratio.
func (bs *BaselineSink) WithTolerance(tolerance float64) *BaselineSink {
	bs.tolerance = tolerance
	return bs
}

// Regressions returns the frames that failed so far.
func (bs *BaselineSink) Regressions() []Regression {
	return bs.regressions
}

// Append compares the frame with its baseline. Drift is recorded, not returned,
// so the whole animation is still written.
func (bs *BaselineSink) Append(img image.Image) error {
	index := bs.count
	bs.count++

	baselinePath := filepath.Join(bs.baselineDir, FrameName(index))
	baseline, err := loadImage(baselinePath)
	if err != nil {
		bs.regressions = append(bs.regressions, Regression{Frame: index, Difference: 1, Reason: fmt.Sprintf("load baseline: %v", err)})
		return nil
	}

	difference := Difference(baseline, img)
	if difference > bs.tolerance {
		bs.regressions = append(bs.regressions, Regression{Frame: index, Difference: difference})
		diffPath := filepath.Join(bs.baselineDir, strings.TrimSuffix(FrameName(index), ".png")+"_diff.png")
		if err := writePNG(diffPath, DiffImage(baseline, img)); err != nil {
			return trip.NewFall(trip.Sink, "write diff image", err, trip.Context{"path": diffPath})
		}
	}
	return nil
}

// Close reports every regression at once.
func (bs *BaselineSink) Close() error {
	if len(bs.regressions) == 0 {
		return nil
	}

	var details strings.Builder
	for i, r := range bs.regressions {
		if i > 0 {
			details.WriteString(", ")
		}
		if r.Reason != "" {
			details.WriteString(fmt.Sprintf("frame %d (%s)", r.Frame, r.Reason))
		} else {
			details.WriteString(fmt.Sprintf("frame %d (%.2f%%)", r.Frame, r.Difference*100))
		}
	}
	return trip.NewFall(trip.Sink, "visual regression detected", nil, trip.Context{
		"tolerance": fmt.Sprintf("%.2f%%", bs.tolerance*100),
		"frames":    details.String(),
	})
}

// SetBaseline copies a rendered frame into the baseline directory as frame index.
func (bs *BaselineSink) SetBaseline(index int, framePath string) error {
	if err := os.MkdirAll(bs.baselineDir, 0755); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}

	input, err := os.Open(framePath)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.Create(filepath.Join(bs.baselineDir, FrameName(index)))
	if err != nil {
		return err
	}
	if _, err := output.ReadFrom(input); err != nil {
		output.Close()
		return err
	}
	return output.Close()
}

// loadImage loads an image from file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	return img, err
}

// Difference returns the share of pixels that differ between two images.
// Images of different size are completely different.
func Difference(img1, img2 image.Image) float64 {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()
	if bounds1.Size() != bounds2.Size() {
		return 1.0
	}

	totalPixels := bounds1.Dx() * bounds1.Dy()
	if totalPixels == 0 {
		return 0
	}
	differentPixels := 0

	off := bounds2.Min.Sub(bounds1.Min)
	for y := bounds1.Min.Y; y < bounds1.Max.Y; y++ {
		for x := bounds1.Min.X; x < bounds1.Max.X; x++ {
			if !sameColor(img1.At(x, y), img2.At(x+off.X, y+off.Y)) {
				differentPixels++
			}
		}
	}

	return float64(differentPixels) / float64(totalPixels)
}

// DiffImage highlights differing pixels in red over a dimmed copy of the baseline.
func DiffImage(baseline, current image.Image) *image.RGBA {
	bounds := baseline.Bounds()
	diff := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	off := current.Bounds().Min.Sub(bounds.Min)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			baseColor := baseline.At(x, y)
			dx, dy := x-bounds.Min.X, y-bounds.Min.Y

			if !sameColor(baseColor, current.At(x+off.X, y+off.Y)) {
				diff.Set(dx, dy, color.RGBA{255, 0, 0, 255})
				continue
			}
			r, g, b, a := baseColor.RGBA()
			diff.Set(dx, dy, color.RGBA{
				uint8(r >> 9), // dim by half
				uint8(g >> 9),
				uint8(b >> 9),
				uint8(a >> 8),
			})
		}
	}

	return diff
}

// sameColor compares two colors in premultiplied 16-bit space, so a paletted
// pixel and an RGBA pixel of the same color match.
func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}
