package trajview

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/trajview/loader"
	"github.com/teranos/trajview/trip"
)

func diagonalRows(n int) []loader.Row {
	rows := make([]loader.Row, n)
	for i := range rows {
		v := float64(i) * 20 / float64(n)
		rows[i] = loader.Row{X: v, Y: v, Z: v / 2, T: float64(i)}
	}
	return rows
}

func testShot(yaw float64) Shot {
	return ShotFor(Project(diagonalRows(160), yaw), 0, NewProjection(DefaultPitch, yaw, DefaultScale))
}

// countHue counts pixels where one channel clearly dominates, so
// antialiased line edges still count.
func countHue(t *testing.T, stage *RenderingStage, shot Shot, channel int) int {
	t.Helper()
	img, err := stage.Render(shot)
	require.NoError(t, err)

	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			ch := [3]int{int(c.R), int(c.G), int(c.B)}
			dominant := true
			for i := range ch {
				if i != channel && ch[channel]-ch[i] < 80 {
					dominant = false
				}
			}
			if dominant {
				n++
			}
		}
	}
	return n
}

func TestDefaultRenderConfig(t *testing.T) {
	cfg := DefaultRenderConfig("walker")
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 450, cfg.Height)
	assert.Equal(t, "walker", cfg.Caption)
	assert.Equal(t, Range{Min: -1, Max: 25}, cfg.X)
	assert.Equal(t, Range{Min: -1, Max: 20}, cfg.Y)
	assert.Equal(t, Range{Min: -1, Max: 25}, cfg.Z)
}

func TestShotFor(t *testing.T) {
	shot := testShot(1.0)

	require.Len(t, shot.Series, 4)
	assert.Equal(t, "Body", shot.Series[0].Label)
	assert.True(t, shot.Series[0].Markers)
	assert.Equal(t, ColorXY, shot.Series[1].Color)
	assert.Equal(t, ColorXZ, shot.Series[2].Color)
	assert.Equal(t, ColorYZ, shot.Series[3].Color)

	require.Len(t, shot.Annotations, 2)
	assert.Equal(t, Annotation{Text: "period: 0", X: 20, Y: 400}, shot.Annotations[0])
	assert.Equal(t, Annotation{Text: "time: 0.00", X: 20, Y: 420}, shot.Annotations[1])
}

func TestTimeLabel(t *testing.T) {
	assert.Equal(t, "time: 0.00", TimeLabel(0))
	assert.Equal(t, "time: 12.35", TimeLabel(12.345678))
}

func TestRenderingStage_Render(t *testing.T) {
	stage := NewRenderingStage(DefaultRenderConfig("walker"))

	img, err := stage.Render(testShot(1.0))
	require.NoError(t, err)

	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 450, img.Bounds().Dy())
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(599, 449))
}

func TestRenderingStage_DrawsEverySeries(t *testing.T) {
	stage := NewRenderingStage(DefaultRenderConfig("walker"))
	shot := testShot(1.0)

	for channel, name := range []string{"red", "green", "blue"} {
		assert.Positive(t, countHue(t, stage, shot, channel), "no %s pixels", name)
	}
}

func TestRenderingStage_Deterministic(t *testing.T) {
	stage := NewRenderingStage(DefaultRenderConfig("walker"))

	a, err := stage.Render(testShot(0.9))
	require.NoError(t, err)
	b, err := stage.Render(testShot(0.9))
	require.NoError(t, err)
	assert.Zero(t, Difference(a, b))

	c, err := stage.Render(testShot(0.6))
	require.NoError(t, err)
	assert.Positive(t, Difference(a, c))
}

func TestRenderingStage_Errors(t *testing.T) {
	t.Run("undrawable point", func(t *testing.T) {
		stage := NewRenderingStage(DefaultRenderConfig("walker"))
		rows := diagonalRows(10)
		rows[3].X = math.NaN()
		shot := ShotFor(Project(rows, 1), 0, NewProjection(DefaultPitch, 1, DefaultScale))

		_, err := stage.Render(shot)
		require.Error(t, err)
		assert.Equal(t, trip.Render, kindOf(err))
		assert.True(t, trip.IsFall(err))
	})

	t.Run("invalid canvas", func(t *testing.T) {
		cfg := DefaultRenderConfig("walker")
		cfg.Width = 0
		_, err := NewRenderingStage(cfg).Render(testShot(1))
		assert.Error(t, err)
	})

	t.Run("empty range", func(t *testing.T) {
		cfg := DefaultRenderConfig("walker")
		cfg.Y = Range{Min: 3, Max: 3}
		_, err := NewRenderingStage(cfg).Render(testShot(1))
		assert.Error(t, err)
	})
}

func TestTicks(t *testing.T) {
	assert.Equal(t, []float64{0, 5, 10, 15, 20, 25}, ticks(Range{Min: -1, Max: 25}, 5))
	assert.Equal(t, []float64{0, 5, 10, 15, 20}, ticks(Range{Min: -1, Max: 20}, 5))
	assert.Nil(t, ticks(Range{Min: 0, Max: 1}, 0))
}
