package trajview

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/teranos/trajview/trip"
)

// Sink accumulates rendered frames. Append is called once per frame and
// Close exactly once after the last frame; a Close error is fatal.
type Sink interface {
	Append(img image.Image) error
	Close() error
}

// errClosed is returned when a sink is used after Close.
var errClosed = errors.New("sink already closed")

// GIFSink writes all appended frames as one looping GIF. Frames are held in
// memory and the file is only replaced on a successful Close, so a run that
// aborts leaves any previous output in place.
type GIFSink struct {
	path   string
	delay  int // Per-frame delay in 100ths of a second
	width  int // Logical screen used when no frame was appended
	height int
	anim   gif.GIF
	closed bool
}

// NewGIFSink prepares a GIF at path. The output directory is created up
// front, so a bad output path fails before any frame is rendered. delayMs is
// the time between frames in milliseconds.
func NewGIFSink(path string, delayMs int) (*GIFSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, trip.NewFall(trip.Sink, "create output directory", err, trip.Context{"dir": dir})
		}
	}
	canvas := DefaultRenderConfig("")
	return &GIFSink{
		path:   path,
		delay:  delayMs / 10,
		width:  canvas.Width,
		height: canvas.Height,
		anim:   gif.GIF{LoopCount: 0},
	}, nil
}

// Path returns the output file path.
func (s *GIFSink) Path() string {
	return s.path
}

// Frames returns the number of frames appended so far.
func (s *GIFSink) Frames() int {
	return len(s.anim.Image)
}

// Append converts the frame to the Plan9 palette and queues it.
func (s *GIFSink) Append(img image.Image) error {
	if s.closed {
		return trip.NewFall(trip.Sink, "append frame", errClosed, trip.Context{"path": s.path})
	}
	s.anim.Image = append(s.anim.Image, toPaletted(img))
	s.anim.Delay = append(s.anim.Delay, s.delay)
	return nil
}

// Close encodes the animation next to the output and renames it into place.
// With no frames the output is a bare GIF: header, logical screen, trailer.
func (s *GIFSink) Close() error {
	if s.closed {
		return trip.NewFall(trip.Sink, "finalize gif", errClosed, trip.Context{"path": s.path})
	}
	s.closed = true

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return trip.NewFall(trip.Sink, "create output file", err, trip.Context{"path": s.path})
	}
	defer os.Remove(tmp.Name())

	if len(s.anim.Image) > 0 {
		err = gif.EncodeAll(tmp, &s.anim)
	} else {
		err = writeEmptyGIF(tmp, s.width, s.height)
	}
	if err != nil {
		tmp.Close()
		return trip.NewFall(trip.Sink, "encode gif", err, trip.Context{"path": s.path, "frames": len(s.anim.Image)})
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return trip.NewFall(trip.Sink, "set output mode", err, trip.Context{"path": s.path})
	}
	if err := tmp.Close(); err != nil {
		return trip.NewFall(trip.Sink, "close output file", err, trip.Context{"path": s.path})
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return trip.NewFall(trip.Sink, "replace output file", err, trip.Context{"path": s.path})
	}
	return nil
}

// writeEmptyGIF writes a GIF89a stream with a logical screen and no images.
// image/gif refuses to encode zero frames.
func writeEmptyGIF(w io.Writer, width, height int) error {
	header := []byte("GIF89a")
	header = binary.LittleEndian.AppendUint16(header, uint16(width))
	header = binary.LittleEndian.AppendUint16(header, uint16(height))
	header = append(header,
		0x00, // no global color table
		0x00, // background color index
		0x00, // pixel aspect ratio
		0x3b, // trailer
	)
	_, err := w.Write(header)
	return err
}

func toPaletted(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok {
		return p
	}
	bounds := img.Bounds()
	palImg := image.NewPaletted(bounds, palette.Plan9)
	draw.Draw(palImg, bounds, img, bounds.Min, draw.Src)
	return palImg
}

// PNGSink writes every frame as frame_NNNN.png into a directory.
type PNGSink struct {
	dir   string
	count int
}

// NewPNGSink creates the frame directory.
func NewPNGSink(dir string) (*PNGSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, trip.NewFall(trip.Sink, "create frame directory", err, trip.Context{"dir": dir})
	}
	return &PNGSink{dir: dir}, nil
}

// FrameName returns the file name used for frame i.
func FrameName(i int) string {
	return fmt.Sprintf("frame_%04d.png", i)
}

// Append encodes the frame to its own file.
func (s *PNGSink) Append(img image.Image) error {
	path := filepath.Join(s.dir, FrameName(s.count))
	if err := writePNG(path, img); err != nil {
		return trip.NewFall(trip.Sink, "write frame", err, trip.Context{"path": path})
	}
	s.count++
	return nil
}

// Close implements Sink. Frames are already on disk.
func (s *PNGSink) Close() error {
	return nil
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// MultiSink fans frames out to several sinks in order.
type MultiSink []Sink

// Append stops at the first failing sink.
func (m MultiSink) Append(img image.Image) error {
	for _, s := range m {
		if err := s.Append(img); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
