package trajview

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Camera oscillation constants.
const (
	YawLow       = 0.52
	YawHigh      = 1.05
	YawStep      = 0.002
	InitialYaw   = YawHigh
	DefaultPitch = 0.5234
	DefaultScale = 0.8
)

// CameraState is the slowly swinging part of the camera: the yaw and the
// direction it is currently drifting in.
type CameraState struct {
	Yaw   float64
	Delta float64
}

// InitialCameraState starts at the upper bound drifting down.
func InitialCameraState() CameraState {
	return CameraState{Yaw: InitialYaw, Delta: -YawStep}
}

// Advance moves the camera one frame. The direction flips to +YawStep below
// YawLow and to -YawStep above YawHigh, and is kept otherwise; the yaw then
// moves by the (possibly new) delta.
func Advance(s CameraState) CameraState {
	switch {
	case s.Yaw < YawLow:
		s.Delta = YawStep
	case s.Yaw > YawHigh:
		s.Delta = -YawStep
	}
	s.Yaw += s.Delta
	return s
}

// Camera is a tracking rig: fixed pitch and scale, oscillating yaw.
type Camera struct {
	Pitch float64
	Scale float64
	state CameraState
}

// NewCamera creates a camera at the initial state.
func NewCamera(pitch, scale float64) *Camera {
	return &Camera{Pitch: pitch, Scale: scale, state: InitialCameraState()}
}

// State returns the current camera state.
func (c *Camera) State() CameraState {
	return c.state
}

// Step advances the camera one frame and returns the projection for it.
func (c *Camera) Step() Projection {
	c.state = Advance(c.state)
	return NewProjection(c.Pitch, c.state.Yaw, c.Scale)
}

// Projection maps render-space points, normalized to a unit cube centred at
// the origin, onto the view plane: yaw about the vertical axis, then pitch
// about the horizontal screen axis, then uniform scale.
type Projection struct {
	Pitch float64
	Yaw   float64
	Scale float64

	yaw   r3.Rotation
	pitch r3.Rotation
}

// NewProjection builds the projection for one frame.
func NewProjection(pitch, yaw, scale float64) Projection {
	return Projection{
		Pitch: pitch,
		Yaw:   yaw,
		Scale: scale,
		yaw:   r3.NewRotation(yaw, r3.Vec{Y: 1}),
		pitch: r3.NewRotation(pitch, r3.Vec{X: 1}),
	}
}

// Apply rotates and scales p. The result's X and Y are screen coordinates
// (Y up) and Z is depth towards the viewer.
func (p Projection) Apply(v r3.Vec) r3.Vec {
	v = p.yaw.Rotate(v)
	v = p.pitch.Rotate(v)
	return r3.Scale(p.Scale, v)
}
