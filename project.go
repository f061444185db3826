package trajview

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teranos/trajview/loader"
)

// Wall planes used to flatten the path. The XY floor and the XZ back wall
// are fixed; the YZ side wall swings to stay behind the path from the
// camera's point of view.
const (
	FloorWall  = -1.0
	BackWall   = -1.0
	NearYZWall = -1.0
	FarYZWall  = 25.0
)

// Projections holds the four point series drawn for one window, in
// render-space (render X = data x, render Y = data z, render Z = data y).
type Projections struct {
	Body []r3.Vec
	XY   []r3.Vec
	XZ   []r3.Vec
	YZ   []r3.Vec
}

// YZWall returns the side wall coordinate for the given yaw.
func YZWall(yaw float64) float64 {
	if yaw > 0 {
		return NearYZWall
	}
	return FarYZWall
}

// Project computes the body path and its three wall projections.
func Project(rows []loader.Row, yaw float64) Projections {
	wall := YZWall(yaw)
	p := Projections{
		Body: make([]r3.Vec, 0, len(rows)),
		XY:   make([]r3.Vec, 0, len(rows)),
		XZ:   make([]r3.Vec, 0, len(rows)),
		YZ:   make([]r3.Vec, 0, len(rows)),
	}
	for _, r := range rows {
		p.Body = append(p.Body, r3.Vec{X: r.X, Y: r.Z, Z: r.Y})
		p.XY = append(p.XY, r3.Vec{X: r.X, Y: FloorWall, Z: r.Y})
		p.XZ = append(p.XZ, r3.Vec{X: r.X, Y: r.Z, Z: BackWall})
		p.YZ = append(p.YZ, r3.Vec{X: wall, Y: r.Z, Z: r.Y})
	}
	return p
}
