// Package grid maps tile coordinates into the world plane and the world plane onto the
// screen through a pan/zoom camera.
//
// World units are tile-sized cells of edge TileSize. A tile's rectangle is shifted up by
// half a cell so tokens sit centred on the grid lines drawn by the background.
package grid

import (
	"math"

	"golang.org/x/image/math/f64"

	"tactical-grid/game"
)

// TileSize is the edge length of one tile in world units.
const TileSize = 100.0

type Point struct {
	X, Y float64
}

type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Union is the smallest rectangle containing both r and o. A zero rectangle is the identity.
func (r Rect) Union(o Rect) Rect {
	if r.W == 0 && r.H == 0 {
		return o
	}
	if o.W == 0 && o.H == 0 {
		return r
	}
	x0, y0 := math.Min(r.X, o.X), math.Min(r.Y, o.Y)
	x1, y1 := math.Max(r.X+r.W, o.X+o.W), math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Quad is a transformed rectangle given by its four corners.
type Quad struct {
	NW, NE, SE, SW Point
}

func (r Rect) Corners() Quad {
	return Quad{
		NW: Point{r.X, r.Y},
		NE: Point{r.X + r.W, r.Y},
		SE: Point{r.X + r.W, r.Y + r.H},
		SW: Point{r.X, r.Y + r.H},
	}
}

// TileRect is the world rectangle covered by a footprint anchored at coord.
func TileRect(coord game.TileCoordinate, fp game.Footprint) Rect {
	fp = fp.Normalize()
	return Rect{
		X: float64(coord.X) * TileSize,
		Y: float64(coord.Y)*TileSize - TileSize/2,
		W: float64(fp.W) * TileSize,
		H: float64(fp.H) * TileSize,
	}
}

// TileAt is the tile on layer z whose rectangle contains the world point p.
func TileAt(p Point, z int) game.TileCoordinate {
	return game.TileCoordinate{
		X: int(math.Floor(p.X / TileSize)),
		Y: int(math.Floor((p.Y + TileSize/2) / TileSize)),
		Z: z,
	}
}

// Identity is the identity affine transform.
var Identity = f64.Aff3{1, 0, 0, 0, 1, 0}

// Apply transforms p by m.
func Apply(m f64.Aff3, p Point) Point {
	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// Mul returns the transform that applies b then a.
func Mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// Invert returns the inverse of m. ok is false when m is singular.
func Invert(m f64.Aff3) (inv f64.Aff3, ok bool) {
	det := m[0]*m[4] - m[1]*m[3]
	if det == 0 || math.IsNaN(det) {
		return f64.Aff3{}, false
	}
	return f64.Aff3{
		m[4] / det, -m[1] / det, (m[1]*m[5] - m[4]*m[2]) / det,
		-m[3] / det, m[0] / det, (m[3]*m[2] - m[0]*m[5]) / det,
	}, true
}

// Anchor projects the corners of a local rectangle through its screen transform.
// Popovers use the result to position themselves next to the element that was clicked.
func Anchor(r Rect, m f64.Aff3) Quad {
	c := r.Corners()
	return Quad{NW: Apply(m, c.NW), NE: Apply(m, c.NE), SE: Apply(m, c.SE), SW: Apply(m, c.SW)}
}
