package grid

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Camera is the pan offset and zoom applied to the world plane.
// Screen = World*Zoom + Pan.
type Camera struct {
	PanX, PanY float64
	Zoom       float64

	MinZoom, MaxZoom float64
	// Sensitivity is the relative zoom change of one wheel notch.
	Sensitivity float64
}

func NewCamera(minZoom, maxZoom, sensitivity float64) Camera {
	return Camera{Zoom: 1, MinZoom: minZoom, MaxZoom: maxZoom, Sensitivity: sensitivity}
}

// DefaultCamera matches svg-pan-zoom's defaults.
func DefaultCamera() Camera {
	return NewCamera(0.5, 10, 0.3)
}

// Matrix is the world-to-screen transform.
func (c Camera) Matrix() f64.Aff3 {
	return f64.Aff3{c.Zoom, 0, c.PanX, 0, c.Zoom, c.PanY}
}

func (c Camera) WorldToScreen(p Point) Point {
	return Apply(c.Matrix(), p)
}

// ScreenToWorld inverts the camera transform. A degenerate camera maps everything to the origin.
func (c Camera) ScreenToWorld(p Point) Point {
	inv, ok := Invert(c.Matrix())
	if !ok {
		return Point{}
	}
	return Apply(inv, p)
}

// PanBy moves the camera by a screen-space delta.
func (c *Camera) PanBy(dx, dy float64) {
	c.PanX += dx
	c.PanY += dy
}

func (c *Camera) clamp(z float64) float64 {
	if c.MinZoom > 0 && z < c.MinZoom {
		z = c.MinZoom
	}
	if c.MaxZoom > 0 && z > c.MaxZoom {
		z = c.MaxZoom
	}
	return z
}

// ZoomTo sets the zoom scale, keeping the world point under the screen origin fixed.
func (c *Camera) ZoomTo(scale float64) {
	c.ZoomAt(Point{}, scale)
}

// ZoomAt sets the zoom scale keeping the world point under the screen point focal fixed.
func (c *Camera) ZoomAt(focal Point, scale float64) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return
	}
	scale = c.clamp(scale)
	w := c.ScreenToWorld(focal)
	c.Zoom = scale
	c.PanX = focal.X - w.X*scale
	c.PanY = focal.Y - w.Y*scale
}

// ZoomIn and ZoomOut step the zoom by one Sensitivity notch about focal.
func (c *Camera) ZoomIn(focal Point) {
	c.ZoomAt(focal, c.Zoom*(1+c.Sensitivity))
}

func (c *Camera) ZoomOut(focal Point) {
	c.ZoomAt(focal, c.Zoom/(1+c.Sensitivity))
}

// Fit centres bounds in a w×h screen at the largest zoom that shows all of it, then steps out
// one notch to leave a margin.
func (c *Camera) Fit(bounds Rect, w, h float64) {
	if bounds.W <= 0 || bounds.H <= 0 || w <= 0 || h <= 0 {
		return
	}
	c.Zoom = c.clamp(math.Min(w/bounds.W, h/bounds.H))
	c.Center(bounds, w, h)
	c.ZoomOut(Point{X: w / 2, Y: h / 2})
}

// Center pans so the centre of bounds is in the centre of a w×h screen.
func (c *Camera) Center(bounds Rect, w, h float64) {
	cx := bounds.X + bounds.W/2
	cy := bounds.Y + bounds.H/2
	c.PanX = w/2 - cx*c.Zoom
	c.PanY = h/2 - cy*c.Zoom
}
