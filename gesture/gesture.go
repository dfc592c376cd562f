// Package gesture separates deliberate pan and zoom gestures from clicks.
//
// A press starts a short timer. Releasing before it fires is a click; holding past it
// means the user is dragging the camera. Independently, any drag or pinch clears the
// AllowClicks flag until the gesture ends, so a multi-touch gesture that ends over a
// token cannot select it.
package gesture

import (
	"log/slog"
	"time"

	"tactical-grid/grid"
)

// DefaultClickWindow is how long a press may last and still count as a click.
const DefaultClickWindow = 100 * time.Millisecond

type State int

const (
	Idle State = iota
	Waiting
	Allowed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Allowed:
		return "allowed"
	}
	return "unknown"
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d on the same thread that drives the Disambiguator.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Option func(*Disambiguator)

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(d *Disambiguator) { d.log = l }
}

// OnPanZoom registers a hook called whenever a pan or zoom gesture starts or ends.
func OnPanZoom(f func(active bool)) Option {
	return func(d *Disambiguator) { d.onPanZoom = f }
}

type Disambiguator struct {
	camera *grid.Camera
	sched  Scheduler
	window time.Duration
	log    *slog.Logger

	state State
	timer Timer
	// press is bumped on every pointer-down; a timer only promotes the press it was armed for.
	press   uint64
	pressed bool

	allowClicks bool
	onPanZoom   func(active bool)

	pinchBase        float64
	pannedX, pannedY float64
}

func New(camera *grid.Camera, sched Scheduler, window time.Duration, opts ...Option) *Disambiguator {
	if window <= 0 {
		window = DefaultClickWindow
	}
	d := &Disambiguator{
		camera:      camera,
		sched:       sched,
		window:      window,
		log:         slog.Default(),
		allowClicks: true,
		pinchBase:   1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Disambiguator) State() State { return d.state }

// AllowClicks is false while a pan or pinch is in progress.
func (d *Disambiguator) AllowClicks() bool { return d.allowClicks }

func (d *Disambiguator) PointerDown() {
	d.stopTimer()
	d.press++
	press := d.press
	d.pressed = true
	d.setState(Waiting)
	d.timer = d.sched.AfterFunc(d.window, func() { d.expire(press) })
}

func (d *Disambiguator) expire(press uint64) {
	if press != d.press || d.state != Waiting {
		return
	}
	d.timer = nil
	d.setState(Allowed)
}

// PointerMove reports pointer motion. Motion with the button held is a drag.
func (d *Disambiguator) PointerMove() {
	if d.pressed {
		d.setPanZoom(true)
	}
}

// PointerUp ends a press and reports whether it counts as a click.
func (d *Disambiguator) PointerUp() bool {
	click := d.state == Waiting && d.allowClicks
	d.stopTimer()
	d.pressed = false
	d.setState(Idle)
	d.setPanZoom(false)
	return click
}

// PanStart resets the pan baseline. Deltas passed to PanMove are cumulative since PanStart.
func (d *Disambiguator) PanStart() {
	d.pannedX, d.pannedY = 0, 0
	d.setPanZoom(true)
}

// PanMove applies only the part of the cumulative delta not yet applied.
func (d *Disambiguator) PanMove(deltaX, deltaY float64) {
	d.camera.PanBy(deltaX-d.pannedX, deltaY-d.pannedY)
	d.pannedX, d.pannedY = deltaX, deltaY
}

// PinchStart captures the zoom at the start of the pinch. Scales passed to PinchMove are
// ratios against that captured zoom, not against the previous frame.
func (d *Disambiguator) PinchStart(focal grid.Point, scale float64) {
	d.pinchBase = d.camera.Zoom
	d.setPanZoom(true)
	d.camera.ZoomAt(focal, d.pinchBase*scale)
}

func (d *Disambiguator) PinchMove(focal grid.Point, scale float64) {
	d.camera.ZoomAt(focal, d.pinchBase*scale)
}

// GestureEnd marks the end of a touch gesture.
func (d *Disambiguator) GestureEnd() {
	d.setPanZoom(false)
}

// Wheel zooms one notch per unit of notches about focal; positive zooms in.
func (d *Disambiguator) Wheel(focal grid.Point, notches int) {
	for ; notches > 0; notches-- {
		d.camera.ZoomIn(focal)
	}
	for ; notches < 0; notches++ {
		d.camera.ZoomOut(focal)
	}
}

func (d *Disambiguator) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Disambiguator) setState(s State) {
	if d.state != s {
		d.log.Debug("gesture state", "from", d.state, "to", s)
	}
	d.state = s
}

func (d *Disambiguator) setPanZoom(active bool) {
	if d.allowClicks == !active {
		return
	}
	d.allowClicks = !active
	if d.onPanZoom != nil {
		d.onPanZoom(active)
	}
}
