// Package tui draws a viewport in a terminal and feeds it mouse and keyboard input.
//
// The terminal is treated as a screen of CellWidth×CellHeight pixel cells: a mouse event in
// cell (x, y) is a pointer at the centre of that cell, and an element covers every cell whose
// centre lies inside its projected rectangle.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"tactical-grid/draft"
	"tactical-grid/gesture"
	"tactical-grid/grid"
	"tactical-grid/render"
	"tactical-grid/viewport"
)

type Options struct {
	CellWidth  float64
	CellHeight float64
	Logger     *slog.Logger
}

func DefaultOptions() Options {
	return Options{CellWidth: 10, CellHeight: 20}
}

// menuRow is one line of the open creature menu. The title row has no label.
type menuRow struct {
	y, x0, x1 int
	label     string
}

type View struct {
	screen tcell.Screen
	loop   *viewport.Loop
	vp     *viewport.Viewport
	cellW  float64
	cellH  float64
	log    *slog.Logger
	quit   context.CancelFunc

	menu      []menuRow
	pressed   bool
	onMenu    bool
	menuPress string
}

// New wraps an initialised screen. Bind must be called before the view is run.
func New(screen tcell.Screen, loop *viewport.Loop, opts Options) *View {
	if opts.CellWidth <= 0 || opts.CellHeight <= 0 {
		d := DefaultOptions()
		opts.CellWidth, opts.CellHeight = d.CellWidth, d.CellHeight
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &View{
		screen: screen,
		loop:   loop,
		cellW:  opts.CellWidth,
		cellH:  opts.CellHeight,
		log:    opts.Logger,
	}
}

// Bind attaches the viewport and sizes it to the terminal.
func (v *View) Bind(vp *viewport.Viewport) {
	v.vp = vp
	v.resize()
}

// Post runs f on the loop and redraws afterwards.
func (v *View) Post(f func()) {
	v.loop.Post(func() {
		f()
		v.Draw()
	})
}

// AfterFunc implements gesture.Scheduler with a redraw after f.
func (v *View) AfterFunc(d time.Duration, f func()) gesture.Timer {
	return v.loop.AfterFunc(d, func() {
		f()
		v.Draw()
	})
}

// Run polls terminal events into the loop until ctx is done or the user quits.
// The screen is finalised on return.
func (v *View) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v.quit = cancel

	go v.poll()
	v.Post(func() {})

	err := v.loop.Run(ctx)
	v.screen.Fini()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (v *View) poll() {
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return
		}
		v.Post(func() {
			if !v.HandleEvent(ev) && v.quit != nil {
				v.quit()
			}
		})
	}
}

func (v *View) resize() {
	if v.vp == nil {
		return
	}
	cols, rows := v.screen.Size()
	v.vp.Resize(float64(cols)*v.cellW, float64(max(rows-1, 0))*v.cellH)
}

// toScreen is the pointer position of a terminal cell.
func (v *View) toScreen(x, y int) grid.Point {
	return grid.Point{X: (float64(x) + 0.5) * v.cellW, Y: (float64(y) + 0.5) * v.cellH}
}

func (v *View) toCell(p grid.Point) (int, int) {
	return int(math.Floor(p.X / v.cellW)), int(math.Floor(p.Y / v.cellH))
}

// HandleEvent applies one terminal event. It returns false when the user asked to quit.
func (v *View) HandleEvent(ev tcell.Event) bool {
	if v.vp == nil {
		return true
	}
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
		v.resize()
	case *tcell.EventKey:
		return v.handleKey(ev)
	case *tcell.EventMouse:
		v.handleMouse(ev)
	}
	return true
}

func (v *View) handleKey(ev *tcell.EventKey) bool {
	d, editing := v.vp.Draft()
	switch ev.Key() {
	case tcell.KeyCtrlC:
		return false
	case tcell.KeyEscape:
		if editing {
			v.vp.CloseEditor()
		} else {
			v.vp.Cancel()
		}
		return true
	case tcell.KeyRune:
	default:
		return true
	}

	w, h := v.vp.ScreenSize()
	centre := grid.Point{X: w / 2, Y: h / 2}
	switch ev.Rune() {
	case 'q':
		return false
	case '+':
		v.vp.Wheel(centre, 1)
	case '-':
		v.vp.Wheel(centre, -1)
	case 's':
		v.vp.SaveEditor()
	case 'm':
		if editing {
			if d.Mode() == draft.PaintTerrain {
				d.SetMode(draft.PaintSpecial)
			} else {
				d.SetMode(draft.PaintTerrain)
			}
		}
	case 'e':
		if !editing {
			if scene, ok := v.vp.World().Scene(v.vp.SceneID()); ok {
				v.vp.OpenEditor(scene.MapID)
			}
		}
	case 'n':
		if v.vp.IsGM() && !editing {
			v.vp.FocusScene(nextScene(v.vp))
		}
	}
	return true
}

func nextScene(vp *viewport.Viewport) string {
	ids := make([]string, 0, len(vp.World().Scenes))
	for id := range vp.World().Scenes {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	i := sort.SearchStrings(ids, vp.SceneID())
	if i < len(ids) && ids[i] == vp.SceneID() {
		i++
	}
	return ids[i%len(ids)]
}

func (v *View) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	p := v.toScreen(x, y)
	buttons := ev.Buttons()

	switch {
	case buttons&tcell.WheelUp != 0:
		v.vp.Wheel(p, 1)
	case buttons&tcell.WheelDown != 0:
		v.vp.Wheel(p, -1)
	case buttons&tcell.Button1 != 0:
		if v.pressed {
			if !v.onMenu {
				v.vp.PointerMove(p)
			}
			return
		}
		v.pressed = true
		if label, ok := v.menuAt(x, y); ok {
			v.onMenu, v.menuPress = true, label
			return
		}
		v.vp.PointerDown(p)
	case v.pressed:
		v.pressed = false
		if v.onMenu {
			v.onMenu = false
			if label, ok := v.menuAt(x, y); ok && label != "" && label == v.menuPress {
				v.vp.Activate(label)
			}
			v.menuPress = ""
			return
		}
		v.vp.PointerUp(p)
	}
}

func (v *View) menuAt(x, y int) (string, bool) {
	for _, r := range v.menu {
		if y == r.y && x >= r.x0 && x < r.x1 {
			return r.label, true
		}
	}
	return "", false
}

// Draw renders the current frame and the status line.
func (v *View) Draw() {
	if v.vp == nil {
		return
	}
	v.screen.Clear()
	v.menu = v.menu[:0]
	cam := v.vp.Camera()
	for _, el := range v.vp.Frame() {
		switch {
		case el.Kind == render.KindBackground:
		case el.Kind == render.KindMenu:
			v.drawMenu(el)
		case el.Kind == render.KindPopover:
			v.drawPopover(el)
		case el.Kind == render.KindPlaceholder && el.Layer == render.LayerOverlay:
			v.drawCentred(el.Label)
		default:
			v.drawTile(el, cam)
		}
	}
	v.drawStatus()
	v.screen.Show()
}

// cells is the clipped cell range covered by a world rectangle. A rectangle smaller than a
// cell still covers the cell under its centre.
func (v *View) cells(r grid.Rect, cam grid.Camera) (x0, y0, x1, y1 int) {
	nw := cam.WorldToScreen(grid.Point{X: r.X, Y: r.Y})
	se := cam.WorldToScreen(grid.Point{X: r.X + r.W, Y: r.Y + r.H})
	x0 = int(math.Ceil(nw.X/v.cellW - 0.5))
	x1 = int(math.Ceil(se.X/v.cellW - 0.5))
	y0 = int(math.Ceil(nw.Y/v.cellH - 0.5))
	y1 = int(math.Ceil(se.Y/v.cellH - 0.5))
	if x0 >= x1 {
		x0 = int(math.Floor((nw.X + se.X) / 2 / v.cellW))
		x1 = x0 + 1
	}
	if y0 >= y1 {
		y0 = int(math.Floor((nw.Y + se.Y) / 2 / v.cellH))
		y1 = y0 + 1
	}
	cols, rows := v.screen.Size()
	return max(x0, 0), max(y0, 0), min(x1, cols), min(y1, rows-1)
}

func (v *View) drawTile(el render.Element, cam grid.Camera) {
	x0, y0, x1, y1 := v.cells(el.Rect, cam)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	style, fill := tileStyle(el)
	if fill != 0 {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				v.screen.SetContent(x, y, fill, nil, style)
			}
		}
	}
	if el.Label == "" {
		return
	}
	label := []rune(el.Label)
	if len(label) > x1-x0 {
		label = label[:x1-x0]
	}
	x := x0 + (x1-x0-len(label))/2
	y := y0 + (y1-y0)/2
	for i, r := range label {
		v.screen.SetContent(x+i, y, r, nil, style)
	}
}

// tileStyle picks the cell style and fill rune of a world element. A zero rune leaves the
// cells underneath untouched.
func tileStyle(el render.Element) (tcell.Style, rune) {
	style := tcell.StyleDefault
	var fill rune
	switch el.Kind {
	case render.KindTerrain:
		style = style.Foreground(tcell.ColorGray)
		fill = '·'
	case render.KindClosedTile:
		style = style.Foreground(tcell.ColorDarkGray)
		fill = '░'
	case render.KindSpecial, render.KindDestination:
		style = style.Background(tcell.GetColor(el.Fill)).Foreground(tcell.ColorBlack)
		fill = ' '
	case render.KindAnnotation:
		style = style.Foreground(tcell.ColorYellow).Bold(true)
	case render.KindCreature:
		style = style.Background(tcell.GetColor(el.Fill)).Foreground(tcell.ColorBlack)
		fill = ' '
		if el.Image != "" {
			style = style.Background(tcell.ColorWhite)
		}
	case render.KindPlaceholder:
		style = style.Foreground(tcell.ColorRed)
	}
	if el.StrokeWidth >= 3 {
		style = style.Bold(true)
	}
	if el.Stroke == "red" {
		style = style.Foreground(tcell.ColorRed).Underline(true)
	}
	if el.Opacity < 1 || (el.FillOpacity > 0 && el.FillOpacity < 1 && el.Kind != render.KindDestination) {
		style = style.Dim(true)
	}
	return style, fill
}

func (v *View) drawMenu(el render.Element) {
	x, y := v.toCell(el.Anchor.SW)
	width := len([]rune(el.Label))
	for _, item := range el.Items {
		width = max(width, len([]rune(item)))
	}
	width += 2
	cols, rows := v.screen.Size()
	x = max(min(x, cols-width), 0)
	y = max(min(y, rows-2-len(el.Items)), 0)

	title := tcell.StyleDefault.Reverse(true).Bold(true)
	item := tcell.StyleDefault.Reverse(true)
	v.putPadded(x, y, width, el.Label, title)
	v.menu = append(v.menu, menuRow{y: y, x0: x, x1: x + width})
	for i, label := range el.Items {
		v.putPadded(x, y+1+i, width, label, item)
		v.menu = append(v.menu, menuRow{y: y + 1 + i, x0: x, x1: x + width, label: label})
	}
}

func (v *View) drawPopover(el render.Element) {
	x, y := v.toCell(el.Anchor.SW)
	cols, rows := v.screen.Size()
	width := len([]rune(el.Label)) + 2
	x = max(min(x, cols-width), 0)
	y = max(min(y, rows-2), 0)
	v.putPadded(x, y, width, el.Label, tcell.StyleDefault.Reverse(true))
}

func (v *View) drawCentred(text string) {
	cols, rows := v.screen.Size()
	x := max((cols-len([]rune(text)))/2, 0)
	v.put(x, max(rows-1, 1)/2, text, tcell.StyleDefault.Foreground(tcell.ColorRed))
}

func (v *View) drawStatus() {
	cols, rows := v.screen.Size()
	if rows == 0 {
		return
	}
	var status string
	if d, ok := v.vp.Draft(); ok {
		status = fmt.Sprintf("edit %s  mode: %s  [s]ave [m]ode [esc] close", d.MapID(), d.Mode())
	} else {
		who := "gm"
		if !v.vp.IsGM() {
			who = "player"
		}
		status = fmt.Sprintf("%s  %s  zoom %.2f  [esc] cancel [q]uit", v.vp.SceneID(), who, v.vp.Camera().Zoom)
		if v.vp.IsGM() {
			status += " [e]dit [n]ext scene"
		}
	}
	v.putPadded(0, rows-1, cols, strings.TrimRight(status, " "), tcell.StyleDefault.Reverse(true))
}

func (v *View) put(x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		v.screen.SetContent(x+i, y, r, nil, style)
	}
}

// putPadded writes text after one space of padding and fills the rest of width.
func (v *View) putPadded(x, y, width int, text string, style tcell.Style) {
	line := []rune(" " + text)
	for i := 0; i < width; i++ {
		r := ' '
		if i < len(line) {
			r = line[i]
		}
		v.screen.SetContent(x+i, y, r, nil, style)
	}
}
