package scope

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/hud"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// Range limits for the plot half-width in meters.
const (
	DefaultRange = 40e3
	MinRange     = 2500.0
	MaxRange     = 640e3
)

var (
	styleHeader  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleFriend  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleHostile = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleUnknown = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleDying   = tcell.StyleDefault.Foreground(tcell.ColorOrange).Blink(true)
	styleCenter  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

// Scope draws HUD snapshots as a top-down plot: +x runs right and +z runs up.
type Scope struct {
	mu     sync.Mutex
	screen tcell.Screen
	rng    float64
	center string
	iff    int
	last   hud.Snapshot
}

// Option customises a Scope.
type Option func(*Scope)

// WithRange sets the initial plot half-width in meters.
func WithRange(meters float64) Option {
	return func(s *Scope) { s.rng = clampRange(meters) }
}

// WithCenter keeps the named ship in the middle of the plot.
func WithCenter(name string) Option {
	return func(s *Scope) { s.center = name }
}

// WithIFF sets the side drawn as friendly when no center ship is tracked.
func WithIFF(iff int) Option {
	return func(s *Scope) { s.iff = iff }
}

// New binds a scope to an initialised screen.
func New(screen tcell.Screen, opts ...Option) *Scope {
	s := &Scope{screen: screen, rng: DefaultRange, iff: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Range returns the current plot half-width in meters.
func (s *Scope) Range() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng
}

// Center returns the tracked ship name.
func (s *Scope) Center() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

// ZoomIn halves the range.
func (s *Scope) ZoomIn() {
	s.mu.Lock()
	s.rng = clampRange(s.rng / 2)
	s.mu.Unlock()
}

// ZoomOut doubles the range.
func (s *Scope) ZoomOut() {
	s.mu.Lock()
	s.rng = clampRange(s.rng * 2)
	s.mu.Unlock()
}

// CycleCenter tracks the ship after the current one in the last drawn snapshot.
func (s *Scope) CycleCenter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ships := s.last.Ships
	if len(ships) == 0 {
		s.center = ""
		return ""
	}
	next := 0
	for i, v := range ships {
		if strings.EqualFold(v.Name, s.center) {
			next = (i + 1) % len(ships)
			break
		}
	}
	s.center = ships[next].Name
	return s.center
}

// HandleKey applies a key press and reports whether the viewer asked to quit.
func (s *Scope) HandleKey(ev *tcell.EventKey) (quit bool) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyTab:
		s.CycleCenter()
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case '+', '=':
			s.ZoomIn()
		case '-', '_':
			s.ZoomOut()
		case 'c':
			s.mu.Lock()
			s.center = ""
			s.mu.Unlock()
		}
	}
	return false
}

// Redraw repaints the last snapshot, for resizes and zoom changes.
func (s *Scope) Redraw() {
	s.mu.Lock()
	snap := s.last
	s.mu.Unlock()
	s.Draw(snap)
}

// Draw plots snap and shows the screen.
func (s *Scope) Draw(snap hud.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snap

	s.screen.Clear()
	w, h := s.screen.Size()
	if w < 10 || h < 4 {
		s.screen.Show()
		return
	}

	//1.- Pick the origin: the tracked ship when present, else the centroid.
	own := s.iff
	var origin [3]float64
	var tracked *hud.ShipView
	for i := range snap.Ships {
		if s.center != "" && strings.EqualFold(snap.Ships[i].Name, s.center) {
			tracked = &snap.Ships[i]
		}
	}
	if tracked != nil {
		origin = tracked.Position
		own = tracked.IFF
	} else if n := len(snap.Ships); n > 0 {
		for _, v := range snap.Ships {
			origin[0] += v.Position[0] / float64(n)
			origin[2] += v.Position[2] / float64(n)
		}
	}

	//2.- Plot every ship inside range; count the rest.
	p := newProjection(w, h, s.rng)
	offscope := 0
	for i := range snap.Ships {
		v := &snap.Ships[i]
		x, y, ok := p.project(v.Position[0]-origin[0], v.Position[2]-origin[2])
		if !ok {
			offscope++
			continue
		}
		style := sideStyle(v.IFF, own)
		if v.Dying {
			style = styleDying
		}
		if v == tracked {
			style = styleCenter
		}
		s.screen.SetContent(x, y, Glyph(*v), nil, style)
		if x+2 < w {
			drawText(s.screen, x+2, y, w, v.Name, style.Reverse(false))
		}
	}

	//3.- Header and status rows frame the plot.
	clock := time.Duration(snap.GameMs) * time.Millisecond
	header := fmt.Sprintf("%s  T+%s  frame %d  range %s", orDash(snap.Region), formatClock(clock), snap.Frame, formatRange(s.rng))
	drawText(s.screen, 0, 0, w, header, styleHeader)
	drawText(s.screen, 0, h-1, w, statusLine(snap, tracked, offscope), styleStatus)
	s.screen.Show()
}

// Glyph is the plot symbol for a ship: a lowercase class initial for small craft,
// uppercase for capital ships, '*' once dying.
func Glyph(v hud.ShipView) rune {
	if v.Dying {
		return '*'
	}
	if v.Class == "" {
		return '?'
	}
	r := rune(v.Class[0])
	if sim.ParseClass(v.Class)&sim.ClassDropships != 0 {
		return unicode.ToLower(r)
	}
	return unicode.ToUpper(r)
}

type projection struct {
	w, top, plotH int
	cells         float64
	rng           float64
}

func newProjection(w, h int, rng float64) projection {
	plotH := h - 2
	//1.- Terminal cells are about twice as tall as wide, so x uses two columns per row.
	cells := math.Min(float64(plotH)/2, float64(w)/4)
	return projection{w: w, top: 1, plotH: plotH, cells: cells, rng: rng}
}

func (p projection) project(dx, dz float64) (int, int, bool) {
	col := p.w/2 + int(math.Round(dx/p.rng*p.cells*2))
	row := p.top + p.plotH/2 - int(math.Round(dz/p.rng*p.cells))
	if col < 0 || col >= p.w || row < p.top || row >= p.top+p.plotH {
		return 0, 0, false
	}
	return col, row, true
}

func sideStyle(iff, own int) tcell.Style {
	switch {
	case iff == own:
		return styleFriend
	case iff >= sim.IFFUnknown:
		return styleUnknown
	default:
		return styleHostile
	}
}

func statusLine(snap hud.Snapshot, tracked *hud.ShipView, offscope int) string {
	var b strings.Builder
	if tracked != nil {
		fmt.Fprintf(&b, "%s %s hull %.0f shield %.0f%%", tracked.Name, tracked.Class, tracked.Integrity, tracked.Shield*100)
		if tracked.Target != "" {
			fmt.Fprintf(&b, " tgt %s", tracked.Target)
		}
		if tracked.Director != "" {
			fmt.Fprintf(&b, " [%s]", tracked.Director)
		}
	} else {
		fmt.Fprintf(&b, "%d contacts", len(snap.Ships))
	}
	if offscope > 0 {
		fmt.Fprintf(&b, "  %d off-scope", offscope)
	}
	return b.String()
}

func drawText(screen tcell.Screen, x, y, w int, text string, style tcell.Style) {
	for _, r := range text {
		if x >= w {
			return
		}
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func formatRange(m float64) string {
	if m >= 1000 {
		return fmt.Sprintf("%gkm", m/1000)
	}
	return fmt.Sprintf("%gm", m)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func clampRange(m float64) float64 {
	if m <= 0 || math.IsNaN(m) {
		return DefaultRange
	}
	return math.Max(MinRange, math.Min(MaxRange, m))
}
