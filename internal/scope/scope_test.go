package scope

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/hud"
)

func newScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init simulation screen: %v", err)
	}
	screen.SetSize(w, h)
	t.Cleanup(screen.Fini)
	return screen
}

func rowText(screen tcell.SimulationScreen, y, w int) string {
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := screen.GetContent(x, y)
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

func patrolSnapshot() hud.Snapshot {
	return hud.Snapshot{
		Frame:  42,
		GameMs: 125_000,
		Region: "Tal Amin",
		Ships: []hud.ShipView{
			{Name: "Viper 1", Class: "fighter", IFF: 1, Integrity: 120, Shield: 0.5, Target: "Kestrel", Director: "patrol"},
			{Name: "Kestrel", Class: "frigate", IFF: 2, Position: [3]float64{20e3, 0, 20e3}},
			{Name: "Bandit 9", Class: "fighter", IFF: 2, Position: [3]float64{500e3, 0, 0}, Dying: true},
		},
	}
}

func TestDrawPlotsShipsAroundTrackedCenter(t *testing.T) {
	screen := newScreen(t, 41, 22)
	s := New(screen, WithCenter("Viper 1"), WithRange(40e3))
	s.Draw(patrolSnapshot())

	//1.- The tracked fighter sits mid-plot; the frigate half range out up and right.
	if r, _, _, _ := screen.GetContent(20, 11); r != 'f' {
		t.Fatalf("expected the fighter glyph at the center, got %q", r)
	}
	if r, _, _, _ := screen.GetContent(30, 6); r != 'F' {
		t.Fatalf("expected the frigate glyph at (30,6), got %q", r)
	}
	if !strings.HasPrefix(rowText(screen, 6, 41)[30:], "F Kestrel") {
		t.Fatalf("expected the frigate label beside its glyph, got %q", rowText(screen, 6, 41))
	}

	//2.- Header and status rows describe the frame.
	if got := rowText(screen, 0, 41); got != "Tal Amin  T+02:05  frame 42  range 40km" {
		t.Fatalf("unexpected header %q", got)
	}
	status := rowText(screen, 21, 41)
	if !strings.HasPrefix(status, "Viper 1 fighter hull 120 shield 50%") {
		t.Fatalf("unexpected status %q", status)
	}
}

func TestDrawCountsOffScopeContacts(t *testing.T) {
	screen := newScreen(t, 80, 24)
	s := New(screen, WithRange(40e3))

	//1.- Without a tracked ship the plot centers on the centroid, here the origin.
	s.Draw(hud.Snapshot{Region: "Tal Amin", Ships: []hud.ShipView{
		{Name: "North", Class: "fighter", IFF: 1, Position: [3]float64{0, 0, 10e3}},
		{Name: "South", Class: "fighter", IFF: 2, Position: [3]float64{0, 0, -10e3}},
		{Name: "Far North", Class: "cruiser", IFF: 1000, Position: [3]float64{0, 0, 900e3}},
		{Name: "Far South", Class: "cruiser", IFF: 1000, Position: [3]float64{0, 0, -900e3}},
	}})

	if got := rowText(screen, 23, 80); got != "4 contacts  2 off-scope" {
		t.Fatalf("unexpected status %q", got)
	}
	if r, _, _, _ := screen.GetContent(40, 12-3); r != 'f' {
		t.Fatalf("expected the northern fighter above the center, got %q", r)
	}
}

func TestZoomClampsRange(t *testing.T) {
	s := New(newScreen(t, 40, 20), WithRange(5000))
	s.ZoomIn()
	s.ZoomIn()
	if s.Range() != MinRange {
		t.Fatalf("expected the range to stop at %v, got %v", MinRange, s.Range())
	}
	for i := 0; i < 12; i++ {
		s.ZoomOut()
	}
	if s.Range() != MaxRange {
		t.Fatalf("expected the range to stop at %v, got %v", MaxRange, s.Range())
	}
}

func TestCycleCenterWalksLastSnapshot(t *testing.T) {
	s := New(newScreen(t, 40, 20))
	if s.CycleCenter() != "" {
		t.Fatalf("expected no center before a snapshot")
	}
	s.Draw(patrolSnapshot())
	for _, want := range []string{"Viper 1", "Kestrel", "Bandit 9", "Viper 1"} {
		if got := s.CycleCenter(); got != want {
			t.Fatalf("expected center %q, got %q", want, got)
		}
	}
}

func TestGlyph(t *testing.T) {
	cases := map[string]struct {
		view hud.ShipView
		want rune
	}{
		"fighter": {hud.ShipView{Class: "fighter"}, 'f'},
		"carrier": {hud.ShipView{Class: "carrier"}, 'C'},
		"dying":   {hud.ShipView{Class: "carrier", Dying: true}, '*'},
		"unknown": {hud.ShipView{}, '?'},
	}
	for name, tc := range cases {
		if got := Glyph(tc.view); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", name, tc.want, got)
		}
	}
}
