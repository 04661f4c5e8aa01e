package sim

import (
	"testing"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

func TestRegionCleanupNotifiesOnce(t *testing.T) {
	s, r := newTestSim(t)
	ship := s.CreateShip(fighterDesign(), "Viper", "Alpha", geom.Vec3{}, 1)
	watcher := &countingObserver{}
	ship.Observe(watcher)

	//1.- A dead ship is removed by the next pass and its observers hear once.
	ship.Destroy()
	r.collect()
	r.collect()
	if watcher.calls != 1 {
		t.Fatalf("expected one destruction notice, got %d", watcher.calls)
	}
	if r.NumShips() != 0 || r.FindShip("Viper") != nil {
		t.Fatalf("expected the ship to be gone from the region")
	}
}

func TestRegionInsertMovesBetweenRegions(t *testing.T) {
	s, alpha := newTestSim(t)
	beta := NewRegion("Beta", RegionSpace, geom.V(1e6, 0, 0))
	s.AddRegion(beta)
	ship := s.CreateShip(fighterDesign(), "Viper", "Alpha", geom.Vec3{}, 1)

	beta.InsertObject(ship)
	beta.InsertObject(ship)
	if alpha.NumShips() != 0 || beta.NumShips() != 1 || ship.Region() != beta {
		t.Fatalf("expected the ship to belong only to Beta")
	}
}

func TestRegionTracksByIFF(t *testing.T) {
	s, r := newTestSim(t)
	s.CreateShip(fighterDesign(), "Blue", "Alpha", geom.Vec3{}, 1)
	s.CreateShip(fighterDesign(), "Red", "Alpha", geom.V(5000, 0, 0), 2)

	r.ExecFrame(0.1)
	if len(r.TrackList(1)) != 1 || len(r.TrackList(2)) != 1 || len(r.TrackList(3)) != 0 {
		t.Fatalf("expected one track per side")
	}

	//1.- Deactivation clears the tracks and can repeat safely.
	r.Deactivate()
	r.Deactivate()
	if r.IsActive() || len(r.TrackList(1)) != 0 {
		t.Fatalf("expected an idle region without tracks")
	}
}

func TestRegionTracksReuseContacts(t *testing.T) {
	s, r := newTestSim(t)
	blue := s.CreateShip(fighterDesign(), "Blue", "Alpha", geom.Vec3{}, 1)
	red := s.CreateShip(fighterDesign(), "Red", "Alpha", geom.V(5000, 0, 0), 2)

	//1.- Repeated frames keep the same contact and a single subscription.
	r.ExecFrame(0.1)
	first := r.TrackList(1)[0]
	observers := blue.Observers()
	for i := 0; i < 5; i++ {
		r.ExecFrame(0.1)
	}
	if got := r.TrackList(1); len(got) != 1 || got[0] != first {
		t.Fatalf("expected the blue track to be reused, got %v", got)
	}
	if blue.Observers() != observers {
		t.Fatalf("expected %d observers on blue, got %d", observers, blue.Observers())
	}
	if first.Location() != blue.Location() {
		t.Fatalf("expected the reused track to follow the ship")
	}

	//2.- A ship changing sides moves to the other list.
	red.SetIFF(1)
	r.ExecFrame(0.1)
	if len(r.TrackList(1)) != 2 || len(r.TrackList(2)) != 0 {
		t.Fatalf("expected red to be tracked with blue, got %d and %d", len(r.TrackList(1)), len(r.TrackList(2)))
	}
}

func TestRegionIgnoresNonPositiveFrames(t *testing.T) {
	s, r := newTestSim(t)
	s.CreateShip(fighterDesign(), "Blue", "Alpha", geom.Vec3{}, 1)
	r.ExecFrame(0)
	r.ExecFrame(-1)
	if r.SimTime() != 0 || len(r.TrackList(1)) != 0 {
		t.Fatalf("expected no step for non-positive frames")
	}
}

func TestRegionTimeSkipNeedsQuiet(t *testing.T) {
	s, r := newTestSim(t)
	ship := s.CreateShip(fighterDesign(), "Blue", "Alpha", geom.Vec3{}, 1)
	if !r.CanTimeSkip() {
		t.Fatalf("expected a quiet region to allow skipping")
	}
	ship.DeathSpiral()
	if r.CanTimeSkip() {
		t.Fatalf("expected a dying ship to block skipping")
	}
}
