package hud

import (
	"testing"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/auth"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

func TestBuildSnapshotListsActiveRegion(t *testing.T) {
	fighter := &sim.ShipDesign{Name: "Viper", Class: sim.ClassFighter, Integrity: 100, Mass: 10, Radius: 10}
	s := sim.New(sim.WithLogger(logging.NewTestLogger()), sim.WithSeed("hud"))
	s.LoadMission(&sim.Mission{
		Name: "Patrol",
		Regions: []sim.RegionSpec{
			{Name: "Alpha", Type: sim.RegionSpace, Active: true},
			{Name: "Beta", Type: sim.RegionSpace},
		},
		Elements: []sim.ElementSpec{
			{Name: "Blue", IFF: 1, Design: fighter, Count: 2, Region: "Alpha"},
			{Name: "Red", IFF: 2, Design: fighter, Count: 1, Region: "Beta", Location: geom.V(0, 0, 1000)},
		},
	})
	if err := s.ExecMission(); err != nil {
		t.Fatalf("exec: %v", err)
	}
	s.ExecFrame(0.1)

	snap := BuildSnapshot(s, 3)
	if snap.Region != "Alpha" || snap.Frame != 3 || len(snap.Ships) != 2 {
		t.Fatalf("expected the two blue fighters in Alpha, got %+v", snap)
	}
	if snap.Ships[0].Class != sim.ClassFighter.String() || snap.Ships[0].IFF != 1 {
		t.Fatalf("unexpected view %+v", snap.Ships[0])
	}

	//1.- A pilot pass sees only its own ship.
	pilot := snap.For(&auth.Pass{Ship: snap.Ships[1].Name, Scope: auth.ScopePilot})
	if len(pilot.Ships) != 1 || pilot.Ships[0].Name != snap.Ships[1].Name {
		t.Fatalf("expected the filtered view to keep one ship, got %+v", pilot.Ships)
	}
	if len(snap.Ships) != 2 {
		t.Fatalf("expected filtering to leave the source snapshot intact")
	}
}

func TestBuildSnapshotWithoutSim(t *testing.T) {
	snap := BuildSnapshot(nil, 1)
	if snap.Ships == nil || len(snap.Ships) != 0 || snap.Region != "" {
		t.Fatalf("expected an empty snapshot, got %+v", snap)
	}
}
