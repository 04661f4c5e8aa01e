package debrief

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite", ":memory:", logging.NewTestLogger())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func debriefFor(mission string, committed time.Time, stats ...sim.ShipStats) sim.Debrief {
	return sim.Debrief{
		Mission:   mission,
		Seed:      "seed",
		Started:   committed.Add(-10 * time.Minute),
		Committed: committed,
		Duration:  10 * time.Minute,
		Stats:     stats,
	}
}

func TestRecordPersistsScores(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	viper := sim.ShipStats{Name: "Viper 1", Design: "Viper", Element: "Blue", IFF: 1, Player: true, MissileKills: 2, Points: 300}
	viper.Events = []sim.StatEvent{{Time: 90 * time.Second, Kind: sim.EventMissileKill, Info: "Bandit 1"}}
	bandit := sim.ShipStats{Name: "Bandit 1", Design: "Viper", IFF: 2, Deaths: 1}

	//1.- Two missions are recorded, the second one newer.
	if err := store.Record(ctx, debriefFor("Picket", base, viper, bandit)); err != nil {
		t.Fatalf("record: %v", err)
	}
	viper.Points, viper.MissileKills, viper.Events = 100, 1, nil
	if err := store.Record(ctx, debriefFor("Sweep", base.Add(time.Hour), viper)); err != nil {
		t.Fatalf("record: %v", err)
	}

	missions, err := store.Missions(ctx, 10)
	if err != nil {
		t.Fatalf("missions: %v", err)
	}
	if len(missions) != 2 || missions[0].Mission != "Sweep" {
		t.Fatalf("expected the newest mission first, got %+v", missions)
	}
	picket := missions[1]
	if picket.DurationMs != 600000 || len(picket.Ships) != 2 || picket.Ships[0].Name != "Viper 1" {
		t.Fatalf("unexpected picket record %+v", picket)
	}
	if len(picket.Ships[0].Events) != 1 || picket.Ships[0].Events[0].AtMs != 90000 || picket.Ships[0].Events[0].Kind != string(sim.EventMissileKill) {
		t.Fatalf("expected the kill event to persist, got %+v", picket.Ships[0].Events)
	}
	sides, err := picket.SideTotals()
	if err != nil {
		t.Fatalf("side totals: %v", err)
	}
	if sides["1"] != (Side{Ships: 1, Kills: 2, Points: 300}) || sides["2"] != (Side{Ships: 1, Losses: 1}) {
		t.Fatalf("unexpected side totals %+v", sides)
	}

	//2.- Standings total across missions.
	standings, err := store.Standings(ctx, 5)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if len(standings) != 2 || standings[0].Name != "Viper 1" || standings[0].Points != 400 || standings[0].Kills != 3 || standings[0].Missions != 2 {
		t.Fatalf("unexpected standings %+v", standings)
	}
	if standings[1].Deaths != 1 {
		t.Fatalf("expected the bandit death to count, got %+v", standings[1])
	}
}

func TestCommitMissionWritesToStore(t *testing.T) {
	store := openMemory(t)
	s := sim.New(sim.WithLogger(logging.NewTestLogger()), sim.WithDebriefer(store))
	s.LoadMission(&sim.Mission{Name: "Quiet", Regions: []sim.RegionSpec{{Name: "Alpha", Active: true}}})
	if err := s.ExecMission(); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if err := s.CommitMission(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	missions, err := store.Missions(context.Background(), 0)
	if err != nil || len(missions) != 1 || missions[0].Mission != "Quiet" {
		t.Fatalf("expected the committed mission in the ledger, got %+v (%v)", missions, err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "dsn", nil); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}
