package replayplayer

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/replay"
)

func encodeShips(t *testing.T, names ...string) []byte {
	t.Helper()
	ships := make([]any, 0, len(names))
	for _, name := range names {
		ships = append(ships, map[string]any{"name": name})
	}
	st, err := structpb.NewStruct(map[string]any{"ships": ships})
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	payload, err := proto.Marshal(st)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return payload
}

func TestReplayBundle(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2026, 7, 10, 15, 0, 0, 0, time.UTC)
	writer, manifest, err := replay.NewWriter(tmp, "Picket", 200*time.Millisecond, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	writer.SetHeader("picket-line", []string{"Tal Amin"}, nil)

	//1.- Two frames bracket one kill.
	if err := writer.AppendFrame(1, 0, encodeShips(t, "Viper 1", "Bandit 1")); err != nil {
		t.Fatalf("append frame 1: %v", err)
	}
	if err := writer.AppendEvent(4, 100, replay.EventKill, map[string]any{"ship": "Bandit 1", "killer": "Viper 1", "missile": true}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := writer.AppendFrame(7, 200, encodeShips(t, "Viper 1")); err != nil {
		t.Fatalf("append frame 2: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	report, err := ReplayBundle(filepath.Join(writer.Directory(), "manifest.json"))
	if err != nil {
		t.Fatalf("replay bundle: %v", err)
	}
	if report.Manifest.Version != manifest.Version || report.Header.Seed != "picket-line" {
		t.Fatalf("unexpected manifest %+v header %+v", report.Manifest, report.Header)
	}
	if report.Counts["frame"] != 2 || report.Counts[replay.EventKill] != 1 {
		t.Fatalf("unexpected counts %v", report.Counts)
	}
	if len(report.Kills) != 1 || report.Kills[0].Killer != "Viper 1" || !report.Kills[0].Missile || report.Kills[0].GameMs != 100 {
		t.Fatalf("unexpected kills %+v", report.Kills)
	}
	if strings.Join(report.Roster, ",") != "Bandit 1,Viper 1" {
		t.Fatalf("unexpected roster %v", report.Roster)
	}
	if len(report.Timeline) != 3 || report.Timeline[1].Type != replay.EventKill || len(report.Timeline[2].Ships) != 1 {
		t.Fatalf("unexpected timeline %+v", report.Timeline)
	}
}

func TestReplayBundleRequiresPath(t *testing.T) {
	if _, err := ReplayBundle(""); err == nil {
		t.Fatalf("expected an error without a path")
	}
}
