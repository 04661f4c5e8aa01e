package replay

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestWriterRoundTripThroughOpen(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writer, manifest, err := NewWriter(root, "Operation Red/Sky", 200*time.Millisecond, fixedClock(base))
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if manifest.FrameIntervalMs != 200 || manifest.Mission != "Operation Red/Sky" {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if filepath.Base(writer.Directory()) != "OperationRedSky-20260301T120000Z" {
		t.Fatalf("expected a cleaned bundle name, got %s", writer.Directory())
	}
	writer.SetHeader("seed-1", []string{"Alpha", "Beta"}, TerrainParameters{"hills": 8})

	//1.- One event and two frames, the second written by a mid-run flush.
	if err := writer.AppendEvent(3, 100, EventKill, map[string]any{"ship": "Bandit 1"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := writer.AppendFrame(1, 0, []byte{1, 2, 3}); err != nil {
		t.Fatalf("append frame: %v", err)
	}
	if writer.Pending() != 1 {
		t.Fatalf("expected the frame to be staged, got %d pending", writer.Pending())
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := writer.AppendFrame(7, 200, []byte("payload")); err != nil {
		t.Fatalf("append frame: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("expected a second close to be a no-op, got %v", err)
	}
	if err := writer.AppendFrame(8, 400, nil); !errors.Is(err, ErrWriterClosed) {
		t.Fatalf("expected ErrWriterClosed after close, got %v", err)
	}

	//2.- The reader recovers everything in order.
	bundle, err := Open(writer.Directory())
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	if bundle.Header.Seed != "seed-1" || len(bundle.Header.Regions) != 2 || bundle.Header.TerrainParams["hills"] != 8 {
		t.Fatalf("unexpected header %+v", bundle.Header)
	}
	if len(bundle.Events) != 1 || bundle.Events[0].Type != EventKill {
		t.Fatalf("unexpected events %+v", bundle.Events)
	}
	var payload map[string]string
	if err := json.Unmarshal(bundle.Events[0].Payload, &payload); err != nil || payload["ship"] != "Bandit 1" {
		t.Fatalf("expected the kill payload to survive, got %s (%v)", bundle.Events[0].Payload, err)
	}
	if len(bundle.Frames) != 2 || bundle.Frames[1].Frame != 7 || string(bundle.Frames[1].Payload) != "payload" {
		t.Fatalf("unexpected frames %+v", bundle.Frames)
	}
	if !bundle.Frames[0].CapturedAt.Equal(base) {
		t.Fatalf("expected capture time %v, got %v", base, bundle.Frames[0].CapturedAt)
	}

	timeline := bundle.Timeline()
	if len(timeline) != 3 || timeline[0].Type != "frame" || timeline[1].Type != EventKill || timeline[2].Frame != 7 {
		t.Fatalf("unexpected timeline order %+v", timeline)
	}
}

func TestOpenToleratesMissingHeader(t *testing.T) {
	root := t.TempDir()
	writer, _, err := NewWriter(root, "Crash", 0, nil)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := writer.AppendEvent(1, 0, EventRadio, map[string]string{"info": "hello"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	//1.- Simulate a crash: the event log is flushed per line, no header exists.
	bundle, err := Open(writer.Directory())
	if err != nil {
		t.Fatalf("expected a partial bundle to open, got %v", err)
	}
	if bundle.Header.SchemaVersion != 0 || len(bundle.Events) != 1 {
		t.Fatalf("expected no header and one event, got %+v", bundle)
	}
	writer.Close()
}

func TestOpenRejectsMissingManifest(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected an error without a manifest")
	}
	if _, err := Open(""); err == nil {
		t.Fatalf("expected an error for an empty path")
	}
}

func TestTerrainParametersByRegion(t *testing.T) {
	p := TerrainParameters{}
	p.Set("Tal Amin", "asteroids", 3)
	if v, ok := p.Get("Tal Amin", "asteroids"); !ok || v != 3 {
		t.Fatalf("expected 3 asteroids, got %v (%v)", v, ok)
	}
	if _, ok := p.Get("Kalon", "asteroids"); ok {
		t.Fatalf("expected no value for another region")
	}
	if clone := p.Clone(); len(clone) != 1 || (TerrainParameters{}).Clone() != nil {
		t.Fatalf("expected clone to copy entries and empty maps to clone to nil")
	}
}

func TestHeaderValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "header.json")
	for name, bad := range map[string]Header{
		"schema":  {SchemaVersion: HeaderSchemaVersion + 1, Mission: "M", FilePointer: manifestFile},
		"mission": {SchemaVersion: 1, FilePointer: manifestFile},
		"pointer": {SchemaVersion: 1, Mission: "M"},
	} {
		if err := WriteHeader(path, bad); err == nil {
			t.Fatalf("%s: expected the header to be rejected", name)
		}
	}
	if err := WriteHeader(path, Header{SchemaVersion: 1, Mission: "M", FilePointer: manifestFile}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	header, err := ReadHeader(path)
	if err != nil || header.Mission != "M" {
		t.Fatalf("expected the header to round trip, got %+v (%v)", header, err)
	}
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("corrupt header: %v", err)
	}
	if _, err := ReadHeader(path); err == nil {
		t.Fatalf("expected a corrupt header to fail")
	}
}

func TestPruneKeepsNewestBundles(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var dirs []string
	for i := 0; i < 4; i++ {
		w, _, err := NewWriter(root, "Patrol", 0, fixedClock(base.Add(time.Duration(i)*24*time.Hour)))
		if err != nil {
			t.Fatalf("create writer %d: %v", i, err)
		}
		w.Close()
		dirs = append(dirs, w.Directory())
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	//1.- Keep two bundles and drop anything older than 2.5 days.
	now := base.Add(3 * 24 * time.Hour)
	removed, err := Prune(root, RetentionPolicy{MaxBundles: 2, MaxAge: 60 * time.Hour}, now, nil)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected two bundles removed, got %v", removed)
	}
	for i, dir := range dirs {
		_, err := os.Stat(dir)
		if exists := err == nil; exists != (i >= 2) {
			t.Fatalf("expected bundle %d existence=%v", i, i >= 2)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "notes.txt")); err != nil {
		t.Fatalf("expected unrelated files to survive")
	}
	if removed, err := Prune(filepath.Join(root, "missing"), RetentionPolicy{MaxBundles: 1}, now, nil); err != nil || removed != nil {
		t.Fatalf("expected a missing root to be a no-op, got %v %v", removed, err)
	}
}
