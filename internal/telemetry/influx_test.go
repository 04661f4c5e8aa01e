package telemetry

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/config"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

type capturingWriter struct {
	points  []*write.Point
	flushed int
}

func (c *capturingWriter) WritePoint(point *write.Point) { c.points = append(c.points, point) }
func (c *capturingWriter) Flush()                        { c.flushed++ }

func fixedClock() time.Time { return time.Unix(1_700_000_000, 0) }

func fieldValue(p *write.Point, key string) any {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func tagValue(p *write.Point, key string) string {
	for _, tag := range p.TagList() {
		if tag.Key == key {
			return tag.Value
		}
	}
	return ""
}

func TestSinkAggregatesFramesPerWindow(t *testing.T) {
	out := &capturingWriter{}
	sink := NewSink(out, WithClock(fixedClock), WithWindow(time.Second), WithLogger(logging.NewTestLogger()))
	sink.SetMission("Patrol")

	//1.- Nine frames of a tenth of a second stay inside the window.
	for i := 0; i < 9; i++ {
		sink.ShotFired("Viper 1", "Laser", false)
		sink.FrameStepped(0.1, 2)
	}
	sink.ShotFired("Viper 1", "Harpoon", true)
	if len(out.points) != 0 {
		t.Fatalf("expected no points before the window closes, got %d", len(out.points))
	}

	//2.- The tenth frame closes the window and emits one point.
	sink.FrameStepped(0.1000001, 1)
	if len(out.points) != 1 {
		t.Fatalf("expected one frames point, got %d", len(out.points))
	}
	p := out.points[0]
	if p.Name() != MeasurementFrames {
		t.Fatalf("expected measurement %q, got %q", MeasurementFrames, p.Name())
	}
	if tagValue(p, "mission") != "Patrol" {
		t.Fatalf("expected mission tag, got %q", tagValue(p, "mission"))
	}
	if fieldValue(p, "frames") != int64(10) || fieldValue(p, "gun_shots") != int64(9) || fieldValue(p, "missiles") != int64(1) {
		t.Fatalf("unexpected frame fields: %v", p.FieldList())
	}
	if fieldValue(p, "regions") != int64(2) {
		t.Fatalf("expected peak region count 2, got %v", fieldValue(p, "regions"))
	}
	if !p.Time().Equal(fixedClock()) {
		t.Fatalf("expected the injected clock to stamp the point, got %v", p.Time())
	}

	//3.- Flush emits a partial window and reaches the writer.
	sink.FrameStepped(0.1, 1)
	if err := sink.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(out.points) != 2 || out.flushed != 1 {
		t.Fatalf("expected a partial frames point and one flush, got %d points %d flushes", len(out.points), out.flushed)
	}
	if written, failed := sink.Written(); written != 2 || failed != 0 {
		t.Fatalf("expected 2 written 0 failed, got %d %d", written, failed)
	}
}

func TestSinkWritesCombatEvents(t *testing.T) {
	out := &capturingWriter{}
	sink := NewSink(out, WithClock(fixedClock))

	sink.ShipDestroyed("Bandit 1", "Viper 1", true)
	sink.SplashApplied(combat.SplashHit{Owner: "Viper 1", Target: "Bandit 2", Damage: 40, Distance: 12, Missile: true})
	sink.JumpResolved("Viper 1", "Alpha", "Beta")

	if len(out.points) != 3 {
		t.Fatalf("expected three event points, got %d", len(out.points))
	}
	kill := out.points[0]
	if kill.Name() != MeasurementKill || tagValue(kill, "weapon") != "missile" || fieldValue(kill, "killer") != "Viper 1" {
		t.Fatalf("unexpected kill point: %s", write.PointToLineProtocol(kill, time.Nanosecond))
	}
	splash := out.points[1]
	if splash.Name() != MeasurementSplash || fieldValue(splash, "damage") != 40.0 {
		t.Fatalf("unexpected splash point: %s", write.PointToLineProtocol(splash, time.Nanosecond))
	}
	jump := out.points[2]
	if jump.Name() != MeasurementJump || tagValue(jump, "to") != "Beta" || fieldValue(jump, "from") != "Alpha" {
		t.Fatalf("unexpected jump point: %s", write.PointToLineProtocol(jump, time.Nanosecond))
	}
	if tagValue(jump, "mission") != "" {
		t.Fatalf("expected no mission tag before SetMission")
	}
}

func readBackup(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer file.Close()
	zr, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var lines []string
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan backup: %v", err)
	}
	return lines
}

func TestBackupSinkWritesLineProtocol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "telemetry.lp.gz")
	sink, err := NewBackupSink(path, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("backup sink: %v", err)
	}
	sink.SetMission("Patrol")
	sink.ShipDestroyed("Bandit 1", "Viper 1", false)
	sink.FrameStepped(0.5, 1)
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readBackup(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected a kill line and a frames line, got %q", lines)
	}
	if !strings.HasPrefix(lines[0], "sim_kill,mission=Patrol,weapon=gun ") {
		t.Fatalf("unexpected kill line: %q", lines[0])
	}
	if !strings.Contains(lines[0], `ship="Bandit 1"`) || !strings.HasSuffix(lines[0], "1700000000000000000") {
		t.Fatalf("expected the ship field and a nanosecond stamp, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "sim_frames,mission=Patrol ") || !strings.Contains(lines[1], "frames=1i") {
		t.Fatalf("unexpected frames line: %q", lines[1])
	}
}

func TestConnectFallsBackToBackup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "telemetry.lp.gz")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sink, err := Connect(ctx, config.InfluxConfig{URL: server.URL, Org: "wing", Bucket: "sim", Backup: path},
		WithClock(fixedClock), WithLogger(logging.NewTestLogger()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sink.JumpResolved("Viper 1", "Alpha", "Beta")
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if lines := readBackup(t, path); len(lines) != 1 || !strings.HasPrefix(lines[0], "sim_jump,to=Beta ") {
		t.Fatalf("expected the jump in the backup file, got %q", lines)
	}
}

func TestConnectDisabledWithoutURL(t *testing.T) {
	if _, err := Connect(context.Background(), config.InfluxConfig{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
