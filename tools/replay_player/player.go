package replayplayer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/replay"
)

// Line is one entry of the rendered timeline.
type Line struct {
	Frame   uint64          `json:"frame"`
	GameMs  int64           `json:"game_ms"`
	Type    string          `json:"type"`
	Ships   []string        `json:"ships,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Kill is one destroyed ship pulled from the event log.
type Kill struct {
	GameMs  int64  `json:"game_ms"`
	Ship    string `json:"ship"`
	Killer  string `json:"killer"`
	Missile bool   `json:"missile"`
}

// Report summarises a mission recording.
type Report struct {
	Manifest replay.Manifest `json:"manifest"`
	Header   replay.Header   `json:"header"`
	Counts   map[string]int  `json:"counts"`
	Kills    []Kill          `json:"kills,omitempty"`
	Roster   []string        `json:"roster,omitempty"`
	Timeline []Line          `json:"timeline,omitempty"`
}

// ReplayBundle loads the bundle at path, a directory or its manifest.json, and
// renders the timeline. Frames are reduced to the ships they contain.
func ReplayBundle(path string) (*Report, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	bundle, err := replay.Open(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{Manifest: bundle.Manifest, Header: bundle.Header, Counts: make(map[string]int)}
	seen := make(map[string]struct{})
	//1.- Walk in game time so kills and rosters read in the order they happened.
	err = bundle.Replay(func(entry replay.TimelineEntry) error {
		report.Counts[entry.Type]++
		line := Line{Frame: entry.Frame, GameMs: entry.GameMs, Type: entry.Type}
		switch {
		case entry.Data != nil:
			st, err := replay.DecodeFrame(entry.Data.Payload)
			if err != nil {
				return fmt.Errorf("frame %d: %w", entry.Frame, err)
			}
			line.Ships = replay.FrameShips(st)
			for _, name := range line.Ships {
				seen[name] = struct{}{}
			}
		case entry.Event != nil:
			line.Payload = entry.Event.Payload
			if entry.Type == replay.EventKill {
				kill := Kill{GameMs: entry.GameMs}
				if err := json.Unmarshal(entry.Event.Payload, &kill); err != nil {
					return fmt.Errorf("kill at %dms: %w", entry.GameMs, err)
				}
				report.Kills = append(report.Kills, kill)
			}
		}
		report.Timeline = append(report.Timeline, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for name := range seen {
		report.Roster = append(report.Roster, name)
	}
	sort.Strings(report.Roster)
	return report, nil
}
