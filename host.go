package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/catalog"
	configpkg "github.com/StarshatterWars/SSW-UE55-sub001/internal/config"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/replay"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// hostState answers readiness probes while the frame loop runs on its own goroutine.
type hostState struct {
	now     func() time.Time
	started time.Time

	mu      sync.RWMutex
	mission string
	active  bool
	err     error
}

func newHostState(now func() time.Time) *hostState {
	if now == nil {
		now = time.Now
	}
	return &hostState{now: now, started: now()}
}

// Mission implements httpapi.ReadinessProvider.
func (h *hostState) Mission() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mission, h.active
}

// StartupError implements httpapi.ReadinessProvider.
func (h *hostState) StartupError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Uptime implements httpapi.ReadinessProvider.
func (h *hostState) Uptime() time.Duration { return h.now().Sub(h.started) }

func (h *hostState) begin(mission string) {
	h.mu.Lock()
	h.mission, h.active, h.err = mission, true, nil
	h.mu.Unlock()
}

func (h *hostState) end() {
	h.mu.Lock()
	h.active = false
	h.mu.Unlock()
}

func (h *hostState) fail(err error) {
	h.mu.Lock()
	h.active, h.err = false, err
	h.mu.Unlock()
}

// loadMission resolves the configured catalog and builds the mission to fly.
// An explicit SIM_MISSION_SEED replaces the catalog seed.
func loadMission(cfg *configpkg.Config) (*sim.Mission, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	if path := strings.TrimSpace(cfg.CatalogFile); path != "" {
		cat, err = catalog.LoadFile(path)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return nil, err
	}
	m, err := cat.Mission(cfg.Mission)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownMission) {
			return nil, fmt.Errorf("%w (known: %s)", err, strings.Join(cat.MissionNames(), ", "))
		}
		return nil, err
	}
	if cfg.MissionSeed != "" && cfg.MissionSeed != configpkg.DefaultMissionSeed {
		m.Seed = cfg.MissionSeed
	}
	return m, nil
}

// regionNames lists the mission regions for the replay header.
func regionNames(m *sim.Mission) []string {
	names := make([]string, 0, len(m.Regions))
	for _, r := range m.Regions {
		names = append(names, r.Name)
	}
	return names
}

// regionParams summarises each mission region for the replay header.
func regionParams(m *sim.Mission) replay.TerrainParameters {
	params := replay.TerrainParameters{}
	for _, r := range m.Regions {
		params.Set(r.Name, "asteroids", float64(len(r.Asteroids)))
		terrain := 0.0
		if r.Terrain != nil {
			terrain = 1
		}
		params.Set(r.Name, "terrain", terrain)
	}
	return params
}
