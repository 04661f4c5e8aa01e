package debrief

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

const tracerName = "github.com/StarshatterWars/SSW-UE55-sub001/internal/debrief"

// ErrUnknownDriver is returned for a driver other than sqlite or postgres.
var ErrUnknownDriver = errors.New("unknown debrief driver")

// MissionRecord is one committed mission.
type MissionRecord struct {
	ID          uint   `gorm:"primaryKey"`
	Mission     string `gorm:"index"`
	Seed        string
	StartedAt   time.Time
	CommittedAt time.Time
	DurationMs  int64
	Sides       datatypes.JSON
	Ships       []ShipRecord `gorm:"foreignKey:MissionID"`
	CreatedAt   time.Time
}

// ShipRecord is the final score of one ship in a mission.
type ShipRecord struct {
	ID            uint   `gorm:"primaryKey"`
	MissionID     uint   `gorm:"index"`
	Name          string `gorm:"index"`
	Design        string
	Element       string
	ElementIndex  int
	IFF           int
	Player        bool
	GunKills      int
	MissileKills  int
	Deaths        int
	Collisions    int
	GunShots      int
	GunHits       int
	MissileShots  int
	MissileHits   int
	Points        int
	CommandPoints int
	Events        []EventRecord `gorm:"foreignKey:ShipID"`
}

// EventRecord is one mission log entry of a ship.
type EventRecord struct {
	ID     uint `gorm:"primaryKey"`
	ShipID uint `gorm:"index"`
	AtMs   int64
	Kind   string
	Info   string
}

// Side totals one IFF's ships in a mission.
type Side struct {
	Ships  int `json:"ships"`
	Losses int `json:"losses"`
	Kills  int `json:"kills"`
	Points int `json:"points"`
}

// SideTotals decodes the per-IFF summary keyed by IFF code.
func (m MissionRecord) SideTotals() (map[string]Side, error) {
	sides := map[string]Side{}
	if len(m.Sides) == 0 {
		return sides, nil
	}
	if err := json.Unmarshal(m.Sides, &sides); err != nil {
		return nil, fmt.Errorf("decode sides of mission %d: %w", m.ID, err)
	}
	return sides, nil
}

// Standing is a ship's totals across every recorded mission.
type Standing struct {
	Name     string
	Missions int
	Kills    int
	Deaths   int
	Points   int
}

// Store persists debriefs through gorm. It satisfies sim.Debriefer.
type Store struct {
	db  *gorm.DB
	log *logging.Logger
}

// Open connects to the ledger. Driver is "sqlite" (dsn is a file path or ":memory:")
// or "postgres" (dsn is a libpq connection string).
func Open(driver, dsn string, log *logging.Logger) (*Store, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", driver, err)
	}
	if driver == "sqlite" {
		//1.- One connection keeps an in-memory database alive and serialises writers.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, log)
}

// New wraps an open gorm handle and migrates the ledger schema.
func New(db *gorm.DB, log *logging.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("debrief store needs a database")
	}
	if log == nil {
		log = logging.L()
	}
	if err := db.AutoMigrate(&MissionRecord{}, &ShipRecord{}, &EventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Record writes the debrief and every ship score in one transaction.
func (s *Store) Record(ctx context.Context, d sim.Debrief) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "debrief.Record")
	defer span.End()
	span.SetAttributes(attribute.String("mission", d.Mission), attribute.Int("ships", len(d.Stats)))

	rec := MissionRecord{
		Mission:     d.Mission,
		Seed:        d.Seed,
		StartedAt:   d.Started.UTC(),
		CommittedAt: d.Committed.UTC(),
		DurationMs:  d.Duration.Milliseconds(),
		Ships:       make([]ShipRecord, 0, len(d.Stats)),
	}
	for _, st := range d.Stats {
		ship := ShipRecord{
			Name:          st.Name,
			Design:        st.Design,
			Element:       st.Element,
			ElementIndex:  st.ElementIndex,
			IFF:           st.IFF,
			Player:        st.Player,
			GunKills:      st.GunKills,
			MissileKills:  st.MissileKills,
			Deaths:        st.Deaths,
			Collisions:    st.Collisions,
			GunShots:      st.GunShots,
			GunHits:       st.GunHits,
			MissileShots:  st.MissileShots,
			MissileHits:   st.MissileHits,
			Points:        st.Points,
			CommandPoints: st.CommandPoints,
		}
		for _, ev := range st.Events {
			ship.Events = append(ship.Events, EventRecord{AtMs: ev.Time.Milliseconds(), Kind: string(ev.Kind), Info: ev.Info})
		}
		rec.Ships = append(rec.Ships, ship)
	}
	sides, err := summariseSides(d.Stats)
	if err != nil {
		return err
	}
	rec.Sides = sides


	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rec).Error
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record failed")
		return fmt.Errorf("store debrief %s: %w", d.Mission, err)
	}
	span.SetAttributes(attribute.Int("record_id", int(rec.ID)))
	s.log.Info("debrief stored",
		logging.String("mission", d.Mission),
		logging.Int("ships", len(rec.Ships)),
		logging.Int64("duration_ms", rec.DurationMs))
	return nil
}

// Missions returns the most recent missions with their ship scores, newest first.
func (s *Store) Missions(ctx context.Context, limit int) ([]MissionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []MissionRecord
	err := s.db.WithContext(ctx).
		Preload("Ships", func(db *gorm.DB) *gorm.DB { return db.Order("points DESC, name") }).
		Preload("Ships.Events").
		Order("committed_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	return out, nil
}

// Standings totals scores per ship name across missions, best first.
func (s *Store) Standings(ctx context.Context, limit int) ([]Standing, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Standing
	err := s.db.WithContext(ctx).Model(&ShipRecord{}).
		Select("name, COUNT(DISTINCT mission_id) AS missions, SUM(gun_kills + missile_kills) AS kills, SUM(deaths) AS deaths, SUM(points) AS points").
		Group("name").
		Order("points DESC, name").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("standings: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ sim.Debriefer = (*Store)(nil)

func summariseSides(stats []sim.ShipStats) (datatypes.JSON, error) {
	sides := map[string]Side{}
	for _, st := range stats {
		key := strconv.Itoa(st.IFF)
		side := sides[key]
		side.Ships++
		side.Losses += st.Deaths
		side.Kills += st.GunKills + st.MissileKills
		side.Points += st.Points
		sides[key] = side
	}
	raw, err := json.Marshal(sides)
	if err != nil {
		return nil, fmt.Errorf("encode sides: %w", err)
	}
	return datatypes.JSON(raw), nil
}
