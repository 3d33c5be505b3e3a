package scenario

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no scenario has the requested name.
var ErrNotFound = errors.New("scenario not found")

// Store reads and writes scenarios through gorm.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore wraps an open database.
func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, logger: log}
}

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&Scenario{}}
}

// Migrate creates or updates the scenario table.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migrate scenarios: %w", err)
	}
	return nil
}

// SeedDefaults inserts every default scenario that is missing and returns
// how many were added. Existing rows are left alone.
func (s *Store) SeedDefaults() (int, error) {
	added := 0
	for _, sc := range Defaults() {
		res := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&sc)
		if res.Error != nil {
			return added, fmt.Errorf("seed %q: %w", sc.Name, res.Error)
		}
		if res.RowsAffected > 0 {
			added++
			s.logger.Debug().Str("scenario", sc.Name).Msg("Seeded scenario")
		}
	}
	if added > 0 {
		s.logger.Info().Int("count", added).Msg("Seeded default scenarios")
	}
	return added, nil
}

// Get loads one scenario by name.
func (s *Store) Get(name string) (Scenario, error) {
	var sc Scenario
	err := s.db.Where("name = ?", name).First(&sc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Scenario{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Scenario{}, fmt.Errorf("load scenario %q: %w", name, err)
	}
	return sc, nil
}

// List returns every scenario ordered by name.
func (s *Store) List() ([]Scenario, error) {
	var out []Scenario
	if err := s.db.Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	return out, nil
}

// Save validates sc and inserts it, replacing any scenario with the same name.
func (s *Store) Save(sc *Scenario) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "strategy", "count", "scale", "origin_x", "origin_z", "yaw", "options"}),
	}).Create(sc).Error
	if err != nil {
		return fmt.Errorf("save scenario %q: %w", sc.Name, err)
	}
	return nil
}

// Delete removes a scenario by name.
func (s *Store) Delete(name string) error {
	res := s.db.Where("name = ?", name).Delete(&Scenario{})
	if res.Error != nil {
		return fmt.Errorf("delete scenario %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
