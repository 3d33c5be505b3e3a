// Package scenario is the catalog of playable target layouts.
package scenario

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/flickshot/flickshot/internal/generator"
)

// Strategy names stored in the catalog.
const (
	StrategyStatic = "static"
	StrategyMoving = "moving"
)

// Scenario is one catalog entry.
type Scenario struct {
	ID        uint      `json:"-" gorm:"primarykey"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Name     string   `json:"name" gorm:"size:64;not null;uniqueIndex"`
	Strategy string   `json:"strategy" gorm:"size:16;not null"`
	Count    int      `json:"count"`
	Scale    float64  `json:"scale"`
	// OriginX and OriginZ offset the spawn origin from the room origin.
	OriginX float64  `json:"originX"`
	OriginZ float64  `json:"originZ"`
	Yaw     *float64 `json:"yaw,omitempty"`
	// Options carries strategy tuning, see Options.
	Options datatypes.JSON `json:"options,omitempty"`
}

// Options is the decoded form of Scenario.Options.
type Options struct {
	MaxSpeed float64 `json:"maxSpeed,omitempty"`
	// Seed makes placement reproducible when non-zero.
	Seed uint64 `json:"seed,omitempty"`
}

// Validate checks the fields the generators rely on.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if s.Strategy != StrategyStatic && s.Strategy != StrategyMoving {
		return fmt.Errorf("scenario %q: unknown strategy %q", s.Name, s.Strategy)
	}
	if s.Count < 0 {
		return fmt.Errorf("scenario %q: negative count %d", s.Name, s.Count)
	}
	if s.Scale <= 0 {
		return fmt.Errorf("scenario %q: scale must be positive", s.Name)
	}
	if _, err := s.DecodeOptions(); err != nil {
		return err
	}
	return nil
}

// DecodeOptions parses Options. Empty options decode to the zero value.
func (s Scenario) DecodeOptions() (Options, error) {
	var o Options
	if len(s.Options) == 0 {
		return o, nil
	}
	if err := json.Unmarshal(s.Options, &o); err != nil {
		return o, fmt.Errorf("scenario %q options: %w", s.Name, err)
	}
	return o, nil
}

// Config returns the generator configuration for one batch.
func (s Scenario) Config() generator.Config {
	cfg := generator.Config{
		Count:  s.Count,
		Origin: geom.XY{X: s.OriginX, Y: s.OriginZ},
		Scale:  s.Scale,
	}
	if s.Yaw != nil {
		yaw := *s.Yaw
		cfg.Yaw = &yaw
	}
	return cfg
}

// NewStrategy builds the generator strategy. rng is used unless the
// scenario pins a seed; nil means randomly seeded.
func (s Scenario) NewStrategy(rng *rand.Rand) (generator.Strategy, error) {
	o, err := s.DecodeOptions()
	if err != nil {
		return nil, err
	}
	if o.Seed != 0 {
		rng = rand.New(rand.NewPCG(o.Seed, o.Seed))
	}

	switch s.Strategy {
	case StrategyStatic:
		return generator.NewStatic(rng), nil
	case StrategyMoving:
		return generator.NewMoving(rng).WithMaxSpeed(o.MaxSpeed), nil
	default:
		return nil, fmt.Errorf("scenario %q: unknown strategy %q", s.Name, s.Strategy)
	}
}

func ptr[T any](v T) *T { return &v }

// Defaults are seeded into an empty catalog.
func Defaults() []Scenario {
	return []Scenario{
		{Name: "gridshot", Strategy: StrategyStatic, Count: 3, Scale: 0.3},
		{Name: "spidershot", Strategy: StrategyStatic, Count: 8, Scale: 0.2},
		{
			Name:     "motiontrack",
			Strategy: StrategyMoving,
			Count:    5,
			Scale:    0.25,
			Options:  datatypes.JSON(`{"maxSpeed":1.5}`),
		},
		{
			Name:     "flankdrill",
			Strategy: StrategyStatic,
			Count:    6,
			Scale:    0.25,
			Yaw:      ptr(1.5707963267948966),
		},
	}
}
