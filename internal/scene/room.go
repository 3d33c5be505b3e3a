package scene

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"
)

// Room is the playable floor a scenario spawns into. Coordinates are on the
// horizontal plane: geom.XY.X is world x and geom.XY.Y is world z.
type Room struct {
	Name      string
	Origin    geom.XY
	HalfWidth float64
	HalfDepth float64
}

// DefaultRoom is large enough to hold the spawn volume at any yaw.
func DefaultRoom() Room {
	return Room{Name: "range", HalfWidth: 12, HalfDepth: 12}
}

// Floor returns the floor rectangle. It fails for non-finite coordinates.
func (r Room) Floor() (geom.Envelope, error) {
	env, err := geom.NewEnvelope([]geom.XY{
		{X: r.Origin.X - r.HalfWidth, Y: r.Origin.Y - r.HalfDepth},
		{X: r.Origin.X + r.HalfWidth, Y: r.Origin.Y + r.HalfDepth},
	})
	if err != nil {
		return geom.Envelope{}, fmt.Errorf("room %q floor: %w", r.Name, err)
	}
	return env, nil
}
