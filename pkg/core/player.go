// Package core defines the entities replicated between flickshot clients.
package core

// Vec3 is a position on the wire.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TargetInfo is the replicated subset of a spawned target.
type TargetInfo struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Shootable bool    `json:"shootable"`
	Disabled  bool    `json:"disabled"`
}

// PlayerCore is the unit of replication: one player's pose plus the
// visibility snapshot of the targets they are currently shooting at.
type PlayerCore struct {
	ID          string       `json:"id"`
	RoomX       int          `json:"roomX"`
	RoomZ       int          `json:"roomZ"`
	Yaw         float64      `json:"yaw"`
	Pitch       float64      `json:"pitch"`
	Position    Vec3         `json:"position"`
	TargetsInfo []TargetInfo `json:"targetsInfo"`
}

// PlayerPatch is an inbound PlayerCore where every field but ID is optional.
// Absent fields decode to nil and leave the merged value untouched.
type PlayerPatch struct {
	ID          string        `json:"id"`
	RoomX       *int          `json:"roomX,omitempty"`
	RoomZ       *int          `json:"roomZ,omitempty"`
	Yaw         *float64      `json:"yaw,omitempty"`
	Pitch       *float64      `json:"pitch,omitempty"`
	Position    *Vec3         `json:"position,omitempty"`
	TargetsInfo *[]TargetInfo `json:"targetsInfo,omitempty"`
}

// Merge overwrites the fields present in p and returns the result.
// The receiver is not modified.
func (c PlayerCore) Merge(p PlayerPatch) PlayerCore {
	out := c
	if p.ID != "" {
		out.ID = p.ID
	}
	if p.RoomX != nil {
		out.RoomX = *p.RoomX
	}
	if p.RoomZ != nil {
		out.RoomZ = *p.RoomZ
	}
	if p.Yaw != nil {
		out.Yaw = *p.Yaw
	}
	if p.Pitch != nil {
		out.Pitch = *p.Pitch
	}
	if p.Position != nil {
		out.Position = *p.Position
	}
	if p.TargetsInfo != nil {
		out.TargetsInfo = append([]TargetInfo(nil), (*p.TargetsInfo)...)
	}
	return out
}

// Clone returns a deep copy.
func (c PlayerCore) Clone() PlayerCore {
	out := c
	if c.TargetsInfo != nil {
		out.TargetsInfo = append([]TargetInfo(nil), c.TargetsInfo...)
	}
	return out
}

// UpdatePayload is what a client sends about itself. Room coordinates are
// assigned by the server and never sent back.
type UpdatePayload struct {
	ID          string       `json:"id"`
	Yaw         float64      `json:"yaw"`
	Pitch       float64      `json:"pitch"`
	Position    Vec3         `json:"position"`
	TargetsInfo []TargetInfo `json:"targetsInfo"`
}
