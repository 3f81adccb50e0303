package models

type BeaconType string

const (
	BeaconEntry  BeaconType = "entry"
	BeaconAnchor BeaconType = "anchor"
	BeaconStairs BeaconType = "stairs"
	BeaconHazard BeaconType = "hazard"
)

func (t BeaconType) Valid() bool {
	switch t {
	case BeaconEntry, BeaconAnchor, BeaconStairs, BeaconHazard:
		return true
	}
	return false
}

type BeaconStatus string

const (
	BeaconActive  BeaconStatus = "active"
	BeaconOffline BeaconStatus = "offline"
	BeaconError   BeaconStatus = "error"
)

func (s BeaconStatus) Valid() bool {
	switch s {
	case BeaconActive, BeaconOffline, BeaconError:
		return true
	}
	return false
}

// Beacon is a fixed positioning node. Config events replace it wholesale.
// BatteryPercent stays nil until the beacon reports a reading.
type Beacon struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Type           BeaconType   `json:"type"`
	Position       Position     `json:"position"`
	Floor          int          `json:"floor"`
	Status         BeaconStatus `json:"status"`
	BatteryPercent *float64     `json:"battery_percent,omitempty"`
	RangeM         *float64     `json:"range_m,omitempty"`
	TagsInRange    []string     `json:"tags_in_range,omitempty"`
}

func (b Beacon) Clone() Beacon {
	out := b
	out.BatteryPercent = cloneFloat(b.BatteryPercent)
	out.RangeM = cloneFloat(b.RangeM)
	if b.TagsInRange != nil {
		out.TagsInRange = append([]string(nil), b.TagsInRange...)
	}
	return out
}

// BeaconPatch is a status event for one beacon. Nil fields are left untouched.
type BeaconPatch struct {
	ID             string        `json:"id"`
	Name           *string       `json:"name,omitempty"`
	Type           *BeaconType   `json:"type,omitempty"`
	Position       *Position     `json:"position,omitempty"`
	Floor          *int          `json:"floor,omitempty"`
	Status         *BeaconStatus `json:"status,omitempty"`
	BatteryPercent *float64      `json:"battery_percent,omitempty"`
	RangeM         *float64      `json:"range_m,omitempty"`
	TagsInRange    *[]string     `json:"tags_in_range,omitempty"`
}

// Apply merges the fields present in p into b. The id is never changed.
func (p BeaconPatch) Apply(b Beacon) Beacon {
	out := b.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Position != nil {
		out.Position = *p.Position
	}
	if p.Floor != nil {
		out.Floor = *p.Floor
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.BatteryPercent != nil {
		out.BatteryPercent = cloneFloat(p.BatteryPercent)
	}
	if p.RangeM != nil {
		out.RangeM = cloneFloat(p.RangeM)
	}
	if p.TagsInRange != nil {
		out.TagsInRange = append([]string(nil), (*p.TagsInRange)...)
	}
	return out
}
