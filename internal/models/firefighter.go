package models

// Firefighter is the static identity carried by a tag. It is fixed by the
// first telemetry event that mentions the id.
type Firefighter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
	Team string `json:"team"`
	Rank string `json:"rank,omitempty"`
}

// Position is a point inside the building model in metres.
type Position struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Z     float64 `json:"z" yaml:"z"`
	Floor int     `json:"floor" yaml:"floor"`
}
