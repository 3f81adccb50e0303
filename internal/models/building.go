package models

type Dimensions struct {
	WidthM  float64 `json:"width_m" yaml:"width_m"`
	DepthM  float64 `json:"depth_m" yaml:"depth_m"`
	HeightM float64 `json:"height_m" yaml:"height_m"`
}

type Floor struct {
	Number  int     `json:"number" yaml:"number"`
	Name    string  `json:"name" yaml:"name"`
	HeightM float64 `json:"height_m" yaml:"height_m"`
}

type PlanPoint struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type EntryPoint struct {
	ID       string    `json:"id" yaml:"id"`
	Position PlanPoint `json:"position" yaml:"position"`
	Floor    int       `json:"floor" yaml:"floor"`
	Name     string    `json:"name" yaml:"name"`
}

// Building is the static incident-site model. Read-only once loaded.
type Building struct {
	Dimensions  Dimensions   `json:"dimensions" yaml:"dimensions"`
	Floors      []Floor      `json:"floors" yaml:"floors"`
	EntryPoints []EntryPoint `json:"entry_points,omitempty" yaml:"entry_points,omitempty"`
}

func (b Building) Clone() Building {
	out := b
	out.Floors = append([]Floor(nil), b.Floors...)
	if b.EntryPoints != nil {
		out.EntryPoints = append([]EntryPoint(nil), b.EntryPoints...)
	}
	return out
}
