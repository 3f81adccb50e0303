package models

import "time"

// MotionState is the tag's activity classification.
type MotionState string

const (
	MotionWalking    MotionState = "walking"
	MotionRunning    MotionState = "running"
	MotionStationary MotionState = "stationary"
	MotionCrawling   MotionState = "crawling"
	MotionFallen     MotionState = "fallen"
	MotionClimbing   MotionState = "climbing"
)

// Valid reports whether m is one of the known motion states.
func (m MotionState) Valid() bool {
	switch m {
	case MotionWalking, MotionRunning, MotionStationary, MotionCrawling, MotionFallen, MotionClimbing:
		return true
	}
	return false
}

type Vitals struct {
	HeartRateBPM        float64     `json:"heart_rate_bpm"`
	MotionState         MotionState `json:"motion_state"`
	StressLevel         string      `json:"stress_level,omitempty"`
	StationaryDurationS *float64    `json:"stationary_duration_s,omitempty"`
}

// SCBAAlarms are the alarm flags raised by the breathing apparatus itself.
type SCBAAlarms struct {
	LowPressure     bool `json:"low_pressure"`
	VeryLowPressure bool `json:"very_low_pressure"`
	Motion          bool `json:"motion"`
}

type SCBA struct {
	ID                  string     `json:"id"`
	CylinderPressureBar float64    `json:"cylinder_pressure_bar"`
	RemainingTimeMin    float64    `json:"remaining_time_min"`
	BatteryPercent      float64    `json:"battery_percent"`
	Alarms              SCBAAlarms `json:"alarms"`
}

type Device struct {
	BatteryPercent float64  `json:"battery_percent"`
	UptimeS        *float64 `json:"uptime_s,omitempty"`
}

// Environment holds optional gas and temperature readings. Absent sensors stay nil.
type Environment struct {
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	COPPM        *float64 `json:"co_ppm,omitempty"`
	O2Percent    *float64 `json:"o2_percent,omitempty"`
	LELPercent   *float64 `json:"lel_percent,omitempty"`
}

// UWBMeasurement is one raw ranging sample; treated as opaque pass-through data.
type UWBMeasurement struct {
	BeaconID  string  `json:"beacon_id"`
	LOS       bool    `json:"los"`
	DistanceM float64 `json:"distance_m"`
}

// Telemetry is the full live snapshot for one firefighter. Each accepted
// update replaces the previous snapshot wholesale.
type Telemetry struct {
	TagID           string           `json:"tag_id,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	Firefighter     Firefighter      `json:"firefighter"`
	Position        Position         `json:"position"`
	HeadingDeg      *float64         `json:"heading_deg,omitempty"`
	Vitals          Vitals           `json:"vitals"`
	SCBA            *SCBA            `json:"scba,omitempty"`
	Device          Device           `json:"device"`
	Environment     *Environment     `json:"environment,omitempty"`
	SOSPressed      bool             `json:"sos_pressed,omitempty"`
	UWBMeasurements []UWBMeasurement `json:"uwb_measurements,omitempty"`
}

// Clone returns a deep copy so registry readers never share mutable state with writers.
func (t Telemetry) Clone() Telemetry {
	out := t
	out.HeadingDeg = cloneFloat(t.HeadingDeg)
	out.Vitals.StationaryDurationS = cloneFloat(t.Vitals.StationaryDurationS)
	out.Device.UptimeS = cloneFloat(t.Device.UptimeS)
	if t.SCBA != nil {
		scba := *t.SCBA
		out.SCBA = &scba
	}
	if t.Environment != nil {
		out.Environment = &Environment{
			TemperatureC: cloneFloat(t.Environment.TemperatureC),
			COPPM:        cloneFloat(t.Environment.COPPM),
			O2Percent:    cloneFloat(t.Environment.O2Percent),
			LELPercent:   cloneFloat(t.Environment.LELPercent),
		}
	}
	if t.UWBMeasurements != nil {
		out.UWBMeasurements = append([]UWBMeasurement(nil), t.UWBMeasurements...)
	}
	return out
}

// TagState is the registry's record for one firefighter.
type TagState struct {
	Telemetry  Telemetry `json:"telemetry"`
	ReceivedAt time.Time `json:"received_at"`
	Stale      bool      `json:"stale"`
	// StationarySince is the telemetry time at which the current uninterrupted
	// stationary run began. Nil while moving.
	StationarySince *time.Time `json:"stationary_since,omitempty"`
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }
