package models

import "time"

// HistoryPoint is one recorded position of a firefighter.
type HistoryPoint struct {
	Position  Position  `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse is the body of the trajectory query.
type HistoryResponse struct {
	FirefighterID string         `json:"firefighter_id"`
	Records       []HistoryPoint `json:"records"`
}
