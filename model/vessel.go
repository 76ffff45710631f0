package model

import (
	"time"
)

// VesselRecord is one accepted vessel call from the berthing schedule
type VesselRecord struct {
	ID         string    `json:"id,omitempty"`
	BatchID    string    `json:"batch_id,omitempty"`
	VesselName string    `json:"vessel_name"`
	ETA        string    `json:"eta"`
	LastPort   string    `json:"last_port"`
	NextPort   string    `json:"next_port"`
	Discharge  string    `json:"discharge"`
	Loading    string    `json:"loading"`
	Remarks    string    `json:"remarks"`
	Position   int       `json:"-"` // ordinal within the extraction run
	Timestamp  time.Time `json:"timestamp"`
}

// Batch is the set of records persisted together from one extraction run
type Batch struct {
	BatchID   string         `json:"batch_id"`
	Source    string         `json:"source,omitempty"`
	Records   []VesselRecord `json:"records"`
	CreatedAt time.Time      `json:"created_at"`
}
