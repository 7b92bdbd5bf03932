package model

import "time"

// Project represents a construction project that owns assets and batches.
type Project struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Location  string     `json:"location,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
