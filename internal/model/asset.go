package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset represents a piece of inventoried construction equipment.
type Asset struct {
	ID              int64           `json:"id"`
	Tag             string          `json:"tag"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	AcquisitionCost decimal.Decimal `json:"acquisition_cost"`
	ProjectID       int64           `json:"project_id"`
	PhotoMime       string          `json:"photo_mime,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	ProjectName string `json:"project_name,omitempty"`
}

// Asset statuses.
const (
	AssetStatusAvailable   = "available"
	AssetStatusBorrowed    = "borrowed"
	AssetStatusMaintenance = "maintenance"
	AssetStatusRetired     = "retired"
)
