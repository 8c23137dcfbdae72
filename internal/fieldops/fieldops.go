// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

/*
Package fieldops implements field operations logic for the Fieldvine
platform.

Its current scope is the estimate-to-job conversion: a pure transform that
turns an approved estimate into an actionable job plan (estimated duration,
complexity tier, and a work checklist).
*/
package fieldops

import "time"

// # Domain Entities

// Estimate is a priced proposal sent to a client for approval.
type Estimate struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"client_id"`
	Status     string     `json:"status"`
	TotalCents int64      `json:"total_cents"`
	ValidUntil time.Time  `json:"valid_until"`
	Items      []LineItem `json:"items"`
}

// LineItem is a single priced row on an estimate.
type LineItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	ItemType       string `json:"item_type"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// JobPlan is the actionable output of converting an approved estimate.
type JobPlan struct {
	EstimateID      string           `json:"estimate_id"`
	DurationMinutes int              `json:"duration_minutes"`
	Complexity      string           `json:"complexity"`
	Checklist       []ChecklistEntry `json:"checklist"`
}

// ChecklistEntry is one unit of work derived from an estimate line item.
type ChecklistEntry struct {
	LineItemID  string `json:"line_item_id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Done        bool   `json:"done"`
}

// # Estimate Statuses

const (
	EstimateStatusDraft    = "draft"
	EstimateStatusSent     = "sent"
	EstimateStatusApproved = "approved"
	EstimateStatusDeclined = "declined"
)

// # Line Item Types

const (
	ItemTypeLabor     = "labor"
	ItemTypeEquipment = "equipment"
	ItemTypeMaterial  = "material"
	ItemTypeFee       = "fee"
)

// # Complexity Tiers

const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)
