// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package fieldops

import (
	"fmt"
	"time"

	"github.com/fieldvine/fieldvine/internal/platform/apperr"
)

// # Conversion Tuning

const (
	// Minutes of on-site work per unit quantity, by line item type.
	minutesPerLabor     = 60
	minutesPerEquipment = 45
	minutesPerMaterial  = 10
	minutesPerFee       = 0
	minutesPerOther     = 30

	// Complexity scoring thresholds.
	highValueCents   = 500_000 // $5,000
	mediumValueCents = 150_000 // $1,500
	highItemCount    = 10
	mediumItemCount  = 5
	highCategories   = 4
	mediumCategories = 2
)

/*
ConvertEstimate turns an approved estimate into a job plan.

Description: Pure and deterministic — the same estimate always yields the
same plan. Duration is a weighted roll-up of line item quantities,
complexity is a tier derived from total value, item count, and category
diversity, and the checklist carries one open entry per line item.

Parameters:
  - estimate: *Estimate
  - now: time.Time (Injected clock for the validity window check)

Returns:
  - *JobPlan: The actionable job plan
  - error: apperr.Unprocessable when the estimate is not convertible
*/
func ConvertEstimate(estimate *Estimate, now time.Time) (*JobPlan, error) {
	if err := validateConvertible(estimate, now); err != nil {
		return nil, err
	}

	plan := &JobPlan{
		EstimateID:      estimate.ID,
		DurationMinutes: rollUpDuration(estimate.Items),
		Complexity:      complexityTier(estimate),
		Checklist:       buildChecklist(estimate.Items),
	}
	return plan, nil
}

// validateConvertible rejects estimates that must not become jobs.
func validateConvertible(estimate *Estimate, now time.Time) error {
	if estimate.Status != EstimateStatusApproved {
		return apperr.Unprocessable(fmt.Sprintf("Only approved estimates can be converted (status is %q)", estimate.Status))
	}
	if len(estimate.Items) == 0 {
		return apperr.Unprocessable("Estimate has no line items")
	}
	if estimate.TotalCents <= 0 {
		return apperr.Unprocessable("Estimate total must be positive")
	}
	if !estimate.ValidUntil.IsZero() && now.After(estimate.ValidUntil) {
		return apperr.Unprocessable("Estimate validity window has passed")
	}
	return nil
}

// rollUpDuration sums per-item-type weighted quantities into minutes.
func rollUpDuration(items []LineItem) int {
	total := 0
	for _, item := range items {
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}
		total += quantity * minutesForType(item.ItemType)
	}
	return total
}

// minutesForType maps a line item type to its per-unit duration weight.
func minutesForType(itemType string) int {
	switch itemType {
	case ItemTypeLabor:
		return minutesPerLabor
	case ItemTypeEquipment:
		return minutesPerEquipment
	case ItemTypeMaterial:
		return minutesPerMaterial
	case ItemTypeFee:
		return minutesPerFee
	default:
		return minutesPerOther
	}
}

// complexityTier scores the estimate on value, size, and category diversity.
func complexityTier(estimate *Estimate) string {
	score := 0

	switch {
	case estimate.TotalCents >= highValueCents:
		score += 2
	case estimate.TotalCents >= mediumValueCents:
		score++
	}

	switch {
	case len(estimate.Items) >= highItemCount:
		score += 2
	case len(estimate.Items) >= mediumItemCount:
		score++
	}

	switch diversity := categoryCount(estimate.Items); {
	case diversity >= highCategories:
		score += 2
	case diversity >= mediumCategories:
		score++
	}

	switch {
	case score >= 4:
		return ComplexityHigh
	case score >= 2:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// categoryCount counts distinct non-empty categories across line items.
func categoryCount(items []LineItem) int {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Category == "" {
			continue
		}
		seen[item.Category] = struct{}{}
	}
	return len(seen)
}

// buildChecklist creates one open work entry per line item.
func buildChecklist(items []LineItem) []ChecklistEntry {
	checklist := make([]ChecklistEntry, 0, len(items))
	for _, item := range items {
		checklist = append(checklist, ChecklistEntry{
			LineItemID:  item.ID,
			Description: item.Name,
			Quantity:    item.Quantity,
			Done:        false,
		})
	}
	return checklist
}
