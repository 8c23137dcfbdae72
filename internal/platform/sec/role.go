// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package sec

// # User Roles

// UserRole represents the authorization level granted within an account.
type UserRole string

const (
	// The account creator; full control including billing and user management
	RoleOwner UserRole = "owner"

	// Can manage jobs, estimates, invoices, and the price book
	RoleAdmin UserRole = "admin"

	// Office staff; can schedule visits and edit client records
	RoleDispatcher UserRole = "dispatcher"

	// Field staff; can view assigned jobs and record visit outcomes
	RoleTechnician UserRole = "technician"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {

	// Linear scale (10-40) allows for future intermediate roles
	switch r {
	case RoleOwner:
		return 40
	case RoleAdmin:
		return 30
	case RoleDispatcher:
		return 20
	case RoleTechnician:
		return 10
	default:
		return 0
	}
}
