package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPosition is stored when no position has been assigned.
	DefaultPosition = "sin asignar"
	// DefaultSyncDepartment is used for employees first seen through a roster sync.
	DefaultSyncDepartment = "Bodega"
)

// Employee represents an employee known to the system.
type Employee struct {
	ID              uuid.UUID `json:"id"`
	ExternalID      *int64    `json:"externalId,omitempty"`
	Name            string    `json:"name"`
	Department      string    `json:"department"`
	IsActive        bool      `json:"isActive"`
	Position        string    `json:"position"`
	ProfileImageURL *string   `json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// EmployeeUpdate carries a partial update; nil fields are left untouched.
type EmployeeUpdate struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Department      *string `json:"department,omitempty" validate:"omitempty,max=100"`
	IsActive        *bool   `json:"isActive,omitempty"`
	Position        *string `json:"position,omitempty" validate:"omitempty,max=100"`
	ProfileImageURL *string `json:"-"`
}

// Empty reports whether the update changes nothing.
func (u EmployeeUpdate) Empty() bool {
	return u.Name == nil && u.Department == nil && u.IsActive == nil && u.Position == nil && u.ProfileImageURL == nil
}

// ExternalEmployee is a roster record received from a device, ready to upsert.
type ExternalEmployee struct {
	ExternalID int64
	Name       string
	IsActive   bool
	Department string
}

// EmployeeFilter holds list filters and ordering for employees.
type EmployeeFilter struct {
	Department string
	IsActive   *bool
	Position   string
	SortBy     string
	SortDir    string
}
