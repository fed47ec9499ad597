package model

import (
	"time"

	"github.com/google/uuid"
)

// Attendance is a single punch record. (MachineNumber, UserID, AttendanceTime)
// identifies it; records are never updated once stored.
type Attendance struct {
	ID               uuid.UUID `json:"id"`
	MachineNumber    int       `json:"attendanceMachineID"`
	UserID           int64     `json:"userId"`
	AttendanceTime   time.Time `json:"attendanceTime"`
	AccessMode       string    `json:"accessMode"`
	AttendanceStatus string    `json:"attendanceStatus"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AttendanceKey is the dedup key of an attendance record.
type AttendanceKey struct {
	MachineNumber  int
	UserID         int64
	AttendanceTime time.Time
}

// Key returns the dedup key of the record.
func (a Attendance) Key() AttendanceKey {
	return AttendanceKey{MachineNumber: a.MachineNumber, UserID: a.UserID, AttendanceTime: a.AttendanceTime.UTC()}
}

// AttendanceView is an attendance record joined with the employee it belongs to.
type AttendanceView struct {
	Attendance
	UserName string `json:"userName"`
	Position string `json:"position"`
}

// AttendanceFilter holds list filters for attendance records.
type AttendanceFilter struct {
	UserID        *int64
	MachineNumber *int
	From          *time.Time
	To            *time.Time
	SortDir       string
}
