package repository

import (
	"attendance-sync-api/internal/model"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryEmployeeStore is an in-process roster store for tests. It only offers
// the single-record write path.
type MemoryEmployeeStore struct {
	mu   sync.Mutex
	byID map[int64]model.Employee
}

// NewMemoryEmployeeStore creates an empty store.
func NewMemoryEmployeeStore() *MemoryEmployeeStore {
	return &MemoryEmployeeStore{byID: make(map[int64]model.Employee)}
}

// UpsertExternal inserts or refreshes name, active flag and department.
func (s *MemoryEmployeeStore) UpsertExternal(_ context.Context, e model.ExternalEmployee) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[e.ExternalID]
	if !ok {
		id := e.ExternalID
		existing = model.Employee{
			ID:         uuid.New(),
			ExternalID: &id,
			Position:   model.DefaultPosition,
			CreatedAt:  time.Now().UTC(),
		}
	}
	existing.Name = e.Name
	existing.IsActive = e.IsActive
	existing.Department = rosterDepartment(e)
	s.byID[e.ExternalID] = existing
	return !ok, nil
}

// Get returns the employee stored under externalID.
func (s *MemoryEmployeeStore) Get(externalID int64) (model.Employee, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[externalID]
	return e, ok
}

// Len returns the number of stored employees.
func (s *MemoryEmployeeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// MemoryAttendanceStore is an in-process punch store for tests, keyed by the dedup key.
// It only offers the single-record write path.
type MemoryAttendanceStore struct {
	mu      sync.Mutex
	records map[model.AttendanceKey]model.Attendance
}

// NewMemoryAttendanceStore creates an empty store.
func NewMemoryAttendanceStore() *MemoryAttendanceStore {
	return &MemoryAttendanceStore{records: make(map[model.AttendanceKey]model.Attendance)}
}

// InsertIfNotExists stores a unless its key is already present.
func (s *MemoryAttendanceStore) InsertIfNotExists(_ context.Context, a model.Attendance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := a.Key()
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.AttendanceTime = key.AttendanceTime
	a.CreatedAt = time.Now().UTC()
	s.records[key] = a
	return true, nil
}

// Records returns the stored punches ordered by time.
func (s *MemoryAttendanceStore) Records() []model.Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Attendance, 0, len(s.records))
	for _, a := range s.records {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AttendanceTime.Before(out[j].AttendanceTime)
	})
	return out
}
