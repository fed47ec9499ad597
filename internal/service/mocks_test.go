package service

import (
	"context"
	"time"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"

	"github.com/google/uuid"
)

type mockEmployeeRepo struct {
	repository.EmployeeRepository
	listFn   func(ctx context.Context, filter model.EmployeeFilter, params repository.PaginationParams) (*repository.PaginatedResult[model.Employee], error)
	getFn    func(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	createFn func(ctx context.Context, employee model.Employee) error
	updateFn func(ctx context.Context, id uuid.UUID, update model.EmployeeUpdate) (*model.Employee, error)
}

func (m *mockEmployeeRepo) ListEmployees(ctx context.Context, filter model.EmployeeFilter, params repository.PaginationParams) (*repository.PaginatedResult[model.Employee], error) {
	return m.listFn(ctx, filter, params)
}

func (m *mockEmployeeRepo) GetEmployeeByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	return m.getFn(ctx, id)
}

func (m *mockEmployeeRepo) CreateEmployee(ctx context.Context, employee model.Employee) error {
	return m.createFn(ctx, employee)
}

func (m *mockEmployeeRepo) UpdateEmployee(ctx context.Context, id uuid.UUID, update model.EmployeeUpdate) (*model.Employee, error) {
	return m.updateFn(ctx, id, update)
}

type mockAttendanceRepo struct {
	repository.AttendanceRepository
	listFn   func(ctx context.Context, filter model.AttendanceFilter, params repository.PaginationParams) (*repository.PaginatedResult[model.AttendanceView], error)
	exportFn func(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceView, error)
}

func (m *mockAttendanceRepo) ListAttendances(ctx context.Context, filter model.AttendanceFilter, params repository.PaginationParams) (*repository.PaginatedResult[model.AttendanceView], error) {
	return m.listFn(ctx, filter, params)
}

func (m *mockAttendanceRepo) ExportAttendances(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceView, error) {
	return m.exportFn(ctx, filter)
}

type mockDeviceRepo struct {
	repository.DeviceRepository
	createFn func(ctx context.Context, device model.Device) error
	getFn    func(ctx context.Context, id uuid.UUID) (*model.Device, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (m *mockDeviceRepo) CreateDevice(ctx context.Context, device model.Device) error {
	return m.createFn(ctx, device)
}

func (m *mockDeviceRepo) GetDeviceByID(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	return m.getFn(ctx, id)
}

func (m *mockDeviceRepo) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

// memoryUsers is a map-backed UserRepository.
type memoryUsers struct {
	byID map[uuid.UUID]model.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[uuid.UUID]model.User{}}
}

func (m *memoryUsers) CreateUser(_ context.Context, user model.User) error {
	for _, u := range m.byID {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.CreatedAt = time.Now()
	m.byID[user.ID] = user
	return nil
}

func (m *memoryUsers) GetUserByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memoryUsers) ListUsers(_ context.Context, _ repository.PaginationParams) (*repository.PaginatedResult[model.User], error) {
	items := make([]model.User, 0, len(m.byID))
	for _, u := range m.byID {
		items = append(items, u)
	}
	return &repository.PaginatedResult[model.User]{Items: items, TotalCount: len(items)}, nil
}

func (m *memoryUsers) UpdateUser(_ context.Context, user model.User) error {
	if _, ok := m.byID[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	for id, u := range m.byID {
		if id != user.ID && u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.byID[user.ID] = user
	return nil
}

func (m *memoryUsers) DeleteUser(_ context.Context, id uuid.UUID) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.byID, id)
	return nil
}
