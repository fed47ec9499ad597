package handler

import (
	"context"
	"io"
	"net/http"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	"attendance-sync-api/internal/service"
	syncer "attendance-sync-api/internal/sync"

	"github.com/google/uuid"
)

// EmployeeService is what the employee handlers need from the service layer.
type EmployeeService interface {
	ListEmployees(ctx context.Context, filter model.EmployeeFilter, params repository.PaginationParams) (*service.EmployeePage, error)
	GetEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	CreateEmployee(ctx context.Context, employee model.Employee) (*model.Employee, error)
	UpdateEmployee(ctx context.Context, id uuid.UUID, update model.EmployeeUpdate) (*model.Employee, error)
	DeactivateEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	SetProfileImage(ctx context.Context, id uuid.UUID, filename string, content io.Reader) (*model.Employee, error)
}

// AttendanceService is what the attendance handlers need from the service layer.
type AttendanceService interface {
	ListAttendances(ctx context.Context, q service.AttendanceQuery, params repository.PaginationParams) (*repository.PaginatedResult[model.AttendanceView], error)
	ExportAttendances(ctx context.Context, q service.AttendanceQuery) ([]model.AttendanceView, error)
}

// DeviceService is what the device handlers need from the service layer.
type DeviceService interface {
	CreateDevice(ctx context.Context, device model.Device) (*model.Device, error)
	ListDevices(ctx context.Context, filter model.DeviceFilter, params repository.PaginationParams) (*repository.PaginatedResult[model.Device], error)
	GetDevice(ctx context.Context, id uuid.UUID) (*model.Device, error)
	DeleteDevice(ctx context.Context, id uuid.UUID) error
}

// UserService is what the user handlers need from the service layer.
type UserService interface {
	CreateUser(ctx context.Context, req service.CreateUserRequest) (*model.User, error)
	ListUsers(ctx context.Context, params repository.PaginationParams) (*repository.PaginatedResult[model.User], error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req service.UpdateUserRequest) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// AuthService signs operators in.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	SessionCheck(ctx context.Context, token string) (*service.SessionInfo, error)
}

// EmployeeSyncer is the roster sync engine as seen by the HTTP layer.
type EmployeeSyncer interface {
	TriggerManual(ctx context.Context, machineNumber *int) (syncer.ManualEmployeeResult, error)
	Stats() model.SyncStats
	LastEmployees() []model.SyncedEmployee
	LastRawResponses() []model.RawResponse
	Running() bool
}

// AttendanceSyncer is the attendance sync engine as seen by the HTTP layer.
type AttendanceSyncer interface {
	TriggerManual(ctx context.Context, machineNumber *int, from, to string) (syncer.RunResult, error)
	Stats() model.SyncStats
	LastRawResponses() []model.RawResponse
	Running() bool
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// EmployeeHandlerInterface defines the contract for employee HTTP handlers.
type EmployeeHandlerInterface interface {
	ListEmployeesHandler(w http.ResponseWriter, r *http.Request)
	CreateEmployeeHandler(w http.ResponseWriter, r *http.Request)
	GetEmployeeHandler(w http.ResponseWriter, r *http.Request)
	UpdateEmployeeHandler(w http.ResponseWriter, r *http.Request)
	UpdatePositionHandler(w http.ResponseWriter, r *http.Request)
	UpdateDepartmentHandler(w http.ResponseWriter, r *http.Request)
	UpdateIsActiveHandler(w http.ResponseWriter, r *http.Request)
	UpdateProfileImageHandler(w http.ResponseWriter, r *http.Request)
	DeleteEmployeeHandler(w http.ResponseWriter, r *http.Request)
}

// SyncHandlerInterface defines the contract for sync HTTP handlers.
type SyncHandlerInterface interface {
	SyncEmployeesHandler(w http.ResponseWriter, r *http.Request)
	EmployeeSyncStatsHandler(w http.ResponseWriter, r *http.Request)
	LastSyncedEmployeesHandler(w http.ResponseWriter, r *http.Request)
	EmployeeSyncRawHandler(w http.ResponseWriter, r *http.Request)
	SyncAttendancesHandler(w http.ResponseWriter, r *http.Request)
	AttendanceSyncStatsHandler(w http.ResponseWriter, r *http.Request)
	AttendanceSyncRawHandler(w http.ResponseWriter, r *http.Request)
}

// Ensure handlers implement their interfaces at compile time
var (
	_ EmployeeHandlerInterface = (*EmployeeHandler)(nil)
	_ SyncHandlerInterface     = (*SyncHandler)(nil)

	_ EmployeeService   = (*service.EmployeeService)(nil)
	_ AttendanceService = (*service.AttendanceService)(nil)
	_ DeviceService     = (*service.DeviceService)(nil)
	_ UserService       = (*service.UserService)(nil)
	_ AuthService       = (*service.AuthService)(nil)
	_ EmployeeSyncer    = (*syncer.EmployeeEngine)(nil)
	_ AttendanceSyncer  = (*syncer.AttendanceEngine)(nil)
)
