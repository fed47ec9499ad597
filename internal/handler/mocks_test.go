package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	"attendance-sync-api/internal/service"
	syncer "attendance-sync-api/internal/sync"
	apperrors "attendance-sync-api/pkg/errors"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// MockEmployeeService is a mock implementation of EmployeeService
type MockEmployeeService struct {
	ListEmployeesFunc      func(ctx context.Context, filter model.EmployeeFilter, params repository.PaginationParams) (*service.EmployeePage, error)
	GetEmployeeFunc        func(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	CreateEmployeeFunc     func(ctx context.Context, employee model.Employee) (*model.Employee, error)
	UpdateEmployeeFunc     func(ctx context.Context, id uuid.UUID, update model.EmployeeUpdate) (*model.Employee, error)
	DeactivateEmployeeFunc func(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	SetProfileImageFunc    func(ctx context.Context, id uuid.UUID, filename string, content io.Reader) (*model.Employee, error)
}

func (m *MockEmployeeService) ListEmployees(ctx context.Context, filter model.EmployeeFilter, params repository.PaginationParams) (*service.EmployeePage, error) {
	if m.ListEmployeesFunc != nil {
		return m.ListEmployeesFunc(ctx, filter, params)
	}
	return &service.EmployeePage{Items: []model.Employee{}}, nil
}

func (m *MockEmployeeService) GetEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	if m.GetEmployeeFunc != nil {
		return m.GetEmployeeFunc(ctx, id)
	}
	return nil, apperrors.NotFoundError("employee")
}

func (m *MockEmployeeService) CreateEmployee(ctx context.Context, employee model.Employee) (*model.Employee, error) {
	if m.CreateEmployeeFunc != nil {
		return m.CreateEmployeeFunc(ctx, employee)
	}
	employee.ID = uuid.New()
	return &employee, nil
}

func (m *MockEmployeeService) UpdateEmployee(ctx context.Context, id uuid.UUID, update model.EmployeeUpdate) (*model.Employee, error) {
	if m.UpdateEmployeeFunc != nil {
		return m.UpdateEmployeeFunc(ctx, id, update)
	}
	return &model.Employee{ID: id}, nil
}

func (m *MockEmployeeService) DeactivateEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	if m.DeactivateEmployeeFunc != nil {
		return m.DeactivateEmployeeFunc(ctx, id)
	}
	return &model.Employee{ID: id, IsActive: false}, nil
}

func (m *MockEmployeeService) SetProfileImage(ctx context.Context, id uuid.UUID, filename string, content io.Reader) (*model.Employee, error) {
	if m.SetProfileImageFunc != nil {
		return m.SetProfileImageFunc(ctx, id, filename, content)
	}
	url := "/uploads/" + filename
	return &model.Employee{ID: id, ProfileImageURL: &url}, nil
}

// MockAttendanceService is a mock implementation of AttendanceService
type MockAttendanceService struct {
	ListAttendancesFunc   func(ctx context.Context, q service.AttendanceQuery, params repository.PaginationParams) (*repository.PaginatedResult[model.AttendanceView], error)
	ExportAttendancesFunc func(ctx context.Context, q service.AttendanceQuery) ([]model.AttendanceView, error)
}

func (m *MockAttendanceService) ListAttendances(ctx context.Context, q service.AttendanceQuery, params repository.PaginationParams) (*repository.PaginatedResult[model.AttendanceView], error) {
	if m.ListAttendancesFunc != nil {
		return m.ListAttendancesFunc(ctx, q, params)
	}
	return &repository.PaginatedResult[model.AttendanceView]{Items: []model.AttendanceView{}}, nil
}

func (m *MockAttendanceService) ExportAttendances(ctx context.Context, q service.AttendanceQuery) ([]model.AttendanceView, error) {
	if m.ExportAttendancesFunc != nil {
		return m.ExportAttendancesFunc(ctx, q)
	}
	return nil, nil
}

// MockDeviceService is a mock implementation of DeviceService
type MockDeviceService struct {
	CreateDeviceFunc func(ctx context.Context, device model.Device) (*model.Device, error)
	ListDevicesFunc  func(ctx context.Context, filter model.DeviceFilter, params repository.PaginationParams) (*repository.PaginatedResult[model.Device], error)
	GetDeviceFunc    func(ctx context.Context, id uuid.UUID) (*model.Device, error)
	DeleteDeviceFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *MockDeviceService) CreateDevice(ctx context.Context, device model.Device) (*model.Device, error) {
	if m.CreateDeviceFunc != nil {
		return m.CreateDeviceFunc(ctx, device)
	}
	device.ID = uuid.New()
	return &device, nil
}

func (m *MockDeviceService) ListDevices(ctx context.Context, filter model.DeviceFilter, params repository.PaginationParams) (*repository.PaginatedResult[model.Device], error) {
	if m.ListDevicesFunc != nil {
		return m.ListDevicesFunc(ctx, filter, params)
	}
	return &repository.PaginatedResult[model.Device]{Items: []model.Device{}}, nil
}

func (m *MockDeviceService) GetDevice(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	if m.GetDeviceFunc != nil {
		return m.GetDeviceFunc(ctx, id)
	}
	return nil, apperrors.NotFoundError("device")
}

func (m *MockDeviceService) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	if m.DeleteDeviceFunc != nil {
		return m.DeleteDeviceFunc(ctx, id)
	}
	return nil
}

// MockAuthService is a mock implementation of AuthService
type MockAuthService struct {
	LoginFunc        func(ctx context.Context, email, password string) (*service.LoginResult, error)
	SessionCheckFunc func(ctx context.Context, token string) (*service.SessionInfo, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthService) SessionCheck(ctx context.Context, token string) (*service.SessionInfo, error) {
	return m.SessionCheckFunc(ctx, token)
}

// MockUserService is a mock implementation of UserService
type MockUserService struct {
	CreateUserFunc func(ctx context.Context, req service.CreateUserRequest) (*model.User, error)
	ListUsersFunc  func(ctx context.Context, params repository.PaginationParams) (*repository.PaginatedResult[model.User], error)
	GetUserFunc    func(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateUserFunc func(ctx context.Context, id uuid.UUID, req service.UpdateUserRequest) (*model.User, error)
	DeleteUserFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *MockUserService) CreateUser(ctx context.Context, req service.CreateUserRequest) (*model.User, error) {
	return m.CreateUserFunc(ctx, req)
}

func (m *MockUserService) ListUsers(ctx context.Context, params repository.PaginationParams) (*repository.PaginatedResult[model.User], error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, params)
	}
	return &repository.PaginatedResult[model.User]{Items: []model.User{}}, nil
}

func (m *MockUserService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, apperrors.NotFoundError("user")
}

func (m *MockUserService) UpdateUser(ctx context.Context, id uuid.UUID, req service.UpdateUserRequest) (*model.User, error) {
	return m.UpdateUserFunc(ctx, id, req)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, id)
	}
	return nil
}

// MockEmployeeSyncer is a mock implementation of EmployeeSyncer
type MockEmployeeSyncer struct {
	TriggerManualFunc func(ctx context.Context, machineNumber *int) (syncer.ManualEmployeeResult, error)
	StatsValue        model.SyncStats
	Employees         []model.SyncedEmployee
	Raw               []model.RawResponse
}

func (m *MockEmployeeSyncer) TriggerManual(ctx context.Context, machineNumber *int) (syncer.ManualEmployeeResult, error) {
	return m.TriggerManualFunc(ctx, machineNumber)
}

func (m *MockEmployeeSyncer) Stats() model.SyncStats { return m.StatsValue }
func (m *MockEmployeeSyncer) LastEmployees() []model.SyncedEmployee { return m.Employees }
func (m *MockEmployeeSyncer) LastRawResponses() []model.RawResponse { return m.Raw }
func (m *MockEmployeeSyncer) Running() bool { return false }

// MockAttendanceSyncer is a mock implementation of AttendanceSyncer
type MockAttendanceSyncer struct {
	TriggerManualFunc func(ctx context.Context, machineNumber *int, from, to string) (syncer.RunResult, error)
	StatsValue        model.SyncStats
}

func (m *MockAttendanceSyncer) TriggerManual(ctx context.Context, machineNumber *int, from, to string) (syncer.RunResult, error) {
	return m.TriggerManualFunc(ctx, machineNumber, from, to)
}

func (m *MockAttendanceSyncer) Stats() model.SyncStats { return m.StatsValue }
func (m *MockAttendanceSyncer) LastRawResponses() []model.RawResponse { return nil }
func (m *MockAttendanceSyncer) Running() bool { return true }

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func createJSONRequest(method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withID(req *http.Request, id string) *http.Request {
	return mux.SetURLVars(req, map[string]string{"id": id})
}

func decodeBody(rr *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return out
}
