package router

import (
	"net/http"

	"attendance-sync-api/internal/config"
	"attendance-sync-api/internal/handler"
	"attendance-sync-api/internal/middleware"

	"github.com/gorilla/mux"
)

// Paths reachable without a token.
const (
	HealthPath  = "/health"
	MetricsPath = "/metrics"
	LoginPath   = "/api/v1/auth/login"
)

// Handlers groups everything the router mounts. Metrics and Uploads may be nil.
type Handlers struct {
	Employees   handler.EmployeeHandlerInterface
	Sync        handler.SyncHandlerInterface
	Attendances *handler.AttendanceHandler
	Devices     *handler.DeviceHandler
	Users       *handler.UserHandler
	Auth        *handler.AuthHandler
	Health      http.Handler
	Metrics     http.Handler

	// Uploads serves stored profile images under UploadsPrefix.
	Uploads       http.Handler
	UploadsPrefix string
}

// NewRouter creates a new router and sets up the routes with security middleware.
func NewRouter(h Handlers, cfg *config.Config, logging *middleware.LoggingMiddleware, authMW *middleware.AuthMiddleware) *mux.Router {
	r := mux.NewRouter()

	securityMW := middleware.NewSecurityMiddleware(&cfg.Security)

	// Apply global middleware in order
	r.Use(middleware.RequestID)
	r.Use(securityMW.SecurityHeaders)
	r.Use(securityMW.CORS)
	r.Use(securityMW.TrustedProxy)
	r.Use(logging.LogRequests)
	r.Use(securityMW.RateLimit)
	r.Use(securityMW.RequestTimeout)
	r.Use(authMW.RequireToken)

	// Preflight requests never match a method-bound route, so mux routes them
	// here without running the middleware chain.
	r.MethodNotAllowedHandler = securityMW.CORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"method not allowed","code":"METHOD_NOT_ALLOWED"}`))
	}))

	r.Handle(HealthPath, h.Health).Methods(http.MethodGet)
	if h.Metrics != nil {
		r.Handle(MetricsPath, h.Metrics).Methods(http.MethodGet)
	}
	if h.Uploads != nil && h.UploadsPrefix != "" {
		r.PathPrefix(h.UploadsPrefix + "/").Handler(http.StripPrefix(h.UploadsPrefix+"/", h.Uploads)).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	// Auth
	api.HandleFunc("/auth/login", h.Auth.LoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/session-check", h.Auth.SessionCheckHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.Auth.LogoutHandler).Methods(http.MethodPost)

	// Employee sync, registered ahead of /employees/{id}
	api.HandleFunc("/employees/sync", h.Sync.SyncEmployeesHandler).Methods(http.MethodPost)
	api.HandleFunc("/employees/sync/stats", h.Sync.EmployeeSyncStatsHandler).Methods(http.MethodGet)
	api.HandleFunc("/employees/sync/last", h.Sync.LastSyncedEmployeesHandler).Methods(http.MethodGet)
	api.HandleFunc("/employees/sync/raw", h.Sync.EmployeeSyncRawHandler).Methods(http.MethodGet)

	// Employee CRUD operations
	api.HandleFunc("/employees", h.Employees.ListEmployeesHandler).Methods(http.MethodGet)
	api.HandleFunc("/employees", h.Employees.CreateEmployeeHandler).Methods(http.MethodPost)
	api.HandleFunc("/employees/{id}", h.Employees.GetEmployeeHandler).Methods(http.MethodGet)
	api.HandleFunc("/employees/{id}", h.Employees.UpdateEmployeeHandler).Methods(http.MethodPatch)
	api.HandleFunc("/employees/{id}", h.Employees.DeleteEmployeeHandler).Methods(http.MethodDelete)
	api.HandleFunc("/employees/{id}/position", h.Employees.UpdatePositionHandler).Methods(http.MethodPatch)
	api.HandleFunc("/employees/{id}/department", h.Employees.UpdateDepartmentHandler).Methods(http.MethodPatch)
	api.HandleFunc("/employees/{id}/isactive", h.Employees.UpdateIsActiveHandler).Methods(http.MethodPatch)
	api.HandleFunc("/employees/{id}/profile-image", h.Employees.UpdateProfileImageHandler).Methods(http.MethodPatch)

	// Attendances
	api.HandleFunc("/attendances", h.Attendances.ListAttendancesHandler).Methods(http.MethodGet)
	api.HandleFunc("/attendances/export", h.Attendances.ExportAttendancesHandler).Methods(http.MethodGet)
	api.HandleFunc("/attendances/sync", h.Sync.SyncAttendancesHandler).Methods(http.MethodPost)
	api.HandleFunc("/attendances/sync/stats", h.Sync.AttendanceSyncStatsHandler).Methods(http.MethodGet)
	api.HandleFunc("/attendances/sync/raw", h.Sync.AttendanceSyncRawHandler).Methods(http.MethodGet)

	// Devices
	api.HandleFunc("/devices", h.Devices.CreateDeviceHandler).Methods(http.MethodPost)
	api.HandleFunc("/devices", h.Devices.ListDevicesHandler).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", h.Devices.GetDeviceHandler).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", h.Devices.DeleteDeviceHandler).Methods(http.MethodDelete)

	// Operator accounts
	api.HandleFunc("/users", h.Users.CreateUserHandler).Methods(http.MethodPost)
	api.HandleFunc("/users", h.Users.ListUsersHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", h.Users.GetUserHandler).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", h.Users.UpdateUserHandler).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}", h.Users.DeleteUserHandler).Methods(http.MethodDelete)

	return r
}
