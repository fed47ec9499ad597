package integration

import (
	"attendance-sync-api/internal/auth"
	"attendance-sync-api/internal/cache"
	"attendance-sync-api/internal/config"
	"attendance-sync-api/internal/database"
	"attendance-sync-api/internal/devices"
	"attendance-sync-api/internal/gateway"
	"attendance-sync-api/internal/handler"
	"attendance-sync-api/internal/middleware"
	"attendance-sync-api/internal/repository"
	"attendance-sync-api/internal/router"
	"attendance-sync-api/internal/service"
	syncer "attendance-sync-api/internal/sync"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const rosterBody = `[
	{"id": 5, "name": "Ana", "isActive": true},
	{"id": "7", "name": "Luis", "active": 0, "department": "Oficina"}
]`

const punchBody = `{"data": [
	{"attendanceMachineID": 3, "userId": 5, "attendanceTime": "2025-10-01T14:00:00Z", "accessMode": "FP", "attendanceStatus": "in"},
	{"attendanceMachineID": 3, "userId": 7, "attendanceTime": "not a time"}
]}`

// IntegrationTestSuite holds the test dependencies
type IntegrationTestSuite struct {
	DB      *sql.DB
	Router  http.Handler
	Config  *config.Config
	Gateway *httptest.Server
	Users   *service.UserService
}

// setupIntegrationTest wires the full HTTP stack against the test database
// and a fake device gateway.
func setupIntegrationTest(t *testing.T, authEnabled bool) *IntegrationTestSuite {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := loadTestConfig(t)
	db := initTestDatabase(t, cfg)
	cleanDatabase(t, db)

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/employees":
			fmt.Fprint(w, rosterBody)
		case "/api/attendance":
			fmt.Fprint(w, punchBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(gw.Close)

	log := zerolog.Nop()
	employeeRepo := repository.NewEmployeeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	userRepo := repository.NewUserRepository(db)

	employeeCache, err := cache.New[*service.EmployeePage](cache.Config{Name: "employees", Enabled: true, TTL: time.Minute, MaxEntries: 100}, nil)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(employeeCache.Close)

	images, err := service.NewDiskImageStore(t.TempDir(), "/uploads", 1<<20)
	if err != nil {
		t.Fatalf("Failed to create image store: %v", err)
	}

	employeeSvc := service.NewEmployeeService(employeeRepo, employeeCache, images, log)
	userSvc := service.NewUserService(userRepo, log)
	tokens, err := auth.NewTokens("integration-secret-0123456789", time.Hour, "attendance-sync-api")
	if err != nil {
		t.Fatalf("Failed to create tokens: %v", err)
	}

	client := gateway.New(gateway.DefaultConfig(gw.URL+"/api"), log, nil)
	deps := func(inv syncer.Invalidator) syncer.Deps {
		return syncer.Deps{
			Devices: devices.NewEnumerator(deviceRepo, log),
			Gateway: client,
			Cache:   inv,
			Logger:  log,
		}
	}
	employeeEngine := syncer.NewEmployeeEngine(deps(employeeSvc), employeeRepo, syncer.Options{BulkSize: 100})
	attendanceEngine := syncer.NewAttendanceEngine(deps(nil), attendanceRepo, syncer.Options{BulkSize: 100, TimeOffset: 6 * time.Hour})

	h := router.Handlers{
		Employees:   handler.NewEmployeeHandler(employeeSvc, handler.DefaultMaxUpload, log),
		Sync:        handler.NewSyncHandler(employeeEngine, attendanceEngine, log),
		Attendances: handler.NewAttendanceHandler(service.NewAttendanceService(attendanceRepo, log), log),
		Devices:     handler.NewDeviceHandler(service.NewDeviceService(deviceRepo, log), log),
		Users:       handler.NewUserHandler(userSvc, log),
		Auth:        handler.NewAuthHandler(service.NewAuthService(userRepo, tokens, log), log),
		Health: handler.NewHealthHandler(map[string]handler.HealthChecker{
			"database": handler.HealthCheckFunc(db.PingContext),
		}, log),
	}

	cfg.Security = config.SecurityConfig{
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		EnableCORS:      true,
		AllowedOrigins:  []string{"*"},
	}

	var guard *auth.Tokens
	if authEnabled {
		guard = tokens
	}
	authMW := middleware.NewAuthMiddleware(guard, log, router.LoginPath, router.HealthPath, router.MetricsPath)

	suite := &IntegrationTestSuite{
		DB:      db,
		Router:  router.NewRouter(h, cfg, middleware.NewLoggingMiddleware(log, nil), authMW),
		Config:  cfg,
		Gateway: gw,
		Users:   userSvc,
	}
	t.Cleanup(func() { teardownIntegrationTest(t, suite) })
	return suite
}

// teardownIntegrationTest cleans up test resources
func teardownIntegrationTest(t *testing.T, suite *IntegrationTestSuite) {
	t.Helper()
	if suite.DB != nil {
		cleanDatabase(t, suite.DB)
		suite.DB.Close()
	}
}

// loadTestConfig loads configuration for testing
func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()

	port, err := strconv.Atoi(getEnv("TEST_DB_PORT", "5452"))
	if err != nil {
		t.Fatalf("Invalid TEST_DB_PORT: %v", err)
	}

	cfg := config.Defaults()
	cfg.Environment = "test"
	cfg.Database.Driver = getEnv("TEST_DB_DRIVER", "postgres")
	cfg.Database.Host = getEnv("TEST_DB_HOST", "127.0.0.1")
	cfg.Database.Port = port
	cfg.Database.User = getEnv("TEST_DB_USER", "postgres")
	cfg.Database.Password = getEnv("TEST_DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnv("TEST_DB_NAME", "postgres")
	return cfg
}

// initTestDatabase connects and migrates, or skips when no database is reachable.
func initTestDatabase(t *testing.T, cfg *config.Config) *sql.DB {
	t.Helper()

	db, err := database.InitDB(cfg)
	if err != nil {
		t.Skipf("Failed to connect to test database: %v. Ensure test database is running.", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// cleanDatabase removes all test data
func cleanDatabase(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE TABLE attendances, employees, devices, users"); err != nil {
		t.Logf("Warning: Failed to clean database: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

func parseJSONResponse(t *testing.T, resp *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to decode JSON response: %v. Body: %s", err, resp.Body.String())
	}
}

func (s *IntegrationTestSuite) do(t *testing.T, req *http.Request, wantStatus int) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	if rr.Code != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d. Body: %s", req.Method, req.URL, wantStatus, rr.Code, rr.Body.String())
	}
	return rr
}

func TestIntegration_SyncPipeline(t *testing.T) {
	suite := setupIntegrationTest(t, false)

	suite.do(t, createJSONRequest(http.MethodPost, "/api/v1/devices", map[string]interface{}{
		"ip": "192.168.1.50", "port": 4370, "machineNumber": 3,
	}), http.StatusCreated)

	t.Run("employee sync upserts the roster", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rr := suite.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/employees/sync?machineNumber=3", nil), http.StatusOK)
			var body struct {
				Count int `json:"count"`
			}
			parseJSONResponse(t, rr, &body)
			if body.Count != 2 {
				t.Errorf("Expected 2 synced employees, got %d", body.Count)
			}
		}

		var total int
		if err := suite.DB.QueryRow("SELECT COUNT(*) FROM employees").Scan(&total); err != nil {
			t.Fatalf("Failed to count employees: %v", err)
		}
		if total != 2 {
			t.Errorf("Expected 2 employees after repeated syncs, got %d", total)
		}

		rr := suite.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/employees?department=Oficina", nil), http.StatusOK)
		var list struct {
			Data []map[string]interface{} `json:"data"`
		}
		parseJSONResponse(t, rr, &list)
		if len(list.Data) != 1 || list.Data[0]["name"] != "Luis" || list.Data[0]["isActive"] != false {
			t.Errorf("Unexpected employees %v", list.Data)
		}
	})

	t.Run("attendance sync deduplicates and shifts times", func(t *testing.T) {
		rr := suite.do(t, createJSONRequest(http.MethodPost, "/api/v1/attendances/sync", map[string]interface{}{"machineNumber": 3}), http.StatusOK)
		var first struct {
			Stats struct {
				Inserted int            `json:"inserted"`
				Skipped  map[string]int `json:"skipped"`
			} `json:"stats"`
		}
		parseJSONResponse(t, rr, &first)
		if first.Stats.Inserted != 1 || first.Stats.Skipped["invalid_time"] != 1 {
			t.Errorf("Unexpected first run stats %+v", first.Stats)
		}

		rr = suite.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/attendances/sync", nil), http.StatusOK)
		var second struct {
			Stats struct {
				Inserted int `json:"inserted"`
				Matched  int `json:"matched"`
			} `json:"stats"`
		}
		parseJSONResponse(t, rr, &second)
		if second.Stats.Inserted != 0 || second.Stats.Matched != 1 {
			t.Errorf("Expected the second run to only match, got %+v", second.Stats)
		}

		rr = suite.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/attendances?userId=5&from=2025-10-01", nil), http.StatusOK)
		var list struct {
			Data []map[string]interface{} `json:"data"`
		}
		parseJSONResponse(t, rr, &list)
		if len(list.Data) != 1 {
			t.Fatalf("Expected one attendance, got %v", list.Data)
		}
		if list.Data[0]["userName"] != "Ana" {
			t.Errorf("Expected joined employee name, got %v", list.Data[0]["userName"])
		}
		got, _ := time.Parse(time.RFC3339, list.Data[0]["attendanceTime"].(string))
		if want := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC); !got.Equal(want) {
			t.Errorf("Expected stored time %s, got %s", want, got)
		}
	})

	t.Run("export as csv", func(t *testing.T) {
		rr := suite.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/attendances/export?format=csv&from=2025-10-01", nil), http.StatusOK)
		if !strings.Contains(rr.Header().Get("Content-Disposition"), "attendances.csv") {
			t.Errorf("Unexpected Content-Disposition %q", rr.Header().Get("Content-Disposition"))
		}
		lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
		if len(lines) != 2 || !strings.Contains(lines[1], "Ana") {
			t.Errorf("Unexpected export %q", rr.Body.String())
		}
	})
}

func TestIntegration_EmployeeCRUD(t *testing.T) {
	suite := setupIntegrationTest(t, false)

	rr := suite.do(t, createJSONRequest(http.MethodPost, "/api/v1/employees", map[string]interface{}{
		"externalId": 900, "name": "  Marta  ", "department": "Bodega",
	}), http.StatusCreated)
	var created struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Position string `json:"position"`
		} `json:"data"`
	}
	parseJSONResponse(t, rr, &created)
	if created.Data.Name != "Marta" || created.Data.Position != "sin asignar" {
		t.Errorf("Unexpected created employee %+v", created.Data)
	}
	id := created.Data.ID

	suite.do(t, createJSONRequest(http.MethodPost, "/api/v1/employees", map[string]interface{}{
		"externalId": 900, "name": "Other",
	}), http.StatusConflict)

	suite.do(t, createJSONRequest(http.MethodPatch, "/api/v1/employees/"+id+"/position", map[string]string{"position": "Supervisor"}), http.StatusOK)
	suite.do(t, createJSONRequest(http.MethodPatch, "/api/v1/employees/"+id+"/position", map[string]string{}), http.StatusBadRequest)

	rr = suite.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/employees/"+id, nil), http.StatusOK)
	var deleted struct {
		Data struct {
			IsActive bool   `json:"isActive"`
			Position string `json:"position"`
		} `json:"data"`
	}
	parseJSONResponse(t, rr, &deleted)
	if deleted.Data.IsActive || deleted.Data.Position != "Supervisor" {
		t.Errorf("Expected an inactive supervisor, got %+v", deleted.Data)
	}

	suite.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/employees/00000000-0000-0000-0000-000000000001", nil), http.StatusNotFound)
}

func TestIntegration_DuplicateDevice(t *testing.T) {
	suite := setupIntegrationTest(t, false)

	device := map[string]interface{}{"ip": "10.1.1.9", "port": 4370, "machineNumber": 9}
	suite.do(t, createJSONRequest(http.MethodPost, "/api/v1/devices", device), http.StatusCreated)
	suite.do(t, createJSONRequest(http.MethodPost, "/api/v1/devices", device), http.StatusConflict)

	suite.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/employees/sync?machineNumber=10", nil), http.StatusNotFound)
}

func TestIntegration_AuthFlow(t *testing.T) {
	suite := setupIntegrationTest(t, true)

	_, err := suite.Users.CreateUser(context.Background(), service.CreateUserRequest{
		Name: "Ops", Email: "ops@example.com", Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}

	suite.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil), http.StatusUnauthorized)
	suite.do(t, createJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "ops@example.com", "password": "wrong-pass",
	}), http.StatusUnauthorized)

	rr := suite.do(t, createJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "OPS@example.com", "password": "s3cret-pass",
	}), http.StatusOK)
	var login struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	parseJSONResponse(t, rr, &login)
	if login.Data.Token == "" {
		t.Fatal("Expected a token")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/employees", nil)
	req.Header.Set("Authorization", "Bearer "+login.Data.Token)
	suite.do(t, req, http.StatusOK)
}

func TestIntegration_HealthCheck(t *testing.T) {
	suite := setupIntegrationTest(t, true)

	rr := suite.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), http.StatusOK)
	var body map[string]interface{}
	parseJSONResponse(t, rr, &body)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %v", body["status"])
	}
}
