package integration

import (
	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestIntegration_DatabaseOperations exercises the repositories against a real database
func TestIntegration_DatabaseOperations(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping database integration test in short mode")
	}

	cfg := loadTestConfig(t)
	db := initTestDatabase(t, cfg)
	defer func() {
		cleanDatabase(t, db)
		db.Close()
	}()
	cleanDatabase(t, db)

	ctx := context.Background()
	employees := repository.NewEmployeeRepository(db)
	attendances := repository.NewAttendanceRepository(db)
	devices := repository.NewDeviceRepository(db)

	t.Run("Roster upsert is idempotent and keeps positions", func(t *testing.T) {
		roster := []model.ExternalEmployee{
			{ExternalID: 1, Name: "Ana", IsActive: true},
			{ExternalID: 2, Name: "Luis", IsActive: true, Department: "Oficina"},
		}
		first, err := employees.BulkUpsertExternal(ctx, roster)
		if err != nil {
			t.Fatalf("Failed to upsert roster: %v", err)
		}
		if first.Inserted != 2 {
			t.Errorf("Expected 2 inserted, got %+v", first)
		}

		page, err := employees.ListEmployees(ctx, model.EmployeeFilter{Department: "Bodega"}, repository.PaginationParams{Limit: 10})
		if err != nil {
			t.Fatalf("Failed to list employees: %v", err)
		}
		if page.TotalCount != 1 || page.Items[0].Name != "Ana" {
			t.Fatalf("Expected Ana in the default department, got %+v", page.Items)
		}

		position := "Supervisor"
		if _, err := employees.UpdateEmployee(ctx, page.Items[0].ID, model.EmployeeUpdate{Position: &position}); err != nil {
			t.Fatalf("Failed to update position: %v", err)
		}

		roster[0].IsActive = false
		second, err := employees.BulkUpsertExternal(ctx, roster)
		if err != nil {
			t.Fatalf("Failed to upsert roster again: %v", err)
		}
		if second.Inserted != 0 || second.Matched != 2 {
			t.Errorf("Expected only matches on the second upsert, got %+v", second)
		}

		got, err := employees.GetEmployeeByID(ctx, page.Items[0].ID)
		if err != nil {
			t.Fatalf("Failed to get employee: %v", err)
		}
		if got.IsActive || got.Position != "Supervisor" {
			t.Errorf("Expected an inactive supervisor, got %+v", got)
		}
	})

	t.Run("Attendance batches deduplicate on the natural key", func(t *testing.T) {
		at := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
		batch := []model.Attendance{
			{MachineNumber: 3, UserID: 1, AttendanceTime: at, AccessMode: "FP"},
			{MachineNumber: 3, UserID: 1, AttendanceTime: at.Add(time.Minute)},
			{MachineNumber: 3, UserID: 1, AttendanceTime: at},
		}
		res, err := attendances.InsertManyIfNotExists(ctx, batch)
		if err != nil {
			t.Fatalf("Failed to insert batch: %v", err)
		}
		if res.Inserted != 2 || res.Matched != 1 {
			t.Errorf("Expected 2 inserted and 1 matched, got %+v", res)
		}

		inserted, err := attendances.InsertIfNotExists(ctx, batch[1])
		if err != nil {
			t.Fatalf("Failed to insert single record: %v", err)
		}
		if inserted {
			t.Error("Expected the existing record to be matched")
		}

		userID := int64(1)
		page, err := attendances.ListAttendances(ctx, model.AttendanceFilter{UserID: &userID}, repository.PaginationParams{Limit: 10})
		if err != nil {
			t.Fatalf("Failed to list attendances: %v", err)
		}
		if page.TotalCount != 2 || page.Items[0].UserName != "Ana" {
			t.Errorf("Unexpected attendances %+v", page.Items)
		}
	})

	t.Run("Shift dry run only counts", func(t *testing.T) {
		n, err := attendances.ShiftAttendanceTimes(ctx, 6*time.Hour, true)
		if err != nil {
			t.Fatalf("Failed dry run: %v", err)
		}
		if n != 2 {
			t.Errorf("Expected 2 rows, got %d", n)
		}

		rows, err := attendances.ExportAttendances(ctx, model.AttendanceFilter{SortDir: "asc"})
		if err != nil {
			t.Fatalf("Failed to export: %v", err)
		}
		if !rows[0].AttendanceTime.Equal(time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)) {
			t.Errorf("Dry run changed stored times: %s", rows[0].AttendanceTime)
		}

		n, err = attendances.ShiftAttendanceTimes(ctx, 6*time.Hour, false)
		if err != nil {
			t.Fatalf("Failed shift: %v", err)
		}
		if n != 2 {
			t.Errorf("Expected 2 shifted rows, got %d", n)
		}
	})

	t.Run("Devices are unique per address", func(t *testing.T) {
		device := model.Device{ID: uuid.New(), IP: "10.0.0.5", Port: 4370, MachineNumber: 5}
		if err := devices.CreateDevice(ctx, device); err != nil {
			t.Fatalf("Failed to create device: %v", err)
		}
		device.ID = uuid.New()
		if err := devices.CreateDevice(ctx, device); !errors.Is(err, repository.ErrDuplicateDevice) {
			t.Errorf("Expected ErrDuplicateDevice, got %v", err)
		}

		got, err := devices.GetDeviceByMachineNumber(ctx, 5)
		if err != nil {
			t.Fatalf("Failed to get device: %v", err)
		}
		if err := devices.DeleteDevice(ctx, got.ID); err != nil {
			t.Fatalf("Failed to delete device: %v", err)
		}
		if _, err := devices.GetDeviceByID(ctx, got.ID); !errors.Is(err, repository.ErrDeviceNotFound) {
			t.Errorf("Expected ErrDeviceNotFound, got %v", err)
		}
	})
}
