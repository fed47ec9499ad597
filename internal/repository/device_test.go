package repository

import (
	"attendance-sync-api/internal/model"
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deviceRowColumns = []string{"id", "ip", "port", "machine_number", "created_at"}

func setupDeviceRepo(t testing.TB) (*sql.DB, sqlmock.Sqlmock, DeviceRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewDeviceRepository(db)
}

func TestCreateDevice_Success(t *testing.T) {
	db, mock, repo := setupDeviceRepo(t)
	defer db.Close()

	device := model.Device{ID: uuid.New(), IP: "192.168.1.111", Port: 4370, MachineNumber: 1}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO devices (id, ip, port, machine_number) VALUES ($1, $2, $3, $4)`)).
		WithArgs(device.ID, device.IP, device.Port, device.MachineNumber).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, repo.CreateDevice(context.Background(), device))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDevice_Duplicate(t *testing.T) {
	db, mock, repo := setupDeviceRepo(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO devices`)).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "devices_ip_port_machine_number_key"`))

	err := repo.CreateDevice(context.Background(), model.Device{ID: uuid.New(), IP: "10.0.0.2", Port: 4370, MachineNumber: 2})

	assert.ErrorIs(t, err, ErrDuplicateDevice)
	assert.Contains(t, err.Error(), "10.0.0.2:4370#2")
}

func TestGetDeviceByMachineNumber(t *testing.T) {
	db, mock, repo := setupDeviceRepo(t)
	defer db.Close()

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM devices WHERE machine_number = $1 ORDER BY created_at ASC LIMIT 1`)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(deviceRowColumns).AddRow(id.String(), "10.0.0.5", 4370, 5, now))

	d, err := repo.GetDeviceByMachineNumber(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, model.DeviceDescriptor{IP: "10.0.0.5", Port: 4370, MachineNumber: 5}, d.Descriptor())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDeviceByMachineNumber_NotFound(t *testing.T) {
	db, mock, repo := setupDeviceRepo(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM devices WHERE machine_number = $1`)).
		WithArgs(199).
		WillReturnError(sql.ErrNoRows)

	d, err := repo.GetDeviceByMachineNumber(context.Background(), 199)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestListDevices_WithFilters(t *testing.T) {
	db, mock, repo := setupDeviceRepo(t)
	defer db.Close()

	port := 4370
	machine := 3
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM devices WHERE ip = $1 AND port = $2 AND machine_number = $3 ORDER BY created_at DESC OFFSET $4 LIMIT $5`)).
		WithArgs("10.0.0.3", 4370, 3, 0, 50).
		WillReturnRows(sqlmock.NewRows(deviceRowColumns).AddRow(uuid.New().String(), "10.0.0.3", 4370, 3, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM devices WHERE ip = $1 AND port = $2 AND machine_number = $3`)).
		WithArgs("10.0.0.3", 4370, 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	res, err := repo.ListDevices(context.Background(),
		model.DeviceFilter{IP: "10.0.0.3", Port: &port, MachineNumber: &machine},
		PaginationParams{Offset: 0, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.TotalCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDevices_Empty(t *testing.T) {
	db, mock, repo := setupDeviceRepo(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM devices ORDER BY created_at DESC OFFSET $1 LIMIT $2`)).
		WithArgs(0, 25).
		WillReturnRows(sqlmock.NewRows(deviceRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM devices`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	res, err := repo.ListDevices(context.Background(), model.DeviceFilter{}, PaginationParams{Limit: 25})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestDeleteDevice_NotFound(t *testing.T) {
	db, mock, repo := setupDeviceRepo(t)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM devices WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.DeleteDevice(context.Background(), id), ErrDeviceNotFound)
}
