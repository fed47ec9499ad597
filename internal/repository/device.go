package repository

import (
	"attendance-sync-api/internal/model"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeviceRepository is an interface for interacting with device data.
type DeviceRepository interface {
	CreateDevice(ctx context.Context, device model.Device) error
	GetDeviceByID(ctx context.Context, id uuid.UUID) (*model.Device, error)
	GetDeviceByMachineNumber(ctx context.Context, machineNumber int) (*model.Device, error)
	ListDevices(ctx context.Context, filter model.DeviceFilter, params PaginationParams) (*PaginatedResult[model.Device], error)
	DeleteDevice(ctx context.Context, id uuid.UUID) error
}

type deviceRepository struct {
	DB *sql.DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *sql.DB) DeviceRepository {
	return &deviceRepository{DB: db}
}

const deviceColumns = `id, ip, port, machine_number, created_at`

func scanDevice(row interface{ Scan(...interface{}) error }) (model.Device, error) {
	var d model.Device
	err := row.Scan(&d.ID, &d.IP, &d.Port, &d.MachineNumber, &d.CreatedAt)
	return d, err
}

// CreateDevice registers a device. The (ip, port, machine_number) triple is unique.
func (r *deviceRepository) CreateDevice(ctx context.Context, device model.Device) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO devices (id, ip, port, machine_number)
		VALUES ($1, $2, $3, $4)`

	_, err := r.DB.ExecContext(ctx, query, device.ID, device.IP, device.Port, device.MachineNumber)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateDevice, device.Descriptor())
		}
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// GetDeviceByID retrieves a single device by its ID.
func (r *deviceRepository) GetDeviceByID(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`

	d, err := scanDevice(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device by ID: %w", err)
	}
	return &d, nil
}

// GetDeviceByMachineNumber returns the oldest device registered under machineNumber.
func (r *deviceRepository) GetDeviceByMachineNumber(ctx context.Context, machineNumber int) (*model.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE machine_number = $1 ORDER BY created_at ASC LIMIT 1`

	d, err := scanDevice(r.DB.QueryRowContext(ctx, query, machineNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device by machine number: %w", err)
	}
	return &d, nil
}

// ListDevices returns devices matching filter, newest first.
func (r *deviceRepository) ListDevices(ctx context.Context, filter model.DeviceFilter, params PaginationParams) (*PaginatedResult[model.Device], error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var where whereClause
	if filter.IP != "" {
		where.add("ip = ?", filter.IP)
	}
	if filter.Port != nil {
		where.add("port = ?", *filter.Port)
	}
	if filter.MachineNumber != nil {
		where.add("machine_number = ?", *filter.MachineNumber)
	}

	query := `SELECT ` + deviceColumns + ` FROM devices` + where.String() +
		` ORDER BY created_at DESC OFFSET ` + where.next(1) + ` LIMIT ` + where.next(2)

	rows, err := r.DB.QueryContext(ctx, query, append(where.args, params.Offset, params.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []model.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	var totalCount int
	countQuery := `SELECT COUNT(*) FROM devices` + where.String()
	if err := r.DB.QueryRowContext(ctx, countQuery, where.args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count of devices: %w", err)
	}

	return &PaginatedResult[model.Device]{Items: devices, TotalCount: totalCount}, nil
}

// DeleteDevice deletes a device from the database.
func (r *deviceRepository) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.DB.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}
