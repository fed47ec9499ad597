package service

import (
	"context"
	"errors"
	"strings"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	apperrors "attendance-sync-api/pkg/errors"
	"attendance-sync-api/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeviceService handles business logic for device registration
type DeviceService struct {
	repo   repository.DeviceRepository
	logger zerolog.Logger
}

// NewDeviceService creates a new device service
func NewDeviceService(repo repository.DeviceRepository, logger zerolog.Logger) *DeviceService {
	return &DeviceService{repo: repo, logger: logger}
}

func validateDevice(device model.Device) error {
	fields := map[string]string{}
	if err := validation.ValidateIP(device.IP); err != nil {
		fields["ip"] = err.Error()
	}
	if err := validation.ValidatePort(device.Port); err != nil {
		fields["port"] = err.Error()
	}
	if err := validation.ValidateMachineNumber(device.MachineNumber); err != nil {
		fields["machineNumber"] = err.Error()
	}
	if len(fields) > 0 {
		return apperrors.ValidationErrorWithDetails("invalid device", fields)
	}
	return nil
}

// CreateDevice registers a device. The (ip, port, machineNumber) triple is unique.
func (s *DeviceService) CreateDevice(ctx context.Context, device model.Device) (*model.Device, error) {
	device.IP = strings.TrimSpace(device.IP)
	if err := validateDevice(device); err != nil {
		return nil, err
	}
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	if err := s.repo.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, repository.ErrDuplicateDevice) {
			return nil, apperrors.New(apperrors.ErrorCodeConflict, "device with this ip, port and machine number already exists")
		}
		return nil, apperrors.DatabaseError("failed to create device", err)
	}

	s.logger.Info().
		Str("device_id", device.ID.String()).
		Str("device", device.Descriptor().String()).
		Msg("Device registered")

	created, err := s.repo.GetDeviceByID(ctx, device.ID)
	if err != nil {
		return &device, nil
	}
	return created, nil
}

// ListDevices returns a filtered page of devices
func (s *DeviceService) ListDevices(ctx context.Context, filter model.DeviceFilter, params repository.PaginationParams) (*repository.PaginatedResult[model.Device], error) {
	result, err := s.repo.ListDevices(ctx, filter, params)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to retrieve devices", err)
	}
	return result, nil
}

// GetDevice retrieves a device by its ID
func (s *DeviceService) GetDevice(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	device, err := s.repo.GetDeviceByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, apperrors.NotFoundError("device")
		}
		return nil, apperrors.DatabaseError("failed to retrieve device", err)
	}
	return device, nil
}

// DeleteDevice removes a device registration
func (s *DeviceService) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteDevice(ctx, id); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return apperrors.NotFoundError("device")
		}
		return apperrors.DatabaseError("failed to delete device", err)
	}

	s.logger.Info().Str("device_id", id.String()).Msg("Device deleted")
	return nil
}
