// Package devices resolves which attendance terminals a sync run talks to.
package devices

import (
	"context"
	"errors"
	"fmt"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	apperrors "attendance-sync-api/pkg/errors"
	"attendance-sync-api/pkg/validation"

	"github.com/rs/zerolog"
)

const (
	// PageSize is the number of devices read per page when enumerating all of them.
	PageSize = 50
	// MaxPages bounds enumeration of the whole device table.
	MaxPages = 1000
)

// Source is the slice of the device repository the enumerator reads from.
type Source interface {
	GetDeviceByMachineNumber(ctx context.Context, machineNumber int) (*model.Device, error)
	ListDevices(ctx context.Context, filter model.DeviceFilter, params repository.PaginationParams) (*repository.PaginatedResult[model.Device], error)
}

// Enumerator lists the devices a sync run should query.
type Enumerator struct {
	source Source
	logger zerolog.Logger
}

// NewEnumerator creates an Enumerator over source.
func NewEnumerator(source Source, logger zerolog.Logger) *Enumerator {
	return &Enumerator{source: source, logger: logger}
}

// Resolve returns the single device registered under machineNumber, or every
// registered device when machineNumber is nil. Devices with an incomplete
// address are left out.
func (e *Enumerator) Resolve(ctx context.Context, machineNumber *int) ([]model.DeviceDescriptor, error) {
	if machineNumber != nil {
		return e.one(ctx, *machineNumber)
	}
	return e.all(ctx)
}

func (e *Enumerator) one(ctx context.Context, machineNumber int) ([]model.DeviceDescriptor, error) {
	if err := validation.ValidateMachineNumber(machineNumber); err != nil {
		return nil, apperrors.BadRequestError(err.Error())
	}

	device, err := e.source.GetDeviceByMachineNumber(ctx, machineNumber)
	if errors.Is(err, repository.ErrDeviceNotFound) {
		return nil, apperrors.NotFoundError(fmt.Sprintf("device with machine number %d", machineNumber))
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to look up device", err)
	}

	desc := device.Descriptor()
	if !desc.Complete() {
		e.logger.Warn().Int("machine_number", machineNumber).Msg("device registered without a complete address")
		return nil, nil
	}
	return []model.DeviceDescriptor{desc}, nil
}

func (e *Enumerator) all(ctx context.Context) ([]model.DeviceDescriptor, error) {
	var out []model.DeviceDescriptor

	for page := 0; page < MaxPages; page++ {
		result, err := e.source.ListDevices(ctx, model.DeviceFilter{}, repository.PaginationParams{
			Offset: page * PageSize,
			Limit:  PageSize,
		})
		if err != nil {
			return nil, apperrors.DatabaseError("failed to list devices", err)
		}

		for _, d := range result.Items {
			if desc := d.Descriptor(); desc.Complete() {
				out = append(out, desc)
			}
		}

		if len(result.Items) < PageSize {
			return out, nil
		}
	}

	e.logger.Warn().Int("max_pages", MaxPages).Int("devices", len(out)).Msg("device enumeration stopped at page cap")
	return out, nil
}
