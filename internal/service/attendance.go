package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	apperrors "attendance-sync-api/pkg/errors"
	"attendance-sync-api/pkg/validation"

	"github.com/rs/zerolog"
)

// AttendanceQuery holds raw list and export filters as received from a request.
type AttendanceQuery struct {
	UserID        string
	MachineNumber string
	From          string
	To            string
	SortDir       string
}

// AttendanceService handles attendance listing and export
type AttendanceService struct {
	repo   repository.AttendanceRepository
	logger zerolog.Logger
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(repo repository.AttendanceRepository, logger zerolog.Logger) *AttendanceService {
	return &AttendanceService{repo: repo, logger: logger}
}

func isDateOnly(raw string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	return err == nil
}

// BuildFilter validates q. A date-only `to` covers its whole day. With
// sameDayTo, a missing `to` closes the range at the end of `from`'s day.
func BuildFilter(q AttendanceQuery, sameDayTo bool) (model.AttendanceFilter, error) {
	var filter model.AttendanceFilter

	if raw := strings.TrimSpace(q.UserID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, apperrors.BadRequestError("userId must be a positive integer")
		}
		filter.UserID = &id
	}

	if raw := strings.TrimSpace(q.MachineNumber); raw != "" {
		n, err := validation.ParseMachineNumber(raw)
		if err != nil {
			return filter, apperrors.BadRequestError(err.Error())
		}
		filter.MachineNumber = &n
	}

	if raw := strings.TrimSpace(q.From); raw != "" {
		from, err := validation.ParseDate(raw)
		if err != nil {
			return filter, apperrors.BadRequestError("from: " + err.Error())
		}
		from = from.UTC()
		filter.From = &from
	}

	if raw := strings.TrimSpace(q.To); raw != "" {
		to, err := validation.ParseDate(raw)
		if err != nil {
			return filter, apperrors.BadRequestError("to: " + err.Error())
		}
		if isDateOnly(raw) {
			to = validation.EndOfDay(to)
		}
		to = to.UTC()
		filter.To = &to
	} else if sameDayTo && filter.From != nil {
		to := validation.EndOfDay(*filter.From)
		filter.To = &to
	}

	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return filter, apperrors.BadRequestError("from must be less than or equal to to")
	}

	switch dir := strings.ToLower(strings.TrimSpace(q.SortDir)); dir {
	case "", "desc":
		filter.SortDir = "desc"
	case "asc":
		filter.SortDir = "asc"
	default:
		return filter, apperrors.BadRequestError("sortDir must be asc or desc")
	}

	return filter, nil
}

// ListAttendances returns a page of attendance records joined with employee details.
func (s *AttendanceService) ListAttendances(ctx context.Context, q AttendanceQuery, params repository.PaginationParams) (*repository.PaginatedResult[model.AttendanceView], error) {
	filter, err := BuildFilter(q, false)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.ListAttendances(ctx, filter, params)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to retrieve attendances", err)
	}
	return result, nil
}

// ExportAttendances returns every record matching q, up to repository.MaxExportRows.
func (s *AttendanceService) ExportAttendances(ctx context.Context, q AttendanceQuery) ([]model.AttendanceView, error) {
	filter, err := BuildFilter(q, true)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ExportAttendances(ctx, filter)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to export attendances", err)
	}
	if len(rows) >= repository.MaxExportRows {
		s.logger.Warn().
			Int("limit", repository.MaxExportRows).
			Msg("Attendance export reached the row limit")
	}

	s.logger.Info().Int("rows", len(rows)).Msg("Attendance export prepared")
	return rows, nil
}
