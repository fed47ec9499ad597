package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"attendance-sync-api/internal/cache"
	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	apperrors "attendance-sync-api/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EmployeePage is a cached page of the employee listing.
type EmployeePage = repository.PaginatedResult[model.Employee]

// EmployeeService handles business logic for employee operations
type EmployeeService struct {
	repo   repository.EmployeeRepository
	cache  *cache.Cache[*EmployeePage]
	images ImageStore
	logger zerolog.Logger
}

// NewEmployeeService creates a new employee service. cache and images may be nil.
func NewEmployeeService(repo repository.EmployeeRepository, c *cache.Cache[*EmployeePage], images ImageStore, logger zerolog.Logger) *EmployeeService {
	return &EmployeeService{
		repo:   repo,
		cache:  c,
		images: images,
		logger: logger,
	}
}

// Invalidate drops every cached employee page.
func (s *EmployeeService) Invalidate() {
	s.cache.Invalidate()
}

func listCacheKey(filter model.EmployeeFilter, params repository.PaginationParams) string {
	active := ""
	if filter.IsActive != nil {
		active = fmt.Sprintf("%t", *filter.IsActive)
	}
	return strings.Join([]string{
		filter.Department, active, filter.Position,
		filter.SortBy, filter.SortDir, fmt.Sprintf("%d", params.Limit),
	}, "|")
}

// ListEmployees returns a page of employees. First pages are served from the cache.
func (s *EmployeeService) ListEmployees(ctx context.Context, filter model.EmployeeFilter, params repository.PaginationParams) (*EmployeePage, error) {
	cacheable := params.Offset == 0
	key := listCacheKey(filter, params)
	if cacheable {
		if page, ok := s.cache.Get(key); ok {
			return page, nil
		}
	}

	gen := s.cache.Generation()
	page, err := s.repo.ListEmployees(ctx, filter, params)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to retrieve employees", err)
	}

	if cacheable {
		s.cache.SetIfCurrent(key, page, gen)
	}
	s.logger.Debug().
		Int("count", len(page.Items)).
		Int("offset", params.Offset).
		Int("limit", params.Limit).
		Msg("Retrieved employees")
	return page, nil
}

// GetEmployee retrieves an employee by its ID
func (s *EmployeeService) GetEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	employee, err := s.repo.GetEmployeeByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			return nil, apperrors.NotFoundError("employee")
		}
		return nil, apperrors.DatabaseError("failed to retrieve employee", err)
	}
	return employee, nil
}

// CreateEmployee stores a manually registered employee.
func (s *EmployeeService) CreateEmployee(ctx context.Context, employee model.Employee) (*model.Employee, error) {
	employee.Name = strings.TrimSpace(employee.Name)
	if employee.Name == "" {
		return nil, apperrors.ValidationError("name is required")
	}
	if employee.ExternalID != nil && *employee.ExternalID <= 0 {
		return nil, apperrors.ValidationError("externalId must be a positive integer")
	}
	if employee.ID == uuid.Nil {
		employee.ID = uuid.New()
	}
	if strings.TrimSpace(employee.Position) == "" {
		employee.Position = model.DefaultPosition
	}

	if err := s.repo.CreateEmployee(ctx, employee); err != nil {
		if errors.Is(err, repository.ErrDuplicateExternal) {
			return nil, apperrors.AlreadyExistsError("employee with this external id")
		}
		return nil, apperrors.DatabaseError("failed to create employee", err)
	}
	s.Invalidate()

	s.logger.Info().
		Str("employee_id", employee.ID.String()).
		Str("name", employee.Name).
		Msg("Employee created")

	created, err := s.repo.GetEmployeeByID(ctx, employee.ID)
	if err != nil {
		return &employee, nil
	}
	return created, nil
}

// UpdateEmployee applies a partial update. An update with no fields is rejected.
func (s *EmployeeService) UpdateEmployee(ctx context.Context, id uuid.UUID, update model.EmployeeUpdate) (*model.Employee, error) {
	if update.Empty() {
		return nil, apperrors.BadRequestError("no fields provided to update")
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.ValidationError("name cannot be empty")
		}
		update.Name = &name
	}

	updated, err := s.repo.UpdateEmployee(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmployeeNotFound):
			return nil, apperrors.NotFoundError("employee")
		case errors.Is(err, repository.ErrNothingToUpdate):
			return nil, apperrors.BadRequestError("no fields provided to update")
		default:
			return nil, apperrors.DatabaseError("failed to update employee", err)
		}
	}
	s.Invalidate()

	s.logger.Info().Str("employee_id", id.String()).Msg("Employee updated")
	return updated, nil
}

// DeactivateEmployee is the soft delete: the row stays and is marked inactive.
func (s *EmployeeService) DeactivateEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	inactive := false
	return s.UpdateEmployee(ctx, id, model.EmployeeUpdate{IsActive: &inactive})
}

// SetProfileImage stores an uploaded image and points the employee at it.
func (s *EmployeeService) SetProfileImage(ctx context.Context, id uuid.UUID, filename string, content io.Reader) (*model.Employee, error) {
	if s.images == nil {
		return nil, apperrors.UnavailableError("image storage", nil)
	}
	if _, err := s.GetEmployee(ctx, id); err != nil {
		return nil, err
	}

	url, err := s.images.Save(ctx, id.String(), filename, content)
	if err != nil {
		if errors.Is(err, ErrUnsupportedImage) || errors.Is(err, ErrImageTooLarge) {
			return nil, apperrors.ValidationError(err.Error())
		}
		return nil, apperrors.InternalError("failed to store profile image", err)
	}

	return s.UpdateEmployee(ctx, id, model.EmployeeUpdate{ProfileImageURL: &url})
}
