package repository

import (
	"attendance-sync-api/internal/model"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EmployeeRepository is an interface for interacting with employee data.
type EmployeeRepository interface {
	EmployeeWriter
	BulkEmployeeWriter
	CreateEmployee(ctx context.Context, employee model.Employee) error
	GetEmployeeByID(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	ListEmployees(ctx context.Context, filter model.EmployeeFilter, params PaginationParams) (*PaginatedResult[model.Employee], error)
	UpdateEmployee(ctx context.Context, id uuid.UUID, update model.EmployeeUpdate) (*model.Employee, error)
}

type employeeRepository struct {
	DB *sql.DB
}

// NewEmployeeRepository creates a new EmployeeRepository.
func NewEmployeeRepository(db *sql.DB) EmployeeRepository {
	return &employeeRepository{DB: db}
}

const employeeColumns = `id, external_id, name, department, is_active, position, profile_image_url, created_at`

// upsertEmployeeQuery keeps position, profile image and created_at of existing rows.
const upsertEmployeeQuery = `
		INSERT INTO employees (id, external_id, name, department, is_active, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO UPDATE
		SET name = EXCLUDED.name, is_active = EXCLUDED.is_active, department = EXCLUDED.department
		RETURNING (xmax = 0) AS inserted`

var employeeSortColumns = map[string]string{
	"name":       "name",
	"department": "department",
	"createdAt":  "created_at",
}

func scanEmployee(row interface{ Scan(...interface{}) error }) (model.Employee, error) {
	var (
		e          model.Employee
		externalID sql.NullInt64
		imageURL   sql.NullString
	)
	if err := row.Scan(&e.ID, &externalID, &e.Name, &e.Department, &e.IsActive, &e.Position, &imageURL, &e.CreatedAt); err != nil {
		return e, err
	}
	if externalID.Valid {
		e.ExternalID = &externalID.Int64
	}
	if imageURL.Valid {
		e.ProfileImageURL = &imageURL.String
	}
	return e, nil
}

func rosterDepartment(e model.ExternalEmployee) string {
	if strings.TrimSpace(e.Department) == "" {
		return model.DefaultSyncDepartment
	}
	return e.Department
}

// CreateEmployee adds a new employee to the database.
func (r *employeeRepository) CreateEmployee(ctx context.Context, employee model.Employee) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if employee.Position == "" {
		employee.Position = model.DefaultPosition
	}

	query := `
		INSERT INTO employees (id, external_id, name, department, is_active, position, profile_image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.DB.ExecContext(ctx, query,
		employee.ID,
		employee.ExternalID,
		employee.Name,
		employee.Department,
		employee.IsActive,
		employee.Position,
		employee.ProfileImageURL,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateExternal
		}
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// GetEmployeeByID retrieves a single employee by its ID.
func (r *employeeRepository) GetEmployeeByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	e, err := scanEmployee(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee by ID: %w", err)
	}
	return &e, nil
}

// ListEmployees returns a filtered, ordered page of employees.
func (r *employeeRepository) ListEmployees(ctx context.Context, filter model.EmployeeFilter, params PaginationParams) (*PaginatedResult[model.Employee], error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var where whereClause
	if filter.Department != "" {
		where.add("department = ?", filter.Department)
	}
	if filter.IsActive != nil {
		where.add("is_active = ?", *filter.IsActive)
	}
	if filter.Position != "" {
		where.add("position = ?", filter.Position)
	}

	sortColumn, ok := employeeSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}

	query := `SELECT ` + employeeColumns + ` FROM employees` + where.String() +
		` ORDER BY ` + sortColumn + ` ` + sortDirection(filter.SortDir) + `, id` +
		` OFFSET ` + where.next(1) + ` LIMIT ` + where.next(2)

	rows, err := r.DB.QueryContext(ctx, query, append(where.args, params.Offset, params.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	employees := []model.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	var totalCount int
	countQuery := `SELECT COUNT(*) FROM employees` + where.String()
	if err := r.DB.QueryRowContext(ctx, countQuery, where.args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count of employees: %w", err)
	}

	return &PaginatedResult[model.Employee]{Items: employees, TotalCount: totalCount}, nil
}

// UpdateEmployee applies the non-nil fields of update and returns the stored row.
func (r *employeeRepository) UpdateEmployee(ctx context.Context, id uuid.UUID, update model.EmployeeUpdate) (*model.Employee, error) {
	if update.Empty() {
		return nil, ErrNothingToUpdate
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		sets []string
		args []interface{}
	)
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		set("name", *update.Name)
	}
	if update.Department != nil {
		set("department", *update.Department)
	}
	if update.IsActive != nil {
		set("is_active", *update.IsActive)
	}
	if update.Position != nil {
		set("position", *update.Position)
	}
	if update.ProfileImageURL != nil {
		set("profile_image_url", *update.ProfileImageURL)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE employees SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), employeeColumns)

	e, err := scanEmployee(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to update employee: %w", err)
	}
	return &e, nil
}

// UpsertExternal inserts or refreshes one roster record keyed by external id.
func (r *employeeRepository) UpsertExternal(ctx context.Context, e model.ExternalEmployee) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var inserted bool
	err := r.DB.QueryRowContext(ctx, upsertEmployeeQuery,
		uuid.New(), e.ExternalID, e.Name, rosterDepartment(e), e.IsActive, model.DefaultPosition,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert employee %d: %w", e.ExternalID, err)
	}
	return inserted, nil
}

// BulkUpsertExternal upserts a batch inside one transaction. Rows are applied
// in order, so a repeated external id in the same batch updates the earlier one.
func (r *employeeRepository) BulkUpsertExternal(ctx context.Context, batch []model.ExternalEmployee) (BulkResult, error) {
	var res BulkResult
	if len(batch) == 0 {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin employee upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertEmployeeQuery)
	if err != nil {
		return res, fmt.Errorf("failed to prepare employee upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		var inserted bool
		if err := stmt.QueryRowContext(ctx,
			uuid.New(), e.ExternalID, e.Name, rosterDepartment(e), e.IsActive, model.DefaultPosition,
		).Scan(&inserted); err != nil {
			return BulkResult{}, fmt.Errorf("failed to upsert employee %d: %w", e.ExternalID, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Matched++
		}
	}

	if err := tx.Commit(); err != nil {
		return BulkResult{}, fmt.Errorf("failed to commit employee upsert: %w", err)
	}
	return res, nil
}
