package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"attendance-sync-api/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Custom errors for better error handling
var (
	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrDuplicateExternal = errors.New("employee with this external id already exists")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrDuplicateDevice   = errors.New("device with this ip, port and machine number already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("user with this email already exists")
	ErrNothingToUpdate   = errors.New("no fields provided to update")
)

const (
	uniqueViolationCode   = "23505"
	uniqueViolationString = "duplicate key value violates unique constraint"
)

// PaginationParams holds pagination parameters for repository queries
type PaginationParams struct {
	Offset int
	Limit  int
}

// PaginatedResult holds paginated query results
type PaginatedResult[T any] struct {
	Items      []T
	TotalCount int
}

// BulkResult reports how a batch write was absorbed by the store.
// Inserted rows are new; Matched rows already existed under the same key.
type BulkResult struct {
	Inserted int
	Matched  int
}

// Add accumulates another batch result.
func (b *BulkResult) Add(o BulkResult) {
	b.Inserted += o.Inserted
	b.Matched += o.Matched
}

// EmployeeWriter upserts roster records one at a time.
type EmployeeWriter interface {
	UpsertExternal(ctx context.Context, e model.ExternalEmployee) (inserted bool, err error)
}

// BulkEmployeeWriter upserts roster records in batches.
type BulkEmployeeWriter interface {
	BulkUpsertExternal(ctx context.Context, batch []model.ExternalEmployee) (BulkResult, error)
}

// AttendanceWriter stores punches one at a time, ignoring known keys.
type AttendanceWriter interface {
	InsertIfNotExists(ctx context.Context, a model.Attendance) (inserted bool, err error)
}

// BulkAttendanceWriter stores punches in batches, ignoring known keys.
type BulkAttendanceWriter interface {
	InsertManyIfNotExists(ctx context.Context, batch []model.Attendance) (BulkResult, error)
}

// isUniqueViolation recognises duplicate-key errors from either Postgres driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return strings.Contains(err.Error(), uniqueViolationString)
}

// whereClause collects AND-ed conditions with numbered placeholders.
type whereClause struct {
	conds []string
	args  []interface{}
}

// add appends a condition; every "?" in cond becomes the next placeholder.
func (w *whereClause) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1))
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// next returns the placeholder that follows the collected arguments.
func (w *whereClause) next(offset int) string {
	return fmt.Sprintf("$%d", len(w.args)+offset)
}

func sortDirection(dir string) string {
	if strings.EqualFold(dir, "asc") {
		return "ASC"
	}
	return "DESC"
}
