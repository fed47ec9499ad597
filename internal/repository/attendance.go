package repository

import (
	"attendance-sync-api/internal/model"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxExportRows bounds a single export query.
const MaxExportRows = 100000

// AttendanceRepository is an interface for interacting with attendance data.
type AttendanceRepository interface {
	AttendanceWriter
	BulkAttendanceWriter
	ListAttendances(ctx context.Context, filter model.AttendanceFilter, params PaginationParams) (*PaginatedResult[model.AttendanceView], error)
	ExportAttendances(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceView, error)
	ShiftAttendanceTimes(ctx context.Context, offset time.Duration, dryRun bool) (int64, error)
}

type attendanceRepository struct {
	DB *sql.DB
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(db *sql.DB) AttendanceRepository {
	return &attendanceRepository{DB: db}
}

const insertAttendanceQuery = `
		INSERT INTO attendances (id, machine_number, user_id, attendance_time, access_mode, attendance_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (machine_number, user_id, attendance_time) DO NOTHING`

// attendanceViewSelect joins the employee by external id. Unknown users show
// their raw id as name and the default position.
const attendanceViewSelect = `
		SELECT a.id, a.machine_number, a.user_id, a.attendance_time, a.access_mode, a.attendance_status, a.created_at,
			COALESCE(e.name, a.user_id::text), COALESCE(e.position, 'sin asignar')
		FROM attendances a
		LEFT JOIN employees e ON e.external_id = a.user_id`

func attendanceArgs(a model.Attendance) []interface{} {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return []interface{}{id, a.MachineNumber, a.UserID, a.AttendanceTime.UTC(), a.AccessMode, a.AttendanceStatus}
}

func attendanceWhere(filter model.AttendanceFilter) *whereClause {
	where := &whereClause{}
	if filter.UserID != nil {
		where.add("a.user_id = ?", *filter.UserID)
	}
	if filter.MachineNumber != nil {
		where.add("a.machine_number = ?", *filter.MachineNumber)
	}
	if filter.From != nil {
		where.add("a.attendance_time >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		where.add("a.attendance_time <= ?", filter.To.UTC())
	}
	return where
}

func (r *attendanceRepository) queryViews(ctx context.Context, query string, args ...interface{}) ([]model.AttendanceView, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	views := []model.AttendanceView{}
	for rows.Next() {
		var v model.AttendanceView
		if err := rows.Scan(&v.ID, &v.MachineNumber, &v.UserID, &v.AttendanceTime, &v.AccessMode,
			&v.AttendanceStatus, &v.CreatedAt, &v.UserName, &v.Position); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return views, nil
}

// InsertIfNotExists stores a punch unless its dedup key is already present.
func (r *attendanceRepository) InsertIfNotExists(ctx context.Context, a model.Attendance) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.DB.ExecContext(ctx, insertAttendanceQuery, attendanceArgs(a)...)
	if err != nil {
		return false, fmt.Errorf("failed to insert attendance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// InsertManyIfNotExists stores a batch of punches in one transaction.
func (r *attendanceRepository) InsertManyIfNotExists(ctx context.Context, batch []model.Attendance) (BulkResult, error) {
	var res BulkResult
	if len(batch) == 0 {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin attendance insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertAttendanceQuery)
	if err != nil {
		return res, fmt.Errorf("failed to prepare attendance insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range batch {
		result, err := stmt.ExecContext(ctx, attendanceArgs(a)...)
		if err != nil {
			return BulkResult{}, fmt.Errorf("failed to insert attendance: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return BulkResult{}, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n > 0 {
			res.Inserted++
		} else {
			res.Matched++
		}
	}

	if err := tx.Commit(); err != nil {
		return BulkResult{}, fmt.Errorf("failed to commit attendance insert: %w", err)
	}
	return res, nil
}

// ListAttendances returns a filtered page ordered by attendance time.
func (r *attendanceRepository) ListAttendances(ctx context.Context, filter model.AttendanceFilter, params PaginationParams) (*PaginatedResult[model.AttendanceView], error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	where := attendanceWhere(filter)
	query := attendanceViewSelect + where.String() +
		` ORDER BY a.attendance_time ` + sortDirection(filter.SortDir) + `, a.id` +
		` OFFSET ` + where.next(1) + ` LIMIT ` + where.next(2)

	views, err := r.queryViews(ctx, query, append(where.args, params.Offset, params.Limit)...)
	if err != nil {
		return nil, err
	}

	var totalCount int
	countQuery := `SELECT COUNT(*) FROM attendances a` + where.String()
	if err := r.DB.QueryRowContext(ctx, countQuery, where.args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count of attendances: %w", err)
	}

	return &PaginatedResult[model.AttendanceView]{Items: views, TotalCount: totalCount}, nil
}

// ExportAttendances returns every record matching filter, up to MaxExportRows.
func (r *attendanceRepository) ExportAttendances(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceView, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	where := attendanceWhere(filter)
	query := attendanceViewSelect + where.String() +
		` ORDER BY a.attendance_time ` + sortDirection(filter.SortDir) + `, a.id LIMIT ` + where.next(1)

	return r.queryViews(ctx, query, append(where.args, MaxExportRows)...)
}

// ShiftAttendanceTimes moves every stored attendance time back by offset.
// With dryRun it only counts the rows that would change.
func (r *attendanceRepository) ShiftAttendanceTimes(ctx context.Context, offset time.Duration, dryRun bool) (int64, error) {
	if dryRun {
		var n int64
		if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendances`).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count attendances: %w", err)
		}
		return n, nil
	}

	result, err := r.DB.ExecContext(ctx,
		`UPDATE attendances SET attendance_time = attendance_time - make_interval(secs => $1)`,
		offset.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to shift attendance times: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
