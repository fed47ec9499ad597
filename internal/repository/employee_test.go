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

var employeeRowColumns = []string{"id", "external_id", "name", "department", "is_active", "position", "profile_image_url", "created_at"}

func setupEmployeeRepo(t testing.TB) (*sql.DB, sqlmock.Sqlmock, EmployeeRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewEmployeeRepository(db)
}

func TestBulkUpsertExternal_CountsInsertedAndMatched(t *testing.T) {
	db, mock, repo := setupEmployeeRepo(t)
	defer db.Close()

	batch := []model.ExternalEmployee{
		{ExternalID: 7, Name: "Ana", IsActive: true},
		{ExternalID: 8, Name: "Luis", IsActive: false, Department: "Ventas"},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`ON CONFLICT (external_id) DO UPDATE`))
	prep.ExpectQuery().
		WithArgs(sqlmock.AnyArg(), int64(7), "Ana", "Bodega", true, "sin asignar").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	prep.ExpectQuery().
		WithArgs(sqlmock.AnyArg(), int64(8), "Luis", "Ventas", false, "sin asignar").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
	mock.ExpectCommit()

	res, err := repo.BulkUpsertExternal(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, BulkResult{Inserted: 1, Matched: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertExternal_RollsBackOnError(t *testing.T) {
	db, mock, repo := setupEmployeeRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO employees`))
	prep.ExpectQuery().WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	res, err := repo.BulkUpsertExternal(context.Background(), []model.ExternalEmployee{{ExternalID: 1, Name: "X"}})
	assert.Error(t, err)
	assert.Equal(t, BulkResult{}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertExternal_EmptyBatch(t *testing.T) {
	db, mock, repo := setupEmployeeRepo(t)
	defer db.Close()

	res, err := repo.BulkUpsertExternal(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, BulkResult{}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertExternal_KeepsPositionOnConflict(t *testing.T) {
	db, mock, repo := setupEmployeeRepo(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SET name = EXCLUDED.name, is_active = EXCLUDED.is_active, department = EXCLUDED.department RETURNING (xmax = 0) AS inserted`)).
		WithArgs(sqlmock.AnyArg(), int64(7), "Ana María", "Bodega", true, "sin asignar").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))

	inserted, err := repo.UpsertExternal(context.Background(), model.ExternalEmployee{ExternalID: 7, Name: "Ana María", IsActive: true})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmployee_PartialFields(t *testing.T) {
	db, mock, repo := setupEmployeeRepo(t)
	defer db.Close()

	id := uuid.New()
	position := "Supervisor"
	active := false
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE employees SET is_active = $1, position = $2 WHERE id = $3 RETURNING`)).
		WithArgs(false, "Supervisor", id).
		WillReturnRows(sqlmock.NewRows(employeeRowColumns).AddRow(id.String(), int64(7), "Ana", "Bodega", false, "Supervisor", nil, now))

	e, err := repo.UpdateEmployee(context.Background(), id, model.EmployeeUpdate{Position: &position, IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, "Supervisor", e.Position)
	require.NotNil(t, e.ExternalID)
	assert.Equal(t, int64(7), *e.ExternalID)
	assert.Nil(t, e.ProfileImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEmployee_NothingToUpdate(t *testing.T) {
	db, _, repo := setupEmployeeRepo(t)
	defer db.Close()

	_, err := repo.UpdateEmployee(context.Background(), uuid.New(), model.EmployeeUpdate{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)
}

func TestUpdateEmployee_NotFound(t *testing.T) {
	db, mock, repo := setupEmployeeRepo(t)
	defer db.Close()

	name := "Ana"
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE employees SET name = $1`)).WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateEmployee(context.Background(), uuid.New(), model.EmployeeUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrEmployeeNotFound)
}

func TestListEmployees_FiltersAndSort(t *testing.T) {
	db, mock, repo := setupEmployeeRepo(t)
	defer db.Close()

	active := true
	now := time.Now().UTC()
	image := "/uploads/a.png"

	mock.ExpectQuery(regexp.QuoteMeta(`FROM employees WHERE department = $1 AND is_active = $2 ORDER BY name ASC, id OFFSET $3 LIMIT $4`)).
		WithArgs("Bodega", true, 25, 25).
		WillReturnRows(sqlmock.NewRows(employeeRowColumns).
			AddRow(uuid.New().String(), nil, "Ana", "Bodega", true, "sin asignar", image, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM employees WHERE department = $1 AND is_active = $2`)).
		WithArgs("Bodega", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(26))

	res, err := repo.ListEmployees(context.Background(),
		model.EmployeeFilter{Department: "Bodega", IsActive: &active, SortBy: "name", SortDir: "asc"},
		PaginationParams{Offset: 25, Limit: 25})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Nil(t, res.Items[0].ExternalID)
	require.NotNil(t, res.Items[0].ProfileImageURL)
	assert.Equal(t, image, *res.Items[0].ProfileImageURL)
	assert.Equal(t, 26, res.TotalCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEmployees_UnknownSortFallsBackToCreatedAt(t *testing.T) {
	db, mock, repo := setupEmployeeRepo(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC, id`)).
		WillReturnRows(sqlmock.NewRows(employeeRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM employees`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := repo.ListEmployees(context.Background(), model.EmployeeFilter{SortBy: "salary; DROP TABLE"}, PaginationParams{Limit: 10})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
