package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/classroll/apiserver/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRecords(t *testing.T) (*Records, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRecords(sqlx.NewDb(db, "postgres")), mock
}

func TestTableQueries(t *testing.T) {
	records, _ := newMockRecords(t)

	assert.Equal(t,
		"INSERT INTO subjects (name, code, description) VALUES (:name, :code, :description) RETURNING *",
		records.Subjects.insertQuery,
	)
	assert.Equal(t,
		"UPDATE subjects SET name = :name, code = :code, description = :description, updated_at = NOW() WHERE id = :id RETURNING *",
		records.Subjects.updateQuery,
	)
}

func TestTableListIgnoresUnknownFilters(t *testing.T) {
	records, mock := newMockRecords(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students WHERE class_id = \$1`).
		WithArgs("4").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT \* FROM students WHERE class_id = \$1 ORDER BY last_name, first_name LIMIT 20 OFFSET 0`).
		WithArgs("4").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "first_name", "last_name", "email", "class_id", "status_id", "created_at", "updated_at",
		}).AddRow(1, "Ben", "Okafor", "", 4, nil, now, now))

	rows, total, err := records.Students.List(context.Background(), map[string]string{
		"class_id": "4",
		"password": "ignored",
	}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "Okafor", rows[0].LastName)
	require.NotNil(t, rows[0].ClassID)
	assert.EqualValues(t, 4, *rows[0].ClassID)
	assert.Nil(t, rows[0].StatusID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableGetNotFound(t *testing.T) {
	records, mock := newMockRecords(t)

	mock.ExpectQuery(`SELECT \* FROM grades WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := records.Grades.Get(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTableCreateScansReturnedRow(t *testing.T) {
	records, mock := newMockRecords(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO subjects`).
		WithArgs("Mathematics", "MATH", "").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "code", "description", "created_at", "updated_at",
		}).AddRow(12, "Mathematics", "MATH", "", now, now))

	subject, err := records.Subjects.Create(context.Background(), types.Subject{Name: "Mathematics", Code: "MATH"})
	require.NoError(t, err)
	assert.EqualValues(t, 12, subject.ID)
	assert.Equal(t, "MATH", subject.Code)
}

func TestDeleteActivityRemovesGradesFirst(t *testing.T) {
	records, mock := newMockRecords(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM grades WHERE activity_id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM activities WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, records.DeleteActivity(context.Background(), 5))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteActivityMissingRollsBack(t *testing.T) {
	records, mock := newMockRecords(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM grades`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM activities`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, records.DeleteActivity(context.Background(), 5), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableDeleteClass(t *testing.T) {
	records, mock := newMockRecords(t)

	mock.ExpectExec(`DELETE FROM classes WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM classes WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnError(&pq.Error{Code: "23503", Message: "update or delete on table \"activities\" violates foreign key constraint"})
	mock.ExpectExec(`DELETE FROM classes WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, records.Classes.Delete(context.Background(), 3))
	assert.ErrorIs(t, records.Classes.Delete(context.Background(), 4), ErrStillReferenced)
	assert.ErrorIs(t, records.Classes.Delete(context.Background(), 5), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAttendanceCommitsBatch(t *testing.T) {
	records, mock := newMockRecords(t)

	now := time.Now().UTC()
	cols := []string{"id", "student_id", "class_id", "date", "status", "remarks", "created_at", "updated_at"}
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO attendance .+ ON CONFLICT \(student_id, date\) DO UPDATE`).
		WithArgs(int64(1), int64(7), "2026-03-02", "present", "").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(10, 1, 7, "2026-03-02", "present", "", now, now))
	mock.ExpectQuery(`INSERT INTO attendance`).
		WithArgs(int64(2), int64(7), "2026-03-02", "late", "bus").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(11, 2, 7, "2026-03-02", "late", "bus", now, now))
	mock.ExpectCommit()

	day := types.NewDate(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	saved, err := records.UpsertAttendance(context.Background(), []types.Attendance{
		{StudentID: 1, ClassID: 7, Date: day, Status: "present"},
		{StudentID: 2, ClassID: 7, Date: day, Status: "late", Remarks: "bus"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.EqualValues(t, 10, saved[0].ID)
	assert.Equal(t, "late", saved[1].Status)
	assert.Equal(t, "2026-03-02", saved[1].Date.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAttendanceRollsBackOnFailure(t *testing.T) {
	records, mock := newMockRecords(t)

	now := time.Now().UTC()
	cols := []string{"id", "student_id", "class_id", "date", "status", "remarks", "created_at", "updated_at"}
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO attendance`).
		WithArgs(int64(1), int64(7), "2026-03-02", "present", "").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(10, 1, 7, "2026-03-02", "present", "", now, now))
	mock.ExpectQuery(`INSERT INTO attendance`).
		WithArgs(int64(99), int64(7), "2026-03-02", "absent", "").
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	day := types.NewDate(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	saved, err := records.UpsertAttendance(context.Background(), []types.Attendance{
		{StudentID: 1, ClassID: 7, Date: day, Status: "present"},
		{StudentID: 99, ClassID: 7, Date: day, Status: "absent"},
	})
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.Nil(t, saved)
	require.NoError(t, mock.ExpectationsWereMet())
}
