package store

import (
	"context"

	"github.com/classroll/apiserver/types"
	"github.com/jmoiron/sqlx"
)

// Records groups the record tables.
type Records struct {
	db *sqlx.DB

	SchoolYears     *Table[types.SchoolYear, *types.SchoolYear]
	Subjects        *Table[types.Subject, *types.Subject]
	Teachers        *Table[types.Teacher, *types.Teacher]
	StudentStatuses *Table[types.StudentStatus, *types.StudentStatus]
	Classes         *Table[types.Class, *types.Class]
	Students        *Table[types.Student, *types.Student]
	Activities      *Table[types.Activity, *types.Activity]
	Grades          *Table[types.Grade, *types.Grade]
	Evaluations     *Table[types.Evaluation, *types.Evaluation]
	Attendance      *Table[types.Attendance, *types.Attendance]
}

func NewRecords(db *sqlx.DB) *Records {
	return &Records{
		db: db,
		SchoolYears: NewTable[types.SchoolYear](db, TableSpec{
			Name:    "school_years",
			Columns: []string{"label", "starts_on", "ends_on", "is_current"},
			Filters: map[string]string{"is_current": "is_current", "label": "label"},
			OrderBy: "starts_on DESC",
		}),
		Subjects: NewTable[types.Subject](db, TableSpec{
			Name:    "subjects",
			Columns: []string{"name", "code", "description"},
			Filters: map[string]string{"code": "code"},
			OrderBy: "name",
		}),
		Teachers: NewTable[types.Teacher](db, TableSpec{
			Name:    "teachers",
			Columns: []string{"email", "name", "subject_id"},
			Filters: map[string]string{"email": "email", "subject_id": "subject_id"},
			OrderBy: "name",
		}),
		StudentStatuses: NewTable[types.StudentStatus](db, TableSpec{
			Name:    "student_statuses",
			Columns: []string{"name", "description"},
			OrderBy: "name",
		}),
		Classes: NewTable[types.Class](db, TableSpec{
			Name:    "classes",
			Columns: []string{"name", "grade_level", "school_year_id", "teacher_id"},
			Filters: map[string]string{
				"school_year_id": "school_year_id",
				"teacher_id":     "teacher_id",
				"grade_level":    "grade_level",
			},
			OrderBy: "grade_level, name",
		}),
		Students: NewTable[types.Student](db, TableSpec{
			Name:    "students",
			Columns: []string{"first_name", "last_name", "email", "class_id", "status_id"},
			Filters: map[string]string{"class_id": "class_id", "status_id": "status_id"},
			OrderBy: "last_name, first_name",
		}),
		Activities: NewTable[types.Activity](db, TableSpec{
			Name:    "activities",
			Columns: []string{"class_id", "subject_id", "title", "kind", "max_score", "held_on"},
			Filters: map[string]string{"class_id": "class_id", "subject_id": "subject_id", "kind": "kind"},
			OrderBy: "held_on DESC, id",
		}),
		Grades: NewTable[types.Grade](db, TableSpec{
			Name:    "grades",
			Columns: []string{"student_id", "activity_id", "subject_id", "score", "term", "remarks"},
			Filters: map[string]string{
				"student_id":  "student_id",
				"activity_id": "activity_id",
				"subject_id":  "subject_id",
				"term":        "term",
			},
		}),
		Evaluations: NewTable[types.Evaluation](db, TableSpec{
			Name:    "evaluations",
			Columns: []string{"student_id", "teacher_id", "subject_id", "criteria", "rating", "comments", "evaluated_on"},
			Filters: map[string]string{
				"student_id": "student_id",
				"teacher_id": "teacher_id",
				"subject_id": "subject_id",
			},
			OrderBy: "evaluated_on DESC, id",
		}),
		Attendance: NewTable[types.Attendance](db, TableSpec{
			Name:    "attendance",
			Columns: []string{"student_id", "class_id", "date", "status", "remarks"},
			Filters: map[string]string{
				"student_id": "student_id",
				"class_id":   "class_id",
				"date":       "date",
				"status":     "status",
			},
			OrderBy: "date DESC, student_id",
		}),
	}
}

// DeleteActivity removes an activity together with the grades recorded
// against it.
func (r *Records) DeleteActivity(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM grades WHERE activity_id = $1`, id); err != nil {
		return translate(err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return translateDelete(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

const upsertAttendanceQuery = `
	INSERT INTO attendance (student_id, class_id, date, status, remarks)
	VALUES (:student_id, :class_id, :date, :status, :remarks)
	ON CONFLICT (student_id, date) DO UPDATE
	SET class_id = EXCLUDED.class_id,
		status = EXCLUDED.status,
		remarks = EXCLUDED.remarks,
		updated_at = NOW()
	RETURNING *`

// UpsertAttendance writes a batch of attendance entries in one transaction.
// An entry for a student and date that already exists is overwritten.
func (r *Records) UpsertAttendance(ctx context.Context, entries []types.Attendance) ([]types.Attendance, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	saved := make([]types.Attendance, 0, len(entries))
	for _, entry := range entries {
		row, err := namedReturning[types.Attendance](ctx, tx, upsertAttendanceQuery, entry)
		if err != nil {
			return nil, err
		}
		saved = append(saved, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return saved, nil
}
