package services

import (
	"context"
	"fmt"

	"github.com/classroll/apiserver/internal/store"
	"github.com/classroll/apiserver/types"
)

// RecordRepository is the CRUD surface shared by every record table.
type RecordRepository[T any] interface {
	List(ctx context.Context, filters map[string]string, offset, limit int) ([]T, int, error)
	Get(ctx context.Context, id int64) (T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id int64, item T) (T, error)
	Delete(ctx context.Context, id int64) error
}

// RecordService exposes one record table.
type RecordService[T any] struct {
	name   string
	repo   RecordRepository[T]
	delete func(ctx context.Context, id int64) error
}

func NewRecordService[T any](name string, repo RecordRepository[T]) *RecordService[T] {
	return &RecordService[T]{name: name, repo: repo, delete: repo.Delete}
}

// Name is the singular noun used in error messages.
func (s *RecordService[T]) Name() string {
	return s.name
}

func (s *RecordService[T]) List(ctx context.Context, filters map[string]string, offset, limit int) ([]T, int, error) {
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.repo.List(ctx, filters, offset, pageLimit(limit))
	if err != nil {
		return nil, 0, storeError(err, s.name+".list", s.name)
	}
	return items, total, nil
}

func (s *RecordService[T]) Get(ctx context.Context, id int64) (T, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		var zero T
		return zero, storeError(err, s.name+".get", fmt.Sprintf("%s %d", s.name, id))
	}
	return item, nil
}

func (s *RecordService[T]) Create(ctx context.Context, item T) (T, error) {
	created, err := s.repo.Create(ctx, item)
	if err != nil {
		var zero T
		return zero, storeError(err, s.name+".create", s.name)
	}
	return created, nil
}

func (s *RecordService[T]) Update(ctx context.Context, id int64, item T) (T, error) {
	updated, err := s.repo.Update(ctx, id, item)
	if err != nil {
		var zero T
		return zero, storeError(err, s.name+".update", fmt.Sprintf("%s %d", s.name, id))
	}
	return updated, nil
}

func (s *RecordService[T]) Delete(ctx context.Context, id int64) error {
	if err := s.delete(ctx, id); err != nil {
		return storeError(err, s.name+".delete", fmt.Sprintf("%s %d", s.name, id))
	}
	return nil
}

// AttendanceWriter records attendance in bulk.
type AttendanceWriter interface {
	UpsertAttendance(ctx context.Context, entries []types.Attendance) ([]types.Attendance, error)
}

// RecordsService groups the record resources.
type RecordsService struct {
	SchoolYears     *RecordService[types.SchoolYear]
	Subjects        *RecordService[types.Subject]
	Teachers        *RecordService[types.Teacher]
	StudentStatuses *RecordService[types.StudentStatus]
	Classes         *RecordService[types.Class]
	Students        *RecordService[types.Student]
	Activities      *RecordService[types.Activity]
	Grades          *RecordService[types.Grade]
	Evaluations     *RecordService[types.Evaluation]
	Attendance      *RecordService[types.Attendance]

	attendance AttendanceWriter
}

func NewRecordsService(records *store.Records) *RecordsService {
	activities := NewRecordService[types.Activity]("activity", records.Activities)
	// Grades recorded against an activity go with it.
	activities.delete = records.DeleteActivity

	return &RecordsService{
		SchoolYears:     NewRecordService[types.SchoolYear]("school year", records.SchoolYears),
		Subjects:        NewRecordService[types.Subject]("subject", records.Subjects),
		Teachers:        NewRecordService[types.Teacher]("teacher", records.Teachers),
		StudentStatuses: NewRecordService[types.StudentStatus]("student status", records.StudentStatuses),
		Classes:         NewRecordService[types.Class]("class", records.Classes),
		Students:        NewRecordService[types.Student]("student", records.Students),
		Activities:      activities,
		Grades:          NewRecordService[types.Grade]("grade", records.Grades),
		Evaluations:     NewRecordService[types.Evaluation]("evaluation", records.Evaluations),
		Attendance:      NewRecordService[types.Attendance]("attendance", records.Attendance),
		attendance:      records,
	}
}

// RecordAttendance upserts a batch of attendance entries atomically.
func (s *RecordsService) RecordAttendance(ctx context.Context, entries []types.Attendance) ([]types.Attendance, error) {
	saved, err := s.attendance.UpsertAttendance(ctx, entries)
	if err != nil {
		return nil, storeError(err, "attendance.batch", "attendance")
	}
	return saved, nil
}
