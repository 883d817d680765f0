package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/services"
	"github.com/classroll/apiserver/internal/store"
	"github.com/classroll/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// subjectTable keeps subjects in memory and remembers the last filters it
// was asked for.
type subjectTable struct {
	nextID      int64
	rows        map[int64]types.Subject
	lastFilters map[string]string
}

func (s *subjectTable) List(_ context.Context, filters map[string]string, offset, limit int) ([]types.Subject, int, error) {
	s.lastFilters = filters
	out := make([]types.Subject, 0, len(s.rows))
	for _, row := range s.rows {
		if code, ok := filters["code"]; ok && row.Code != code {
			continue
		}
		out = append(out, row)
	}
	return out, len(out), nil
}

func (s *subjectTable) Get(_ context.Context, id int64) (types.Subject, error) {
	row, ok := s.rows[id]
	if !ok {
		return types.Subject{}, store.ErrNotFound
	}
	return row, nil
}

func (s *subjectTable) Create(_ context.Context, item types.Subject) (types.Subject, error) {
	s.nextID++
	item.ID = s.nextID
	s.rows[item.ID] = item
	return item, nil
}

func (s *subjectTable) Update(_ context.Context, id int64, item types.Subject) (types.Subject, error) {
	if _, ok := s.rows[id]; !ok {
		return types.Subject{}, store.ErrNotFound
	}
	item.ID = id
	s.rows[id] = item
	return item, nil
}

func (s *subjectTable) Delete(_ context.Context, id int64) error {
	if _, ok := s.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

// subjectAPI mounts the subject routes for a principal with role.
func subjectAPI(t *testing.T, role string) (*testAPI, *subjectTable) {
	t.Helper()
	log := zaptest.NewLogger(t)
	table := &subjectTable{rows: make(map[int64]types.Subject)}
	svc := services.NewRecordService[types.Subject]("subject", table)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.Principal{UserID: 1, Email: "x@school.test", Role: role, System: types.SystemBoth}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	})
	r.Route("/subjects", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(svc, log), auth.ResourceSubjects, NewGuard(auth.DefaultPolicy(), log))
	})
	return &testAPI{router: r}, table
}

func TestRecordCRUD(t *testing.T) {
	api, table := subjectAPI(t, types.RoleAdmin)

	rec := api.do(t, http.MethodPost, "/subjects", "", types.Subject{Name: "Mathematics", Code: "MATH"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[types.Subject](t, rec)
	assert.EqualValues(t, 1, created.ID)

	rec = api.do(t, http.MethodPost, "/subjects", "", types.Subject{Name: "History"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Message, "code")

	rec = api.do(t, http.MethodGet, "/subjects?code=MATH&page=1&limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[ListResponse[types.Subject]](t, rec)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, map[string]string{"code": "MATH"}, table.lastFilters)

	rec = api.do(t, http.MethodPut, "/subjects/1", "", types.Subject{Name: "Maths", Code: "MATH"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Maths", decodeBody[types.Subject](t, rec).Name)

	rec = api.do(t, http.MethodGet, "/subjects/42", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ENotFound, decodeBody[ErrorResponse](t, rec).Error)

	rec = api.do(t, http.MethodDelete, "/subjects/1", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecordWriteRequiresRole(t *testing.T) {
	api, _ := subjectAPI(t, types.RoleTeacher)

	rec := api.do(t, http.MethodGet, "/subjects", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/subjects", "", types.Subject{Name: "Art", Code: "ART"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// attendanceAPI mounts every record route over a mocked database for a
// teacher with access to both systems.
func attendanceAPI(t *testing.T) (*testAPI, sqlmock.Sqlmock) {
	t.Helper()
	log := zaptest.NewLogger(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	records := services.NewRecordsService(store.NewRecords(sqlx.NewDb(db, "postgres")))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.Principal{UserID: 1, Email: "t@school.test", Role: types.RoleTeacher, System: types.SystemBoth}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	})
	RecordsRouter(r, records, NewGuard(auth.DefaultPolicy(), log), log)
	return &testAPI{router: r}, mock
}

func TestAttendanceBatchValidation(t *testing.T) {
	api, mock := attendanceAPI(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "no entries", body: map[string]any{}},
		{name: "empty entries", body: map[string]any{"entries": []any{}}},
		{name: "entry missing status", body: map[string]any{"entries": []any{
			map[string]any{"student_id": 1, "class_id": 7, "date": "2026-03-02", "status": "present"},
			map[string]any{"student_id": 2, "class_id": 7, "date": "2026-03-02"},
		}}},
		{name: "unknown status", body: map[string]any{"entries": []any{
			map[string]any{"student_id": 1, "class_id": 7, "date": "2026-03-02", "status": "asleep"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/attendance/batch", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, errs.EInvalid, decodeBody[ErrorResponse](t, rec).Error)
		})
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceBatchSaves(t *testing.T) {
	api, mock := attendanceAPI(t)

	now := time.Now().UTC()
	cols := []string{"id", "student_id", "class_id", "date", "status", "remarks", "created_at", "updated_at"}
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO attendance`).
		WithArgs(int64(1), int64(7), "2026-03-02", "present", "").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(10, 1, 7, "2026-03-02", "present", "", now, now))
	mock.ExpectQuery(`INSERT INTO attendance`).
		WithArgs(int64(2), int64(7), "2026-03-02", "absent", "sick").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(11, 2, 7, "2026-03-02", "absent", "sick", now, now))
	mock.ExpectCommit()

	rec := api.do(t, http.MethodPost, "/attendance/batch", "", map[string]any{"entries": []any{
		map[string]any{"student_id": 1, "class_id": 7, "date": "2026-03-02", "status": "present"},
		map[string]any{"student_id": 2, "class_id": 7, "date": "2026-03-02", "status": "absent", "remarks": "sick"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeBody[[]types.Attendance](t, rec)
	require.Len(t, saved, 2)
	assert.EqualValues(t, 11, saved[1].ID)
	assert.Equal(t, "2026-03-02", saved[1].Date.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
