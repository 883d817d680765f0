package handlers

import (
	"net/http"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/services"
	"github.com/classroll/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RecordHandler provides CRUD endpoints for one record resource.
type RecordHandler[T any] struct {
	svc *services.RecordService[T]
	log *zap.Logger
}

func NewRecordHandler[T any](svc *services.RecordService[T], log *zap.Logger) *RecordHandler[T] {
	return &RecordHandler[T]{svc: svc, log: log}
}

// RecordRouter registers the CRUD routes of a record resource. The caller
// authenticates requests.
func RecordRouter[T any](r chi.Router, h *RecordHandler[T], resource auth.Resource, guard Guard) {
	read := guard(resource, auth.ActionRead)
	write := guard(resource, auth.ActionWrite)

	r.With(read).Get("/", h.List)
	r.With(write).Post("/", h.Create)
	r.Route("/{recordID}", func(r chi.Router) {
		r.With(read).Get("/", h.Get)
		r.With(write).Put("/", h.Update)
		r.With(write).Delete("/", h.Delete)
	})
}

var paginationParams = map[string]bool{"page": true, "limit": true, "per_page": true}

// List filters by any query parameter the resource allows; others are
// ignored.
func (h *RecordHandler[T]) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	filters := make(map[string]string)
	for key, values := range r.URL.Query() {
		if paginationParams[key] || len(values) == 0 || values[0] == "" {
			continue
		}
		filters[key] = values[0]
	}

	items, total, err := h.svc.List(r.Context(), filters, offset, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[T]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *RecordHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "recordID")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	item, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *RecordHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	var item T
	if err := decodeAndValidate(w, r, &item); err != nil {
		writeError(w, h.log, err)
		return
	}

	created, err := h.svc.Create(r.Context(), item)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *RecordHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "recordID")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var item T
	if err := decodeAndValidate(w, r, &item); err != nil {
		writeError(w, h.log, err)
		return
	}

	updated, err := h.svc.Update(r.Context(), id, item)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *RecordHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "recordID")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AttendanceBatchRequest records attendance for many students at once.
type AttendanceBatchRequest struct {
	Entries []types.Attendance `json:"entries" validate:"required,min=1,max=500,dive"`
}

// AttendanceBatch returns a handler that upserts attendance entries in one
// transaction.
func AttendanceBatch(records *services.RecordsService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AttendanceBatchRequest
		if err := decodeAndValidate(w, r, &req); err != nil {
			writeError(w, log, err)
			return
		}

		saved, err := records.RecordAttendance(r.Context(), req.Entries)
		if err != nil {
			writeError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, saved)
	}
}

// RecordsRouter mounts every record resource on r.
func RecordsRouter(r chi.Router, records *services.RecordsService, guard Guard, log *zap.Logger) {
	r.Route("/school-years", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(records.SchoolYears, log), auth.ResourceSchoolYears, guard)
	})
	r.Route("/subjects", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(records.Subjects, log), auth.ResourceSubjects, guard)
	})
	r.Route("/teachers", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(records.Teachers, log), auth.ResourceTeachers, guard)
	})
	r.Route("/student-status", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(records.StudentStatuses, log), auth.ResourceStudentStatus, guard)
	})
	r.Route("/classes", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(records.Classes, log), auth.ResourceClasses, guard)
	})
	r.Route("/students", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(records.Students, log), auth.ResourceStudents, guard)
	})
	r.Route("/activities", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(records.Activities, log), auth.ResourceActivities, guard)
	})
	r.Route("/grades", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(records.Grades, log), auth.ResourceGrades, guard)
	})
	r.Route("/evaluations", func(r chi.Router) {
		RecordRouter(r, NewRecordHandler(records.Evaluations, log), auth.ResourceEvaluations, guard)
	})
	r.Route("/attendance", func(r chi.Router) {
		r.With(guard(auth.ResourceAttendance, auth.ActionWrite)).Post("/batch", AttendanceBatch(records, log))
		RecordRouter(r, NewRecordHandler(records.Attendance, log), auth.ResourceAttendance, guard)
	})
}
