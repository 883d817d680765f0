package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxUploadMemory is how much of a multipart upload is buffered in memory
// before spilling to temporary files.
const maxUploadMemory = 32 << 20

var errUnsatisfiableRange = errors.New("unsatisfiable range")

// VideoHandler streams and manages recorded lessons.
type VideoHandler struct {
	videos *services.VideoService
	log    *zap.Logger
}

func NewVideoHandler(videos *services.VideoService, log *zap.Logger) *VideoHandler {
	return &VideoHandler{videos: videos, log: log}
}

// VideoPlayRouter registers the streaming route. It must be mounted outside
// any request timeout.
func VideoPlayRouter(r chi.Router, h *VideoHandler, guard Guard) {
	r.With(guard(auth.ResourceVideos, auth.ActionRead)).Get("/play-video/{teacherEmail}/{filename}", h.Play)
}

// VideoRouter registers the listing and management routes.
func VideoRouter(r chi.Router, h *VideoHandler, guard Guard) {
	r.With(guard(auth.ResourceVideos, auth.ActionRead)).Get("/{teacherEmail}", h.List)
	r.With(guard(auth.ResourceVideos, auth.ActionWrite)).Post("/{teacherEmail}", h.Upload)
	r.With(guard(auth.ResourceVideos, auth.ActionWrite)).Delete("/{teacherEmail}/{filename}", h.Delete)
}

// byteRange is an inclusive span of a file.
type byteRange struct {
	start, end int64
}

func (b byteRange) length() int64 {
	return b.end - b.start + 1
}

// parseRange interprets a Range header against an object of size bytes.
// It returns nil when the whole object should be served: no header, a
// header in a unit other than bytes, or more than one range.
func parseRange(header string, size int64) (*byteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, nil
	}
	if strings.Contains(spec, ",") {
		return nil, nil
	}

	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return nil, errUnsatisfiableRange
	}

	if first == "" {
		// Suffix range: the final n bytes.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 || size == 0 {
			return nil, errUnsatisfiableRange
		}
		if n > size {
			n = size
		}
		return &byteRange{start: size - n, end: size - 1}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 || start >= size {
		return nil, errUnsatisfiableRange
	}
	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return nil, errUnsatisfiableRange
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return &byteRange{start: start, end: end}, nil
}

// Play serves a recording with HTTP range support so players can seek.
func (h *VideoHandler) Play(w http.ResponseWriter, r *http.Request) {
	teacherEmail := chi.URLParam(r, "teacherEmail")
	filename := chi.URLParam(r, "filename")

	info, err := h.videos.Stat(r.Context(), teacherEmail, filename)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	rng, err := parseRange(r.Header.Get("Range"), info.Size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size))
		writeError(w, h.log, errs.New(errs.ERangeNotSatisfiable, "videos.play", "requested range not satisfiable"))
		return
	}

	status := http.StatusOK
	span := byteRange{start: 0, end: info.Size - 1}
	if rng != nil {
		status = http.StatusPartialContent
		span = *rng
	}

	var body io.ReadCloser
	if span.length() > 0 {
		body, err = h.videos.Open(r.Context(), teacherEmail, filename, span.start, span.length())
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		defer body.Close()
	}

	// Recordings may take longer than the server write timeout to stream.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.Warn("failed to clear write deadline", zap.Error(err))
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(max(span.length(), 0), 10))
	if status == http.StatusPartialContent {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", span.start, span.end, info.Size))
	}
	w.WriteHeader(status)

	if body == nil || r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		h.log.Debug("video stream interrupted",
			zap.String("teacher", teacherEmail),
			zap.String("filename", filename),
			zap.Error(err),
		)
	}
}

// List returns a teacher's recordings.
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videos.List(r.Context(), chi.URLParam(r, "teacherEmail"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// Upload stores the multipart "file" field as a recording of teacherEmail.
func (h *VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "videos.upload"

	p, err := principal(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	teacherEmail := chi.URLParam(r, "teacherEmail")
	if !services.CanWrite(p, teacherEmail) {
		writeError(w, h.log, errs.Forbidden(op, "teachers can only manage their own videos"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, h.log, errs.Invalid(op, "invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.log, errs.Invalid(op, "file is required"))
		return
	}
	defer file.Close()

	video, err := h.videos.Upload(
		r.Context(),
		teacherEmail,
		header.Filename,
		file,
		header.Size,
		header.Header.Get("Content-Type"),
	)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, video)
}

func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	teacherEmail := chi.URLParam(r, "teacherEmail")
	if !services.CanWrite(p, teacherEmail) {
		writeError(w, h.log, errs.Forbidden("videos.delete", "teachers can only manage their own videos"))
		return
	}

	if err := h.videos.Delete(r.Context(), teacherEmail, chi.URLParam(r, "filename")); err != nil {
		writeError(w, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
