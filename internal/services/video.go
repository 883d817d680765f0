package services

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/storage"
	"github.com/classroll/apiserver/types"
	"go.uber.org/zap"
)

// VideoService stores teachers' recordings under "<teacher email>/<filename>".
type VideoService struct {
	storage *storage.Storage
	log     *zap.Logger
}

func NewVideoService(storage *storage.Storage, log *zap.Logger) *VideoService {
	return &VideoService{storage: storage, log: log}
}

func validSegment(s string) bool {
	return s != "" && s != "." && !strings.Contains(s, "..") && !strings.ContainsAny(s, `/\`)
}

// ObjectKey builds the storage key for a recording.
func ObjectKey(teacherEmail, filename string) (string, error) {
	const op = "videos.key"
	teacherEmail = strings.TrimSpace(teacherEmail)
	if !validSegment(teacherEmail) {
		return "", errs.Invalid(op, "invalid teacher email")
	}
	if !validSegment(filename) {
		return "", errs.Invalid(op, "invalid filename")
	}
	return strings.ToLower(teacherEmail) + "/" + filename, nil
}

// CanWrite reports whether p may upload or delete recordings for
// teacherEmail. Teachers manage only their own.
func CanWrite(p auth.Principal, teacherEmail string) bool {
	return p.IsAdmin() || strings.EqualFold(strings.TrimSpace(teacherEmail), p.Email)
}

func videoError(err error, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return errs.NotFound(op, "video not found")
	}
	return errs.Internal(err, op, "video storage failed")
}

// Stat returns the size and type of a recording.
func (s *VideoService) Stat(ctx context.Context, teacherEmail, filename string) (storage.ObjectInfo, error) {
	key, err := ObjectKey(teacherEmail, filename)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.storage.Stat(ctx, key)
	if err != nil {
		return storage.ObjectInfo{}, videoError(err, "videos.stat")
	}
	return info, nil
}

// Open returns a reader over length bytes of a recording starting at
// offset.
func (s *VideoService) Open(ctx context.Context, teacherEmail, filename string, offset, length int64) (io.ReadCloser, error) {
	key, err := ObjectKey(teacherEmail, filename)
	if err != nil {
		return nil, err
	}
	r, err := s.storage.GetRange(ctx, key, offset, length)
	if err != nil {
		return nil, videoError(err, "videos.open")
	}
	return r, nil
}

// Upload stores a recording, replacing any with the same name.
func (s *VideoService) Upload(ctx context.Context, teacherEmail, filename string, r io.Reader, size int64, contentType string) (types.VideoInfo, error) {
	const op = "videos.upload"

	key, err := ObjectKey(teacherEmail, path.Base(filename))
	if err != nil {
		return types.VideoInfo{}, err
	}
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.VideoInfo{}, errs.Internal(err, op, "failed to store video")
	}
	info, err := s.storage.Stat(ctx, key)
	if err != nil {
		return types.VideoInfo{}, videoError(err, op)
	}
	s.log.Info("video uploaded", zap.String("key", key), zap.Int64("size", info.Size))
	return videoInfo(info), nil
}

// List returns a teacher's recordings.
func (s *VideoService) List(ctx context.Context, teacherEmail string) ([]types.VideoInfo, error) {
	teacherEmail = strings.TrimSpace(teacherEmail)
	if !validSegment(teacherEmail) {
		return nil, errs.Invalid("videos.list", "invalid teacher email")
	}
	objects, err := s.storage.List(ctx, strings.ToLower(teacherEmail)+"/")
	if err != nil {
		return nil, videoError(err, "videos.list")
	}
	videos := make([]types.VideoInfo, 0, len(objects))
	for _, obj := range objects {
		videos = append(videos, videoInfo(obj))
	}
	return videos, nil
}

func (s *VideoService) Delete(ctx context.Context, teacherEmail, filename string) error {
	key, err := ObjectKey(teacherEmail, filename)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		return videoError(err, "videos.delete")
	}
	s.log.Info("video deleted", zap.String("key", key))
	return nil
}

func videoInfo(obj storage.ObjectInfo) types.VideoInfo {
	teacher, filename, _ := strings.Cut(obj.Key, "/")
	return types.VideoInfo{
		TeacherEmail: teacher,
		Filename:     filename,
		Size:         obj.Size,
		ContentType:  obj.ContentType,
		UpdatedAt:    obj.UpdatedAt,
	}
}
