package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/storage"
	"github.com/classroll/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newVideoService(t *testing.T) *VideoService {
	t.Helper()
	backend, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, backend.EnsureBucket(context.Background()))
	return NewVideoService(storage.NewStorage(backend), zaptest.NewLogger(t))
}

func TestObjectKey(t *testing.T) {
	key, err := ObjectKey("Ana@School.test", "lesson 1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "ana@school.test/lesson 1.mp4", key)

	for _, name := range []string{"", ".", "..", "../x.mp4", "a/b.mp4", `a\b.mp4`, "x..mp4"} {
		_, err := ObjectKey("ana@school.test", name)
		assert.Equal(t, errs.EInvalid, errs.ErrorCode(err), name)
	}
	_, err = ObjectKey("../etc", "x.mp4")
	assert.Equal(t, errs.EInvalid, errs.ErrorCode(err))
}

func TestCanWrite(t *testing.T) {
	teacher := auth.Principal{Email: "ana@school.test", Role: types.RoleTeacher}
	assert.True(t, CanWrite(teacher, "ANA@school.test"))
	assert.False(t, CanWrite(teacher, "bo@school.test"))
	assert.True(t, CanWrite(auth.Principal{Role: types.RoleAdmin}, "bo@school.test"))
}

func TestVideoLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newVideoService(t)

	info, err := svc.Upload(ctx, "ana@school.test", "lesson.mp4", strings.NewReader("abcdefghij"), 10, "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "ana@school.test", info.TeacherEmail)
	assert.Equal(t, "lesson.mp4", info.Filename)
	assert.EqualValues(t, 10, info.Size)

	stat, err := svc.Stat(ctx, "ana@school.test", "lesson.mp4")
	require.NoError(t, err)
	assert.EqualValues(t, 10, stat.Size)

	r, err := svc.Open(ctx, "ana@school.test", "lesson.mp4", 7, 3)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "hij", string(data))

	videos, err := svc.List(ctx, "ana@school.test")
	require.NoError(t, err)
	require.Len(t, videos, 1)

	require.NoError(t, svc.Delete(ctx, "ana@school.test", "lesson.mp4"))
	_, err = svc.Stat(ctx, "ana@school.test", "lesson.mp4")
	assert.Equal(t, errs.ENotFound, errs.ErrorCode(err))
}
