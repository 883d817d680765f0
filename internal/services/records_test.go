package services

import (
	"context"
	"testing"

	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/store"
	"github.com/classroll/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	rows      map[int64]types.Subject
	nextID    int64
	lastLimit int
	err       error
}

func (f *fakeTable) List(_ context.Context, _ map[string]string, _, limit int) ([]types.Subject, int, error) {
	f.lastLimit = limit
	out := make([]types.Subject, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r)
	}
	return out, len(out), f.err
}

func (f *fakeTable) Get(_ context.Context, id int64) (types.Subject, error) {
	r, ok := f.rows[id]
	if !ok {
		return types.Subject{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeTable) Create(_ context.Context, item types.Subject) (types.Subject, error) {
	if f.err != nil {
		return types.Subject{}, f.err
	}
	f.nextID++
	item.ID = f.nextID
	f.rows[item.ID] = item
	return item, nil
}

func (f *fakeTable) Update(_ context.Context, id int64, item types.Subject) (types.Subject, error) {
	if _, ok := f.rows[id]; !ok {
		return types.Subject{}, store.ErrNotFound
	}
	item.ID = id
	f.rows[id] = item
	return item, nil
}

func (f *fakeTable) Delete(_ context.Context, id int64) error {
	if _, ok := f.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func TestRecordServiceCRUD(t *testing.T) {
	ctx := context.Background()
	table := &fakeTable{rows: map[int64]types.Subject{}}
	svc := NewRecordService[types.Subject]("subject", table)

	created, err := svc.Create(ctx, types.Subject{Name: "Mathematics", Code: "MAT"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, created.ID)

	_, _, err = svc.List(ctx, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, table.lastLimit)
	_, _, err = svc.List(ctx, nil, 0, 10000)
	require.NoError(t, err)
	assert.Equal(t, 500, table.lastLimit)

	updated, err := svc.Update(ctx, created.ID, types.Subject{Name: "Maths", Code: "MAT"})
	require.NoError(t, err)
	assert.Equal(t, "Maths", updated.Name)

	_, err = svc.Get(ctx, 42)
	assert.Equal(t, errs.ENotFound, errs.ErrorCode(err))
	assert.Equal(t, "subject 42 not found", errs.ErrorMessage(err))

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Equal(t, errs.ENotFound, errs.ErrorCode(svc.Delete(ctx, created.ID)))
}

func TestRecordServiceTranslatesStoreErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		err  error
		code string
	}{
		{err: store.ErrConflict, code: errs.EConflict},
		{err: store.ErrInvalidReference, code: errs.EInvalid},
		{err: store.ErrStillReferenced, code: errs.EConflict},
		{err: store.ErrInvalidValue, code: errs.EInvalid},
		{err: assert.AnError, code: errs.EInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := NewRecordService[types.Subject]("subject", &fakeTable{rows: map[int64]types.Subject{}, err: tt.err})
			_, err := svc.Create(ctx, types.Subject{Name: "Art", Code: "ART"})
			assert.Equal(t, tt.code, errs.ErrorCode(err))
		})
	}
}
