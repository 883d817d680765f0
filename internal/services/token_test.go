package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDailyCap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, types.User{Email: "ana@school.test", Name: "Ana"})

	for i := 0; i < DailyTokenLimit; i++ {
		_, err := h.tokenSvc.Generate(ctx, principalFor(user), GenerateInput{Description: "sync", System: "grading"})
		require.NoError(t, err, "token %d", i+1)
	}
	_, err := h.tokenSvc.Generate(ctx, principalFor(user), GenerateInput{Description: "sync", System: "grading"})
	assert.Equal(t, errs.ETooManyRequests, errs.ErrorCode(err))
	assert.Equal(t, 429, errs.HTTPStatus(errs.ErrorCode(err)))

	// The cap resets at local midnight.
	h.tokenSvc.now = func() time.Time { return testNow.Add(24 * time.Hour) }
	_, err = h.tokenSvc.Generate(ctx, principalFor(user), GenerateInput{Description: "sync", System: "grading"})
	assert.NoError(t, err)
}

func TestGenerateAdminIsNotCapped(t *testing.T) {
	h := newHarness(t)
	admin := h.seedUser(t, types.User{Email: "admin@school.test", Name: "Admin", Role: types.RoleAdmin})

	for i := 0; i < DailyTokenLimit+2; i++ {
		_, err := h.tokenSvc.Generate(context.Background(), principalFor(admin), GenerateInput{Description: "ops", System: "evaluation"})
		require.NoError(t, err)
	}
}

func TestGenerateClampsTrial(t *testing.T) {
	h := newHarness(t)
	expires := testNow.Add(3 * 24 * time.Hour)
	user := h.seedUser(t, types.User{
		Email:      "ana@school.test",
		Name:       "Ana",
		AccessType: types.AccessTrial,
		TrialDays:  3,
		ExpiresAt:  &expires,
	})

	token, err := h.tokenSvc.Generate(context.Background(), principalFor(user), GenerateInput{
		Description: "sync",
		Expiration:  "30d",
		System:      "evaluation",
	})
	require.NoError(t, err)
	assert.Equal(t, "3d", token.Expiration)
	require.NotNil(t, token.ExpiresAt)
	assert.True(t, token.ExpiresAt.Equal(expires))

	never, err := h.tokenSvc.Generate(context.Background(), principalFor(user), GenerateInput{
		Description: "sync",
		Expiration:  types.NeverExpires,
		System:      "evaluation",
	})
	require.NoError(t, err)
	assert.Equal(t, "3d", never.Expiration)
	require.NotNil(t, never.ExpiresAt)

	short, err := h.tokenSvc.Generate(context.Background(), principalFor(user), GenerateInput{
		Description: "sync",
		Expiration:  "12h",
		System:      "evaluation",
	})
	require.NoError(t, err)
	assert.Equal(t, "12h", short.Expiration)
	assert.True(t, short.ExpiresAt.Equal(testNow.Add(12*time.Hour)))
}

func TestGenerateClampsToTrialEnd(t *testing.T) {
	h := newHarness(t)
	// Approved two days ago for three days: one day left.
	expires := testNow.Add(24 * time.Hour)
	user := h.seedUser(t, types.User{
		Email:      "ana@school.test",
		Name:       "Ana",
		AccessType: types.AccessTrial,
		TrialDays:  3,
		ExpiresAt:  &expires,
	})

	token, err := h.tokenSvc.Generate(context.Background(), principalFor(user), GenerateInput{Description: "sync", System: "grading"})
	require.NoError(t, err)
	assert.Equal(t, "3d", token.Expiration)
	assert.True(t, token.ExpiresAt.Equal(expires))
}

func TestGenerateValidation(t *testing.T) {
	h := newHarness(t)
	user := h.seedUser(t, types.User{Email: "ana@school.test", Name: "Ana", SystemAccess: types.SystemGrading})

	tests := []struct {
		name string
		in   GenerateInput
		code string
	}{
		{name: "missing description", in: GenerateInput{System: "grading"}, code: errs.EInvalid},
		{name: "unknown system", in: GenerateInput{Description: "x", System: "payroll"}, code: errs.EInvalid},
		{name: "both is not a token system", in: GenerateInput{Description: "x", System: "both"}, code: errs.EInvalid},
		{name: "system outside access", in: GenerateInput{Description: "x", System: "evaluation"}, code: errs.EForbidden},
		{name: "bad expiration", in: GenerateInput{Description: "x", System: "grading", Expiration: "10m"}, code: errs.EInvalid},
		{name: "expiration beyond 100y", in: GenerateInput{Description: "x", System: "grading", Expiration: "300y"}, code: errs.EInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.tokenSvc.Generate(context.Background(), principalFor(user), tt.in)
			assert.Equal(t, tt.code, errs.ErrorCode(err))
		})
	}
}

func TestGenerateSignsClaims(t *testing.T) {
	h := newHarness(t)
	user := h.seedUser(t, types.User{Email: "ana@school.test", Name: "Ana", Role: types.RoleTeacher})

	token, err := h.tokenSvc.Generate(context.Background(), principalFor(user), GenerateInput{Description: "sync", System: "evaluation", Expiration: "2w"})
	require.NoError(t, err)
	assert.Len(t, token.TokenPrefix, 12)
	parts := strings.Split(token.Token, ".")
	require.Len(t, parts, 3)
	assert.True(t, strings.HasPrefix(parts[2], token.TokenPrefix))
	assert.Equal(t, types.TokenActive, token.Status)
	assert.Equal(t, types.RoleTeacher, token.Role)

	claims, err := h.signer.Parse(token.Token)
	require.NoError(t, err)
	assert.Equal(t, token.ID, claims.ID)
	assert.Equal(t, auth.KindAPI, claims.Kind)
	assert.Equal(t, types.SystemEvaluation, claims.System)
	assert.Equal(t, "ana@school.test", claims.Email)
	assert.True(t, claims.ExpiresAt.Time.Equal(testNow.Add(14*24*time.Hour)))
}

func TestListMasksAndDeleteChecksOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ana := h.seedUser(t, types.User{Email: "ana@school.test", Name: "Ana"})
	bo := h.seedUser(t, types.User{Email: "bo@school.test", Name: "Bo"})
	admin := h.seedUser(t, types.User{Email: "admin@school.test", Name: "Admin", Role: types.RoleAdmin})

	token, err := h.tokenSvc.Generate(ctx, principalFor(ana), GenerateInput{Description: "sync", System: "grading"})
	require.NoError(t, err)

	list, err := h.tokenSvc.List(ctx, principalFor(ana))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Token)
	assert.Equal(t, token.TokenPrefix, list[0].TokenPrefix)

	list, err = h.tokenSvc.List(ctx, principalFor(bo))
	require.NoError(t, err)
	assert.Empty(t, list)

	full, err := h.tokenSvc.GetFull(ctx, token.ID)
	require.NoError(t, err)
	assert.Equal(t, token.Token, full.Token)

	err = h.tokenSvc.Delete(ctx, principalFor(bo), token.ID)
	assert.Equal(t, errs.EForbidden, errs.ErrorCode(err))

	require.NoError(t, h.tokenSvc.Delete(ctx, principalFor(admin), token.ID))
	err = h.tokenSvc.Delete(ctx, principalFor(ana), token.ID)
	assert.Equal(t, errs.ENotFound, errs.ErrorCode(err))
}

func TestUpdateSystem(t *testing.T) {
	h := newHarness(t)
	ana := h.seedUser(t, types.User{Email: "ana@school.test", Name: "Ana"})
	token, err := h.tokenSvc.Generate(context.Background(), principalFor(ana), GenerateInput{Description: "sync", System: "grading"})
	require.NoError(t, err)

	updated, err := h.tokenSvc.UpdateSystem(context.Background(), token.ID, "evaluation")
	require.NoError(t, err)
	assert.Equal(t, types.SystemEvaluation, updated.System)
	assert.Empty(t, updated.Token)

	_, err = h.tokenSvc.UpdateSystem(context.Background(), token.ID, "both")
	assert.Equal(t, errs.EInvalid, errs.ErrorCode(err))
	_, err = h.tokenSvc.UpdateSystem(context.Background(), "missing", "grading")
	assert.Equal(t, errs.ENotFound, errs.ErrorCode(err))
}

func TestTokenPrefixesDiffer(t *testing.T) {
	h := newHarness(t)
	user := h.seedUser(t, types.User{Email: "ana@school.test", Name: "Ana", Role: types.RoleTeacher})

	first, err := h.tokenSvc.Generate(context.Background(), principalFor(user), GenerateInput{Description: "a", System: "grading"})
	require.NoError(t, err)
	second, err := h.tokenSvc.Generate(context.Background(), principalFor(user), GenerateInput{Description: "b", System: "grading"})
	require.NoError(t, err)
	assert.NotEqual(t, first.TokenPrefix, second.TokenPrefix)
}

func TestDisplayPrefix(t *testing.T) {
	assert.Equal(t, "abcdefghijkl", displayPrefix("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOjF9.abcdefghijklmnop"))
	assert.Equal(t, "short", displayPrefix("h.p.short"))
}
