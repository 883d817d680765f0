package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/classroll/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupApproveLogin(t *testing.T) {
	api := newTestAPI(t)
	admin := api.seed(t, types.User{Email: "admin@school.test", Name: "Admin", Role: types.RoleAdmin})
	adminSession := api.session(t, admin)

	rec := api.do(t, http.MethodPost, "/auth/signup", "", SignupRequest{
		Email:        "new@school.test",
		Password:     testPassword,
		Name:         "New Teacher",
		SystemAccess: "grading",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	signup := decodeBody[SignupResponse](t, rec)
	assert.Equal(t, types.StatusPending, signup.User.Status)

	login := LoginRequest{Email: "new@school.test", Password: testPassword}
	rec = api.do(t, http.MethodPost, "/auth/login", "", login)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/pending-users?status=pending", adminSession, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeBody[ListResponse[types.User]](t, rec)
	require.Equal(t, 1, pending.Total)

	target := fmt.Sprintf("/pending-users/%d/approve", signup.User.ID)
	before := time.Now()
	rec = api.do(t, http.MethodPost, target, adminSession, ApproveRequest{AccessType: "trial-3d"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[types.WorkflowResult](t, rec)
	require.NotNil(t, result.User)
	assert.Equal(t, types.StatusApproved, result.User.Status)
	assert.Equal(t, types.AccessTrial, result.User.AccessType)
	require.NotNil(t, result.User.ExpiresAt)
	assert.WithinDuration(t, before.Add(72*time.Hour), *result.User.ExpiresAt, time.Minute)

	rec = api.do(t, http.MethodPost, target, adminSession, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/auth/login", "", login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	auth := decodeBody[AuthResponse](t, rec)
	assert.NotEmpty(t, auth.Token)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, AuthCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestApproveValidatesBody(t *testing.T) {
	api := newTestAPI(t)
	admin := api.seed(t, types.User{Email: "admin@school.test", Name: "Admin", Role: types.RoleAdmin})
	pending := api.seed(t, types.User{Email: "p@school.test", Name: "P", Status: types.StatusPending})

	rec := api.do(t, http.MethodPost, fmt.Sprintf("/pending-users/%d/approve", pending.ID), api.session(t, admin), ApproveRequest{SystemAccess: "everything"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/pending-users/abc/approve", api.session(t, admin), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectAndDeleteUser(t *testing.T) {
	api := newTestAPI(t)
	admin := api.seed(t, types.User{Email: "admin@school.test", Name: "Admin", Role: types.RoleAdmin})
	pending := api.seed(t, types.User{Email: "p@school.test", Name: "P", Status: types.StatusPending})
	session := api.session(t, admin)

	rec := api.do(t, http.MethodPost, fmt.Sprintf("/pending-users/%d/reject", pending.ID), session, RejectRequest{Reason: "unknown"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected := decodeBody[types.User](t, rec)
	assert.Equal(t, types.StatusRejected, rejected.Status)
	assert.Equal(t, "unknown", rejected.RejectionReason)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/pending-users/%d", pending.ID), session, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/pending-users/%d", pending.ID), session, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/pending-users/%d", admin.ID), session, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
