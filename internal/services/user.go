package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/credentials"
	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/store"
	"github.com/classroll/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTrialDays applies when an approval asks for a bare "trial".
	DefaultTrialDays = 7

	minPasswordLength = 8
)

// Workflow step names.
const (
	StepCredential = "credential"
	StepPersist    = "persist"
	StepNotify     = "notify"
	StepTokens     = "tokens"
	StepRecord     = "record"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, status types.UserStatus, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdateEmailDelivery(ctx context.Context, id int, sent bool, sentAt *time.Time, emailErr string) error
	Delete(ctx context.Context, id int) error
}

// CreatorTokens removes the tokens a user created.
type CreatorTokens interface {
	DeleteByCreator(ctx context.Context, email string) (int64, error)
}

// UserService runs the account lifecycle: signup, approval, rejection,
// edits, disabling and deletion.
type UserService struct {
	repo          UserRepository
	tokens        CreatorTokens
	directory     credentials.Directory
	notifications *Dispatcher
	log           *zap.Logger
	now           func() time.Time
}

func NewUserService(repo UserRepository, tokens CreatorTokens, directory credentials.Directory, notifications *Dispatcher, log *zap.Logger) *UserService {
	return &UserService{
		repo:          repo,
		tokens:        tokens,
		directory:     directory,
		notifications: notifications,
		log:           log,
		now:           time.Now,
	}
}

// SignupInput is a self-service registration request.
type SignupInput struct {
	Email        string
	Password     string
	Name         string
	SystemAccess string
}

// Signup records a pending registration.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (types.User, error) {
	const op = "users.signup"

	email := strings.TrimSpace(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" || in.Password == "" {
		return types.User{}, errs.Invalid(op, "email, name and password are required")
	}
	if len(in.Password) < minPasswordLength {
		return types.User{}, errs.Invalid(op, "password must be at least %d characters", minPasswordLength)
	}
	system, ok := types.ParseSystemAccess(in.SystemAccess)
	if !ok {
		return types.User{}, errs.Invalid(op, "system_access must be both, evaluation or grading")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, errs.Internal(err, op, "failed to hash password")
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
		Status:       types.StatusPending,
		AccessType:   types.AccessUnlimited,
		SystemAccess: system,
		RequestedAt:  s.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, errs.Conflict(op, "an account with this email already exists")
		}
		return types.User{}, storeError(err, op, "user")
	}

	s.log.Info("signup received", zap.Int("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

// ParseAccessType parses "unlimited", "trial" or "trial-<N>d" into the
// stored access type and trial length in days.
func ParseAccessType(raw string) (accessType string, trialDays int, err error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case raw == "" || raw == types.AccessUnlimited:
		return types.AccessUnlimited, 0, nil
	case raw == types.AccessTrial:
		return types.AccessTrial, DefaultTrialDays, nil
	case strings.HasPrefix(raw, types.AccessTrial+"-") && strings.HasSuffix(raw, "d"):
		n, convErr := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(raw, types.AccessTrial+"-"), "d"))
		if convErr != nil || n < 1 {
			return "", 0, fmt.Errorf("invalid trial length in %q", raw)
		}
		return types.AccessTrial, n, nil
	default:
		return "", 0, fmt.Errorf("invalid access type %q: want unlimited, trial or trial-<N>d", raw)
	}
}

// ApproveInput selects the access granted on approval. An empty
// SystemAccess keeps what the user asked for at signup.
type ApproveInput struct {
	AccessType   string
	SystemAccess string
}

// Approve moves a pending user to approved. The credential and notify steps
// never block approval; their failures are recorded on the user and in the
// step report.
func (s *UserService) Approve(ctx context.Context, id int, in ApproveInput, actor string) (types.WorkflowResult, error) {
	const op = "users.approve"

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.WorkflowResult{}, storeError(err, op, "user")
	}
	if user.Status != types.StatusPending {
		return types.WorkflowResult{}, errs.Conflict(op, "user is %s, not pending", user.Status)
	}

	accessType, trialDays, err := ParseAccessType(in.AccessType)
	if err != nil {
		return types.WorkflowResult{}, errs.Invalid(op, "%s", err.Error())
	}
	system := user.SystemAccess
	if strings.TrimSpace(in.SystemAccess) != "" {
		parsed, ok := types.ParseSystemAccess(in.SystemAccess)
		if !ok {
			return types.WorkflowResult{}, errs.Invalid(op, "system_access must be both, evaluation or grading")
		}
		system = parsed
	}

	var result types.WorkflowResult
	result.Steps = append(result.Steps, s.provisionCredential(ctx, &user))

	now := s.now()
	user.Status = types.StatusApproved
	user.ApprovedAt = &now
	user.ApprovedBy = actor
	user.AccessType = accessType
	user.TrialDays = trialDays
	user.SystemAccess = system
	user.ExpiresAt = nil
	if accessType == types.AccessTrial {
		expires := now.AddDate(0, 0, trialDays)
		user.ExpiresAt = &expires
	}

	user, err = s.repo.Update(ctx, user)
	if err != nil {
		return types.WorkflowResult{}, storeError(err, op, "user")
	}
	result.Steps = append(result.Steps, types.StepOutcome{Step: StepPersist, Status: types.StepOK})
	s.log.Info("user approved",
		zap.Int("user_id", user.ID),
		zap.String("access_type", user.AccessType),
		zap.String("approved_by", actor),
	)

	result.Steps = append(result.Steps, s.notifyApproval(ctx, user.ID))
	result.User = s.reload(ctx, user)
	return result, nil
}

func (s *UserService) provisionCredential(ctx context.Context, user *types.User) types.StepOutcome {
	step := types.StepOutcome{Step: StepCredential}
	if user.CredentialUID != "" {
		step.Status = types.StepSkipped
		step.Detail = "account already provisioned"
		return step
	}

	uid, err := s.directory.CreateAccount(ctx, user.Email, user.PasswordHash)
	switch {
	case err == nil:
		step.Status = types.StepOK
		user.CredentialUID = uid
		user.CredentialError = ""
	case errors.Is(err, credentials.ErrAccountExists):
		step.Status = types.StepSkipped
		step.Detail = "account already exists"
		user.CredentialUID = uid
		user.CredentialError = ""
	default:
		step.Status = types.StepFailed
		step.Error = err.Error()
		user.CredentialError = err.Error()
		s.log.Error("credential provisioning failed", zap.Int("user_id", user.ID), zap.Error(err))
	}
	return step
}

func (s *UserService) notifyApproval(ctx context.Context, userID int) types.StepOutcome {
	step := types.StepOutcome{Step: StepNotify, Status: types.StepOK}
	queued, err := s.notifications.Approval(ctx, userID)
	switch {
	case err != nil:
		step.Status = types.StepFailed
		step.Error = err.Error()
	case queued:
		step.Detail = "queued"
	}
	return step
}

// reload returns the stored copy of user, or user itself if it cannot be
// read back.
func (s *UserService) reload(ctx context.Context, user types.User) *types.User {
	fresh, err := s.repo.GetByID(ctx, user.ID)
	if err != nil {
		return &user
	}
	return &fresh
}

// Reject turns down a pending registration. No account is provisioned and
// no email is sent.
func (s *UserService) Reject(ctx context.Context, id int, reason, actor string) (types.User, error) {
	const op = "users.reject"

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, storeError(err, op, "user")
	}
	if user.Status != types.StatusPending {
		return types.User{}, errs.Conflict(op, "user is %s, not pending", user.Status)
	}

	now := s.now()
	user.Status = types.StatusRejected
	user.RejectedAt = &now
	user.RejectedBy = actor
	user.RejectionReason = strings.TrimSpace(reason)

	user, err = s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, storeError(err, op, "user")
	}
	s.log.Info("user rejected", zap.Int("user_id", user.ID), zap.String("rejected_by", actor))
	return user, nil
}

// EditInput holds the fields an administrator may change. Nil fields are
// left alone.
type EditInput struct {
	Name         *string
	Role         *string
	AccessType   *string
	SystemAccess *string
	ExpiresAt    *time.Time
}

func (s *UserService) Edit(ctx context.Context, id int, in EditInput) (types.User, error) {
	const op = "users.edit"

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, storeError(err, op, "user")
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return types.User{}, errs.Invalid(op, "name cannot be empty")
		}
		user.Name = name
	}
	if in.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*in.Role))
		switch role {
		case types.RoleAdmin, types.RoleTeacher, types.RoleUser:
			user.Role = role
		default:
			return types.User{}, errs.Invalid(op, "role must be admin, teacher or user")
		}
	}
	if in.SystemAccess != nil {
		system, ok := types.ParseSystemAccess(*in.SystemAccess)
		if !ok {
			return types.User{}, errs.Invalid(op, "system_access must be both, evaluation or grading")
		}
		user.SystemAccess = system
	}
	if in.AccessType != nil {
		accessType, trialDays, err := ParseAccessType(*in.AccessType)
		if err != nil {
			return types.User{}, errs.Invalid(op, "%s", err.Error())
		}
		user.AccessType = accessType
		user.TrialDays = trialDays
		user.ExpiresAt = nil
		if accessType == types.AccessTrial {
			expires := s.now().AddDate(0, 0, trialDays)
			user.ExpiresAt = &expires
		}
	}
	if in.ExpiresAt != nil {
		if !user.IsTrial() {
			return types.User{}, errs.Invalid(op, "expires_at only applies to trial accounts")
		}
		expires := *in.ExpiresAt
		user.ExpiresAt = &expires
	}

	user, err = s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, storeError(err, op, "user")
	}
	return user, nil
}

// Disable blocks a user from authenticating. Administrators cannot disable
// their own account.
func (s *UserService) Disable(ctx context.Context, id int, actor auth.Principal) (types.User, error) {
	const op = "users.disable"
	if actor.UserID == id {
		return types.User{}, errs.Forbidden(op, "you cannot disable your own account")
	}
	return s.setDisabled(ctx, op, id, true)
}

func (s *UserService) Enable(ctx context.Context, id int, actor auth.Principal) (types.User, error) {
	return s.setDisabled(ctx, "users.enable", id, false)
}

func (s *UserService) setDisabled(ctx context.Context, op string, id int, disabled bool) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, storeError(err, op, "user")
	}
	if user.IsDisabled == disabled {
		return user, nil
	}

	now := s.now()
	user.IsDisabled = disabled
	if disabled {
		user.DisabledAt = &now
	} else {
		user.EnabledAt = &now
	}

	user, err = s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, storeError(err, op, "user")
	}
	return user, nil
}

// Delete removes a user together with their directory account and tokens.
// Every step runs even when an earlier one fails; the report says which
// steps need a retry.
func (s *UserService) Delete(ctx context.Context, id int, actor auth.Principal) (types.WorkflowResult, error) {
	const op = "users.delete"
	if actor.UserID == id {
		return types.WorkflowResult{}, errs.Forbidden(op, "you cannot delete your own account")
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.WorkflowResult{}, storeError(err, op, "user")
	}
	result := types.WorkflowResult{User: &user}

	step := types.StepOutcome{Step: StepCredential, Status: types.StepOK}
	if err := s.directory.DeleteAccount(ctx, user.Email); err != nil {
		if errors.Is(err, credentials.ErrAccountNotFound) {
			step.Status = types.StepSkipped
			step.Detail = "no directory account"
		} else {
			step.Status = types.StepFailed
			step.Error = err.Error()
		}
	}
	result.Steps = append(result.Steps, step)

	step = types.StepOutcome{Step: StepTokens, Status: types.StepOK}
	if n, err := s.tokens.DeleteByCreator(ctx, user.Email); err != nil {
		step.Status = types.StepFailed
		step.Error = err.Error()
	} else {
		step.Detail = fmt.Sprintf("%d tokens deleted", n)
	}
	result.Steps = append(result.Steps, step)

	step = types.StepOutcome{Step: StepRecord, Status: types.StepOK}
	if err := s.repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			step.Status = types.StepSkipped
		} else {
			step.Status = types.StepFailed
			step.Error = err.Error()
		}
	}
	result.Steps = append(result.Steps, step)

	fields := []zap.Field{zap.Int("user_id", user.ID), zap.String("deleted_by", actor.Email)}
	if result.Failed() {
		s.log.Warn("user deletion incomplete", append(fields, zap.Any("steps", result.Steps))...)
	} else {
		s.log.Info("user deleted", fields...)
	}
	return result, nil
}

// ResendEmail dispatches the approval notice again.
func (s *UserService) ResendEmail(ctx context.Context, id int) (types.WorkflowResult, error) {
	const op = "users.resend_email"

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.WorkflowResult{}, storeError(err, op, "user")
	}
	if user.Status != types.StatusApproved {
		return types.WorkflowResult{}, errs.Conflict(op, "user is %s, not approved", user.Status)
	}

	result := types.WorkflowResult{
		Steps: []types.StepOutcome{s.notifyApproval(ctx, user.ID)},
	}
	result.User = s.reload(ctx, user)
	return result, nil
}

// Authenticate checks a login attempt.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	const op = "users.authenticate"

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.User{}, errs.Invalid(op, "email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, errs.New(errs.EUnauthorized, op, "invalid credentials")
		}
		return types.User{}, storeError(err, op, "user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, errs.New(errs.EUnauthorized, op, "invalid credentials")
	}

	if err := s.CheckActive(user, user.Role); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// CheckActive reports whether user may use the API. role is the role the
// caller presents, which exempts administrators from the disabled and
// trial checks.
func (s *UserService) CheckActive(user types.User, role string) error {
	const op = "users.check_active"

	switch user.Status {
	case types.StatusPending:
		return errs.Forbidden(op, "account pending approval")
	case types.StatusRejected:
		return errs.Forbidden(op, "account request was rejected")
	}
	if strings.EqualFold(role, types.RoleAdmin) {
		return nil
	}
	if user.IsDisabled {
		return errs.Forbidden(op, "account is disabled")
	}
	if user.TrialExpired(s.now()) {
		return errs.Forbidden(op, "trial period has expired")
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, storeError(err, "users.get", "user")
	}
	return user, nil
}

// List returns users, optionally filtered by status.
func (s *UserService) List(ctx context.Context, status string, offset, limit int) ([]types.User, int, error) {
	const op = "users.list"

	st := types.UserStatus(strings.ToLower(strings.TrimSpace(status)))
	switch st {
	case "", types.StatusPending, types.StatusApproved, types.StatusRejected:
	default:
		return nil, 0, errs.Invalid(op, "status must be pending, approved or rejected")
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := s.repo.List(ctx, st, offset, pageLimit(limit))
	if err != nil {
		return nil, 0, storeError(err, op, "users")
	}
	return users, total, nil
}
