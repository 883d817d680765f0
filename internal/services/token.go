package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/store"
	"github.com/classroll/apiserver/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DailyTokenLimit caps how many tokens a non-admin may create per
	// calendar day.
	DailyTokenLimit = 5

	tokenPrefixLength = 12
)

// TokenRepository defines persistence operations for API tokens.
type TokenRepository interface {
	CreateWithDailyCap(ctx context.Context, token types.APIToken, since time.Time, limit int) (types.APIToken, error)
	Get(ctx context.Context, id string) (types.APIToken, error)
	ListByCreator(ctx context.Context, email string) ([]types.APIToken, error)
	ListAll(ctx context.Context) ([]types.APIToken, error)
	Delete(ctx context.Context, id string) error
	UpdateSystem(ctx context.Context, id string, system types.System) (types.APIToken, error)
}

// UserLookup loads users by id.
type UserLookup interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// TokenService issues and manages signed bearer tokens.
type TokenService struct {
	repo       TokenRepository
	users      UserLookup
	signer     *auth.Signer
	location   *time.Location
	sessionTTL time.Duration
	dailyLimit int
	log        *zap.Logger
	now        func() time.Time
}

// NewTokenService constructs a TokenService. Daily caps are counted from
// midnight in location.
func NewTokenService(repo TokenRepository, users UserLookup, signer *auth.Signer, location *time.Location, sessionTTL time.Duration, log *zap.Logger) *TokenService {
	if location == nil {
		location = time.Local
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &TokenService{
		repo:       repo,
		users:      users,
		signer:     signer,
		location:   location,
		sessionTTL: sessionTTL,
		dailyLimit: DailyTokenLimit,
		log:        log,
		now:        time.Now,
	}
}

// GenerateInput is a token request.
type GenerateInput struct {
	Description string
	Expiration  string
	System      string
}

// Generate issues an API token for requester.
func (s *TokenService) Generate(ctx context.Context, requester auth.Principal, in GenerateInput) (types.APIToken, error) {
	const op = "tokens.generate"

	user, err := s.users.GetByID(ctx, requester.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.APIToken{}, errs.New(errs.EUnauthorized, op, "unknown user")
		}
		return types.APIToken{}, storeError(err, op, "user")
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		return types.APIToken{}, errs.Invalid(op, "description is required")
	}
	system, ok := types.ParseTokenSystem(in.System)
	if !ok {
		return types.APIToken{}, errs.Invalid(op, "system must be evaluation or grading")
	}
	if !user.SystemAccess.Includes(system) {
		return types.APIToken{}, errs.Forbidden(op, "you do not have access to the %s system", system)
	}
	exp, err := auth.ParseExpiration(in.Expiration)
	if err != nil {
		return types.APIToken{}, errs.Invalid(op, "%s", err.Error())
	}

	now := s.now()
	if user.IsTrial() {
		if user.TrialExpired(now) {
			return types.APIToken{}, errs.Forbidden(op, "trial period has expired")
		}
		days := user.TrialDays
		if days <= 0 {
			days = DefaultTrialDays
		}
		exp = exp.ClampDays(days)
	}
	expiresAt := exp.ExpiresAt(now)
	if user.IsTrial() && user.ExpiresAt != nil && (expiresAt.IsZero() || expiresAt.After(*user.ExpiresAt)) {
		expiresAt = *user.ExpiresAt
	}

	id := uuid.NewString()
	signed, err := s.signer.Sign(user, auth.Grant{
		ID:        id,
		Kind:      auth.KindAPI,
		System:    system,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return types.APIToken{}, errs.Internal(err, op, "failed to sign token")
	}

	token := types.APIToken{
		ID:          id,
		UserID:      user.ID,
		Token:       signed,
		TokenPrefix: displayPrefix(signed),
		Description: description,
		CreatedBy:   user.Email,
		Expiration:  exp.Spec,
		Status:      types.TokenActive,
		System:      system,
		Role:        user.Role,
		CreatedAt:   now,
	}
	if !expiresAt.IsZero() {
		token.ExpiresAt = &expiresAt
	}

	limit := s.dailyLimit
	if user.IsAdmin() {
		limit = 0
	}
	token, err = s.repo.CreateWithDailyCap(ctx, token, s.startOfDay(now), limit)
	if err != nil {
		if errors.Is(err, store.ErrLimitReached) {
			return types.APIToken{}, errs.New(errs.ETooManyRequests, op, "daily limit of %d tokens reached", limit)
		}
		return types.APIToken{}, errs.Internal(err, op, "failed to store token")
	}

	s.log.Info("token issued",
		zap.String("token_id", token.ID),
		zap.String("created_by", token.CreatedBy),
		zap.String("system", string(token.System)),
		zap.String("expiration", token.Expiration),
	)
	return token, nil
}

func (s *TokenService) startOfDay(t time.Time) time.Time {
	local := t.In(s.location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location)
}

// IssueSession signs a login session token carrying the user's system
// access.
func (s *TokenService) IssueSession(user types.User) (string, time.Time, error) {
	system := user.SystemAccess
	if system == "" {
		system = types.SystemBoth
	}
	now := s.now()
	expiresAt := now.Add(s.sessionTTL)
	signed, err := s.signer.Sign(user, auth.Grant{
		Kind:      auth.KindSession,
		System:    system,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", time.Time{}, errs.Internal(err, "tokens.session", "failed to sign session")
	}
	return signed, expiresAt, nil
}

// Resolve returns the stored record behind a signed API token. Deleted,
// revoked and expired records are rejected.
func (s *TokenService) Resolve(ctx context.Context, claims *auth.Claims) (types.APIToken, error) {
	const op = "tokens.resolve"

	token, err := s.repo.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.APIToken{}, errs.New(errs.EUnauthorized, op, "token has been revoked")
		}
		return types.APIToken{}, storeError(err, op, "token")
	}
	if token.Status != types.TokenActive {
		return types.APIToken{}, errs.New(errs.EUnauthorized, op, "token has been revoked")
	}
	if token.Expired(s.now()) {
		return types.APIToken{}, errs.New(errs.EUnauthorized, op, "token has expired")
	}
	if uid, err := claims.UserID(); err != nil || uid != token.UserID {
		return types.APIToken{}, errs.New(errs.EUnauthorized, op, "token does not match its record")
	}
	return token, nil
}

// List returns the tokens requester created, without token values.
func (s *TokenService) List(ctx context.Context, requester auth.Principal) ([]types.APIToken, error) {
	tokens, err := s.repo.ListByCreator(ctx, requester.Email)
	if err != nil {
		return nil, storeError(err, "tokens.list", "tokens")
	}
	return masked(tokens), nil
}

// ListAll returns every token, without token values.
func (s *TokenService) ListAll(ctx context.Context) ([]types.APIToken, error) {
	tokens, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, storeError(err, "tokens.list_all", "tokens")
	}
	return masked(tokens), nil
}

func masked(tokens []types.APIToken) []types.APIToken {
	out := make([]types.APIToken, len(tokens))
	for i, t := range tokens {
		out[i] = t.Masked()
	}
	return out
}

// Delete removes a token. Only its creator or an administrator may delete
// it.
func (s *TokenService) Delete(ctx context.Context, requester auth.Principal, id string) error {
	const op = "tokens.delete"

	token, err := s.repo.Get(ctx, id)
	if err != nil {
		return storeError(err, op, "token")
	}
	if !requester.IsAdmin() && !strings.EqualFold(token.CreatedBy, requester.Email) {
		return errs.Forbidden(op, "you can only delete your own tokens")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err, op, "token")
	}
	s.log.Info("token deleted", zap.String("token_id", id), zap.String("deleted_by", requester.Email))
	return nil
}

// GetFull returns a token including its value.
func (s *TokenService) GetFull(ctx context.Context, id string) (types.APIToken, error) {
	token, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.APIToken{}, storeError(err, "tokens.get", "token")
	}
	return token, nil
}

// UpdateSystem reassigns a token to another system. The stored system is
// authoritative, so the change applies to the already issued token.
func (s *TokenService) UpdateSystem(ctx context.Context, id, system string) (types.APIToken, error) {
	const op = "tokens.update_system"

	parsed, ok := types.ParseTokenSystem(system)
	if !ok {
		return types.APIToken{}, errs.Invalid(op, "system must be evaluation or grading")
	}
	token, err := s.repo.UpdateSystem(ctx, id, parsed)
	if err != nil {
		return types.APIToken{}, storeError(err, op, "token")
	}
	return token.Masked(), nil
}

// displayPrefix returns the leading characters of the token signature. The
// JWT header is the same for every token, so it cannot tell tokens apart.
func displayPrefix(signed string) string {
	sig := signed[strings.LastIndexByte(signed, '.')+1:]
	return sig[:min(len(sig), tokenPrefixLength)]
}
