package services

import (
	"context"
	"errors"

	"github.com/classroll/apiserver/internal/auth"
	"github.com/classroll/apiserver/internal/errs"
	"github.com/classroll/apiserver/internal/store"
	"github.com/classroll/apiserver/types"
)

// Authenticator turns a bearer token into a Principal.
type Authenticator struct {
	signer *auth.Signer
	users  *UserService
	tokens *TokenService
}

func NewAuthenticator(signer *auth.Signer, users *UserService, tokens *TokenService) *Authenticator {
	return &Authenticator{signer: signer, users: users, tokens: tokens}
}

// Principal verifies raw and loads the caller. API tokens must still have
// an active record, whose system replaces the one signed into the token.
func (a *Authenticator) Principal(ctx context.Context, raw string) (auth.Principal, error) {
	const op = "auth.principal"

	claims, err := a.signer.Parse(raw)
	if err != nil {
		return auth.Principal{}, errs.Wrap(err, errs.EUnauthorized, op, "invalid token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return auth.Principal{}, errs.Wrap(err, errs.EUnauthorized, op, "invalid token")
	}

	principal := auth.Principal{
		UserID: userID,
		System: claims.System,
		Kind:   claims.Kind,
	}
	if claims.Kind == auth.KindAPI {
		record, err := a.tokens.Resolve(ctx, claims)
		if err != nil {
			return auth.Principal{}, err
		}
		principal.System = record.System
		principal.TokenID = record.ID
	}

	user, err := a.users.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.Principal{}, errs.New(errs.EUnauthorized, op, "user no longer exists")
		}
		return auth.Principal{}, storeError(err, op, "user")
	}
	if err := a.users.CheckActive(user, claims.Role); err != nil {
		return auth.Principal{}, err
	}
	if claims.Kind == auth.KindAPI && !user.IsAdmin() && !user.SystemAccess.Includes(principal.System) {
		return auth.Principal{}, errs.Forbidden(op, "you no longer have access to the %s system", principal.System)
	}
	if principal.System == "" {
		principal.System = types.SystemBoth
	}

	principal.Email = user.Email
	principal.Role = user.Role
	return principal, nil
}
