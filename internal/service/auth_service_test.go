package service

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/parts-support/internal/config"
	"github.com/spec-kit/parts-support/internal/domain"
	"github.com/spec-kit/parts-support/internal/repository"
	apperrors "github.com/spec-kit/parts-support/pkg/util"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		BcryptCost:            4,
	}, testStore(t))
}

func TestRegisterCreatesBuyer(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	session, err := svc.RegisterUser(ctx, " Dana ", "Dana@Example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if session.Token == "" {
		t.Fatalf("missing token")
	}
	if session.User.Email != "dana@example.com" || session.User.Name != "Dana" {
		t.Fatalf("user = %+v", session.User)
	}
	if session.User.Roles.String() != "buyer" || session.User.RoleStatus != domain.ApprovalNone {
		t.Fatalf("new account roles = %v status = %s", session.User.Roles, session.User.RoleStatus)
	}

	claims, err := svc.TokenManager().ParseToken(session.Token)
	if err != nil || claims.UserID() != session.User.ID {
		t.Fatalf("token claims = %v, %v", claims, err)
	}

	_, err = svc.RegisterUser(ctx, "Other", "dana@example.com", "another-pass")
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("duplicate email err = %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.RegisterUser(context.Background(), "", "not-an-email", "short")
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	details := apperrors.ToDomainError(err).Details
	for _, field := range []string{"name", "email", "password"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("missing %s detail in %v", field, details)
		}
	}
}

func TestLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	registered, err := svc.RegisterUser(ctx, "Sam", "sam@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	session, err := svc.LoginUser(ctx, "sam@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if session.User.ID != registered.User.ID {
		t.Fatalf("logged in as %s, want %s", session.User.ID, registered.User.ID)
	}

	_, err = svc.LoginUser(ctx, "sam@example.com", "wrong-horse")
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("wrong password err = %v", err)
	}
	_, err = svc.LoginUser(ctx, "nobody@example.com", "correct-horse")
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("unknown email err = %v", err)
	}

	profile, err := svc.Profile(ctx, registered.User.ID)
	if err != nil || profile.Email != "sam@example.com" {
		t.Fatalf("profile = %+v, %v", profile, err)
	}
	_, err = svc.Profile(ctx, "ghost")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("missing profile err = %v", err)
	}
}

type emailLookupFailure struct {
	repository.UserRepository
	err error
}

func (f emailLookupFailure) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, f.err
}

type userLookupFailingStore struct {
	repository.Store
	err error
}

func (s userLookupFailingStore) Repositories() repository.Repositories {
	repos := s.Store.Repositories()
	repos.Users = emailLookupFailure{UserRepository: repos.Users, err: s.err}
	return repos
}

func TestRegisterStopsOnLookupFailure(t *testing.T) {
	store := testStore(t)
	cause := errors.New("connection reset")
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4},
		userLookupFailingStore{Store: store, err: cause})

	_, err := svc.RegisterUser(context.Background(), "Sam", "sam@example.com", "correct-horse")
	if !apperrors.HasCode(err, apperrors.CodeStorage) || !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped storage error", err)
	}
	if _, err := store.Repositories().Users.GetByEmail(context.Background(), "sam@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("account created despite failed lookup: %v", err)
	}
}
