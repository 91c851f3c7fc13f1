package service

import (
	"context"
	"errors"
	"strings"

	"workday/config"
	"workday/internal/auth"
	"workday/internal/domain"
	"workday/internal/models"
	"workday/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCreds = errors.New("invalid email or password")
	ErrNoTenant     = errors.New("no company configured for new sso accounts")
)

// Authenticator verifies credentials and issues a session token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.User, string, *auth.Claims, error)
}

type AuthService struct {
	cfg      *config.Config
	userRepo *repository.UserRepository
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, *auth.Claims, error) {
	u, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", nil, ErrInvalidCreds
		}
		return nil, "", nil, err
	}
	if u.PasswordHash == "" {
		return nil, "", nil, ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", nil, ErrInvalidCreds
	}
	return s.issue(u)
}

// LoginWithGoogle finds the user by Google ID, links an existing account by
// email, or creates an employee in the configured SSO company. The returned
// user's CompanyID is the tenant the session belongs to.
func (s *AuthService) LoginWithGoogle(ctx context.Context, googleID, email, name string) (*models.User, string, *auth.Claims, error) {
	u, err := s.userRepo.GetByGoogleID(ctx, googleID)
	if err == nil {
		return s.issue(u)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	gid := googleID
	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		existing.GoogleID = &gid
		if err := s.userRepo.Update(ctx, existing); err != nil {
			return nil, "", nil, err
		}
		return s.issue(existing)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", nil, err
	}
	if s.cfg.OAuth.GoogleCompanyID == 0 {
		return nil, "", nil, ErrNoTenant
	}
	u = &models.User{
		CompanyID: s.cfg.OAuth.GoogleCompanyID,
		Email:     email,
		FullName:  name,
		GoogleID:  &gid,
		Role:      domain.RoleEmployee,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, "", nil, err
	}
	return s.issue(u)
}

func (s *AuthService) issue(u *models.User) (*models.User, string, *auth.Claims, error) {
	token, claims, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.CompanyID, u.Email, u.Role)
	if err != nil {
		return nil, "", nil, err
	}
	return u, token, claims, nil
}
