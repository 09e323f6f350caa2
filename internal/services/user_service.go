package services

import (
	"context"
	"errors"
	"strings"

	"github.com/craftlink/craftlink-backend/internal/auth"
	"github.com/craftlink/craftlink-backend/internal/models"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
)

// UserService covers the operator accounts that gate admin actions.
type UserService struct {
	store repo.Store
	tm    *auth.TokenManager
}

func NewUserService(store repo.Store, tm *auth.TokenManager) *UserService {
	return &UserService{store: store, tm: tm}
}

func (s *UserService) CreateOperator(ctx context.Context, email, password, role string) (models.User, error) {
	u := models.User{Email: strings.TrimSpace(email), Role: role}
	if err := u.Validate(); err != nil {
		return models.User{}, models.Validation("invalid_user", err.Error())
	}
	if len(password) < 8 {
		return models.User{}, models.Validation("weak_password", "password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	return s.store.Users().Create(ctx, u.Email, hash, u.Role)
}

func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return "", models.Validation("invalid_credentials", "invalid email or password")
	}
	if err != nil {
		return "", err
	}
	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		return "", models.Validation("invalid_credentials", "invalid email or password")
	}
	token, _, err := s.tm.Generate(u.ID, u.Role)
	return token, err
}
