package services

import (
	"context"
	"fmt"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

type UserService struct {
	repo domain.UserRepository
}

func NewUserService(repo domain.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// RegisterUser makes sure the telegram user exists
func (s *UserService) RegisterUser(ctx context.Context, telegramID int64) (*domain.User, error) {
	user, err := s.repo.GetOrCreateUser(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

