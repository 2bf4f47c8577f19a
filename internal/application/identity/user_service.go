package identity

import (
	"context"

	"github.com/billing/backend/internal/domain/identity"
	"github.com/billing/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// UserService handles shop user account management
type UserService struct {
	userRepo identity.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo identity.UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Register creates a new shop user account
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*UserInfo, error) {
	taken, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, shared.NewDomainError("USERNAME_TAKEN", "Username is already taken")
	}

	user, err := identity.NewUser(input.Username, input.Password, input.ShopName)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Shop user registered",
		zap.String("username", user.Username),
		zap.String("user_id", user.ID.String()))

	info := toUserInfo(user)
	return &info, nil
}

// Unlock lifts a login lock from a user account
func (s *UserService) Unlock(ctx context.Context, username string) error {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}

	user.Unlock()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.logger.Info("User account unlocked", zap.String("username", username))
	return nil
}
