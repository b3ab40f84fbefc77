package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/pkg/logging"
)

type UserService struct {
	log  *slog.Logger
	repo domain.UserRepository
}

func NewUserService(log *slog.Logger, repo domain.UserRepository) *UserService {
	return &UserService{
		log:  log,
		repo: repo,
	}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, errors.New("username, email and password are required")
	}
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup existing user: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		s.log.ErrorContext(ctx, "user - register - create user failed", "email", email, logging.Err(err))
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.InfoContext(ctx, "user - register - create user success", logging.User(user.ID))
	return user, nil
}

// Login verifies the credentials and returns the user record.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.InfoContext(ctx, "user - login - password mismatch", logging.User(user.ID))
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Profile is the public view of a user returned by search.
type Profile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Search finds users by username or email substring so the caller can pick
// someone to send a connection request to. The caller is never in its own
// results.
func (s *UserService) Search(ctx context.Context, callerID, query string) ([]Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Profile{}, nil
	}
	users, err := s.repo.SearchUsers(ctx, query, callerID)
	if err != nil {
		s.log.ErrorContext(ctx, "user - search - lookup failed", logging.User(callerID), logging.Err(err))
		return nil, err
	}
	profiles := make([]Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, Profile{
			ID:           u.ID,
			Username:     u.Username,
			Email:        u.Email,
			ProfileImage: u.ProfileImage,
		})
	}
	return profiles, nil
}

// SavePushToken stores the caller's device push token.
func (s *UserService) SavePushToken(ctx context.Context, userID, token string) error {
	if err := s.repo.UpdatePushToken(ctx, userID, token); err != nil {
		s.log.ErrorContext(ctx, "user - save push token - update failed", logging.User(userID), logging.Err(err))
		return err
	}
	s.log.InfoContext(ctx, "user - save push token - update success", logging.User(userID))
	return nil
}
