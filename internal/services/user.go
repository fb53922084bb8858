package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

const jwtExpDays = 365

// UserService handles user lookup, demo authentication and token validation.
// Identity mechanics proper (Telegram Web App validation and the like) belong
// to an external auth collaborator; this service only carries the JWT seam.
type UserService struct {
	storage   repository.Storage
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(storage repository.Storage, jwtSecret string) *UserService {
	return &UserService{
		storage:   storage,
		jwtSecret: jwtSecret,
	}
}

// GenerateJWT generates a signed token for a user
func (s *UserService) GenerateJWT(userID int64) (string, error) {
	claims := jwt.MapClaims{
		"user_id": strconv.FormatInt(userID, 10),
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateJWT validates a token and returns the user id it carries
func (s *UserService) ValidateJWT(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}
	raw, ok := claims["user_id"].(string)
	if !ok {
		return 0, fmt.Errorf("user_id not found in token")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed user_id in token: %w", err)
	}
	return userID, nil
}

// DemoAuth finds a user by username or creates one. This is the solo-demo
// entry point; real identity verification lives outside this service.
func (s *UserService) DemoAuth(ctx context.Context, username, avatar string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if avatar == "" {
		avatar = "0"
	}

	user, err := s.storage.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	telegramID := fmt.Sprintf("demo_%d", time.Now().UnixMilli())
	user, err = s.storage.CreateUser(ctx, &models.User{
		TelegramID: &telegramID,
		Username:   username,
		Avatar:     avatar,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// TelegramAuth finds or creates a user from an externally verified Telegram
// identity, refreshing the profile fields on every login.
func (s *UserService) TelegramAuth(ctx context.Context, telegramID, username string, firstName, lastName *string) (*models.User, error) {
	if telegramID == "" {
		return nil, fmt.Errorf("%w: telegram id is required", ErrValidation)
	}
	if username == "" {
		username = "User" + telegramID
	}

	user, err := s.storage.GetUserByTelegramID(ctx, telegramID)
	if errors.Is(err, repository.ErrNotFound) {
		avatar := strconv.Itoa(rand.Intn(4))
		user, err = s.storage.CreateUser(ctx, &models.User{
			TelegramID: &telegramID,
			Username:   username,
			FirstName:  firstName,
			LastName:   lastName,
			Avatar:     avatar,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	updated, err := s.storage.UpdateUser(ctx, user.ID, repository.UserUpdate{
		Username:  &username,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return updated, nil
}

// GetUser fetches a user by id
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.storage.GetUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return user, err
}

// SearchUsers returns users whose username contains the query, with the
// synthetic test partner always included so a solo user can pair up.
func (s *UserService) SearchUsers(ctx context.Context, query string, limit int) ([]*models.User, error) {
	users, err := s.storage.SearchUsersByUsername(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	hasSynthetic := false
	for _, user := range users {
		if user.ID == repository.SyntheticPartnerID {
			hasSynthetic = true
			break
		}
	}
	if !hasSynthetic {
		if synthetic, err := s.storage.GetUser(ctx, repository.SyntheticPartnerID); err == nil {
			users = append([]*models.User{synthetic}, users...)
		}
	}

	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
