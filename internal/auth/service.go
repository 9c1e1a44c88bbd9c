package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"chat-server/internal/config"
	"chat-server/internal/database"
	"chat-server/internal/models"
	"chat-server/pkg/ident"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// maxNameAttempts bounds the retry loop when a freshly drawn display name
// collides with an existing one.
const maxNameAttempts = 5

type Service struct {
	store database.Store
	cfg   *config.Config
}

func NewService(store database.Store, cfg *config.Config) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
	}
}

// Signup validates the credentials, generates a display username from the
// word list and creates the user. The caller is responsible for main-room
// membership and the NewUser announcement.
func (s *Service) Signup(ctx context.Context, email, password string) (*models.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	_, err := s.store.FindUserByLogin(ctx, email)
	if err == nil {
		return nil, database.ErrEmailTaken
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to check login username: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		user := &models.User{
			UserID:          ident.New(),
			LoginUsername:   email,
			DisplayUsername: RandomUsername(),
			PasswordHash:    hash,
			Status:          models.StatusOffline,
			Rooms:           []string{},
		}

		err := s.store.CreateUser(ctx, user)
		if errors.Is(err, database.ErrUsernameTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return user, nil
	}

	return nil, fmt.Errorf("failed to draw an unused display username after %d attempts", maxNameAttempts)
}

// Login verifies the password against the stored hash. Absent users and bad
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.FindUserByLogin(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Remove sensitive data
	user.PasswordHash = ""
	return user, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// GenerateToken issues a bearer token for non-browser clients; the session
// cookie remains the primary credential.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.UserID,
		"username": user.DisplayUsername,
		"exp":      time.Now().Add(s.cfg.JWT.ExpiresIn).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.JWT.Secret)
}

func (s *Service) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*jwt.MapClaims); ok && token.Valid {
		return *claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func (s *Service) UserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid user ID in token")
	}
	return s.store.FindUserByID(ctx, userID)
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("missing required fields")
	}
	if !isValidEmail(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
