package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/leaf-check/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("username must be 3-64 characters of letters, digits, '.', '_' or '-'")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrUsernameTaken      = repository.ErrUsernameTaken
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,64}$`)

// UserStore persists accounts; *repository.UserRepository is the production store.
type UserStore interface {
	Create(ctx context.Context, user *repository.User) error
	FindByUsername(ctx context.Context, username string) (*repository.User, error)
}

// Accounts registers users and exchanges credentials for tokens.
type Accounts struct {
	store  UserStore
	tokens *JWTService
	logger *zap.Logger
	cost   int
}

// NewAccounts wires the account flow to its store and token issuer.
func NewAccounts(store UserStore, tokens *JWTService, logger *zap.Logger) *Accounts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accounts{
		store:  store,
		tokens: tokens,
		logger: logger.Named("accounts"),
		cost:   bcrypt.DefaultCost,
	}
}

// Register creates an account with a bcrypt password hash.
func (a *Accounts) Register(ctx context.Context, username, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.store.Create(ctx, &repository.User{Username: username, PasswordHash: string(hash)}); err != nil {
		return err
	}
	a.logger.Info("account registered", zap.String("username", username))
	return nil
}

// Authenticate checks the credentials and issues a bearer token.
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := a.store.FindByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.logger.Info("login rejected", zap.String("username", user.Username))
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.tokens.IssueToken(user.Username)
}
