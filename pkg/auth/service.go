package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/omnichat/relay/pkg/apperrors"
	"github.com/omnichat/relay/pkg/domain"
)

// UserStore is the persistence seam Service needs; satisfied by *store.UserRepo.
type UserStore interface {
	Create(ctx context.Context, u domain.User) error
	ByEmail(ctx context.Context, email string) (domain.User, error)
	ByID(ctx context.Context, id string) (domain.User, error)
}

// Service implements registration and login against a UserStore, issuing
// bearer credentials via a TokenIssuer on success.
type Service struct {
	users  UserStore
	tokens *TokenIssuer
}

// NewService builds a Service.
func NewService(users UserStore, tokens *TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens}
}

// Credential is the response shape for both register and login.
type Credential struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// Register creates a user with a bcrypt-hashed password verifier and issues
// a credential. Fails with apperrors.Conflict if the email is taken.
func (s *Service) Register(ctx context.Context, displayName, email, password string) (Credential, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Credential{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		ID:               uuid.New().String(),
		DisplayName:      displayName,
		Email:            email,
		PasswordVerifier: string(hash),
		CreatedAt:        time.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return Credential{}, err
	}
	return s.issue(u)
}

// Login verifies email+password and issues a credential on success.
// Returns apperrors.AuthInvalid for any failure, without distinguishing
// "no such user" from "wrong password" to an attacker.
func (s *Service) Login(ctx context.Context, email, password string) (Credential, error) {
	u, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.NotFound) {
			// still run CompareHashAndPassword against a fixed hash so the
			// response time doesn't leak whether the email exists.
			_ = bcrypt.CompareHashAndPassword([]byte(timingSafeDummyHash), []byte(password))
			return Credential{}, fmt.Errorf("%w: invalid credentials", apperrors.AuthInvalid)
		}
		return Credential{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordVerifier), []byte(password)); err != nil {
		return Credential{}, fmt.Errorf("%w: invalid credentials", apperrors.AuthInvalid)
	}
	return s.issue(u)
}

func (s *Service) issue(u domain.User) (Credential, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// timingSafeDummyHash is a bcrypt hash of an arbitrary fixed password, used
// only to keep login's bcrypt cost constant across the "user exists" and
// "user doesn't exist" branches.
const timingSafeDummyHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8G9t1hG0p8ifqO8sAyXqoNZvvLLCX."
