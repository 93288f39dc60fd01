// Package auth registers dashboard users and issues session tokens.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/supplychain-copilot/copilot/store"
)

// SessionTTL is how long a login token stays valid.
const SessionTTL = 24 * time.Hour

var (
	// ErrInvalidCredentials covers unknown users, wrong passwords and
	// malformed login input alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidInput       = errors.New("invalid registration")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an issued login token.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service stores users and sessions in a store.Store.
type Service struct {
	store *store.Store
	cost  int
	now   func() time.Time
}

// NewService returns a Service using bcrypt.DefaultCost.
func NewService(s *store.Store) *Service {
	return &Service{store: s, cost: bcrypt.DefaultCost, now: time.Now}
}

// ValidateUsername enforces 3-32 characters from [a-zA-Z0-9_.-].
func ValidateUsername(name string) error {
	if !usernamePattern.MatchString(name) {
		return fmt.Errorf("%w: username must be 3-32 characters of letters, digits, '_', '.' or '-'", ErrInvalidInput)
	}
	return nil
}

// ValidatePassword enforces 8-128 bytes.
func ValidatePassword(pw string) error {
	if len(pw) < 8 || len(pw) > 128 {
		return fmt.Errorf("%w: password must be 8-128 characters, got %d", ErrInvalidInput, len(pw))
	}
	return nil
}

// Register creates a user.
func (s *Service) Register(username, password string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(store.UserKey(username), u, 0); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("saving user: %w", err)
	}
	logrus.Infof("auth: registered user %s", username)
	return u, nil
}

// Login checks the password and issues a session.
func (s *Service) Login(username, password string) (*Session, error) {
	if ValidateUsername(username) != nil || ValidatePassword(password) != nil {
		return nil, ErrInvalidCredentials
	}
	var u User
	if err := s.store.Get(store.UserKey(username), &u); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &Session{
		Token:     token,
		UserID:    u.ID,
		Username:  u.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}
	if err := s.store.Put(store.SessionKey(token), sess, SessionTTL); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return sess, nil
}

// Verify returns the live session for token.
func (s *Service) Verify(token string) (*Session, error) {
	if token == "" || len(token) > 128 {
		return nil, ErrInvalidToken
	}
	var sess Session
	if err := s.store.Get(store.SessionKey(token), &sess); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if s.now().After(sess.ExpiresAt) {
		_ = s.store.Delete(store.SessionKey(token))
		return nil, ErrInvalidToken
	}
	return &sess, nil
}

// Logout drops the session. Unknown tokens are ignored.
func (s *Service) Logout(token string) error {
	if token == "" || len(token) > 128 {
		return nil
	}
	return s.store.Delete(store.SessionKey(token))
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
