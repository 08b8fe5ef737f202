// Package auth implements email and password accounts with signed session
// tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/store"
)

const (
	MinPasswordLength = 6
	// bcrypt ignores input past 72 bytes.
	MaxPasswordLength = 72

	issuer = "financas"
)

var (
	ErrEmailInUse         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must have between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Config holds the session parameters.
type Config struct {
	Secret        string
	SessionTTL    time.Duration
	RememberMeTTL time.Duration
}

// Session is an issued token.
type Session struct {
	Token      string    `json:"token"`
	UserID     string    `json:"userId"`
	ExpiresAt  time.Time `json:"expiresAt"`
	RememberMe bool      `json:"rememberMe"`
}

type claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Remember bool   `json:"rem,omitempty"`
}

// Service registers users, issues session tokens and resolves them back to
// users. Logged out tokens stay revoked until they would have expired.
type Service struct {
	users  store.UserStore
	secret []byte
	ttl    time.Duration
	longTT time.Duration
	cost   int
	now    func() time.Time
	logger *log.Logger

	mu      sync.Mutex
	revoked map[string]time.Time

	dummyHash []byte
}

type Option func(*Service)

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentAuth)
		}
	}
}

func NewService(users store.UserStore, cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.Secret) < 16 {
		return nil, errors.New("session secret must have at least 16 characters")
	}
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	if cfg.RememberMeTTL < cfg.SessionTTL {
		cfg.RememberMeTTL = cfg.SessionTTL
	}

	s := &Service{
		users:   users,
		secret:  []byte(cfg.Secret),
		ttl:     cfg.SessionTTL,
		longTT:  cfg.RememberMeTTL,
		cost:    bcrypt.DefaultCost,
		now:     time.Now,
		logger:  log.Discard(),
		revoked: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("financas-dummy-password"), s.cost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}
	s.dummyHash = hash
	return s, nil
}

// Register creates an account. The email is stored lowercased.
func (s *Service) Register(ctx context.Context, email, password string) (core.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return core.User{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, core.User{Email: email, PasswordHash: hash})
	if errors.Is(err, store.ErrDuplicate) {
		return core.User{}, ErrEmailInUse
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		log.FieldUserID, u.ID,
		log.FieldOperation, log.OpRegister)
	return u, nil
}

// Login checks the credentials and issues a session. rememberMe selects the
// longer lifetime.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (Session, core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Session{}, core.User{}, fmt.Errorf("load user: %w", err)
		}
		// Keep the response time independent of whether the account exists.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return Session{}, core.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login rejected",
			log.FieldUserID, u.ID,
			log.FieldOperation, log.OpLogin)
		return Session{}, core.User{}, ErrInvalidCredentials
	}

	sess, err := s.issue(u, rememberMe)
	if err != nil {
		return Session{}, core.User{}, err
	}

	s.logger.InfoContext(ctx, "User logged in",
		log.FieldUserID, u.ID,
		log.FieldOperation, log.OpLogin,
		"remember_me", rememberMe)
	return sess, u, nil
}

func (s *Service) issue(u core.User, rememberMe bool) (Session, error) {
	now := s.now()
	ttl := s.ttl
	if rememberMe {
		ttl = s.longTT
	}
	exp := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:    u.Email,
		Remember: rememberMe,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{Token: signed, UserID: u.ID, ExpiresAt: exp, RememberMe: rememberMe}, nil
}

// Logout revokes token. Invalid or expired tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[c.ID] = c.ExpiresAt.Time
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "User logged out",
		log.FieldUserID, c.Subject,
		log.FieldOperation, log.OpLogout)
	return nil
}

// CurrentUser resolves a session token. Any problem with the token yields
// ErrUnauthorized.
func (s *Service) CurrentUser(ctx context.Context, token string) (core.User, error) {
	c, err := s.parse(token)
	if err != nil {
		return core.User{}, ErrUnauthorized
	}

	s.mu.Lock()
	_, revoked := s.revoked[c.ID]
	s.mu.Unlock()
	if revoked {
		return core.User{}, ErrUnauthorized
	}

	u, err := s.users.UserByID(ctx, c.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return core.User{}, ErrUnauthorized
	}
	if err != nil {
		return core.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *Service) parse(token string) (*claims, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if c.ID == "" || c.Subject == "" {
		return nil, ErrUnauthorized
	}
	return c, nil
}

// NormalizeEmail trims and lowercases a bare address and rejects anything
// that is not one.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	at := strings.LastIndexByte(email, '@')
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
