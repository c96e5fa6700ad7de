package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ss-345/sweet-shop/internal/core/domain"
	"github.com/ss-345/sweet-shop/internal/core/ports"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// tokenClaims is the JWT payload: {id, role, email} plus registered claims.
type tokenClaims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithClock replaces time.Now for token issuance and verification.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger; the default discards output.
func WithLogger(log zerolog.Logger) AuthOption {
	return func(s *AuthService) { s.log = log }
}

// AuthService implements registration, login and bearer token handling.
type AuthService struct {
	repo       ports.UserRepository
	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
	log        zerolog.Logger

	// dummyHash is compared against on unknown emails so that login time
	// does not reveal whether an account exists.
	dummyHash []byte
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(repo ports.UserRepository, jwtSecret string, tokenTTL time.Duration, opts ...AuthOption) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	s := &AuthService{
		repo:       repo,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	// Error is impossible for a fixed short password and a clamped cost.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("sweet-shop-dummy"), s.bcryptCost)
	return s
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	case email == "":
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	case in.Password == "":
		return nil, fmt.Errorf("%w: password is required", domain.ErrValidation)
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password is too long", domain.ErrValidation)
		}
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	token, err := s.generateToken(created)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", created.ID).Str("role", string(created.Role)).Msg("user registered")
	return &ports.AuthResult{Token: token, User: created.Public()}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}
	return &ports.AuthResult{Token: token, User: user.Public()}, nil
}

// VerifyToken checks signature, algorithm and expiry and returns the claims.
func (s *AuthService) VerifyToken(token string) (*domain.TokenClaims, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token missing identity", domain.ErrUnauthenticated)
	}

	return &domain.TokenClaims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      domain.Role(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// CurrentUser resolves the live user behind token.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.PublicUser, error) {
	claims, err := s.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	user, err := s.lookup(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

// Authorize re-reads the user so that deleted accounts and role changes take
// effect immediately; the role embedded in the token is never trusted.
func (s *AuthService) Authorize(ctx context.Context, claims *domain.TokenClaims, allowed ...domain.Role) (*domain.User, error) {
	if claims == nil || claims.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	user, err := s.lookup(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !domain.RoleAllowed(user.Role, allowed) {
		return nil, domain.ErrForbidden
	}
	return user, nil
}

func (s *AuthService) lookup(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID: user.ID,
		Role:   string(user.Role),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
