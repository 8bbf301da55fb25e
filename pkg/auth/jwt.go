package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims carried by both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenType string    `json:"token_type"`
}

// Subject is the identity a token is minted for.
type Subject struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

type JWTService interface {
	GenerateAccessToken(sub Subject) (string, error)
	GenerateRefreshToken(sub Subject) (string, error)
	ValidateToken(token string) (*Claims, error)
	ValidateRefreshToken(token string) (*Claims, error)
}

type Config struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type jwtService struct {
	cfg Config
	now func() time.Time
}

func NewJWTService(cfg Config) JWTService {
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.Secret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &jwtService{cfg: cfg, now: time.Now}
}

func (s *jwtService) GenerateAccessToken(sub Subject) (string, error) {
	return s.sign(sub, TokenTypeAccess, s.cfg.AccessTTL, s.cfg.Secret)
}

func (s *jwtService) GenerateRefreshToken(sub Subject) (string, error) {
	return s.sign(sub, TokenTypeRefresh, s.cfg.RefreshTTL, s.cfg.RefreshSecret)
}

func (s *jwtService) ValidateToken(token string) (*Claims, error) {
	return s.parse(token, TokenTypeAccess, s.cfg.Secret)
}

func (s *jwtService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.parse(token, TokenTypeRefresh, s.cfg.RefreshSecret)
}

func (s *jwtService) sign(sub Subject, tokenType string, ttl time.Duration, secret string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sub.UserID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    sub.UserID,
		Email:     sub.Email,
		Role:      sub.Role,
		TokenType: tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (s *jwtService) parse(token, tokenType, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
