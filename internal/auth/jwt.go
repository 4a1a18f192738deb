package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTService authenticates requests carrying HS256 bearer tokens.
type JWTService struct {
	secret   []byte
	audience string
	issuer   string
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewJWTService validates the settings and builds the service. audience and issuer are
// optional; when set, tokens must carry them.
func NewJWTService(secret, audience, issuer string, ttl time.Duration, logger *zap.Logger) (*JWTService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("missing JWT secret")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTService{
		secret:   []byte(secret),
		audience: strings.TrimSpace(audience),
		issuer:   strings.TrimSpace(issuer),
		ttl:      ttl,
		logger:   logger.Named("auth"),
		now:      time.Now,
	}, nil
}

// IssueToken signs a token for username and returns it with its expiry.
func (s *JWTService) IssueToken(username string) (string, time.Time, error) {
	if username == "" {
		return "", time.Time{}, errors.New("username required")
	}
	now := s.now().UTC()
	expires := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Login validates the bearer token and records the subject on the request.
func (s *JWTService) Login(c *gin.Context) bool {
	tokenString, err := extractBearerToken(c.Request.Header.Get("Authorization"))
	if err != nil {
		unauthorized(c, err.Error())
		return false
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		s.logger.Debug("token rejected", zap.Error(err))
		unauthorized(c, "invalid token")
		return false
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		unauthorized(c, "invalid issuer")
		return false
	}
	if s.audience != "" && !containsAudience(claims.Audience, s.audience) {
		unauthorized(c, "invalid audience")
		return false
	}
	if claims.Subject == "" {
		unauthorized(c, "missing subject")
		return false
	}

	withUsername(c, claims.Subject)
	return true
}

// Username returns the identity established by Login for this request.
func (s *JWTService) Username(c *gin.Context) (string, bool) {
	return usernameFromGin(c)
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

func containsAudience(claims jwt.ClaimStrings, expected string) bool {
	for _, aud := range claims {
		if aud == expected {
			return true
		}
	}
	return false
}
