package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the messenger access token payload.
// CompanyID is the default tenant when the client sends no scope header.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	Nickname  string `json:"nickname,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	Level     int    `json:"level,omitempty"`
}

// Manager issues and verifies HMAC-signed tokens
type Manager struct {
	secretKey []byte
	expiresIn time.Duration
	refreshIn time.Duration
}

// NewManager creates a new JWT manager. expiresIn/refreshIn are in seconds.
func NewManager(secret string, expiresIn, refreshIn int) *Manager {
	return &Manager{
		secretKey: []byte(secret),
		expiresIn: time.Duration(expiresIn) * time.Second,
		refreshIn: time.Duration(refreshIn) * time.Second,
	}
}

// GenerateAccessToken signs a short-lived access token
func (m *Manager) GenerateAccessToken(userID, nickname, companyID string, level int) (string, error) {
	return m.sign(userID, nickname, companyID, level, m.expiresIn)
}

// GenerateRefreshToken signs a long-lived refresh token
func (m *Manager) GenerateRefreshToken(userID string) (string, error) {
	return m.sign(userID, "", "", 0, m.refreshIn)
}

func (m *Manager) sign(userID, nickname, companyID string, level int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		Nickname:  nickname,
		CompanyID: companyID,
		Level:     level,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// VerifyToken parses and validates a token
//
//nolint:dupl // JWT 검증 로직은 표준 패턴을 따르므로 유사함
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
