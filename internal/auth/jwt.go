package auth

import (
	"errors"
	"fmt"
	"time"

	"workday/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims identify a session. RegisteredClaims.ID is the session id the
// attendance engine correlates clock-in and clock-out with.
type Claims struct {
	UserID    uint   `json:"user_id"`
	CompanyID uint   `json:"company_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// SessionID returns the token's session correlation id.
func (c *Claims) SessionID() string {
	return c.ID
}

func GenerateAccessToken(cfg *config.JWTConfig, userID, companyID uint, email, role string) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		CompanyID: companyID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.AccessSecret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

var ErrInvalidToken = errors.New("invalid token")

func ParseAccessToken(cfg *config.JWTConfig, tokenString string) (*Claims, error) {
	return parse(cfg, tokenString)
}

// ParseSessionToken verifies the signature of a possibly expired token.
// Logout uses it to learn who is leaving after the session timed out.
func ParseSessionToken(cfg *config.JWTConfig, tokenString string) (*Claims, error) {
	return parse(cfg, tokenString, jwt.WithoutClaimsValidation())
}

func parse(cfg *config.JWTConfig, tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.AccessSecret), nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 || claims.CompanyID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
