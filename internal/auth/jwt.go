package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidRole  = errors.New("token carries an unknown role")
)

// Claims are the claims of an order API bearer token
type Claims struct {
	Role       domain.Role `json:"role"`
	SupplierID *uint       `json:"supplier_id,omitempty"`
	Name       string      `json:"name,omitempty"`
	Email      string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator issues and validates HS256 bearer tokens
type JWTValidator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.JWTConfig) *JWTValidator {
	ttl := cfg.TTLDuration()
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTValidator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for a user
func (v *JWTValidator) Issue(user *UserContext) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	now := v.now()
	claims := Claims{
		Role:       user.Role,
		SupplierID: user.SupplierID,
		Name:       user.DisplayName,
		Email:      user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.UserID), 10),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ValidateToken validates a token and returns user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: jwt secret is not configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if !claims.Role.IsValid() {
		return nil, ErrInvalidRole
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, fmt.Errorf("%w: invalid subject", ErrInvalidToken)
	}
	if claims.Role == domain.RoleSupplier && claims.SupplierID == nil {
		return nil, fmt.Errorf("%w: supplier token without supplier_id", ErrInvalidToken)
	}

	return &UserContext{
		UserID:      uint(userID),
		DisplayName: claims.Name,
		Email:       claims.Email,
		Role:        claims.Role,
		SupplierID:  claims.SupplierID,
	}, nil
}
