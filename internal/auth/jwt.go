package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims binds a token to the password change counter it was issued under
type JWTClaims struct {
	UserID                uuid.UUID `json:"id"`
	PasswordChangeCounter int       `json:"noOfPasswordsChanged"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies RS256 session tokens
type JWTService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	ttl        time.Duration
	now        func() time.Time
}

// NewJWTService creates a JWT service from base64-encoded PEM keys
func NewJWTService(publicKeyB64, privateKeyB64 string, ttl time.Duration) (*JWTService, error) {
	pubPEM, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	privPEM, err := base64.StdEncoding.DecodeString(privateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return NewJWTServiceFromKey(priv, pub, ttl), nil
}

// NewJWTServiceFromKey creates a JWT service from parsed keys
func NewJWTServiceFromKey(priv *rsa.PrivateKey, pub *rsa.PublicKey, ttl time.Duration) *JWTService {
	return &JWTService{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}
}

// Issue signs a token for the user at the given password change counter
func (s *JWTService) Issue(userID uuid.UUID, counter int) (string, error) {
	now := s.now()
	claims := &JWTClaims{
		UserID:                userID,
		PasswordChangeCounter: counter,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenString, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify parses a token and checks its signature and expiry. Callers treat
// every failure alike.
func (s *JWTService) Verify(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
