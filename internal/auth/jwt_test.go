package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	svc := newTestJWT(t, time.Hour)
	id := uuid.New()

	token, err := svc.Issue(id, 3)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, 3, claims.PasswordChangeCounter)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := newTestJWT(t, time.Hour)
	token, err := svc.Issue(uuid.New(), 1)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsOtherKey(t *testing.T) {
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := NewJWTServiceFromKey(other, &other.PublicKey, time.Hour)
	token, err := signer.Issue(uuid.New(), 1)
	require.NoError(t, err)

	_, err = newTestJWT(t, time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsHMAC(t *testing.T) {
	claims := &JWTClaims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = newTestJWT(t, time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := newTestJWT(t, time.Hour).Verify("not.a.token")
	assert.Error(t, err)
}

func TestNewJWTServiceFromBase64PEM(t *testing.T) {
	k := rsaKey(t)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)})
	pubDER, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	svc, err := NewJWTService(
		base64.StdEncoding.EncodeToString(pubPEM),
		base64.StdEncoding.EncodeToString(privPEM),
		time.Hour,
	)
	require.NoError(t, err)

	token, err := svc.Issue(uuid.New(), 0)
	require.NoError(t, err)
	_, err = svc.Verify(token)
	assert.NoError(t, err)

	_, err = NewJWTService("!!", "!!", time.Hour)
	assert.Error(t, err)
}
