package jwt

import (
	"testing"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/testutils"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *testutils.FakeClock) {
	cfg := testutils.GetTestConfig()
	clk := testutils.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewService(cfg, clk, nil), clk
}

func TestService_GenerateAndValidate(t *testing.T) {
	service, _ := newTestService(t)

	tokenString, err := service.GenerateToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := service.ValidateToken(tokenString)
	require.NoError(t, err)

	assert.Equal(t, uint(42), claims.UserID)
	assert.NotEmpty(t, claims.JTI)
	assert.Equal(t, claims.JTI, claims.ID)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.Equal(t, "42", claims.Subject)
}

func TestService_GenerateToken_UniqueJTI(t *testing.T) {
	service, _ := newTestService(t)

	first, err := service.GenerateToken(1)
	require.NoError(t, err)
	second, err := service.GenerateToken(1)
	require.NoError(t, err)

	firstClaims, err := service.ValidateToken(first)
	require.NoError(t, err)
	secondClaims, err := service.ValidateToken(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.JTI, secondClaims.JTI)
}

func TestService_ValidateToken_Expired(t *testing.T) {
	service, clk := newTestService(t)

	tokenString, err := service.GenerateToken(42)
	require.NoError(t, err)

	clk.Advance(16 * time.Minute)

	_, err = service.ValidateToken(tokenString)
	testutils.AssertErrorType(t, ErrExpiredToken, err)
}

func TestService_ValidateToken_Tampered(t *testing.T) {
	service, _ := newTestService(t)

	tokenString, err := service.GenerateToken(42)
	require.NoError(t, err)

	_, err = service.ValidateToken(tokenString + "x")
	require.Error(t, err)

	_, err = service.ValidateToken("not.a.token")
	require.Error(t, err)

	_, err = service.ValidateToken("")
	require.Error(t, err)
}

func TestService_ValidateToken_WrongKey(t *testing.T) {
	service, _ := newTestService(t)

	otherCfg := testutils.GetTestConfig()
	otherCfg.JWT.SecretKey = "another-secret-key-32-chars-long"
	other := NewService(otherCfg, testutils.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)), nil)

	tokenString, err := other.GenerateToken(42)
	require.NoError(t, err)

	_, err = service.ValidateToken(tokenString)
	testutils.AssertErrorType(t, ErrInvalidSignature, err)
}

func TestService_ValidateToken_NoneAlgorithmRejected(t *testing.T) {
	service, clk := newTestService(t)

	claims := Claims{
		UserID: 42,
		JTI:    "fake-jti",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(clk.Now().Add(time.Hour)),
			IssuedAt:  jwtlib.NewNumericDate(clk.Now()),
		},
	}

	unsigned, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).
		SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.ValidateToken(unsigned)
	require.Error(t, err)
}

type stubRevocation struct {
	revoked bool
}

func (s *stubRevocation) IsJTIRevoked(jti string, userID uint, issuedAt time.Time) (bool, error) {
	return s.revoked, nil
}

func TestService_ValidateToken_Revoked(t *testing.T) {
	service, _ := newTestService(t)
	revocation := &stubRevocation{}
	service.SetRevocationService(revocation)

	tokenString, err := service.GenerateToken(42)
	require.NoError(t, err)

	_, err = service.ValidateToken(tokenString)
	require.NoError(t, err)

	revocation.revoked = true
	_, err = service.ValidateToken(tokenString)
	testutils.AssertErrorType(t, ErrTokenRevoked, err)
}

func TestService_ExtractJTI(t *testing.T) {
	service, _ := newTestService(t)

	tokenString, err := service.GenerateToken(42)
	require.NoError(t, err)

	jti, err := service.ExtractJTI(tokenString)
	require.NoError(t, err)
	assert.NotEmpty(t, jti)

	claims, err := service.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, claims.JTI, jti)
}

func TestService_AccessExpirySeconds(t *testing.T) {
	service, _ := newTestService(t)
	assert.Equal(t, 900, service.AccessExpirySeconds())
}
