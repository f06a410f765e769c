package revocation

import (
	"testing"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *testutils.FakeClock) {
	db := testutils.SetupTestDB(t, &RevokedJTI{})
	cfg := testutils.GetTestConfig()
	clk := testutils.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewService(cfg, db, clk, nil), db, clk
}

func TestService_RevokeJTI(t *testing.T) {
	service, _, clk := newTestService(t)

	expiresAt := clk.Now().Add(15 * time.Minute)
	require.NoError(t, service.RevokeJTI("jti-1", expiresAt))

	revoked, err := service.IsJTIRevoked("jti-1", 1, clk.Now())
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = service.IsJTIRevoked("jti-other", 1, clk.Now())
	require.NoError(t, err)
	assert.False(t, revoked)

	// A revocation record past the token's own expiry is moot.
	clk.Advance(16 * time.Minute)
	revoked, err = service.IsJTIRevoked("jti-1", 1, clk.Now())
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestService_RevokeAllUserTokens(t *testing.T) {
	service, _, clk := newTestService(t)

	issuedAt := clk.Now()
	clk.Advance(time.Minute)

	require.NoError(t, service.RevokeAllUserTokens(7, clk.Now()))

	revoked, err := service.IsJTIRevoked("any-jti", 7, issuedAt)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Tokens minted after the watermark survive.
	revoked, err = service.IsJTIRevoked("new-jti", 7, clk.Now().Add(time.Second))
	require.NoError(t, err)
	assert.False(t, revoked)

	// Other users are untouched.
	revoked, err = service.IsJTIRevoked("any-jti", 8, issuedAt)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestService_WatermarkNeverMovesBackwards(t *testing.T) {
	service, _, clk := newTestService(t)

	issuedAt := clk.Now()
	clk.Advance(time.Minute)
	require.NoError(t, service.RevokeAllUserTokens(7, clk.Now()))

	// An older watermark must not shrink the revoked window.
	require.NoError(t, service.RevokeAllUserTokens(7, issuedAt))

	revoked, err := service.IsJTIRevoked("any-jti", 7, issuedAt.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestService_PersistsAcrossRestart(t *testing.T) {
	service, db, clk := newTestService(t)

	require.NoError(t, service.RevokeJTI("jti-1", clk.Now().Add(15*time.Minute)))

	// A fresh instance over the same database sees the revocation.
	reloaded := NewService(testutils.GetTestConfig(), db, clk, nil)
	revoked, err := reloaded.IsJTIRevoked("jti-1", 1, clk.Now())
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestService_CleanupExpired(t *testing.T) {
	service, db, clk := newTestService(t)

	require.NoError(t, service.RevokeJTI("jti-live", clk.Now().Add(15*time.Minute)))
	require.NoError(t, service.RevokeJTI("jti-dead", clk.Now().Add(time.Minute)))

	clk.Advance(5 * time.Minute)
	require.NoError(t, service.CleanupExpired())

	var count int64
	require.NoError(t, db.Model(&RevokedJTI{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	revoked, err := service.IsJTIRevoked("jti-live", 1, clk.Now())
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestService_Disabled(t *testing.T) {
	db := testutils.SetupTestDB(t, &RevokedJTI{})
	cfg := testutils.GetTestConfig()
	cfg.Revocation.Enabled = false
	clk := testutils.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	service := NewService(cfg, db, clk, nil)

	require.NoError(t, service.RevokeJTI("jti-1", clk.Now().Add(15*time.Minute)))

	revoked, err := service.IsJTIRevoked("jti-1", 1, clk.Now())
	require.NoError(t, err)
	assert.False(t, revoked)
}
