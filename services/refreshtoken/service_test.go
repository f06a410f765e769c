package refreshtoken

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockJWTService struct {
	generateTokenFunc func(userID uint) (string, error)
}

func (m *mockJWTService) GenerateToken(userID uint) (string, error) {
	if m.generateTokenFunc != nil {
		return m.generateTokenFunc(userID)
	}
	return "mock-access-token", nil
}

func (m *mockJWTService) AccessExpirySeconds() int {
	return 900
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *testutils.FakeClock) {
	t.Helper()
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &RefreshToken{})
	clk := testutils.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewService(db, cfg, clk, nil, nil), db, clk
}

func testSessionInfo() SessionInfo {
	return SessionInfo{
		OriginAddress: "192.0.2.1",
		UserAgent:     "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
	}
}

func TestService_Issue(t *testing.T) {
	service, db, clk := newTestService(t)
	ctx := context.Background()

	t.Run("creates a new family", func(t *testing.T) {
		data, err := service.Issue(ctx, 123, testSessionInfo())

		require.NoError(t, err)
		assert.NotEmpty(t, data.Token)
		assert.NotEmpty(t, data.SessionID)
		assert.NotEmpty(t, data.FamilyID)
		assert.Equal(t, clk.Now().Add(30*24*time.Hour), data.ExpiresAt)

		var row RefreshToken
		require.NoError(t, db.Where("id = ?", data.SessionID).First(&row).Error)
		assert.Equal(t, uint(123), row.UserID)
		assert.Equal(t, data.FamilyID, row.FamilyID)
		assert.Nil(t, row.ParentID)
		assert.Nil(t, row.RevokedAt)
		assert.NotEqual(t, data.Token, row.TokenHash)
		assert.Equal(t, "192.0.2.1", row.CreatedByIP)
		assert.Contains(t, row.Device, "Firefox")
	})

	t.Run("two logins get distinct families", func(t *testing.T) {
		first, err := service.Issue(ctx, 456, testSessionInfo())
		require.NoError(t, err)
		second, err := service.Issue(ctx, 456, testSessionInfo())
		require.NoError(t, err)

		assert.NotEqual(t, first.FamilyID, second.FamilyID)
		assert.NotEqual(t, first.Token, second.Token)
	})
}

func TestService_Refresh(t *testing.T) {
	ctx := context.Background()
	mockJWT := &mockJWTService{}

	t.Run("successful rotation", func(t *testing.T) {
		service, db, clk := newTestService(t)

		data, err := service.Issue(ctx, 123, testSessionInfo())
		require.NoError(t, err)

		clk.Advance(time.Hour)

		result, err := service.Refresh(ctx, data.Token, testSessionInfo(), mockJWT)

		require.NoError(t, err)
		assert.Equal(t, "mock-access-token", result.AccessToken)
		assert.Equal(t, 900, result.AccessTokenExpiresIn)
		assert.NotEmpty(t, result.RefreshToken)
		assert.NotEqual(t, data.Token, result.RefreshToken)
		assert.Equal(t, clk.Now().Add(30*24*time.Hour), result.RefreshTokenExpiresAt)
		assert.Equal(t, uint(123), result.UserID)

		var old RefreshToken
		require.NoError(t, db.Where("id = ?", data.SessionID).First(&old).Error)
		require.NotNil(t, old.RevokedAt)
		assert.Equal(t, ReasonRotated, old.RevokedReason)
		require.NotNil(t, old.ReplacedByID)
		assert.Equal(t, result.SessionID, *old.ReplacedByID)
		require.NotNil(t, old.LastUsedAt)
		assert.Equal(t, clk.Now(), old.LastUsedAt.UTC())

		var child RefreshToken
		require.NoError(t, db.Where("id = ?", result.SessionID).First(&child).Error)
		assert.Equal(t, data.FamilyID, child.FamilyID)
		require.NotNil(t, child.ParentID)
		assert.Equal(t, data.SessionID, *child.ParentID)
		assert.Nil(t, child.RevokedAt)
	})

	t.Run("unknown token fails with generic error", func(t *testing.T) {
		service, _, _ := newTestService(t)

		result, err := service.Refresh(ctx, "never-issued", testSessionInfo(), mockJWT)

		assert.Nil(t, result)
		testutils.AssertErrorType(t, ErrSessionInvalid, err)
	})

	t.Run("reuse burns the whole family", func(t *testing.T) {
		service, db, _ := newTestService(t)

		data, err := service.Issue(ctx, 123, testSessionInfo())
		require.NoError(t, err)

		first, err := service.Refresh(ctx, data.Token, testSessionInfo(), mockJWT)
		require.NoError(t, err)

		// Presenting the consumed token again is the theft signal.
		result, err := service.Refresh(ctx, data.Token, testSessionInfo(), mockJWT)
		assert.Nil(t, result)
		testutils.AssertErrorType(t, ErrSessionInvalid, err)

		var replacement RefreshToken
		require.NoError(t, db.Where("id = ?", first.SessionID).First(&replacement).Error)
		require.NotNil(t, replacement.RevokedAt)
		assert.Equal(t, ReasonReuseDetected, replacement.RevokedReason)

		// The replacement token is dead too.
		result, err = service.Refresh(ctx, first.RefreshToken, testSessionInfo(), mockJWT)
		assert.Nil(t, result)
		testutils.AssertErrorType(t, ErrSessionInvalid, err)
	})

	t.Run("expired token fails without burning the family", func(t *testing.T) {
		service, db, clk := newTestService(t)

		data, err := service.Issue(ctx, 123, testSessionInfo())
		require.NoError(t, err)

		clk.Advance(31 * 24 * time.Hour)

		result, err := service.Refresh(ctx, data.Token, testSessionInfo(), mockJWT)
		assert.Nil(t, result)
		testutils.AssertErrorType(t, ErrSessionInvalid, err)

		var row RefreshToken
		require.NoError(t, db.Where("id = ?", data.SessionID).First(&row).Error)
		assert.Nil(t, row.RevokedAt)
	})

	t.Run("rotated chain stays in one family", func(t *testing.T) {
		service, db, _ := newTestService(t)

		data, err := service.Issue(ctx, 777, testSessionInfo())
		require.NoError(t, err)

		token := data.Token
		for i := 0; i < 3; i++ {
			result, err := service.Refresh(ctx, token, testSessionInfo(), mockJWT)
			require.NoError(t, err)
			token = result.RefreshToken
		}

		var rows []RefreshToken
		require.NoError(t, db.Where("family_id = ?", data.FamilyID).Find(&rows).Error)
		assert.Len(t, rows, 4)

		active := 0
		for _, row := range rows {
			if row.RevokedAt == nil {
				active++
			}
		}
		assert.Equal(t, 1, active)
	})
}

func TestService_Refresh_Concurrent(t *testing.T) {
	service, db, _ := newTestService(t)
	ctx := context.Background()
	mockJWT := &mockJWTService{}

	data, err := service.Issue(ctx, 123, testSessionInfo())
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	wg.Add(attempts)

	results := make([]*RotationResult, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = service.Refresh(ctx, data.Token, testSessionInfo(), mockJWT)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i := 0; i < attempts; i++ {
		if errs[i] == nil {
			successes++
			assert.NotNil(t, results[i])
		} else {
			testutils.AssertErrorType(t, ErrSessionInvalid, errs[i])
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent refresh must win")

	// No duplicate active token: losers burned the family, so at most
	// one row can remain unrevoked and the original is always revoked.
	var old RefreshToken
	require.NoError(t, db.Where("id = ?", data.SessionID).First(&old).Error)
	assert.NotNil(t, old.RevokedAt)

	var activeCount int64
	require.NoError(t, db.Model(&RefreshToken{}).
		Where("family_id = ? AND revoked_at IS NULL", data.FamilyID).
		Count(&activeCount).Error)
	assert.LessOrEqual(t, activeCount, int64(1))
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes the family", func(t *testing.T) {
		service, db, _ := newTestService(t)

		data, err := service.Issue(ctx, 123, testSessionInfo())
		require.NoError(t, err)

		require.NoError(t, service.Logout(ctx, data.Token, testSessionInfo()))

		var row RefreshToken
		require.NoError(t, db.Where("id = ?", data.SessionID).First(&row).Error)
		require.NotNil(t, row.RevokedAt)
		assert.Equal(t, ReasonLogout, row.RevokedReason)
	})

	t.Run("unknown token is idempotent success", func(t *testing.T) {
		service, _, _ := newTestService(t)

		assert.NoError(t, service.Logout(ctx, "never-issued", testSessionInfo()))
	})

	t.Run("double logout is idempotent", func(t *testing.T) {
		service, _, _ := newTestService(t)

		data, err := service.Issue(ctx, 123, testSessionInfo())
		require.NoError(t, err)

		require.NoError(t, service.Logout(ctx, data.Token, testSessionInfo()))
		assert.NoError(t, service.Logout(ctx, data.Token, testSessionInfo()))
	})
}

func TestService_LogoutAll(t *testing.T) {
	service, db, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := service.Issue(ctx, 123, testSessionInfo())
		require.NoError(t, err)
	}
	other, err := service.Issue(ctx, 456, testSessionInfo())
	require.NoError(t, err)

	count, err := service.LogoutAll(ctx, 123, testSessionInfo())

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	var remaining int64
	require.NoError(t, db.Model(&RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", 123).
		Count(&remaining).Error)
	assert.Zero(t, remaining)

	var otherRow RefreshToken
	require.NoError(t, db.Where("id = ?", other.SessionID).First(&otherRow).Error)
	assert.Nil(t, otherRow.RevokedAt)

	count, err = service.LogoutAll(ctx, 123, testSessionInfo())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_ActiveSessions(t *testing.T) {
	service, _, clk := newTestService(t)
	ctx := context.Background()

	first, err := service.Issue(ctx, 123, testSessionInfo())
	require.NoError(t, err)
	_, err = service.Issue(ctx, 123, testSessionInfo())
	require.NoError(t, err)

	sessions, err := service.ActiveSessions(ctx, 123)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, service.Logout(ctx, first.Token, testSessionInfo()))

	sessions, err = service.ActiveSessions(ctx, 123)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	clk.Advance(31 * 24 * time.Hour)

	sessions, err = service.ActiveSessions(ctx, 123)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestService_CleanupExpired(t *testing.T) {
	service, db, clk := newTestService(t)
	ctx := context.Background()

	data, err := service.Issue(ctx, 123, testSessionInfo())
	require.NoError(t, err)

	// Inside the retention window expired rows are kept for forensics.
	clk.Advance(31 * 24 * time.Hour)
	require.NoError(t, service.CleanupExpired(ctx))

	var count int64
	require.NoError(t, db.Model(&RefreshToken{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	clk.Advance(120 * 24 * time.Hour)
	require.NoError(t, service.CleanupExpired(ctx))

	require.NoError(t, db.Model(&RefreshToken{}).Count(&count).Error)
	assert.Zero(t, count)

	var row RefreshToken
	err = db.Where("id = ?", data.SessionID).First(&row).Error
	assert.Error(t, err)
}
