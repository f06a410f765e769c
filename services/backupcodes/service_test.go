package backupcodes

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AlessandroSilveira/PlanWriter-sub001/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *testutils.FakeClock) {
	t.Helper()
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &BackupCode{})
	clk := testutils.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewService(cfg, db, clk, nil), db, clk
}

func TestService_Replace(t *testing.T) {
	service, db, _ := newTestService(t)
	ctx := context.Background()

	t.Run("generates the configured set", func(t *testing.T) {
		codes, err := service.Replace(ctx, 123)

		require.NoError(t, err)
		require.Len(t, codes, 8)

		seen := make(map[string]bool)
		for _, code := range codes {
			assert.Len(t, code, 9)
			assert.Equal(t, byte('-'), code[4])
			for _, r := range strings.ReplaceAll(code, "-", "") {
				assert.Contains(t, Alphabet, string(r))
			}
			assert.False(t, seen[code], "codes must be unique")
			seen[code] = true
		}

		// Ambiguous characters never appear.
		joined := strings.Join(codes, "")
		for _, forbidden := range []string{"0", "O", "1", "I"} {
			assert.NotContains(t, joined, forbidden)
		}

		var rows []BackupCode
		require.NoError(t, db.Where("user_id = ?", 123).Find(&rows).Error)
		require.Len(t, rows, 8)
		for _, row := range rows {
			assert.False(t, row.IsUsed)
			assert.Len(t, row.CodeHash, 64)
			for _, code := range codes {
				assert.NotEqual(t, code, row.CodeHash)
			}
		}
	})

	t.Run("replacement invalidates the old set", func(t *testing.T) {
		oldCodes, err := service.Replace(ctx, 456)
		require.NoError(t, err)

		newCodes, err := service.Replace(ctx, 456)
		require.NoError(t, err)

		err = service.Consume(ctx, 456, oldCodes[0])
		testutils.AssertErrorType(t, ErrCodeInvalid, err)

		assert.NoError(t, service.Consume(ctx, 456, newCodes[0]))
	})
}

func TestService_Consume(t *testing.T) {
	ctx := context.Background()

	t.Run("a code is consumed exactly once", func(t *testing.T) {
		service, db, clk := newTestService(t)

		codes, err := service.Replace(ctx, 123)
		require.NoError(t, err)

		require.NoError(t, service.Consume(ctx, 123, codes[0]))

		var row BackupCode
		require.NoError(t, db.Where("user_id = ? AND code_hash = ?", 123, HashCode(codes[0])).First(&row).Error)
		assert.True(t, row.IsUsed)
		require.NotNil(t, row.UsedAt)
		assert.Equal(t, clk.Now(), row.UsedAt.UTC())

		err = service.Consume(ctx, 123, codes[0])
		testutils.AssertErrorType(t, ErrCodeInvalid, err)
	})

	t.Run("formatting and case are ignored", func(t *testing.T) {
		service, _, _ := newTestService(t)

		codes, err := service.Replace(ctx, 123)
		require.NoError(t, err)

		mangled := strings.ToLower(strings.ReplaceAll(codes[0], "-", " "))
		assert.NoError(t, service.Consume(ctx, 123, mangled))
	})

	t.Run("unknown code rejected", func(t *testing.T) {
		service, _, _ := newTestService(t)

		_, err := service.Replace(ctx, 123)
		require.NoError(t, err)

		err = service.Consume(ctx, 123, "ZZZZ-ZZZZ")
		testutils.AssertErrorType(t, ErrCodeInvalid, err)
	})

	t.Run("another user's code rejected", func(t *testing.T) {
		service, _, _ := newTestService(t)

		codes, err := service.Replace(ctx, 123)
		require.NoError(t, err)

		err = service.Consume(ctx, 456, codes[0])
		testutils.AssertErrorType(t, ErrCodeInvalid, err)
	})

	t.Run("empty input rejected", func(t *testing.T) {
		service, _, _ := newTestService(t)

		testutils.AssertErrorType(t, ErrCodeInvalid, service.Consume(ctx, 123, ""))
		testutils.AssertErrorType(t, ErrCodeInvalid, service.Consume(ctx, 123, "--- ---"))
	})
}

func TestService_Consume_Concurrent(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	codes, err := service.Replace(ctx, 123)
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	wg.Add(attempts)

	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		go func(n int) {
			defer wg.Done()
			errs[n] = service.Consume(ctx, 123, codes[0])
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "a backup code must be consumable exactly once")
}

func TestService_Remaining(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	codes, err := service.Replace(ctx, 123)
	require.NoError(t, err)

	remaining, err := service.Remaining(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, int64(8), remaining)

	require.NoError(t, service.Consume(ctx, 123, codes[0]))

	remaining, err = service.Remaining(ctx, 123)
	require.NoError(t, err)
	assert.Equal(t, int64(7), remaining)
}

func TestService_RemoveAll(t *testing.T) {
	service, db, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Replace(ctx, 123)
	require.NoError(t, err)

	require.NoError(t, service.RemoveAll(ctx, 123))

	var count int64
	require.NoError(t, db.Model(&BackupCode{}).Where("user_id = ?", 123).Count(&count).Error)
	assert.Zero(t, count)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABCD2345", Normalize("abcd-2345"))
	assert.Equal(t, "ABCD2345", Normalize(" AB cd 23-45 "))
	assert.Equal(t, "", Normalize("-- --"))
}

func TestHashCode(t *testing.T) {
	assert.Equal(t, HashCode("ABCD-2345"), HashCode("abcd2345"))
	assert.NotEqual(t, HashCode("ABCD-2345"), HashCode("ABCD-2346"))
	assert.Len(t, HashCode("ABCD-2345"), 64)
}
