package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"chat-guard/internal/models"
)

func newTestRepository(t *testing.T) *ModerationRepository {
	db, err := Open(sqlite.Open(":memory:"), "ERROR")
	require.NoError(t, err)
	// every pooled connection would get its own in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := NewModerationRepository(db)
	require.NoError(t, repo.MigrateTable())
	return repo
}

func TestModerationRepositoryListByUser(t *testing.T) {
	assert := assert.New(t)
	repo := newTestRepository(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{models.ActionWarn, models.ActionRecall, models.ActionMute} {
		require.NoError(t, repo.Create(&models.ModerationRecord{
			Adapter:    "onebot",
			GroupID:    "100001",
			UserID:     "42",
			Action:     action,
			Patterns:   "spam",
			Violations: i + 1,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(&models.ModerationRecord{
		Adapter: "onebot", GroupID: "100001", UserID: "43", Action: models.ActionWarn, CreatedAt: base,
	}))

	records, err := repo.ListByUser("100001", "42", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(models.ActionMute, records[0].Action)
	assert.Equal(3, records[0].Violations)
	assert.Equal(models.ActionRecall, records[1].Action)

	count, err := repo.CountSince("100001", models.ActionWarn, base)
	require.NoError(t, err)
	assert.Equal(int64(2), count)
}

func TestModerationRepositoryDeleteBefore(t *testing.T) {
	assert := assert.New(t)
	repo := newTestRepository(t)

	now := time.Now()
	require.NoError(t, repo.Create(&models.ModerationRecord{
		Adapter: "telegram", GroupID: "100001", UserID: "1", Action: models.ActionWarn, CreatedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, repo.Create(&models.ModerationRecord{
		Adapter: "telegram", GroupID: "100001", UserID: "1", Action: models.ActionWarn, CreatedAt: now,
	}))

	removed, err := repo.DeleteBefore(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(int64(1), removed)

	records, err := repo.ListByUser("100001", "1", 10)
	require.NoError(t, err)
	assert.Len(records, 1)
}
