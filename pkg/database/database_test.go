package database

import (
	"testing"

	"skillcert_backend/internal/config"
	"skillcert_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrateSeedsOnce(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var tests []model.SkillTest
	require.NoError(t, db.Preload("Questions").Find(&tests).Error)
	require.Len(t, tests, 2)
	for _, st := range tests {
		assert.True(t, st.IsPublished)
		assert.NotEmpty(t, st.Questions)
		for _, q := range st.Questions {
			if q.Kind == model.MultipleChoice {
				assert.Contains(t, string(q.Options), q.Answer)
			}
		}
	}
}

func TestInitRedisWithoutHost(t *testing.T) {
	rdb, err := InitRedis(&config.RedisConfig{})
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
