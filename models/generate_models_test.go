package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	return db
}

func TestColumnDriftReport(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	report, err := ColumnDriftReport(db)
	require.NoError(t, err)
	assert.Equal(t, []string{}, report["blogs"])

	require.NoError(t, db.Exec("ALTER TABLE blogs ADD COLUMN legacy_views integer").Error)

	report, err = ColumnDriftReport(db)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy_views"}, report["blogs"])
}

func TestColumnDriftReport_SkipsMissingTables(t *testing.T) {
	report, err := ColumnDriftReport(openTestDB(t))
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestBeforeCreateAssignsID(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	blog := &Blog{Title: "t", Content: "c", Category: "news", Slug: "t", MetaTitle: "t", MetaDesc: "c"}
	require.NoError(t, db.Create(blog).Error)
	assert.NotEqual(t, uuid.Nil, blog.ID)
	assert.NotNil(t, blog.Tags)
}
