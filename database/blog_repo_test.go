package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
	"github.com/TheBrightLayer/ChirpWhirpServer/models"
	"github.com/TheBrightLayer/ChirpWhirpServer/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *BlogRepo {
	t.Helper()
	db, err := Connect(map[string]string{
		"DB_TYPE": "sqlite",
		"DB_PATH": "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() { _ = New(db).Close() })
	return New(db).BlogRepo()
}

func newBlog(slug, category string, createdAt time.Time) *models.Blog {
	return &models.Blog{
		Title:     slug,
		Content:   "<p>" + slug + "</p>",
		Category:  category,
		Slug:      slug,
		MetaTitle: slug,
		MetaDesc:  slug,
		CreatedAt: createdAt,
	}
}

func TestBlogRepo_FindPage(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		require.NoError(t, repo.Add(ctx, newBlog(fmt.Sprintf("post-%02d", i), "news", base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Add(ctx, newBlog("other", "design", base)))

	blogs, total, err := repo.FindPage(ctx, "news", 3, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	require.Len(t, blogs, 5)
	assert.Equal(t, "post-04", blogs[0].Slug)
	assert.Equal(t, "post-00", blogs[4].Slug)

	blogs, total, err = repo.FindPage(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 26, total)
	require.Len(t, blogs, 10)
	assert.Equal(t, "post-24", blogs[0].Slug)
}

func TestBlogRepo_FindBySlugMiss(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindBySlug(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, "Blog not found", err.Error())
}

func TestBlogRepo_SlugExists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	blog := newBlog("hello-world", "news", time.Now())
	require.NoError(t, repo.Add(ctx, blog))

	taken, err := repo.SlugExists(ctx, "hello-world", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.SlugExists(ctx, "hello-world", blog.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = repo.SlugExists(ctx, "hello-world-1", uuid.Nil)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestBlogRepo_DuplicateSlugSurfaces(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, newBlog("race", "news", time.Now())))
	err := repo.Add(ctx, newBlog("race", "news", time.Now()))

	require.Error(t, err)
	assert.True(t, errs.IsDuplicateKeyError(err))
	var apiErr *errs.ApiErr
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
}

// Slug derivation reads, then the insert writes. Two saves that both read
// before either writes pick the same slug; the unique index rejects the second.
func TestBlogRepo_ConcurrentSlugDerivationCollides(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Add(ctx, newBlog("launch-notes", "news", time.Now())))

	lookup := func(ctx context.Context, slug string) (bool, error) {
		return repo.SlugExists(ctx, slug, uuid.Nil)
	}
	candidate := services.BlogFields{Title: "Launch Notes", Content: "<p>v2</p>"}

	first, err := services.DeriveSlugAndMeta(ctx, candidate, true, lookup)
	require.NoError(t, err)
	second, err := services.DeriveSlugAndMeta(ctx, candidate, true, lookup)
	require.NoError(t, err)
	require.Equal(t, "launch-notes-1", first.Slug)
	require.Equal(t, first.Slug, second.Slug)

	toBlog := func(f services.BlogFields) *models.Blog {
		return &models.Blog{
			Title: f.Title, Content: f.Content, Category: "news",
			Slug: f.Slug, MetaTitle: f.MetaTitle, MetaDesc: f.MetaDesc,
		}
	}
	require.NoError(t, repo.Add(ctx, toBlog(first)))
	err = repo.Add(ctx, toBlog(second))

	require.Error(t, err)
	assert.True(t, errs.IsDuplicateKeyError(err))

	_, total, err := repo.FindPage(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestBlogRepo_UpdateAndDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	blog := newBlog("first", "news", time.Now())
	require.NoError(t, repo.Add(ctx, blog))

	blog.Title = "Renamed"
	require.NoError(t, repo.Update(ctx, blog))

	got, err := repo.FindByID(ctx, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	require.NoError(t, repo.DeleteBySlug(ctx, "first"))
	err = repo.DeleteBySlug(ctx, "first")
	assert.True(t, errs.IsNotFound(err))
}

func TestNewGormLogger(t *testing.T) {
	assert.NotNil(t, NewGormLogger(zerolog.Nop(), 1))
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(map[string]string{
		"SUPABASE_DB_HOST": "db.supabase.co",
		"DB_USER":          "app",
		"DB_SSLMODE":       "disable",
	}, "supa")
	assert.Equal(t, "host=db.supabase.co user=app password= dbname= port=5432 sslmode=require", dsn)

	assert.Equal(t, "postgres://x", postgresDSN(map[string]string{"DATABASE_URL": "postgres://x"}, "postgres"))
}

func TestConnect_UnsupportedType(t *testing.T) {
	_, err := Connect(map[string]string{"DB_TYPE": "mongo"})
	require.Error(t, err)
}
