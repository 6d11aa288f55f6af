package database

import (
	"context"
	"errors"

	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
	"github.com/TheBrightLayer/ChirpWhirpServer/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BlogRepo struct {
	db *gorm.DB
}

func NewBlogRepo(db *gorm.DB) *BlogRepo {
	return &BlogRepo{db}
}

// GetDB returns the underlying database connection for debugging purposes
func (r *BlogRepo) GetDB() *gorm.DB {
	return r.db
}

// FindPage returns one page of blogs, newest first, plus the total number of
// blogs matching the filter. An empty category matches every blog.
func (r *BlogRepo) FindPage(ctx context.Context, category string, page, limit int) ([]*models.Blog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Blog{})
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, classifyError("count", err)
	}

	blogs := []*models.Blog{}
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&blogs).Error
	if err != nil {
		return nil, 0, classifyError("list", err)
	}
	return blogs, total, nil
}

func (r *BlogRepo) FindBySlug(ctx context.Context, slug string) (*models.Blog, error) {
	var blog models.Blog
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&blog).Error; err != nil {
		return nil, classifyError("get", err)
	}
	return &blog, nil
}

func (r *BlogRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Blog, error) {
	var blog models.Blog
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&blog).Error; err != nil {
		return nil, classifyError("get", err)
	}
	return &blog, nil
}

// SlugExists reports whether another blog already owns slug. The blog with
// id exclude is ignored so a blog never collides with itself.
func (r *BlogRepo) SlugExists(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Blog{}).Where("slug = ?", slug)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, classifyError("check slug", err)
	}
	return count > 0, nil
}

// Add inserts a new blog into the database
func (r *BlogRepo) Add(ctx context.Context, blog *models.Blog) error {
	if err := r.db.WithContext(ctx).Create(blog).Error; err != nil {
		return classifyError("create", err)
	}
	return nil
}

// Update writes every column of an existing blog
func (r *BlogRepo) Update(ctx context.Context, blog *models.Blog) error {
	if err := r.db.WithContext(ctx).Save(blog).Error; err != nil {
		return classifyError("update", err)
	}
	return nil
}

// DeleteBySlug removes a blog by slug
func (r *BlogRepo) DeleteBySlug(ctx context.Context, slug string) error {
	result := r.db.WithContext(ctx).Where("slug = ?", slug).Delete(&models.Blog{})
	if result.Error != nil {
		return classifyError("delete", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NewBlogNotFoundError()
	}
	return nil
}

func classifyError(operation string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errs.NewBlogNotFoundError()
	case errors.Is(err, gorm.ErrDuplicatedKey), errs.IsDuplicateKeyMessage(err.Error()):
		return errs.NewDuplicateKeyError("blog", "slug", err)
	default:
		return errs.NewDatabaseError(operation, "blog", err)
	}
}
