package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Blog is a published article. Slug, MetaTitle and MetaDesc are derived on
// every save by the write path.
type Blog struct {
	ID                 uuid.UUID                   `json:"id" db:"id" gorm:"type:uuid;primaryKey;not null"`
	Title              string                      `json:"title" db:"title" gorm:"type:text;not null"`
	Content            string                      `json:"content" db:"content" gorm:"type:text;not null"`
	MainImage          *string                     `json:"mainImage,omitempty" db:"main_image" gorm:"type:text"`
	AuthorID           *uuid.UUID                  `json:"author,omitempty" db:"author_id" gorm:"type:uuid;index:idx_blog_author"`
	AuthorProfileImage *string                     `json:"authorProfileImage,omitempty" db:"author_profile_image" gorm:"type:text"`
	Category           string                      `json:"category" db:"category" gorm:"type:text;not null;index:idx_blog_category"`
	Slug               string                      `json:"slug" db:"slug" gorm:"type:text;not null;uniqueIndex:idx_blog_slug"`
	MetaTitle          string                      `json:"metaTitle" db:"meta_title" gorm:"type:text;not null"`
	MetaDesc           string                      `json:"metaDesc" db:"meta_desc" gorm:"type:text;not null"`
	Tags               datatypes.JSONSlice[string] `json:"tags" db:"tags"`
	CreatedAt          time.Time                   `json:"createdAt" db:"created_at" gorm:"not null;index:idx_blog_created_at,sort:desc"`
	UpdatedAt          time.Time                   `json:"updatedAt" db:"updated_at" gorm:"not null"`
}

// BeforeCreate assigns an ID when the caller did not.
func (b *Blog) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Tags == nil {
		b.Tags = datatypes.JSONSlice[string]{}
	}
	return nil
}
