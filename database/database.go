package database

import (
	"gorm.io/gorm"
)

type Database struct {
	db       *gorm.DB
	blogRepo *BlogRepo
}

// New initializes a new Database struct with each repository using a shared GORM database instance
func New(db *gorm.DB) Database {
	return Database{
		db:       db,
		blogRepo: NewBlogRepo(db),
	}
}

func (d Database) BlogRepo() *BlogRepo {
	return d.blogRepo
}

// Close releases the underlying connection pool.
func (d Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
