package database

import (
	"fmt"

	"github.com/imagevault/backend/internal/config"
	"github.com/imagevault/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate is shared with the test setup, which runs it against in-memory
// sqlite. The two partial indexes are the real guard for sibling-name
// uniqueness: an application-level pre-check can pass for two concurrent
// creates, and the loser must fail here. parent_id IS NULL needs its own
// index because SQL treats NULLs as distinct in composite unique indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Folder{},
		&models.Image{},
	); err != nil {
		return err
	}

	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_folders_sibling_name
			ON folders (owner_id, parent_id, name)
			WHERE parent_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_folders_root_name
			ON folders (owner_id, name)
			WHERE parent_id IS NULL`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
