package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"p9e.in/pothole/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "18102026_create_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("users")
			},
		},
		{
			ID: "18102026_create_pothole_reports",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.PotholeReport{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("pothole_reports")
			},
		},
	})
	return m.Migrate()
}
