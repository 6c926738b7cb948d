package database

import (
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"solace/models"
)

func RunMigrations(db *gorm.DB) error {
	log.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Hashtag{},
		&models.PostHashtag{},
		&models.Like{},
	)

	if err != nil {
		log.Errorf("Error running migrations: %v", err)
		return err
	}

	log.Info("Migrations completed successfully")
	return nil
}
