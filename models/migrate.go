package models

import "gorm.io/gorm"

// AutoMigrate creates or updates the workflow tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Officer{},
		&ReviewPeriod{},
		&Assignment{},
		&Response{},
		&Project{},
		&ActivityEvent{},
		&AISummaryStatus{},
	)
}
