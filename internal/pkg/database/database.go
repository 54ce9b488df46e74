package database

import "gorm.io/gorm"

// DB is the process-wide handle opened by SetupDatabase.
var DB *gorm.DB

// GetDB returns the handle opened by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}
