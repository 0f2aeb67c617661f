package persistence

import (
	"errors"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

// ParseDatabaseConfigFromEnv DATABASE_URL=mysql://root:root@(127.0.0.1:3306)/loopflow?charset=utf8mb4&parseTime=True&loc=Local
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, errors.New("environment variable DATABASE_URL is not set")
	}
	idx := strings.Index(databaseURL, "://")
	if idx <= 0 || idx == len(databaseURL)-3 {
		return nil, errors.New("invalid DATABASE_URL: " + databaseURL)
	}
	return &DatabaseConfig{DriverType: databaseURL[0:idx], DriverArgs: databaseURL[idx+3:]}, nil
}

// PrepareMysqlDatabase creates the target database when absent.
func PrepareMysqlDatabase(driverArgs string) error {
	cfg, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	cfg.DBName = ""

	db, err := gorm.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` CHARACTER SET utf8mb4").Error
}
