// Package db opens and migrates the CareSync record cache.
package db

import (
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avellora/caresync/internal/config"
)

// DSN builds a MySQL DSN for connecting to a hosted record store.
func DSN(host string, port int, database string) string {
	cfg := mysqldrv.NewConfig()
	cfg.User = "root"
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Open opens a GORM connection per the configured driver.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "mysql":
		return connectMySQL(cfg.Host, cfg.Port, cfg.Name)
	case "sqlite", "":
		return connectSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// connectSQLite opens the local sqlite cache file.
func connectSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = "caresync.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return db, nil
}

// connectMySQL opens a GORM connection to a hosted MySQL-compatible store.
func connectMySQL(host string, port int, database string) (*gorm.DB, error) {
	dsn := DSN(host, port, database)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", host, port, database, err)
	}
	return db, nil
}
