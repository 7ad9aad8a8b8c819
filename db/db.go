package db

import (
	"errors"
	"fmt"
	"log/slog"

	driver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNoDatabase = errors.New("neither MySQL DSN nor SQLite file configured")

// Open connects to MySQL when mysqlDSN is set, otherwise to the SQLite file.
func Open(mysqlDSN, sqliteFile string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if mysqlDSN != "" {
		cfg, err := driver.ParseDSN(mysqlDSN)
		if err != nil {
			return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
		}
		if !cfg.ParseTime {
			// Person dates are scanned into time.Time
			cfg.ParseTime = true
		}
		slog.Info("using MySQL", "addr", cfg.Addr, "db", cfg.DBName)
		dialector = mysql.Open(cfg.FormatDSN())
	} else if sqliteFile != "" {
		slog.Info("using SQLite", "file", sqliteFile)
		dialector = sqlite.Open(sqliteFile)
	} else {
		return nil, ErrNoDatabase
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}
