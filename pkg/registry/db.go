package registry

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/supporttools/GoDBVault/pkg/config"
)

// DB is the global registry database instance
var DB *gorm.DB

// Initialize sets up the registry database connection and runs migrations
// when enabled.
func Initialize() error {
	db, err := Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to registry database: %w", err)
	}
	DB = db

	if config.CFG.RegistryDB.AutoMigrate {
		log.Println("Running database migrations for registry tables")
		if err := RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	return nil
}

// Connect establishes a connection to the registry database. The driver
// selects the dialector: sqlite is the default and needs only a file path.
func Connect() (*gorm.DB, error) {
	cfg := config.CFG.RegistryDB

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		dialector = mysql.Open(dsn)
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported registry database driver: %s", cfg.Driver)
	}

	logLevel := logger.Silent
	if config.CFG.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	if cfg.ConnMaxLifetime != "" {
		duration, err := time.ParseDuration(cfg.ConnMaxLifetime)
		if err != nil {
			log.Printf("Warning: Invalid connection max lifetime '%s', using default 5m: %v",
				cfg.ConnMaxLifetime, err)
			duration = 5 * time.Minute
		}
		sqlDB.SetConnMaxLifetime(duration)
	}

	if cfg.Driver == "sqlite" {
		log.Printf("Connected to registry database at %s", cfg.Path)
	} else {
		log.Printf("Connected to registry database at %s:%d", cfg.Host, cfg.Port)
	}
	return db, nil
}

// RunMigrations runs all necessary database migrations
func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&ConnectionProfile{},
		&Artifact{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	return nil
}

// Close closes the registry database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	return sqlDB.Close()
}

// GetDB returns the global registry database instance
func GetDB() *gorm.DB {
	return DB
}
