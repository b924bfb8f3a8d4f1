package postgres

import (
	"Mobius/logger"
	models "Mobius/models/postgres"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func gormConfig() *gorm.Config {
	// NOTE: TranslateError maps unique violations to gorm.ErrDuplicatedKey
	cfg := &gorm.Config{TranslateError: true}
	if os.Getenv("VERBOSE_POSTGRES") == "true" {
		cfg.Logger = gormlogger.New(
			logger.GormWriter{},
			gormlogger.Config{
				SlowThreshold:             time.Second, // Slow SQL threshold
				LogLevel:                  gormlogger.Info,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
	} else {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return cfg
}

// ConnectGORM returns a GORM DB instance connected to PostgreSQL
func ConnectGORM() (*gorm.DB, error) {
	user := os.Getenv("POSTGRES_USER")
	password := os.Getenv("POSTGRES_PASSWORD")
	host := os.Getenv("POSTGRES_HOST")
	port := os.Getenv("POSTGRES_PORT")
	database := os.Getenv("POSTGRES_DATABASE")

	dsn := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		user, password, host, port, database)
	if os.Getenv("POSTGRES_SSLMODE") != "" {
		dsn += "?sslmode=" + os.Getenv("POSTGRES_SSLMODE")
	}

	sqlDB1, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error().Err(err).Msg("[POSTGRES-ERROR] Error connecting to PostgreSQL")
		return nil, err
	}

	db, err := gorm.Open(pgdriver.New(pgdriver.Config{
		Conn:                 sqlDB1,
		PreferSimpleProtocol: true,
	}), gormConfig())
	if err != nil {
		log.Error().Err(err).Msg("[POSTGRES-ERROR] Error connecting to PostgreSQL with GORM")
		return nil, err
	}

	// Get the underlying SQL DB object
	sqlDB, err := db.DB()
	if err != nil {
		log.Error().Err(err).Msg("[POSTGRES-ERROR] Error getting underlying SQL DB")
		return nil, err
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		log.Error().Err(err).Msg("[POSTGRES-ERROR] Error pinging PostgreSQL")
		return nil, err
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info().Msg("[POSTGRES] Successfully connected to PostgreSQL with GORM")
	return db, nil
}

// ConnectSQLite opens a SQLite database, for single-instance local runs and
// tests. ":memory:" gives a private in-memory database.
func ConnectSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("error opening SQLite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting underlying SQL DB: %w", err)
	}
	// one writer at a time, and a single connection keeps :memory: shared
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// MigrateDatabase migrates the GORM models
func MigrateDatabase(db *gorm.DB) error {
	// NOTE: for more info, execute db.Debug().AutoMigrate(...)
	err := db.AutoMigrate(
		&models.Room{},
		&models.Player{},
		&models.RoomState{},
		&models.CaseFile{},
		&models.Place{},
		&models.CharacterSecret{})

	if err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	log.Info().Msg("[POSTGRES] Database migrated successfully")

	return nil
}
