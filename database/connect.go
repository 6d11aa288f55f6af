package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/TheBrightLayer/ChirpWhirpServer/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

// Connect opens the database selected by DB_TYPE. "supa" and "postgres" use
// the postgres driver, "sqlite" opens DB_PATH. When DB_REPLICA_DSN is set,
// reads are routed to the replica through dbresolver.
func Connect(cfg map[string]string) (*gorm.DB, error) {
	dbType := strings.ToLower(config.GetString(cfg, "DB_TYPE", "postgres"))
	log.Info().Str("dbType", dbType).Msg("Connecting to database")

	gormConfig := &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		Logger:         NewGormLogger(log.Logger, config.GetInt(cfg, "DB_SLOW_QUERY_SECONDS", 10)),
	}

	var dialector gorm.Dialector
	switch dbType {
	case "supa", "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  postgresDSN(cfg, dbType),
			PreferSimpleProtocol: true,
		})
	case "sqlite":
		dialector = sqlite.Open(config.GetString(cfg, "DB_PATH", "chirpwhirp.db"))
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", dbType)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if replica := config.GetString(cfg, "DB_REPLICA_DSN", ""); replica != "" {
		if dbType == "sqlite" {
			log.Warn().Msg("DB_REPLICA_DSN ignored for sqlite")
		} else {
			err := db.Use(dbresolver.Register(dbresolver.Config{
				Replicas: []gorm.Dialector{postgres.New(postgres.Config{DSN: replica, PreferSimpleProtocol: true})},
				Policy:   dbresolver.RandomPolicy{},
			}))
			if err != nil {
				return nil, fmt.Errorf("register read replica: %w", err)
			}
			log.Info().Msg("Read replica registered")
		}
	}

	// Test database connection
	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		return nil, fmt.Errorf("error testing database connection: %w", err)
	}

	return db, nil
}

// postgresDSN builds the connection string. DB_* keys win over the
// SUPABASE_DB_* aliases; supa connections always require TLS.
func postgresDSN(cfg map[string]string, dbType string) string {
	if dsn := config.GetString(cfg, "DATABASE_URL", ""); dsn != "" {
		return dsn
	}

	sslmode := config.GetFirstString(cfg, "disable", "DB_SSLMODE")
	if dbType == "supa" {
		sslmode = "require"
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		config.GetFirstString(cfg, "localhost", "DB_HOST", "SUPABASE_DB_HOST"),
		config.GetFirstString(cfg, "", "DB_USER", "SUPABASE_DB_USER"),
		config.GetFirstString(cfg, "", "DB_PASSWORD", "SUPABASE_DB_PASSWORD"),
		config.GetFirstString(cfg, "", "DB_NAME", "SUPABASE_DB_NAME"),
		config.GetFirstString(cfg, "5432", "DB_PORT", "SUPABASE_DB_PORT"),
		sslmode,
	)
}

// NewGormLogger routes gorm's logs through zerolog.
func NewGormLogger(base zerolog.Logger, slowSeconds int) logger.Interface {
	l := base.With().Str("component", "gorm").Logger()
	return logger.New(
		&l,
		logger.Config{
			SlowThreshold:             time.Duration(slowSeconds) * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
