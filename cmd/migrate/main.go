package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/church-web/sermon-feed-go/internal/config"
	"github.com/church-web/sermon-feed-go/internal/db"
	"github.com/church-web/sermon-feed-go/migrations"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

func main() {
	var (
		dbURL     string
		direction string
		steps     int
	)

	flag.StringVar(&dbURL, "db", "", "Database URL (default: built from the database section of the service config)")
	flag.StringVar(&direction, "direction", "up", "Migration direction: up or down")
	flag.IntVar(&steps, "steps", 0, "Number of steps to migrate (0 means all)")
	flag.Parse()

	if err := logger.Init("info", ""); err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal("Failed to load config", zap.Error(err))
		}
		dbURL = db.FromConfig(cfg.Database).URL()
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.Fatal("Failed to open embedded migrations", zap.Error(err))
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		log.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		log.Fatal("Invalid direction (must be 'up' or 'down')", zap.String("direction", direction))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal("Migration failed", zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatal("Failed to get migration version", zap.Error(err))
	}

	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info("Migration completed successfully (no version)")
	} else {
		log.Info("Migration completed successfully", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
}
