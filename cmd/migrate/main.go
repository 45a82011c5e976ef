package main

import (
	"errors"
	"flag"
	"os"

	"coupon_hub/internal/pkg/config"
	"coupon_hub/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	direction := flag.String("direction", "up", "up | down | force")
	steps := flag.Int("steps", 0, "number of steps for down, 0 means all")
	version := flag.Int("version", -1, "version for force")
	source := flag.String("source", "file://migrations", "migration source URL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.Init(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	m, err := migrate.New(*source, cfg.Database.URL())
	if err != nil {
		log.Fatal("create migrator failed", zap.Error(err))
	}
	defer m.Close()

	switch *direction {
	case "up":
		err = m.Up()
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "force":
		if *version < 0 {
			log.Fatal("force requires -version")
		}
		err = m.Force(*version)
	default:
		log.Fatal("unknown direction", zap.String("direction", *direction))
	}

	var dirty migrate.ErrDirty
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("no migration to apply")
	case errors.As(err, &dirty):
		log.Fatal("database is dirty, fix the schema and run with -direction force",
			zap.Int("version", dirty.Version))
	case err != nil:
		log.Fatal("migration failed", zap.Error(err))
	}

	v, isDirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		log.Warn("read schema version failed", zap.Error(verr))
	}
	log.Info("migration finished", zap.String("direction", *direction), zap.Uint("version", v), zap.Bool("dirty", isDirty))
}
