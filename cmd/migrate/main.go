// Command migrate applies or rolls back the embedded database schema.
package main

import (
	"flag"

	"github.com/abduss/grimoire/internal/config"
	"github.com/abduss/grimoire/internal/logger"
	"github.com/abduss/grimoire/internal/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	direction := flag.String("direction", storage.DirectionUp, "migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()

	logg, err := logger.Init()
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer logg.Sync()

	cfg, err := config.Load()
	if err != nil {
		logg.Fatal("load config", zap.Error(err))
	}
	logg, err = logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer logg.Sync()

	if err := storage.Migrate(cfg.Postgres.DSN(), *direction); err != nil {
		logg.Fatal("migrate", zap.String("direction", *direction), zap.Error(err))
	}
	logg.Info("migration complete", zap.String("direction", *direction))
}
