// Command migrate applies the embedded goose migrations.
//
//	migrate up | down | status | redo | version | up-to VERSION
package main

import (
	"context"
	"flag"
	"log"

	"github.com/pressly/goose/v3"

	"github.com/noah-isme/genius-academy-api/migrations"
	"github.com/noah-isme/genius-academy-api/pkg/config"
	"github.com/noah-isme/genius-academy-api/pkg/database"
	"github.com/noah-isme/genius-academy-api/pkg/logger"
)

var gooseRun = goose.RunContext

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		args = []string{"up"}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(zapGooseLogger{logr.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		logr.Sugar().Fatalw("unsupported dialect", "error", err)
	}

	if err := gooseRun(context.Background(), args[0], db.DB, ".", args[1:]...); err != nil {
		logr.Sugar().Fatalw("migration failed", "command", args[0], "error", err)
	}
	logr.Sugar().Infow("migration finished", "command", args[0])
}
