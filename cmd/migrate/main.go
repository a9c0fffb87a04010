// Package main runs the database schema migrations.
//
// Usage: migrate [up|down|status|version]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/codecampus/campus-core/internal/config"
	"github.com/codecampus/campus-core/internal/migrate"
	"github.com/codecampus/campus-core/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	log := logger.NewLogger()

	cfg, err := config.NewConfig(log)
	if err != nil {
		log.Error("load config", logger.Error(err))
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Error("connect database", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	sqldb := stdlib.OpenDBFromPool(pool)
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	m := migrate.NewMigrator(db, log)

	switch command {
	case "up":
		err = m.Up(ctx)
	case "down":
		err = m.Down(ctx)
	case "status":
		err = m.Status(ctx)
	case "version":
		var version int64
		version, err = m.Version(ctx)
		if err == nil {
			fmt.Println(version)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: migrate [up|down|status|version]\n", command)
		os.Exit(2)
	}
	if err != nil {
		log.Error("migration failed", slog.String("command", command), logger.Error(err))
		os.Exit(1)
	}
}
