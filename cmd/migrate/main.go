package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"pomodoro/focus/internal/config"
	"pomodoro/focus/internal/db"
)

func main() {
	statusOnly := flag.Bool("status", false, "list migrations without applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if *statusOnly {
		status, err := db.MigrationStatus(ctx, database, db.Migrations())
		if err != nil {
			log.Fatalf("read migration status: %v", err)
		}
		for _, migration := range status {
			applied := "pending"
			if migration.Applied() {
				applied = migration.AppliedAt.Local().Format(time.DateTime)
			}
			fmt.Printf("%-32s %s\n", migration.Name, applied)
		}
		return
	}

	if err := db.RunMigrations(ctx, database, db.Migrations()); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	log.Printf("migrations applied to %s", cfg.DBPath)
}
