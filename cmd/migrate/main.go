package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/migrate"
)

type dbCommand func(ctx context.Context, m *migrate.Migrator) ([]migrate.Applied, error)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	switch *cmd {
	case "create":
		if strings.TrimSpace(*name) == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("invalid migrations: %v", err)
		}
		fmt.Println("migrations ok")
		return
	}

	commands := map[string]dbCommand{
		"up": func(ctx context.Context, m *migrate.Migrator) ([]migrate.Applied, error) {
			return m.Up(ctx)
		},
		"down": func(ctx context.Context, m *migrate.Migrator) ([]migrate.Applied, error) {
			return m.Down(ctx)
		},
		"version": func(ctx context.Context, m *migrate.Migrator) ([]migrate.Applied, error) {
			if *target == "" {
				return nil, fmt.Errorf("missing -version")
			}
			return m.MigrateTo(ctx, *target)
		},
	}
	run, ok := commands[*cmd]
	if !ok && *cmd != "status" {
		fail("unknown -cmd %q", *cmd)
	}

	cfg, err := config.LoadDB()
	if err != nil {
		fail("load config: %v", err)
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		fail("%s is required for -cmd=%s", config.EnvDBDSN, *cmd)
	}

	logg := logger.New(logger.Options{
		ServiceName: "storefront-migrate",
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"cmd":    *cmd,
		"dir":    *dir,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "connect database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		logg.Error(ctx, "unwrap sql handle", err)
		os.Exit(1)
	}
	migrator, err := migrate.NewMigrator(sqlDB, cfg.DB.Driver, *dir)
	if err != nil {
		logg.Error(ctx, "prepare migrator", err)
		os.Exit(1)
	}

	if *cmd == "status" {
		statuses, err := migrator.Status(ctx)
		if err != nil {
			logg.Error(ctx, "read migration status", err)
			os.Exit(1)
		}
		for _, st := range statuses {
			state := "pending"
			if st.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %d %s\n", state, st.Version, st.Path)
		}
		return
	}

	applied, err := run(ctx, migrator)
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	for _, a := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": a.Version, "file": a.Path, "direction": a.Direction}), "migration applied")
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "migration complete")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
