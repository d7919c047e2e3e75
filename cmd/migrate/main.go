package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/abdulbasit0-UI/storefront-backend/internal/bootstrap"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory for create and validate")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if offline(*cmd, *dir, *name) {
		return
	}

	ctx := context.Background()
	rt := bootstrap.NewRuntime("migrate")
	rt.Must(ctx, "startup", rt.Open(ctx, bootstrap.NeedDB|bootstrap.NoAutoMigrate))
	cfg := rt.Config
	ctx = rt.Logger.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"driver": cfg.DB.Driver,
	})

	if cfg.FeatureFlags.UseSQLite {
		if *cmd != "up" {
			fail("sqlite only supports -cmd=up")
		}
		rt.Must(ctx, "sqlite schema", migrate.ApplySQLiteSchema(ctx, rt.DB.DB()))
		rt.Shutdown(ctx)
		return
	}

	sqlDB, err := rt.DB.DB().DB()
	rt.Must(ctx, "sql database", err)
	migrator, err := migrate.New(sqlDB, nil, rt.Logger)
	rt.Must(ctx, "migrator", err)

	toVersion := func(ctx context.Context) error {
		if *version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrator.ToVersion(ctx, *version)
	}
	commands := map[string]func(context.Context) error{
		"up":      migrator.Up,
		"down":    migrator.Down,
		"redo":    migrator.Redo,
		"status":  migrator.Status,
		"version": toVersion,
	}
	run, ok := commands[*cmd]
	if !ok {
		fail("unknown -cmd value: %s", *cmd)
	}
	rt.Must(ctx, "migrate "+*cmd, run(ctx))
	rt.Shutdown(ctx)
}

// offline handles the commands that only touch the migrations directory and
// reports whether cmd was one of them.
func offline(cmd, dir, name string) bool {
	switch cmd {
	case "create":
		if name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(dir, name, time.Now())
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
	case "validate":
		if err := migrate.Validate(os.DirFS(dir)); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
	default:
		return false
	}
	return true
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
