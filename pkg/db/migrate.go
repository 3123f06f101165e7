package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationTableName = "schema_migrations"

type zapGooseLogger struct {
	logger *zap.SugaredLogger
}

func (l *zapGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Infof(format, v...)
}

// Fatalf logs without exiting so the caller decides how to stop.
func (l *zapGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Errorf(format, v...)
}

// Migrate applies or inspects the embedded schema migrations.
// command is one of "up", "down", "status", "version".
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string, logger *zap.Logger) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetLogger(&zapGooseLogger{logger: logger.Sugar()})
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, sqlDB, "migrations")
	case "down":
		err = goose.DownContext(ctx, sqlDB, "migrations")
	case "status":
		err = goose.StatusContext(ctx, sqlDB, "migrations")
	case "version":
		err = goose.VersionContext(ctx, sqlDB, "migrations")
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}
