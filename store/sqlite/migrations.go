package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the creditkit object store (SQLite).
var Migrations = migrate.NewGroup("creditkit")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_creditkit_objects",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS creditkit_objects (
    id         TEXT PRIMARY KEY,
    data       TEXT NOT NULL DEFAULT '{}',
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS creditkit_objects`)
				return err
			},
		},
	)
}
