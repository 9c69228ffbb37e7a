package conversation

import (
	"context"
	"database/sql"
	"embed"

	"github.com/nao1215/chat/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// initSchema はマイグレーションを実行して会話ストアのスキーマを適用する。
func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := migration.Run(ctx, db, migrationsFS, "migrations")
	return err
}
