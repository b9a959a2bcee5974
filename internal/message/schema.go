package message

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/chatmesh/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// initSchema はメッセージストアにマイグレーションを適用する。
func initSchema(ctx context.Context, db *sql.DB) error {
	if err := migration.Run(ctx, db, migrations, "migrations"); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
