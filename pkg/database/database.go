// Package database はdatabase/sqlのコネクションプールを生成する。
//
// SQLite（modernc.org/sqlite）とPostgreSQL（pgxのstdlibドライバ）に対応し、
// 一意制約違反の判定をドライバごとの差異を吸収して提供する。
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ドライバ名。database/sqlに登録されている名前と一致する。
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// sqlitePragmas はSQLite接続時に適用するプラグマ。
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Options はコネクションプールの設定。
type Options struct {
	// Driver はドライバ名（DriverSQLite または DriverPostgres）。
	Driver string
	// DSN はSQLiteのファイルパス、またはPostgreSQLの接続URL。
	DSN string
	// MaxOpenConns はPostgreSQLのプール上限。SQLiteでは常に1になる。
	MaxOpenConns int
}

// Open はコネクションプールを生成し、疎通を確認する。
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch opts.Driver {
	case DriverSQLite:
		db, err = sql.Open(DriverSQLite, sqliteDSN(opts.DSN))
		if err != nil {
			return nil, fmt.Errorf("SQLiteのオープンに失敗: %w", err)
		}
		// SQLiteは書き込みが単一のため、プールを1本に制限して待ち合わせをdatabase/sqlに任せる
		db.SetMaxOpenConns(1)
	case DriverPostgres:
		db, err = sql.Open(DriverPostgres, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("PostgreSQLのオープンに失敗: %w", err)
		}
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetConnMaxIdleTime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("未対応のドライバです: %q", opts.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	return db, nil
}

// sqliteDSN はファイルパスにプラグマを付与する。既にクエリが付いている場合は追記する。
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}

// IsUniqueViolation はerrが一意制約（主キーを含む）違反によるものかどうかを返す。
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
