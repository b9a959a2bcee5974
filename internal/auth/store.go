package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nao1215/chatmesh/pkg/database"
)

var (
	// ErrUserExists は同じユーザー名が既に登録されていることを表す。
	ErrUserExists = errors.New("user already exists")
	// ErrBadCredentials はユーザー名とパスワードの組が一致しないことを表す。
	ErrBadCredentials = errors.New("bad credentials")
)

// User はユーザー一覧で返すユーザー情報。パスワードダイジェストは含めない。
type User struct {
	// Username はユーザー名。
	Username string `json:"username"`
}

// HashPassword はパスワードの決定的な一方向ダイジェスト（SHA-256の16進表記）を返す。
// ログイン時はダイジェスト同士の一致でユーザーを検索するため、ソルトは使わない。
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Store はusersテーブルへのアクセスを提供する。
type Store struct {
	db *sql.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create はユーザーを登録する。一意性はテーブルの主キーで保証し、
// 違反した場合はErrUserExistsを返す。
func (s *Store) Create(ctx context.Context, username, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, password_hash) VALUES ($1, $2)`,
		username, passwordHash,
	)
	if database.IsUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("ユーザーの登録に失敗: %w", err)
	}
	return nil
}

// Authenticate はユーザー名とダイジェストの両方が一致するユーザーが存在するか確認する。
func (s *Store) Authenticate(ctx context.Context, username, passwordHash string) error {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM users WHERE name = $1 AND password_hash = $2`,
		username, passwordHash,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBadCredentials
	}
	if err != nil {
		return fmt.Errorf("ユーザーの照合に失敗: %w", err)
	}
	return nil
}

// Exists はユーザーが登録されているかどうかを返す。
func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE name = $1`, username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ユーザーの存在確認に失敗: %w", err)
	}
	return true, nil
}

// List は全ユーザーをユーザー名順に返す。
func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Username); err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Clear は全ユーザーを削除し、削除件数を返す。
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, fmt.Errorf("ユーザーの一括削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n, nil
}
