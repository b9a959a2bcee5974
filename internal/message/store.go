package message

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention はメッセージを読み出せる期間の既定値。
const DefaultRetention = 30 * time.Second

// Message は読み出し側に返すメッセージ。内部の連番とIDは含めない。
type Message struct {
	// Username は送信者のユーザー名。
	Username string `json:"username"`
	// Message はメッセージ本文。
	Message string `json:"message"`
	// CreatedAt は作成日時（UTC）。
	CreatedAt time.Time `json:"createdAt"`
}

// Store はmessagesテーブルへのアクセスを提供する。
type Store struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

// StoreOption はStoreの設定を変更する。
type StoreOption func(*Store)

// WithRetention は保持期間を変更する。
func WithRetention(d time.Duration) StoreOption {
	return func(s *Store) { s.retention = d }
}

// withClock は現在時刻の取得関数を差し替える。
func withClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:        db,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append はメッセージを末尾に追加する。作成日時は呼び出し時刻。
func (s *Store) Append(ctx context.Context, username, message string) error {
	return s.insertAt(ctx, username, message, s.now())
}

// insertAt は作成日時を指定してメッセージを追加する。
func (s *Store) insertAt(ctx context.Context, username, message string, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, username, message, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), username, message, createdAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("メッセージの保存に失敗: %w", err)
	}
	return nil
}

// Fetch は保持期間内のメッセージを挿入順に返す。
func (s *Store) Fetch(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, message, created_at FROM messages WHERE created_at > $1 ORDER BY seq`,
		s.cutoff(),
	)
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]Message, 0)
	for rows.Next() {
		var (
			m         Message
			createdAt int64
		)
		if err := rows.Scan(&m.Username, &m.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("メッセージ行の読み取りに失敗: %w", err)
		}
		m.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Reap は保持期間を過ぎたメッセージを削除し、削除件数を返す。
func (s *Store) Reap(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at <= $1`, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("期限切れメッセージの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n, nil
}

// StartReaper はintervalごとにReapを実行するループを開始する。
// ctxがキャンセルされるとループを終了し、返したチャネルを閉じる。
func (s *Store) StartReaper(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Reap(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Printf("[Reaper] エラー: %v", err)
					}
					continue
				}
				if n > 0 {
					log.Printf("[Reaper] 期限切れメッセージを削除しました: deleted=%d", n)
				}
			}
		}
	}()
	return done
}

// cutoff はこの時刻以前に作成されたメッセージを期限切れとみなす境界（UNIXナノ秒）を返す。
func (s *Store) cutoff() int64 {
	return s.now().Add(-s.retention).UnixNano()
}
