package message

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/chatmesh/pkg/database"
)

// testClock はテストから進められる時計。
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newWallClockStore は実時刻を使うStoreを生成する。
func newWallClockStore(t *testing.T) *Store {
	t.Helper()
	return newTestStore(t, time.Now)
}

// newTestStore は指定した時計を使うStoreを生成する。
func newTestStore(t *testing.T, now func() time.Time, opts ...StoreOption) *Store {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "message.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, initSchema(ctx, db))

	return NewStore(db, append([]StoreOption{withClock(now)}, opts...)...)
}

func TestStoreAppendAndFetch(t *testing.T) {
	t.Parallel()

	t.Run("送信順に取得でき内部IDは含まれないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		clock := newTestClock()
		store := newTestStore(t, clock.Now)

		require.NoError(t, store.Append(ctx, "alice", "hello"))
		clock.Advance(time.Second)
		require.NoError(t, store.Append(ctx, "bob", "hi"))
		require.NoError(t, store.Append(ctx, "alice", ""))

		got, err := store.Fetch(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "alice", got[0].Username)
		assert.Equal(t, "hello", got[0].Message)
		assert.True(t, got[0].CreatedAt.Equal(clock.Now().Add(-time.Second)))
		assert.Equal(t, "bob", got[1].Username)
		assert.Equal(t, "", got[2].Message)
	})

	t.Run("同一時刻のメッセージも挿入順を保つこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		clock := newTestClock()
		store := newTestStore(t, clock.Now)

		for _, m := range []string{"1", "2", "3", "4", "5"} {
			require.NoError(t, store.Append(ctx, "alice", m))
		}

		got, err := store.Fetch(ctx)
		require.NoError(t, err)
		var bodies []string
		for _, m := range got {
			bodies = append(bodies, m.Message)
		}
		assert.Equal(t, []string{"1", "2", "3", "4", "5"}, bodies)
	})

	t.Run("30秒以上前のメッセージは取得されないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		clock := newTestClock()
		store := newTestStore(t, clock.Now)

		require.NoError(t, store.insertAt(ctx, "old", "expired", clock.Now().Add(-31*time.Second)))
		require.NoError(t, store.insertAt(ctx, "edge", "boundary", clock.Now().Add(-DefaultRetention)))
		require.NoError(t, store.insertAt(ctx, "new", "fresh", clock.Now().Add(-29*time.Second)))
		require.NoError(t, store.insertAt(ctx, "almost", "just-in-time", clock.Now().Add(-DefaultRetention+500*time.Microsecond)))
		require.NoError(t, store.insertAt(ctx, "past", "just-expired", clock.Now().Add(-DefaultRetention-time.Nanosecond)))

		got, err := store.Fetch(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "fresh", got[0].Message)
		// 保持期間の境界はミリ秒に丸めずに判定する
		assert.Equal(t, "just-in-time", got[1].Message)
		assert.True(t, got[1].CreatedAt.Equal(clock.Now().Add(-DefaultRetention+500*time.Microsecond)))
	})

	t.Run("時間の経過で取得結果から消えること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		clock := newTestClock()
		store := newTestStore(t, clock.Now)

		require.NoError(t, store.Append(ctx, "alice", "hello"))
		got, err := store.Fetch(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		clock.Advance(DefaultRetention)
		got, err = store.Fetch(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NotNil(t, got)
	})

	t.Run("WithRetentionで保持期間を変更できること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		clock := newTestClock()
		store := newTestStore(t, clock.Now, WithRetention(time.Minute))

		require.NoError(t, store.insertAt(ctx, "alice", "45s", clock.Now().Add(-45*time.Second)))

		got, err := store.Fetch(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestStoreReap(t *testing.T) {
	t.Parallel()

	t.Run("保持期間を過ぎた行だけを削除すること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		clock := newTestClock()
		store := newTestStore(t, clock.Now)

		require.NoError(t, store.insertAt(ctx, "a", "old1", clock.Now().Add(-time.Minute)))
		require.NoError(t, store.insertAt(ctx, "a", "old2", clock.Now().Add(-DefaultRetention)))
		require.NoError(t, store.Append(ctx, "a", "new"))

		n, err := store.Reap(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		var remaining int
		require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&remaining))
		assert.Equal(t, 1, remaining)
	})

	t.Run("削除ループが期限切れの行を回収しctxのキャンセルで終了すること", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		store := newWallClockStore(t)
		require.NoError(t, store.insertAt(ctx, "a", "old", time.Now().Add(-time.Minute)))

		done := store.StartReaper(ctx, 10*time.Millisecond)

		assert.Eventually(t, func() bool {
			var n int
			if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
				return false
			}
			return n == 0
		}, 2*time.Second, 20*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("削除ループが終了しない")
		}
	})
}
