package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/chatmesh/pkg/database"
)

// newTestStore は一時ディレクトリのSQLiteを使うStoreを生成する。
func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "auth.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, initSchema(ctx, db))

	return NewStore(db)
}

func TestHashPassword(t *testing.T) {
	t.Parallel()

	assert.Equal(t, HashPassword("pw"), HashPassword("pw"))
	assert.NotEqual(t, HashPassword("pw"), HashPassword("pw2"))
	assert.Len(t, HashPassword("pw"), 64)
	// 平文がそのまま保存されないこと
	assert.NotContains(t, HashPassword("password"), "password")
}

func TestStore(t *testing.T) {
	t.Parallel()

	t.Run("登録したユーザーをダイジェスト一致で認証できること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := newTestStore(t)
		require.NoError(t, store.Create(ctx, "alice", HashPassword("pw")))

		assert.NoError(t, store.Authenticate(ctx, "alice", HashPassword("pw")))
		assert.ErrorIs(t, store.Authenticate(ctx, "alice", HashPassword("other")), ErrBadCredentials)
		assert.ErrorIs(t, store.Authenticate(ctx, "bob", HashPassword("pw")), ErrBadCredentials)
	})

	t.Run("重複登録はErrUserExistsになること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := newTestStore(t)
		require.NoError(t, store.Create(ctx, "alice", HashPassword("pw")))

		assert.ErrorIs(t, store.Create(ctx, "alice", HashPassword("another")), ErrUserExists)
	})

	t.Run("Existsは登録状態を返すこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := newTestStore(t)
		require.NoError(t, store.Create(ctx, "alice", HashPassword("pw")))

		ok, err := store.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Exists(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Listはユーザー名順に返しClearで空になること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := newTestStore(t)

		users, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
		assert.NotNil(t, users)

		for _, name := range []string{"carol", "alice", "bob"} {
			require.NoError(t, store.Create(ctx, name, HashPassword("pw")))
		}

		users, err = store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []User{{Username: "alice"}, {Username: "bob"}, {Username: "carol"}}, users)

		deleted, err := store.Clear(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, deleted)

		users, err = store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})
}
