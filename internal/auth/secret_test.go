package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/chatmesh/pkg/token"
)

func TestLoadOrCreateSecret(t *testing.T) {
	t.Parallel()

	t.Run("初回は鍵を生成し2回目以降は同じ鍵を返すこと", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "auth-secret.env")

		first, err := LoadOrCreateSecret(path, "HS256")
		require.NoError(t, err)
		assert.Equal(t, "HS256", first.Algorithm)
		assert.Len(t, first.Key, secretBytes*2)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		// 2回目は引数のアルゴリズムではなく保存済みの内容が優先される
		second, err := LoadOrCreateSecret(path, "HS512")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("既存ファイルの鍵とアルゴリズムを読み込むこと", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "auth-secret.env")
		require.NoError(t, os.WriteFile(path, []byte("secret=abc123\nalgorithm=HS384\n"), 0o600))

		secret, err := LoadOrCreateSecret(path, "HS256")
		require.NoError(t, err)
		assert.Equal(t, token.Secret{Key: []byte("abc123"), Algorithm: "HS384"}, secret)
	})

	t.Run("未対応のアルゴリズムではファイルを作らずにエラーになること", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "auth-secret.env")
		_, err := LoadOrCreateSecret(path, "RS256")
		assert.ErrorIs(t, err, token.ErrUnsupportedAlgorithm)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("保存済みのアルゴリズムが不正な場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "auth-secret.env")
		require.NoError(t, os.WriteFile(path, []byte("secret=abc\nalgorithm=none\n"), 0o600))

		_, err := LoadOrCreateSecret(path, "HS256")
		assert.Error(t, err)
	})
}
