package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// t.Setenv を使うため、このファイルのテストは並列実行しない。

func TestLoadGateway(t *testing.T) {
	t.Run("未設定の場合は既定値を使うこと", func(t *testing.T) {
		for _, k := range []string{"PORT", "AUTH_URL", "MESSAGE_URL", "UPSTREAM_TIMEOUT", "CORS_ORIGINS"} {
			t.Setenv(k, "")
		}

		cfg, err := LoadGateway()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "http://localhost:8001", cfg.AuthURL)
		assert.Equal(t, "http://localhost:8002", cfg.MessageURL)
		assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
		assert.Empty(t, cfg.CORSOrigins)
	})

	t.Run("環境変数で上書きできること", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("AUTH_URL", "http://auth:8001")
		t.Setenv("UPSTREAM_TIMEOUT", "3s")
		t.Setenv("CORS_ORIGINS", "http://a.example, ,http://b.example")

		cfg, err := LoadGateway()
		require.NoError(t, err)
		assert.Equal(t, "9000", cfg.Port)
		assert.Equal(t, "http://auth:8001", cfg.AuthURL)
		assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
		assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	})

	t.Run("不正な期間はエラーになること", func(t *testing.T) {
		t.Setenv("UPSTREAM_TIMEOUT", "soon")

		_, err := LoadGateway()
		assert.Error(t, err)
	})
}

func TestLoadAuth(t *testing.T) {
	t.Run("既定ではsqliteドライバとHS256を使うこと", func(t *testing.T) {
		for _, k := range []string{"PORT", "AUTH_DB_DRIVER", "DATABASE_URL", "DB_MAX_OPEN_CONNS", "JWT_SECRET_FILE", "JWT_ALGORITHM"} {
			t.Setenv(k, "")
		}

		cfg, err := LoadAuth()
		require.NoError(t, err)
		assert.Equal(t, "8001", cfg.Port)
		assert.Equal(t, DriverSQLite, cfg.DBDriver)
		assert.Equal(t, "HS256", cfg.Algorithm)
		assert.Equal(t, 10, cfg.MaxOpenConns)
	})

	t.Run("pgxドライバを指定できること", func(t *testing.T) {
		t.Setenv("AUTH_DB_DRIVER", "pgx")
		t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/auth?sslmode=disable")

		cfg, err := LoadAuth()
		require.NoError(t, err)
		assert.Equal(t, DriverPostgres, cfg.DBDriver)
		assert.Equal(t, "postgres://u:p@db:5432/auth?sslmode=disable", cfg.DatabaseURL)
	})

	t.Run("未知のドライバはエラーになること", func(t *testing.T) {
		t.Setenv("AUTH_DB_DRIVER", "mysql")

		_, err := LoadAuth()
		assert.Error(t, err)
	})
}

func TestLoadMessage(t *testing.T) {
	t.Run("既定の保持期間は30秒であること", func(t *testing.T) {
		for _, k := range []string{"PORT", "MESSAGE_DB_PATH", "MESSAGE_RETENTION", "MESSAGE_REAP_INTERVAL"} {
			t.Setenv(k, "")
		}

		cfg, err := LoadMessage()
		require.NoError(t, err)
		assert.Equal(t, "8002", cfg.Port)
		assert.Equal(t, 30*time.Second, cfg.Retention)
		assert.Equal(t, 5*time.Second, cfg.ReapInterval)
	})

	t.Run("0以下の保持期間はエラーになること", func(t *testing.T) {
		t.Setenv("MESSAGE_RETENTION", "0s")

		_, err := LoadMessage()
		assert.Error(t, err)
	})
}
