// Package config は各サービスの設定を環境変数から読み込む。
//
// カレントディレクトリに .env があれば事前に読み込むが、
// 既に設定されている環境変数は上書きしない。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/nao1215/chatmesh/pkg/database"
)

// 対応しているユーザーストアのドライバ名。
const (
	DriverSQLite   = database.DriverSQLite
	DriverPostgres = database.DriverPostgres
)

// Gateway はGatewayサービスの設定。
type Gateway struct {
	// Port はリッスンポート。
	Port string
	// AuthURL はauthサービスのベースURL。
	AuthURL string
	// MessageURL はmessageサービスのベースURL。
	MessageURL string
	// UpstreamTimeout は下流サービス呼び出し1回あたりのタイムアウト。
	UpstreamTimeout time.Duration
	// CORSOrigins はCORSを許可するオリジン。空の場合CORSヘッダーを付与しない。
	CORSOrigins []string
}

// Auth はauthサービスの設定。
type Auth struct {
	// Port はリッスンポート。
	Port string
	// DBDriver はユーザーストアのドライバ（"sqlite" または "pgx"）。
	DBDriver string
	// DatabaseURL はSQLiteのファイルパス、またはPostgreSQLの接続URL。
	DatabaseURL string
	// MaxOpenConns はPostgreSQL使用時のコネクションプール上限。
	MaxOpenConns int
	// SecretFile は署名鍵とアルゴリズムを保存するファイルのパス。
	SecretFile string
	// Algorithm は署名鍵を新規生成する際に保存するアルゴリズム名。
	Algorithm string
}

// Message はmessageサービスの設定。
type Message struct {
	// Port はリッスンポート。
	Port string
	// DatabasePath はSQLiteのファイルパス。
	DatabasePath string
	// Retention はメッセージの保持期間。
	Retention time.Duration
	// ReapInterval は期限切れメッセージを削除する間隔。
	ReapInterval time.Duration
}

var dotenvOnce sync.Once

// loadDotEnv は .env が存在すれば一度だけ読み込む。
func loadDotEnv() {
	dotenvOnce.Do(func() { _ = godotenv.Load() })
}

// LoadGateway はGatewayサービスの設定を読み込む。
func LoadGateway() (*Gateway, error) {
	loadDotEnv()

	timeout, err := getDuration("UPSTREAM_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg := &Gateway{
		Port:            getEnvOr("PORT", "8080"),
		AuthURL:         getEnvOr("AUTH_URL", "http://localhost:8001"),
		MessageURL:      getEnvOr("MESSAGE_URL", "http://localhost:8002"),
		UpstreamTimeout: timeout,
		CORSOrigins:     splitCSV(os.Getenv("CORS_ORIGINS")),
	}
	if cfg.UpstreamTimeout < 0 {
		return nil, errors.New("UPSTREAM_TIMEOUT は0以上で指定してください")
	}
	return cfg, nil
}

// LoadAuth はauthサービスの設定を読み込む。
func LoadAuth() (*Auth, error) {
	loadDotEnv()

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	cfg := &Auth{
		Port:         getEnvOr("PORT", "8001"),
		DBDriver:     getEnvOr("AUTH_DB_DRIVER", DriverSQLite),
		DatabaseURL:  getEnvOr("DATABASE_URL", "/data/auth.db"),
		MaxOpenConns: maxOpen,
		SecretFile:   getEnvOr("JWT_SECRET_FILE", "/data/auth-secret.env"),
		Algorithm:    getEnvOr("JWT_ALGORITHM", "HS256"),
	}

	switch cfg.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("AUTH_DB_DRIVER が不正です: %q", cfg.DBDriver)
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, errors.New("DB_MAX_OPEN_CONNS は1以上で指定してください")
	}
	return cfg, nil
}

// LoadMessage はmessageサービスの設定を読み込む。
func LoadMessage() (*Message, error) {
	loadDotEnv()

	retention, err := getDuration("MESSAGE_RETENTION", 30*time.Second)
	if err != nil {
		return nil, err
	}
	reap, err := getDuration("MESSAGE_REAP_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg := &Message{
		Port:         getEnvOr("PORT", "8002"),
		DatabasePath: getEnvOr("MESSAGE_DB_PATH", "/data/message.db"),
		Retention:    retention,
		ReapInterval: reap,
	}
	if cfg.Retention <= 0 || cfg.ReapInterval <= 0 {
		return nil, errors.New("MESSAGE_RETENTION と MESSAGE_REAP_INTERVAL は正の値で指定してください")
	}
	return cfg, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// getDuration は環境変数を time.Duration として解釈する（例: "30s"）。
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s の形式が不正です: %w", key, err)
	}
	return d, nil
}

// getInt は環境変数を整数として解釈する。
func getInt(key string, defaultValue int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s の形式が不正です: %w", key, err)
	}
	return n, nil
}

// splitCSV はカンマ区切りの文字列を空要素を除いて分割する。
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
