package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/nao1215/chatmesh/pkg/token"
)

// 署名鍵ファイルのキー名。
const (
	secretFileKey    = "secret"
	algorithmFileKey = "algorithm"
)

// secretBytes は新規生成する署名鍵のバイト長。
const secretBytes = 32

// LoadOrCreateSecret は署名鍵ファイルから鍵とアルゴリズムを読み込む。
// ファイル（またはsecretキー）が無い場合のみ乱数で鍵を生成し、algorithmとともに保存してから読み込む。
// 既存の鍵は再生成しない。再生成すると発行済みの全トークンが無効になるため。
func LoadOrCreateSecret(path, algorithm string) (token.Secret, error) {
	secret, err := readSecret(path)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return token.Secret{}, err
	}

	// 保存前にアルゴリズム名を検証する
	if _, err := token.NewSecret([]byte("probe"), algorithm); err != nil {
		return token.Secret{}, err
	}

	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return token.Secret{}, fmt.Errorf("署名鍵の生成に失敗: %w", err)
	}
	if err := writeSecret(path, hex.EncodeToString(raw), algorithm); err != nil {
		return token.Secret{}, err
	}
	log.Printf("[Auth] 署名鍵を新規生成しました: %s", path)

	return readSecret(path)
}

// readSecret は署名鍵ファイルを読み込む。ファイルまたはsecretキーが無い場合はfs.ErrNotExistを返す。
func readSecret(path string) (token.Secret, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return token.Secret{}, fs.ErrNotExist
		}
		return token.Secret{}, fmt.Errorf("署名鍵ファイルの読み込みに失敗: %w", err)
	}
	if values[secretFileKey] == "" {
		return token.Secret{}, fs.ErrNotExist
	}

	secret, err := token.NewSecret([]byte(values[secretFileKey]), values[algorithmFileKey])
	if err != nil {
		return token.Secret{}, fmt.Errorf("署名鍵ファイルの内容が不正です: %w", err)
	}
	return secret, nil
}

// writeSecret は署名鍵ファイルを所有者のみ読み書き可能な権限で書き出す。
func writeSecret(path, key, algorithm string) error {
	content, err := godotenv.Marshal(map[string]string{
		secretFileKey:    key,
		algorithmFileKey: algorithm,
	})
	if err != nil {
		return fmt.Errorf("署名鍵のシリアライズに失敗: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("署名鍵ディレクトリの作成に失敗: %w", err)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0o600); err != nil {
		return fmt.Errorf("署名鍵ファイルの書き込みに失敗: %w", err)
	}
	return nil
}
