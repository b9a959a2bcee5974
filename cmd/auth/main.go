// 認証サービスのエントリポイント。
// ユーザーの登録・ログインとトークンの発行・検証を担当する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/chatmesh/internal/auth"
	"github.com/nao1215/chatmesh/internal/config"
)

func main() {
	cfg, err := config.LoadAuth()
	if err != nil {
		log.Fatalf("認証サービスの設定読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := auth.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("認証サーバーの初期化に失敗: %v", err)
	}

	log.Printf("認証サービスを起動します: :%s (driver=%s)", cfg.Port, cfg.DBDriver)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("認証サービスの起動に失敗: %v", err)
	}
}
