// メッセージストアサービスのエントリポイント。
// 保持期間付きのメッセージの保存と取得を担当する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/chatmesh/internal/config"
	"github.com/nao1215/chatmesh/internal/message"
)

func main() {
	cfg, err := config.LoadMessage()
	if err != nil {
		log.Fatalf("メッセージストアの設定読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := message.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("メッセージストアサーバーの初期化に失敗: %v", err)
	}

	log.Printf("メッセージストアサービスを起動します: :%s (retention=%s)", cfg.Port, cfg.Retention)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("メッセージストアサービスの起動に失敗: %v", err)
	}
}
