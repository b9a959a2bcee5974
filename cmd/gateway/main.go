// API Gatewayサービスのエントリポイント。
// 許可リストに基づくリクエストルーティングと、転送前のトークン検証を担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/chatmesh/internal/config"
	"github.com/nao1215/chatmesh/internal/gateway"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatalf("Gatewayの設定読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := gateway.NewServer(cfg)

	log.Printf("Gatewayサービスを起動します: :%s (auth=%s, message=%s)", cfg.Port, cfg.AuthURL, cfg.MessageURL)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
