// Package httpserver はHTTPサーバーの起動とグレースフルシャットダウンを提供する。
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// shutdownTimeout は停止要求から処理中リクエストの完了を待つ最大時間。
const shutdownTimeout = 10 * time.Second

// Run はaddrでhandlerを公開し、ctxがキャンセルされるまでブロックする。
// キャンセル後は処理中のリクエストの完了を待ってから戻る。
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[HTTP] %s を停止します", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}
