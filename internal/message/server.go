package message

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/chatmesh/internal/config"
	"github.com/nao1215/chatmesh/pkg/database"
	"github.com/nao1215/chatmesh/pkg/httpserver"
	"github.com/nao1215/chatmesh/pkg/middleware"
	"github.com/nao1215/chatmesh/pkg/token"
)

// Server はメッセージストアサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store はmessagesテーブルへのアクセスを提供する。
	store *Store
	// reapInterval は期限切れメッセージを削除する間隔。
	reapInterval time.Duration
}

// NewServer は新しいメッセージストアサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(ctx context.Context, cfg *config.Message) (*Server, error) {
	db, err := database.Open(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    cfg.DatabasePath,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return newServer(cfg.Port, db, NewStore(db, WithRetention(cfg.Retention)), cfg.ReapInterval), nil
}

// newServer は依存を受け取ってサーバーを組み立てる。
func newServer(port string, db *sql.DB, store *Store, reapInterval time.Duration) *Server {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())

	s := &Server{
		router:       router,
		port:         port,
		db:           db,
		store:        store,
		reapInterval: reapInterval,
	}
	s.setupRoutes()

	return s
}

// Run は期限切れメッセージの削除ループとHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	reaperDone := s.store.StartReaper(ctx, s.reapInterval)
	defer func() {
		cancel()
		<-reaperDone
		_ = s.db.Close()
	}()

	return httpserver.Run(ctx, fmt.Sprintf(":%s", s.port), s.router)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	messages := s.router.Group("/messages")
	{
		messages.POST("/send", s.handleSend())
		messages.GET("/fetch", s.handleFetch())
		messages.POST("/fetch", s.handleFetch())
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
	})
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"detail": "method not allowed"})
	})

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "message"})
	})
}

// sendRequest はメッセージ送信のリクエストボディ。
// 空文字列の本文は許可するため、フィールドの有無はポインタで判定する。
type sendRequest struct {
	Message *string `json:"message"`
	Token   *string `json:"token"`
}

// sendFieldsDetail は送信時の入力不備で返す期待形式。
const sendFieldsDetail = `json fields: {"message":message, "token":token}`

// handleSend はメッセージ送信を処理するハンドラを返す。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Message == nil || req.Token == nil || *req.Token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": sendFieldsDetail})
			return
		}

		// 署名はGatewayが検証済みのため、ここではクレームのみ取り出す
		claims, err := token.Decode(*req.Token)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid token"})
			return
		}

		if err := s.store.Append(c.Request.Context(), claims.Username, *req.Message); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "can't send message"})
			log.Printf("メッセージ保存エラー: request_id=%s, error=%v", middleware.GetRequestID(c), err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// handleFetch は保持期間内のメッセージを挿入順に返すハンドラを返す。
func (s *Server) handleFetch() gin.HandlerFunc {
	return func(c *gin.Context) {
		messages, err := s.store.Fetch(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("error fetching messages: %v", err)})
			log.Printf("メッセージ取得エラー: request_id=%s, error=%v", middleware.GetRequestID(c), err)
			return
		}
		c.JSON(http.StatusOK, messages)
	}
}
