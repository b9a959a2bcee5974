package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/chatmesh/internal/config"
	"github.com/nao1215/chatmesh/pkg/database"
	"github.com/nao1215/chatmesh/pkg/httpserver"
	"github.com/nao1215/chatmesh/pkg/middleware"
	"github.com/nao1215/chatmesh/pkg/token"
)

// Server は認証サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はユーザーストアのコネクションプール。
	db *sql.DB
	// store はusersテーブルへのアクセスを提供する。
	store *Store
	// issuer はトークンの発行・検証を行う。
	issuer *token.Issuer
}

// NewServer は新しい認証サーバーを生成する。
// ユーザーストアへの接続とマイグレーション、署名鍵の読み込み（無ければ生成）を行う。
func NewServer(ctx context.Context, cfg *config.Auth) (*Server, error) {
	db, err := database.Open(ctx, database.Options{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	secret, err := LoadOrCreateSecret(cfg.SecretFile, cfg.Algorithm)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("署名鍵の読み込みに失敗: %w", err)
	}

	return newServer(cfg.Port, db, token.NewIssuer(secret)), nil
}

// newServer は依存を受け取ってサーバーを組み立てる。
func newServer(port string, db *sql.DB, issuer *token.Issuer) *Server {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())

	s := &Server{
		router: router,
		port:   port,
		db:     db,
		store:  NewStore(db),
		issuer: issuer,
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
// 戻る際にデータベース接続を閉じる。
func (s *Server) Run(ctx context.Context) error {
	defer func() { _ = s.db.Close() }()
	return httpserver.Run(ctx, fmt.Sprintf(":%s", s.port), s.router)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	auth := s.router.Group("/auth")
	{
		auth.POST("/register", s.handleRegister())
		auth.POST("/login", s.handleLogin())
		// Gatewayからのトークン検証
		auth.POST("/jwt_val", s.handleVerify())

		// 運用・デバッグ用。Gatewayの許可リストで到達可否を制御する
		auth.GET("/users", s.handleListUsers())
		auth.DELETE("/users", s.handleClearUsers())
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
	})
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"detail": "method not allowed"})
	})

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
	})
}

// credentialsRequest は登録・ログインのリクエストボディ。
type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// credentialsFieldsDetail は登録・ログインの入力不備時に返す期待形式。
const credentialsFieldsDetail = `json fields: {"username":username, "password":password}`

// verifyRequest はトークン検証のリクエストボディ。
type verifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// 登録とログインは分離しており、登録時にトークンは発行しない。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": credentialsFieldsDetail})
			return
		}

		err := s.store.Create(c.Request.Context(), req.Username, HashPassword(req.Password))
		if errors.Is(err, ErrUserExists) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "user already exists"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "can't register user"})
			log.Printf("ユーザー登録エラー: request_id=%s, error=%v", middleware.GetRequestID(c), err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"status": "success"})
	}
}

// handleLogin はログインを処理し、トークンを発行するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": credentialsFieldsDetail})
			return
		}

		err := s.store.Authenticate(c.Request.Context(), req.Username, HashPassword(req.Password))
		if errors.Is(err, ErrBadCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "bad credentials"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "can't log in"})
			log.Printf("ログインエラー: request_id=%s, error=%v", middleware.GetRequestID(c), err)
			return
		}

		signed, err := s.issuer.Issue(req.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "can't issue token"})
			log.Printf("トークン発行エラー: request_id=%s, error=%v", middleware.GetRequestID(c), err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success", "token": signed})
	}
}

// handleVerify はトークンを検証するハンドラを返す。
// 署名・アルゴリズム・有効期限の検証に加え、主張するユーザーが現存するかも確認する。
func (s *Server) handleVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": `json fields: {"token":token}`})
			return
		}

		claims, err := s.issuer.Verify(req.Token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
			return
		}

		exists, err := s.store.Exists(c.Request.Context(), claims.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "can't verify token"})
			log.Printf("トークン検証エラー: request_id=%s, error=%v", middleware.GetRequestID(c), err)
			return
		}
		if !exists {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "user doesn't exist"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "valid"})
	}
}

// handleListUsers は全ユーザーを返すハンドラを返す。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := s.store.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "can't list users"})
			log.Printf("ユーザー一覧取得エラー: request_id=%s, error=%v", middleware.GetRequestID(c), err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// handleClearUsers は全ユーザーを削除するハンドラを返す。
func (s *Server) handleClearUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := s.store.Clear(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "can't clear users"})
			log.Printf("ユーザー一括削除エラー: request_id=%s, error=%v", middleware.GetRequestID(c), err)
			return
		}
		log.Printf("[Auth] ユーザーを一括削除しました: deleted=%d", deleted)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted": deleted})
	}
}
