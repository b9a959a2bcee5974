package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/chatmesh/internal/config"
	"github.com/nao1215/chatmesh/pkg/httpclient"
	"github.com/nao1215/chatmesh/pkg/httpserver"
	"github.com/nao1215/chatmesh/pkg/middleware"
)

// verifyPath はauthサービスのトークン検証エンドポイント。
const verifyPath = "/auth/jwt_val"

// Server はAPI Gatewayサービスの HTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// routes は転送先の許可リスト。
	routes routeTable
	// verifier はトークン検証を依頼するauthサービスのクライアント。
	verifier *httpclient.Client
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg *config.Gateway) *Server {
	authClient := httpclient.New(cfg.AuthURL, httpclient.WithTimeout(cfg.UpstreamTimeout))
	messageClient := httpclient.New(cfg.MessageURL, httpclient.WithTimeout(cfg.UpstreamTimeout))

	return newServer(cfg.Port, authClient, messageClient, cfg.CORSOrigins)
}

// newServer は依存を受け取ってサーバーを組み立てる。
func newServer(port string, authClient, messageClient *httpclient.Client, corsOrigins []string) *Server {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.RedirectTrailingSlash = false
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(corsOrigins))
	router.Use(allowMethods(http.MethodGet, http.MethodPost, http.MethodDelete))

	s := &Server{
		router:   router,
		port:     port,
		routes:   newRouteTable(authClient, messageClient),
		verifier: authClient,
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまでブロックする。
func (s *Server) Run(ctx context.Context) error {
	return httpserver.Run(ctx, fmt.Sprintf(":%s", s.port), s.router)
}

// setupRoutes はAPIルーティングを設定する。
// 受け付けるメソッドはGET/POST/DELETEのみで、それ以外はルーティング前に405を返す。
func (s *Server) setupRoutes() {
	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	// パスを省略した /{service} も同じハンドラで受け、許可リストに無いパスとして扱う
	handler := s.handleGateway()
	for _, pattern := range []string{"/:service", "/:service/*path"} {
		s.router.GET(pattern, handler)
		s.router.POST(pattern, handler)
		s.router.DELETE(pattern, handler)
	}

	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"detail": "method not allowed"})
	})
	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": errServiceNotFound.Error()})
	})
}

// allowMethods は指定以外のメソッドをルーティング前に405で拒否するミドルウェアを返す。
func allowMethods(methods ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(methods))
	for _, m := range methods {
		allowed[m] = true
	}
	return func(c *gin.Context) {
		if !allowed[c.Request.Method] {
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"detail": "method not allowed"})
			return
		}
		c.Next()
	}
}

// handleGateway は許可リストに従ってリクエストを内部サービスへ転送するハンドラを返す。
func (s *Server) handleGateway() gin.HandlerFunc {
	return func(c *gin.Context) {
		service := c.Param("service")
		path := strings.TrimPrefix(c.Param("path"), "/")

		rt, err := s.routes.resolve(service, path)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "must send JSON"})
			return
		}

		if !rt.public {
			tok, status, detail := extractToken(body)
			if status != 0 {
				c.JSON(status, gin.H{"detail": detail})
				return
			}
			if !s.verify(c, tok) {
				return
			}
		}

		s.forward(c, rt, "/"+service+"/"+path, body)
	}
}

// extractToken はボディからtokenフィールドを取り出す。
// 取り出せない場合は応答すべきステータスと詳細を返す。
func extractToken(body []byte) (string, int, string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return "", http.StatusBadRequest, "must send JSON"
	}

	raw, ok := fields["token"]
	if !ok {
		return "", http.StatusBadRequest, "token required"
	}

	var tok string
	if err := json.Unmarshal(raw, &tok); err != nil || tok == "" {
		return "", http.StatusUnauthorized, "token required"
	}
	return tok, 0, ""
}

// verify はauthサービスにトークン検証を依頼する。
// 検証に失敗した場合はauthの応答をそのまま返してfalseを返す。
func (s *Server) verify(c *gin.Context, tok string) bool {
	err := s.verifier.PostJSON(c.Request.Context(), verifyPath, map[string]string{"token": tok}, nil)
	if err == nil {
		return true
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		relay(c, statusErr.Response)
		return false
	}

	log.Printf("トークン検証呼び出しエラー: request_id=%s, error=%v", middleware.GetRequestID(c), err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	return false
}

// forward はリクエストを同じメソッド・同じボディで転送先へ送り、応答を中継する。
func (s *Server) forward(c *gin.Context, rt route, path string, body []byte) {
	if q := c.Request.URL.RawQuery; q != "" {
		path += "?" + q
	}

	resp, err := rt.client.Do(c.Request.Context(), c.Request.Method, path, body)
	if err != nil {
		log.Printf("内部サービス呼び出しエラー: request_id=%s, url=%s%s, error=%v",
			middleware.GetRequestID(c), rt.client.BaseURL(), path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	relay(c, resp)
}

// relay は内部サービスの応答をステータスとボディを保ったまま返す。
// JSON以外の応答はテキストとして返す。
func relay(c *gin.Context, resp *httpclient.Response) {
	if resp.IsJSON() {
		c.Data(resp.StatusCode, resp.ContentType, resp.Body)
		return
	}
	c.Data(resp.StatusCode, "text/plain; charset=utf-8", resp.Body)
}
