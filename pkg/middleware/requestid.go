package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/chatmesh/pkg/httpclient"
)

// HeaderRequestID はリクエストIDを伝播するためのHTTPヘッダーキー。
const HeaderRequestID = "X-Request-ID"

// ginKeyRequestID はGinコンテキストにリクエストIDを格納するためのキー。
const ginKeyRequestID = "request_id"

// RequestID はリクエストIDを採番するGinミドルウェアを返す。
// 受信ヘッダーにIDがあればそれを引き継ぎ、無ければUUIDを発行する。
// IDはレスポンスヘッダーとリクエストのcontextに設定され、
// httpclient経由の下流呼び出しにも伝播する。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(ginKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(httpclient.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// GetRequestID はGinコンテキストからリクエストIDを取得する。
// RequestIDミドルウェアが適用されていない場合は空文字列を返す。
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(ginKeyRequestID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
