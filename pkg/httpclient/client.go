package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout はリクエスト全体のタイムアウトの既定値。
const DefaultTimeout = 30 * time.Second

// Client はサービス間通信用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTimeout はリクエスト全体のタイムアウトを変更する。0はタイムアウトなしを表す。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://auth:8001"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL は接続先サービスのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response は下流サービスのレスポンスを表す。ボディは読み切った状態で保持する。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// ContentType はContent-Typeヘッダーの値。
	ContentType string
	// Body はレスポンスボディ。
	Body []byte
}

// IsJSON はContent-TypeがJSONを示すかどうかを返す。
func (r *Response) IsJSON() bool {
	mediaType, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// StatusError は下流サービスが2xx以外を返したことを表す。
// 呼び出し元がステータスとボディをそのまま中継できるよう、レスポンス全体を保持する。
type StatusError struct {
	Response *Response
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.Response.StatusCode, string(e.Response.Body))
}

// Do は指定メソッド・パスにbodyをそのまま送信し、レスポンスを返す。
// 2xx以外のステータスもエラーにはせず、そのままResponseとして返す。
// エラーを返すのは通信自体が失敗した場合のみ。
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// コンテキストからリクエストIDを伝播する
	if requestID, ok := ctx.Value(contextKeyRequestID).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) PostJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
// 2xx以外のステータスは*StatusErrorとして返す。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var payload []byte
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		payload = jsonBody
	}

	resp, err := c.Do(ctx, method, path, payload)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Response: resp}
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// サービス間通信時にX-Request-IDヘッダーとして伝播される。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}
