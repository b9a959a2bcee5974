// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// Gatewayがauthサービスへトークン検証を依頼する際や、バックエンドへ
// リクエストを中継する際に使用する。リトライは行わず、下流の失敗は
// そのまま呼び出し元へ返す。
package httpclient
