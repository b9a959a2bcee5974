// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、/{service}/{path} へのリクエストを
// 許可リスト（ルーティングテーブル）に従って内部サービスへ転送する。
// auth以外のサービス宛てのリクエストは、転送前にボディ内のトークンを
// authサービスの POST /auth/jwt_val で検証する。検証に失敗した場合は
// authの応答をそのまま返し、転送は行わない。
package gateway
