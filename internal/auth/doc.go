// Package auth は認証サービスの内部実装を提供する。
//
// ユーザーの登録・ログイン・一覧・一括削除と、Bearerトークンの発行・検証を担当する。
// 署名鍵は起動時に一度だけ読み込み（無ければ生成して保存し）、以降は変更しない。
// Gatewayは/auth以外への全リクエストについて POST /auth/jwt_val で検証を依頼する。
package auth
