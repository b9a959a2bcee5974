// Package token はBearerトークン（JWT）の発行・検証・デコードを提供する。
//
// 署名鍵とアルゴリズムは Secret として明示的に受け渡す。プロセス全体で
// 共有するグローバル変数は持たない。authサービスが発行と検証を行い、
// messageサービスは送信者名の取り出しにのみ Decode を使用する。
package token
