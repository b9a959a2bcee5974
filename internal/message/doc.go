// Package message は一時メッセージストアサービスの内部実装を提供する。
//
// メッセージは保持期間（既定30秒）のあいだだけ読み出せる追記専用ログとして扱う。
// 期限切れの行はバックグラウンドの削除ループが回収し、読み出し側でも作成時刻で絞り込むため、
// 削除ループの周期に関わらず期限切れのメッセージが返ることはない。
package message
