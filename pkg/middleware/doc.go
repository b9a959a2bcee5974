// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、CORS設定、リクエストIDの採番と伝播など、
// 全サービスで共通して使用するミドルウェアを含む。
package middleware
