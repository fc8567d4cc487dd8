// Package middleware はアラームサービスのGin HTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証、zerologによるアクセスログ、パニックリカバリ、CORS設定、
// ユーザー単位のレート制限を含む。
package middleware
