// Package notification はアラームサービスのHTTP APIと、業務処理向けの通知窓口を提供する。
//
// Notifierはアラームを記録してからライブ配信を試みる。記録に失敗した場合は配信しない。
// 配信の失敗は記録にも呼び出し元にも影響しない。
//
// Serverは一覧・削除・購読(SSE)のAPIと、他サービスから呼び出される内部APIを公開する。
package notification
