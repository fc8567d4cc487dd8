// Package alarm はアラーム記録の永続化を担当する。
//
// アラームは作成後に変更されない。唯一の例外は論理削除の日時で、
// 論理削除されたアラームはすべての読み取りから除外される。
// ライブ配信の成否とは独立して記録され、後から一覧APIで取得できる。
package alarm
