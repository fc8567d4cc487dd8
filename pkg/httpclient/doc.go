// Package httpclient はアラームサービスのHTTP APIを呼び出すクライアントを提供する。
//
// 業務サービスやCLIが内部APIでアラームを作成・削除する際に使用する。
package httpclient
