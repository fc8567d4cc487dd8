// Package logging はzerologベースの構造化ロガーを生成する。
//
// コンソール向けには短いタイムスタンプの人間可読形式、
// 収集基盤向けにはJSON Lines形式を出力する。
package logging
