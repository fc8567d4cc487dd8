package stream

import "errors"

var (
	// ErrClosed は終了済みのHandleに書き込もうとしたことを表す。
	ErrClosed = errors.New("ストリームは既に閉じています")
	// ErrConnect は接続確立時のハンドシェイクに失敗したことを表す。
	ErrConnect = errors.New("ストリームの接続に失敗しました")
)
