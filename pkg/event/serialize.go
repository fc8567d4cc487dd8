package event

import (
	"encoding/json"
	"fmt"
)

// EncodeArgs はアラーム種別に対応するペイロードをJSONにシリアライズする。
// 未定義の種別はエラーになる。
func EncodeArgs(kind Kind, args any) (json.RawMessage, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("不明なアラーム種別です: %q", kind)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("ペイロードのシリアライズに失敗: %w", err)
	}
	return raw, nil
}

// DecodeArgs はJSONペイロードを指定された型にデシリアライズする。
func DecodeArgs[T any](raw json.RawMessage) (*T, error) {
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("ペイロードのデシリアライズに失敗: %w", err)
	}
	return &args, nil
}

// SubjectOf はペイロードから対象投稿IDを取り出す。
// Subjectを実装していない場合は0を返す。
func SubjectOf(args any) int64 {
	if s, ok := args.(Subject); ok {
		return s.SubjectPostID()
	}
	return 0
}
