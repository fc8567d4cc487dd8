package event

import (
	"fmt"
	"strings"
)

// Kind はアラームの種類を表す。
type Kind string

const (
	// KindComment は自分の投稿にコメントが付いたことを表す。
	KindComment Kind = "COMMENT"
	// KindTeamComment は参加しているチームの投稿にコメントが付いたことを表す。
	KindTeamComment Kind = "TEAM_COMMENT"
	// KindJoin は自分の投稿のチームに参加者が加わったことを表す。
	KindJoin Kind = "JOIN"
	// KindWaiting は待機リストから参加者に繰り上がったことを表す。
	KindWaiting Kind = "WAITING"
)

// Kinds は定義済みのアラーム種別を返す。
func Kinds() []Kind {
	return []Kind{KindComment, KindTeamComment, KindJoin, KindWaiting}
}

// Valid は定義済みのアラーム種別かどうかを返す。
func (k Kind) Valid() bool {
	switch k {
	case KindComment, KindTeamComment, KindJoin, KindWaiting:
		return true
	}
	return false
}

// ParseKind は文字列をアラーム種別に変換する。大文字小文字は区別しない。
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("不明なアラーム種別です: %q", s)
	}
	return k, nil
}

// Name はストリームに書き込むイベント名を表す。
type Name string

const (
	// NameOpen はストリーム接続確立時のハンドシェイクイベント。
	NameOpen Name = "open"
	// NameAlarm はアラーム配信イベント。データにはアラームIDが入る。
	NameAlarm Name = "alarm"
)

// Subject は対象投稿を持つペイロードが実装するインターフェース。
// 投稿削除時の一括クリーンアップに使用する。
type Subject interface {
	SubjectPostID() int64
}

// PostArgs は投稿を起点とするアラームのペイロード。
// 現在定義されている全種別がこの形を使う。
type PostArgs struct {
	// PostID は対象投稿のID。
	PostID int64 `json:"post_id"`
	// ActorUsername はイベントを発生させたユーザー名。
	ActorUsername string `json:"actor_username"`
}

// SubjectPostID は対象投稿のIDを返す。
func (a PostArgs) SubjectPostID() int64 {
	return a.PostID
}
