// Package stream はユーザーごとのライブ配信チャネルを管理する。
//
// Registryはユーザー名から現在のHandleへの対応を保持する唯一の共有状態で、
// 同じユーザーが再接続した場合は新しいHandleで置き換える。古いHandleは閉じない。
// Handleが終了状態に遷移したとき、対応がまだそのHandleを指している場合に限り
// Registryから取り除かれる。
//
// Dispatcherは接続時のハンドシェイクと、永続化済みアラームのベストエフォート配信を行う。
// 配信の失敗は呼び出し元に伝播しない。
package stream
