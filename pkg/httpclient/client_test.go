package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	Method  string
	Path    string
	Body    []byte
	Headers http.Header
}

// newTestServer は受け取ったリクエストを記録し、固定のレスポンスを返すサーバーを生成する。
func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *testRequest) {
	t.Helper()
	got := &testRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Method = r.Method
		got.Path = r.URL.Path
		got.Headers = r.Header.Clone()
		got.Body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("既定のタイムアウトは30秒", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8086/")
		if client.baseURL != "http://localhost:8086" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:8086")
		}
		if client.httpClient.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
		}
	})

	t.Run("オプションが適用されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8086", WithToken("tok"), WithTimeout(time.Second))
		if client.token != "tok" {
			t.Errorf("token = %q, want %q", client.token, "tok")
		}
		if client.httpClient.Timeout != time.Second {
			t.Errorf("Timeout = %v, want 1s", client.httpClient.Timeout)
		}
	})
}

func TestCreateAlarm(t *testing.T) {
	t.Parallel()

	t.Run("内部APIにPOSTしてIDを返すこと", func(t *testing.T) {
		t.Parallel()

		srv, got := newTestServer(t, http.StatusCreated, `{"id":"alarm-1"}`)
		client := New(srv.URL, WithToken("secret-token"))

		id, err := client.CreateAlarm(context.Background(), AlarmRequest{
			Recipient: "alice", Kind: "JOIN", PostID: 3, ActorUsername: "bob",
		})
		if err != nil {
			t.Fatalf("CreateAlarm()でエラー: %v", err)
		}
		if id != "alarm-1" {
			t.Errorf("id = %q, want %q", id, "alarm-1")
		}
		if got.Method != http.MethodPost || got.Path != "/api/v1/internal/alarms" {
			t.Errorf("リクエスト = %s %s", got.Method, got.Path)
		}
		if got.Headers.Get("Authorization") != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got.Headers.Get("Authorization"))
		}

		var body map[string]any
		if err := json.Unmarshal(got.Body, &body); err != nil {
			t.Fatalf("リクエストボディのパースに失敗: %v", err)
		}
		if body["recipient"] != "alice" || body["kind"] != "JOIN" || body["postId"] != float64(3) {
			t.Errorf("リクエストボディ = %v", body)
		}
	})

	t.Run("エラーレスポンスはStatusErrorになること", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t, http.StatusBadRequest, `{"error":"不明なアラーム種別です"}`)
		_, err := New(srv.URL).CreateAlarm(context.Background(), AlarmRequest{Recipient: "alice", Kind: "LIKE"})

		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("StatusErrorではない: %v", err)
		}
		if se.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d, want %d", se.StatusCode, http.StatusBadRequest)
		}
	})
}

func TestRemovePostAlarms(t *testing.T) {
	t.Parallel()

	srv, got := newTestServer(t, http.StatusOK, `{"deleted":4}`)
	n, err := New(srv.URL).RemovePostAlarms(context.Background(), 12)
	if err != nil {
		t.Fatalf("RemovePostAlarms()でエラー: %v", err)
	}
	if n != 4 {
		t.Errorf("deleted = %d, want 4", n)
	}
	if got.Method != http.MethodDelete || got.Path != "/api/v1/internal/posts/12/alarms" {
		t.Errorf("リクエスト = %s %s", got.Method, got.Path)
	}
	if got.Headers.Get("Content-Type") != "" {
		t.Errorf("ボディの無いリクエストにContent-Typeが付いている: %q", got.Headers.Get("Content-Type"))
	}
}

func TestListAlarms(t *testing.T) {
	t.Parallel()

	t.Run("一覧をデコードできること", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t, http.StatusOK,
			`[{"id":"a","recipientUsername":"alice","actorUsername":"bob","subjectPostId":1,"kind":"COMMENT","createdAt":"2026-01-01T00:00:00Z"}]`)
		alarms, err := New(srv.URL).ListAlarms(context.Background())
		if err != nil {
			t.Fatalf("ListAlarms()でエラー: %v", err)
		}
		if len(alarms) != 1 || alarms[0].ActorUsername != "bob" {
			t.Errorf("alarms = %+v", alarms)
		}
	})

	t.Run("不正なJSONはエラー", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t, http.StatusOK, `not json`)
		if _, err := New(srv.URL).ListAlarms(context.Background()); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})

	t.Run("キャンセル済みのコンテキストはエラー", func(t *testing.T) {
		t.Parallel()

		srv, _ := newTestServer(t, http.StatusOK, `[]`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := New(srv.URL).ListAlarms(ctx); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}
