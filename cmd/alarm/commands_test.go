package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/teamboard/pkg/middleware"
)

const testSecret = "cli-test-secret"

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "alarm.yaml")
	body := "auth:\n  jwt_secret: " + testSecret + "\n" +
		"database:\n  path: " + filepath.Join(dir, "alarm.db") + "\n" +
		"log:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd(t *testing.T) {
	root := newRootCmd()

	assert.Equal(t, "alarm", root.Use)
	require.NotNil(t, root.PersistentFlags().Lookup("config"))

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "token", "notify", "purge"} {
		assert.Contains(t, names, want)
	}
}

func TestNotifyCmdFlags(t *testing.T) {
	cmd := notifyCmd(&rootOptions{})
	for _, name := range []string{"url", "token", "to", "kind", "post", "actor", "remove-post"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "フラグ %s", name)
	}
}

func TestTokenCmd(t *testing.T) {
	path := writeConfig(t)

	out, err := execute(t, "--config", path, "token", "alice")
	require.NoError(t, err)

	claims, err := middleware.ParseJWT(testSecret, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestTokenCmd_RequiresUsername(t *testing.T) {
	path := writeConfig(t)

	_, err := execute(t, "--config", path, "token")
	require.Error(t, err)
}

func TestNotifyCmd(t *testing.T) {
	path := writeConfig(t)

	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"alarm-42"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "--config", path, "notify",
		"--url", srv.URL, "--to", "alice", "--kind", "join", "--post", "5", "--actor", "bob")
	require.NoError(t, err)

	assert.Equal(t, "alarm-42", strings.TrimSpace(out))
	assert.Equal(t, "/api/v1/internal/alarms", gotPath)
	assert.Equal(t, "JOIN", gotBody["kind"])
	assert.Equal(t, float64(5), gotBody["postId"])

	claims, err := middleware.ParseJWT(testSecret, strings.TrimPrefix(gotAuth, "Bearer "))
	require.NoError(t, err)
	assert.Equal(t, notifyActor, claims.Username)
}

func TestNotifyCmd_InvalidKind(t *testing.T) {
	path := writeConfig(t)

	_, err := execute(t, "--config", path, "notify", "--url", "http://127.0.0.1:1", "--to", "alice", "--kind", "LIKE")
	require.Error(t, err)
}

func TestPurgeCmd(t *testing.T) {
	path := writeConfig(t)

	out, err := execute(t, "--config", path, "purge")
	require.NoError(t, err)
	assert.Equal(t, "purged=0", strings.TrimSpace(out))
}
