package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/hybrid-relay/pkg/jwt"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func field(output, name string) string {
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, name+":") {
			return strings.TrimSpace(strings.TrimPrefix(line, name+":"))
		}
	}
	return ""
}

func TestTokenAndStreamCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "auth:\n  jwt_secret: cli-secret\n  issuer: hybrid\n" +
		"database:\n  driver: sqlite\n  file_path: " + filepath.Join(dir, "relay.db") + "\n" +
		"log:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o600))

	out := run(t, "--config", cfgPath, "token", "--create", "--username", "alice")
	userID := field(out, "user_id")
	token := field(out, "token")
	require.NotEmpty(t, userID)
	require.NotEmpty(t, token)

	tokens, err := jwt.NewManager("cli-secret", time.Hour, "hybrid")
	require.NoError(t, err)
	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	streamID := strings.TrimSpace(run(t, "--config", cfgPath, "stream", "create", "--owner", userID, "--title", "demo"))
	assert.NotEmpty(t, streamID)

	sessionID := strings.TrimSpace(run(t, "--config", cfgPath, "code", "create", "--owner", userID, "--stream", streamID))
	assert.NotEmpty(t, sessionID)
	assert.Empty(t, strings.TrimSpace(run(t, "--config", cfgPath, "code", "versions", sessionID)))
}
