package tunnel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTunnelConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tunnels.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEntries_ParsesValidFile(t *testing.T) {
	path := writeTunnelConfig(t, `{
		"primary": {
			"remote_ssh_host": "proxy1.example.com",
			"remote_ssh_port": 22,
			"ssh_user": "scout",
			"local_port": 18080,
			"ssh_key_path": "/keys/primary"
		},
		"backup": {
			"remote_ssh_host": "proxy2.example.com",
			"remote_ssh_port": 2222,
			"ssh_user": "scout",
			"local_port": 18081,
			"ssh_key_path": "/keys/backup"
		}
	}`)

	entries, err := LoadEntries(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["primary"])
	assert.True(t, names["backup"])
}

func TestLoadEntries_MissingRequiredFieldFails(t *testing.T) {
	path := writeTunnelConfig(t, `{
		"primary": {
			"remote_ssh_host": "proxy1.example.com",
			"ssh_user": "scout",
			"local_port": 18080,
			"ssh_key_path": "/keys/primary"
		}
	}`)

	_, err := LoadEntries(path)
	require.Error(t, err)
}

func TestLoadEntries_EmptyFileFails(t *testing.T) {
	path := writeTunnelConfig(t, `{}`)

	_, err := LoadEntries(path)
	require.Error(t, err)
}

func TestLoadEntries_MissingFileFails(t *testing.T) {
	_, err := LoadEntries(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
}
