package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv_Priority(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MSG_A=base\nMSG_B=base\nMSG_C=base\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("MSG_B=local\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.staging"), []byte("MSG_C=staging\n"), 0o600))

	t.Setenv("APP_ENV", "staging")
	for _, k := range []string{"MSG_A", "MSG_B", "MSG_C"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	loaded := LoadDotEnv(dir)
	assert.Len(t, loaded, 3)
	assert.Equal(t, "base", os.Getenv("MSG_A"))
	assert.Equal(t, "local", os.Getenv("MSG_B"))
	assert.Equal(t, "staging", os.Getenv("MSG_C"))
}

func TestLoadDotEnv_ProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MSG_D=file\n"), 0o600))
	t.Setenv("APP_ENV", "")
	t.Setenv("MSG_D", "process")

	LoadDotEnv(dir)
	assert.Equal(t, "process", os.Getenv("MSG_D"))
}
