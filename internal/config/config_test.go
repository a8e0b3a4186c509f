package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8082, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "messenger.db", cfg.Database.GetDSN())
	assert.Equal(t, 50, cfg.Messenger.MessageWindow)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowOrigins())
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
  env: production
database:
  driver: mysql
  host: db
  user: app
  password: secret
  dbname: messenger
cors:
  allow_origins: "https://a.example.com, https://b.example.com"
messenger:
  message_window: 30
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("APP_ENV", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("ES_ADDRESSES", "http://es1:9200, http://es2:9200")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "app:secret@tcp(db.internal:3306)/messenger?charset=utf8mb4&parseTime=True&loc=Local", cfg.Database.GetDSN())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowOrigins())
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Elasticsearch.Addresses)
	assert.Equal(t, 30, cfg.Messenger.MessageWindow)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
