package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigSubstitutesPlaceholders(t *testing.T) {
	dir := t.TempDir()
	base := `
db:
  password: ${DB_PASSWORD}
  name: ${DB_NAME}
mq:
  url: amqp://guest:${MQ_PASS}@mq:5672/
cors:
  - https://${PORTAL_HOST}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secrets.env"), []byte("DB_PASSWORD=from-secrets\n"), 0o600))
	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("MQ_PASS", "guest")
	t.Setenv("PORTAL_HOST", "millets.example.in")
	t.Setenv("DB_NAME", "")

	raw, err := LoadConfig("local", dir)
	require.NoError(t, err)

	db := raw["db"].(map[string]interface{})
	assert.Equal(t, "from-secrets", db["password"])
	assert.Equal(t, "${DB_NAME}", db["name"])
	assert.Equal(t, "amqp://guest:guest@mq:5672/", raw["mq"].(map[string]interface{})["url"])
	assert.Equal(t, []interface{}{"https://millets.example.in"}, raw["cors"])
}

func TestMergeMapsOverridesNested(t *testing.T) {
	dst := map[string]interface{}{"store": map[string]interface{}{"ttl": "5m", "category_ttl": "24h"}}
	src := map[string]interface{}{"store": map[string]interface{}{"ttl": "30s"}, "instance": "portal-2"}

	got := mergeMaps(dst, src)

	assert.Equal(t, map[string]interface{}{"ttl": "30s", "category_ttl": "24h"}, got["store"])
	assert.Equal(t, "portal-2", got["instance"])
	assert.Equal(t, "5m", dst["store"].(map[string]interface{})["ttl"])
}
