package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
initial_capacity: 4096
error_rate: 0.001
max_pending: 100
interests:
  - order.placed
  - order.shipped
delivery:
  attempts: 3
  backoff: 10ms
`

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 4096, cfg.Int("initial_capacity", 0))
	assert.Equal(t, 0.001, cfg.Float("error_rate", 0))
	assert.Equal(t, 100, cfg.Int("max_pending", 0))
	assert.Equal(t, []string{"order.placed", "order.shipped"}, cfg.StringSlice("interests", nil))
	assert.Equal(t, 3, cfg.Sub("delivery").Int("attempts", 0))
}

func TestFromYAMLInvalid(t *testing.T) {
	_, err := FromYAML([]byte("initial_capacity: [unclosed"))
	assert.ErrorContains(t, err, "parse yaml")
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"mailbox_size": 64, "interests": ["MsgB"]}`))
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Int("mailbox_size", 0))
	assert.Equal(t, []string{"MsgB"}, cfg.StringSlice("interests", nil))

	_, err = FromJSON([]byte(`{`))
	assert.ErrorContains(t, err, "parse json")
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "eventseq.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0o600))
	cfg, err := FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Int("initial_capacity", 0))

	jsonPath := filepath.Join(dir, "eventseq.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"max_pending": 9}`), 0o600))
	cfg, err = FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Int("max_pending", 0))

	tomlPath := filepath.Join(dir, "eventseq.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(""), 0o600))
	_, err = FromFile(tomlPath)
	assert.ErrorContains(t, err, "unsupported config file extension")

	_, err = FromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromEnv(t *testing.T) {
	cfg := FromEnv("eventseq", []string{
		"EVENTSEQ_MAILBOX_SIZE=512",
		"EVENTSEQ_INTERESTS=MsgA,MsgB",
		"EVENTSEQ_=ignored",
		"OTHER_MAILBOX_SIZE=1",
		"MALFORMED",
	})

	assert.Equal(t, []string{"interests", "mailbox_size"}, cfg.Keys())
	assert.Equal(t, 512, cfg.Int("mailbox_size", 0))
	assert.Equal(t, []string{"MsgA", "MsgB"}, cfg.StringSlice("interests", nil))
}
