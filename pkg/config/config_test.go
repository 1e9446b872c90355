package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-wallet/pkg/keystore"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, protocol.DefaultRoundTimeout, cfg.Protocol.RoundTimeout)
	assert.Equal(t, keystore.DefaultArgon2Params, cfg.Keystore.Argon2)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
log:
  level: debug
  format: json
protocol:
  round_timeout: 30s
  workers: 4
nonce:
  ttl: 1m
  capacity: 16
keystore:
  backend: dir
  path: /var/lib/frost-wallet
  argon2:
    time: 1
    memory_kib: 1024
    threads: 2
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30*time.Second, cfg.Protocol.RoundTimeout)
	assert.Equal(t, 4, cfg.Protocol.Workers)
	assert.Equal(t, time.Minute, cfg.Nonce.TTL)
	assert.Equal(t, 16, cfg.Nonce.Capacity)
	assert.Equal(t, keystore.BackendDir, cfg.Keystore.Backend)
	assert.Equal(t, keystore.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 2}, cfg.Keystore.Argon2)
}

func TestParseKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("nonce:\n  capacity: 8\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Nonce.Capacity)
	assert.Equal(t, Default().Nonce.TTL, cfg.Nonce.TTL)
	assert.Equal(t, Default().Log, cfg.Log)

	cfg, err = Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseInvalid(t *testing.T) {
	for name, data := range map[string]string{
		"unknown field": "logging:\n  level: info\n",
		"level":         "log:\n  level: loud\n",
		"format":        "log:\n  format: xml\n",
		"timeout":       "protocol:\n  round_timeout: -1s\n",
		"workers":       "protocol:\n  workers: -2\n",
		"ttl":           "nonce:\n  ttl: 0s\n",
		"capacity":      "nonce:\n  capacity: 0\n",
		"backend":       "keystore:\n  backend: s3\n",
		"dir path":      "keystore:\n  backend: dir\n  path: \"\"\n",
		"argon2":        "keystore:\n  argon2:\n    time: 0\n",
		"syntax":        "log: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keystore:\n  backend: badger\n  path: \"\"\n"), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)

	logger, err := cfg.Logger()
	require.NoError(t, err)
	ks, store, err := cfg.OpenKeystore(logger)
	require.NoError(t, err)
	require.NotNil(t, ks)
	require.NoError(t, store.Close())

	assert.Len(t, cfg.ProtocolOptions(logger), 2)
	assert.Zero(t, cfg.NonceStore().Len())
	pl := cfg.Pool()
	assert.Positive(t, pl.Workers())
	pl.TearDown()

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
