// Package config loads the YAML configuration of a wallet node.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-wallet/pkg/keystore"
	"github.com/taurusgroup/frost-wallet/pkg/log"
	"github.com/taurusgroup/frost-wallet/pkg/nonce"
	"github.com/taurusgroup/frost-wallet/pkg/pool"
	"github.com/taurusgroup/frost-wallet/pkg/protocol"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of a wallet node.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Nonce    NonceConfig    `yaml:"nonce"`
	Keystore KeystoreConfig `yaml:"keystore"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	// Level is a zerolog level name, or "disabled".
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// ProtocolConfig configures the keygen and sign engines.
type ProtocolConfig struct {
	RoundTimeout time.Duration `yaml:"round_timeout"`
	// Workers is the size of the verification pool, 0 for one per CPU.
	Workers int `yaml:"workers"`
}

// NonceConfig configures the nonce store.
type NonceConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// KeystoreConfig configures the keystore and its backend.
type KeystoreConfig struct {
	// Backend is "badger" or "dir".
	Backend string `yaml:"backend"`
	// Path is the badger directory or the envelope directory. An empty path
	// with the badger backend keeps the keystore in memory.
	Path   string                `yaml:"path"`
	Argon2 keystore.Argon2Params `yaml:"argon2"`
}

// Default returns the configuration used for missing fields.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  zerolog.LevelInfoValue,
			Format: log.FormatConsole,
		},
		Protocol: ProtocolConfig{
			RoundTimeout: protocol.DefaultRoundTimeout,
		},
		Nonce: NonceConfig{
			TTL:      nonce.DefaultTTL,
			Capacity: nonce.DefaultCapacity,
		},
		Keystore: KeystoreConfig{
			Backend: keystore.BackendBadger,
			Path:    "wallets",
			Argon2:  keystore.DefaultArgon2Params,
		},
	}
}

// Load reads the file at path, on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data on top of the defaults, and validates the result.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if c.Log.Format != log.FormatConsole && c.Log.Format != log.FormatJSON {
		return fmt.Errorf("config: log.format must be %q or %q", log.FormatConsole, log.FormatJSON)
	}
	if c.Protocol.RoundTimeout <= 0 {
		return errors.New("config: protocol.round_timeout must be positive")
	}
	if c.Protocol.Workers < 0 {
		return errors.New("config: protocol.workers must not be negative")
	}
	if c.Nonce.TTL <= 0 {
		return errors.New("config: nonce.ttl must be positive")
	}
	if c.Nonce.Capacity <= 0 {
		return errors.New("config: nonce.capacity must be positive")
	}
	switch c.Keystore.Backend {
	case keystore.BackendBadger:
	case keystore.BackendDir:
		if c.Keystore.Path == "" {
			return errors.New("config: keystore.path is required for the dir backend")
		}
	default:
		return fmt.Errorf("config: unknown keystore.backend %q", c.Keystore.Backend)
	}
	if err := c.Keystore.Argon2.Validate(); err != nil {
		return fmt.Errorf("config: keystore.argon2: %w", err)
	}
	return nil
}

// Logger builds the logger described by the configuration.
func (c *Config) Logger() (zerolog.Logger, error) {
	return log.New(os.Stderr, c.Log.Level, c.Log.Format)
}

// ProtocolOptions returns the engine options described by the configuration.
func (c *Config) ProtocolOptions(logger zerolog.Logger) []protocol.Option {
	return []protocol.Option{
		protocol.WithRoundTimeout(c.Protocol.RoundTimeout),
		protocol.WithLogger(logger),
	}
}

// Pool starts the verification pool. The caller must tear it down.
func (c *Config) Pool() *pool.Pool {
	return pool.NewPool(c.Protocol.Workers)
}

// NonceStore creates a nonce store with the configured bounds.
func (c *Config) NonceStore() *nonce.Store {
	return nonce.NewStore(nonce.WithTTL(c.Nonce.TTL), nonce.WithCapacity(c.Nonce.Capacity))
}

// OpenKeystore opens the configured backend and returns a keystore on top of it.
// The caller must close the returned Store.
func (c *Config) OpenKeystore(logger zerolog.Logger) (*keystore.Keystore, keystore.Store, error) {
	store, err := keystore.OpenStore(c.Keystore.Backend, c.Keystore.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	ks, err := keystore.New(store, keystore.WithArgon2Params(c.Keystore.Argon2), keystore.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return ks, store, nil
}
