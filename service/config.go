package service

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	bc "github.com/favour-abass/waterCompanyBackend/blockchain"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Duration is a time.Duration written as "30s" in config files.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return xerrors.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Config holds everything the service needs to run.
type Config struct {
	// HTTPAddr is the listen address of the HTTP API.
	HTTPAddr string `toml:"http_addr" yaml:"http_addr"`
	// DBPath is the bbolt file holding packs and users.
	DBPath string `toml:"db_path" yaml:"db_path"`
	// Difficulty is the number of leading '0' hex characters of a block hash.
	Difficulty int `toml:"difficulty" yaml:"difficulty"`
	// MineInterval commits the pending pool periodically, 0 mines on demand only.
	MineInterval Duration `toml:"mine_interval" yaml:"mine_interval"`
	// MineTimeout bounds how long a request waits for its block.
	MineTimeout Duration `toml:"mine_timeout" yaml:"mine_timeout"`
	// PendingWarn is the pool size that gets logged as a warning.
	PendingWarn int `toml:"pending_warn" yaml:"pending_warn"`
	// SessionTTL is the lifetime of a login token.
	SessionTTL Duration `toml:"session_ttl" yaml:"session_ttl"`
	// BcryptCost is the work factor of stored password hashes.
	BcryptCost int `toml:"bcrypt_cost" yaml:"bcrypt_cost"`
	// Network labels the ledger in stats replies.
	Network string `toml:"network" yaml:"network"`
	// Seal signs mined blocks with a per-process key.
	Seal bool `toml:"seal" yaml:"seal"`
	// Debug is the log level, 0 to 5, used when no --debug flag is given.
	Debug int `toml:"debug" yaml:"debug"`
	// AdminUser is created at startup as an approved ADMIN when missing.
	// Every other account waits for an admin to approve it.
	AdminUser     string `toml:"admin_user" yaml:"admin_user"`
	AdminPassword string `toml:"admin_password" yaml:"admin_password"`
}

// DefaultConfig returns the configuration used for missing keys.
func DefaultConfig() *Config {
	c := &Config{
		HTTPAddr:    DEFAULT_HTTP_ADDR,
		DBPath:      DEFAULT_DB_PATH,
		Difficulty:  bc.DefaultDifficulty,
		PendingWarn: bc.DefaultPendingWarn,
		BcryptCost:  bcrypt.DefaultCost,
		Network:     DEFAULT_NETWORK,
		Seal:        true,
	}
	c.MineTimeout.Duration, _ = time.ParseDuration(DEFAULT_MINE_TIMEOUT)
	c.SessionTTL.Duration, _ = time.ParseDuration(DEFAULT_SESSION_TTL)
	return c
}

// LoadConfig reads a TOML or YAML file, picked by extension, over the
// defaults.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(buf, c)
	default:
		_, err = toml.Decode(string(buf), c)
	}
	if err != nil {
		return nil, xerrors.Errorf("parsing %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the values that would make the service misbehave.
func (c *Config) Validate() error {
	if !bc.ValidDifficulty(c.Difficulty) {
		return xerrors.Errorf("difficulty %d out of range [0, %d]", c.Difficulty, bc.MaxDifficulty)
	}
	if c.MineInterval.Duration < 0 || c.MineTimeout.Duration < 0 || c.SessionTTL.Duration < 0 {
		return xerrors.New("durations must not be negative")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return xerrors.Errorf("bcrypt cost %d out of range", c.BcryptCost)
	}
	if c.DBPath == "" {
		return xerrors.New("db_path is empty")
	}
	if c.AdminUser != "" && len(c.AdminPassword) < MIN_PASSWORD_LENGTH {
		return xerrors.Errorf("admin_password shorter than %d characters", MIN_PASSWORD_LENGTH)
	}
	return nil
}
