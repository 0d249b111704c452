package sqlite

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

const (
	defaultBusyTimeout = 5 * time.Second
	defaultDBFile      = "lookupbot.db"
)

// Config holds the SQLite store module configuration.
type Config struct {
	// Path is the database file. Relative paths resolve against the data
	// directory; empty means {DataDir}/lookupbot.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		t := true
		c.WAL = &t
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

// resolvePath anchors Path in dataDir.
func (c *Config) resolvePath(dataDir string) {
	switch {
	case c.Path == "":
		c.Path = filepath.Join(dataDir, defaultDBFile)
	case !filepath.IsAbs(c.Path) && dataDir != "":
		c.Path = filepath.Join(dataDir, c.Path)
	}
}

// dsn builds a modernc.org/sqlite connection string. Pragmas ride on the
// DSN so every pooled connection gets them.
func (c *Config) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if c.walEnabled() {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Set("_txlock", "immediate")
	return "file:" + c.Path + "?" + q.Encode()
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %s", c.BusyTimeout)
	}
	if c.BusyTimeout > 0 && c.BusyTimeout < time.Millisecond {
		return fmt.Errorf("sqlite: busy_timeout below 1ms is truncated to zero, got %s", c.BusyTimeout)
	}
	return nil
}
