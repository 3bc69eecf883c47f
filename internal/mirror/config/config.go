package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openmirror/mirrorbox/internal/utils"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigPath  = filepath.Join(home, ".mirrorbox", "config.json")
	DefaultLogFilePath = filepath.Join(home, ".mirrorbox", "logs", "mirrorbox.log")
	DefaultInterval    = 30 * time.Second
	MinInterval        = time.Second
)

// Duration is a time.Duration that marshals to/from a JSON duration string
// ("30s"), accepting plain nanosecond numbers too.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", v)
	}
}

// Config is the immutable configuration for one mirrorbox run. It is built
// once at startup and passed down; nothing mutates it afterwards.
type Config struct {
	SourceDir  string   `json:"source_dir"`
	ReplicaDir string   `json:"replica_dir"`
	Interval   Duration `json:"interval"`
	Watch      bool     `json:"watch"`
	LogFile    string   `json:"log_file"`
	Path       string   `json:"-"`
}

// PollInterval returns the inter-cycle sleep as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Interval)
}

// Validate resolves paths and enforces the startup preconditions: the source
// directory must exist and be readable, the replica must not overlap the
// source, and the interval must be sane.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return errors.New("source dir is required")
	}
	if c.ReplicaDir == "" {
		return errors.New("replica dir is required")
	}

	sourceDir, err := utils.ResolvePath(c.SourceDir)
	if err != nil {
		return fmt.Errorf("invalid source dir %q: %w", c.SourceDir, err)
	}
	replicaDir, err := utils.ResolvePath(c.ReplicaDir)
	if err != nil {
		return fmt.Errorf("invalid replica dir %q: %w", c.ReplicaDir, err)
	}
	c.SourceDir = sourceDir
	c.ReplicaDir = replicaDir

	if !utils.DirExists(c.SourceDir) {
		return fmt.Errorf("source dir %q does not exist", c.SourceDir)
	}

	if utils.DirExists(c.ReplicaDir) && !utils.IsWritable(c.ReplicaDir) {
		return fmt.Errorf("replica dir %q is not writable", c.ReplicaDir)
	}

	if c.ReplicaDir == c.SourceDir {
		return errors.New("replica dir cannot be the same as source dir")
	}
	if isSubPath(c.SourceDir, c.ReplicaDir) {
		return errors.New("replica dir cannot be inside the source dir")
	}
	if isSubPath(c.ReplicaDir, c.SourceDir) {
		return errors.New("source dir cannot be inside the replica dir")
	}

	if c.Interval == 0 {
		c.Interval = Duration(DefaultInterval)
	}
	if c.PollInterval() < MinInterval {
		return fmt.Errorf("interval %s is below the minimum %s", c.PollInterval(), MinInterval)
	}

	if c.LogFile == "" {
		c.LogFile = DefaultLogFilePath
	}
	logFile, err := utils.ResolvePath(c.LogFile)
	if err != nil {
		return fmt.Errorf("invalid log file %q: %w", c.LogFile, err)
	}
	c.LogFile = logFile

	if c.Path != "" {
		path, err := utils.ResolvePath(c.Path)
		if err != nil {
			return fmt.Errorf("invalid config path %q: %w", c.Path, err)
		}
		c.Path = path
	}

	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	return &cfg, nil
}

// isSubPath reports whether child is strictly inside parent.
func isSubPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".."
}
