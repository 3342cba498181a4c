// Package config loads pushy settings from flags, the environment, a .env
// file and an optional config file.
//
// Precedence, highest first:
//  1. Command-line flags
//  2. Environment variables (PUSHY_TARGET, PUSHY_DELAY, ...)
//  3. .env in the working directory
//  4. Config file (YAML "key: value" or TOML)
//  5. Defaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Mschirtzinger/pushy/internal/monitor"
	"github.com/Mschirtzinger/pushy/internal/push"
)

// EnvPrefix prefixes every environment variable pushy reads.
const EnvPrefix = "PUSHY"

// Keys shared by flags, environment variables and config files.
const (
	KeySource        = "source"
	KeyTarget        = "target"
	KeyUser          = "user"
	KeyHost          = "host"
	KeyExport        = "export"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
	KeyLogOutput     = "log_output"
	KeyNotify        = "notify"
	KeyDelay         = "delay"
	KeyMaxHot        = "max_hot"
	KeyHotness       = "hotness"
	KeyIgnoredDirs   = "ignored_dirs"
	KeyIgnoredFiles  = "ignored_files"
	KeyIgnoreFile    = "ignore_file"
	KeySyncPush      = "sync_push"
	KeyQueueSize     = "queue_size"
	KeyPushTimeout   = "push_timeout"
	KeyJournal       = "journal"
	KeyDashboardPort = "dashboard_port"
)

// Config is the resolved configuration.
type Config struct {
	Source string `yaml:"source,omitempty" toml:"source,omitempty"`
	Target string `yaml:"target,omitempty" toml:"target,omitempty"`
	User   string `yaml:"user,omitempty" toml:"user,omitempty"`
	Host   string `yaml:"host,omitempty" toml:"host,omitempty"`
	Export bool   `yaml:"export,omitempty" toml:"export,omitempty"`

	LogLevel  string `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	LogFormat string `yaml:"log_format,omitempty" toml:"log_format,omitempty"`
	LogOutput string `yaml:"log_output,omitempty" toml:"log_output,omitempty"`
	Notify    bool   `yaml:"notify,omitempty" toml:"notify,omitempty"`

	Delay        time.Duration `yaml:"delay,omitempty" toml:"delay,omitempty"`
	MaxHot       int           `yaml:"max_hot,omitempty" toml:"max_hot,omitempty"`
	Hotness      int           `yaml:"hotness,omitempty" toml:"hotness,omitempty"`
	IgnoredDirs  string        `yaml:"ignored_dirs,omitempty" toml:"ignored_dirs,omitempty"`
	IgnoredFiles string        `yaml:"ignored_files,omitempty" toml:"ignored_files,omitempty"`
	IgnoreFile   string        `yaml:"ignore_file,omitempty" toml:"ignore_file,omitempty"`

	SyncPush    bool          `yaml:"sync_push,omitempty" toml:"sync_push,omitempty"`
	QueueSize   int           `yaml:"queue_size,omitempty" toml:"queue_size,omitempty"`
	PushTimeout time.Duration `yaml:"push_timeout,omitempty" toml:"push_timeout,omitempty"`

	Journal       string `yaml:"journal,omitempty" toml:"journal,omitempty"`
	DashboardPort int    `yaml:"dashboard_port,omitempty" toml:"dashboard_port,omitempty"`

	// File is the config file that was read, if any.
	File string `yaml:"-" toml:"-"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Source:       ".",
		LogLevel:     "info",
		LogFormat:    "auto",
		LogOutput:    "stderr",
		Delay:        monitor.DefaultDelay,
		MaxHot:       monitor.DefaultMaxHot,
		Hotness:      monitor.DefaultHotness,
		IgnoredDirs:  monitor.DefaultIgnoredDirs,
		IgnoredFiles: monitor.DefaultIgnoredFiles,
		IgnoreFile:   monitor.DefaultIgnoreFile,
		QueueSize:    push.DefaultQueueSize,
		PushTimeout:  30 * time.Second,
	}
}

// Validate checks values the monitor and backends cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.Delay <= 0 {
		errs = append(errs, fmt.Errorf("delay must be positive, got %s", c.Delay))
	}
	if c.MaxHot < 1 {
		errs = append(errs, fmt.Errorf("max_hot must be at least 1, got %d", c.MaxHot))
	}
	if c.Hotness < 0 {
		errs = append(errs, fmt.Errorf("hotness cannot be negative, got %d", c.Hotness))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue_size must be at least 1, got %d", c.QueueSize))
	}
	if c.DashboardPort < 0 || c.DashboardPort > 65535 {
		errs = append(errs, fmt.Errorf("dashboard_port out of range: %d", c.DashboardPort))
	}
	if c.Host != "" && c.Target == "" {
		errs = append(errs, fmt.Errorf("host %s given without a target path", c.Host))
	}
	if _, err := c.Rules(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Rules compiles the ignore patterns.
func (c Config) Rules() (monitor.Rules, error) {
	return monitor.CompileRules(c.IgnoredDirs, c.IgnoredFiles)
}

// MonitorConfig builds the monitor settings. Rules must have compiled, which
// Validate guarantees.
func (c Config) MonitorConfig(logger zerolog.Logger) (monitor.Config, error) {
	rules, err := c.Rules()
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		Delay:      c.Delay,
		MaxHot:     c.MaxHot,
		Hotness:    c.Hotness,
		Rules:      rules,
		IgnoreFile: c.IgnoreFile,
		Logger:     logger,
	}, nil
}

// Settings returns the subset of c a running monitor can pick up.
func (c Config) Settings() (monitor.Settings, error) {
	rules, err := c.Rules()
	if err != nil {
		return monitor.Settings{}, err
	}
	return monitor.Settings{Rules: &rules, Delay: c.Delay}, nil
}

// BackendKind returns the push backend these settings select, or false when
// no target is configured.
func (c Config) BackendKind() (push.Kind, bool) {
	if c.Target == "" {
		return "", false
	}
	return push.Select(c.Host, c.Export), true
}

// Loader resolves a Config. Flags bound with BindFlags keep precedence across
// reloads.
type Loader struct {
	flags   *pflag.FlagSet
	envFile string
	file    string
	logger  zerolog.Logger
}

// NewLoader creates a loader. An empty envFile means ".env".
func NewLoader(envFile string, logger zerolog.Logger) *Loader {
	if envFile == "" {
		envFile = ".env"
	}
	return &Loader{envFile: envFile, logger: logger}
}

// BindFlags makes flags from fs override every other source. Flag names
// use dashes where keys use underscores.
func (l *Loader) BindFlags(fs *pflag.FlagSet) {
	l.flags = fs
}

// SetLogger replaces the logger used for warnings and reload messages.
func (l *Loader) SetLogger(logger zerolog.Logger) {
	l.logger = logger
}

// File returns the config file used by the last Load.
func (l *Loader) File() string {
	return l.file
}

// Load resolves the configuration. path names the config file; when empty
// the default locations are searched and a missing file is not an error.
func (l *Loader) Load(path string) (Config, error) {
	if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn().Err(err).Str("file", l.envFile).Msg("failed to load env file")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		file = findConfigFile()
	}
	if file != "" {
		values, err := ReadFile(file)
		if err != nil {
			if path != "" || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		} else if err := v.MergeConfigMap(values); err != nil {
			return Config{}, fmt.Errorf("failed to merge %s: %w", file, err)
		}
	}
	l.file = file

	if l.flags != nil {
		var bindErr error
		l.flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
			}
		})
		if bindErr != nil {
			return Config{}, bindErr
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return Config{}, err
	}
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeySource, d.Source)
	v.SetDefault(KeyTarget, "")
	v.SetDefault(KeyUser, "")
	v.SetDefault(KeyHost, "")
	v.SetDefault(KeyExport, false)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyLogOutput, d.LogOutput)
	v.SetDefault(KeyNotify, false)
	v.SetDefault(KeyDelay, d.Delay.String())
	v.SetDefault(KeyMaxHot, d.MaxHot)
	v.SetDefault(KeyHotness, d.Hotness)
	v.SetDefault(KeyIgnoredDirs, d.IgnoredDirs)
	v.SetDefault(KeyIgnoredFiles, d.IgnoredFiles)
	v.SetDefault(KeyIgnoreFile, d.IgnoreFile)
	v.SetDefault(KeySyncPush, false)
	v.SetDefault(KeyQueueSize, d.QueueSize)
	v.SetDefault(KeyPushTimeout, d.PushTimeout.String())
	v.SetDefault(KeyJournal, "")
	v.SetDefault(KeyDashboardPort, 0)
}

func fromViper(v *viper.Viper) (Config, error) {
	delay, err := Duration(v.Get(KeyDelay))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyDelay, err)
	}
	timeout, err := Duration(v.Get(KeyPushTimeout))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyPushTimeout, err)
	}

	return Config{
		Source:        v.GetString(KeySource),
		Target:        v.GetString(KeyTarget),
		User:          v.GetString(KeyUser),
		Host:          v.GetString(KeyHost),
		Export:        v.GetBool(KeyExport),
		LogLevel:      v.GetString(KeyLogLevel),
		LogFormat:     v.GetString(KeyLogFormat),
		LogOutput:     v.GetString(KeyLogOutput),
		Notify:        v.GetBool(KeyNotify),
		Delay:         delay,
		MaxHot:        v.GetInt(KeyMaxHot),
		Hotness:       v.GetInt(KeyHotness),
		IgnoredDirs:   v.GetString(KeyIgnoredDirs),
		IgnoredFiles:  v.GetString(KeyIgnoredFiles),
		IgnoreFile:    v.GetString(KeyIgnoreFile),
		SyncPush:      v.GetBool(KeySyncPush),
		QueueSize:     v.GetInt(KeyQueueSize),
		PushTimeout:   timeout,
		Journal:       v.GetString(KeyJournal),
		DashboardPort: v.GetInt(KeyDashboardPort),
	}, nil
}

// Duration converts a config value to a duration. Bare numbers are seconds,
// so "delay: 1.5" and "delay: 1500ms" mean the same thing.
func Duration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(v)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%q is neither seconds nor a duration", v)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("unsupported duration value %v (%T)", value, value)
	}
}

// ReadFile decodes a YAML or TOML config file into a key/value map. The
// format is picked by extension; anything but .toml is read as YAML.
func ReadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	values := make(map[string]any)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &values); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	// Accept dashed keys too, the way they appear on the command line.
	normalized := make(map[string]any, len(values))
	for k, v := range values {
		normalized[strings.ReplaceAll(strings.ToLower(k), "-", "_")] = v
	}
	return normalized, nil
}

// WriteFile writes cfg as YAML, omitting empty values.
func WriteFile(path string, cfg Config) error {
	data, err := yaml.Marshal(fileView(cfg))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// fileView renders durations as strings so they round-trip through Duration.
func fileView(cfg Config) map[string]any {
	out := map[string]any{}
	set := func(key string, value any, zero bool) {
		if !zero {
			out[key] = value
		}
	}
	set(KeySource, cfg.Source, cfg.Source == "")
	set(KeyTarget, cfg.Target, cfg.Target == "")
	set(KeyUser, cfg.User, cfg.User == "")
	set(KeyHost, cfg.Host, cfg.Host == "")
	set(KeyExport, cfg.Export, !cfg.Export)
	set(KeyLogLevel, cfg.LogLevel, cfg.LogLevel == "")
	set(KeyNotify, cfg.Notify, !cfg.Notify)
	set(KeyDelay, cfg.Delay.String(), cfg.Delay == 0)
	set(KeyMaxHot, cfg.MaxHot, cfg.MaxHot == 0)
	set(KeyHotness, cfg.Hotness, cfg.Hotness == 0)
	set(KeyIgnoredDirs, cfg.IgnoredDirs, cfg.IgnoredDirs == "")
	set(KeyIgnoredFiles, cfg.IgnoredFiles, cfg.IgnoredFiles == "")
	set(KeySyncPush, cfg.SyncPush, !cfg.SyncPush)
	set(KeyJournal, cfg.Journal, cfg.Journal == "")
	set(KeyDashboardPort, cfg.DashboardPort, cfg.DashboardPort == 0)
	return out
}

// DefaultPaths lists the config files searched when none is given.
func DefaultPaths() []string {
	paths := []string{".pushy.yaml", ".pushy.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".pushy.yaml"),
			filepath.Join(home, ".pushy.toml"),
			filepath.Join(home, ".config", "pushy", "config.yaml"),
		)
	}
	return paths
}

func findConfigFile() string {
	for _, p := range DefaultPaths() {
		if _, err := os.Stat(p); err == nil {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
