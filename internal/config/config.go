// Package config loads logmon configuration with viper.
//
// Precedence, highest first: bound command-line flags, environment, config
// file, defaults. Environment variables use the LOGMON_ prefix with dots
// replaced by underscores (LOGMON_WATCH_BACKEND). The unprefixed names
// PORT, CORS_ORIGIN, LOG_LEVEL, LOGS_TASKS_DIR and LOGS_TEAMS_DIR are also
// honored.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/agentlogs/logmon/internal/logging"
)

// Config is the complete logmon configuration.
type Config struct {
	Roots      []string       `mapstructure:"roots" yaml:"roots"`
	Bind       string         `mapstructure:"bind" yaml:"bind"`
	Port       int            `mapstructure:"port" yaml:"port"`
	CORSOrigin string         `mapstructure:"cors_origin" yaml:"cors_origin"`
	Watch      WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Classify   ClassifyConfig `mapstructure:"classify" yaml:"classify"`
	Pipeline   PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Hub        HubConfig      `mapstructure:"hub" yaml:"hub"`
	Log        logging.Config `mapstructure:"log" yaml:"log"`
}

// WatchConfig selects and tunes the change watcher.
type WatchConfig struct {
	Backend  string        `mapstructure:"backend" yaml:"backend"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Pattern  string        `mapstructure:"pattern" yaml:"pattern"`
}

// ClassifyConfig lists the rules that mark a file as structured.
type ClassifyConfig struct {
	Structured []string `mapstructure:"structured" yaml:"structured"`
}

// PipelineConfig sizes the update pipeline.
type PipelineConfig struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// HubConfig sizes the broadcast hub.
type HubConfig struct {
	ClientBuffer    int     `mapstructure:"client_buffer" yaml:"client_buffer"`
	BroadcastBuffer int     `mapstructure:"broadcast_buffer" yaml:"broadcast_buffer"`
	RequestRate     float64 `mapstructure:"request_rate" yaml:"request_rate"`
	RequestBurst    int     `mapstructure:"request_burst" yaml:"request_burst"`
}

// DefaultRoots are the directories watched when none are configured.
var DefaultRoots = []string{"~/.claude/tasks/", "~/.claude/teams/"}

// legacyEnv maps unprefixed environment variables onto config keys.
var legacyEnv = map[string]string{
	"port":        "PORT",
	"cors_origin": "CORS_ORIGIN",
	"log.level":   "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	logDefaults := logging.DefaultConfig()

	v.SetDefault("roots", DefaultRoots)
	v.SetDefault("bind", "")
	v.SetDefault("port", 3001)
	v.SetDefault("cors_origin", "*")
	v.SetDefault("watch.backend", "poll")
	v.SetDefault("watch.interval", 100*time.Millisecond)
	v.SetDefault("watch.pattern", "*.json")
	v.SetDefault("classify.structured", []string{"inbox"})
	v.SetDefault("pipeline.workers", 8)
	v.SetDefault("pipeline.queue_size", 256)
	v.SetDefault("hub.client_buffer", 64)
	v.SetDefault("hub.broadcast_buffer", 256)
	v.SetDefault("hub.request_rate", 5.0)
	v.SetDefault("hub.request_burst", 10)
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.file", logDefaults.File)
	v.SetDefault("log.max_size_mb", logDefaults.MaxSizeMB)
	v.SetDefault("log.max_backups", logDefaults.MaxBackups)
	v.SetDefault("log.max_age_days", logDefaults.MaxAgeDays)
}

// Load reads configuration. path names an explicit config file; when empty
// logmon.yaml is searched for in the working directory and in
// $HOME/.config/logmon, and its absence is not an error. flags, if not
// nil, are bound by name: a flag called "port" overrides the "port" key,
// "log-level" overrides "log.level".
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v, err := newViper(path, flags)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch reloads the configuration whenever the config file in use changes
// and passes the result to onChange. Reloads that fail to decode or
// validate are passed to onError and otherwise ignored. Watch reports
// false when no config file is in use. Watching lasts for the life of the
// process.
func Watch(path string, flags *pflag.FlagSet, onChange func(*Config), onError func(error)) (bool, error) {
	v, err := newViper(path, flags)
	if err != nil {
		return false, err
	}
	if v.ConfigFileUsed() == "" {
		return false, nil
	}

	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return true, nil
}

// newViper builds a viper instance with defaults, environment, the config
// file and flags applied.
func newViper(path string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LOGMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "LOGMON_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("logmon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/logmon")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Roots = applyRootEnv(cfg.Roots)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindFlags binds every flag in fs to the key of the same name, with
// dashes turned into dots for nested keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Name == "config" {
			return
		}
		key := flagKey(f.Name)
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

func flagKey(name string) string {
	switch name {
	case "cors-origin":
		return "cors_origin"
	case "root":
		return "roots"
	}
	if i := strings.IndexByte(name, '-'); i > 0 {
		return name[:i] + "." + strings.ReplaceAll(name[i+1:], "-", "_")
	}
	return name
}

// applyRootEnv lets LOGS_TASKS_DIR and LOGS_TEAMS_DIR replace the first and
// second root.
func applyRootEnv(rootList []string) []string {
	out := append([]string(nil), rootList...)
	for i, env := range []string{"LOGS_TASKS_DIR", "LOGS_TEAMS_DIR"} {
		val := strings.TrimSpace(os.Getenv(env))
		if val == "" {
			continue
		}
		for len(out) <= i {
			out = append(out, "")
		}
		out[i] = val
	}
	return out
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Watch.Backend {
	case "poll", "fsnotify":
	default:
		return fmt.Errorf("invalid watch.backend %q (want poll or fsnotify)", c.Watch.Backend)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %s", c.Watch.Interval)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	return nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return string(out), nil
}
