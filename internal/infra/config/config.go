package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Codec   CodecConfig    `mapstructure:"codec" yaml:"codec"`
	Servers []ServerConfig `mapstructure:"servers" yaml:"servers"`
	Log     LogConfig      `mapstructure:"log" yaml:"log"`
	Store   StoreConfig    `mapstructure:"store" yaml:"store"`
}

type CodecConfig struct {
	// WorkDir receives temp-file backings for spilled content buffers.
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`

	// MemLimit is the in-memory size (bytes) past which a buffer
	// spills to disk.
	MemLimit int64 `mapstructure:"mem_limit" yaml:"mem_limit"`

	// LineLength is the encoded column width.
	LineLength int `mapstructure:"line_length" yaml:"line_length"`

	// PartSize splits encoder input into parts of at most this many
	// bytes; 0 keeps a single part.
	PartSize int64 `mapstructure:"part_size" yaml:"part_size"`

	// Reference switches the codec to the byte-at-a-time reference
	// transform.
	Reference bool `mapstructure:"reference" yaml:"reference"`
}

type ServerConfig struct {
	ID       string `mapstructure:"id" yaml:"id"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// Load reads the YAML config at path, using only built-in defaults
// when path is empty; a non-empty path that does not exist is an
// error. Environment variables prefixed NEWSREAP_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("codec.work_dir", os.TempDir())
	v.SetDefault("codec.mem_limit", 1<<20)
	v.SetDefault("codec.line_length", 128)
	v.SetDefault("codec.part_size", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.sqlite_path", "newsreap.db")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("NEWSREAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Codec.MemLimit < 0 {
		return fmt.Errorf("codec.mem_limit must not be negative")
	}
	if c.Codec.PartSize < 0 {
		return fmt.Errorf("codec.part_size must not be negative")
	}
	if c.Codec.LineLength != 0 && (c.Codec.LineLength < 16 || c.Codec.LineLength > 1024) {
		return fmt.Errorf("codec.line_length %d outside [16, 1024]", c.Codec.LineLength)
	}

	for i, s := range c.Servers {
		if s.ID == "" {
			return fmt.Errorf("server[%d] requires a unique ID", i)
		}
		if s.Host == "" {
			return fmt.Errorf("server %s: host is required", s.ID)
		}
		if s.Port == 0 {
			if s.TLS {
				c.Servers[i].Port = 563
			} else {
				c.Servers[i].Port = 119
			}
		}
	}

	return nil
}

// Server finds a configured server by ID; an empty ID picks the first.
func (c *Config) Server(id string) (ServerConfig, error) {
	if len(c.Servers) == 0 {
		return ServerConfig{}, fmt.Errorf("no servers configured")
	}
	if id == "" {
		return c.Servers[0], nil
	}
	for _, s := range c.Servers {
		if s.ID == id {
			return s, nil
		}
	}
	return ServerConfig{}, fmt.Errorf("server %s not configured", id)
}
