package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/database"
	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/utilities"
)

// Config is the top-level configuration of the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Token    TokenConfig    `mapstructure:"token"`
	IDs      IDConfig       `mapstructure:"ids"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	BasePath string `mapstructure:"base_path"`
}

type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	MaxConns       int           `mapstructure:"max_conns"`
	Timeout        time.Duration `mapstructure:"timeout"`
	TimeZone       string        `mapstructure:"timezone"`
	ClientEncoding string        `mapstructure:"client_encoding"`
}

type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Dev    bool          `mapstructure:"dev"`
	Dir    string        `mapstructure:"dir"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

type TokenConfig struct {
	Issuer     string        `mapstructure:"issuer"`
	TTL        time.Duration `mapstructure:"ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	KeyFile    string        `mapstructure:"key_file"` // PEM RSA key; empty generates one per process
}

type IDConfig struct {
	SnowflakeNode int64 `mapstructure:"snowflake_node"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8431")
	v.SetDefault("server.base_path", "/bodycomp-api")

	v.SetDefault("database.driver", database.DriverPostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.timeout", 5*time.Second)
	v.SetDefault("database.timezone", "")
	v.SetDefault("database.client_encoding", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dev", false)
	v.SetDefault("logging.dir", "")
	v.SetDefault("logging.max_age", 7*24*time.Hour)

	v.SetDefault("token.issuer", "http://localhost:8431/bodycomp-api")
	v.SetDefault("token.ttl", 15*time.Minute)
	v.SetDefault("token.refresh_ttl", 30*24*time.Hour)
	v.SetDefault("token.key_file", "")

	v.SetDefault("ids.snowflake_node", 1)
}

// Load reads configuration from defaults, an optional config.yaml in any of
// dirs, and BODYCOMP_* environment variables (BODYCOMP_DATABASE_DSN, ...).
func Load(dirs ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BODYCOMP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// a missing file is fine; defaults and env vars are used
	if len(dirs) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = database.DefaultDSN(cfg.Database.Driver)
	}
	cfg.Server.BasePath = "/" + strings.Trim(cfg.Server.BasePath, "/")
	return &cfg, nil
}

// DB converts the database section to the connector's config.
func (c *Config) DB() database.Config {
	return database.Config{
		Driver:         c.Database.Driver,
		DSN:            c.Database.DSN,
		MaxConns:       c.Database.MaxConns,
		Timeout:        c.Database.Timeout,
		TimeZone:       c.Database.TimeZone,
		ClientEncoding: c.Database.ClientEncoding,
	}
}

// Log converts the logging section to the logger's config.
func (c *Config) Log() utilities.Config {
	lvl := c.Logging.Level
	if lvl == "" && c.Logging.Dev {
		lvl = "debug"
	}
	return utilities.Config{Level: lvl, Dev: c.Logging.Dev, Dir: c.Logging.Dir, MaxAge: c.Logging.MaxAge}
}
