// Package config loads the connection and session settings.
//
// The configuration document is a flat JSON object (YAML and TOML are read
// too, by extension):
//
//	{
//	  "db_driver": "postgres",
//	  "db_name": "social",
//	  "db_user": "social",
//	  "db_password": "secret",
//	  "db_host": "localhost",
//	  "db_port": 5432,
//	  "table_prefix": "sg_"
//	}
//
// Every setting can be overridden from the environment with a SOCIAL_
// prefix (SOCIAL_DB_HOST, SOCIAL_TABLE_PREFIX, ...). Keys the program does
// not know are kept in Extra and written back by Save.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tordrt/socialgraph/internal/apperr"
	"github.com/tordrt/socialgraph/internal/db"
)

const envPrefix = "SOCIAL"

// Config holds the settings read from the configuration document
type Config struct {
	DBDriver    string `mapstructure:"db_driver"`
	DBName      string `mapstructure:"db_name"`
	DBUser      string `mapstructure:"db_user"`
	DBPassword  string `mapstructure:"db_password"`
	DBHost      string `mapstructure:"db_host"`
	DBPort      int    `mapstructure:"db_port"`
	DBSchema    string `mapstructure:"db_schema"`
	TablePrefix string `mapstructure:"table_prefix"`
	SchemaFile  string `mapstructure:"schema_file"`
	RenderProg  string `mapstructure:"render_prog"`
	LogLevel    string `mapstructure:"log_level"`
	LogFile     string `mapstructure:"log_file"`

	Extra map[string]any `mapstructure:",remain"`
}

var knownKeys = []string{
	"db_driver", "db_name", "db_user", "db_password", "db_host", "db_port",
	"db_schema", "table_prefix", "schema_file", "render_prog", "log_level", "log_file",
}

// FlagKeys maps command-line flag names to configuration keys
var FlagKeys = map[string]string{
	"driver":   "db_driver",
	"prefix":   "table_prefix",
	"schema":   "schema_file",
	"log-file": "log_file",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("db_driver", string(db.DriverPostgres))
	v.SetDefault("db_schema", "public")
	v.SetDefault("render_prog", "circo")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range knownKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the configuration at path. A missing file is not an error when
// the environment or flags supply the settings; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to read config")
			}
		}
	}

	if flags != nil {
		for flag, key := range FlagKeys {
			if f := flags.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to bind flag "+flag)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the connection settings are usable for the driver
func (c *Config) Validate() error {
	driver, err := db.ParseDriver(c.DBDriver)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeConfig, "invalid db_driver")
	}

	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	require("db_name", c.DBName)
	if driver != db.DriverSQLite {
		require("db_user", c.DBUser)
		require("db_host", c.DBHost)
		if c.DBPort <= 0 || c.DBPort > 65535 {
			missing = append(missing, "db_port")
		}
	}

	if len(missing) > 0 {
		return apperr.Newf(apperr.CodeConfig, "missing or invalid config keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Driver returns the parsed database driver
func (c *Config) Driver() db.Driver {
	d, err := db.ParseDriver(c.DBDriver)
	if err != nil {
		return db.DriverPostgres
	}
	return d
}

// DSN builds the driver-specific connection string
func (c *Config) DSN() string {
	switch c.Driver() {
	case db.DriverSQLite:
		return c.DBName
	case db.DriverMySQL:
		return db.MySQLDSN(c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	default:
		u := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.DBUser, c.DBPassword),
			Host:   c.DBHost + ":" + strconv.Itoa(c.DBPort),
			Path:   "/" + c.DBName,
		}
		return u.String()
	}
}

// Describe returns the connection target without the password
func (c *Config) Describe() string {
	if c.Driver() == db.DriverSQLite {
		return fmt.Sprintf("sqlite database %s", c.DBName)
	}
	return fmt.Sprintf("%s database %s as %s@%s:%d", c.Driver(), c.DBName, c.DBUser, c.DBHost, c.DBPort)
}

// Settings returns every key, known and extra, as a flat map
func (c *Config) Settings() map[string]any {
	out := make(map[string]any, len(knownKeys)+len(c.Extra))
	for k, v := range c.Extra {
		out[k] = v
	}
	out["db_driver"] = c.DBDriver
	out["db_name"] = c.DBName
	out["db_user"] = c.DBUser
	out["db_password"] = c.DBPassword
	out["db_host"] = c.DBHost
	out["db_port"] = c.DBPort
	out["db_schema"] = c.DBSchema
	out["table_prefix"] = c.TablePrefix
	out["schema_file"] = c.SchemaFile
	out["render_prog"] = c.RenderProg
	out["log_level"] = c.LogLevel
	out["log_file"] = c.LogFile
	return out
}

// Save writes the configuration, including unknown keys, to path. The
// format follows the file extension.
func (c *Config) Save(path string) error {
	v := viper.New()
	for k, val := range c.Settings() {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
