package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shakram02/readonly-datasource/datasource"
)

// Config is the server configuration. Every key can be overridden from the
// environment with the MCP_ prefix, e.g. MCP_DATASOURCE_TYPE or MCP_MAX_ROWS.
type Config struct {
	Datasource     datasource.Profile
	QueryTimeout   time.Duration
	ConnectTimeout time.Duration
	// MaxRows is the page size used when a query call gives none.
	MaxRows   int
	StrictSQL bool
	Log       LogConfig
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("datasource.type", "")
	v.SetDefault("datasource.host", "")
	v.SetDefault("datasource.port", 0)
	v.SetDefault("datasource.username", "")
	v.SetDefault("datasource.password", "")
	v.SetDefault("datasource.database", "")
	v.SetDefault("datasource.params", "")
	v.SetDefault("query_timeout", 30*time.Second)
	v.SetDefault("connect_timeout", 10*time.Second)
	v.SetDefault("max_rows", 1000)
	v.SetDefault("strict_sql", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.compress", false)
	return v
}

// LoadConfig reads configFile (if given) and the environment.
func LoadConfig(configFile string) (*Config, error) {
	v := newViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	}
	return configFrom(v)
}

func configFrom(v *viper.Viper) (*Config, error) {
	params, err := paramsFrom(v.Get("datasource.params"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Datasource: datasource.Profile{
			Type:     datasource.Type(v.GetString("datasource.type")),
			Host:     v.GetString("datasource.host"),
			Port:     v.GetInt("datasource.port"),
			Username: v.GetString("datasource.username"),
			Password: v.GetString("datasource.password"),
			Database: v.GetString("datasource.database"),
			Params:   params,
		},
		QueryTimeout:   v.GetDuration("query_timeout"),
		ConnectTimeout: v.GetDuration("connect_timeout"),
		MaxRows:        v.GetInt("max_rows"),
		StrictSQL:      v.GetBool("strict_sql"),
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSize:    v.GetInt("log.max_size"),
			MaxAge:     v.GetInt("log.max_age"),
			MaxBackups: v.GetInt("log.max_backups"),
			Compress:   v.GetBool("log.compress"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// paramsFrom accepts a mapping from the config file or a JSON string from
// the file or the environment.
func paramsFrom(raw any) (datasource.Params, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return datasource.ParseParams(t)
	case map[string]any:
		return datasource.Params(t), nil
	default:
		return nil, fmt.Errorf("%w: datasource.params must be a mapping or a JSON string, got %T", datasource.ErrConfiguration, raw)
	}
}

func (c *Config) validate() error {
	var errs []error
	if strings.TrimSpace(string(c.Datasource.Type)) == "" {
		errs = append(errs, errors.New("datasource.type is required"))
	}
	if c.QueryTimeout <= 0 {
		errs = append(errs, errors.New("query_timeout must be positive"))
	}
	if c.MaxRows <= 0 {
		errs = append(errs, errors.New("max_rows must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", datasource.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// connectorOptions turns the config into library options.
func (c *Config) connectorOptions() []datasource.Option {
	return []datasource.Option{
		datasource.WithStrictSQL(c.StrictSQL),
		datasource.WithConnectTimeout(c.ConnectTimeout),
	}
}
