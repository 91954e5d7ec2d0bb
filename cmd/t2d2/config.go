package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
)

const envPrefix = "T2D2"

type config struct {
	APIURL      string
	APIKey      string
	Email       string
	Password    string
	AccessToken string
	Project     int64
	Format      string
	Verbose     bool
	LogFormat   string
	File        string

	S3Endpoint    string
	TraceEndpoint string
	TraceInsecure bool
}

func (c config) credentials() t2d2.Credentials {
	return t2d2.Credentials{
		APIKey:      c.APIKey,
		Email:       c.Email,
		Password:    c.Password,
		AccessToken: c.AccessToken,
	}
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("api-url", t2d2.DefaultBaseURL)
	v.SetDefault("format", "json")
	v.SetDefault("log-format", "console")
}

// loadConfig merges the config file, environment and bound flags. An explicit
// --config file must exist; the default one is optional.
func loadConfig(v *viper.Viper) (config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".t2d2"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := config{
		APIURL:      v.GetString("api-url"),
		APIKey:      v.GetString("api-key"),
		Email:       v.GetString("email"),
		Password:    v.GetString("password"),
		AccessToken: v.GetString("access-token"),
		Project:     v.GetInt64("project"),
		Format:      strings.ToLower(v.GetString("format")),
		Verbose:     v.GetBool("verbose"),
		LogFormat:   v.GetString("log-format"),
		File:        v.ConfigFileUsed(),

		S3Endpoint:    v.GetString("s3-endpoint"),
		TraceEndpoint: v.GetString("trace-endpoint"),
		TraceInsecure: v.GetBool("trace-insecure"),
	}
	switch cfg.Format {
	case "json", "yaml":
	default:
		return config{}, fmt.Errorf("unsupported format %q (want json or yaml)", cfg.Format)
	}
	return cfg, nil
}
